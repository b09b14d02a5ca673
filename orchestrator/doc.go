// Package orchestrator performs the provisioning of a single overlay node.
//
// For every request the Orchestrator:
//
//  1. validates the node name
//  2. allocates the next address from its ippool.Pool
//  3. recreates <workdir>/<name> from scratch
//  4. asks the interfaces.IdentityIssuer to write host.crt and host.key
//  5. copies the shared node configuration next to them
//  6. packages the directory as base64(tar.gz)
//  7. optionally archives the raw archive in a storage backend
//
// Failures after step 2 are reported as *interfaces.IssuanceError. By default
// the allocated address is not returned to the pool (LeakOnFailure), so a
// partially issued certificate can never be reissued to a different node.
//
// The Orchestrator keeps no locks. Callers must serialize access, which
// pipeline.Pipeline does.
package orchestrator
