// Package interfaces defines the types, interfaces and errors shared by the
// overlay provisioning backend, separating interface definitions from
// implementations.
//
// # Provisioning Interfaces
//
// IdentityIssuer: Produces signed credential material (certificate and key) for a
// node name and overlay address. The production implementation shells out to
// the nebula-cert executable.
//
// NodeProvisioner: Turns a node name into a packaged NodeBundle. Implemented by
// the orchestrator, which is not safe for concurrent use, and by the pipeline,
// which serializes concurrent callers in front of a single orchestrator.
//
// # Storage Interfaces
//
// StorageBackend: Content-addressed storage used to archive issued bundles
// (file, S3, IPFS, Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Errors
//
// Construction errors (ErrOffsetTooBig, ErrOffsetOverflow, ErrPathNotExist,
// ErrInvalidSharedConfig) abort startup. Per-request errors
// (ErrInvalidNodeName, ErrAddressPoolExhausted, IssuanceError matching
// ErrIssuanceFailed) are returned to the single caller that triggered them.
// ErrPipelineUnavailable is returned to every caller once the provisioning
// worker has terminated.
package interfaces
