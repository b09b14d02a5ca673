// Package main (cmd/provisioning-server) runs the overlay node provisioning
// server.
//
// The server allocates an overlay address for every POST /new/node/{name},
// has nebula-cert sign a host certificate for it, adds the shared node
// configuration and answers with the base64 encoded tar.gz bundle.
// Provisioning requests are executed one at a time by a single worker.
//
// Settings come from flags, OVERLAY_* environment variables or a YAML file
// given with --config. Flags set explicitly override the file.
//
// Example usage:
//
//	provisioning-server \
//	  --ca-crt /etc/nebula/ca.crt \
//	  --ca-key /etc/nebula/ca.key \
//	  --node-config /etc/nebula/node.yml \
//	  --work-dir /var/lib/overlay/nodes \
//	  --network 10.42.0.0/16 --offset 10 \
//	  --archive file:///var/lib/overlay/archive \
//	  --listen-addr 0.0.0.0:8080
//
// Allocation state is kept in memory only. After a restart, pick an --offset
// beyond the addresses already issued.
package main
