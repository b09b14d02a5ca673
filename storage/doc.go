// Package storage archives issued node bundles in content-addressed storage.
//
// Every backend implements interfaces.StorageBackend. Content is identified
// by the SHA-256 hash of its bytes and kept in a per-type namespace
// ("bundles" for packaged node bundles, "configs" for shared configuration
// snapshots):
//
//   - FileBackend: local directory, <base>/<type>s/<id>
//   - S3Backend: S3 compatible bucket, <prefix>/<type>s/<id>
//   - IPFSBackend: MFS of an IPFS node, <root>/<type>s/<id>
//   - VaultBackend: KV v2 secret engine, <mount>/data/<path>/<type>s/<id>
//
// # Location URIs
//
// Backends are created from URIs by StorageBackendFactory:
//
//	file:///var/lib/overlay/bundles
//	s3://ACCESS:SECRET@bucket/prefix?region=eu-west-1&endpoint=http://minio:9000&path-style=true
//	ipfs://127.0.0.1:5001/overlay?timeout=10s
//	vault://vault.internal:8200/secret/overlay?tls=false
//
// Several URIs can be combined with CreateMultiBackend. The resulting
// MultiStorageBackend stores to every available backend and succeeds when at
// least one accepted the content. Fetch returns the first hit.
//
// Bundles carry private key material. The S3 backend writes private,
// server-side encrypted objects and the file backend writes 0600 files.
package storage
