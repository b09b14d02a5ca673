package api

import (
	"context"
)

// Response headers set on a successful POST /new/node/{name}.
const (
	// NodeAddressHeader carries the overlay address assigned to the node,
	// in address/prefixlen notation.
	NodeAddressHeader = "X-Node-Address"

	// BundleIDHeader carries the hex SHA-256 of the raw tar.gz archive.
	BundleIDHeader = "X-Bundle-Id"
)

// NewNodePath is the route bundles are requested on.
const NewNodePath = "/new/node/{name}"

// BundleProvider requests node bundles from a provisioning server.
type BundleProvider interface {
	RequestBundle(ctx context.Context, name string) (*BundleResponse, error)
}

// BundleResponse is a bundle as returned over HTTP.
type BundleResponse struct {
	// Name of the node the bundle was issued for.
	Name string

	// Address is the assigned overlay address, e.g. "192.168.0.1/24".
	Address string

	// BundleID is the hex content ID of the raw archive.
	BundleID string

	// Encoded is the base64 text of the tar.gz archive.
	Encoded string
}
