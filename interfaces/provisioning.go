package interfaces

import (
	"context"
	"fmt"
	"regexp"

	"inet.af/netaddr"
)

const maxNodeNameLength = 64

var nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NodeName identifies a node joining the overlay. It is used verbatim as the
// name of the node's staging directory and as the certificate name.
type NodeName string

// NewNodeName validates a caller-supplied node name.
func NewNodeName(raw string) (NodeName, error) {
	if raw == "" || raw == "." || raw == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidNodeName, raw)
	}
	if len(raw) > maxNodeNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidNodeName, maxNodeNameLength)
	}
	if !nodeNamePattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9._-]", ErrInvalidNodeName, raw)
	}
	return NodeName(raw), nil
}

func (n NodeName) String() string {
	return string(n)
}

// NodeBundle is the transportable result of a successful provisioning call.
type NodeBundle struct {
	// Name is the node the bundle was issued for.
	Name NodeName

	// Address is the overlay address assigned to the node, with the prefix
	// length of the pool's network.
	Address netaddr.IPPrefix

	// Encoded is the base64 text encoding of the tar.gz archive holding the
	// node directory.
	Encoded string

	// ID is the content identifier of the raw archive.
	ID ContentID
}

// IdentityRequest describes a single invocation of the issuance executable.
type IdentityRequest struct {
	CACertPath string
	CAKeyPath  string
	Name       NodeName
	Address    netaddr.IPPrefix
	OutCert    string
	OutKey     string
}

// IdentityIssuer produces signed credential material on disk for a node.
type IdentityIssuer interface {
	// Issue signs a certificate for req.Name and req.Address and writes the
	// certificate and key to req.OutCert and req.OutKey.
	Issue(ctx context.Context, req IdentityRequest) error
}

// NodeProvisioner turns a node name into a packaged bundle.
//
// Implementations are not required to be safe for concurrent use; the
// pipeline package serializes callers in front of one.
type NodeProvisioner interface {
	ProvisionNode(ctx context.Context, name string) (*NodeBundle, error)
}
