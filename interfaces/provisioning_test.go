package interfaces

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeName(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{"lighthouse", true},
		{"node-1.eu_west", true},
		{"A", true},
		{strings.Repeat("n", 64), true},
		{strings.Repeat("n", 65), false},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc", false},
		{"a/b", false},
		{"with space", false},
		{"semi;colon", false},
		{"ünicode", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, err := NewNodeName(tt.raw)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.raw, name.String())
			} else {
				assert.ErrorIs(t, err, ErrInvalidNodeName)
			}
		})
	}
}

func TestIssuanceError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("provisioning: %w", &IssuanceError{
		Name:    "node-a",
		Address: "192.168.0.2/24",
		Stage:   StageSign,
		Err:     cause,
	})

	assert.ErrorIs(t, err, ErrIssuanceFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAddressPoolExhausted)

	var issuanceErr *IssuanceError
	require.ErrorAs(t, err, &issuanceErr)
	assert.Equal(t, StageSign, issuanceErr.Stage)
	assert.Contains(t, err.Error(), "node-a")
	assert.Contains(t, err.Error(), "192.168.0.2/24")
}

func TestContentID(t *testing.T) {
	id := ComputeID([]byte("bundle"))

	parsed, err := NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = NewContentIDFromHex("abcd")
	assert.Error(t, err)
}

func TestNewStorageBackendLocation(t *testing.T) {
	for _, uri := range []string{"file:///var/lib/bundles", "s3://bucket/prefix", "ipfs://127.0.0.1:5001/", "vault://vault:8200/secret/overlay"} {
		loc, err := NewStorageBackendLocation(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, uri, loc.String())
	}

	_, err := NewStorageBackendLocation("onchain://0x1234")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}
