package issuer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"
)

// writeFakeBinary creates an executable shell script standing in for nebula-cert.
func writeFakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins require a POSIX shell")
	}
	p := filepath.Join(t.TempDir(), "nebula-cert")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0755))
	return p
}

const signingScript = `
while [ $# -gt 0 ]; do
  case "$1" in
    -name) name="$2"; shift 2;;
    -ip) ip="$2"; shift 2;;
    -out-crt) crt="$2"; shift 2;;
    -out-key) key="$2"; shift 2;;
    *) shift;;
  esac
done
echo "crt $name $ip" > "$crt"
echo "key $name" > "$key"
`

func testRequest(t *testing.T) interfaces.IdentityRequest {
	dir := t.TempDir()
	return interfaces.IdentityRequest{
		CACertPath: "/etc/nebula/ca.crt",
		CAKeyPath:  "/etc/nebula/ca.key",
		Name:       "node-1",
		Address:    netaddr.MustParseIPPrefix("192.168.0.1/24"),
		OutCert:    filepath.Join(dir, "host.crt"),
		OutKey:     filepath.Join(dir, "host.key"),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArgs(t *testing.T) {
	req := testRequest(t)
	assert.Equal(t, []string{
		"sign",
		"-ca-crt", "/etc/nebula/ca.crt",
		"-ca-key", "/etc/nebula/ca.key",
		"-name", "node-1",
		"-ip", "192.168.0.1/24",
		"-out-crt", req.OutCert,
		"-out-key", req.OutKey,
	}, Args(req))
}

func TestNebulaCertIssuer_Success(t *testing.T) {
	bin := writeFakeBinary(t, signingScript)
	iss, err := NewNebulaCertIssuer(bin, testLogger())
	require.NoError(t, err)

	req := testRequest(t)
	require.NoError(t, iss.Issue(context.Background(), req))

	crt, err := os.ReadFile(req.OutCert)
	require.NoError(t, err)
	assert.Equal(t, "crt node-1 192.168.0.1/24\n", string(crt))
	key, err := os.ReadFile(req.OutKey)
	require.NoError(t, err)
	assert.Equal(t, "key node-1\n", string(key))
}

func TestNebulaCertIssuer_NonZeroExitKeepsOutput(t *testing.T) {
	bin := writeFakeBinary(t, "echo 'error while signing: ca key is encrypted' >&2\nexit 1\n")
	iss, err := NewNebulaCertIssuer(bin, testLogger())
	require.NoError(t, err)

	err = iss.Issue(context.Background(), testRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ca key is encrypted")
}

func TestNebulaCertIssuer_MissingOutputs(t *testing.T) {
	bin := writeFakeBinary(t, "exit 0\n")
	iss, err := NewNebulaCertIssuer(bin, testLogger())
	require.NoError(t, err)

	err = iss.Issue(context.Background(), testRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not write")
}

func TestNebulaCertIssuer_ContextCancelled(t *testing.T) {
	bin := writeFakeBinary(t, "sleep 5\n")
	iss, err := NewNebulaCertIssuer(bin, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, iss.Issue(ctx, testRequest(t)))
}

func TestNewNebulaCertIssuer_MissingBinary(t *testing.T) {
	_, err := NewNebulaCertIssuer(filepath.Join(t.TempDir(), "does-not-exist"), testLogger())
	assert.Error(t, err)
}
