package packaging

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNodeDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "lighthouse-1")
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, data, 0600))
	}
	return dir
}

func TestPackDirectory_RoundTrip(t *testing.T) {
	binary := make([]byte, 4096)
	for i := range binary {
		binary[i] = byte(i * 7)
	}
	files := map[string][]byte{
		"host.crt":   []byte("-----BEGIN NEBULA CERTIFICATE-----\nabc\n-----END NEBULA CERTIFICATE-----\n"),
		"host.key":   []byte("-----BEGIN NEBULA X25519 PRIVATE KEY-----\nxyz\n-----END NEBULA X25519 PRIVATE KEY-----\n"),
		"config.yml": []byte("pki:\n  ca: /etc/nebula/ca.crt\n"),
		"extra/blob": binary,
		"empty":      {},
	}
	dir := writeNodeDir(t, files)

	raw, err := PackDirectory(dir)
	require.NoError(t, err)

	encoded := EncodeArchive(raw)
	decoded, err := DecodeArchive(encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	got, err := ReadArchive(decoded)
	require.NoError(t, err)
	require.Len(t, got, len(files))
	for name, data := range files {
		assert.Equal(t, data, got["lighthouse-1/"+name], name)
	}

	dest := t.TempDir()
	require.NoError(t, Unpack(decoded, dest))
	for name, data := range files {
		onDisk, err := os.ReadFile(filepath.Join(dest, "lighthouse-1", filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, data, onDisk, name)
	}

	info, err := os.Stat(filepath.Join(dest, "lighthouse-1", "host.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPackDirectory_Errors(t *testing.T) {
	_, err := PackDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	_, err = PackDirectory(f)
	assert.Error(t, err)
}

func TestDecodeArchive_Invalid(t *testing.T) {
	_, err := DecodeArchive("not base64 !!")
	assert.Error(t, err)

	_, err = ReadArchive([]byte("not gzip"))
	assert.Error(t, err)
}

func TestUnpack_RejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	payload := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape",
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dest := filepath.Join(t.TempDir(), "dest")
	err = Unpack(buf.Bytes(), dest)
	assert.ErrorIs(t, err, ErrUnsafeEntry)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOversizeEntry(t *testing.T) {
	big := bytes.Repeat([]byte{0x5a}, maxEntrySize+1024)
	dir := writeNodeDir(t, map[string][]byte{"big.bin": big})

	raw, err := PackDirectory(dir)
	require.NoError(t, err)

	_, err = ReadArchive(raw)
	assert.ErrorIs(t, err, ErrEntryTooLarge)

	dest := filepath.Join(t.TempDir(), "dest")
	err = Unpack(raw, dest)
	require.ErrorIs(t, err, ErrEntryTooLarge)
	assert.NoFileExists(t, filepath.Join(dest, "lighthouse-1", "big.bin"))
}

func TestUnpack_EntryAtLimit(t *testing.T) {
	exact := bytes.Repeat([]byte{0x01}, maxEntrySize)
	dir := writeNodeDir(t, map[string][]byte{"exact.bin": exact})

	raw, err := PackDirectory(dir)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "dest")
	require.NoError(t, Unpack(raw, dest))
	got, err := os.ReadFile(filepath.Join(dest, "lighthouse-1", "exact.bin"))
	require.NoError(t, err)
	assert.Equal(t, exact, got)
}
