// Package packaging turns a staged node directory into a single transportable
// artifact and back. The artifact is a gzip compressed tar stream whose entries
// are prefixed with the directory name, encoded with standard base64 for use as
// an HTTP response body.
package packaging

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxEntrySize bounds a single extracted file; node bundles hold a certificate,
// a key and a configuration file.
const maxEntrySize = 16 << 20

var (
	ErrUnsafeEntry   = errors.New("archive entry escapes destination")
	ErrEntryTooLarge = errors.New("archive entry too large")
)

// PackDirectory archives dir. Entry names are relative to the parent of dir,
// so a directory "node-1" produces entries "node-1/", "node-1/host.crt", ...
func PackDirectory(dir string) ([]byte, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("could not stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	root := filepath.Clean(dir)
	base := filepath.Base(root)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := path.Join(base, filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return fmt.Errorf("unsupported file type at %s", p)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not archive %s: %w", dir, err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("could not finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("could not finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeArchive returns the transport encoding of an archive.
func EncodeArchive(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeArchive reverses EncodeArchive. Surrounding whitespace is ignored.
func DecodeArchive(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("could not decode archive: %w", err)
	}
	return raw, nil
}

// ReadArchive returns the regular files of an archive keyed by entry name.
func ReadArchive(raw []byte) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := walkArchive(raw, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Typeflag != tar.TypeReg {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
		if err != nil {
			return err
		}
		if len(data) > maxEntrySize {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, hdr.Name, maxEntrySize)
		}
		files[hdr.Name] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Unpack extracts an archive below dest. Entries that would land outside of
// dest are rejected with ErrUnsafeEntry.
func Unpack(raw []byte, dest string) error {
	dest = filepath.Clean(dest)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("could not create %s: %w", dest, err)
	}

	return walkArchive(raw, func(hdr *tar.Header, r io.Reader) error {
		target := filepath.Join(dest, filepath.FromSlash(hdr.Name))
		if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeEntry, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if hdr.Size > maxEntrySize {
				return fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, hdr.Name, maxEntrySize)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			n, err := io.Copy(f, io.LimitReader(r, maxEntrySize+1))
			if err == nil && n > maxEntrySize {
				err = fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, hdr.Name, maxEntrySize)
			}
			if err != nil {
				f.Close()
				os.Remove(target)
				return err
			}
			return f.Close()
		default:
			return fmt.Errorf("unsupported entry type %c for %s", hdr.Typeflag, hdr.Name)
		}
	})
}

func walkArchive(raw []byte, fn func(*tar.Header, io.Reader) error) error {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("could not open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read tar stream: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}
