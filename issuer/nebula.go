// Package issuer invokes the external identity-issuance executable that signs
// node certificates with the overlay CA.
package issuer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
)

// DefaultBinary is looked up in PATH when no explicit executable is configured.
const DefaultBinary = "nebula-cert"

// NebulaCertIssuer runs `nebula-cert sign` for every issuance request.
type NebulaCertIssuer struct {
	binary string
	log    *slog.Logger
}

// NewNebulaCertIssuer resolves binary (a path or a name looked up in PATH).
// An empty binary selects DefaultBinary.
func NewNebulaCertIssuer(binary string, log *slog.Logger) (*NebulaCertIssuer, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("could not find issuance executable %q: %w", binary, err)
	}
	return &NebulaCertIssuer{binary: resolved, log: log}, nil
}

// Args returns the command line for req, without the executable.
func Args(req interfaces.IdentityRequest) []string {
	return []string{
		"sign",
		"-ca-crt", req.CACertPath,
		"-ca-key", req.CAKeyPath,
		"-name", req.Name.String(),
		"-ip", req.Address.String(),
		"-out-crt", req.OutCert,
		"-out-key", req.OutKey,
	}
}

// Issue runs the executable and succeeds only if it exits with status zero
// and both output files exist. The combined output of a failed run is kept
// in the returned error.
func (i *NebulaCertIssuer) Issue(ctx context.Context, req interfaces.IdentityRequest) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, i.binary, Args(req)...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		i.log.Debug("Issuance executable failed",
			slog.String("name", req.Name.String()),
			slog.String("address", req.Address.String()),
			slog.String("output", msg),
			"err", err)
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", i.binary, err, msg)
		}
		return fmt.Errorf("%s: %w", i.binary, err)
	}

	for _, p := range []string{req.OutCert, req.OutKey} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s exited successfully but did not write %s", i.binary, p)
			}
			return fmt.Errorf("could not stat %s: %w", p, err)
		}
	}

	i.log.Debug("Issued node identity",
		slog.String("name", req.Name.String()),
		slog.String("address", req.Address.String()),
		slog.Duration("duration", time.Since(start)))
	return nil
}
