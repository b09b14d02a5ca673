package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"gopkg.in/yaml.v3"
)

// DefaultNetwork and DefaultOffset give the range used when no pool is
// supplied. Offset 1 makes 192.168.0.1 the first address handed out.
const (
	DefaultNetwork = "192.168.0.2/24"
	DefaultOffset  = 1
)

// Certificate and key file names inside a node directory.
const (
	CertFileName = "host.crt"
	KeyFileName  = "host.key"
)

// FailurePolicy decides what happens to the address of a failed issuance.
type FailurePolicy int

const (
	// LeakOnFailure keeps the address of a failed attempt out of circulation.
	LeakOnFailure FailurePolicy = iota
	// RecycleOnFailure returns the address of a failed attempt to the pool.
	RecycleOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case LeakOnFailure:
		return "leak"
	case RecycleOnFailure:
		return "recycle"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy accepts "leak" and "recycle". The empty string is
// LeakOnFailure.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "leak":
		return LeakOnFailure, nil
	case "recycle":
		return RecycleOnFailure, nil
	default:
		return LeakOnFailure, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Config locates the CA material, the shared node configuration and the
// directory node bundles are staged in. WorkDir must not contain the input
// files.
type Config struct {
	CACertPath    string
	CAKeyPath     string
	ConfigPath    string
	WorkDir       string
	FailurePolicy FailurePolicy
}

func (c Config) validate() error {
	for _, p := range []string{c.CACertPath, c.CAKeyPath, c.ConfigPath} {
		if p == "" {
			return fmt.Errorf("%w: empty path", interfaces.ErrPathNotExist)
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", interfaces.ErrPathNotExist, p)
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	if c.WorkDir == "" {
		return errors.New("work directory is required")
	}

	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to resolve work directory: %w", err)
	}
	for _, p := range []string{c.CACertPath, c.CAKeyPath, c.ConfigPath} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		if isWithin(workDir, abs) {
			return fmt.Errorf("%w: %s is inside %s", interfaces.ErrUnsafeWorkDir, p, c.WorkDir)
		}
	}
	return nil
}

// isWithin reports whether path is dir itself or lies below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// loadSharedConfig reads the shared node configuration and checks that it
// parses as YAML.
func loadSharedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shared config: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidSharedConfig, path, err)
	}
	return data, nil
}
