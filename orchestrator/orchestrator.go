package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/ruteri/overlay-provisioning-backend/ippool"
	"github.com/ruteri/overlay-provisioning-backend/packaging"
	"inet.af/netaddr"
)

// Orchestrator provisions one node at a time: it allocates an address, has
// the issuer sign credentials into a fresh node directory, adds the shared
// configuration and packages the directory.
//
// Orchestrator is not safe for concurrent use. Wrap it in a pipeline.Pipeline
// to serve concurrent callers.
type Orchestrator struct {
	cfg     Config
	issuer  interfaces.IdentityIssuer
	pool    *ippool.Pool
	archive interfaces.StorageBackend
	log     *slog.Logger
}

type Option func(*Orchestrator)

// WithArchive stores every packaged bundle in backend. Archive failures are
// logged and do not fail provisioning.
func WithArchive(backend interfaces.StorageBackend) Option {
	return func(o *Orchestrator) {
		o.archive = backend
	}
}

// New checks that the CA certificate, CA key and shared configuration exist
// outside the work directory and that the shared configuration is valid YAML. A nil pool is replaced by
// the default range.
func New(cfg Config, iss interfaces.IdentityIssuer, pool *ippool.Pool, log *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if iss == nil {
		return nil, errors.New("identity issuer is required")
	}

	sharedConfig, err := loadSharedConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	if pool == nil {
		pool, err = ippool.NewFromCIDR(DefaultNetwork, DefaultOffset)
		if err != nil {
			return nil, fmt.Errorf("failed to build default address pool: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.WorkDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	o := &Orchestrator{
		cfg:    cfg,
		issuer: iss,
		pool:   pool,
		log:    log,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.archive != nil {
		o.archiveContent(context.Background(), sharedConfig, interfaces.ConfigType)
	}

	log.Info("Orchestrator ready",
		slog.String("range", pool.Range().String()),
		slog.String("workDir", cfg.WorkDir),
		slog.String("failurePolicy", cfg.FailurePolicy.String()))

	return o, nil
}

// Pool returns the address pool the orchestrator allocates from.
func (o *Orchestrator) Pool() *ippool.Pool {
	return o.pool
}

// ProvisionNode issues and packages a bundle for name.
//
// Errors:
//   - ErrInvalidNodeName if name cannot be used as a directory name, or names
//     something in the work directory that is not a node directory
//   - ErrAddressPoolExhausted if no address is left
//   - an *interfaces.IssuanceError for failures after allocation; the
//     address stays consumed unless the failure policy is RecycleOnFailure
func (o *Orchestrator) ProvisionNode(ctx context.Context, name string) (*interfaces.NodeBundle, error) {
	start := time.Now()

	nodeName, err := interfaces.NewNodeName(name)
	if err != nil {
		return nil, err
	}
	if err := o.checkNodeDir(nodeName); err != nil {
		return nil, err
	}

	ip, ok := o.pool.Allocate()
	if !ok {
		o.log.Warn("Address pool exhausted", slog.String("node", name))
		return nil, interfaces.ErrAddressPoolExhausted
	}
	address := o.pool.Range().WithPrefixLen(ip)

	raw, stage, err := o.issue(ctx, nodeName, address)
	if err != nil {
		o.handleFailure(nodeName, address, stage, err)
		return nil, &interfaces.IssuanceError{
			Name:    nodeName,
			Address: address.String(),
			Stage:   stage,
			Err:     err,
		}
	}

	bundle := &interfaces.NodeBundle{
		Name:    nodeName,
		Address: address,
		Encoded: packaging.EncodeArchive(raw),
		ID:      interfaces.ComputeID(raw),
	}

	if o.archive != nil {
		o.archiveContent(ctx, raw, interfaces.BundleType)
	}

	o.log.Info("Provisioned node",
		slog.String("node", name),
		slog.String("address", address.String()),
		slog.String("bundleID", bundle.ID.String()),
		slog.Duration("duration", time.Since(start)))

	return bundle, nil
}

// checkNodeDir refuses names whose staging path exists as anything other than
// a plain directory.
func (o *Orchestrator) checkNodeDir(name interfaces.NodeName) error {
	info, err := os.Lstat(filepath.Join(o.cfg.WorkDir, name.String()))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect node directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %q is not a node directory", interfaces.ErrInvalidNodeName, name)
	}
	return nil
}

func (o *Orchestrator) issue(ctx context.Context, name interfaces.NodeName, address netaddr.IPPrefix) ([]byte, interfaces.IssuanceStage, error) {
	nodeDir := filepath.Join(o.cfg.WorkDir, name.String())

	if err := os.RemoveAll(nodeDir); err != nil {
		return nil, interfaces.StageStage, fmt.Errorf("failed to remove stale node directory: %w", err)
	}
	if err := os.Mkdir(nodeDir, 0700); err != nil {
		return nil, interfaces.StageStage, fmt.Errorf("failed to create node directory: %w", err)
	}

	err := o.issuer.Issue(ctx, interfaces.IdentityRequest{
		CACertPath: o.cfg.CACertPath,
		CAKeyPath:  o.cfg.CAKeyPath,
		Name:       name,
		Address:    address,
		OutCert:    filepath.Join(nodeDir, CertFileName),
		OutKey:     filepath.Join(nodeDir, KeyFileName),
	})
	if err != nil {
		return nil, interfaces.StageSign, err
	}

	if err := copyFile(o.cfg.ConfigPath, filepath.Join(nodeDir, filepath.Base(o.cfg.ConfigPath))); err != nil {
		return nil, interfaces.StageConfig, err
	}

	raw, err := packaging.PackDirectory(nodeDir)
	if err != nil {
		return nil, interfaces.StagePackage, err
	}

	return raw, "", nil
}

func (o *Orchestrator) handleFailure(name interfaces.NodeName, address netaddr.IPPrefix, stage interfaces.IssuanceStage, cause error) {
	log := o.log.With(
		slog.String("node", name.String()),
		slog.String("address", address.String()),
		slog.String("stage", string(stage)))

	if o.cfg.FailurePolicy != RecycleOnFailure {
		log.Error("Issuance failed, address stays allocated", "err", cause)
		return
	}

	if err := o.pool.Recycle(address.IP()); err != nil {
		log.Error("Issuance failed and address could not be recycled", "err", cause, "recycleErr", err)
		return
	}
	log.Error("Issuance failed, address recycled", "err", cause)
}

func (o *Orchestrator) archiveContent(ctx context.Context, data []byte, contentType interfaces.ContentType) {
	id, err := o.archive.Store(ctx, data, contentType)
	if err != nil {
		o.log.Warn("Failed to archive content",
			slog.String("backend", o.archive.Name()),
			slog.String("contentType", contentType.String()),
			"err", err)
		return
	}
	o.log.Debug("Archived content",
		slog.String("backend", o.archive.Name()),
		slog.String("contentType", contentType.String()),
		slog.String("contentID", id.String()))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
