package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/overlay-provisioning-backend/api"
	"github.com/ruteri/overlay-provisioning-backend/common"
	"github.com/ruteri/overlay-provisioning-backend/config"
	"github.com/urfave/cli/v2"
)

const envPrefix = "OVERLAY_"

func envVars(name string) []string {
	return []string{envPrefix + name}
}

func SetupLogger(opts config.LogConfig) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   opts.Debug,
		JSON:    opts.JSON,
		Service: opts.Service,
		Version: common.Version,
	})

	if opts.UID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cfg *config.Config, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cfg.Server.ListenAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.Server.EnablePprof,
		DrainDuration:            cfg.Server.DrainDuration.Duration(),
		GracefulShutdownDuration: cfg.Server.GracefulShutdownDuration.Duration(),
		ReadTimeout:              cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:             cfg.Server.WriteTimeout.Duration(),
	}
}

// LoadConfig reads the file named by --config, or the defaults, and applies
// every flag that was set explicitly on top of it.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := cCtx.String(ConfigFileFlag.Name); path != "" {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setString := func(flag *cli.StringFlag, dst *string) {
		if cCtx.IsSet(flag.Name) {
			*dst = cCtx.String(flag.Name)
		}
	}
	setBool := func(flag *cli.BoolFlag, dst *bool) {
		if cCtx.IsSet(flag.Name) {
			*dst = cCtx.Bool(flag.Name)
		}
	}

	setString(ListenAddrFlag, &cfg.Server.ListenAddr)
	setString(MetricsAddrFlag, &cfg.Server.MetricsAddr)
	setBool(PprofFlag, &cfg.Server.EnablePprof)
	if cCtx.IsSet(DrainDurationFlag.Name) {
		cfg.Server.DrainDuration = config.Duration(cCtx.Duration(DrainDurationFlag.Name))
	}

	setBool(LogJsonFlag, &cfg.Log.JSON)
	setBool(LogDebugFlag, &cfg.Log.Debug)
	setBool(LogUidFlag, &cfg.Log.UID)
	setString(LogServiceFlag, &cfg.Log.Service)

	setString(IssuerBinFlag, &cfg.Issuer.Binary)
	setString(CACertFlag, &cfg.Issuer.CACertPath)
	setString(CAKeyFlag, &cfg.Issuer.CAKeyPath)

	setString(NodeConfigFlag, &cfg.Node.ConfigPath)
	setString(WorkDirFlag, &cfg.Node.WorkDir)
	setString(NetworkFlag, &cfg.Node.Network)
	if cCtx.IsSet(OffsetFlag.Name) {
		offset := cCtx.Uint64(OffsetFlag.Name)
		cfg.Node.Offset = &offset
	}
	setString(RecyclePolicyFlag, &cfg.Node.RecyclePolicy)
	setString(FailurePolicyFlag, &cfg.Node.FailurePolicy)

	if cCtx.IsSet(QueueSizeFlag.Name) {
		cfg.Pipeline.QueueSize = cCtx.Int(QueueSizeFlag.Name)
	}
	if cCtx.IsSet(ArchiveFlag.Name) {
		cfg.Archive = cCtx.StringSlice(ArchiveFlag.Name)
	}

	return cfg, nil
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "YAML configuration file; flags set explicitly override its values",
	EnvVars: envVars("CONFIG"),
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: envVars("LISTEN_ADDR"),
}

var CACertFlag = &cli.StringFlag{
	Name:    "ca-crt",
	Value:   "./ca.crt",
	Usage:   "overlay CA certificate passed to the issuer",
	EnvVars: envVars("CA_CRT"),
}

var CAKeyFlag = &cli.StringFlag{
	Name:    "ca-key",
	Value:   "./ca.key",
	Usage:   "overlay CA private key passed to the issuer",
	EnvVars: envVars("CA_KEY"),
}

var NodeConfigFlag = &cli.StringFlag{
	Name:    "node-config",
	Value:   "./config.yml",
	Usage:   "shared node configuration copied into every bundle",
	EnvVars: envVars("NODE_CONFIG"),
}

var WorkDirFlag = &cli.StringFlag{
	Name:    "work-dir",
	Value:   "./nodes",
	Usage:   "directory node bundles are staged in, must not contain the CA or node config files",
	EnvVars: envVars("WORK_DIR"),
}

var IssuerBinFlag = &cli.StringFlag{
	Name:    "issuer-bin",
	Value:   "nebula-cert",
	Usage:   "certificate issuance executable, looked up in PATH if not a path",
	EnvVars: envVars("ISSUER_BIN"),
}

var NetworkFlag = &cli.StringFlag{
	Name:    "network",
	Value:   "192.168.0.2/24",
	Usage:   "overlay network addresses are allocated from",
	EnvVars: envVars("NETWORK"),
}

var OffsetFlag = &cli.Uint64Flag{
	Name:    "offset",
	Value:   1,
	Usage:   "index of the first address handed out within the network",
	EnvVars: envVars("OFFSET"),
}

var RecyclePolicyFlag = &cli.StringFlag{
	Name:    "recycle-policy",
	Value:   "permissive",
	Usage:   "address recycle policy: 'permissive' or 'strict'",
	EnvVars: envVars("RECYCLE_POLICY"),
}

var FailurePolicyFlag = &cli.StringFlag{
	Name:    "failure-policy",
	Value:   "leak",
	Usage:   "address handling on failed issuance: 'leak' or 'recycle'",
	EnvVars: envVars("FAILURE_POLICY"),
}

var QueueSizeFlag = &cli.IntFlag{
	Name:    "queue-size",
	Value:   128,
	Usage:   "number of provisioning requests that may wait for the worker",
	EnvVars: envVars("QUEUE_SIZE"),
}

var ArchiveFlag = &cli.StringSliceFlag{
	Name:    "archive",
	Usage:   "storage backend URI issued bundles are archived to (file://, s3://, ipfs://, vault://), repeatable",
	EnvVars: envVars("ARCHIVE"),
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: envVars("LOG_JSON"),
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: envVars("LOG_DEBUG"),
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.ServiceName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainDurationFlag = &cli.DurationFlag{
	Name:  "drain-duration",
	Value: 45 * time.Second,
	Usage: "time to stay up but not ready before shutting down",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics, empty to disable",
	EnvVars: envVars("METRICS_ADDR"),
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainDurationFlag,
	MetricsAddrFlag,
}

var ServerFlags = []cli.Flag{
	ConfigFileFlag,
	ListenAddrFlag,
	CACertFlag,
	CAKeyFlag,
	NodeConfigFlag,
	WorkDirFlag,
	IssuerBinFlag,
	NetworkFlag,
	OffsetFlag,
	RecyclePolicyFlag,
	FailurePolicyFlag,
	QueueSizeFlag,
	ArchiveFlag,
}
