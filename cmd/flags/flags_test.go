package flags

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/overlay-provisioning-backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runLoadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	var cfg *config.Config
	app := &cli.App{
		Name:  "test",
		Flags: append(append([]cli.Flag{}, ServerFlags...), CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			var err error
			cfg, err = LoadConfig(cCtx)
			return err
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	require.NotNil(t, cfg)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := runLoadConfig(t)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "192.168.0.2/24", cfg.Node.Network)
	assert.Equal(t, "./nodes", cfg.Node.WorkDir)
	assert.Equal(t, uint64(1), *cfg.Node.Offset)
	assert.Equal(t, "nebula-cert", cfg.Issuer.Binary)
	assert.Empty(t, cfg.Archive)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: 0.0.0.0:9000
node:
  network: 10.1.0.0/16
  offset: 5
  failure_policy: recycle
`), 0600))

	cfg := runLoadConfig(t,
		"--config", path,
		"--network", "10.2.0.0/16",
		"--archive", "file:///tmp/a",
		"--archive", "s3://bucket/prefix",
		"--drain-duration", "3s",
		"--queue-size", "4",
	)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "10.2.0.0/16", cfg.Node.Network)
	assert.Equal(t, uint64(5), *cfg.Node.Offset)
	assert.Equal(t, "recycle", cfg.Node.FailurePolicy)
	assert.Equal(t, []string{"file:///tmp/a", "s3://bucket/prefix"}, cfg.Archive)
	assert.Equal(t, 3*time.Second, cfg.Server.DrainDuration.Duration())
	assert.Equal(t, 4, cfg.Pipeline.QueueSize)

	serverCfg := ConfigureServer(cfg, nil)
	assert.Equal(t, "0.0.0.0:9000", serverCfg.ListenAddr)
	assert.Equal(t, 3*time.Second, serverCfg.DrainDuration)
}
