package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	log := SetupLogger(&LoggingOpts{Service: ServiceName, Version: "test"})
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))

	debug := SetupLogger(&LoggingOpts{Debug: true, JSON: true})
	assert.True(t, debug.Enabled(context.Background(), slog.LevelDebug))
}
