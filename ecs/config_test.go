package ecs

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("AllFields", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader(`
subscribe_max_retries: 5
tick_interval: 50ms
log_level: debug
`))
		require.NoError(t, err)
		assert.Equal(t, 5, config.SubscribeMaxRetries)
		assert.Equal(t, 50*time.Millisecond, config.TickInterval)

		level, err := config.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, level)
	})

	t.Run("MissingFieldsKeepDefaults", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader("log_level: warn\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultSubscribeMaxRetries, config.SubscribeMaxRetries)
		assert.Equal(t, DefaultConfig().TickInterval, config.TickInterval)
		assert.Equal(t, "warn", config.LogLevel)
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		config, err := LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("subscribe_retries: 2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse world config")
	})

	t.Run("NegativeRetriesRejected", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("subscribe_max_retries: -1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscribe_max_retries")
	})

	t.Run("BadLogLevelRejected", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("log_level: loud\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_level")
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "world.yaml")
		require.NoError(t, os.WriteFile(path, []byte("subscribe_max_retries: 1\n"), 0o600))

		config, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, config.SubscribeMaxRetries)

		_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
