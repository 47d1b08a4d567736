package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		conf := MustLoad(writeConfig(t, "log-level: debug\n"))

		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "8080", conf.SocketPort)
		assert.Equal(t, StorageMemory, conf.Storage)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Zero(t, conf.Room.IdleTimeout)
		assert.Equal(t, 30*time.Second, conf.Room.SweepInterval)
		assert.False(t, conf.Room.EnforceMembership)
		assert.Equal(t, 32, conf.Room.SendBuffer)
	})

	t.Run("File values", func(t *testing.T) {
		conf := MustLoad(writeConfig(t, `
storage: redis
allowed-origins: ["https://play.example.com"]
redis:
  host: cache
  port: "6380"
room:
  idle-timeout: 5m
  enforce-membership: true
`))

		assert.Equal(t, StorageRedis, conf.Storage)
		assert.Equal(t, []string{"https://play.example.com"}, conf.AllowedOrigins)
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, 5*time.Minute, conf.Room.IdleTimeout)
		assert.True(t, conf.Room.EnforceMembership)
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("SOCKET_PORT", "7070")
		t.Setenv("ROOM_IDLE_TIMEOUT", "90s")

		conf := MustLoad(writeConfig(t, "socket-port: \"8080\"\n"))

		assert.Equal(t, "7070", conf.SocketPort)
		assert.Equal(t, 90*time.Second, conf.Room.IdleTimeout)
	})

	t.Run("Unknown storage", func(t *testing.T) {
		path := writeConfig(t, "storage: postgres\n")

		assert.Panics(t, func() { MustLoad(path) })
	})

	t.Run("Missing file", func(t *testing.T) {
		assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yml")) })
	})
}
