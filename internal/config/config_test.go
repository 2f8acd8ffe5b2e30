package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LIVE_PING_INTERVAL", "")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, RelayLocal, cfg.LiveRelay)
	assert.Equal(t, 3*time.Second, cfg.LivePingInterval)
	assert.Equal(t, 7*time.Second, cfg.LivePingTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, _, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, _, err := LoadConfig()
	require.Error(t, err)
}

func TestGetDuration_Milliseconds(t *testing.T) {
	t.Setenv("LIVE_PING_TIMEOUT", "7000")
	assert.Equal(t, 7*time.Second, getDuration("LIVE_PING_TIMEOUT", time.Second))

	t.Setenv("LIVE_PING_TIMEOUT", "bogus")
	assert.Equal(t, time.Second, getDuration("LIVE_PING_TIMEOUT", time.Second))
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@h/db"}
	assert.Equal(t, "postgres://u:p@h/db", cfg.PostgresDSN())

	cfg = &Config{DBHost: "h", DBUser: "u", DBPassword: "p", DBName: "db", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=db port=5432 sslmode=disable", cfg.PostgresDSN())
}

func TestLoadConfig_WorkerCountAcceptsZero(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("WORKER_COUNT", "0")
	cfg, _, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.WorkerCount)

	t.Setenv("WORKER_COUNT", "-3")
	cfg, _, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerCount)
}
