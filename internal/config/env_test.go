package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	config.ApplyEnv(cfg, lookupFrom(map[string]string{
		config.EnvPortLegacy:    "6000",
		config.EnvFactor:        "natural_gas",
		config.EnvAnthropicKey:  "sk-test",
		config.EnvDatabaseURL:   "postgres://localhost/iot",
		config.EnvInfluxURL:     "http://influx:8086",
		config.EnvInfluxBucket:  "sensors",
		config.EnvKafkaBrokers:  "a:9092, b:9092,",
		config.EnvFlushInterval: "2s",
		config.EnvLogLevel:      "debug",
	}))

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "natural_gas", cfg.Carbon.Factor)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "postgres://localhost/iot", cfg.Database.URL)
	assert.True(t, cfg.Influx.Enabled())
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Kafka.FlushInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnv_PortPrecedence(t *testing.T) {
	cfg := config.Default()
	config.ApplyEnv(cfg, lookupFrom(map[string]string{
		config.EnvPortLegacy: "6000",
		config.EnvPort:       "7000",
	}))
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestApplyEnv_IgnoresUnparsable(t *testing.T) {
	cfg := config.Default()
	config.ApplyEnv(cfg, lookupFrom(map[string]string{
		config.EnvPort:          "not-a-port",
		config.EnvFlushInterval: "soon",
		config.EnvFactor:        "",
	}))
	assert.Equal(t, 5002, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Kafka.FlushInterval)
	assert.Equal(t, "korea_grid", cfg.Carbon.Factor)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "GREENREPORT_DOTENV_TEST"
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0600))

	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	require.NoError(t, config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv(key))

	t.Setenv(key, "from-env")
	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv(key), "existing variables win")
}
