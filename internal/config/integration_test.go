package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/config"
)

func TestGlobalConfig(t *testing.T) {
	isolateHome(t)
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)

	first := config.GetGlobalConfig()
	require.NotNil(t, first)
	assert.Same(t, first, config.GetGlobalConfig())
	assert.Equal(t, first.Logging.Level, config.GetLogLevel())

	replacement := config.Default()
	replacement.Logging.Level = "error"
	config.SetGlobalConfig(replacement)
	assert.Same(t, replacement, config.GetGlobalConfig())
	assert.Equal(t, "error", config.GetLoggingConfig().Level)
}

func TestNew_ReadsHomeConfig(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".greenreport")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("carbon:\n  factor: coal\n"), 0600))

	cfg := config.New()
	assert.Equal(t, "coal", cfg.Carbon.Factor)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Path())
}

func TestEnsureSubDirs(t *testing.T) {
	home := isolateHome(t)
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)

	cfg := config.Default()
	cfg.Logging.File = filepath.Join(home, "logs", "greenreport.log")
	config.SetGlobalConfig(cfg)

	require.NoError(t, config.EnsureSubDirs())
	assert.DirExists(t, filepath.Join(home, ".greenreport"))
	assert.DirExists(t, filepath.Join(home, ".greenreport", "reports"))
	assert.DirExists(t, filepath.Join(home, "logs"))
}

func TestGetConfigDir_Default(t *testing.T) {
	t.Setenv(config.EnvHome, "")
	t.Setenv("HOME", "/home/tester")
	dir, err := config.GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".greenreport"), dir)
}
