package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcapfile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0, cfg.Layers)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "layers: 2\nworkers: 4\nlog_level: debug\npace_delay: 20ms\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Layers)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20*time.Millisecond, cfg.PaceDelay)
	assert.Equal(t, ":8080", cfg.Addr, "unset keys keep their default")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "layers: [1"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "layers: -1\n"))
	assert.ErrorContains(t, err, "layers")

	_, err = Load(writeConfig(t, "log_level: loud\n"))
	assert.ErrorContains(t, err, "log_level")
}

func TestMergeFlags(t *testing.T) {
	fromFile := Default()
	fromFile.Layers = 2
	fromFile.Addr = ":9000"

	flags := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--layers", "3", "-w", "2"}))

	fromFile.Merge(flags, fs)
	assert.Equal(t, 3, fromFile.Layers)
	assert.Equal(t, 2, fromFile.Workers)
	assert.Equal(t, ":9000", fromFile.Addr)
}

func TestApplyLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())

	cfg := Default()
	cfg.LogLevel = "warn"
	require.NoError(t, cfg.ApplyLogging())
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	cfg.LogLevel = "nope"
	assert.Error(t, cfg.ApplyLogging())
}
