package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
store: badger
server:
  addr: ":9090"
defaults:
  nsweeps: 10
  smax: 6
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreBadger, cfg.Store)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Defaults.NSweeps)
	assert.Equal(t, 6, cfg.Defaults.SMax)

	// untouched keys keep their defaults
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, Default().Defaults.MaxEvaluations, cfg.Defaults.MaxEvaluations)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "log_level: loud", "invalid log_level"},
		{"store", "store: postgres", "invalid store"},
		{"empty data dir", "data_dir: \"\"", "data_dir"},
		{"empty addr", "server:\n  addr: \"\"", "server.addr"},
		{"nsweeps", "defaults:\n  nsweeps: 0", "nsweeps"},
		{"max evaluations", "defaults:\n  max_evaluations: -1", "max_evaluations"},
		{"local search", "defaults:\n  local_search_depth: -2", "local_search_depth"},
		{"gamma", "defaults:\n  gamma: -0.5", "gamma"},
		{"smax", "defaults:\n  smax: 1", "smax"},
		{"bad yaml", "defaults: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcsbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/runs\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs", cfg.DataDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
