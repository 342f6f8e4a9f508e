package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/host"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exproxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
database = " state.db "
log_level = "debug"
max_call_depth = 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "state.db", cfg.Database)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxCallDepth)
	assert.Equal(t, host.DefaultMaxCallsPerTx, cfg.MaxCallsPerTx, "unset key keeps default")
	assert.True(t, cfg.StrictStorage)
}

func TestLoad_StrictStorageCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, `strict_storage = false`))
	require.NoError(t, err)
	assert.False(t, cfg.StrictStorage)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "databse = \"x.db\"\nmax_depth = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
	assert.Contains(t, err.Error(), "max_depth")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", `log_level = "loud"`},
		{"zero depth", `max_call_depth = 0`},
		{"negative quota", `max_calls_per_tx = -1`},
		{"empty database", `database = ""`},
		{"malformed", `database = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestHostOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.HostOptions(nil), 3)
	assert.Len(t, cfg.HostOptions(slog.Default()), 4)
}
