package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the resolver at files under a temp dir and clears POLR_*
// variables inherited from the caller's shell.
func isolate(t *testing.T) (dir string, opts ResolveOptions) {
	t.Helper()
	for _, k := range []string{EnvDBPath, EnvSSDRoot, EnvMaxLen, EnvWorkers, EnvLogLevel, EnvLogFormat} {
		t.Setenv(k, "")
	}
	dir = t.TempDir()
	return dir, ResolveOptions{
		ConfigPath: filepath.Join(dir, "config.yaml"),
		EnvFile:    filepath.Join(dir, ".env"),
	}
}

func TestResolveConfig_Defaults(t *testing.T) {
	_, opts := isolate(t)

	resolved, err := ResolveConfig(opts)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".polr", "db", "pm_speeches.db"), resolved.DBPath.Value)
	assert.Equal(t, SourceDefault, resolved.DBPath.Source)
	assert.Equal(t, "600", resolved.MaxLength.Value)
	assert.Equal(t, "4", resolved.Workers.Value)
	assert.Equal(t, "info", resolved.LogLevel.Value)
	assert.Equal(t, "text", resolved.LogFormat.Value)
	assert.Empty(t, resolved.EnvFile)

	n, err := resolved.MaxLengthInt()
	require.NoError(t, err)
	assert.Equal(t, 600, n)
}

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	dir, opts := isolate(t)
	cfg := `db_path: /data/from-config.db
max_length: 400
workers: 2
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("POLR_MAX_LEN=300\nPOLR_WORKERS=3\n"), 0o600))
	t.Setenv(EnvWorkers, "8")

	opts.CLIDBPath = filepath.Join(dir, "cli.db")
	resolved, err := ResolveConfig(opts)
	require.NoError(t, err)

	assert.Equal(t, SourceCLI, resolved.DBPath.Source)
	assert.Equal(t, filepath.Join(dir, "cli.db"), resolved.DBPath.Value)

	assert.Equal(t, "300", resolved.MaxLength.Value)
	assert.Equal(t, SourceDotEnv, resolved.MaxLength.Source)

	assert.Equal(t, "8", resolved.Workers.Value)
	assert.Equal(t, SourceEnv, resolved.Workers.Source)

	assert.Equal(t, "debug", resolved.LogLevel.Value)
	assert.Equal(t, SourceConfig, resolved.LogLevel.Source)
	assert.Equal(t, opts.ConfigPath, resolved.LogLevel.From)
	assert.Equal(t, opts.EnvFile, resolved.EnvFile)
}

func TestResolveConfig_SSDRoot(t *testing.T) {
	_, opts := isolate(t)
	t.Setenv(EnvSSDRoot, "/Volumes/SSD")

	resolved, err := ResolveConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/Volumes/SSD", "db", "pm_speeches.db"), resolved.DBPath.Value)
	assert.Equal(t, EnvSSDRoot, resolved.DBPath.From)

	t.Setenv(EnvDBPath, "/tmp/explicit.db")
	resolved, err = ResolveConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.db", resolved.DBPath.Value)
}

func TestResolveConfig_ExpandsHome(t *testing.T) {
	_, opts := isolate(t)
	opts.CLIDBPath = "~/polr.db"

	resolved, err := ResolveConfig(opts)
	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "polr.db"), resolved.DBPath.Value)
}

func TestResolveConfig_InvalidFile(t *testing.T) {
	_, opts := isolate(t)
	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte("log: [unclosed\n"), 0o600))

	_, err := ResolveConfig(opts)
	assert.Error(t, err)
}

func TestResolveConfig_DotEnvDoesNotTouchProcessEnv(t *testing.T) {
	_, opts := isolate(t)
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("POLR_LOG_LEVEL=warn\n"), 0o600))

	resolved, err := ResolveConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "warn", resolved.LogLevel.Value)
	assert.Empty(t, os.Getenv(EnvLogLevel))
}

func TestPositiveIntRejectsBadValues(t *testing.T) {
	for _, v := range []string{"0", "-5", "abc", ""} {
		r := ResolvedConfig{Workers: ResolvedValue{Value: v, Source: SourceCLI, From: "--workers"}}
		_, err := r.WorkersInt()
		assert.Error(t, err, v)
	}
}
