package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointHome redirects the user home directory to a temp dir so path
// validation and default paths stay inside the test sandbox.
func pointHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// TestLoad_Defaults verifies a bare environment produces a valid config.
func TestLoad_Defaults(t *testing.T) {
	pointHome(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "embedded", cfg.VectorStore.Provider)
	assert.True(t, cfg.Recorder.Embedded)
	assert.Equal(t, "STEWARD_DECISIONS", cfg.Recorder.Stream)
	assert.Equal(t, 0.92, cfg.Learning.DedupThreshold)
	assert.Equal(t, 0.5, cfg.Learning.RuleStartConfidence)
	assert.Equal(t, "balanced", cfg.Autonomy.DefaultPreset)
	assert.Equal(t, "fixture", cfg.Portfolio.Mode)
	assert.NotEmpty(t, cfg.Knowledge.Path)
	assert.NotEmpty(t, cfg.VectorStore.Path)
}

// TestLoad_EnvOverrides verifies STEWARD_ variables beat file and defaults.
func TestLoad_EnvOverrides(t *testing.T) {
	pointHome(t)
	t.Setenv("STEWARD_SERVER_PORT", "9999")
	t.Setenv("STEWARD_SCHEDULER_TIME_BUCKET", "1h")
	t.Setenv("STEWARD_LOGGING_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "1h0m0s", cfg.Scheduler.TimeBucket.String())
	assert.Equal(t, "console", cfg.Logging.Format)
}

// TestLoad_ConfigFile verifies a YAML file in the allowed directory layers
// between defaults and environment.
func TestLoad_ConfigFile(t *testing.T) {
	home := pointHome(t)
	dir := filepath.Join(home, ".config", "steward")
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 4242\nembeddings:\n  model: custom-model\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	t.Setenv("STEWARD_SERVER_PORT", "5555")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env beats file; file beats defaults.
	assert.Equal(t, 5555, cfg.Server.Port)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
}

// TestLoad_RejectsInsecurePermissions verifies world-readable files fail.
func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	home := pointHome(t)
	dir := filepath.Join(home, ".config", "steward")
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4242\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

// TestLoad_RejectsPathOutsideAllowedDirs verifies path traversal protection.
func TestLoad_RejectsPathOutsideAllowedDirs(t *testing.T) {
	pointHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0600))

	_, err := Load(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

// TestValidate_CollectsAllProblems verifies validation reports every
// violation, not just the first.
func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "embedding dimension")
	assert.Contains(t, err.Error(), "knowledge store path")
}

// TestValidate_QdrantRequiresHost verifies backend-specific checks.
func TestValidate_QdrantRequiresHost(t *testing.T) {
	pointHome(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.VectorStore.Provider = "qdrant"
	cfg.VectorStore.Qdrant.Host = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant host required")
}
