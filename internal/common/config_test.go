package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	path := writeConfig(t, "cascade.toml", `
[gitlab]
base_url = "https://gitlab.example.com/api/v4"
token = "secret"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 20, config.Executor.MaxAttempts)
	assert.Equal(t, 10*time.Second, config.Executor.Backoff)
	assert.Equal(t, 10*time.Second, config.Executor.Timeout)
	assert.Equal(t, "@every 1m", config.Reconciler.Schedule)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFiles_Overrides(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[gitlab]
base_url = "https://gitlab.example.com/api/v4"
token = "secret"

[executor]
max_attempts = 5
backoff = "100ms"

[reconciler]
schedule = "@every 30s"
projects = ["group/app"]
`)
	override := writeConfig(t, "override.toml", `
[executor]
max_attempts = 3
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	// Later files override earlier ones; untouched values survive.
	assert.Equal(t, 3, config.Executor.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, config.Executor.Backoff)
	assert.Equal(t, []string{"group/app"}, config.Reconciler.Projects)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "cascade.toml", `
[gitlab]
base_url = "https://gitlab.example.com/api/v4"
token = "from-file"
`)

	t.Setenv("CASCADE_GITLAB_TOKEN", "from-env")
	t.Setenv("CASCADE_LOG_LEVEL", "debug")
	t.Setenv("CASCADE_RECONCILER_PROJECTS", "group/app, group/lib")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.GitLab.Token)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, []string{"group/app", "group/lib"}, config.Reconciler.Projects)
}

func TestLoadFromFiles_MissingToken(t *testing.T) {
	path := writeConfig(t, "cascade.toml", `
[gitlab]
base_url = "https://gitlab.example.com/api/v4"
`)

	_, err := LoadFromFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/cascade.toml")
	require.Error(t, err)
}
