package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcache/internal/config"
)

const goodConfig = `
store:
  mode: memory
  driver: sqlite
log_level: warn
lock_policy: per-resource
`

func validConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(writeFile(t, "qcache.yaml", goodConfig))
	require.NoError(t, err)
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	out, _, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid (13 categories, memory store, global lock)")
}

func TestValidate_ConfigFile(t *testing.T) {
	path := writeFile(t, "qcache.yaml", goodConfig)
	out, _, err := execute(t, "validate", "--config", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "sqlite", resp.Data.Driver)
	assert.Equal(t, "per-resource", resp.Data.LockPolicy)
	assert.Equal(t, 13, resp.Data.Categories)
}

func TestValidate_MissingConfigFile(t *testing.T) {
	out, _, err := execute(t, "validate", "--config", "/nonexistent/qcache.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	path := writeFile(t, "qcache.yaml", `
store:
  mode: carrier-pigeon
log_level: loud
lock_policy: sometimes
`)
	out, _, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "3 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "store:")
	assert.Contains(t, out, "log_level:")
	assert.Contains(t, out, "lock_policy:")
}

func TestValidate_BadCategoriesJSON(t *testing.T) {
	cats := writeFile(t, "categories.cue", `categories: X: identity: [{name: "Id", type: "DECIMAL"}]`)
	path := writeFile(t, "qcache.yaml", "categories_file: "+cats+"\n")

	out, _, err := execute(t, "validate", "--config", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeCategories, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Contains(t, resp.Data.Errors[0], "DECIMAL")
}

func TestValidate_EnvOverride(t *testing.T) {
	t.Setenv("QCACHE_LOCK_POLICY", "bogus")
	out, _, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "lock_policy")
}
