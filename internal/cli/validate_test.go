package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: leveldb\n  path: /var/lib/perks/state\njournal:\n  path: \"\"\n")

	stdout, _, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Configuration valid")
	assert.Contains(t, stdout, "store:   leveldb /var/lib/perks/state")
	assert.Contains(t, stdout, "journal: (disabled)")
}

func TestValidateCommand_Defaults(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, "sqlite", resp.Data.Config.Store.Backend)
	assert.Equal(t, "perks.db", resp.Data.Config.Store.Path)
	assert.Equal(t, 100, resp.Data.Config.Log.MaxSizeMB)
}

func TestValidateCommand_FlagOverrides(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "--backend", "bbolt", "--db", "/tmp/perks.bolt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "store:   bbolt /tmp/perks.bolt")
}

func TestValidateCommand_SchemaViolation(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: redis\n")

	stdout, _, err := executeCommand(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "store.backend", resp.Data.Errors[0].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestValidateCommand_UnknownField(t *testing.T) {
	path := writeConfig(t, "engine:\n  workers: 4\n")

	stdout, _, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, _, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
