package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scenario_a_debounced_flush")
	assert.Contains(t, out, "4 passed, 0 failed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "--format", "json", "test", scenariosDir, "--filter", "scenario_b")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   testReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "scenario_b_emergency_flush", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateAndMismatch(t *testing.T) {
	src, err := os.ReadFile(filepath.Join(scenariosDir, "scenario_a.yaml"))
	require.NoError(t, err)

	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), src, 0644))

	out, err := execute(t, root, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")

	golden := filepath.Join(root, "golden", "scenario_a_debounced_flush.golden")
	want, err := os.ReadFile(filepath.Join("../harness/testdata/golden", "scenario_a_debounced_flush.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	require.NoError(t, os.WriteFile(golden, []byte("scenario: stale\n"), 0644))
	out, err = execute(t, root, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, t.TempDir(), "", "test", "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("steps: [\n"), 0644))

	out, err := execute(t, t.TempDir(), "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, err := execute(t, t.TempDir(), "", "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestTestCommand_GoldenStates(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "--format", "json", "test", scenariosDir, "--filter", "scenario_c")
	require.NoError(t, err)
	var resp struct {
		Data testReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, goldenMatch, resp.Data.Scenarios[0].Golden)

	out, err = execute(t, t.TempDir(), "", "--format", "json", "test", scenariosDir, "--filter", "scenario_c", "--golden", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, goldenMissing, resp.Data.Scenarios[0].Golden)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestFirstDifference(t *testing.T) {
	assert.Equal(t, `line 2: want "b", got "c"`, firstDifference([]byte("a\nb\n"), []byte("a\nc\n")))
	assert.Equal(t, `line 2: want "", got "b"`, firstDifference([]byte("a"), []byte("a\nb")))
	assert.Equal(t, "end of file", firstDifference([]byte("a"), []byte("a")))
}
