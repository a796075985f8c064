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

func TestTestCommand_AllPass(t *testing.T) {
	code, out, errOut := runCLI(t, "test", scenariosDir)
	require.Equal(t, ExitSuccess, code, out+errOut)
	assert.Contains(t, out, "✓ building_lifecycle")
	assert.Contains(t, out, "✓ hall_call_fallback")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	code, out, _ := runCLI(t, "test", scenariosDir, "--filter", "hall_*", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "hall_call_fallback", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_MissingDir(t *testing.T) {
	code, _, errOut := runCLI(t, "test", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "scenarios directory not found")
}

const failingScenario = `name: wrong_floor
description: Expects a floor count the building does not have.
steps:
  - initialize: {floors: 3, elevators: 1}
  - hydrate: true
  - expect:
      total_floors: 4
`

func TestTestCommand_Failure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_floor.yaml"), []byte(failingScenario), 0644))

	code, out, _ := runCLI(t, "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "✗ wrong_floor")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")

	code, out, _ = runCLI(t, "test", dir, "--format", "json")
	assert.Equal(t, ExitFailure, code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "failure is reported once, as one JSON document")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
}

const passingScenario = `name: small_building
description: One cabin request in a three-floor building.
steps:
  - initialize: {floors: 3, elevators: 1}
  - hydrate: true
  - press: {elevator: 0, floor: 2}
  - expect:
      elevators:
        0: {up: [2]}
`

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small_building.yaml"), []byte(passingScenario), 0644))

	code, out, _ := runCLI(t, "test", dir, "--update")
	require.Equal(t, ExitSuccess, code, out)

	golden, err := os.ReadFile(filepath.Join(root, "golden", "small_building.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "scenario: small_building")

	// A tampered golden file no longer matches.
	require.NoError(t, os.WriteFile(filepath.Join(root, "golden", "small_building.golden"), []byte("stale\n"), 0644))
	code, out, _ = runCLI(t, "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "trace does not match golden file")
}
