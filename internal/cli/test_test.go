package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `
name: failing
description: "expects an update that cannot happen"
target: {name: orders, key: OrderID, full_name: name, tracked: [CustomerID]}
customers:
  - {CustomerID: CUS1, fullName: Alice}
documents:
  - {OrderID: O1, name: Nobody, CustomerID: ""}
expect:
  report: {updated: 1}
`

const passingScenario = `
name: passing
description: "one record resolved by name"
target: {name: orders, key: OrderID, full_name: name, tracked: [CustomerID]}
customers:
  - {CustomerID: CUS1, fullName: Alice}
documents:
  - {OrderID: O1, name: Alice, CustomerID: ""}
expect:
  report: {updated: 1}
`

func harnessScenarios(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)
	return dir
}

func runTestCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"test"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, harnessScenarios(t))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reconcile_orders")
	assert.Contains(t, out, "✓ sync_mirror")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCommand(t, harnessScenarios(t), "--filter", "sync_*", "--format", "json")
	require.NoError(t, err)

	resp := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "sync_mirror", resp.Data.Scenarios[0].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "failing.yaml"), []byte(failingScenario), 0o644))

	out, err := runTestCommand(t, scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "report.updated")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "passing.yaml"), []byte(passingScenario), 0o644))

	_, err := runTestCommand(t, scenarios, "--update")
	require.NoError(t, err)

	golden := filepath.Join(dir, "golden", "passing.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"CustomerID": "CUS1"`)

	_, err = runTestCommand(t, scenarios)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("[]\n"), 0o644))
	out, err := runTestCommand(t, scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "do not match")
}
