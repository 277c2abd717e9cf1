package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := ScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)

	_, err = ScenarioFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunSuite_Testdata(t *testing.T) {
	paths, err := ScenarioFiles(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	result := RunSuite(context.Background(), paths)
	assert.Equal(t, len(paths), result.TotalScenarios)
	assert.Equal(t, len(paths), result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0o644))

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`name: failing
description: "expects the wrong record count"
experiment:
  - type: scripted
    stimulus: one
expect:
  records: 5
`), 0o644))

	result := RunSuite(context.Background(), []string{broken, failing})
	assert.Equal(t, 2, result.TotalScenarios)
	assert.Zero(t, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)

	assert.Empty(t, result.Failures[0].Scenario)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "expected 5 records, got 1")
}
