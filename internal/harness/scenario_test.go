package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
store:
  format: yaml
  sync: every-write
models:
  - name: users
    columns: [id, name]
setup:
  - model: users
    records:
      - {id: "u1", name: "Alice"}
steps:
  - op: get
    model: users
    id: u1
    expect:
      found: true
      record: {name: "Alice"}
assertions:
  - type: trace_contains
    op: get
    model: users
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "yaml", scenario.Store.Format)
	assert.Equal(t, "every-write", scenario.Store.Sync)
	require.Len(t, scenario.Models, 1)
	assert.Equal(t, []string{"id", "name"}, scenario.Models[0].Columns)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, "Alice", scenario.Setup[0].Records[0]["name"])
	require.Len(t, scenario.Steps, 1)
	require.NotNil(t, scenario.Steps[0].Expect)
	require.NotNil(t, scenario.Steps[0].Expect.Found)
	assert.True(t, *scenario.Steps[0].Expect.Found)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	content := validScenario + "assertion:\n  - type: persisted\n"

	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	base := `
name: s
description: d
models:
  - name: users
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nmodels: [{name: users}]\nsteps: [{op: flush}]\nassertions: [{type: persisted}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing models",
			content: "name: s\ndescription: d\nsteps: [{op: flush}]\nassertions: [{type: persisted}]\n",
			wantErr: "models list is required",
		},
		{
			name:    "missing steps",
			content: base + "assertions: [{type: persisted}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing assertions",
			content: base + "steps: [{op: flush}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "bad format",
			content: base + "store: {format: toml}\nsteps: [{op: flush}]\nassertions: [{type: persisted}]\n",
			wantErr: "store:",
		},
		{
			name:    "bad sync",
			content: base + "store: {sync: sometimes}\nsteps: [{op: flush}]\nassertions: [{type: persisted}]\n",
			wantErr: "store:",
		},
		{
			name:    "undeclared setup model",
			content: base + "setup: [{model: posts, records: []}]\nsteps: [{op: flush}]\nassertions: [{type: persisted}]\n",
			wantErr: `setup[0]: model "posts" is not declared`,
		},
		{
			name:    "insert without record",
			content: base + "steps: [{op: insert, model: users}]\nassertions: [{type: persisted}]\n",
			wantErr: "record is required for insert",
		},
		{
			name:    "update without id",
			content: base + "steps: [{op: update, model: users, record: {name: x}}]\nassertions: [{type: persisted}]\n",
			wantErr: "id and record are required for update",
		},
		{
			name:    "get without model",
			content: base + "steps: [{op: get, id: u1}]\nassertions: [{type: persisted}]\n",
			wantErr: "model is required for get",
		},
		{
			name:    "delete_by without where",
			content: base + "steps: [{op: delete_by, model: users}]\nassertions: [{type: persisted}]\n",
			wantErr: "where is required for delete_by",
		},
		{
			name:    "unknown op",
			content: base + "steps: [{op: truncate, model: users}]\nassertions: [{type: persisted}]\n",
			wantErr: `unknown op "truncate"`,
		},
		{
			name:    "final_state without where",
			content: base + "steps: [{op: flush}]\nassertions: [{type: final_state, model: users, expect: {name: x}}]\n",
			wantErr: "model and where are required for final_state",
		},
		{
			name:    "unknown assertion",
			content: base + "steps: [{op: flush}]\nassertions: [{type: eventually}]\n",
			wantErr: `unknown assertion type "eventually"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_UndeclaredStepModelAllowed(t *testing.T) {
	content := `
name: s
description: d
models:
  - name: users
steps:
  - op: get
    model: posts
    id: p1
    expect: {error: UNKNOWN_MODEL}
assertions:
  - type: trace_count
    op: get
    count: 1
`
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "posts", scenario.Steps[0].Model)
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			_, err := LoadScenario(file)
			require.NoError(t, err)
		})
	}
}
