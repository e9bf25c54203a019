package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/model"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace and final state with the matching golden file.
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestMarshalSnapshot(t *testing.T) {
	one := 1
	data, err := MarshalSnapshot(Snapshot{
		ScenarioName: "s",
		Trace:        []TraceEvent{{Seq: 1, Op: OpCount, Model: "users", Outcome: OutcomeOK, Count: &one}},
		State:        map[string][]model.Document{"users": {{"name": "<b>", "id": "u1"}}},
	})
	require.NoError(t, err)

	want := `{
  "scenario_name": "s",
  "trace": [
    {
      "seq": 1,
      "op": "count",
      "model": "users",
      "outcome": "ok",
      "count": 1
    }
  ],
  "state": {
    "users": [
      {
        "id": "u1",
        "name": "<b>"
      }
    ]
  }
}
`
	assert.Equal(t, want, string(data))
}
