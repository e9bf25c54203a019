package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/model"
)

func sampleTrace() []TraceEvent {
	two := 2
	return []TraceEvent{
		{Seq: 1, Op: OpInsert, Model: "users", ID: "", Outcome: OutcomeOK},
		{Seq: 2, Op: OpGet, Model: "users", ID: "u1", Outcome: OutcomeOK},
		{Seq: 3, Op: OpList, Model: "users", Outcome: OutcomeOK, Count: &two},
		{Seq: 4, Op: OpGet, Model: "users", ID: "u9", Outcome: OutcomeAbsent},
	}
}

func sampleState() map[string][]model.Document {
	return map[string][]model.Document{
		"users": {
			{"id": "u1", "name": "Alice", "age": float64(30)},
			{"id": "u2", "name": "Bob", "age": float64(17)},
		},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpGet}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpGet, Model: "users", ID: "u9"}))

	err := assertTraceContains(trace, Assertion{Op: OpDelete})
	require.Error(t, err)
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[3] list users -> ok (2)")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInsert, OpList}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpGet, OpGet}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpList, OpInsert}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `op "insert" not found after [list]`)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpGet, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpDelete, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpGet, ID: "u1", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ran 1 time(s)")
}

func TestAssertFinalState(t *testing.T) {
	state := sampleState()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "match",
			assertion: Assertion{Model: "users", Where: `id == "u1"`, Expect: map[string]any{"name": "Alice", "age": 30}},
		},
		{
			name:      "no match",
			assertion: Assertion{Model: "users", Where: `id == "u3"`, Expect: map[string]any{"name": "Alice"}},
			wantErr:   "record not found",
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Model: "users", Where: "age > 0", Expect: map[string]any{"name": "Alice"}},
			wantErr:   "2 records matched",
		},
		{
			name:      "missing field",
			assertion: Assertion{Model: "users", Where: `id == "u2"`, Expect: map[string]any{"email": "bob@example.com"}},
			wantErr:   `field "email" not present`,
		},
		{
			name:      "wrong value",
			assertion: Assertion{Model: "users", Where: `id == "u2"`, Expect: map[string]any{"age": 18}},
			wantErr:   `field "age" = 17`,
		},
		{
			name:      "undeclared model",
			assertion: Assertion{Model: "posts", Where: "true", Expect: map[string]any{"a": 1}},
			wantErr:   `model "posts" is not declared`,
		},
		{
			name:      "bad filter",
			assertion: Assertion{Model: "users", Where: "age >=", Expect: map[string]any{"a": 1}},
			wantErr:   "final_state: compile filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(state, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRecordCount(t *testing.T) {
	state := sampleState()

	assert.NoError(t, assertRecordCount(state, Assertion{Model: "users", Count: 2}))

	err := assertRecordCount(state, Assertion{Model: "users", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 record(s) in users")
}

func TestAssertPersisted(t *testing.T) {
	state := sampleState()

	same := func() (map[string][]model.Document, error) { return sampleState(), nil }
	assert.NoError(t, assertPersisted(state, same))

	stale := func() (map[string][]model.Document, error) {
		s := sampleState()
		s["users"] = s["users"][:1]
		return s, nil
	}
	err := assertPersisted(state, stale)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users on disk")

	broken := func() (map[string][]model.Document, error) { return nil, errors.New("boom") }
	err = assertPersisted(state, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load error: boom")
}

func TestMatchFields(t *testing.T) {
	actual := model.Document{"id": "u1", "tags": []any{"a", "b"}, "meta": map[string]any{"x": float64(1)}}

	assert.True(t, matchFields(actual, model.Document{"id": "u1"}))
	assert.True(t, matchFields(actual, model.Document{"tags": []any{"a", "b"}}))
	assert.True(t, matchFields(actual, model.Document{"meta": map[string]any{"x": float64(1)}}))
	assert.False(t, matchFields(actual, model.Document{"tags": []any{"b", "a"}}))
	assert.False(t, matchFields(actual, model.Document{"missing": nil}))
	assert.True(t, matchFields(nil, model.Document{}))
	assert.False(t, matchFields(nil, model.Document{"id": "u1"}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.State = sampleState()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Op: OpList},
		{Type: AssertRecordCount, Model: "users", Count: 2},
		{Type: AssertPersisted},
		{Type: "eventually"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "persisted requires store context")
	assert.Contains(t, errs[1], `unknown assertion type "eventually"`)
}
