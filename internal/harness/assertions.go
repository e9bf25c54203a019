package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/filedb/internal/query"
	"github.com/roach88/filedb/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(e TraceEvent) string {
	parts := []string{e.Op}
	if e.Model != "" {
		parts = append(parts, e.Model)
	}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	s := strings.Join(parts, " ") + " -> " + e.Outcome
	if e.Count != nil {
		s += fmt.Sprintf(" (%d)", *e.Count)
	}
	return s
}

// eventMatches reports whether event ran op (and model and id, if set).
func eventMatches(event TraceEvent, op, model, id string) bool {
	if event.Op != op {
		return false
	}
	if model != "" && event.Model != model {
		return false
	}
	return id == "" || event.ID == id
}

// assertTraceContains checks that a step matching the assertion ran.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if eventMatches(event, assertion.Op, assertion.Model, assertion.ID) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s model=%q id=%q", assertion.Op, assertion.Model, assertion.ID),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Ops) && event.Op == assertion.Ops[next] {
			next++
		}
	}
	if next == len(assertion.Ops) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("ops in order %v", assertion.Ops),
		Actual:   fmt.Sprintf("op %q not found after %v", assertion.Ops[next], assertion.Ops[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that a step matching the assertion ran exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if eventMatches(event, assertion.Op, assertion.Model, assertion.ID) {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("op %s to run %d time(s)", assertion.Op, assertion.Count),
		Actual:   fmt.Sprintf("ran %d time(s)", count),
		Trace:    trace,
	}
}

// assertFinalState checks that exactly one record of the model matches
// Where and that it holds the expected values (subset semantics).
func assertFinalState(state map[string][]model.Document, assertion Assertion) error {
	docs, ok := state[assertion.Model]
	if !ok {
		return fmt.Errorf("final_state: model %q is not declared", assertion.Model)
	}

	filter, err := query.Compile(assertion.Where)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	var matched []model.Document
	for _, d := range docs {
		ok, err := filter.Match(d)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		if ok {
			matched = append(matched, d)
		}
	}

	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record in %s where %s", assertion.Model, assertion.Where),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one record in %s where %s", assertion.Model, assertion.Where),
			Actual:   fmt.Sprintf("%d records matched (assertion is ambiguous)", len(matched)),
		}
	}

	want, err := toDocument(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	actual := matched[0]
	for _, key := range sortedKeys(want) {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in record %v", key, actual),
			}
		}
		if !valuesEqual(actualValue, want[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want[key], want[key]),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertRecordCount checks the number of records of the model.
func assertRecordCount(state map[string][]model.Document, assertion Assertion) error {
	docs, ok := state[assertion.Model]
	if !ok {
		return fmt.Errorf("record_count: model %q is not declared", assertion.Model)
	}
	if len(docs) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRecordCount,
		Expected: fmt.Sprintf("%d record(s) in %s", assertion.Count, assertion.Model),
		Actual:   fmt.Sprintf("%d record(s)", len(docs)),
	}
}

// assertPersisted checks that the store on disk holds exactly the engine state.
func assertPersisted(state map[string][]model.Document, reload func() (map[string][]model.Document, error)) error {
	onDisk, err := reload()
	if err != nil {
		return &AssertionError{
			Type:     AssertPersisted,
			Expected: "store to load",
			Actual:   fmt.Sprintf("load error: %v", err),
		}
	}
	for _, name := range sortedKeys(state) {
		if !reflect.DeepEqual(state[name], onDisk[name]) {
			return &AssertionError{
				Type:     AssertPersisted,
				Expected: fmt.Sprintf("%s on disk = %v", name, state[name]),
				Actual:   fmt.Sprintf("%s on disk = %v", name, onDisk[name]),
			}
		}
	}
	return nil
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual, expected model.Document) bool {
	if actual == nil {
		return len(expected) == 0
	}
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two normalized values, including nested maps and slices.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides store access for evaluating assertions.
type AssertionContext struct {
	// Reload loads the store from disk with a new adapter.
	Reload func() (map[string][]model.Document, error)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides disk access for persisted assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertRecordCount:
			err = assertRecordCount(result.State, assertion)
		case AssertPersisted:
			if actx == nil || actx.Reload == nil {
				err = fmt.Errorf("assertion[%d]: persisted requires store context", i)
			} else {
				err = assertPersisted(result.State, actx.Reload)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
