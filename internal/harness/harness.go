package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/roach88/filedb/adapter"
	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/internal/query"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// Harness is the scenario execution engine.
type Harness struct {
	scenario *Scenario
	dir      string
	registry *model.Registry
	models   map[string]*model.Model[model.Document, string]
	policy   engine.SyncPolicy
	db       *engine.DB
	logger   *slog.Logger
}

// Run executes scenario with its store under dir and returns the result.
//
// Execution flow:
// 1. Build the registry and open the engine on a fresh store
// 2. Insert setup records
// 3. Execute steps, validating expect clauses
// 4. Evaluate assertions
// 5. Close the engine
//
// A returned error means the scenario could not run; failed expectations
// are reported in the result.
func Run(scenario *Scenario, dir string) (*Result, error) {
	h, err := newHarness(scenario, dir)
	if err != nil {
		return nil, err
	}
	if err := h.open(); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if h.db != nil {
			_ = h.db.Close()
		}
	}()

	result := NewResult()
	if err := h.executeSetup(scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeSteps(scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	if err := h.captureState(result); err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}

	actx := &AssertionContext{Reload: h.reload}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	err = h.db.Close()
	h.db = nil
	if err != nil {
		return nil, fmt.Errorf("failed to close store: %w", err)
	}
	return result, nil
}

func newHarness(scenario *Scenario, dir string) (*Harness, error) {
	policy, err := engine.ParseSyncPolicy(scenario.Store.Sync)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		dir:      dir,
		models:   make(map[string]*model.Model[model.Document, string], len(scenario.Models)),
		policy:   policy,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	descriptors := make([]model.Descriptor, 0, len(scenario.Models))
	for _, ms := range scenario.Models {
		idField := ms.ID
		if idField == "" {
			idField = "id"
		}
		var opts []model.Option
		if len(ms.Columns) > 0 {
			opts = append(opts, model.WithColumns(ms.Columns...))
		}
		m := model.DefineDocument(ms.Name, idField, opts...)
		h.models[ms.Name] = m
		descriptors = append(descriptors, m)
	}
	reg, err := model.NewRegistry(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	h.registry = reg
	return h, nil
}

// adapter builds a new adapter for the scenario store.
func (h *Harness) adapter() (adapter.Adapter, error) {
	format := adapter.FormatJSON
	if h.scenario.Store.Format != "" {
		f, err := adapter.ParseFormat(h.scenario.Store.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	layout := adapter.LayoutUnified
	if format == adapter.FormatCSV {
		layout = adapter.LayoutPartitioned
	}
	if h.scenario.Store.Layout != "" {
		l, err := adapter.ParseLayout(h.scenario.Store.Layout)
		if err != nil {
			return nil, err
		}
		layout = l
	}
	return adapter.New(format, layout, h.storePath(format, layout))
}

func (h *Harness) storePath(format adapter.Format, layout adapter.Layout) string {
	if layout == adapter.LayoutPartitioned {
		return filepath.Join(h.dir, "store")
	}
	ext := "." + string(format)
	if format == adapter.FormatSQLite {
		ext = ".db"
	}
	return filepath.Join(h.dir, "store"+ext)
}

func (h *Harness) open() error {
	a, err := h.adapter()
	if err != nil {
		return err
	}
	db, err := engine.Open(a, h.registry,
		engine.WithSyncPolicy(h.policy),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}
	h.db = db
	return nil
}

// reload loads the store from disk through a new adapter.
func (h *Harness) reload() (map[string][]model.Document, error) {
	a, err := h.adapter()
	if err != nil {
		return nil, err
	}
	st, err := a.Load(h.registry)
	if err != nil {
		return nil, err
	}
	return h.documents(st)
}

// documents returns the records of st by model name, normalized like
// scenario values so that formats decoding numbers differently compare equal.
func (h *Harness) documents(st *state.State) (map[string][]model.Document, error) {
	out := make(map[string][]model.Document, h.registry.Len())
	for _, c := range st.Collections() {
		name := c.Model().Name()
		docs := h.models[name].Typed(c.GetAll())
		for i, d := range docs {
			n, err := toDocument(d)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			docs[i] = n
		}
		out[name] = docs
	}
	return out, nil
}

// executeSetup inserts the seed records. Setup inserts must succeed.
func (h *Harness) executeSetup(setup []SetupStep) error {
	for i, step := range setup {
		m := h.models[step.Model]
		for j, rec := range step.Records {
			doc, err := toDocument(rec)
			if err != nil {
				return fmt.Errorf("setup[%d] record %d: %w", i, j, err)
			}
			if err := engine.Insert(h.db, m, doc); err != nil {
				return fmt.Errorf("setup[%d] record %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// executeSteps runs every step and checks its expect clause.
func (h *Harness) executeSteps(steps []Step, result *Result) error {
	for i, step := range steps {
		out, err := h.execute(step)
		if out.fatal != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Op, out.fatal)
		}

		event := TraceEvent{
			Op:      step.Op,
			Model:   step.Model,
			ID:      step.ID,
			Outcome: outcomeOf(err, out.absent),
			Count:   out.count,
		}
		result.AddTrace(event)

		for _, msg := range checkExpect(step, event, out.record, err) {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Op, msg))
		}
	}
	return nil
}

// stepOutput carries what a step produced besides its error.
type stepOutput struct {
	absent bool
	record model.Document
	count  *int

	// fatal aborts the scenario: the harness itself failed.
	fatal error
}

func (h *Harness) execute(step Step) (stepOutput, error) {
	var out stepOutput

	switch step.Op {
	case OpFlush:
		return out, h.db.Flush()
	case OpReopen:
		err := h.db.Close()
		h.db = nil
		if openErr := h.open(); openErr != nil {
			out.fatal = openErr
		}
		return out, err
	}

	m, ok := h.models[step.Model]
	if !ok {
		// An undeclared model still goes through the engine so that it
		// reports UNKNOWN_MODEL itself.
		m = model.DefineDocument(step.Model, "id")
	}

	switch step.Op {
	case OpInsert, OpUpsert, OpUpdate:
		doc, err := toDocument(step.Record)
		if err != nil {
			out.fatal = err
			return out, nil
		}
		switch step.Op {
		case OpInsert:
			return out, engine.Insert(h.db, m, doc)
		case OpUpsert:
			return out, engine.Upsert(h.db, m, doc)
		default:
			return out, engine.Update(h.db, m, step.ID, doc)
		}

	case OpGet:
		doc, found, err := engine.Get(h.db, m, step.ID)
		out.absent = err == nil && !found
		if found {
			if out.record, out.fatal = toDocument(doc); out.fatal != nil {
				return out, nil
			}
		}
		return out, err

	case OpDelete:
		_, found, err := engine.Delete(h.db, m, step.ID)
		out.absent = err == nil && !found
		return out, err

	case OpDeleteBy:
		filter, err := query.Compile(step.Where)
		if err != nil {
			out.fatal = err
			return out, nil
		}
		removed, err := engine.DeleteAllBy(h.db, m, filter.Predicate())
		if err == nil {
			err = filter.Err()
		}
		n := len(removed)
		out.count = &n
		return out, err

	case OpList, OpCount:
		docs, err := h.selectDocuments(m, step.Where)
		if err != nil {
			if out.fatal = asFatal(err); out.fatal != nil {
				return out, nil
			}
			return out, err
		}
		n := len(docs)
		out.count = &n
		return out, nil
	}

	out.fatal = fmt.Errorf("unknown op %q", step.Op)
	return out, nil
}

func (h *Harness) selectDocuments(m *model.Model[model.Document, string], where string) ([]model.Document, error) {
	if where == "" {
		return engine.GetAll(h.db, m)
	}
	filter, err := query.Compile(where)
	if err != nil {
		return nil, err
	}
	docs, err := engine.GetAllBy(h.db, m, filter.Predicate())
	if err != nil {
		return nil, err
	}
	return docs, filter.Err()
}

func (h *Harness) captureState(result *Result) error {
	st, err := h.db.Snapshot()
	if err != nil {
		return err
	}
	docs, err := h.documents(st)
	if err != nil {
		return err
	}
	result.State = docs
	return nil
}

// asFatal keeps engine errors as step outcomes and turns everything else
// (a bad filter expression) into a harness failure.
func asFatal(err error) error {
	if dberr.CodeOf(err) != "" {
		return nil
	}
	return err
}

func outcomeOf(err error, absent bool) string {
	switch {
	case err != nil:
		if code := dberr.CodeOf(err); code != "" {
			return string(code)
		}
		return OutcomeError
	case absent:
		return OutcomeAbsent
	}
	return OutcomeOK
}

// checkExpect compares a step outcome against its expect clause.
func checkExpect(step Step, event TraceEvent, record model.Document, err error) []string {
	expect := step.Expect
	if expect == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var msgs []string
	wantOutcome := expect.Error
	if wantOutcome == "" {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
	} else if event.Outcome != wantOutcome {
		msgs = append(msgs, fmt.Sprintf("expected error %s, got %s (%v)", wantOutcome, event.Outcome, err))
	}

	if expect.Found != nil {
		found := event.Outcome == OutcomeOK
		if found != *expect.Found {
			msgs = append(msgs, fmt.Sprintf("expected found=%t, got outcome %s", *expect.Found, event.Outcome))
		}
	}

	if expect.Record != nil {
		want, convErr := toDocument(expect.Record)
		switch {
		case convErr != nil:
			msgs = append(msgs, fmt.Sprintf("invalid expected record: %v", convErr))
		case !matchFields(record, want):
			msgs = append(msgs, fmt.Sprintf("expected record containing %v, got %v", want, record))
		}
	}

	if expect.Count != nil {
		if event.Count == nil {
			msgs = append(msgs, fmt.Sprintf("op %s does not produce a count", step.Op))
		} else if *event.Count != *expect.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *expect.Count, *event.Count))
		}
	}

	return msgs
}

// toDocument normalizes YAML-decoded values through JSON, so numbers become
// float64 exactly as they are after a reload.
func toDocument(v map[string]any) (model.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return doc, nil
}
