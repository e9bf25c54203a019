package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filedb/adapter"
	"github.com/roach88/filedb/engine"
)

// Scenario defines a CRUD scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Store selects the adapter and sync policy. Defaults to unified JSON, manual sync.
	Store StoreSpec `yaml:"store,omitempty"`

	// Models declares the document models of the registry, in order.
	Models []ModelSpec `yaml:"models"`

	// Setup inserts seed records before the steps run.
	// Setup inserts are expected to succeed.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are the operations under test.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// StoreSpec selects how the scenario's store is persisted.
type StoreSpec struct {
	Format string `yaml:"format,omitempty"` // json | yaml | csv | sqlite
	Layout string `yaml:"layout,omitempty"` // unified | partitioned
	Sync   string `yaml:"sync,omitempty"`   // manual | every-write | periodic:<d>
}

// ModelSpec declares one document model.
type ModelSpec struct {
	Name    string   `yaml:"name"`
	ID      string   `yaml:"id,omitempty"` // id field, defaults to "id"
	Columns []string `yaml:"columns,omitempty"`
}

// SetupStep seeds records of one model.
type SetupStep struct {
	Model   string           `yaml:"model"`
	Records []map[string]any `yaml:"records"`
}

// Step is one operation.
type Step struct {
	// Op is the operation, see the package documentation.
	Op string `yaml:"op"`

	Model  string         `yaml:"model,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Record map[string]any `yaml:"record,omitempty"`
	Where  string         `yaml:"where,omitempty"`

	// Expect validates the outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected dberr code (e.g. "DUPLICATE_ID").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Found is whether get or delete saw the id.
	Found *bool `yaml:"found,omitempty"`

	// Record is a subset match on the record returned by get.
	Record map[string]any `yaml:"record,omitempty"`

	// Count is the number of records returned by list, counted by count,
	// or removed by delete_by.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op, Model and ID select steps for trace assertions.
	Op    string `yaml:"op,omitempty"`
	Model string `yaml:"model,omitempty"`
	ID    string `yaml:"id,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected occurrences (trace_count) or records (record_count).
	Count int `yaml:"count,omitempty"`

	// Where selects the record for final_state.
	Where string `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match: only the listed fields are compared.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRecordCount   = "record_count"
	AssertPersisted     = "persisted"
)

// Operation constants.
const (
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpUpsert   = "upsert"
	OpDelete   = "delete"
	OpDeleteBy = "delete_by"
	OpGet      = "get"
	OpList     = "list"
	OpCount    = "count"
	OpFlush    = "flush"
	OpReopen   = "reopen"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Store.Format != "" {
		if _, err := adapter.ParseFormat(s.Store.Format); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if s.Store.Layout != "" {
		if _, err := adapter.ParseLayout(s.Store.Layout); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if _, err := engine.ParseSyncPolicy(s.Store.Sync); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	declared := make(map[string]bool, len(s.Models))
	for i, m := range s.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		declared[m.Name] = true
	}

	for i, step := range s.Setup {
		if !declared[step.Model] {
			return fmt.Errorf("setup[%d]: model %q is not declared", i, step.Model)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields each op needs. Models are not checked
// against the declared list so scenarios can exercise UNKNOWN_MODEL.
func validateStep(index int, s *Step) error {
	needModel := func() error {
		if s.Model == "" {
			return fmt.Errorf("steps[%d]: model is required for %s", index, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpInsert, OpUpsert:
		if s.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for %s", index, s.Op)
		}
		return needModel()
	case OpUpdate:
		if s.ID == "" || s.Record == nil {
			return fmt.Errorf("steps[%d]: id and record are required for update", index)
		}
		return needModel()
	case OpDelete, OpGet:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, s.Op)
		}
		return needModel()
	case OpDeleteBy:
		if s.Where == "" {
			return fmt.Errorf("steps[%d]: where is required for delete_by", index)
		}
		return needModel()
	case OpList, OpCount:
		return needModel()
	case OpFlush, OpReopen:
		return nil
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Model == "" || a.Where == "" {
			return fmt.Errorf("assertions[%d]: model and where are required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRecordCount:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for record_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertPersisted:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
