package harness

import "github.com/roach88/filedb/model"

// Step outcomes besides dberr codes.
const (
	OutcomeOK     = "ok"
	OutcomeAbsent = "absent" // get or delete of an id that is not present
	OutcomeError  = "ERROR"  // an error without a dberr code
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Model   string `json:"model,omitempty"`
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome"`

	// Count is set for list, count and delete_by.
	Count *int `json:"count,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final engine state, by model name.
	State map[string][]model.Document `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]model.Document),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it from 1.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}
