// Package schema validates records against CUE constraints.
//
// A CUE value plugs into a model as its validator:
//
//	s, err := schema.Compile(`{id: string, name: string & != "", age?: int & >= 0}`)
//	users := model.DefineDocument("users", "id", model.WithValidator(s))
//
// Records are checked through their JSON encoding, so field names follow
// json tags and whole-number floats count as CUE ints. Every regular field
// of the schema must be present and concrete; optional fields use "?".
// Fields not mentioned by the schema are allowed unless the schema is closed
// with close({...}).
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// CUE is a compiled schema. It implements model.Validator and is safe for
// concurrent use.
type CUE struct {
	// mu guards ctx: a cue.Context is not safe for concurrent use.
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	source string
}

// ViolationError lists every constraint a record broke.
type ViolationError struct {
	Violations []string
}

func (e *ViolationError) Error() string {
	return "schema violation: " + strings.Join(e.Violations, "; ")
}

// Compile builds a schema from CUE source.
func Compile(src string) (*CUE, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &CUE{ctx: ctx, schema: v, source: src}, nil
}

// CompileFile builds a schema from a .cue file.
func CompileFile(path string) (*CUE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return &CUE{ctx: ctx, schema: v, source: string(data)}, nil
}

// MustCompile is like Compile but panics on error. For package-level schemas.
func MustCompile(src string) *CUE {
	s, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the CUE text the schema was compiled from.
func (s *CUE) Source() string {
	return s.source
}

// Validate checks record against the schema.
func (s *CUE) Validate(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(data, cue.Filename("record.json"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	unified := s.schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return violations(err)
	}
	return nil
}

func violations(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ViolationError{Violations: []string{err.Error()}}
	}
	out := &ViolationError{Violations: make([]string, 0, len(errs))}
	for _, e := range errs {
		out.Violations = append(out.Violations, e.Error())
	}
	return out
}
