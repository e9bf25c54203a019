// Package query compiles filter expressions over document records.
//
// Expressions use the expr-lang language. Every top-level field of the
// document is a variable, and the whole document is also bound to
// "record", which reaches fields whose names are not identifiers:
//
//	age >= 18 && role == "admin"
//	record["first-name"] startsWith "A"
//
// Unknown fields evaluate to nil, so filters tolerate heterogeneous documents.
package query

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/filedb/model"
)

// Filter is a compiled boolean expression.
type Filter struct {
	source  string
	program *vm.Program

	mu  sync.Mutex
	err error
}

// Compile parses and type-checks expression.
func Compile(expression string) (*Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("filter expression must not be empty")
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	return &Filter{source: expression, program: program}, nil
}

// String returns the expression source.
func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter against doc.
func (f *Filter) Match(doc model.Document) (bool, error) {
	out, err := expr.Run(f.program, environment(doc))
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.source, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate filter %q: result is %T, not bool", f.source, out)
	}
	return matched, nil
}

// Predicate adapts the filter to the engine's predicate signature.
// A document that fails to evaluate does not match; the first such error
// is kept and reported by Err.
func (f *Filter) Predicate() func(model.Document) bool {
	return func(doc model.Document) bool {
		matched, err := f.Match(doc)
		if err != nil {
			f.mu.Lock()
			if f.err == nil {
				f.err = err
			}
			f.mu.Unlock()
			return false
		}
		return matched
	}
}

// Err returns the first evaluation error seen by a Predicate.
func (f *Filter) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func environment(doc model.Document) map[string]any {
	env := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		env[k] = v
	}
	env["record"] = map[string]any(doc)
	return env
}
