package model

import (
	"fmt"

	"github.com/roach88/filedb/dberr"
)

// Validator checks a record before it is written to a collection.
type Validator interface {
	Validate(record any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(record any) error

// Validate calls f(record).
func (f ValidatorFunc) Validate(record any) error {
	return f(record)
}

// Descriptor is the type-erased view of a Model.
//
// Adapters and the state container only see Descriptors; the typed Model
// is what application code holds.
type Descriptor interface {
	// Name is the unique model identifier used for keys and file names.
	Name() string

	// Key returns the id of record. Fails if record is not of the model's type.
	Key(record any) (any, error)

	// Validate runs the model's checks against record.
	Validate(record any) error

	// Columns returns the explicit tabular header, or nil if none was declared.
	Columns() []string

	// NewRecord returns a pointer to a zero record, suitable as a decode target.
	NewRecord() any

	// NewSlice returns a pointer to an empty record slice, suitable as a decode target.
	NewSlice() any

	// Deref converts a pointer returned by NewRecord into a record value.
	Deref(ptr any) (any, error)

	// Records converts a pointer returned by NewSlice into records.
	Records(slicePtr any) ([]any, error)

	// Slice converts records into a typed, never-nil slice for encoding.
	Slice(records []any) (any, error)
}

// Option configures a Model.
type Option func(*options)

type options struct {
	columns   []string
	validator Validator
}

// WithColumns declares the header used by tabular formats.
// Without it the header is derived from the encoded field order of a zero record.
func WithColumns(columns ...string) Option {
	return func(o *options) {
		o.columns = append([]string(nil), columns...)
	}
}

// WithValidator attaches a validator that runs before every insert, update and upsert.
func WithValidator(v Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

// Model is a registered record type T whose ids are of type K.
type Model[T any, K comparable] struct {
	name      string
	id        func(T) K
	require   func(T) error
	clone     func(T) T
	columns   []string
	validator Validator
}

// Define declares a model named name whose id is extracted by id.
func Define[T any, K comparable](name string, id func(T) K, opts ...Option) *Model[T, K] {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Model[T, K]{
		name:      name,
		id:        id,
		columns:   o.columns,
		validator: o.validator,
	}
}

// Name returns the model identifier.
func (m *Model[T, K]) Name() string {
	return m.name
}

// ID returns the id of record.
func (m *Model[T, K]) ID(record T) K {
	return m.id(record)
}

// Key implements Descriptor.
func (m *Model[T, K]) Key(record any) (any, error) {
	r, ok := record.(T)
	if !ok {
		return nil, m.typeError(record)
	}
	return m.id(r), nil
}

// Validate implements Descriptor.
func (m *Model[T, K]) Validate(record any) error {
	r, ok := record.(T)
	if !ok {
		return m.typeError(record)
	}
	if m.require != nil {
		if err := m.require(r); err != nil {
			return dberr.Validation(m.name, err)
		}
	}
	if m.validator != nil {
		if err := m.validator.Validate(r); err != nil {
			return dberr.Validation(m.name, err)
		}
	}
	return nil
}

// Clone returns a copy of record sharing no mutable state with it, for
// models whose records are reference types (documents). Other records are
// returned as is.
func (m *Model[T, K]) Clone(record T) T {
	if m.clone == nil {
		return record
	}
	return m.clone(record)
}

// Columns implements Descriptor.
func (m *Model[T, K]) Columns() []string {
	if m.columns == nil {
		return nil
	}
	return append([]string(nil), m.columns...)
}

// NewRecord implements Descriptor.
func (m *Model[T, K]) NewRecord() any {
	return new(T)
}

// NewSlice implements Descriptor.
func (m *Model[T, K]) NewSlice() any {
	s := make([]T, 0)
	return &s
}

// Deref implements Descriptor.
func (m *Model[T, K]) Deref(ptr any) (any, error) {
	p, ok := ptr.(*T)
	if !ok || p == nil {
		return nil, fmt.Errorf("model %s: expected *%T, got %T", m.name, *new(T), ptr)
	}
	return *p, nil
}

// Records implements Descriptor.
func (m *Model[T, K]) Records(slicePtr any) ([]any, error) {
	p, ok := slicePtr.(*[]T)
	if !ok || p == nil {
		return nil, fmt.Errorf("model %s: expected *[]%T, got %T", m.name, *new(T), slicePtr)
	}
	out := make([]any, len(*p))
	for i, r := range *p {
		out[i] = r
	}
	return out, nil
}

// Slice implements Descriptor.
func (m *Model[T, K]) Slice(records []any) (any, error) {
	out := make([]T, len(records))
	for i, r := range records {
		typed, ok := r.(T)
		if !ok {
			return nil, m.typeError(r)
		}
		out[i] = typed
	}
	return out, nil
}

// Typed converts records returned by a collection back to []T.
func (m *Model[T, K]) Typed(records []any) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if typed, ok := r.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func (m *Model[T, K]) typeError(record any) error {
	return fmt.Errorf("model %s: record has type %T, want %T", m.name, record, *new(T))
}
