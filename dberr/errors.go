// Package dberr defines the error taxonomy shared by every filedb package.
//
// All failures surface as *Error values carrying a Code. Callers branch on
// the code with the Is* helpers or with errors.Is against the sentinels,
// both of which see through fmt.Errorf("...: %w") wrapping.
package dberr

import (
	"errors"
	"fmt"
)

// Code categorizes an Error.
type Code string

const (
	// CodeIO indicates a filesystem failure on read or write.
	CodeIO Code = "IO"

	// CodeSerialization indicates malformed persisted data on load or an
	// encoding failure on write.
	CodeSerialization Code = "SERIALIZATION"

	// CodeNotFound indicates an update referenced an absent id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeDuplicateID indicates an insert referenced an id already present.
	CodeDuplicateID Code = "DUPLICATE_ID"

	// CodeValidation indicates a record was rejected by its model's validator.
	CodeValidation Code = "VALIDATION"

	// CodeUnknownModel indicates a model that is not part of the registry.
	CodeUnknownModel Code = "UNKNOWN_MODEL"

	// CodeClosed indicates an operation on a closed engine.
	CodeClosed Code = "CLOSED"
)

// Error is the single error type returned by filedb.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Model is the registered model name, when the error concerns one.
	Model string

	// ID is the record id formatted with %v, when the error concerns one.
	ID string

	// Path is the filesystem path involved, for IO and serialization errors.
	Path string

	// Message is an optional human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Code {
	case CodeDuplicateID:
		return fmt.Sprintf("%s with id = %s already exists", e.Model, e.ID)
	case CodeNotFound:
		return fmt.Sprintf("%s with id = %s not found", e.Model, e.ID)
	}

	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This lets the package sentinels match any error of their category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrIO            = &Error{Code: CodeIO}
	ErrSerialization = &Error{Code: CodeSerialization}
	ErrNotFound      = &Error{Code: CodeNotFound}
	ErrDuplicateID   = &Error{Code: CodeDuplicateID}
	ErrValidation    = &Error{Code: CodeValidation}
	ErrUnknownModel  = &Error{Code: CodeUnknownModel}
	ErrClosed        = &Error{Code: CodeClosed}
)

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsIO returns true if err is an IO error.
func IsIO(err error) bool { return CodeOf(err) == CodeIO }

// IsSerialization returns true if err is a serialization error.
func IsSerialization(err error) bool { return CodeOf(err) == CodeSerialization }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsDuplicateID returns true if err is a duplicate id error.
func IsDuplicateID(err error) bool { return CodeOf(err) == CodeDuplicateID }

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsUnknownModel returns true if err refers to an unregistered model.
func IsUnknownModel(err error) bool { return CodeOf(err) == CodeUnknownModel }

// IsClosed returns true if err was caused by using a closed engine.
func IsClosed(err error) bool { return CodeOf(err) == CodeClosed }

// IO wraps a filesystem failure at path.
func IO(path string, err error) *Error {
	return &Error{Code: CodeIO, Path: path, Err: err}
}

// Serialization wraps an encode or decode failure at path.
func Serialization(path string, err error) *Error {
	return &Error{Code: CodeSerialization, Path: path, Err: err}
}

// NotFound reports an absent id in model.
func NotFound(model string, id any) *Error {
	return &Error{Code: CodeNotFound, Model: model, ID: fmt.Sprintf("%v", id)}
}

// DuplicateID reports an id already present in model.
func DuplicateID(model string, id any) *Error {
	return &Error{Code: CodeDuplicateID, Model: model, ID: fmt.Sprintf("%v", id)}
}

// Validation reports a record rejected by the validator of model.
func Validation(model string, err error) *Error {
	return &Error{Code: CodeValidation, Model: model, Message: "record rejected", Err: err}
}

// UnknownModel reports a model missing from the registry.
func UnknownModel(model string) *Error {
	return &Error{Code: CodeUnknownModel, Model: model, Message: "model is not registered"}
}

// Closed reports an operation on a closed engine.
func Closed() *Error {
	return &Error{Code: CodeClosed, Message: "database is closed"}
}
