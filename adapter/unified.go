package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// DocumentFormat encodes a whole state into one file.
type DocumentFormat interface {
	Extension() string
	EncodeState(st *state.State) ([]byte, error)
	DecodeState(data []byte, reg *model.Registry) (*state.State, error)
}

// Unified stores the whole state in a single file.
type Unified struct {
	path   string
	format DocumentFormat
}

// NewUnified returns an adapter writing path with format.
func NewUnified(path string, format DocumentFormat) *Unified {
	return &Unified{path: path, format: format}
}

// NewJSON returns a unified JSON file adapter. Output is pretty-printed
// unless Compact is given.
func NewJSON(path string, opts ...Option) *Unified {
	cfg := buildConfig(opts)
	return NewUnified(path, jsonFormat{compact: cfg.compact})
}

// NewYAML returns a unified YAML file adapter.
func NewYAML(path string) *Unified {
	return NewUnified(path, yamlFormat{})
}

// Path returns the file the adapter writes.
func (u *Unified) Path() string {
	return u.path
}

// Persist encodes st and atomically replaces the file.
// The parent directory must exist.
func (u *Unified) Persist(st *state.State) error {
	data, err := u.format.EncodeState(st)
	if err != nil {
		return withPath(dberr.CodeSerialization, u.path, err)
	}
	if err := WriteFileAtomic(u.path, data, defaultFileMode); err != nil {
		return dberr.IO(u.path, err)
	}
	return nil
}

// Load reads the file. A missing file is an empty state.
func (u *Unified) Load(reg *model.Registry) (*state.State, error) {
	info, err := os.Stat(u.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.New(reg), nil
	}
	if err != nil {
		return nil, dberr.IO(u.path, err)
	}
	if info.IsDir() {
		return nil, dberr.IO(u.path, fmt.Errorf("expected a file, found a directory"))
	}

	data, err := os.ReadFile(u.path)
	if err != nil {
		return nil, dberr.IO(u.path, err)
	}
	st, err := u.format.DecodeState(data, reg)
	if err != nil {
		return nil, withPath(dberr.CodeSerialization, u.path, err)
	}
	return st, nil
}
