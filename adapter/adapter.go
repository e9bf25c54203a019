package adapter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// Adapter persists and loads complete state snapshots.
type Adapter interface {
	// Persist writes st. It must not retain st after returning.
	Persist(st *state.State) error

	// Load reads the persisted state for reg.
	// A missing target yields an empty state, not an error.
	Load(reg *model.Registry) (*state.State, error)
}

// Format names an encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Layout names a file layout.
type Layout string

const (
	LayoutUnified     Layout = "unified"
	LayoutPartitioned Layout = "partitioned"
)

// ValidFormats lists the supported formats.
var ValidFormats = []Format{FormatJSON, FormatYAML, FormatCSV, FormatSQLite}

// ValidLayouts lists the supported layouts.
var ValidLayouts = []Layout{LayoutUnified, LayoutPartitioned}

// Option configures adapters built by this package.
type Option func(*config)

type config struct {
	compact bool
}

// Compact disables pretty-printing for formats that support it.
func Compact() Option {
	return func(c *config) {
		c.compact = true
	}
}

func buildConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		f = FormatYAML
	}
	for _, valid := range ValidFormats {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q: must be one of %v", s, ValidFormats)
}

// ParseLayout parses a layout name.
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidLayouts {
		if l == valid {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid layout %q: must be one of %v", s, ValidLayouts)
}

// New builds the adapter for format and layout rooted at path.
// path is a file for unified layouts and a directory for partitioned ones.
func New(format Format, layout Layout, path string, opts ...Option) (Adapter, error) {
	switch {
	case format == FormatJSON && layout == LayoutUnified:
		return NewJSON(path, opts...), nil
	case format == FormatJSON && layout == LayoutPartitioned:
		return NewJSONPartitioned(path, opts...), nil
	case format == FormatYAML && layout == LayoutUnified:
		return NewYAML(path), nil
	case format == FormatYAML && layout == LayoutPartitioned:
		return NewYAMLPartitioned(path), nil
	case format == FormatCSV && layout == LayoutPartitioned:
		return NewCSV(path), nil
	case format == FormatSQLite && layout == LayoutUnified:
		return NewSQLite(path), nil
	}
	return nil, fmt.Errorf("format %q does not support the %q layout", format, layout)
}

// ForPath picks an adapter from the extension of path:
// .json, .yaml/.yml and .db/.sqlite/.sqlite3 are unified files;
// anything else is a directory of partitioned JSON files.
func ForPath(path string, opts ...Option) Adapter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSON(path, opts...)
	case ".yaml", ".yml":
		return NewYAML(path)
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(path)
	default:
		return NewJSONPartitioned(path, opts...)
	}
}

// partitionFileName returns the file name holding the collection of modelName.
// Names are NFC-normalized so the same model maps to the same file on every platform.
func partitionFileName(modelName, ext string) string {
	return norm.NFC.String(modelName) + ext
}

// withPath attaches path to err, keeping an existing dberr code.
func withPath(code dberr.Code, path string, err error) error {
	var e *dberr.Error
	if errors.As(err, &e) {
		if e.Path == "" {
			e.Path = path
		}
		return e
	}
	return &dberr.Error{Code: code, Path: path, Err: err}
}
