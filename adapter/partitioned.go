package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// CollectionFormat encodes one collection per file.
type CollectionFormat interface {
	Extension() string
	EncodeCollection(c *state.Collection) ([]byte, error)
	DecodeCollection(data []byte, m model.Descriptor) ([]any, error)
}

// Partitioned stores each model's collection in its own file under a directory.
//
// It remembers a hash of every file it wrote or loaded and skips rewriting
// files whose content would not change.
type Partitioned struct {
	dir    string
	format CollectionFormat

	mu     sync.Mutex
	hashes map[string]uint64 // file path -> xxhash of last known content
}

// NewPartitioned returns an adapter writing one file per model under dir.
func NewPartitioned(dir string, format CollectionFormat) *Partitioned {
	return &Partitioned{
		dir:    dir,
		format: format,
		hashes: make(map[string]uint64),
	}
}

// NewJSONPartitioned returns a partitioned JSON adapter.
func NewJSONPartitioned(dir string, opts ...Option) *Partitioned {
	cfg := buildConfig(opts)
	return NewPartitioned(dir, jsonFormat{compact: cfg.compact})
}

// NewYAMLPartitioned returns a partitioned YAML adapter.
func NewYAMLPartitioned(dir string) *Partitioned {
	return NewPartitioned(dir, yamlFormat{})
}

// NewCSV returns a partitioned CSV adapter.
func NewCSV(dir string) *Partitioned {
	return NewPartitioned(dir, csvFormat{})
}

// Path returns the directory the adapter writes.
func (p *Partitioned) Path() string {
	return p.dir
}

// FilePath returns the file holding the collection of modelName.
func (p *Partitioned) FilePath(modelName string) string {
	return filepath.Join(p.dir, partitionFileName(modelName, p.format.Extension()))
}

// Persist creates the directory if needed and writes every collection,
// each file atomically. Files are independent; a failure can leave earlier
// files of the same call already replaced.
func (p *Partitioned) Persist(st *state.State) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return dberr.IO(p.dir, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range st.Collections() {
		path := p.FilePath(c.Model().Name())
		data, err := p.format.EncodeCollection(c)
		if err != nil {
			return withPath(dberr.CodeSerialization, path, err)
		}

		sum := xxhash.Sum64(data)
		if prev, ok := p.hashes[path]; ok && prev == sum && fileExists(path) {
			continue
		}
		if err := WriteFileAtomic(path, data, defaultFileMode); err != nil {
			delete(p.hashes, path)
			return dberr.IO(path, err)
		}
		p.hashes[path] = sum
	}
	return nil
}

// Load reads every declared model's file. A missing directory is an empty
// state and a missing file is an empty collection. Files of undeclared
// models are not read.
func (p *Partitioned) Load(reg *model.Registry) (*state.State, error) {
	st := state.New(reg)

	info, err := os.Stat(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, dberr.IO(p.dir, err)
	}
	if !info.IsDir() {
		return nil, dberr.IO(p.dir, fmt.Errorf("expected a directory, found a file"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range reg.Models() {
		path := p.FilePath(m.Name())
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, dberr.IO(path, err)
		}

		records, err := p.format.DecodeCollection(data, m)
		if err != nil {
			return nil, withPath(dberr.CodeSerialization, path, err)
		}
		if err := st.Replace(m.Name(), records); err != nil {
			return nil, withPath(dberr.CodeSerialization, path, err)
		}
		p.hashes[path] = xxhash.Sum64(data)
	}
	return st, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
