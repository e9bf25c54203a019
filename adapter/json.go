package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// jsonFormat encodes records as JSON arrays.
//
// As a document format the whole state is one object keyed by model name,
// with keys in registry order. As a collection format each file is one array.
type jsonFormat struct {
	compact bool
}

func (f jsonFormat) Extension() string { return ".json" }

// EncodeState builds the document by hand so keys follow registry order
// rather than encoding/json's sorted map keys.
func (f jsonFormat) EncodeState(st *state.State) ([]byte, error) {
	var raw bytes.Buffer
	raw.WriteByte('{')
	for i, c := range st.Collections() {
		if i > 0 {
			raw.WriteByte(',')
		}
		key, err := marshalJSON(c.Model().Name())
		if err != nil {
			return nil, err
		}
		raw.Write(key)
		raw.WriteByte(':')

		arr, err := f.encodeRecords(c)
		if err != nil {
			return nil, err
		}
		raw.Write(arr)
	}
	raw.WriteByte('}')
	return f.finish(raw.Bytes())
}

// DecodeState parses a document. Keys naming undeclared models are ignored
// with a warning; a declared model without a key loads as empty.
func (f jsonFormat) DecodeState(data []byte, reg *model.Registry) (*state.State, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	st := state.New(reg)
	for _, m := range reg.Models() {
		raw, ok := doc[m.Name()]
		if !ok {
			continue
		}
		records, err := decodeJSONRecords(raw, m)
		if err != nil {
			return nil, err
		}
		if err := st.Replace(m.Name(), records); err != nil {
			return nil, err
		}
	}

	var unknown []string
	for key := range doc {
		if _, ok := reg.Lookup(key); !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		slog.Warn("ignoring undeclared model in document", "model", key)
	}
	return st, nil
}

// EncodeCollection writes one collection as an array.
func (f jsonFormat) EncodeCollection(c *state.Collection) ([]byte, error) {
	arr, err := f.encodeRecords(c)
	if err != nil {
		return nil, err
	}
	return f.finish(arr)
}

// DecodeCollection parses one array of records.
func (f jsonFormat) DecodeCollection(data []byte, m model.Descriptor) ([]any, error) {
	return decodeJSONRecords(data, m)
}

func (f jsonFormat) encodeRecords(c *state.Collection) ([]byte, error) {
	slice, err := c.Model().Slice(c.GetAll())
	if err != nil {
		return nil, err
	}
	arr, err := marshalJSON(slice)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Model().Name(), err)
	}
	return arr, nil
}

// finish indents raw unless compact output was requested, and terminates it with a newline.
func (f jsonFormat) finish(raw []byte) ([]byte, error) {
	if f.compact {
		return append(raw, '\n'), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func decodeJSONRecords(raw []byte, m model.Descriptor) ([]any, error) {
	target := m.NewSlice()
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Name(), err)
	}
	return m.Records(target)
}

// marshalJSON encodes v without HTML escaping, so <, > and & survive verbatim.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
