package adapter

import (
	"bytes"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// yamlFormat encodes records as YAML sequences.
//
// Struct fields without yaml tags use yaml.v3's default key, the lowercased
// field name.
type yamlFormat struct{}

func (yamlFormat) Extension() string { return ".yaml" }

// EncodeState writes one mapping keyed by model name, in registry order.
func (f yamlFormat) EncodeState(st *state.State) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range st.Collections() {
		seq, err := f.encodeRecords(c)
		if err != nil {
			return nil, err
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Model().Name()}
		root.Content = append(root.Content, key, seq)
	}
	return encodeYAML(root)
}

// DecodeState parses a mapping keyed by model name. An empty document is an
// empty state.
func (f yamlFormat) DecodeState(data []byte, reg *model.Registry) (*state.State, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	st := state.New(reg)
	if len(doc.Content) == 0 {
		return st, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return st, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: document must be a mapping of model names", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		m, ok := reg.Lookup(key.Value)
		if !ok {
			slog.Warn("ignoring undeclared model in document", "model", key.Value)
			continue
		}
		records, err := decodeYAMLRecords(value, m)
		if err != nil {
			return nil, err
		}
		if err := st.Replace(m.Name(), records); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// EncodeCollection writes one collection as a sequence.
func (f yamlFormat) EncodeCollection(c *state.Collection) ([]byte, error) {
	seq, err := f.encodeRecords(c)
	if err != nil {
		return nil, err
	}
	return encodeYAML(seq)
}

// DecodeCollection parses one sequence of records. An empty file is an empty collection.
func (f yamlFormat) DecodeCollection(data []byte, m model.Descriptor) ([]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.Name(), err)
	}
	if len(doc.Content) == 0 {
		return []any{}, nil
	}
	return decodeYAMLRecords(doc.Content[0], m)
}

func (f yamlFormat) encodeRecords(c *state.Collection) (*yaml.Node, error) {
	slice, err := c.Model().Slice(c.GetAll())
	if err != nil {
		return nil, err
	}
	var seq yaml.Node
	if err := seq.Encode(slice); err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Model().Name(), err)
	}
	return &seq, nil
}

func decodeYAMLRecords(node *yaml.Node, m model.Descriptor) ([]any, error) {
	target := m.NewSlice()
	if err := node.Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Name(), err)
	}
	return m.Records(target)
}

func encodeYAML(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}
