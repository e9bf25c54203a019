package model

import "fmt"

// Document is a schemaless record: a JSON-like object.
type Document map[string]any

// DefineDocument declares a model of Documents identified by the value of idField.
//
// Ids are the field value formatted with %v, so 7, 7.0 and "7" collide.
// A document without idField is rejected with a validation error.
func DefineDocument(name, idField string, opts ...Option) *Model[Document, string] {
	m := Define(name, func(d Document) string {
		v, ok := d[idField]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}, opts...)
	m.require = func(d Document) error {
		if v, ok := d[idField]; !ok || v == nil {
			return fmt.Errorf("missing id field %q", idField)
		}
		return nil
	}
	m.clone = Document.Clone
	return m
}

// Clone returns a deep copy of d: nested objects and arrays are copied too.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case Document:
		return v.Clone()
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
