package adapter

import (
	"bytes"
	"encoding"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// cellKind tells the CSV decoder how to turn a cell back into JSON.
type cellKind int

const (
	// kindAuto: the field type is unknown. Empty cells are omitted, valid
	// JSON is used as is, anything else is a string.
	kindAuto cellKind = iota

	// kindString: the cell is the string value.
	kindString

	// kindNullableString: the cell is the string value of a pointer;
	// an empty cell is null.
	kindNullableString

	// kindRaw: the cell is JSON text (number, bool, object, array);
	// an empty cell is null.
	kindRaw
)

// csvFormat is a partitioned-only format: one CSV file per model, first row
// is the header.
//
// Columns are the model's declared columns, or else the JSON field names of
// the record struct, in encoding order. Nested values are stored as JSON
// text in their cell. In columns without a Go type (document records)
// strings that would read back as JSON are written quoted.
type csvFormat struct{}

func (csvFormat) Extension() string { return ".csv" }

// EncodeCollection writes the header and one row per record.
func (f csvFormat) EncodeCollection(c *state.Collection) ([]byte, error) {
	m := c.Model()
	columns, kinds, err := csvColumns(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write %s header: %w", m.Name(), err)
	}
	for i, r := range c.GetAll() {
		row, err := encodeRow(r, columns, kinds)
		if err != nil {
			return nil, fmt.Errorf("encode %s row %d: %w", m.Name(), i+1, err)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write %s row %d: %w", m.Name(), i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write %s: %w", m.Name(), err)
	}
	return buf.Bytes(), nil
}

// DecodeCollection reads rows using the header found in the file. Columns
// unknown to the record type are ignored; missing ones take zero values.
func (f csvFormat) DecodeCollection(data []byte, m model.Descriptor) ([]any, error) {
	_, kinds, err := csvColumns(m)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", m.Name(), err)
	}
	r.FieldsPerRecord = len(header)

	records := make([]any, 0)
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.Name(), err)
		}
		record, err := decodeRow(m, header, row, kinds)
		if err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", m.Name(), line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// csvColumns resolves the header and per-column kinds of m.
//
// Struct records take their columns from the struct type, following json
// tag names (omitempty fields included) and embedded structs. Other record
// types fall back to the keys of the JSON encoding of a zero record.
func csvColumns(m model.Descriptor) ([]string, map[string]cellKind, error) {
	keys, kinds, ok := structColumns(reflect.TypeOf(m.NewRecord()).Elem())
	if !ok {
		zero, err := m.Deref(m.NewRecord())
		if err != nil {
			return nil, nil, err
		}
		raw, err := marshalJSON(zero)
		if err != nil {
			return nil, nil, fmt.Errorf("derive %s columns: %w", m.Name(), err)
		}
		keys, kinds, err = objectKeys(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("derive %s columns: %w", m.Name(), err)
		}
	}

	if declared := m.Columns(); declared != nil {
		return declared, kinds, nil
	}
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("model %s: record fields cannot be derived, declare columns", m.Name())
	}
	return keys, kinds, nil
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// csvField is one encoded field of a struct record.
type csvField struct {
	name  string
	kind  cellKind
	depth int
}

// structColumns lists the JSON field names of t in encoding order. ok is
// false if t (after pointer indirection) is not a struct.
func structColumns(t reflect.Type) (keys []string, kinds map[string]cellKind, ok bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, false
	}

	var fields []csvField
	collectFields(t, 0, map[reflect.Type]bool{t: true}, &fields)

	// A name used at several depths belongs to the shallowest field; a name
	// used twice at the same depth is dropped, as encoding/json does.
	best := make(map[string]int)
	count := make(map[string]int)
	for _, f := range fields {
		d, seen := best[f.name]
		switch {
		case !seen || f.depth < d:
			best[f.name] = f.depth
			count[f.name] = 1
		case f.depth == d:
			count[f.name]++
		}
	}

	kinds = make(map[string]cellKind)
	for _, f := range fields {
		if f.depth != best[f.name] || count[f.name] != 1 {
			continue
		}
		if _, dup := kinds[f.name]; dup {
			continue
		}
		keys = append(keys, f.name)
		kinds[f.name] = f.kind
	}
	return keys, kinds, true
}

func collectFields(t reflect.Type, depth int, path map[reflect.Type]bool, out *[]csvField) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			et := f.Type
			if et.Kind() == reflect.Pointer {
				if !f.IsExported() {
					continue
				}
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if !path[et] {
					path[et] = true
					collectFields(et, depth+1, path, out)
					delete(path, et)
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}

		kind := fieldKind(f.Type)
		if hasTagOption(opts, "string") && quotableScalar(f.Type) {
			kind = kindString
		}
		*out = append(*out, csvField{name: name, kind: kind, depth: depth})
	}
}

// fieldKind maps a Go field type to the way its cells are decoded.
func fieldKind(t reflect.Type) cellKind {
	nullable := false
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
		nullable = true
	}

	isString := false
	switch {
	case t.Kind() == reflect.Interface:
		return kindAuto
	case t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType):
		return kindAuto
	case t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType):
		isString = true
	case t.Kind() == reflect.String:
		isString = true
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		isString = true // base64
	}

	switch {
	case isString && nullable:
		return kindNullableString
	case isString:
		return kindString
	}
	return kindRaw
}

// quotableScalar reports whether the json ",string" option applies to t.
func quotableScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func hasTagOption(opts, option string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == option {
			return true
		}
	}
	return false
}

// objectKeys walks a JSON object and returns its keys in order with the kind
// of each value. Non-object input yields no keys.
func objectKeys(raw []byte) ([]string, map[string]cellKind, error) {
	kinds := make(map[string]cellKind)
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, kinds, nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		kinds[key] = kindOf(value)
	}
	return keys, kinds, nil
}

func kindOf(value json.RawMessage) cellKind {
	if len(value) == 0 {
		return kindAuto
	}
	switch value[0] {
	case '"':
		return kindString
	case 'n':
		return kindAuto
	default:
		return kindRaw
	}
}

func encodeRow(record any, columns []string, kinds map[string]cellKind) ([]string, error) {
	raw, err := marshalJSON(record)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}

	row := make([]string, len(columns))
	for i, col := range columns {
		v, ok := fields[col]
		switch {
		case !ok || string(v) == "null":
			row[i] = ""
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, err
			}
			// An untyped column decodes valid JSON as JSON, so a string
			// that reads as JSON (or is empty) keeps its quotes.
			if kinds[col] == kindAuto && (s == "" || json.Valid([]byte(s))) {
				row[i] = string(v)
			} else {
				row[i] = s
			}
		default:
			row[i] = string(v)
		}
	}
	return row, nil
}

func decodeRow(m model.Descriptor, header, row []string, kinds map[string]cellKind) (any, error) {
	obj := make(map[string]json.RawMessage, len(header))
	for i, col := range header {
		cell := row[i]
		switch kinds[col] {
		case kindNullableString:
			if cell == "" {
				obj[col] = json.RawMessage("null")
				continue
			}
			quoted, err := marshalJSON(cell)
			if err != nil {
				return nil, err
			}
			obj[col] = quoted
		case kindString:
			quoted, err := marshalJSON(cell)
			if err != nil {
				return nil, err
			}
			obj[col] = quoted
		case kindRaw:
			if cell == "" {
				obj[col] = json.RawMessage("null")
			} else {
				obj[col] = json.RawMessage(cell)
			}
		default:
			switch {
			case cell == "":
			case json.Valid([]byte(cell)):
				obj[col] = json.RawMessage(cell)
			default:
				quoted, err := marshalJSON(cell)
				if err != nil {
					return nil, err
				}
				obj[col] = quoted
			}
		}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	ptr := m.NewRecord()
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, err
	}
	return m.Deref(ptr)
}
