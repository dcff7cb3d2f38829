package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one node of a loosely typed JSON document. Only the field matching
// Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Str    string
	Object *Map
	Array  []*Value
}

// Map is a JSON object that remembers key order.
type Map struct {
	keys   []string
	values map[string]*Value
}

// NewMap returns an empty ordered object.
func NewMap() *Map {
	return &Map{values: map[string]*Value{}}
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (*Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position; new keys are
// appended.
func (m *Map) Set(key string, v *Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in document order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

// StringValue wraps s.
func StringValue(s string) *Value { return &Value{Kind: String, Str: s} }

// ObjectValue wraps m.
func ObjectValue(m *Map) *Value { return &Value{Kind: Object, Object: m} }

// Parse decodes a single JSON value, preserving object key order. Duplicate
// keys keep their first position and their last value.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", t, dec.InputOffset())
		}
	case bool:
		return &Value{Kind: Bool, Bool: t}, nil
	case json.Number:
		return &Value{Kind: Number, Number: t}, nil
	case string:
		return &Value{Kind: String, Str: t}, nil
	case nil:
		return &Value{Kind: Null}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (*Value, error) {
	m := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %v", tok)
		}
		v, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		m.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return ObjectValue(m), nil
}

func parseArray(dec *json.Decoder) (*Value, error) {
	v := &Value{Kind: Array, Array: []*Value{}}
	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", len(v.Array), err)
		}
		v.Array = append(v.Array, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode writes v as multi-line JSON indented with indent, followed by a
// newline.
func Encode(w io.Writer, v *Value, indent string) error {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, indent, 0); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeValue(buf *bytes.Buffer, v *Value, indent string, depth int) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}

	switch v.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if v.Number == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.Number.String())
		}
	case String:
		return encodeString(buf, v.Str)
	case Object:
		if v.Object == nil || v.Object.Len() == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, k := range v.Object.keys {
			writeIndent(buf, indent, depth+1)
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := encodeValue(buf, v.Object.values[k], indent, depth+1); err != nil {
				return err
			}
			if i < len(v.Object.keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, indent, depth)
		buf.WriteByte('}')
	case Array:
		if len(v.Array) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, item := range v.Array {
			writeIndent(buf, indent, depth+1)
			if err := encodeValue(buf, item, indent, depth+1); err != nil {
				return err
			}
			if i < len(v.Array)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, indent, depth)
		buf.WriteByte(']')
	default:
		return fmt.Errorf("cannot encode %s", v.Kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

func writeIndent(buf *bytes.Buffer, indent string, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}

// DetectIndent returns the indentation unit used by the first indented line
// of data, or two spaces when there is none.
func DetectIndent(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || len(trimmed) == len(line) {
			continue
		}
		lead := line[:len(line)-len(trimmed)]
		if strings.HasPrefix(lead, "\t") {
			return "\t"
		}
		return strings.Repeat(" ", len(lead)-len(strings.TrimLeft(lead, " ")))
	}
	return "  "
}
