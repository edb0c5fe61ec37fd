// Package record defines the unit-of-work types shared by every collector:
// keys, sparse records, classified fetch results and the error taxonomy.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Key identifies one unit of work: a page index or an entity slug.
type Key string

// PageKey renders a page index as a Key.
func PageKey(page int) Key {
	return Key(fmt.Sprintf("%d", page))
}

// Record is an ordered, sparse mapping from field name to scalar value.
// Field order is insertion order; setting an existing field keeps its position.
// Values are string, bool, a Go number type, or nil.
type Record struct {
	fields []string
	values map[string]any
}

// New creates an empty record.
func New() Record {
	return Record{values: make(map[string]any)}
}

// FromPairs builds a record from alternating name/value arguments.
func FromPairs(pairs ...any) Record {
	r := New()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set stores value under name.
func (r *Record) Set(name string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[name]; !exists {
		r.fields = append(r.fields, name)
	}
	r.values[name] = value
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// String returns the value under name formatted as text, or "" if absent.
func (r Record) String(name string) string {
	v, ok := r.values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Fields returns field names in insertion order.
func (r Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Clone returns a deep copy of the record's field list and values.
func (r Record) Clone() Record {
	c := Record{
		fields: make([]string, len(r.fields)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.fields, r.fields)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Merge returns a copy of r with every field of other applied on top.
// Fields only present in other are appended in other's order.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	for _, name := range other.fields {
		out.Set(name, other.values[name])
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, name := range r.fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", name, err)
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a flat JSON object keeping the document's field order.
// Nested objects and arrays are kept as their compact JSON text.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record must be a JSON object, got %v", tok)
	}

	*r = New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
		value, err := ParseScalar(raw)
		if err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
		r.Set(name, value)
	}

	_, err = dec.Token()
	return err
}

// ParseScalar converts one raw JSON value into a record value: numbers become
// int64 or float64, null or missing input becomes nil, and nested objects or
// arrays are kept as compact JSON text.
func ParseScalar(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return v, nil
}
