package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MultiValueDelimiter joins list values into their canonical wire form.
// Consumers split on it to recover the selected items.
const MultiValueDelimiter = ","

type valueKind uint8

const (
	kindScalar valueKind = iota
	kindList
)

// Value is what a field holds: a scalar string or, for checkbox groups, a list of strings.
// File fields hold the opaque reference returned by the upload step as a scalar.
// The zero Value is the empty scalar.
type Value struct {
	kind  valueKind
	text  string
	items []string
}

// Scalar builds a single-string value.
func Scalar(s string) Value {
	return Value{kind: kindScalar, text: s}
}

// List builds a multi-valued value. The items are copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: kindList, items: cp}
}

// IsList reports whether the value is multi-valued.
func (v Value) IsList() bool {
	return v.kind == kindList
}

// Text returns the canonical string form: the scalar itself, or the items joined by MultiValueDelimiter.
func (v Value) Text() string {
	if v.kind == kindList {
		return strings.Join(v.items, MultiValueDelimiter)
	}
	return v.text
}

// Items returns a copy of the list items. A non-empty scalar is returned as a single item.
func (v Value) Items() []string {
	if v.kind == kindList {
		cp := make([]string, len(v.items))
		copy(cp, v.items)
		return cp
	}
	if v.text == "" {
		return []string{}
	}
	return []string{v.text}
}

// Len is the number of list items, or the length in characters of a scalar.
func (v Value) Len() int {
	if v.kind == kindList {
		return len(v.items)
	}
	return len([]rune(v.text))
}

// IsEmpty is true for an unset value, the empty string or an empty list.
func (v Value) IsEmpty() bool {
	if v.kind == kindList {
		return len(v.items) == 0
	}
	return v.text == ""
}

// IsBlank is IsEmpty that also treats a whitespace-only scalar as empty.
func (v Value) IsBlank() bool {
	if v.kind == kindList {
		return len(v.items) == 0
	}
	return strings.TrimSpace(v.text) == ""
}

// Contains tests list membership, or substring inclusion for scalars.
func (v Value) Contains(s string) bool {
	if v.kind == kindList {
		for _, item := range v.items {
			if item == s {
				return true
			}
		}
		return false
	}
	return strings.Contains(v.text, s)
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == kindScalar {
		return v.text == o.text
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	return v.Text()
}

// MarshalJSON encodes scalars as strings and lists as string arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindList {
		items := v.items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a string, an array, or a number/boolean (kept in its literal form).
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			item, err := scalarText(r)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = Value{kind: kindList, items: items}
	case '{':
		return fmt.Errorf("field value must be a string or a list of strings")
	default:
		*v = Scalar(string(data))
	}
	return nil
}

func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if len(raw) == 0 || raw[0] == '[' || raw[0] == '{' || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("list items must be strings, got %s", string(raw))
	}
	return string(raw), nil
}

// ValueFrom converts a loosely typed decoded value (JSON or YAML) into a Value.
func ValueFrom(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Scalar(t), nil
	case []string:
		return List(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case bool, int, int64, float64:
				items = append(items, fmt.Sprint(it))
			default:
				return Value{}, fmt.Errorf("unsupported list item %v", item)
			}
		}
		return Value{kind: kindList, items: items}, nil
	case bool, int, int64, float64:
		return Scalar(fmt.Sprint(t)), nil
	default:
		return Value{}, fmt.Errorf("unsupported value of type %T", raw)
	}
}

// ValueStore is the live field-id to value mapping of one form-filling session.
// It is not safe for concurrent use; the owning session serializes access.
type ValueStore struct {
	values map[string]Value
}

// NewValueStore returns an empty store.
func NewValueStore() *ValueStore {
	return &ValueStore{values: make(map[string]Value)}
}

// Get returns the stored value and whether the field has been set.
func (s *ValueStore) Get(fieldID string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[fieldID]
	return v, ok
}

// Value returns the stored value, or the empty value when unset.
func (s *ValueStore) Value(fieldID string) Value {
	v, _ := s.Get(fieldID)
	return v
}

// Set stores v under fieldID.
func (s *ValueStore) Set(fieldID string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	s.values[fieldID] = v
}

// Unset removes the value of fieldID.
func (s *ValueStore) Unset(fieldID string) {
	delete(s.values, fieldID)
}

// Clear discards every value.
func (s *ValueStore) Clear() {
	s.values = make(map[string]Value)
}

// Len is the number of set fields.
func (s *ValueStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Snapshot returns a copy of the current values.
func (s *ValueStore) Snapshot() map[string]Value {
	out := make(map[string]Value, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
