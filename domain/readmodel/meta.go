// Package readmodel holds what the family read models share: the Meta map,
// timestamp columns and the projection table helper.
package readmodel

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Meta is the free-form key/value part of a read model row. Typed columns
// never live in Meta.
type Meta map[string]string

// Get returns the value for key and whether it is set.
func (m Meta) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Value returns the value for key or "".
func (m Meta) Value(key string) string { return m[key] }

// With returns a copy of m with key set to value. An empty value removes
// key.
func (m Meta) With(key, value string) Meta {
	out := m.Clone()
	if value == "" {
		delete(out, key)
	} else {
		out[key] = value
	}
	return out
}

func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	maps.Copy(out, m)
	return out
}

// Keys returns the keys in sorted order.
func (m Meta) Keys() []string { return slices.Sorted(maps.Keys(m)) }

// Encode returns the JSON object stored in meta columns.
func (m Meta) Encode() (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeMeta parses a meta column.
func DecodeMeta(s string) (Meta, error) {
	m := Meta{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return m, nil
}
