package model

import (
	"bytes"
	"encoding/json"
)

// Optional holds an API field that may be absent from a response.
// The zero value is "not set".
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Or returns the held value, or def when the field was absent.
func (o Optional[T]) Or(def T) T {
	if !o.Set {
		return def
	}
	return o.Value
}

// UnmarshalJSON treats JSON null the same as a missing field.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = v
	o.Set = true
	return nil
}

// MarshalJSON encodes an unset field as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
