package models

import (
	"encoding/json"
	"time"
)

// Field is an optional JSON value that tells "absent" apart from an explicit null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a field explicitly cleared.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Get returns the value when the field carries one.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Set && !f.Null
}

// Cleared reports whether the field was explicitly set to null.
func (f Field[T]) Cleared() bool {
	return f.Set && f.Null
}

// UnmarshalJSON only runs when the key is present, which is what marks the field as set.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false

	if p, ok := any(&f.Value).(*time.Time); ok {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := ParseTime(s)
		if err != nil {
			return err
		}
		if t.IsZero() {
			f.Null = true
		}
		*p = t
		return nil
	}

	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON writes null for absent or cleared fields.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	v, ok := f.Get()
	if !ok {
		return []byte("null"), nil
	}
	if t, isTime := any(v).(time.Time); isTime {
		return json.Marshal(FormatTime(t))
	}
	return json.Marshal(v)
}
