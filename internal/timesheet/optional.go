package timesheet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Optional is one slot of a partial update. Set records that the key was
// present in the request; Null that it was present with a JSON null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null slot.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a slot that was explicitly cleared.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON implements json.Unmarshaler. It only runs for keys present
// in the document, which is what makes Set meaningful.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}

// Numeric holds a JSON number or a numeric string. Conversion is deferred so
// a bad value surfaces as a validation failure instead of a decode error.
type Numeric string

// UnmarshalJSON implements json.Unmarshaler and never fails.
func (n *Numeric) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Numeric(strings.TrimSpace(s))
		return nil
	}
	*n = Numeric(bytes.TrimSpace(b))
	return nil
}

// Float64 parses the value as a float.
func (n Numeric) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int64 parses the value as an integer. Integral floats such as 3.0 are accepted.
func (n Numeric) Int64() (int64, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || f != float64(int64(f)) {
		return 0, strconv.ErrSyntax
	}
	return int64(f), nil
}
