package effect

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
)

var nullDocument = []byte("null")

// Value is an opaque, self-describing serialized result. It marshals as the
// stored JSON document itself.
type Value struct {
	raw json.RawMessage
}

// Unit is the result of calls that return nothing meaningful. It is recorded
// as null, so a unit result never decodes as a struct and no struct result
// decodes as a unit.
type Unit struct{}

var unitType = reflect.TypeOf(Unit{})

// MarshalJSON implements json.Marshaler.
func (Unit) MarshalJSON() ([]byte, error) {
	return append([]byte(nil), nullDocument...), nil
}

// UnmarshalJSON implements json.Unmarshaler; only null is accepted.
func (*Unit) UnmarshalJSON(data []byte) error {
	if !bytes.Equal(bytes.TrimSpace(data), nullDocument) {
		return errors.New("unit must be null")
	}
	return nil
}

// Encode serializes v into a Value.
func Encode[T any](v T) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, &EncodeError{Type: typeName[T](), Err: err}
	}
	return Value{raw: data}, nil
}

// Decode reads v back as T.
//
// Decoding is strict: unknown object fields and trailing data are rejected,
// and a null document only decodes into Unit, pointers, interfaces, maps and
// slices.
func Decode[T any](v Value) (T, error) {
	var out T
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 {
		return out, &DecodeError{Type: typeName[T](), Err: errors.New("empty value")}
	}
	if bytes.Equal(raw, nullDocument) && !acceptsNull(reflect.TypeOf((*T)(nil)).Elem()) {
		return out, &DecodeError{Type: typeName[T](), Err: errors.New("null value")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		var zero T
		return zero, &DecodeError{Type: typeName[T](), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		var zero T
		return zero, &DecodeError{Type: typeName[T](), Err: errors.New("trailing data after value")}
	}
	return out, nil
}

// Raw wraps an already serialized JSON document.
func Raw(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return Value{}, &DecodeError{Type: "json document", Err: errors.New("invalid json")}
	}
	return Value{raw: bytes.Clone(data)}, nil
}

// Bytes returns a copy of the serialized document.
func (v Value) Bytes() []byte {
	if len(v.raw) == 0 {
		return append([]byte(nil), nullDocument...)
	}
	return bytes.Clone(v.raw)
}

// String returns the serialized document.
func (v Value) String() string {
	return string(v.Bytes())
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return &DecodeError{Type: "json document", Err: errors.New("invalid json")}
	}
	v.raw = bytes.Clone(bytes.TrimSpace(data))
	return nil
}

func acceptsNull(t reflect.Type) bool {
	if t == unitType {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if name := t.String(); name != "" {
		return name
	}
	return t.Kind().String()
}
