// Package encoding holds the marshalers used to persist catalog documents in blob stores.
package encoding

import (
	"encoding/json"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

// DefaultMarshaler is the global default marshaler. Defaults to JSON.
var DefaultMarshaler = NewMarshaler()

type defaultMarshaler struct{}

// NewMarshaler returns the default marshaler which uses golang's json package.
// JSON keeps catalog documents readable in any backend (files, Redis values, S3 objects).
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal encodes v with DefaultMarshaler, passing byte arrays through untouched.
func Marshal[T any](v T) ([]byte, error) {
	switch b := any(v).(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return DefaultMarshaler.Marshal(v)
	}
}

// Unmarshal decodes ba into v with DefaultMarshaler, passing byte arrays through untouched.
func Unmarshal[T any](ba []byte, v *T) error {
	if p, ok := any(v).(*[]byte); ok {
		*p = ba
		return nil
	}
	return DefaultMarshaler.Unmarshal(ba, v)
}
