// Package amp implements the minimal length-prefixed AMP wire format:
// self-delimiting typed fields (blob, string, bigint, json) framed with a
// length prefix so that multiple frames may be read back-to-back off one
// TCP stream.
package amp

import (
	"encoding/binary"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type identifies the wire representation of a Field's value.
type Type byte

const (
	// Blob carries an opaque byte slice.
	Blob Type = iota + 1
	// String carries a UTF-8 string.
	String
	// BigInt carries a signed 64-bit integer, big-endian on the wire.
	BigInt
	// JSON carries a UTF-8 encoded JSON document.
	JSON
)

func (t Type) String() string {
	switch t {
	case Blob:
		return "blob"
	case String:
		return "string"
	case BigInt:
		return "bigint"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// ErrFieldType is returned when a Field is read as a type it wasn't written as.
var ErrFieldType = errors.New("amp: field accessed as wrong type")

// Field is a single typed value carried on the wire.
type Field struct {
	Type Type
	Raw  []byte
}

// NewBlob builds a Blob field from raw bytes. The slice is kept, not copied.
func NewBlob(b []byte) Field {
	return Field{Type: Blob, Raw: b}
}

// NewString builds a String field.
func NewString(s string) Field {
	return Field{Type: String, Raw: []byte(s)}
}

// NewBigInt builds a BigInt field.
func NewBigInt(v int64) Field {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	return Field{Type: BigInt, Raw: raw}
}

// NewJSON marshals v and builds a JSON field.
func NewJSON(v interface{}) (Field, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Field{}, err
	}
	return Field{Type: JSON, Raw: raw}, nil
}

// Blob returns the field's raw bytes if it is a Blob field.
func (f Field) Blob() ([]byte, error) {
	if f.Type != Blob {
		return nil, ErrFieldType
	}
	return f.Raw, nil
}

// String returns the field's string value if it is a String field.
func (f Field) String() (string, error) {
	if f.Type != String {
		return "", ErrFieldType
	}
	return string(f.Raw), nil
}

// BigInt returns the field's integer value if it is a BigInt field.
func (f Field) BigInt() (int64, error) {
	if f.Type != BigInt || len(f.Raw) != 8 {
		return 0, ErrFieldType
	}
	return int64(binary.BigEndian.Uint64(f.Raw)), nil
}

// JSON unmarshals the field's value into out if it is a JSON field.
func (f Field) JSON(out interface{}) error {
	if f.Type != JSON {
		return ErrFieldType
	}
	return json.Unmarshal(f.Raw, out)
}
