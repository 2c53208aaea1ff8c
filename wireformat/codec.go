// Package wireformat converts between the byte buffers exchanged with the host
// and the SDK's structured values. Encoding is deterministic: struct fields are
// written in declaration order, map keys sorted and raw documents compacted.
// Decoding is total: any input either yields a value or a *errors.DecodeError.
package wireformat

import (
	"bytes"
	stdjson "encoding/json"
	stdErrors "errors"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

// Decode failure causes.
var (
	ErrEmptyInput   = stdErrors.New("empty input")
	ErrNullDocument = stdErrors.New("document is null")
	ErrInvalidJSON  = stdErrors.New("malformed or truncated JSON")
)

// Encode serializes v. Failures are reported as *errors.DecodeError with Encoding set.
func Encode(v any) (data []byte, err error) {
	typeName := fmt.Sprintf("%T", v)
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = &errors.DecodeError{Type: typeName, Encoding: true, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	data, err = json.Marshal(v)
	if err != nil {
		return nil, &errors.DecodeError{Type: typeName, Encoding: true, Err: err}
	}
	return data, nil
}

// Decode parses data into a new T. Empty, null, truncated, trailing-garbage and
// type-mismatched input all yield *errors.DecodeError. Unknown fields are ignored.
func Decode[T any](data []byte) (T, error) {
	var v T
	err := decodeInto(data, &v, typeName[T]())
	return v, err
}

// DecodeInto parses data into an existing value, keeping fields absent from data.
func DecodeInto(data []byte, into any) error {
	return decodeInto(data, into, fmt.Sprintf("%T", into))
}

func decodeInto(data []byte, into any, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.DecodeError{Type: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return &errors.DecodeError{Type: name, Err: ErrEmptyInput}
	case bytes.Equal(trimmed, []byte("null")):
		return &errors.DecodeError{Type: name, Err: ErrNullDocument}
	case !Valid(trimmed):
		return &errors.DecodeError{Type: name, Err: ErrInvalidJSON}
	}

	if err := json.Unmarshal(trimmed, into); err != nil {
		return &errors.DecodeError{Type: name, Err: err}
	}
	return nil
}

// Compact returns the compact form of a JSON document.
func Compact(doc []byte) ([]byte, error) {
	if !Valid(doc) {
		return nil, ErrInvalidJSON
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Valid reports whether data is a single well formed JSON document. Anything
// after the first value other than whitespace makes the document invalid;
// go-json's own Valid lets a stray closing bracket through.
func Valid(data []byte) bool {
	return stdjson.Valid(data)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
