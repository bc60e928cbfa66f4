package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ExtraDataAfterJSONError is returned when a decoder finds more input after the first JSON value.
type ExtraDataAfterJSONError struct{}

func (e *ExtraDataAfterJSONError) Error() string {
	return "extra data after JSON object"
}

// FromJSON decodes data into T. Unknown fields are rejected. Empty input yields the zero value.
//
//nolint:ireturn // Generic functions must return type parameter T
func FromJSON[T any](data []byte) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, nil
	}

	return FromJSONStream[T](bytes.NewReader(data))
}

// FromJSONStream decodes exactly one JSON value from r into T.
//
//nolint:ireturn // Generic functions must return type parameter T
func FromJSONStream[T any](r io.Reader) (T, error) {
	var v T

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&v); err != nil {
		return v, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return v, &ExtraDataAfterJSONError{}
	}

	return v, nil
}

// ToJSON encodes v without HTML escaping and without a trailing newline.
func ToJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := ToJSONStream(&buf, v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ToJSONStream encodes v to w without HTML escaping.
func ToJSONStream(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}
