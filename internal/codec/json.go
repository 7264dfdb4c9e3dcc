// Package codec is the single JSON codec of the service. Fiber, the
// adapter and the tests all encode through it, so the null-omission and
// date/time rules apply the same way on every endpoint.
package codec

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"
)

// Marshal encodes v as JSON. HTML characters are not escaped.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Decode reads a single JSON value from r into v.
func Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// DecodeStrict decodes data into v, rejecting object keys that have no
// matching struct field, so no request field is silently dropped.
func DecodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Valid reports whether data is a syntactically valid JSON value.
func Valid(data []byte) bool {
	return json.Valid(data)
}
