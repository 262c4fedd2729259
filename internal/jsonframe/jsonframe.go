// Package jsonframe recovers discrete JSON values from a byte stream that
// arrives in arbitrary chunks with no separators between records.
package jsonframe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrIncomplete reports that buf holds only a prefix of a JSON value. The
// caller should append more bytes and retry.
var ErrIncomplete = errors.New("incomplete json value")

// ErrInvalid reports bytes that can never become a valid JSON value no
// matter how much more data arrives. It is deliberately distinct from
// ErrIncomplete so callers can surface corruption instead of retrying
// forever.
var ErrInvalid = errors.New("invalid json")

// Next extracts the first complete JSON value from buf. On success it
// returns the value's bytes and the total number of bytes consumed,
// including any leading whitespace. The caller advances its buffer by
// exactly the consumed count; bytes past it are never touched.
func Next(buf []byte) (json.RawMessage, int, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrIncomplete
		}
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return nil, 0, fmt.Errorf("%w at offset %d: %v", ErrInvalid, syn.Offset, syn)
		}
		return nil, 0, err
	}
	return raw, int(dec.InputOffset()), nil
}
