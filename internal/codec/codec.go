// Package codec encodes domain records to and from the store's string value
// type. Decoding fails closed: a malformed value is reported but callers are
// expected to fall back to the empty/absent projection instead of crashing a
// read path.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeJSON marshals v into the store's value representation.
func EncodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

// DecodeJSON unmarshals a stored value into T.
func DecodeJSON[T any](raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		var zero T
		return zero, fmt.Errorf("unmarshal: %w", err)
	}
	return v, nil
}

// EncodeInt renders an integer counter value.
func EncodeInt(n int64) string { return strconv.FormatInt(n, 10) }

// DecodeInt parses an integer counter value.
func DecodeInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	return n, nil
}
