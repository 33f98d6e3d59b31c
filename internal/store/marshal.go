package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalResult encodes a session result as compact JSON TEXT.
// HTML escaping is disabled so strings are stored as written.
func MarshalResult(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimSpace(buf.Bytes()), nil
}

// resultText normalizes an Entry result for storage.
func resultText(r json.RawMessage) (string, error) {
	if len(r) == 0 {
		return "null", nil
	}
	if !json.Valid(r) {
		return "", fmt.Errorf("result is not valid JSON: %q", r)
	}
	return string(r), nil
}
