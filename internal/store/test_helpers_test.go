package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a successful session entry with minimal fields.
func createTestEntry(id, hash string) Entry {
	return Entry{
		ID:             id,
		Document:       "structure.json",
		Format:         "json",
		Expression:     "(+ 1 (- 2))",
		ExpressionHash: hash,
		Backend:        "wasm",
		Outcome:        OutcomeOK,
		Result:         json.RawMessage(`{"value":-1}`),
	}
}
