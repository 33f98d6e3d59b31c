package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSession_AssignsSeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	seq1, err := s.WriteSession(ctx, createTestEntry("b", "h1"))
	require.NoError(t, err)
	seq2, err := s.WriteSession(ctx, createTestEntry("a", "h1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)
}

func TestWriteSession_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first, err := s.WriteSession(ctx, createTestEntry("s-1", "h1"))
	require.NoError(t, err)

	dup := createTestEntry("s-1", "other")
	dup.Outcome = OutcomeCompileError
	again, err := s.WriteSession(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	e, err := s.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, e.Outcome, "first write wins")
	assert.Equal(t, "h1", e.ExpressionHash)
}

func TestWriteSession_Validation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.WriteSession(ctx, Entry{Outcome: OutcomeOK, Backend: "wasm"})
	assert.ErrorContains(t, err, "id is required")

	_, err = s.WriteSession(ctx, Entry{ID: "x", Backend: "wasm"})
	assert.ErrorContains(t, err, "outcome is required")

	bad := createTestEntry("y", "h")
	bad.Result = json.RawMessage(`{not json`)
	_, err = s.WriteSession(ctx, bad)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestWriteSession_FailureEntry(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.WriteSession(ctx, Entry{
		ID:           "fail",
		Document:     "bad.json",
		Backend:      "wasm",
		Outcome:      OutcomeCompileError,
		ErrorCode:    "E201",
		ErrorMessage: "UNSUPPORTED_OPERATOR: no binary operator \"%\"",
	})
	require.NoError(t, err)

	e, err := s.ReadSession(ctx, "fail")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), e.Result)
	assert.Equal(t, "E201", e.ErrorCode)
	assert.Empty(t, e.Expression)
}

func TestWriteSession_SeqResumesAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.WriteSession(ctx, createTestEntry("one", "h"))
	require.NoError(t, err)
	_, err = s.WriteSession(ctx, createTestEntry("two", "h"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	seq, err := s.WriteSession(ctx, createTestEntry("three", "h"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMarshalResult(t *testing.T) {
	raw, err := MarshalResult(map[string]any{"currency": "<USD>", "amount": 20.0})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":20,"currency":"<USD>"}`, string(raw))
}
