package store

import (
	"context"
	"fmt"
)

// WriteSession appends a session to the journal and returns its seq.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a duplicate ID is
// silently ignored and the existing row keeps its seq.
func (s *Store) WriteSession(ctx context.Context, e Entry) (int64, error) {
	if e.ID == "" {
		return 0, fmt.Errorf("write session: id is required")
	}
	if e.Outcome == "" {
		return 0, fmt.Errorf("write session %s: outcome is required", e.ID)
	}
	result, err := resultText(e.Result)
	if err != nil {
		return 0, fmt.Errorf("write session %s: %w", e.ID, err)
	}
	if e.Seq == 0 {
		e.Seq = s.clock.Next()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, seq, document, format, expression, expression_hash, backend, outcome, result, error_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Seq,
		e.Document,
		e.Format,
		e.Expression,
		e.ExpressionHash,
		e.Backend,
		string(e.Outcome),
		result,
		e.ErrorCode,
		e.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("write session %s: %w", e.ID, err)
	}

	var seq int64
	if err := s.db.QueryRowContext(ctx, "SELECT seq FROM sessions WHERE id = ?", e.ID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write session %s: read back seq: %w", e.ID, err)
	}
	return seq, nil
}
