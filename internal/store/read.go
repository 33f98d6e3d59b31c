package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no session has the requested ID.
var ErrNotFound = errors.New("session not found")

const selectSessions = `
	SELECT id, seq, document, format, expression, expression_hash, backend, outcome, result, error_code, error_message
	FROM sessions
`

// ReadSessions returns journaled sessions in seq order. A limit of zero or
// less returns all of them; otherwise the most recent limit sessions are
// returned, still oldest first.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadSessions(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return s.query(ctx, selectSessions+`ORDER BY seq ASC, id COLLATE BINARY ASC`)
	}
	return s.query(ctx, `
		SELECT * FROM (`+selectSessions+`
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, limit)
}

// ReadSession returns the session with the given ID, or ErrNotFound.
func (s *Store) ReadSession(ctx context.Context, id string) (Entry, error) {
	entries, err := s.query(ctx, selectSessions+`WHERE id = ? ORDER BY seq ASC, id COLLATE BINARY ASC`, id)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("read session %s: %w", id, ErrNotFound)
	}
	return entries[0], nil
}

// SessionsByHash returns every session that compiled the expression with
// the given content hash, in seq order.
func (s *Store) SessionsByHash(ctx context.Context, hash string) ([]Entry, error) {
	return s.query(ctx, selectSessions+`WHERE expression_hash = ? ORDER BY seq ASC, id COLLATE BINARY ASC`, hash)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		outcome string
		result  string
	)
	err := rows.Scan(
		&e.ID,
		&e.Seq,
		&e.Document,
		&e.Format,
		&e.Expression,
		&e.ExpressionHash,
		&e.Backend,
		&outcome,
		&result,
		&e.ErrorCode,
		&e.ErrorMessage,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan session: %w", err)
	}
	e.Outcome = Outcome(outcome)
	e.Result = json.RawMessage(result)
	return e, nil
}
