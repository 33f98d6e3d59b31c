package store

import "encoding/json"

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeLoadError    Outcome = "load_error"
	OutcomeCompileError Outcome = "compile_error"
	OutcomeBackendError Outcome = "backend_error"
)

// Entry is one journaled session.
type Entry struct {
	ID  string
	Seq int64 // assigned by WriteSession when zero

	Document string
	Format   string

	// Expression is the prefix form of the expression and ExpressionHash
	// its content hash; both empty when the document had no expression.
	Expression     string
	ExpressionHash string

	Backend string
	Outcome Outcome

	// Result is the JSON encoding of the evaluated value(s), "null" on failure.
	Result json.RawMessage

	ErrorCode    string
	ErrorMessage string
}
