package document

import "fmt"

// ErrorCode categorizes load errors.
type ErrorCode string

const (
	ErrCodeReadFailed        ErrorCode = "READ_FAILED"
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParseFailed       ErrorCode = "PARSE_FAILED"
	ErrCodeInvalidNode       ErrorCode = "INVALID_NODE"
	ErrCodeOutOfRange        ErrorCode = "OUT_OF_RANGE"
	ErrCodeInvalidRecord     ErrorCode = "INVALID_RECORD"
	ErrCodeUnknownKey        ErrorCode = "UNKNOWN_KEY"
	ErrCodeEmpty             ErrorCode = "EMPTY_DOCUMENT"
)

// Position locates a value in a source file. The zero Position is unknown.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// IsValid reports whether the position is known.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// LoadError represents an error that occurred while loading a document.
type LoadError struct {
	Code    ErrorCode
	Message string
	Path    string   // document path like "$.expression[2]"; empty for file-level errors
	Pos     Position // source position if available
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (at %s)", e.Path)
	}
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + msg
	}
	return msg
}
