package compiler

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates no operator exists for a token/arity pair.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeMalformedExpression indicates an operation with other than 1 or 2 operands.
	ErrCodeMalformedExpression ErrorCode = "MALFORMED_EXPRESSION"

	// ErrCodeDuplicateFieldName indicates two record fields share a name.
	ErrCodeDuplicateFieldName ErrorCode = "DUPLICATE_FIELD_NAME"

	// ErrCodeEmptyRecord indicates a record definition without fields.
	ErrCodeEmptyRecord ErrorCode = "EMPTY_RECORD"

	// ErrCodeDuplicateRecord indicates a record name defined twice in a session.
	ErrCodeDuplicateRecord ErrorCode = "DUPLICATE_RECORD"

	// ErrCodeUnknownType indicates a type name that resolves to nothing.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeUnknownField indicates an initializer for a field the record lacks.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeTypeMismatch indicates a constant that does not fit its field.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
)

// CompileError reports why an expression or record could not be compiled.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject is the operator token, record or field name involved.
	Subject string

	// Path locates the offending node: "$" is the root, "$[2][1]" is the
	// first operand of the root's second operand.
	Path string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode reports whether err wraps a CompileError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsUnsupportedOperator returns true if err is an unsupported operator error.
func IsUnsupportedOperator(err error) bool {
	return HasCode(err, ErrCodeUnsupportedOperator)
}

// IsMalformedExpression returns true if err is a malformed expression error.
func IsMalformedExpression(err error) bool {
	return HasCode(err, ErrCodeMalformedExpression)
}

// IsDuplicateFieldName returns true if err is a duplicate field name error.
func IsDuplicateFieldName(err error) bool {
	return HasCode(err, ErrCodeDuplicateFieldName)
}

// IsEmptyRecord returns true if err is an empty record error.
func IsEmptyRecord(err error) bool {
	return HasCode(err, ErrCodeEmptyRecord)
}

func malformed(path, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeMalformedExpression,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}
