package jit

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes backend errors.
type ErrorCode string

const (
	// ErrCodeCompilationFailed indicates the backend rejected the IR.
	ErrCodeCompilationFailed ErrorCode = "BACKEND_COMPILATION_FAILED"

	// ErrCodeSymbolNotFound indicates no exported function has the requested name.
	ErrCodeSymbolNotFound ErrorCode = "BACKEND_SYMBOL_NOT_FOUND"
)

// BackendError is returned by backends for compilation and lookup failures.
// Both are fatal for the session; callers do not retry.
type BackendError struct {
	Code    ErrorCode
	Backend string
	Symbol  string
	Err     error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s: %s backend", e.Code, e.Backend)
	if e.Symbol != "" {
		msg += fmt.Sprintf(": symbol %q", e.Symbol)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// CompilationFailed wraps err as a compilation failure of backend.
func CompilationFailed(backend string, err error) *BackendError {
	return &BackendError{Code: ErrCodeCompilationFailed, Backend: backend, Err: err}
}

// SymbolNotFound reports that backend has no exported function symbol.
func SymbolNotFound(backend, symbol string) *BackendError {
	return &BackendError{Code: ErrCodeSymbolNotFound, Backend: backend, Symbol: symbol}
}

// IsCompilationFailed returns true if err is a backend compilation failure.
func IsCompilationFailed(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Code == ErrCodeCompilationFailed
}

// IsSymbolNotFound returns true if err is a missing symbol error.
func IsSymbolNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Code == ErrCodeSymbolNotFound
}
