package cli

import (
	"errors"

	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/document"
	"github.com/roach88/jitexpr/internal/jit"
	"github.com/roach88/jitexpr/internal/session"
	"github.com/roach88/jitexpr/internal/store"
)

// CLI error codes. E0xx are load and I/O errors, E2xx compile errors,
// E3xx backend errors and E4xx conformance test failures.
const (
	ErrCodeGeneric           = "E001"
	ErrCodeReadFailed        = "E002"
	ErrCodeUnsupportedFormat = "E003"
	ErrCodeParseFailed       = "E004"
	ErrCodeNotFound          = "E005"
	ErrCodeInvalidDocument   = "E006"

	ErrCodeUnsupportedOperator = "E201"
	ErrCodeMalformedExpression = "E202"
	ErrCodeDuplicateFieldName  = "E203"
	ErrCodeEmptyRecord         = "E204"
	ErrCodeDuplicateRecord     = "E205"
	ErrCodeUnknownType         = "E206"
	ErrCodeUnknownField        = "E207"
	ErrCodeTypeMismatch        = "E208"

	ErrCodeBackendCompilation = "E301"
	ErrCodeSymbolNotFound     = "E302"
	ErrCodeInvocationFailed   = "E303"

	ErrCodeTestFailed = "E401"
)

var compileCodes = map[compiler.ErrorCode]string{
	compiler.ErrCodeUnsupportedOperator: ErrCodeUnsupportedOperator,
	compiler.ErrCodeMalformedExpression: ErrCodeMalformedExpression,
	compiler.ErrCodeDuplicateFieldName:  ErrCodeDuplicateFieldName,
	compiler.ErrCodeEmptyRecord:         ErrCodeEmptyRecord,
	compiler.ErrCodeDuplicateRecord:     ErrCodeDuplicateRecord,
	compiler.ErrCodeUnknownType:         ErrCodeUnknownType,
	compiler.ErrCodeUnknownField:        ErrCodeUnknownField,
	compiler.ErrCodeTypeMismatch:        ErrCodeTypeMismatch,
}

var backendCodes = map[jit.ErrorCode]string{
	jit.ErrCodeCompilationFailed: ErrCodeBackendCompilation,
	jit.ErrCodeSymbolNotFound:    ErrCodeSymbolNotFound,
}

// classification is how the CLI reports an error.
type classification struct {
	Code    string
	Exit    int
	Outcome store.Outcome
	Details map[string]any
}

// classify maps err to a CLI error code, exit code and journal outcome.
// Documents that cannot be read at all are command errors; everything
// that fails after the document was read is an evaluation failure.
func classify(err error) classification {
	var (
		loadErr    *document.LoadError
		compileErr *compiler.CompileError
		backendErr *jit.BackendError
		invokeErr  *session.InvocationError
	)
	switch {
	case errors.As(err, &loadErr):
		c := classification{Code: ErrCodeInvalidDocument, Exit: ExitFailure, Outcome: store.OutcomeLoadError}
		switch loadErr.Code {
		case document.ErrCodeReadFailed:
			c.Code, c.Exit = ErrCodeReadFailed, ExitCommandError
		case document.ErrCodeUnsupportedFormat:
			c.Code, c.Exit = ErrCodeUnsupportedFormat, ExitCommandError
		case document.ErrCodeParseFailed:
			c.Code = ErrCodeParseFailed
		}
		var pos string
		if loadErr.Pos.IsValid() {
			pos = loadErr.Pos.String()
		}
		c.Details = details("load_code", string(loadErr.Code), "path", loadErr.Path, "position", pos)
		return c

	case errors.As(err, &compileErr):
		code, ok := compileCodes[compileErr.Code]
		if !ok {
			code = ErrCodeGeneric
		}
		return classification{
			Code:    code,
			Exit:    ExitFailure,
			Outcome: store.OutcomeCompileError,
			Details: details("compile_code", string(compileErr.Code), "subject", compileErr.Subject, "path", compileErr.Path),
		}

	case errors.As(err, &backendErr):
		code, ok := backendCodes[backendErr.Code]
		if !ok {
			code = ErrCodeGeneric
		}
		return classification{
			Code:    code,
			Exit:    ExitFailure,
			Outcome: store.OutcomeBackendError,
			Details: details("backend", backendErr.Backend, "symbol", backendErr.Symbol),
		}

	case errors.As(err, &invokeErr):
		return classification{
			Code:    ErrCodeInvocationFailed,
			Exit:    ExitFailure,
			Outcome: store.OutcomeBackendError,
			Details: details("symbol", invokeErr.Symbol),
		}

	case errors.Is(err, store.ErrNotFound):
		return classification{Code: ErrCodeNotFound, Exit: ExitCommandError}
	}
	return classification{Code: ErrCodeGeneric, Exit: ExitFailure, Outcome: store.OutcomeBackendError}
}

// details builds a details map from key/value pairs, skipping empty values.
// It returns nil when every value is empty.
func details(kv ...string) map[string]any {
	var m map[string]any
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		if m == nil {
			m = make(map[string]any)
		}
		m[kv[i]] = kv[i+1]
	}
	return m
}
