package compiler

import (
	"fmt"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/ir"
)

// Operator tables. New operators are added here; nothing resolves tokens
// anywhere else.
var (
	unaryOperators = map[string]ir.OperatorKind{
		"-": ir.OpNegate,
	}

	binaryOperators = map[string]ir.OperatorKind{
		"+": ir.OpAdd,
		"-": ir.OpSubtract,
		"*": ir.OpMultiply,
		"/": ir.OpDivide,
	}
)

// ResolveOperator returns the operator kind for token at the given arity.
// A token valid at one arity says nothing about the other.
func ResolveOperator(token string, arity ast.Arity) (ir.OperatorKind, error) {
	var table map[string]ir.OperatorKind
	switch arity {
	case ast.ArityUnary:
		table = unaryOperators
	case ast.ArityBinary:
		table = binaryOperators
	}
	if op, ok := table[token]; ok {
		return op, nil
	}
	return ir.OpInvalid, &CompileError{
		Code:    ErrCodeUnsupportedOperator,
		Message: fmt.Sprintf("unsupported %s operator %q", arity, token),
		Subject: token,
	}
}
