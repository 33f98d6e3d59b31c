package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/ir"
)

func TestResolveOperator(t *testing.T) {
	tests := []struct {
		token string
		arity ast.Arity
		want  ir.OperatorKind
	}{
		{"-", ast.ArityUnary, ir.OpNegate},
		{"+", ast.ArityBinary, ir.OpAdd},
		{"-", ast.ArityBinary, ir.OpSubtract},
		{"*", ast.ArityBinary, ir.OpMultiply},
		{"/", ast.ArityBinary, ir.OpDivide},
	}

	for _, tt := range tests {
		t.Run(tt.arity.String()+" "+tt.token, func(t *testing.T) {
			got, err := ResolveOperator(tt.token, tt.arity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int(tt.arity), got.Arity())
		})
	}
}

func TestResolveOperator_Unsupported(t *testing.T) {
	tests := []struct {
		name  string
		token string
		arity ast.Arity
	}{
		{"modulo", "%", ast.ArityBinary},
		{"unary plus", "+", ast.ArityUnary},
		{"unary multiply", "*", ast.ArityUnary},
		{"empty token", "", ast.ArityBinary},
		{"word token", "add", ast.ArityBinary},
		{"unknown arity", "+", ast.Arity(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOperator(tt.token, tt.arity)
			require.Error(t, err)
			assert.Equal(t, ir.OpInvalid, got)
			assert.True(t, IsUnsupportedOperator(err))

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.token, ce.Subject)
		})
	}
}
