package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/ast"
)

func TestCompileRecordConstructor_Money(t *testing.T) {
	env := newEnv(t)
	money, err := env.DefineMoney()
	require.NoError(t, err)

	_, err = CompileRecordConstructor(env, "entry", money, []FieldInit{
		{Field: "currency", Value: "USD"},
		{Field: "amount", Value: 20},
	})
	require.NoError(t, err)
	require.NoError(t, env.IR().Validate())

	want := envTypes + `type t6 struct Money { amount float64; currency string }
type t7 *Money

export func entry() *Money {
	local money Money
block entry:
	money.amount = 20.0
	money.currency = "USD"
	return &money
}
`
	assert.Equal(t, want, env.IR().String())
}

func TestCompileRecordConstructor_PartialInit(t *testing.T) {
	env := newEnv(t)
	rec, err := env.Declare(ast.RecordDecl{
		Name: "Point",
		Fields: []ast.FieldDecl{
			{Name: "x", Type: "int32"},
			{Name: "y", Type: "int32"},
			{Name: "visible", Type: "bool"},
		},
	})
	require.NoError(t, err)

	_, err = CompileRecordConstructor(env, "origin", rec, []FieldInit{
		{Field: "visible", Value: true},
	})
	require.NoError(t, err)
	assert.Contains(t, env.IR().String(), "\tpoint.visible = true\n")
	assert.NotContains(t, env.IR().String(), "point.x =")
}

func TestCompileRecordConstructor_Errors(t *testing.T) {
	tests := []struct {
		name  string
		inits []FieldInit
		code  ErrorCode
	}{
		{"unknown field", []FieldInit{{Field: "cents", Value: 1}}, ErrCodeUnknownField},
		{"duplicate init", []FieldInit{{Field: "amount", Value: 1}, {Field: "amount", Value: 2}}, ErrCodeDuplicateFieldName},
		{"string into float", []FieldInit{{Field: "amount", Value: "20"}}, ErrCodeTypeMismatch},
		{"number into string", []FieldInit{{Field: "currency", Value: 840}}, ErrCodeTypeMismatch},
		{"nil value", []FieldInit{{Field: "currency", Value: nil}}, ErrCodeTypeMismatch},
		{"string with NUL", []FieldInit{{Field: "currency", Value: "US\x00D"}}, ErrCodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			money, err := env.DefineMoney()
			require.NoError(t, err)
			before := env.IR().String()

			_, err = CompileRecordConstructor(env, "entry", money, tt.inits)
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.code), err.Error())
			assert.Equal(t, before, env.IR().String())
		})
	}
}

func TestCompileRecordConstructor_Int32Range(t *testing.T) {
	env := newEnv(t)
	rec, err := env.Declare(ast.RecordDecl{
		Name:   "Counter",
		Fields: []ast.FieldDecl{{Name: "n", Type: "int32"}},
	})
	require.NoError(t, err)

	_, err = CompileRecordConstructor(env, "big", rec, []FieldInit{{Field: "n", Value: int64(1) << 40}})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))

	_, err = CompileRecordConstructor(env, "small", rec, []FieldInit{{Field: "n", Value: int64(-5)}})
	require.NoError(t, err)
	assert.Contains(t, env.IR().String(), "\tcounter.n = -5\n")
}

func TestCompileRecordConstructor_UnsignedInts(t *testing.T) {
	env := newEnv(t)
	rec, err := env.Declare(ast.RecordDecl{
		Name:   "Counter",
		Fields: []ast.FieldDecl{{Name: "n", Type: "int32"}},
	})
	require.NoError(t, err)

	_, err = CompileRecordConstructor(env, "five", rec, []FieldInit{{Field: "n", Value: uint64(5)}})
	require.NoError(t, err)
	assert.Contains(t, env.IR().String(), "\tcounter.n = 5\n")

	_, err = CompileRecordConstructor(env, "seven", rec, []FieldInit{{Field: "n", Value: uint(7)}})
	require.NoError(t, err)
	assert.Contains(t, env.IR().String(), "\tcounter.n = 7\n")

	_, err = CompileRecordConstructor(env, "huge", rec, []FieldInit{{Field: "n", Value: uint64(math.MaxUint64)}})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))

	_, err = CompileRecordConstructor(env, "wide", rec, []FieldInit{{Field: "n", Value: uint64(math.MaxInt32) + 1}})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}
