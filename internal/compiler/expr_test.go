package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/ir"
)

const envTypes = `type t1 bool
type t2 int32
type t3 float64
type t4 string
type t5 *float64
`

func TestCompile_Shapes(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want string
	}{
		{"literal", ast.Int(42), "42"},
		{"negative literal", ast.Int(-7), "-7"},
		{"min int32", ast.Int(math.MinInt32), "-2147483648"},
		{"generic unary", ast.Op("-", ast.Int(5)), "(negate 5)"},
		{"generic binary", ast.Op("*", ast.Int(6), ast.Int(7)), "(multiply 6 7)"},
		{"explicit unary", ast.Unary{Token: "-", Operand: ast.Int(3)}, "(negate 3)"},
		{"explicit binary", ast.Binary{Token: "/", Left: ast.Int(9), Right: ast.Int(3)}, "(divide 9 3)"},
		{
			"nested",
			ast.Op("+", ast.Int(1), ast.Op("-", ast.Int(2))),
			"(add 1 (negate 2))",
		},
		{
			"binary minus",
			ast.Op("-", ast.Op("-", ast.Int(10), ast.Int(4)), ast.Int(1)),
			"(subtract (subtract 10 4) 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			v, err := Compile(tt.node, env)
			require.NoError(t, err)
			assert.Equal(t, env.Int32(), v.Type)
			assert.Equal(t, tt.want, env.IR().FormatValue(v.ID))
		})
	}
}

func TestCompile_LowersLeftBeforeRight(t *testing.T) {
	env := newEnv(t)
	v, err := Compile(ast.Op("+", ast.Op("*", ast.Int(2), ast.Int(3)), ast.Int(4)), env)
	require.NoError(t, err)

	root, ok := env.IR().Value(v.ID)
	require.True(t, ok)
	left, right := root.Operands[0], root.Operands[1]
	assert.Less(t, left, right)
	assert.Less(t, right, v.ID)

	product, ok := env.IR().Value(left)
	require.True(t, ok)
	assert.Equal(t, ir.OpMultiply, product.Op)
	assert.Less(t, product.Operands[0], product.Operands[1])
}

func TestCompileFunction(t *testing.T) {
	env := newEnv(t)
	fn, err := CompileFunction(env, "entry", ast.Op("+", ast.Int(1), ast.Op("-", ast.Int(2))))
	require.NoError(t, err)

	got, ok := env.IR().LookupFunction("entry")
	require.True(t, ok)
	assert.Equal(t, fn, got)
	require.NoError(t, env.IR().Validate())

	want := envTypes + `
export func entry() int32 {
block entry:
	return (add 1 (negate 2))
}
`
	assert.Equal(t, want, env.IR().String())
}

func TestCompileFunction_DuplicateName(t *testing.T) {
	env := newEnv(t)
	_, err := CompileFunction(env, "entry", ast.Int(1))
	require.NoError(t, err)
	_, err = CompileFunction(env, "entry", ast.Int(2))
	assert.ErrorIs(t, err, ir.ErrDuplicateSymbol)
}

func TestCompile_Malformed(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		path string
	}{
		{"nil", nil, "$"},
		{"no operands", ast.Op("+"), "$"},
		{"three operands", ast.Op("+", ast.Int(1), ast.Int(2), ast.Int(3)), "$"},
		{"nested", ast.Op("+", ast.Int(1), ast.Op("*", ast.Int(1), ast.Int(2), ast.Int(3))), "$[2]"},
		{"missing operand", ast.Binary{Token: "+", Left: ast.Int(1)}, "$[2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			before := env.IR().String()

			_, err := Compile(tt.node, env)
			require.Error(t, err)
			assert.True(t, IsMalformedExpression(err))

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.path, ce.Path)
			assert.Equal(t, before, env.IR().String(), "no IR emitted")
		})
	}
}

func TestCompile_UnsupportedOperator(t *testing.T) {
	env := newEnv(t)
	before := env.IR().String()

	_, err := Compile(ast.Op("+", ast.Int(1), ast.Op("-", ast.Op("%", ast.Int(7), ast.Int(2)))), env)
	require.Error(t, err)
	assert.True(t, IsUnsupportedOperator(err))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "%", ce.Subject)
	assert.Equal(t, "$[2][1]", ce.Path)
	assert.Contains(t, err.Error(), "(at $[2][1])")
	assert.Equal(t, before, env.IR().String())
}

func TestCompileFunction_FailureLeavesNoFunction(t *testing.T) {
	env := newEnv(t)
	_, err := CompileFunction(env, "entry", ast.Op("+", ast.Int(1)))
	require.Error(t, err)
	assert.True(t, IsUnsupportedOperator(err))

	_, ok := env.IR().LookupFunction("entry")
	assert.False(t, ok)
	assert.Empty(t, env.IR().Functions())
}
