package wasmjit

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/ir"
)

func newEnv(t *testing.T, c *ir.Context) *compiler.TypeEnvironment {
	t.Helper()
	env, err := compiler.BuildEnvironment(c)
	require.NoError(t, err)
	return env
}

func TestLower_Header(t *testing.T) {
	c := ir.NewContext()
	env := newEnv(t, c)
	_, err := compiler.CompileFunction(env, "entry", ast.Int(1))
	require.NoError(t, err)

	bin, err := Lower(c)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bin, header))
	assert.Contains(t, string(bin), "entry")
	assert.Contains(t, string(bin), MemoryExport)
}

func TestLower_InternsStrings(t *testing.T) {
	c := ir.NewContext()
	env := newEnv(t, c)
	money, err := env.DefineMoney()
	require.NoError(t, err)
	_, err = compiler.CompileRecordConstructor(env, "usd", money, []compiler.FieldInit{{Field: "currency", Value: "USD"}})
	require.NoError(t, err)
	_, err = compiler.CompileRecordConstructor(env, "usd2", money, []compiler.FieldInit{{Field: "currency", Value: "USD"}})
	require.NoError(t, err)

	bin, err := Lower(c)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(bin, []byte("USD\x00")))
}

func TestLower_IncompleteFunction(t *testing.T) {
	c := ir.NewContext()
	_, err := c.NewFunction("entry", c.Primitive(ir.KindInt32), true)
	require.NoError(t, err)

	_, err = Lower(c)
	assert.ErrorContains(t, err, "has no body")
}

func TestLower_ExportNameClash(t *testing.T) {
	c := ir.NewContext()
	env := newEnv(t, c)
	_, err := compiler.CompileFunction(env, MemoryExport, ast.Int(1))
	require.NoError(t, err)

	_, err = Lower(c)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLower_FramesAvoidReservedBytes(t *testing.T) {
	c := ir.NewContext()
	env := newEnv(t, c)
	money, err := env.DefineMoney()
	require.NoError(t, err)
	_, err = compiler.CompileRecordConstructor(env, "entry", money, nil)
	require.NoError(t, err)

	l := &lowering{
		ctx:     c,
		layout:  ir.Wasm32,
		locals:  make(map[ir.LValueID]uint32),
		strings: make(map[string]uint32),
		next:    reservedBytes,
	}
	_, err = l.module()
	require.NoError(t, err)

	require.Len(t, l.locals, 1)
	for _, addr := range l.locals {
		assert.GreaterOrEqual(t, addr, uint32(reservedBytes))
		assert.Zero(t, addr%8)
	}
	assert.Equal(t, uint32(reservedBytes+16), l.next)
}
