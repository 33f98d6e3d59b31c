package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/jit"
	"github.com/roach88/jitexpr/internal/testutil"
	"github.com/roach88/jitexpr/internal/wasmjit"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newBackend() *testutil.CountingBackend {
	return testutil.NewCountingBackend(wasmjit.New(
		wasmjit.WithEngine(wasmjit.EngineInterpreter),
		wasmjit.WithLogger(discard),
	))
}

func TestEvaluateExpression(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want int32
	}{
		{"literal", ast.Int(7), 7},
		{"max", ast.Int(math.MaxInt32), math.MaxInt32},
		{"min", ast.Int(math.MinInt32), math.MinInt32},
		{"add negated", ast.Op("+", ast.Int(1), ast.Op("-", ast.Int(2))), -1},
		{"subtract", ast.Op("-", ast.Int(9), ast.Int(10)), -1},
		{"multiply", ast.Op("*", ast.Int(-4), ast.Int(5)), -20},
		{"divide", ast.Op("/", ast.Int(100), ast.Int(7)), 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			got, err := EvaluateExpression(context.Background(), b, tt.node, WithLogger(discard))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, b.Balanced())
		})
	}
}

func TestEvaluateExpression_ComposesLikeIntegers(t *testing.T) {
	operands := []int32{-3, 0, 1, 7, 1000}
	ops := map[string]func(a, b int32) int32{
		"+": func(a, b int32) int32 { return a + b },
		"-": func(a, b int32) int32 { return a - b },
		"*": func(a, b int32) int32 { return a * b },
	}

	b := newBackend()
	for token, want := range ops {
		for _, x := range operands {
			for _, y := range operands {
				got, err := EvaluateExpression(context.Background(), b, ast.Op(token, ast.Int(x), ast.Int(y)), WithLogger(discard))
				require.NoError(t, err)
				assert.Equal(t, want(x, y), got, "%d %s %d", x, token, y)
			}
		}
	}
	assert.True(t, b.Balanced())
}

func TestEvaluateExpression_ReleasesOnEveryPath(t *testing.T) {
	tests := []struct {
		name      string
		node      ast.Node
		configure func(*testutil.CountingBackend)
		check     func(*testing.T, error)
		compiled  int
	}{
		{
			name: "unsupported operator",
			node: ast.Op("%", ast.Int(1), ast.Int(2)),
			check: func(t *testing.T, err error) {
				assert.True(t, compiler.IsUnsupportedOperator(err))
			},
		},
		{
			name: "malformed expression",
			node: ast.Op("+", ast.Int(1), ast.Int(2), ast.Int(3)),
			check: func(t *testing.T, err error) {
				assert.True(t, compiler.IsMalformedExpression(err))
			},
		},
		{
			name: "missing expression",
			node: nil,
			check: func(t *testing.T, err error) {
				assert.True(t, compiler.IsMalformedExpression(err))
				assert.Contains(t, err.Error(), "missing expression")
			},
		},
		{
			name:      "compilation failed",
			node:      ast.Int(1),
			configure: func(b *testutil.CountingBackend) { b.FailCompile = errors.New("injected") },
			check: func(t *testing.T, err error) {
				assert.True(t, jit.IsCompilationFailed(err))
			},
		},
		{
			name:      "symbol not found",
			node:      ast.Int(1),
			configure: func(b *testutil.CountingBackend) { b.HideSymbols = true },
			check: func(t *testing.T, err error) {
				assert.True(t, jit.IsSymbolNotFound(err))
			},
			compiled: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			if tt.configure != nil {
				tt.configure(b)
			}

			_, err := EvaluateExpression(context.Background(), b, tt.node, WithLogger(discard))
			require.Error(t, err)
			tt.check(t, err)

			counts := b.Counts()
			assert.Equal(t, 1, counts.Acquired)
			assert.Equal(t, 1, counts.ContextReleases)
			assert.Equal(t, tt.compiled, counts.Compiled)
			assert.Equal(t, tt.compiled, counts.ResultReleases)
			assert.True(t, b.Balanced())
		})
	}
}

func TestEvaluate_EmptyProgram(t *testing.T) {
	b := newBackend()
	ev, err := Evaluate(context.Background(), b, Program{
		Decls: []ast.RecordDecl{{Name: "Point", Fields: []ast.FieldDecl{{Name: "x", Type: "int32"}}}},
		Calls: 2,
	}, WithLogger(discard))
	require.Error(t, err)
	assert.True(t, compiler.IsMalformedExpression(err))
	assert.Empty(t, ev.Values)
	assert.Empty(t, ev.Records)

	assert.True(t, b.Balanced())
	assert.Equal(t, 1, b.Counts().Acquired)
	assert.Zero(t, b.Counts().Compiled)
}

func TestEvaluateRecord_Money(t *testing.T) {
	b := newBackend()
	values, err := EvaluateRecord(context.Background(), b, RecordRequest{
		Inits: []compiler.FieldInit{
			{Field: "amount", Value: 20.0},
			{Field: "currency", Value: "USD"},
		},
		Calls: 3,
	}, WithLogger(discard))
	require.NoError(t, err)
	require.Len(t, values, 3)

	for _, v := range values {
		assert.Equal(t, "Money", v.Name)
		assert.Equal(t, values[0].Address, v.Address)

		amount, ok := v.Field("amount")
		require.True(t, ok)
		assert.Equal(t, 20.0, amount)
		currency, ok := v.Field("currency")
		require.True(t, ok)
		assert.Equal(t, "USD", currency)
	}
	assert.Equal(t, `Money{amount: 20, currency: "USD"}`, values[0].String())
	assert.True(t, b.Balanced())
}

func TestEvaluateRecord_DeclaredNested(t *testing.T) {
	b := newBackend()
	values, err := EvaluateRecord(context.Background(), b, RecordRequest{
		Decls: []ast.RecordDecl{
			{Name: "Money", Fields: []ast.FieldDecl{{Name: "amount", Type: "float64"}, {Name: "currency", Type: "string"}}},
			{Name: "Line", Fields: []ast.FieldDecl{
				{Name: "qty", Type: "int32"},
				{Name: "taxed", Type: "bool"},
				{Name: "price", Type: "Money"},
				{Name: "note", Type: "string"},
			}},
		},
		Record: "Line",
		Inits: []compiler.FieldInit{
			{Field: "qty", Value: -2},
			{Field: "taxed", Value: true},
		},
	}, WithLogger(discard))
	require.NoError(t, err)
	require.Len(t, values, 1)

	line := values[0]
	qty, _ := line.Field("qty")
	assert.Equal(t, int32(-2), qty)
	taxed, _ := line.Field("taxed")
	assert.Equal(t, true, taxed)
	note, _ := line.Field("note")
	assert.Equal(t, "", note)

	price, ok := line.Field("price")
	require.True(t, ok)
	nested, ok := price.(RecordValue)
	require.True(t, ok)
	amount, _ := nested.Field("amount")
	assert.Equal(t, 0.0, amount)
	assert.True(t, b.Balanced())
}

func TestEvaluateRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  RecordRequest
		code compiler.ErrorCode
	}{
		{
			name: "duplicate field",
			req: RecordRequest{
				Decls:  []ast.RecordDecl{{Name: "Pair", Fields: []ast.FieldDecl{{Name: "a", Type: "int32"}, {Name: "a", Type: "int32"}}}},
				Record: "Pair",
			},
			code: compiler.ErrCodeDuplicateFieldName,
		},
		{
			name: "empty record",
			req:  RecordRequest{Decls: []ast.RecordDecl{{Name: "Void"}}, Record: "Void"},
			code: compiler.ErrCodeEmptyRecord,
		},
		{
			name: "undeclared record",
			req:  RecordRequest{Record: "Invoice"},
			code: compiler.ErrCodeUnknownType,
		},
		{
			name: "bad initializer",
			req:  RecordRequest{Inits: []compiler.FieldInit{{Field: "amount", Value: "twenty"}}},
			code: compiler.ErrCodeTypeMismatch,
		},
		{
			name: "string with NUL",
			req:  RecordRequest{Inits: []compiler.FieldInit{{Field: "currency", Value: "US\x00D"}}},
			code: compiler.ErrCodeTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			_, err := EvaluateRecord(context.Background(), b, tt.req, WithLogger(discard))
			require.Error(t, err)
			assert.True(t, compiler.HasCode(err, tt.code), err.Error())
			assert.True(t, b.Balanced())
			assert.Zero(t, b.Counts().Compiled)
		})
	}
}

func TestSession_CloseOnce(t *testing.T) {
	ctx := context.Background()
	b := newBackend()

	s, err := Open(ctx, b, WithLogger(discard), WithIDGenerator(NewFixedGenerator("session-1")))
	require.NoError(t, err)
	assert.Equal(t, "session-1", s.ID())
	assert.Equal(t, wasmjit.Name, s.Backend())

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, b.Counts().ContextReleases)

	_, err = s.Build(ctx)
	assert.Error(t, err)
}

func TestInvoker_ReleaseOnce(t *testing.T) {
	ctx := context.Background()
	b := newBackend()

	s, err := Open(ctx, b, WithLogger(discard))
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.CompileExpression("answer", ast.Op("*", ast.Int(6), ast.Int(7))))
	inv, err := s.Build(ctx)
	require.NoError(t, err)

	v, err := inv.Int32(ctx, "answer")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	require.NoError(t, inv.Release(ctx))
	require.NoError(t, inv.Release(ctx))
	assert.Equal(t, 1, b.Counts().ResultReleases)

	_, err = inv.Int32(ctx, "answer")
	assert.Error(t, err)
}

func TestInvoker_ManyFunctionsOneModule(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, newBackend(), WithLogger(discard))
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.CompileExpression("one", ast.Int(1)))
	require.NoError(t, s.CompileExpression("two", ast.Op("+", ast.Int(1), ast.Int(1))))
	money, err := s.Env().DefineMoney()
	require.NoError(t, err)
	require.NoError(t, s.CompileRecordFunction("cash", money, []compiler.FieldInit{{Field: "currency", Value: "EUR"}}))

	inv, err := s.Build(ctx)
	require.NoError(t, err)
	defer inv.Release(ctx)

	one, err := inv.Int32(ctx, "one")
	require.NoError(t, err)
	two, err := inv.Int32(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, []int32{one, two})

	cash, err := inv.Record(ctx, "cash", money)
	require.NoError(t, err)
	assert.Equal(t, `Money{amount: 0, currency: "EUR"}`, cash.String())
}

func TestEvaluate_ExpressionAndConstructor(t *testing.T) {
	b := newBackend()
	ev, err := Evaluate(context.Background(), b, Program{
		Expression:       ast.Op("*", ast.Int(6), ast.Int(7)),
		ExpressionSymbol: "answer",
		Construct: &Construct{
			Inits:  []compiler.FieldInit{{Field: "amount", Value: 20.0}, {Field: "currency", Value: "USD"}},
			Symbol: "money",
		},
		Calls: 2,
	}, WithLogger(discard), WithIDGenerator(NewFixedGenerator("s-1")))
	require.NoError(t, err)

	assert.Equal(t, "s-1", ev.SessionID)
	assert.Equal(t, []int32{42, 42}, ev.Values)
	require.Len(t, ev.Records, 2)
	assert.Equal(t, ev.Records[0].Address, ev.Records[1].Address)
	assert.Equal(t, `Money{amount: 20, currency: "USD"}`, ev.Records[1].String())

	assert.True(t, b.Balanced())
	assert.Equal(t, 1, b.Counts().Compiled)
}

func TestEvaluate_TrapIsInvocationError(t *testing.T) {
	b := newBackend()
	_, err := Evaluate(context.Background(), b, Program{
		Expression: ast.Op("/", ast.Int(1), ast.Op("-", ast.Int(1), ast.Int(1))),
	}, WithLogger(discard))
	require.Error(t, err)

	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, EntrySymbol, ie.Symbol)
	assert.True(t, b.Balanced())
}

func TestEvaluate_SymbolClash(t *testing.T) {
	b := newBackend()
	_, err := Evaluate(context.Background(), b, Program{
		Expression: ast.Int(1),
		Construct:  &Construct{},
	}, WithLogger(discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EntrySymbol)
	assert.True(t, b.Balanced())
	assert.Zero(t, b.Counts().Compiled)
}
