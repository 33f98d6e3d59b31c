package session

import (
	"context"
	"errors"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/document"
	"github.com/roach88/jitexpr/internal/jit"
)

// InvocationError reports a failure while running compiled code, such as
// a trap on integer division by zero or a missing entry point.
type InvocationError struct {
	Symbol string
	Err    error
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Construct describes a record constructor entry point.
type Construct struct {
	// Record names the record to build. Empty means Money, which is
	// defined on demand when nothing declared it.
	Record string

	// Inits are the constant field initializers.
	Inits []compiler.FieldInit

	// Symbol is the entry point name. Empty means EntrySymbol.
	Symbol string
}

// Program is everything one session compiles and runs.
type Program struct {
	// Decls are declared first, in order.
	Decls []ast.RecordDecl

	// Expression, when set, is compiled as an int32 entry point named
	// ExpressionSymbol (EntrySymbol when empty).
	Expression       ast.Node
	ExpressionSymbol string

	// Construct, when set, is compiled as a record constructor.
	Construct *Construct

	// Calls is the number of times each entry point is invoked; values
	// below 1 mean 1.
	Calls int
}

// DocumentProgram maps doc onto its entry points: the expression as entry
// and the constructor as ConstructSymbol. A document with neither is an
// EMPTY_DOCUMENT load error.
func DocumentProgram(doc *document.Document, entry string) (Program, error) {
	if doc.Expression == nil && doc.Construct == nil {
		return Program{}, &document.LoadError{
			Code:    document.ErrCodeEmpty,
			Message: "document has no expression and no construct",
			Path:    "$",
		}
	}
	p := Program{
		Decls:            doc.Records,
		Expression:       doc.Expression,
		ExpressionSymbol: entry,
	}
	if doc.Construct != nil {
		p.Construct = &Construct{
			Record: doc.Construct.Record,
			Inits:  doc.Construct.Inits(),
			Symbol: ConstructSymbol,
		}
	}
	return p, nil
}

// Evaluation holds what a Program's entry points returned, one element
// per call.
type Evaluation struct {
	SessionID string        `json:"session_id"`
	Values    []int32       `json:"values,omitempty"`
	Records   []RecordValue `json:"records,omitempty"`
}

// Evaluate compiles p in a fresh session and invokes its entry points
// p.Calls times, expression first on every call. The session and the
// compiled code are released on every path. A program with neither an
// expression nor a construct is a MALFORMED_EXPRESSION error. Failures
// while running compiled code are returned as *InvocationError.
func Evaluate(ctx context.Context, backend jit.Backend, p Program, opts ...Option) (ev Evaluation, err error) {
	s, err := Open(ctx, backend, opts...)
	if err != nil {
		return ev, err
	}
	ev.SessionID = s.ID()
	defer func() { err = errors.Join(err, s.Close(ctx)) }()

	if p.Expression == nil && p.Construct == nil {
		return ev, &compiler.CompileError{
			Code:    compiler.ErrCodeMalformedExpression,
			Message: "missing expression: program has no expression and no construct",
		}
	}

	rec, err := s.CompileProgram(p)
	if err != nil {
		return ev, err
	}

	inv, err := s.Build(ctx)
	if err != nil {
		return ev, err
	}
	defer func() { err = errors.Join(err, inv.Release(ctx)) }()

	exprSymbol, recSymbol := p.symbols()
	for range max(p.Calls, 1) {
		if p.Expression != nil {
			v, err := inv.Int32(ctx, exprSymbol)
			if err != nil {
				return ev, &InvocationError{Symbol: exprSymbol, Err: err}
			}
			ev.Values = append(ev.Values, v)
		}
		if rec != nil {
			v, err := inv.Record(ctx, recSymbol, rec)
			if err != nil {
				return ev, &InvocationError{Symbol: recSymbol, Err: err}
			}
			ev.Records = append(ev.Records, v)
		}
	}
	return ev, nil
}

// CompileProgram declares p's records and emits its entry points without
// building them. It returns the constructed record type, or nil when p
// constructs nothing.
func (s *Session) CompileProgram(p Program) (*compiler.RecordType, error) {
	if _, err := s.Declare(p.Decls...); err != nil {
		return nil, err
	}
	exprSymbol, recSymbol := p.symbols()
	if p.Expression != nil {
		if err := s.CompileExpression(exprSymbol, p.Expression); err != nil {
			return nil, err
		}
	}
	if p.Construct == nil {
		return nil, nil
	}
	rec, err := s.ResolveRecord(p.Construct.Record)
	if err != nil {
		return nil, err
	}
	if err := s.CompileRecordFunction(recSymbol, rec, p.Construct.Inits); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p Program) symbols() (expr, rec string) {
	expr, rec = p.ExpressionSymbol, EntrySymbol
	if expr == "" {
		expr = EntrySymbol
	}
	if p.Construct != nil && p.Construct.Symbol != "" {
		rec = p.Construct.Symbol
	}
	return expr, rec
}

// EvaluateExpression compiles node in a fresh session, invokes it once and
// returns its value.
func EvaluateExpression(ctx context.Context, backend jit.Backend, node ast.Node, opts ...Option) (int32, error) {
	ev, err := Evaluate(ctx, backend, Program{Expression: node}, opts...)
	if err != nil {
		return 0, err
	}
	return ev.Values[0], nil
}

// RecordRequest describes a record evaluation.
type RecordRequest struct {
	// Decls are declared first, in order.
	Decls []ast.RecordDecl

	// Record names the record the entry point returns. Empty means Money,
	// which is defined on demand when Decls does not declare it.
	Record string

	// Inits are the constant field initializers.
	Inits []compiler.FieldInit

	// Calls is the number of invocations; values below 1 mean 1.
	Calls int
}

// EvaluateRecord compiles a constructor for req.Record in a fresh session
// and invokes it req.Calls times, returning one value per call.
func EvaluateRecord(ctx context.Context, backend jit.Backend, req RecordRequest, opts ...Option) ([]RecordValue, error) {
	ev, err := Evaluate(ctx, backend, Program{
		Decls:     req.Decls,
		Construct: &Construct{Record: req.Record, Inits: req.Inits},
		Calls:     req.Calls,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return ev.Records, nil
}
