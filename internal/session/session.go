package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/ir"
	"github.com/roach88/jitexpr/internal/jit"
)

// EntrySymbol is the default name of the compiled entry point.
const EntrySymbol = "entry"

// ConstructSymbol is the name a document's record constructor is compiled
// under.
const ConstructSymbol = "construct"

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithIDGenerator sets the session ID source. Defaults to UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Session) {
		s.ids = ids
	}
}

// Session is one compilation session: an acquired backend context and the
// type environment registered in it.
type Session struct {
	id      string
	backend string
	jctx    jit.Context
	env     *compiler.TypeEnvironment
	logger  *slog.Logger
	ids     IDGenerator
	closed  bool
}

// Open acquires a context from backend and builds the type environment.
func Open(ctx context.Context, backend jit.Backend, opts ...Option) (*Session, error) {
	s := &Session{
		backend: backend.Name(),
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.ids.Generate()
	s.logger = s.logger.With("session", s.id)

	jctx, err := backend.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s context: %w", s.backend, err)
	}
	s.jctx = jctx

	env, err := compiler.BuildEnvironment(jctx.IR())
	if err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	s.env = env

	s.logger.Debug("session opened", "backend", s.backend)
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Backend returns the name of the backend the session compiles with.
func (s *Session) Backend() string {
	return s.backend
}

// Env returns the session's type environment.
func (s *Session) Env() *compiler.TypeEnvironment {
	return s.env
}

// Layout returns the data layout of the session's backend.
func (s *Session) Layout() ir.DataLayout {
	return s.jctx.Layout()
}

// IR returns the session's IR context.
func (s *Session) IR() *ir.Context {
	return s.jctx.IR()
}

// Declare defines records in order. Later declarations may refer to
// earlier ones by name.
func (s *Session) Declare(decls ...ast.RecordDecl) ([]*compiler.RecordType, error) {
	out := make([]*compiler.RecordType, 0, len(decls))
	for _, d := range decls {
		rec, err := s.env.Declare(d)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("record declared", "record", rec.Name, "fields", len(rec.Fields))
		out = append(out, rec)
	}
	return out, nil
}

// CompileExpression emits an exported int32 function named symbol that
// evaluates node.
func (s *Session) CompileExpression(symbol string, node ast.Node) error {
	if _, err := compiler.CompileFunction(s.env, symbol, node); err != nil {
		return err
	}
	s.logger.Debug("expression compiled", "symbol", symbol, "expression", ast.Format(node))
	return nil
}

// CompileRecordFunction emits an exported function named symbol that
// returns a pointer to a record initialized from inits.
func (s *Session) CompileRecordFunction(symbol string, rec *compiler.RecordType, inits []compiler.FieldInit) error {
	if _, err := compiler.CompileRecordConstructor(s.env, symbol, rec, inits); err != nil {
		return err
	}
	s.logger.Debug("record function compiled", "symbol", symbol, "record", rec.Name)
	return nil
}

// ResolveRecord returns the declared record called name. Empty means
// Money, which is defined on demand when nothing declared it.
func (s *Session) ResolveRecord(name string) (*compiler.RecordType, error) {
	if name == "" {
		name = compiler.MoneyRecord
	}
	if rec, ok := s.env.Record(name); ok {
		return rec, nil
	}
	if name == compiler.MoneyRecord {
		return s.env.DefineMoney()
	}
	return nil, &compiler.CompileError{
		Code:    compiler.ErrCodeUnknownType,
		Message: fmt.Sprintf("record %q is not declared", name),
		Subject: name,
	}
}

// Build compiles everything emitted so far. The returned Invoker must be
// released before the session is closed.
func (s *Session) Build(ctx context.Context) (*Invoker, error) {
	if s.closed {
		return nil, errors.New("session is closed")
	}
	res, err := s.jctx.Compile(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session compiled", "functions", len(s.IR().Functions()))
	return &Invoker{
		result: res,
		layout: s.jctx.Layout(),
		env:    s.env,
		logger: s.logger,
	}, nil
}

// Close releases the backend context. Calls after the first are no-ops.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.jctx.Release(ctx); err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	s.logger.Debug("session closed")
	return nil
}
