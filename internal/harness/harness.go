package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/document"
	"github.com/roach88/jitexpr/internal/jit"
	"github.com/roach88/jitexpr/internal/session"
	"github.com/roach88/jitexpr/internal/store"
)

// ErrCodeInvocationFailed is the code of errors raised by running compiled
// code, such as a trap on division by zero.
const ErrCodeInvocationFailed = "INVOCATION_FAILED"

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger handed to every session. Defaults to discarding.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Harness is the test execution engine.
// It runs scenario steps against a real backend with deterministic session
// IDs and sequence numbers.
type Harness struct {
	store   *store.Store
	backend jit.Backend
	clock   *store.Clock
	logger  *slog.Logger

	scenario *Scenario
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation. Steps run
// in order, each in its own session on backend; a failing step does not stop
// later steps. Run returns an error only when the harness itself fails, such
// as a journal write error. Scenario failures are reported in the Result.
func Run(ctx context.Context, backend jit.Backend, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		backend:  backend,
		clock:    store.NewClockAt(0),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		scenario: scenario,
	}
	for _, opt := range opts {
		opt(h)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep compiles and invokes one step, records its trace, journals it and
// checks its expect clause.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	sessionID := fmt.Sprintf("%s-%d", h.scenario.Name, index+1)
	entry := store.Entry{
		ID:       sessionID,
		Document: h.source(step),
		Backend:  h.backend.Name(),
	}

	ev, evalErr := func() (session.Evaluation, error) {
		doc, err := h.load(step)
		if err != nil {
			return session.Evaluation{}, err
		}
		entry.Format = string(doc.Format)
		if doc.Expression != nil {
			entry.Expression = ast.Format(doc.Expression)
			if entry.ExpressionHash, err = ast.Hash(doc.Expression); err != nil {
				return session.Evaluation{}, err
			}
		}

		p, err := session.DocumentProgram(doc, session.EntrySymbol)
		if err != nil {
			return session.Evaluation{}, err
		}
		p.Calls = step.Calls

		result.add(TraceEvent{
			Type:    EventCompile,
			Step:    step.Name,
			Session: sessionID,
			Args:    compileArgs(doc),
			Seq:     h.clock.Next(),
		})
		return session.Evaluate(ctx, h.backend, p,
			session.WithLogger(h.logger),
			session.WithIDGenerator(session.NewFixedGenerator(sessionID)),
		)
	}()

	// Evaluate keeps what ran before a failure, so partial runs are traced.
	for call := range max(len(ev.Values), len(ev.Records)) {
		if call < len(ev.Values) {
			result.add(h.invokeEvent(step, sessionID, session.EntrySymbol, ev.Values[call]))
		}
		if call < len(ev.Records) {
			result.add(h.invokeEvent(step, sessionID, session.ConstructSymbol, recordMap(ev.Records[call])))
		}
	}

	if evalErr != nil {
		code := errorCode(evalErr)
		result.add(TraceEvent{
			Type:    EventError,
			Step:    step.Name,
			Session: sessionID,
			Code:    code,
			Seq:     h.clock.Next(),
		})
		entry.Outcome = outcome(evalErr)
		entry.ErrorCode = code
		entry.ErrorMessage = evalErr.Error()
	} else {
		entry.Outcome = store.OutcomeOK
		res, err := store.MarshalResult(ev)
		if err != nil {
			return err
		}
		entry.Result = res
	}

	if _, err := h.store.WriteSession(ctx, entry); err != nil {
		return err
	}

	h.logger.Info("step completed",
		"step", step.Name,
		"session", sessionID,
		"outcome", entry.Outcome,
	)

	for _, msg := range checkExpect(step, ev, evalErr) {
		result.AddError(fmt.Sprintf("step %s: %s", step.Name, msg))
	}
	return nil
}

func (h *Harness) invokeEvent(step Step, sessionID, symbol string, value any) TraceEvent {
	return TraceEvent{
		Type:    EventInvoke,
		Step:    step.Name,
		Session: sessionID,
		Symbol:  symbol,
		Result:  value,
		Seq:     h.clock.Next(),
	}
}

// source is the journaled document name of step.
func (h *Harness) source(step Step) string {
	if step.Document != "" {
		return step.Document
	}
	return h.scenario.Name + "#" + step.Name
}

// load reads the step's document. Inline input is re-encoded as YAML and
// parsed like a YAML document.
func (h *Harness) load(step Step) (*document.Document, error) {
	if step.Document != "" {
		path := step.Document
		if !filepath.IsAbs(path) && h.scenario.Dir != "" {
			path = filepath.Join(h.scenario.Dir, path)
		}
		return document.Load(path)
	}
	data, err := yaml.Marshal(step.Input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	return document.Parse(data, document.FormatYAML, h.source(step))
}

// compileArgs describes a document for the compile trace event.
func compileArgs(doc *document.Document) map[string]any {
	args := map[string]any{}
	if doc.Expression != nil {
		args["expression"] = ast.Format(doc.Expression)
	}
	if len(doc.Records) > 0 {
		names := make([]string, len(doc.Records))
		for i, r := range doc.Records {
			names[i] = r.Name
		}
		args["records"] = names
	}
	if doc.Construct != nil {
		name := doc.Construct.Record
		if name == "" {
			name = compiler.MoneyRecord
		}
		args["construct"] = name
	}
	return args
}

// recordMap converts a record to the map form used in traces.
func recordMap(r session.RecordValue) map[string]any {
	return map[string]any{
		"name":    r.Name,
		"address": r.Address,
		"fields":  fieldMap(r),
	}
}

// fieldMap returns r's fields by name, nested records as nested field maps.
// Expect clauses are matched against it.
func fieldMap(r session.RecordValue) map[string]any {
	fields := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		if nested, ok := f.Value.(session.RecordValue); ok {
			fields[f.Name] = fieldMap(nested)
			continue
		}
		fields[f.Name] = f.Value
	}
	return fields
}

// errorCode returns the package error code carried by err.
func errorCode(err error) string {
	var (
		loadErr    *document.LoadError
		compileErr *compiler.CompileError
		backendErr *jit.BackendError
		invokeErr  *session.InvocationError
	)
	switch {
	case errors.As(err, &loadErr):
		return string(loadErr.Code)
	case errors.As(err, &compileErr):
		return string(compileErr.Code)
	case errors.As(err, &backendErr):
		return string(backendErr.Code)
	case errors.As(err, &invokeErr):
		return ErrCodeInvocationFailed
	}
	return "INTERNAL"
}

func outcome(err error) store.Outcome {
	var (
		loadErr    *document.LoadError
		compileErr *compiler.CompileError
	)
	switch {
	case errors.As(err, &loadErr):
		return store.OutcomeLoadError
	case errors.As(err, &compileErr):
		return store.OutcomeCompileError
	}
	return store.OutcomeBackendError
}

// checkExpect compares what a step produced with its expect clause.
func checkExpect(step Step, ev session.Evaluation, err error) []string {
	e := step.Expect
	if e == nil {
		return nil
	}

	var msgs []string
	if e.Error != "" {
		switch {
		case err == nil:
			msgs = append(msgs, fmt.Sprintf("expected error %s, got success", e.Error))
		case errorCode(err) != e.Error:
			msgs = append(msgs, fmt.Sprintf("expected error %s, got %s: %v", e.Error, errorCode(err), err))
		}
		return msgs
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error %s: %v", errorCode(err), err)}
	}

	if e.Value != nil {
		if len(ev.Values) == 0 {
			msgs = append(msgs, "expected a value, the document has no expression")
		}
		for call, v := range ev.Values {
			if v != *e.Value {
				msgs = append(msgs, fmt.Sprintf("call %d: expected value %d, got %d", call+1, *e.Value, v))
			}
		}
	}
	if e.Record != nil {
		if len(ev.Records) == 0 {
			msgs = append(msgs, "expected a record, the document constructs none")
		}
		for call, r := range ev.Records {
			fields := fieldMap(r)
			if !matchValue(e.Record, fields) {
				msgs = append(msgs, fmt.Sprintf("call %d: expected record fields %v, got %v", call+1, e.Record, fields))
			}
		}
	}
	return msgs
}
