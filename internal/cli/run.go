package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/document"
	"github.com/roach88/jitexpr/internal/jit"
	"github.com/roach88/jitexpr/internal/session"
	"github.com/roach88/jitexpr/internal/store"
	"github.com/roach88/jitexpr/internal/wasmjit"
)

// ConstructSymbol is the name of the compiled record constructor.
const ConstructSymbol = session.ConstructSymbol

// BackendOptions holds the flags that configure the wasm backend.
type BackendOptions struct {
	Engine   string
	CacheDir string
}

func (o *BackendOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Engine, "engine", string(wasmjit.EngineAuto), "wazero engine (auto|interpreter)")
	cmd.Flags().StringVar(&o.CacheDir, "cache-dir", "", "directory for the wazero compilation cache")
}

func (o *BackendOptions) backend(logger *slog.Logger) (*wasmjit.Backend, error) {
	engine, err := wasmjit.ParseEngine(o.Engine)
	if err != nil {
		return nil, err
	}
	opts := []wasmjit.Option{wasmjit.WithEngine(engine), wasmjit.WithLogger(logger)}
	if o.CacheDir != "" {
		opts = append(opts, wasmjit.WithCacheDir(o.CacheDir))
	}
	return wasmjit.New(opts...), nil
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BackendOptions
	Database string
	Entry    string

	// IDGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator session.IDGenerator
}

// RunResult is the outcome of evaluating a document.
type RunResult struct {
	Document       string               `json:"document"`
	Format         string               `json:"format"`
	Expression     string               `json:"expression,omitempty"`
	ExpressionHash string               `json:"expression_hash,omitempty"`
	Value          *int32               `json:"value,omitempty"`
	Record         *session.RecordValue `json:"record,omitempty"`
	Seq            int64                `json:"seq,omitempty"`
}

// String renders the value and the record, one per line.
func (r RunResult) String() string {
	var lines []string
	if r.Value != nil {
		lines = append(lines, strconv.FormatInt(int64(*r.Value), 10))
	}
	if r.Record != nil {
		lines = append(lines, r.Record.String())
	}
	return strings.Join(lines, "\n")
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [document]",
		Short: "Compile and evaluate a document",
		Long: `Load an expression document, compile it to WebAssembly and print
the result.

The document is JSON, YAML or CUE, chosen by extension. It holds an
expression tree such as ["+", 1, ["-", 2]], optional record declarations and
an optional record to construct. Without an argument the document is read
from ` + document.DefaultPath + `.

Example:
  jitexpr run
  jitexpr run ./invoice.yaml --format json
  jitexpr run ./money.cue --db ./jitexpr.db --engine interpreter`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := document.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			return runDocument(cmd, opts, path)
		},
	}

	opts.BackendOptions.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite session journal (optional)")
	cmd.Flags().StringVar(&opts.Entry, "entry", session.EntrySymbol, "symbol name of the compiled expression")

	return cmd
}

func runDocument(cmd *cobra.Command, opts *RunOptions, path string) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Entry == "" || opts.Entry == ConstructSymbol || opts.Entry == wasmjit.MemoryExport {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --entry %q", opts.Entry))
	}
	backend, err := opts.backend(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid backend flags", err)
	}

	var journal *store.Store
	if opts.Database != "" {
		logger.Debug("opening journal", "path", opts.Database)
		journal, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ids := opts.IDGenerator
	if ids == nil {
		ids = session.UUIDv7Generator{}
	}
	sessionID := ids.Generate()
	formatter.SessionID = sessionID

	res := &RunResult{Document: path}
	entry := store.Entry{ID: sessionID, Document: path, Backend: backend.Name()}

	evalErr := func() error {
		doc, err := document.Load(path)
		if err != nil {
			return err
		}
		res.Format = string(doc.Format)
		if doc.Expression != nil {
			res.Expression = ast.Format(doc.Expression)
			if res.ExpressionHash, err = ast.Hash(doc.Expression); err != nil {
				return err
			}
		}
		formatter.VerboseLog("Loaded %s (%s)", path, doc.Format)
		return evaluate(ctx, backend, doc, opts.Entry, res,
			session.WithLogger(logger),
			session.WithIDGenerator(session.NewFixedGenerator(sessionID)),
		)
	}()

	entry.Format = res.Format
	entry.Expression = res.Expression
	entry.ExpressionHash = res.ExpressionHash

	if evalErr != nil {
		logger.Debug("evaluation failed", "session", sessionID, "error", evalErr)
		c := classify(evalErr)
		entry.Outcome = c.Outcome
		entry.ErrorCode = c.Code
		entry.ErrorMessage = evalErr.Error()
		if err := writeJournal(ctx, journal, &entry); err != nil {
			return err
		}
		return formatter.Fail("evaluation failed", evalErr)
	}

	entry.Outcome = store.OutcomeOK
	if entry.Result, err = store.MarshalResult(res); err != nil {
		return WrapExitError(ExitFailure, "failed to encode result", err)
	}
	if err := writeJournal(ctx, journal, &entry); err != nil {
		return err
	}
	res.Seq = entry.Seq

	return formatter.Success(res)
}

// evaluate compiles doc in one session and stores what its entry points
// return in res.
func evaluate(ctx context.Context, backend jit.Backend, doc *document.Document, entry string, res *RunResult, opts ...session.Option) error {
	p, err := session.DocumentProgram(doc, entry)
	if err != nil {
		return err
	}
	ev, err := session.Evaluate(ctx, backend, p, opts...)
	if err != nil {
		return err
	}
	if len(ev.Values) > 0 {
		res.Value = &ev.Values[0]
	}
	if len(ev.Records) > 0 {
		res.Record = &ev.Records[0]
	}
	return nil
}

// writeJournal appends e to journal, if one is open, and records its seq.
func writeJournal(ctx context.Context, journal *store.Store, e *store.Entry) error {
	if journal == nil {
		return nil
	}
	seq, err := journal.WriteSession(ctx, *e)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to journal session", err)
	}
	e.Seq = seq
	return nil
}
