package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/jitexpr/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	Limit     int
	Hash      string
	SessionID string
}

// HistoryEntry is one journaled session as shown by the history command.
type HistoryEntry struct {
	ID             string          `json:"id"`
	Seq            int64           `json:"seq"`
	Document       string          `json:"document"`
	Format         string          `json:"format,omitempty"`
	Expression     string          `json:"expression,omitempty"`
	ExpressionHash string          `json:"expression_hash,omitempty"`
	Backend        string          `json:"backend"`
	Outcome        string          `json:"outcome"`
	Result         json.RawMessage `json:"result"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled sessions",
		Long: `List the sessions recorded by "jitexpr run --db", oldest first.

Sessions are ordered by their logical sequence number, never by wall-clock
time. --hash selects the sessions that compiled one expression; --id shows a
single session.

Example:
  jitexpr history --db ./jitexpr.db
  jitexpr history --db ./jitexpr.db --limit 5 --format json
  jitexpr history --db ./jitexpr.db --hash 3f1c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite session journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "show only the most recent N sessions (0 for all)")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "show sessions of the expression with this content hash")
	cmd.Flags().StringVar(&opts.SessionID, "id", "", "show one session by ID")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := opts.newFormatter(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Hash != "" && opts.SessionID != "" {
		return NewExitError(ExitCommandError, "--hash and --id are mutually exclusive")
	}

	// Opening creates missing databases, which history must never do.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var entries []store.Entry
	switch {
	case opts.SessionID != "":
		e, err := st.ReadSession(ctx, opts.SessionID)
		if err != nil {
			return formatter.Fail("failed to read session", err)
		}
		entries = []store.Entry{e}
	case opts.Hash != "":
		entries, err = st.SessionsByHash(ctx, opts.Hash)
	default:
		entries, err = st.ReadSessions(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}

	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntry{
			ID:             e.ID,
			Seq:            e.Seq,
			Document:       e.Document,
			Format:         e.Format,
			Expression:     e.Expression,
			ExpressionHash: e.ExpressionHash,
			Backend:        e.Backend,
			Outcome:        string(e.Outcome),
			Result:         e.Result,
			ErrorCode:      e.ErrorCode,
			ErrorMessage:   e.ErrorMessage,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions found")
		return nil
	}
	for _, e := range out {
		writeHistoryEntry(formatter.Writer, e)
	}
	return nil
}

func writeHistoryEntry(w io.Writer, e HistoryEntry) {
	fmt.Fprintf(w, "[%d] %s %s %s\n", e.Seq, truncateID(e.ID), e.Outcome, e.Document)
	if e.Expression != "" {
		fmt.Fprintf(w, "     Expression: %s\n", e.Expression)
	}
	if e.Outcome == string(store.OutcomeOK) {
		fmt.Fprintf(w, "     Result: %s\n", e.Result)
	} else {
		fmt.Fprintf(w, "     Error: [%s] %s\n", e.ErrorCode, e.ErrorMessage)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
