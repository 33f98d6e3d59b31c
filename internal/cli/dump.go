package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/jitexpr/internal/document"
	"github.com/roach88/jitexpr/internal/session"
	"github.com/roach88/jitexpr/internal/wasmjit"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Entry   string
	WasmOut string
}

// DumpResult is the JSON payload of the dump command.
type DumpResult struct {
	Document  string       `json:"document"`
	IR        string       `json:"ir"`
	Records   []DumpRecord `json:"records,omitempty"`
	WasmOut   string       `json:"wasm_out,omitempty"`
	WasmBytes int          `json:"wasm_bytes,omitempty"`
}

// DumpRecord is the memory layout of one record type.
type DumpRecord struct {
	Name   string      `json:"name"`
	Size   int         `json:"size"`
	Align  int         `json:"align"`
	Fields []DumpField `json:"fields"`
}

// DumpField is one field of a DumpRecord.
type DumpField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset int    `json:"offset"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump [document]",
		Short: "Print the IR a document compiles to",
		Long: `Compile a document without running it and print the IR: types,
fields and every function with its locals and statements.

With --wasm-out the lowered WebAssembly module is also written to a file.

Example:
  jitexpr dump ./structure.json
  jitexpr dump ./invoice.yaml --wasm-out invoice.wasm`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := document.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			return dumpDocument(cmd, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.Entry, "entry", session.EntrySymbol, "symbol name of the compiled expression")
	cmd.Flags().StringVar(&opts.WasmOut, "wasm-out", "", "write the lowered wasm module to this file")

	return cmd
}

func dumpDocument(cmd *cobra.Command, opts *DumpOptions, path string) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := document.Load(path)
	if err != nil {
		return formatter.Fail("failed to load document", err)
	}

	// Nothing is executed, so the interpreter avoids native compilation.
	backend := wasmjit.New(wasmjit.WithEngine(wasmjit.EngineInterpreter), wasmjit.WithLogger(logger))
	s, err := session.Open(ctx, backend, session.WithLogger(logger))
	if err != nil {
		return formatter.Fail("failed to open session", err)
	}
	formatter.SessionID = s.ID()

	result, err := func() (res DumpResult, err error) {
		defer func() { err = errors.Join(err, s.Close(ctx)) }()

		p, err := session.DocumentProgram(doc, opts.Entry)
		if err != nil {
			// Records-only documents still dump their types.
			p = session.Program{Decls: doc.Records}
		}
		if _, err := s.CompileProgram(p); err != nil {
			return res, err
		}
		var ir strings.Builder
		if err := s.IR().Dump(&ir); err != nil {
			return res, err
		}
		records, err := recordLayouts(s)
		if err != nil {
			return res, err
		}
		res = DumpResult{Document: path, IR: ir.String(), Records: records}

		if opts.WasmOut != "" {
			bin, err := wasmjit.Lower(s.IR())
			if err != nil {
				return res, err
			}
			if err := os.WriteFile(opts.WasmOut, bin, 0644); err != nil {
				return res, WrapExitError(ExitCommandError, fmt.Sprintf("writing %s", opts.WasmOut), err)
			}
			res.WasmOut = opts.WasmOut
			res.WasmBytes = len(bin)
			formatter.VerboseLog("Wrote %d bytes to %s", len(bin), opts.WasmOut)
		}
		return res, nil
	}()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return formatter.Fail("dump failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	_, err = fmt.Fprint(formatter.Writer, result.IR)
	return err
}

// recordLayouts lists every record defined in s, in definition order, as
// the backend lays it out.
func recordLayouts(s *session.Session) ([]DumpRecord, error) {
	layout, c := s.Layout(), s.IR()
	var out []DumpRecord
	for _, rec := range s.Env().Records() {
		size, align, err := layout.Metrics(c, rec.Type)
		if err != nil {
			return nil, err
		}
		dr := DumpRecord{Name: rec.Name, Size: size, Align: align}
		for _, f := range rec.Fields {
			off, err := layout.FieldOffset(c, rec.Type, f.ID)
			if err != nil {
				return nil, err
			}
			dr.Fields = append(dr.Fields, DumpField{Name: f.Name, Type: c.TypeName(f.Type), Offset: off})
		}
		out = append(out, dr)
	}
	return out, nil
}
