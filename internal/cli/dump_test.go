package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeDump(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewDumpCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return buf.String(), err
}

func TestDumpGolden(t *testing.T) {
	path := writeDoc(t, "invoice.yaml", invoiceYAML)

	out, err := executeDump(t, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump_invoice", []byte(out))
}

func TestDumpWasmOut(t *testing.T) {
	path := writeDoc(t, "structure.json", `["+", 1, ["-", 2]]`)
	wasmPath := filepath.Join(t.TempDir(), "out.wasm")

	out, err := executeDump(t, &RootOptions{Format: "json"}, "--wasm-out", wasmPath, path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.SessionID)

	data := resp.Data.(map[string]any)
	assert.Contains(t, data["ir"], "return (add 1 (negate 2))")
	assert.Equal(t, wasmPath, data["wasm_out"])

	bin, err := os.ReadFile(wasmPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00asm\x01\x00\x00\x00"), bin[:8])
	assert.Equal(t, float64(len(bin)), data["wasm_bytes"])
}

func TestDumpRecordLayouts(t *testing.T) {
	path := writeDoc(t, "invoice.yaml", invoiceYAML)

	out, err := executeDump(t, &RootOptions{Format: "json"}, path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DumpResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []DumpRecord{
		{
			Name: "Money", Size: 16, Align: 8,
			Fields: []DumpField{
				{Name: "amount", Type: "float64", Offset: 0},
				{Name: "currency", Type: "string", Offset: 8},
			},
		},
		{
			Name: "Line", Size: 24, Align: 8,
			Fields: []DumpField{
				{Name: "qty", Type: "int32", Offset: 0},
				{Name: "price", Type: "Money", Offset: 8},
			},
		},
	}, resp.Data.Records)
}

func TestDumpExpressionOnlyHasNoRecords(t *testing.T) {
	path := writeDoc(t, "structure.json", `["*", 6, 7]`)

	out, err := executeDump(t, &RootOptions{Format: "json"}, path)
	require.NoError(t, err)
	assert.NotContains(t, out, `"records"`)
}

func TestDumpCompileError(t *testing.T) {
	path := writeDoc(t, "structure.json", `["+", 1, ["%", 2]]`)

	out, err := executeDump(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "Error [E201]")
	assert.Contains(t, out, "$[2]")
}

func TestDumpUnwritableWasmOut(t *testing.T) {
	path := writeDoc(t, "structure.json", `1`)
	wasmPath := filepath.Join(t.TempDir(), "missing-dir", "out.wasm")

	_, err := executeDump(t, &RootOptions{Format: "text"}, "--wasm-out", wasmPath, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
