package ir

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes a deterministic textual form of the context: every type in
// registration order, then every function with its locals and blocks.
//
//	type t2 int32
//
//	export func entry() int32 {
//	block entry:
//		return (add 1 (negate 2))
//	}
func (c *Context) Dump(w io.Writer) error {
	var buf bytes.Buffer
	for _, id := range c.Types() {
		fmt.Fprintf(&buf, "type t%d %s\n", id, c.describeType(id))
	}
	for _, id := range c.Functions() {
		buf.WriteByte('\n')
		c.dumpFunction(&buf, id)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// String returns the Dump output.
func (c *Context) String() string {
	var b strings.Builder
	_ = c.Dump(&b)
	return b.String()
}

func (c *Context) describeType(id TypeID) string {
	t := c.types[id-1]
	if t.Kind != KindStruct {
		return c.TypeName(id)
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		field := c.fields[f-1]
		parts[i] = field.Name + " " + c.TypeName(field.Type)
	}
	return "struct " + t.Name + " { " + strings.Join(parts, "; ") + " }"
}

func (c *Context) dumpFunction(buf *bytes.Buffer, id FuncID) {
	fn := c.funcs[id-1]
	if fn.Exported {
		buf.WriteString("export ")
	}
	fmt.Fprintf(buf, "func %s() %s {\n", fn.Name, c.TypeName(fn.Return))
	for _, lv := range fn.Locals {
		l := c.lvalues[lv-1]
		fmt.Fprintf(buf, "\tlocal %s %s\n", l.Name, c.TypeName(l.Type))
	}
	for _, b := range fn.Blocks {
		blk := c.blocks[b-1]
		fmt.Fprintf(buf, "block %s:\n", blk.Name)
		for _, st := range blk.Stmts {
			switch st.Kind {
			case StmtAssign:
				fmt.Fprintf(buf, "\t%s = %s\n", c.LValueName(st.Target), c.FormatValue(st.Value))
			case StmtReturn:
				fmt.Fprintf(buf, "\treturn %s\n", c.FormatValue(st.Value))
			}
		}
	}
	buf.WriteString("}\n")
}

// FormatValue renders an rvalue as a nested prefix expression.
func (c *Context) FormatValue(id ValueID) string {
	v, ok := c.Value(id)
	if !ok {
		return "<invalid>"
	}
	switch v.Kind {
	case ValueConst:
		return c.formatConst(v)
	case ValueUnary:
		return "(" + v.Op.String() + " " + c.FormatValue(v.Operands[0]) + ")"
	case ValueBinary:
		return "(" + v.Op.String() + " " + c.FormatValue(v.Operands[0]) + " " + c.FormatValue(v.Operands[1]) + ")"
	case ValueAddress:
		return "&" + c.LValueName(v.LValue)
	case ValueLoad:
		return c.LValueName(v.LValue)
	}
	return "<invalid>"
}

func (c *Context) formatConst(v Value) string {
	switch c.kindOf(v.Type) {
	case KindInt32:
		return strconv.FormatInt(int64(v.Int), 10)
	case KindFloat64:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return strconv.Quote(v.Str)
	}
	return "<invalid>"
}
