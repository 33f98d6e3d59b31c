package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/jitexpr/internal/compiler"
	"github.com/roach88/jitexpr/internal/ir"
	"github.com/roach88/jitexpr/internal/jit"
)

// Invoker calls entry points of compiled code.
type Invoker struct {
	result   jit.Result
	layout   ir.DataLayout
	env      *compiler.TypeEnvironment
	logger   *slog.Logger
	released bool
}

// FieldValue is one field read back from compiled code.
type FieldValue struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// RecordValue is a record read back from compiled code. Fields are in
// declared order; nested records appear as RecordValue.
type RecordValue struct {
	Name    string       `json:"name"`
	Address uint32       `json:"address"`
	Fields  []FieldValue `json:"fields"`
}

// Field returns the value of the named field.
func (r RecordValue) Field(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String renders the record as Money{amount: 20, currency: "USD"}.
func (r RecordValue) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		switch v := f.Value.(type) {
		case string:
			b.WriteString(strconv.Quote(v))
		default:
			fmt.Fprint(&b, v)
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Int32 invokes symbol and returns its int32 result.
func (inv *Invoker) Int32(ctx context.Context, symbol string) (int32, error) {
	raw, err := inv.call(ctx, symbol)
	if err != nil {
		return 0, err
	}
	v := jit.DecodeI32(raw)
	inv.logger.Debug("invoked", "symbol", symbol, "result", v)
	return v, nil
}

// Record invokes symbol, which must return a pointer to rec, and reads the
// record's fields through that pointer.
func (inv *Invoker) Record(ctx context.Context, symbol string, rec *compiler.RecordType) (RecordValue, error) {
	raw, err := inv.call(ctx, symbol)
	if err != nil {
		return RecordValue{}, err
	}
	ptr := jit.DecodeU32(raw)
	if ptr == 0 {
		return RecordValue{}, fmt.Errorf("invoke %s: returned a null %s pointer", symbol, rec.Name)
	}
	v, err := inv.readRecord(rec, ptr)
	if err != nil {
		return RecordValue{}, fmt.Errorf("invoke %s: %w", symbol, err)
	}
	inv.logger.Debug("invoked", "symbol", symbol, "record", rec.Name, "address", ptr)
	return v, nil
}

// Release frees the compiled code. Calls after the first are no-ops.
func (inv *Invoker) Release(ctx context.Context) error {
	if inv.released {
		return nil
	}
	inv.released = true
	if err := inv.result.Release(ctx); err != nil {
		return fmt.Errorf("release compiled code: %w", err)
	}
	return nil
}

func (inv *Invoker) call(ctx context.Context, symbol string) (uint64, error) {
	if inv.released {
		return 0, fmt.Errorf("invoke %s: compiled code already released", symbol)
	}
	fn, err := inv.result.Lookup(symbol)
	if err != nil {
		return 0, err
	}
	out, err := fn.Call(ctx)
	if err != nil {
		return 0, fmt.Errorf("invoke %s: %w", symbol, err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("invoke %s: got %d results, want 1", symbol, len(out))
	}
	return out[0], nil
}

func (inv *Invoker) readRecord(rec *compiler.RecordType, base uint32) (RecordValue, error) {
	c := inv.env.IR()
	mem := inv.result.Memory()
	out := RecordValue{Name: rec.Name, Address: base, Fields: make([]FieldValue, len(rec.Fields))}

	for i, f := range rec.Fields {
		off, err := inv.layout.FieldOffset(c, rec.Type, f.ID)
		if err != nil {
			return RecordValue{}, err
		}
		addr := base + uint32(off)
		typ, _ := c.Type(f.Type)

		var (
			v  any
			ok bool
		)
		switch typ.Kind {
		case ir.KindFloat64:
			v, ok = mem.ReadFloat64Le(addr)
		case ir.KindInt32:
			var u uint32
			u, ok = mem.ReadUint32Le(addr)
			v = int32(u)
		case ir.KindBool:
			var b byte
			b, ok = mem.ReadByte(addr)
			v = b != 0
		case ir.KindPointer:
			v, ok = mem.ReadUint32Le(addr)
		case ir.KindString:
			var p uint32
			if p, ok = mem.ReadUint32Le(addr); ok {
				v, err = readCString(mem, p)
				if err != nil {
					return RecordValue{}, fmt.Errorf("%s.%s: %w", rec.Name, f.Name, err)
				}
			}
		case ir.KindStruct:
			nested, found := inv.env.Record(typ.Name)
			if !found {
				return RecordValue{}, fmt.Errorf("%s.%s: record %s is not defined", rec.Name, f.Name, typ.Name)
			}
			v, err = inv.readRecord(nested, addr)
			if err != nil {
				return RecordValue{}, err
			}
			ok = true
		}
		if !ok {
			return RecordValue{}, fmt.Errorf("%s.%s: address %d out of range", rec.Name, f.Name, addr)
		}
		out.Fields[i] = FieldValue{Name: f.Name, Type: c.TypeName(f.Type), Value: v}
	}
	return out, nil
}

// readCString reads NUL-terminated bytes at p. A null pointer reads as "".
func readCString(mem jit.Memory, p uint32) (string, error) {
	if p == 0 {
		return "", nil
	}
	var b strings.Builder
	for addr := p; ; addr++ {
		c, ok := mem.ReadByte(addr)
		if !ok {
			return "", fmt.Errorf("string at %d is not terminated", p)
		}
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}
