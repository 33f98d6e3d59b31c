package ir

import "fmt"

// DataLayout describes how a backend places values in memory.
type DataLayout struct {
	PointerSize int
}

// Wasm32 is the layout of 32-bit WebAssembly linear memory.
var Wasm32 = DataLayout{PointerSize: 4}

// Metrics returns the size and alignment of t. Struct fields are placed
// in declaration order, each aligned to its own alignment, and the struct
// size is rounded up to its largest field alignment.
func (l DataLayout) Metrics(c *Context, t TypeID) (size, align int, err error) {
	typ, ok := c.Type(t)
	if !ok {
		return 0, 0, fmt.Errorf("metrics of type %d: %w", t, ErrInvalidHandle)
	}
	switch typ.Kind {
	case KindBool:
		return 1, 1, nil
	case KindInt32:
		return 4, 4, nil
	case KindFloat64:
		return 8, 8, nil
	case KindString, KindPointer:
		return l.PointerSize, l.PointerSize, nil
	case KindStruct:
		return l.structMetrics(c, typ, NoField)
	default:
		return 0, 0, fmt.Errorf("metrics of %s: unsupported kind", typ.Kind)
	}
}

// FieldOffset returns the byte offset of field f within struct st.
func (l DataLayout) FieldOffset(c *Context, st TypeID, f FieldID) (int, error) {
	typ, ok := c.Type(st)
	if !ok || typ.Kind != KindStruct {
		return 0, fmt.Errorf("field offset in type %d: %w", st, ErrInvalidHandle)
	}
	field, ok := c.Field(f)
	if !ok || field.Owner != st {
		return 0, fmt.Errorf("field %d is not a member of %s: %w", f, c.TypeName(st), ErrInvalidHandle)
	}
	off, _, err := l.structMetrics(c, typ, f)
	return off, err
}

// structMetrics walks the fields of typ. With stop set it returns the
// offset of that field; otherwise it returns the padded struct size.
func (l DataLayout) structMetrics(c *Context, typ Type, stop FieldID) (off, align int, err error) {
	align = 1
	for _, f := range typ.Fields {
		field, _ := c.Field(f)
		size, fa, err := l.Metrics(c, field.Type)
		if err != nil {
			return 0, 0, fmt.Errorf("field %q: %w", field.Name, err)
		}
		off = alignUp(off, fa)
		if f == stop {
			return off, align, nil
		}
		off += size
		if fa > align {
			align = fa
		}
	}
	return alignUp(off, align), align, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
