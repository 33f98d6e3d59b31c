package wasmjit

import (
	"errors"
	"fmt"

	"github.com/roach88/jitexpr/internal/ir"
)

// MemoryExport is the export name of the module's linear memory.
const MemoryExport = "memory"

// reservedBytes keeps address 0 and its neighbors free of objects.
const reservedBytes = 8

const pageSize = 65536

// ErrUnsupported is returned when the IR uses something the lowering cannot express.
var ErrUnsupported = errors.New("unsupported by wasm lowering")

// Lower translates every function of c into a WebAssembly binary module.
// Exported IR functions become exported wasm functions of the same name;
// the linear memory is exported as MemoryExport.
func Lower(c *ir.Context) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}
	l := &lowering{
		ctx:     c,
		layout:  ir.Wasm32,
		locals:  make(map[ir.LValueID]uint32),
		strings: make(map[string]uint32),
		next:    reservedBytes,
	}
	return l.module()
}

type lowering struct {
	ctx    *ir.Context
	layout ir.DataLayout

	locals    map[ir.LValueID]uint32
	strings   map[string]uint32
	data      []byte
	dataStart uint32
	next      uint32
}

func (l *lowering) module() ([]byte, error) {
	funcs := l.ctx.Functions()

	// Frames first, so string constants interned during emission land after them.
	for _, id := range funcs {
		fn, _ := l.ctx.Function(id)
		for _, lv := range fn.Locals {
			if err := l.allocLocal(lv); err != nil {
				return nil, fmt.Errorf("lower %s: %w", fn.Name, err)
			}
		}
	}
	l.dataStart = l.next

	var types, fsec, exports, code encoder
	typeIndex := make(map[byte]uint32)
	var typeOrder []byte
	exportNames := map[string]bool{MemoryExport: true}
	exportCount := uint32(1)

	var exportBody encoder
	exportBody.name(MemoryExport)
	exportBody.WriteByte(exportMemory)
	exportBody.u32(0)

	var bodies encoder
	fsec.u32(uint32(len(funcs)))
	for i, id := range funcs {
		fn, _ := l.ctx.Function(id)
		result, err := l.valType(fn.Return)
		if err != nil {
			return nil, fmt.Errorf("lower %s: %w", fn.Name, err)
		}
		idx, ok := typeIndex[result]
		if !ok {
			idx = uint32(len(typeOrder))
			typeIndex[result] = idx
			typeOrder = append(typeOrder, result)
		}
		fsec.u32(idx)

		if fn.Exported {
			if exportNames[fn.Name] {
				return nil, fmt.Errorf("lower %s: export name already in use: %w", fn.Name, ErrUnsupported)
			}
			exportNames[fn.Name] = true
			exportBody.name(fn.Name)
			exportBody.WriteByte(exportFunc)
			exportBody.u32(uint32(i))
			exportCount++
		}

		body, err := l.function(fn)
		if err != nil {
			return nil, fmt.Errorf("lower %s: %w", fn.Name, err)
		}
		bodies.u32(uint32(len(body)))
		bodies.Write(body)
	}

	types.u32(uint32(len(typeOrder)))
	for _, result := range typeOrder {
		types.WriteByte(funcType)
		types.u32(0)
		types.u32(1)
		types.WriteByte(result)
	}

	exports.u32(exportCount)
	exports.Write(exportBody.Bytes())

	code.u32(uint32(len(funcs)))
	code.Write(bodies.Bytes())

	var mem encoder
	mem.u32(1)
	mem.WriteByte(0x00) // min only
	mem.u32(l.pages())

	var out encoder
	out.Write(header)
	out.section(secType, types.Bytes())
	out.section(secFunction, fsec.Bytes())
	out.section(secMemory, mem.Bytes())
	out.section(secExport, exports.Bytes())
	out.section(secCode, code.Bytes())
	if len(l.data) > 0 {
		var data encoder
		data.u32(1)
		data.WriteByte(0x00) // active, memory 0
		data.i32Const(int32(l.dataStart))
		data.WriteByte(opEnd)
		data.u32(uint32(len(l.data)))
		data.Write(l.data)
		out.section(secData, data.Bytes())
	}
	return out.Bytes(), nil
}

func (l *lowering) pages() uint32 {
	n := (l.next + pageSize - 1) / pageSize
	if n == 0 {
		n = 1
	}
	return n
}

func (l *lowering) allocLocal(id ir.LValueID) error {
	lv, _ := l.ctx.LValue(id)
	size, align, err := l.layout.Metrics(l.ctx, lv.Type)
	if err != nil {
		return fmt.Errorf("local %s: %w", lv.Name, err)
	}
	addr := alignUp(l.next, uint32(align))
	l.locals[id] = addr
	l.next = addr + uint32(max(size, 1))
	return nil
}

func (l *lowering) intern(s string) uint32 {
	if addr, ok := l.strings[s]; ok {
		return addr
	}
	addr := l.next
	l.strings[s] = addr
	l.data = append(l.data, s...)
	l.data = append(l.data, 0)
	l.next += uint32(len(s)) + 1
	return addr
}

func (l *lowering) function(fn ir.Function) ([]byte, error) {
	var e encoder
	e.u32(0) // no wasm locals; IR locals live in linear memory
	for _, b := range fn.Blocks {
		blk, _ := l.ctx.Block(b)
		for _, st := range blk.Stmts {
			switch st.Kind {
			case ir.StmtAssign:
				if err := l.assign(&e, st); err != nil {
					return nil, err
				}
			case ir.StmtReturn:
				if err := l.value(&e, st.Value); err != nil {
					return nil, err
				}
				e.WriteByte(opReturn)
			}
		}
	}
	e.WriteByte(opEnd)
	return e.Bytes(), nil
}

func (l *lowering) assign(e *encoder, st ir.Stmt) error {
	target, _ := l.ctx.LValue(st.Target)
	addr, err := l.address(st.Target)
	if err != nil {
		return err
	}
	e.i32Const(int32(addr))
	if err := l.value(e, st.Value); err != nil {
		return err
	}
	switch l.kind(target.Type) {
	case ir.KindBool:
		e.WriteByte(opI32Store8)
		e.memarg(0, 0)
	case ir.KindFloat64:
		e.WriteByte(opF64Store)
		e.memarg(3, 0)
	case ir.KindInt32, ir.KindString, ir.KindPointer:
		e.WriteByte(opI32Store)
		e.memarg(2, 0)
	default:
		return fmt.Errorf("store to %s: %w", l.ctx.LValueName(st.Target), ErrUnsupported)
	}
	return nil
}

// address returns the static address of an lvalue.
func (l *lowering) address(id ir.LValueID) (uint32, error) {
	lv, ok := l.ctx.LValue(id)
	if !ok {
		return 0, fmt.Errorf("lvalue %d: %w", id, ir.ErrInvalidHandle)
	}
	switch lv.Kind {
	case ir.LValueLocal:
		addr, ok := l.locals[id]
		if !ok {
			return 0, fmt.Errorf("local %s has no frame slot: %w", lv.Name, ErrUnsupported)
		}
		return addr, nil
	case ir.LValueField:
		base, err := l.address(lv.Parent)
		if err != nil {
			return 0, err
		}
		parent, _ := l.ctx.LValue(lv.Parent)
		off, err := l.layout.FieldOffset(l.ctx, parent.Type, lv.Field)
		if err != nil {
			return 0, err
		}
		return base + uint32(off), nil
	}
	return 0, fmt.Errorf("lvalue kind %d: %w", lv.Kind, ErrUnsupported)
}

func (l *lowering) value(e *encoder, id ir.ValueID) error {
	v, ok := l.ctx.Value(id)
	if !ok {
		return fmt.Errorf("value %d: %w", id, ir.ErrInvalidHandle)
	}
	kind := l.kind(v.Type)

	switch v.Kind {
	case ir.ValueConst:
		switch kind {
		case ir.KindInt32:
			e.i32Const(v.Int)
		case ir.KindFloat64:
			e.f64Const(v.Float)
		case ir.KindBool:
			if v.Bool {
				e.i32Const(1)
			} else {
				e.i32Const(0)
			}
		case ir.KindString:
			e.i32Const(int32(l.intern(v.Str)))
		default:
			return fmt.Errorf("%s constant: %w", kind, ErrUnsupported)
		}

	case ir.ValueUnary:
		if v.Op != ir.OpNegate {
			return fmt.Errorf("unary %s: %w", v.Op, ErrUnsupported)
		}
		if kind == ir.KindInt32 {
			e.i32Const(0)
			if err := l.value(e, v.Operands[0]); err != nil {
				return err
			}
			e.WriteByte(opI32Sub)
			return nil
		}
		if err := l.value(e, v.Operands[0]); err != nil {
			return err
		}
		e.WriteByte(opF64Neg)

	case ir.ValueBinary:
		op, err := binaryOpcode(v.Op, kind)
		if err != nil {
			return err
		}
		if err := l.value(e, v.Operands[0]); err != nil {
			return err
		}
		if err := l.value(e, v.Operands[1]); err != nil {
			return err
		}
		e.WriteByte(op)

	case ir.ValueAddress:
		addr, err := l.address(v.LValue)
		if err != nil {
			return err
		}
		e.i32Const(int32(addr))

	case ir.ValueLoad:
		addr, err := l.address(v.LValue)
		if err != nil {
			return err
		}
		e.i32Const(int32(addr))
		switch kind {
		case ir.KindBool:
			e.WriteByte(opI32Load8U)
			e.memarg(0, 0)
		case ir.KindFloat64:
			e.WriteByte(opF64Load)
			e.memarg(3, 0)
		default:
			e.WriteByte(opI32Load)
			e.memarg(2, 0)
		}

	default:
		return fmt.Errorf("value kind %d: %w", v.Kind, ErrUnsupported)
	}
	return nil
}

func binaryOpcode(op ir.OperatorKind, kind ir.Kind) (byte, error) {
	var table map[ir.OperatorKind]byte
	switch kind {
	case ir.KindInt32:
		table = i32Ops
	case ir.KindFloat64:
		table = f64Ops
	}
	if code, ok := table[op]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("%s on %s: %w", op, kind, ErrUnsupported)
}

var i32Ops = map[ir.OperatorKind]byte{
	ir.OpAdd:      opI32Add,
	ir.OpSubtract: opI32Sub,
	ir.OpMultiply: opI32Mul,
	ir.OpDivide:   opI32DivS,
}

var f64Ops = map[ir.OperatorKind]byte{
	ir.OpAdd:      opF64Add,
	ir.OpSubtract: opF64Sub,
	ir.OpMultiply: opF64Mul,
	ir.OpDivide:   opF64Div,
}

func (l *lowering) valType(t ir.TypeID) (byte, error) {
	switch l.kind(t) {
	case ir.KindFloat64:
		return valF64, nil
	case ir.KindInt32, ir.KindBool, ir.KindString, ir.KindPointer:
		return valI32, nil
	}
	return 0, fmt.Errorf("%s values: %w", l.ctx.TypeName(t), ErrUnsupported)
}

func (l *lowering) kind(t ir.TypeID) ir.Kind {
	typ, _ := l.ctx.Type(t)
	return typ.Kind
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) / align * align
}
