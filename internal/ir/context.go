package ir

import (
	"errors"
	"fmt"
)

// Builder errors. Methods wrap these with context; match with errors.Is.
var (
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrAggregateValue  = errors.New("aggregate values must be accessed by field or pointer")
	ErrTerminated      = errors.New("block already terminated")
	ErrFieldOwned      = errors.New("field already belongs to a struct")
	ErrDuplicateSymbol = errors.New("duplicate function name")
)

// Context owns all IR for one compilation session.
// The zero value is not usable; create one with NewContext.
type Context struct {
	types   []Type
	fields  []Field
	values  []Value
	lvalues []LValue
	funcs   []Function
	blocks  []Block

	primitives map[Kind]TypeID
	pointers   map[TypeID]TypeID
	funcNames  map[string]FuncID
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		primitives: make(map[Kind]TypeID),
		pointers:   make(map[TypeID]TypeID),
		funcNames:  make(map[string]FuncID),
	}
}

// Primitive returns the handle for a primitive kind, registering it on
// first use. The same kind always returns the same handle.
//
// Panics if k is not a primitive kind (see Kind.IsPrimitive).
func (c *Context) Primitive(k Kind) TypeID {
	if !k.IsPrimitive() {
		panic(fmt.Sprintf("ir: %s is not a primitive kind", k))
	}
	if id, ok := c.primitives[k]; ok {
		return id
	}
	id := c.addType(Type{Kind: k})
	c.primitives[k] = id
	return id
}

// PointerTo returns the handle for "pointer to base", memoized per base.
func (c *Context) PointerTo(base TypeID) (TypeID, error) {
	if _, ok := c.Type(base); !ok {
		return NoType, fmt.Errorf("pointer to type %d: %w", base, ErrInvalidHandle)
	}
	if id, ok := c.pointers[base]; ok {
		return id, nil
	}
	id := c.addType(Type{Kind: KindPointer, Elem: base})
	c.pointers[base] = id
	return id, nil
}

// NewField creates a field that is not yet attached to a struct.
func (c *Context) NewField(name string, t TypeID) (FieldID, error) {
	if name == "" {
		return NoField, errors.New("field name is required")
	}
	if _, ok := c.Type(t); !ok {
		return NoField, fmt.Errorf("field %q type %d: %w", name, t, ErrInvalidHandle)
	}
	c.fields = append(c.fields, Field{Name: name, Type: t})
	return FieldID(len(c.fields)), nil
}

// NewStruct creates a struct type from fields in layout order.
// Each field may belong to exactly one struct.
func (c *Context) NewStruct(name string, fields []FieldID) (TypeID, error) {
	if name == "" {
		return NoType, errors.New("struct name is required")
	}
	for _, f := range fields {
		field, ok := c.Field(f)
		if !ok {
			return NoType, fmt.Errorf("struct %q field %d: %w", name, f, ErrInvalidHandle)
		}
		if field.Owner.IsValid() {
			return NoType, fmt.Errorf("struct %q field %q: %w", name, field.Name, ErrFieldOwned)
		}
	}
	id := c.addType(Type{Kind: KindStruct, Name: name, Fields: append([]FieldID(nil), fields...)})
	for _, f := range fields {
		c.fields[f-1].Owner = id
	}
	return id, nil
}

// ConstInt32 creates an int32 constant.
func (c *Context) ConstInt32(v int32) ValueID {
	return c.addValue(Value{Kind: ValueConst, Type: c.Primitive(KindInt32), Int: v})
}

// ConstFloat64 creates a float64 constant.
func (c *Context) ConstFloat64(v float64) ValueID {
	return c.addValue(Value{Kind: ValueConst, Type: c.Primitive(KindFloat64), Float: v})
}

// ConstBool creates a bool constant.
func (c *Context) ConstBool(v bool) ValueID {
	return c.addValue(Value{Kind: ValueConst, Type: c.Primitive(KindBool), Bool: v})
}

// ConstString creates a string constant. Backends store it NUL-terminated.
func (c *Context) ConstString(v string) ValueID {
	return c.addValue(Value{Kind: ValueConst, Type: c.Primitive(KindString), Str: v})
}

// Unary applies a unary operator. The operand must have the result type,
// which must be arithmetic.
func (c *Context) Unary(op OperatorKind, t TypeID, operand ValueID) (ValueID, error) {
	if op.Arity() != 1 {
		return NoValue, fmt.Errorf("%s is not a unary operator", op)
	}
	if err := c.checkArithmetic(op, t, operand); err != nil {
		return NoValue, err
	}
	return c.addValue(Value{Kind: ValueUnary, Type: t, Op: op, Operands: [2]ValueID{operand}}), nil
}

// Binary applies a binary operator. Both operands must have the result
// type, which must be arithmetic.
func (c *Context) Binary(op OperatorKind, t TypeID, left, right ValueID) (ValueID, error) {
	if op.Arity() != 2 {
		return NoValue, fmt.Errorf("%s is not a binary operator", op)
	}
	if err := c.checkArithmetic(op, t, left); err != nil {
		return NoValue, err
	}
	if err := c.checkArithmetic(op, t, right); err != nil {
		return NoValue, err
	}
	return c.addValue(Value{Kind: ValueBinary, Type: t, Op: op, Operands: [2]ValueID{left, right}}), nil
}

func (c *Context) checkArithmetic(op OperatorKind, t TypeID, operand ValueID) error {
	typ, ok := c.Type(t)
	if !ok {
		return fmt.Errorf("%s result type %d: %w", op, t, ErrInvalidHandle)
	}
	if !typ.Kind.IsArithmetic() {
		return fmt.Errorf("%s on %s: %w", op, c.TypeName(t), ErrTypeMismatch)
	}
	v, ok := c.Value(operand)
	if !ok {
		return fmt.Errorf("%s operand %d: %w", op, operand, ErrInvalidHandle)
	}
	if v.Type != t {
		return fmt.Errorf("%s operand is %s, want %s: %w", op, c.TypeName(v.Type), c.TypeName(t), ErrTypeMismatch)
	}
	return nil
}

// NewFunction declares a no-argument function. Exported functions are
// reachable by name from compiled code. Aggregates cannot be returned by
// value.
func (c *Context) NewFunction(name string, ret TypeID, exported bool) (FuncID, error) {
	if name == "" {
		return NoFunc, errors.New("function name is required")
	}
	if _, exists := c.funcNames[name]; exists {
		return NoFunc, fmt.Errorf("function %q: %w", name, ErrDuplicateSymbol)
	}
	rt, ok := c.Type(ret)
	if !ok {
		return NoFunc, fmt.Errorf("function %q return type %d: %w", name, ret, ErrInvalidHandle)
	}
	if rt.Kind == KindStruct {
		return NoFunc, fmt.Errorf("function %q returns %s: %w", name, rt.Name, ErrAggregateValue)
	}
	c.funcs = append(c.funcs, Function{Name: name, Return: ret, Exported: exported})
	id := FuncID(len(c.funcs))
	c.funcNames[name] = id
	return id, nil
}

// NewLocal declares a local variable of fn.
func (c *Context) NewLocal(fn FuncID, t TypeID, name string) (LValueID, error) {
	if _, ok := c.Function(fn); !ok {
		return NoLValue, fmt.Errorf("local %q function %d: %w", name, fn, ErrInvalidHandle)
	}
	if _, ok := c.Type(t); !ok {
		return NoLValue, fmt.Errorf("local %q type %d: %w", name, t, ErrInvalidHandle)
	}
	if name == "" {
		return NoLValue, errors.New("local name is required")
	}
	id := c.addLValue(LValue{Kind: LValueLocal, Type: t, Func: fn, Name: name})
	c.funcs[fn-1].Locals = append(c.funcs[fn-1].Locals, id)
	return id, nil
}

// AccessField returns the lvalue for field f of the struct-typed lv.
func (c *Context) AccessField(lv LValueID, f FieldID) (LValueID, error) {
	parent, ok := c.LValue(lv)
	if !ok {
		return NoLValue, fmt.Errorf("access field of lvalue %d: %w", lv, ErrInvalidHandle)
	}
	field, ok := c.Field(f)
	if !ok {
		return NoLValue, fmt.Errorf("access field %d: %w", f, ErrInvalidHandle)
	}
	if field.Owner != parent.Type {
		return NoLValue, fmt.Errorf("field %q is not a member of %s: %w", field.Name, c.TypeName(parent.Type), ErrTypeMismatch)
	}
	return c.addLValue(LValue{Kind: LValueField, Type: field.Type, Func: parent.Func, Parent: lv, Field: f}), nil
}

// AddressOf returns a pointer rvalue to lv.
func (c *Context) AddressOf(lv LValueID) (ValueID, error) {
	l, ok := c.LValue(lv)
	if !ok {
		return NoValue, fmt.Errorf("address of lvalue %d: %w", lv, ErrInvalidHandle)
	}
	pt, err := c.PointerTo(l.Type)
	if err != nil {
		return NoValue, err
	}
	return c.addValue(Value{Kind: ValueAddress, Type: pt, LValue: lv}), nil
}

// Load returns the current contents of a scalar lvalue as an rvalue.
func (c *Context) Load(lv LValueID) (ValueID, error) {
	l, ok := c.LValue(lv)
	if !ok {
		return NoValue, fmt.Errorf("load lvalue %d: %w", lv, ErrInvalidHandle)
	}
	if c.kindOf(l.Type) == KindStruct {
		return NoValue, fmt.Errorf("load %s: %w", c.LValueName(lv), ErrAggregateValue)
	}
	return c.addValue(Value{Kind: ValueLoad, Type: l.Type, LValue: lv}), nil
}

// NewBlock appends a block to fn.
func (c *Context) NewBlock(fn FuncID, name string) (BlockID, error) {
	if _, ok := c.Function(fn); !ok {
		return NoBlock, fmt.Errorf("block %q function %d: %w", name, fn, ErrInvalidHandle)
	}
	c.blocks = append(c.blocks, Block{Func: fn, Name: name})
	id := BlockID(len(c.blocks))
	c.funcs[fn-1].Blocks = append(c.funcs[fn-1].Blocks, id)
	return id, nil
}

// Assign appends "lv = v" to block b.
func (c *Context) Assign(b BlockID, lv LValueID, v ValueID) error {
	blk, err := c.openBlock(b)
	if err != nil {
		return err
	}
	target, ok := c.LValue(lv)
	if !ok {
		return fmt.Errorf("assign to lvalue %d: %w", lv, ErrInvalidHandle)
	}
	if target.Func != blk.Func {
		return fmt.Errorf("assign to %s: lvalue belongs to another function: %w", c.LValueName(lv), ErrInvalidHandle)
	}
	if c.kindOf(target.Type) == KindStruct {
		return fmt.Errorf("assign to %s: %w", c.LValueName(lv), ErrAggregateValue)
	}
	if err := c.checkValue(blk.Func, v, target.Type); err != nil {
		return fmt.Errorf("assign to %s: %w", c.LValueName(lv), err)
	}
	c.blocks[b-1].Stmts = append(c.blocks[b-1].Stmts, Stmt{Kind: StmtAssign, Target: lv, Value: v})
	return nil
}

// Return terminates block b, returning v.
func (c *Context) Return(b BlockID, v ValueID) error {
	blk, err := c.openBlock(b)
	if err != nil {
		return err
	}
	fn := c.funcs[blk.Func-1]
	if err := c.checkValue(blk.Func, v, fn.Return); err != nil {
		return fmt.Errorf("return from %s: %w", fn.Name, err)
	}
	c.blocks[b-1].Stmts = append(c.blocks[b-1].Stmts, Stmt{Kind: StmtReturn, Value: v})
	c.blocks[b-1].Terminated = true
	return nil
}

func (c *Context) openBlock(b BlockID) (Block, error) {
	blk, ok := c.Block(b)
	if !ok {
		return Block{}, fmt.Errorf("block %d: %w", b, ErrInvalidHandle)
	}
	if blk.Terminated {
		return Block{}, fmt.Errorf("block %q: %w", blk.Name, ErrTerminated)
	}
	return blk, nil
}

// checkValue verifies v exists, has type want, and only reads lvalues of fn.
func (c *Context) checkValue(fn FuncID, v ValueID, want TypeID) error {
	val, ok := c.Value(v)
	if !ok {
		return fmt.Errorf("value %d: %w", v, ErrInvalidHandle)
	}
	if val.Type != want {
		return fmt.Errorf("value is %s, want %s: %w", c.TypeName(val.Type), c.TypeName(want), ErrTypeMismatch)
	}
	if owner := c.valueFunc(v); owner.IsValid() && owner != fn {
		return fmt.Errorf("value refers to a local of another function: %w", ErrInvalidHandle)
	}
	return nil
}

// valueFunc returns the function whose locals v reads, or NoFunc if v is
// function independent.
func (c *Context) valueFunc(v ValueID) FuncID {
	val := c.values[v-1]
	switch val.Kind {
	case ValueAddress, ValueLoad:
		return c.lvalues[val.LValue-1].Func
	case ValueUnary:
		return c.valueFunc(val.Operands[0])
	case ValueBinary:
		if fn := c.valueFunc(val.Operands[0]); fn.IsValid() {
			return fn
		}
		return c.valueFunc(val.Operands[1])
	}
	return NoFunc
}

// Validate checks that every function is complete: exactly one block,
// terminated by a return.
func (c *Context) Validate() error {
	var errs []error
	for _, fn := range c.funcs {
		switch len(fn.Blocks) {
		case 0:
			errs = append(errs, fmt.Errorf("function %q has no body", fn.Name))
			continue
		case 1:
		default:
			errs = append(errs, fmt.Errorf("function %q has %d blocks; only straight-line bodies are supported", fn.Name, len(fn.Blocks)))
		}
		for _, b := range fn.Blocks {
			if !c.blocks[b-1].Terminated {
				errs = append(errs, fmt.Errorf("function %q block %q does not end with a return", fn.Name, c.blocks[b-1].Name))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Context) addType(t Type) TypeID {
	c.types = append(c.types, t)
	return TypeID(len(c.types))
}

func (c *Context) addValue(v Value) ValueID {
	c.values = append(c.values, v)
	return ValueID(len(c.values))
}

func (c *Context) addLValue(l LValue) LValueID {
	c.lvalues = append(c.lvalues, l)
	return LValueID(len(c.lvalues))
}

func (c *Context) kindOf(t TypeID) Kind {
	if typ, ok := c.Type(t); ok {
		return typ.Kind
	}
	return KindInvalid
}
