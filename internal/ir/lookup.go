package ir

// Type returns the type for id.
func (c *Context) Type(id TypeID) (Type, bool) {
	if !id.IsValid() || int(id) > len(c.types) {
		return Type{}, false
	}
	return c.types[id-1], true
}

// Field returns the field for id.
func (c *Context) Field(id FieldID) (Field, bool) {
	if !id.IsValid() || int(id) > len(c.fields) {
		return Field{}, false
	}
	return c.fields[id-1], true
}

// Value returns the rvalue for id.
func (c *Context) Value(id ValueID) (Value, bool) {
	if !id.IsValid() || int(id) > len(c.values) {
		return Value{}, false
	}
	return c.values[id-1], true
}

// LValue returns the lvalue for id.
func (c *Context) LValue(id LValueID) (LValue, bool) {
	if !id.IsValid() || int(id) > len(c.lvalues) {
		return LValue{}, false
	}
	return c.lvalues[id-1], true
}

// Function returns the function for id.
func (c *Context) Function(id FuncID) (Function, bool) {
	if !id.IsValid() || int(id) > len(c.funcs) {
		return Function{}, false
	}
	return c.funcs[id-1], true
}

// Block returns the block for id.
func (c *Context) Block(id BlockID) (Block, bool) {
	if !id.IsValid() || int(id) > len(c.blocks) {
		return Block{}, false
	}
	return c.blocks[id-1], true
}

// Types returns every registered type ID in registration order.
func (c *Context) Types() []TypeID {
	ids := make([]TypeID, len(c.types))
	for i := range c.types {
		ids[i] = TypeID(i + 1)
	}
	return ids
}

// Functions returns every function ID in declaration order.
func (c *Context) Functions() []FuncID {
	ids := make([]FuncID, len(c.funcs))
	for i := range c.funcs {
		ids[i] = FuncID(i + 1)
	}
	return ids
}

// LookupFunction finds a function by name.
func (c *Context) LookupFunction(name string) (FuncID, bool) {
	id, ok := c.funcNames[name]
	return id, ok
}

// TypeName renders a type for diagnostics: "int32", "*float64", "Money".
func (c *Context) TypeName(id TypeID) string {
	t, ok := c.Type(id)
	if !ok {
		return "<invalid>"
	}
	switch t.Kind {
	case KindPointer:
		return "*" + c.TypeName(t.Elem)
	case KindStruct:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// LValueName renders an lvalue path for diagnostics: "money.amount".
func (c *Context) LValueName(id LValueID) string {
	l, ok := c.LValue(id)
	if !ok {
		return "<invalid>"
	}
	if l.Kind == LValueField {
		f, _ := c.Field(l.Field)
		return c.LValueName(l.Parent) + "." + f.Name
	}
	return l.Name
}
