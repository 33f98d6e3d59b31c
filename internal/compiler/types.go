package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/ir"
)

// TypeHandle is an opaque reference to a type registered in the session's
// IR context.
type TypeHandle = ir.TypeID

// MoneyRecord is the name of the demonstration record type.
const MoneyRecord = "Money"

// FieldSpec is one field of a record definition.
type FieldSpec struct {
	Name string
	Type TypeHandle
}

// RecordField is a registered record field. ID stays valid for the whole
// session so later code can read and write the field of any record value.
type RecordField struct {
	Name string
	Type TypeHandle
	ID   ir.FieldID
}

// RecordType is a registered record: its handle, the handle of a pointer
// to it, and its fields in layout order.
type RecordType struct {
	Name    string
	Type    TypeHandle
	Pointer TypeHandle
	Fields  []RecordField
}

// Field looks up a field by name.
func (r *RecordType) Field(name string) (RecordField, bool) {
	name = norm.NFC.String(name)
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return RecordField{}, false
}

// TypeEnvironment owns the primitive and record type handles of one
// session. Build it once, before compiling any expression.
type TypeEnvironment struct {
	ctx        *ir.Context
	primitives map[ir.Kind]TypeHandle
	records    map[string]*RecordType
	order      []string
}

var primitiveKinds = []ir.Kind{ir.KindBool, ir.KindInt32, ir.KindFloat64, ir.KindString}

var primitiveNames = map[string]ir.Kind{
	"bool":    ir.KindBool,
	"int32":   ir.KindInt32,
	"float64": ir.KindFloat64,
	"string":  ir.KindString,
}

// BuildEnvironment registers the primitive types (bool, int32, float64,
// string) and pointer-to-float64 in ctx.
func BuildEnvironment(ctx *ir.Context) (*TypeEnvironment, error) {
	env := &TypeEnvironment{
		ctx:        ctx,
		primitives: make(map[ir.Kind]TypeHandle, len(primitiveKinds)),
		records:    make(map[string]*RecordType),
	}
	for _, k := range primitiveKinds {
		env.primitives[k] = ctx.Primitive(k)
	}
	if _, err := ctx.PointerTo(env.primitives[ir.KindFloat64]); err != nil {
		return nil, fmt.Errorf("build environment: %w", err)
	}
	return env, nil
}

// IR returns the context types are registered in.
func (e *TypeEnvironment) IR() *ir.Context {
	return e.ctx
}

// Primitive returns the handle of a primitive kind. The same kind always
// returns the same handle.
func (e *TypeEnvironment) Primitive(k ir.Kind) (TypeHandle, error) {
	if h, ok := e.primitives[k]; ok {
		return h, nil
	}
	return ir.NoType, &CompileError{
		Code:    ErrCodeUnknownType,
		Message: fmt.Sprintf("%s is not a primitive kind", k),
		Subject: k.String(),
	}
}

// Int32 returns the int32 handle.
func (e *TypeEnvironment) Int32() TypeHandle {
	return e.primitives[ir.KindInt32]
}

// PointerTo returns the handle of "pointer to base", memoized per base.
func (e *TypeEnvironment) PointerTo(base TypeHandle) (TypeHandle, error) {
	return e.ctx.PointerTo(base)
}

// DefineRecord registers a record with fields in the given order.
// Names are compared after NFC normalization.
func (e *TypeEnvironment) DefineRecord(name string, fields []FieldSpec) (*RecordType, error) {
	name = norm.NFC.String(name)
	if len(fields) == 0 {
		return nil, &CompileError{
			Code:    ErrCodeEmptyRecord,
			Message: fmt.Sprintf("record %q has no fields", name),
			Subject: name,
		}
	}

	seen := make(map[string]bool, len(fields))
	names := make([]string, len(fields))
	for i, f := range fields {
		fieldName := norm.NFC.String(f.Name)
		if fieldName == "" {
			return nil, &CompileError{
				Code:    ErrCodeUnknownField,
				Message: fmt.Sprintf("record %q field %d has no name", name, i),
				Subject: name,
			}
		}
		if seen[fieldName] {
			return nil, &CompileError{
				Code:    ErrCodeDuplicateFieldName,
				Message: fmt.Sprintf("record %q declares field %q more than once", name, fieldName),
				Subject: fieldName,
			}
		}
		if _, ok := e.ctx.Type(f.Type); !ok {
			return nil, &CompileError{
				Code:    ErrCodeUnknownType,
				Message: fmt.Sprintf("record %q field %q has an invalid type handle", name, fieldName),
				Subject: fieldName,
			}
		}
		seen[fieldName] = true
		names[i] = fieldName
	}

	if _, exists := e.records[name]; exists {
		return nil, &CompileError{
			Code:    ErrCodeDuplicateRecord,
			Message: fmt.Sprintf("record %q is already defined", name),
			Subject: name,
		}
	}

	rec := &RecordType{Name: name, Fields: make([]RecordField, len(fields))}
	ids := make([]ir.FieldID, len(fields))
	for i, f := range fields {
		id, err := e.ctx.NewField(names[i], f.Type)
		if err != nil {
			return nil, fmt.Errorf("define record %q: %w", name, err)
		}
		ids[i] = id
		rec.Fields[i] = RecordField{Name: names[i], Type: f.Type, ID: id}
	}

	st, err := e.ctx.NewStruct(name, ids)
	if err != nil {
		return nil, fmt.Errorf("define record %q: %w", name, err)
	}
	ptr, err := e.ctx.PointerTo(st)
	if err != nil {
		return nil, fmt.Errorf("define record %q: %w", name, err)
	}
	rec.Type = st
	rec.Pointer = ptr

	e.records[name] = rec
	e.order = append(e.order, name)
	return rec, nil
}

// DefineMoney registers the demonstration record
// Money{amount float64, currency string}.
func (e *TypeEnvironment) DefineMoney() (*RecordType, error) {
	return e.DefineRecord(MoneyRecord, []FieldSpec{
		{Name: "amount", Type: e.primitives[ir.KindFloat64]},
		{Name: "currency", Type: e.primitives[ir.KindString]},
	})
}

// Declare resolves the type names of decl and defines the record.
func (e *TypeEnvironment) Declare(decl ast.RecordDecl) (*RecordType, error) {
	fields := make([]FieldSpec, len(decl.Fields))
	for i, f := range decl.Fields {
		t, err := e.ResolveType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("record %q field %q: %w", decl.Name, f.Name, err)
		}
		fields[i] = FieldSpec{Name: f.Name, Type: t}
	}
	return e.DefineRecord(decl.Name, fields)
}

// ResolveType resolves a type name: a primitive name, a defined record
// name, or either prefixed with "*" for a pointer.
func (e *TypeEnvironment) ResolveType(name string) (TypeHandle, error) {
	name = strings.TrimSpace(name)
	if base, ok := strings.CutPrefix(name, "*"); ok {
		t, err := e.ResolveType(base)
		if err != nil {
			return ir.NoType, err
		}
		return e.ctx.PointerTo(t)
	}
	if k, ok := primitiveNames[name]; ok {
		return e.primitives[k], nil
	}
	if rec, ok := e.records[norm.NFC.String(name)]; ok {
		return rec.Type, nil
	}
	return ir.NoType, &CompileError{
		Code:    ErrCodeUnknownType,
		Message: fmt.Sprintf("unknown type %q", name),
		Subject: name,
	}
}

// Record returns a defined record by name.
func (e *TypeEnvironment) Record(name string) (*RecordType, bool) {
	rec, ok := e.records[norm.NFC.String(name)]
	return rec, ok
}

// Records returns every defined record in definition order.
func (e *TypeEnvironment) Records() []*RecordType {
	out := make([]*RecordType, len(e.order))
	for i, name := range e.order {
		out[i] = e.records[name]
	}
	return out
}
