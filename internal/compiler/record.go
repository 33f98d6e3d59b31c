package compiler

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/jitexpr/internal/ir"
)

// FieldInit assigns a constant to one record field.
// Value must be a bool, string, integer or floating point Go value that
// fits the field type.
type FieldInit struct {
	Field string
	Value any
}

// CompileRecordConstructor builds an exported function
//
//	name() *Record
//
// that stores each initializer into a local record, in the record's field
// order, and returns the local's address. Fields without an initializer
// keep their zero value. All initializers are checked before any IR is
// emitted.
func CompileRecordConstructor(env *TypeEnvironment, name string, rec *RecordType, inits []FieldInit) (ir.FuncID, error) {
	ctx := env.IR()

	byField := make(map[string]any, len(inits))
	for _, init := range inits {
		fieldName := norm.NFC.String(init.Field)
		if _, ok := rec.Field(fieldName); !ok {
			return ir.NoFunc, &CompileError{
				Code:    ErrCodeUnknownField,
				Message: fmt.Sprintf("record %q has no field %q", rec.Name, init.Field),
				Subject: init.Field,
			}
		}
		if _, dup := byField[fieldName]; dup {
			return ir.NoFunc, &CompileError{
				Code:    ErrCodeDuplicateFieldName,
				Message: fmt.Sprintf("field %q of record %q is initialized more than once", init.Field, rec.Name),
				Subject: init.Field,
			}
		}
		byField[fieldName] = init.Value
	}
	for _, f := range rec.Fields {
		if v, ok := byField[f.Name]; ok {
			if err := checkConst(ctx, rec, f, v); err != nil {
				return ir.NoFunc, err
			}
		}
	}

	fn, err := ctx.NewFunction(name, rec.Pointer, true)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
	}
	local, err := ctx.NewLocal(fn, rec.Type, strings.ToLower(rec.Name))
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
	}
	block, err := ctx.NewBlock(fn, EntryBlock)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
	}

	for _, f := range rec.Fields {
		v, ok := byField[f.Name]
		if !ok {
			continue
		}
		lv, err := ctx.AccessField(local, f.ID)
		if err != nil {
			return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
		}
		if err := ctx.Assign(block, lv, constant(ctx, f, v)); err != nil {
			return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
		}
	}

	addr, err := ctx.AddressOf(local)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
	}
	if err := ctx.Return(block, addr); err != nil {
		return ir.NoFunc, fmt.Errorf("compile constructor %q: %w", name, err)
	}
	return fn, nil
}

// checkConst verifies v can be stored in field f.
func checkConst(ctx *ir.Context, rec *RecordType, f RecordField, v any) error {
	typ, _ := ctx.Type(f.Type)
	ok := false
	switch typ.Kind {
	case ir.KindBool:
		_, ok = v.(bool)
	case ir.KindString:
		// Strings are stored NUL-terminated.
		s, isString := v.(string)
		ok = isString && !strings.ContainsRune(s, 0)
	case ir.KindInt32:
		n, isInt := asInt64(v)
		ok = isInt && n >= math.MinInt32 && n <= math.MaxInt32
	case ir.KindFloat64:
		_, ok = asFloat64(v)
	}
	if ok {
		return nil
	}
	return &CompileError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("cannot store %T value %v in field %s.%s of type %s", v, v, rec.Name, f.Name, ctx.TypeName(f.Type)),
		Subject: f.Name,
	}
}

// constant emits v as an IR constant of f's type. v has passed checkConst.
func constant(ctx *ir.Context, f RecordField, v any) ir.ValueID {
	typ, _ := ctx.Type(f.Type)
	switch typ.Kind {
	case ir.KindBool:
		return ctx.ConstBool(v.(bool))
	case ir.KindString:
		return ctx.ConstString(v.(string))
	case ir.KindInt32:
		n, _ := asInt64(v)
		return ctx.ConstInt32(int32(n))
	default:
		x, _ := asFloat64(v)
		return ctx.ConstFloat64(x)
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint64:
		return int64(n), n <= math.MaxInt64
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
