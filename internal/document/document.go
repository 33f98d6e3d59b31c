package document

import (
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/compiler"
)

// DefaultPath is where documents are read from when no path is given.
const DefaultPath = "./structure.json"

// Document is a loaded expression document.
type Document struct {
	// Name is the file the document was read from.
	Name string

	// Format is the encoding the document was decoded from.
	Format Format

	// Expression is the expression tree, or nil if the document has none.
	Expression ast.Node

	// Records are the record declarations, in document order.
	Records []ast.RecordDecl

	// Construct describes a record value to build, or nil.
	Construct *Construct
}

// Construct names a record and the constant values of its fields.
type Construct struct {
	Record string
	Values []FieldValue // sorted by field name
}

// FieldValue is one constant in a Construct.
type FieldValue struct {
	Field string
	Value any // int64, float64, string or bool
}

// Load reads the document at path, choosing the decoder by extension.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}
	return Parse(data, format, path)
}

// Parse decodes data in the given format. name is used in positions.
func Parse(data []byte, format Format, name string) (*Document, error) {
	src, err := decode(data, format, name)
	if err != nil {
		return nil, err
	}
	doc := &Document{Name: name, Format: format}
	b := builder{src: src}

	obj, ok := src.root.(map[string]any)
	if !ok {
		doc.Expression, err = b.node(src.root, "$")
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	for _, key := range sortedKeys(obj) {
		switch key {
		case "expression", "records", "construct":
		default:
			return nil, b.fail(ErrCodeUnknownKey, "$."+key, "unknown key %q (want expression, records or construct)", key)
		}
	}
	if len(obj) == 0 {
		return nil, b.fail(ErrCodeEmpty, "$", "document declares nothing")
	}

	if v, ok := obj["expression"]; ok {
		if doc.Expression, err = b.node(v, "$.expression"); err != nil {
			return nil, err
		}
	}
	if v, ok := obj["records"]; ok {
		if doc.Records, err = b.records(v, "$.records"); err != nil {
			return nil, err
		}
	}
	if v, ok := obj["construct"]; ok {
		if doc.Construct, err = b.construct(v, "$.construct"); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

type builder struct {
	src *source
}

func (b builder) fail(code ErrorCode, path, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Message: fmt.Sprintf(format, args...), Path: path, Pos: b.src.at(path)}
}

// node converts a tree value: integers become literals, arrays become
// operations.
func (b builder) node(v any, path string) (ast.Node, error) {
	switch x := v.(type) {
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, b.fail(ErrCodeOutOfRange, path, "%d does not fit in int32", x)
		}
		return ast.Int(int32(x)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, b.fail(ErrCodeInvalidNode, path, "%v is not an integer", x)
		}
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, b.fail(ErrCodeOutOfRange, path, "%v does not fit in int32", x)
		}
		return ast.Int(int32(x)), nil
	case []any:
		if len(x) == 0 {
			return nil, b.fail(ErrCodeInvalidNode, path, "empty operation")
		}
		token, ok := x[0].(string)
		if !ok {
			return nil, b.fail(ErrCodeInvalidNode, path+"[0]", "operator token must be a string, got %s", describe(x[0]))
		}
		operands := make([]ast.Node, len(x)-1)
		for i, item := range x[1:] {
			n, err := b.node(item, fmt.Sprintf("%s[%d]", path, i+1))
			if err != nil {
				return nil, err
			}
			operands[i] = n
		}
		return ast.Op(token, operands...), nil
	}
	return nil, b.fail(ErrCodeInvalidNode, path, "expected an integer or an operation, got %s", describe(v))
}

func (b builder) records(v any, path string) ([]ast.RecordDecl, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, b.fail(ErrCodeInvalidRecord, path, "records must be a list, got %s", describe(v))
	}
	out := make([]ast.RecordDecl, len(list))
	for i, item := range list {
		p := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, b.fail(ErrCodeInvalidRecord, p, "record must be an object, got %s", describe(item))
		}
		name, err := b.str(obj, "name", p)
		if err != nil {
			return nil, err
		}
		rawFields, ok := obj["fields"].([]any)
		if !ok {
			return nil, b.fail(ErrCodeInvalidRecord, p+".fields", "record %q needs a list of fields", name)
		}
		decl := ast.RecordDecl{Name: name, Fields: make([]ast.FieldDecl, len(rawFields))}
		for j, rf := range rawFields {
			fp := fmt.Sprintf("%s.fields[%d]", p, j)
			fobj, ok := rf.(map[string]any)
			if !ok {
				return nil, b.fail(ErrCodeInvalidRecord, fp, "field must be an object, got %s", describe(rf))
			}
			fname, err := b.str(fobj, "name", fp)
			if err != nil {
				return nil, err
			}
			ftype, err := b.str(fobj, "type", fp)
			if err != nil {
				return nil, err
			}
			decl.Fields[j] = ast.FieldDecl{Name: fname, Type: ftype}
		}
		out[i] = decl
	}
	return out, nil
}

func (b builder) construct(v any, path string) (*Construct, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, b.fail(ErrCodeInvalidRecord, path, "construct must be an object, got %s", describe(v))
	}
	c := &Construct{}
	if _, ok := obj["record"]; ok {
		name, err := b.str(obj, "record", path)
		if err != nil {
			return nil, err
		}
		c.Record = name
	}
	values, ok := obj["values"]
	if !ok {
		return c, nil
	}
	vobj, ok := values.(map[string]any)
	if !ok {
		return nil, b.fail(ErrCodeInvalidRecord, path+".values", "values must be an object, got %s", describe(values))
	}
	for _, field := range sortedKeys(vobj) {
		switch val := vobj[field].(type) {
		case int64, float64, string, bool:
			c.Values = append(c.Values, FieldValue{Field: field, Value: val})
		default:
			return nil, b.fail(ErrCodeInvalidRecord, path+".values."+field, "field values must be constants, got %s", describe(val))
		}
	}
	return c, nil
}

func (b builder) str(obj map[string]any, key, path string) (string, error) {
	s, ok := obj[key].(string)
	if !ok || s == "" {
		return "", b.fail(ErrCodeInvalidRecord, path+"."+key, "%s must be a non-empty string", key)
	}
	return s, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case int64, float64:
		return "a number"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	}
	return fmt.Sprintf("%T", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Inits converts the values into compiler field initializers.
func (c *Construct) Inits() []compiler.FieldInit {
	out := make([]compiler.FieldInit, len(c.Values))
	for i, v := range c.Values {
		out[i] = compiler.FieldInit{Field: v.Field, Value: v.Value}
	}
	return out
}
