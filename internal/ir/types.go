package ir

import "fmt"

// Kind classifies a type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindFloat64
	KindString
	KindPointer
	KindStruct
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt32:   "int32",
	KindFloat64: "float64",
	KindString:  "string",
	KindPointer: "pointer",
	KindStruct:  "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsPrimitive reports whether k is one of the built-in scalar kinds
// returned by Context.Primitive.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindInt32, KindFloat64, KindString:
		return true
	}
	return false
}

// IsArithmetic reports whether arithmetic operators accept k.
func (k Kind) IsArithmetic() bool {
	return k == KindInt32 || k == KindFloat64
}

// Type describes a registered type.
type Type struct {
	Kind   Kind
	Name   string    // struct name; empty for primitives and pointers
	Elem   TypeID    // pointee for KindPointer
	Fields []FieldID // declaration order for KindStruct
}

// Field describes a struct field.
type Field struct {
	Name  string
	Type  TypeID
	Owner TypeID // struct the field belongs to; NoType until NewStruct
}
