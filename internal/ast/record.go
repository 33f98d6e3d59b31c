package ast

// RecordDecl declares a named record type with ordered fields.
// Field order is layout order.
type RecordDecl struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []FieldDecl `json:"fields" yaml:"fields"`
}

// FieldDecl names one record field and its type.
// Type is a type name: bool, int32, float64, string, a previously
// declared record name, or any of those prefixed with "*" for a pointer.
type FieldDecl struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}
