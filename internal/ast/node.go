package ast

import (
	"strconv"
	"strings"
)

// Node is a sealed interface over the expression variants.
// Only IntLiteral, Operation, Unary and Binary implement it.
type Node interface {
	node()
}

// IntLiteral is a 32-bit signed integer constant.
type IntLiteral struct {
	Value int32
}

func (IntLiteral) node() {}

// Operation is an operator token applied to an ordered operand list.
// The operand count is not validated; see Unary and Binary.
type Operation struct {
	Token    string
	Operands []Node
}

func (Operation) node() {}

// Unary is an operator applied to exactly one operand.
type Unary struct {
	Token   string
	Operand Node
}

func (Unary) node() {}

// Binary is an operator applied to exactly two operands.
type Binary struct {
	Token string
	Left  Node
	Right Node
}

func (Binary) node() {}

// Arity is the operand count class of an operator.
type Arity int

const (
	ArityUnary  Arity = 1
	ArityBinary Arity = 2
)

func (a Arity) String() string {
	switch a {
	case ArityUnary:
		return "unary"
	case ArityBinary:
		return "binary"
	default:
		return "arity(" + strconv.Itoa(int(a)) + ")"
	}
}

// Int is shorthand for IntLiteral.
func Int(v int32) IntLiteral {
	return IntLiteral{Value: v}
}

// Op builds a generic Operation.
// Example: Op("+", Int(1), Op("-", Int(2)))
func Op(token string, operands ...Node) Operation {
	return Operation{Token: token, Operands: operands}
}

// Format renders n in prefix form, e.g. "(+ 1 (- 2))".
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case IntLiteral:
		b.WriteString(strconv.FormatInt(int64(n.Value), 10))
	case Operation:
		writeOp(b, n.Token, n.Operands...)
	case Unary:
		writeOp(b, n.Token, n.Operand)
	case Binary:
		writeOp(b, n.Token, n.Left, n.Right)
	case nil:
		b.WriteString("<nil>")
	}
}

func writeOp(b *strings.Builder, token string, operands ...Node) {
	b.WriteByte('(')
	b.WriteString(token)
	for _, operand := range operands {
		b.WriteByte(' ')
		format(b, operand)
	}
	b.WriteByte(')')
}
