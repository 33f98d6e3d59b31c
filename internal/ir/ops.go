package ir

import "fmt"

// OperatorKind is the closed set of arithmetic operations.
type OperatorKind uint8

const (
	OpInvalid OperatorKind = iota
	OpNegate
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

var operatorNames = [...]string{
	OpInvalid:  "invalid",
	OpNegate:   "negate",
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpMultiply: "multiply",
	OpDivide:   "divide",
}

func (op OperatorKind) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("operator(%d)", uint8(op))
}

// Arity returns the operand count of op, or 0 for an invalid operator.
func (op OperatorKind) Arity() int {
	switch op {
	case OpNegate:
		return 1
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return 2
	default:
		return 0
	}
}
