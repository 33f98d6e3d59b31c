package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/jitexpr/internal/ast"
	"github.com/roach88/jitexpr/internal/ir"
)

// EntryBlock is the name given to the single block of compiled functions.
const EntryBlock = "entry"

// Value is a lowered expression: an IR value and its type.
type Value struct {
	ID   ir.ValueID
	Type TypeHandle
}

// step is a checked expression node: operators resolved, arity fixed.
type step struct {
	literal  bool
	value    int32
	op       ir.OperatorKind
	operands []*step
}

// Compile lowers node into an int32 IR value in env's context.
//
// The tree is checked completely before any IR is emitted, so on error the
// context is left untouched. Binary operands are lowered left before right.
func Compile(node ast.Node, env *TypeEnvironment) (Value, error) {
	s, err := check(node, "$")
	if err != nil {
		return Value{}, err
	}
	return lower(env, s)
}

// CompileFunction wraps node in an exported no-argument function named
// name that returns its int32 value.
func CompileFunction(env *TypeEnvironment, name string, node ast.Node) (ir.FuncID, error) {
	s, err := check(node, "$")
	if err != nil {
		return ir.NoFunc, err
	}

	ctx := env.IR()
	fn, err := ctx.NewFunction(name, env.Int32(), true)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile function %q: %w", name, err)
	}
	block, err := ctx.NewBlock(fn, EntryBlock)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile function %q: %w", name, err)
	}
	v, err := lower(env, s)
	if err != nil {
		return ir.NoFunc, fmt.Errorf("compile function %q: %w", name, err)
	}
	if err := ctx.Return(block, v.ID); err != nil {
		return ir.NoFunc, fmt.Errorf("compile function %q: %w", name, err)
	}
	return fn, nil
}

func check(node ast.Node, path string) (*step, error) {
	switch n := node.(type) {
	case ast.IntLiteral:
		return &step{literal: true, value: n.Value}, nil
	case ast.Operation:
		switch len(n.Operands) {
		case 1:
			return checkOp(n.Token, ast.ArityUnary, path, n.Operands[0])
		case 2:
			return checkOp(n.Token, ast.ArityBinary, path, n.Operands[0], n.Operands[1])
		default:
			return nil, malformed(path, "operation %q has %d operands, want 1 or 2", n.Token, len(n.Operands))
		}
	case ast.Unary:
		return checkOp(n.Token, ast.ArityUnary, path, n.Operand)
	case ast.Binary:
		return checkOp(n.Token, ast.ArityBinary, path, n.Left, n.Right)
	case nil:
		return nil, malformed(path, "missing expression")
	default:
		return nil, malformed(path, "unsupported node type %T", node)
	}
}

func checkOp(token string, arity ast.Arity, path string, operands ...ast.Node) (*step, error) {
	op, err := ResolveOperator(token, arity)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	s := &step{op: op, operands: make([]*step, len(operands))}
	for i, operand := range operands {
		child, err := check(operand, fmt.Sprintf("%s[%d]", path, i+1))
		if err != nil {
			return nil, err
		}
		s.operands[i] = child
	}
	return s, nil
}

func lower(env *TypeEnvironment, s *step) (Value, error) {
	ctx := env.IR()
	i32 := env.Int32()

	if s.literal {
		return Value{ID: ctx.ConstInt32(s.value), Type: i32}, nil
	}

	operands := make([]ir.ValueID, len(s.operands))
	for i, child := range s.operands {
		v, err := lower(env, child)
		if err != nil {
			return Value{}, err
		}
		operands[i] = v.ID
	}

	var (
		id  ir.ValueID
		err error
	)
	if len(operands) == 1 {
		id, err = ctx.Unary(s.op, i32, operands[0])
	} else {
		id, err = ctx.Binary(s.op, i32, operands[0], operands[1])
	}
	if err != nil {
		return Value{}, fmt.Errorf("lower %s: %w", s.op, err)
	}
	return Value{ID: id, Type: i32}, nil
}
