// Package compiler lowers expression trees and record declarations into
// IR.
//
// Three components cooperate:
//   - ResolveOperator maps an operator token and arity to an
//     ir.OperatorKind
//   - TypeEnvironment registers primitive and record types once per
//     session and keeps their handles and field accessors
//   - Compile walks an ast.Node and emits int32 IR values
//
// Every failure is fatal for the expression being compiled: Compile checks
// the whole tree before emitting anything, so a rejected expression leaves
// no IR behind.
package compiler
