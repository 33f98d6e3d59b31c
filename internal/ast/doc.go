// Package ast defines the expression syntax tree consumed by the compiler.
//
// Documents decode into the generic Operation shape (token followed by any
// number of operands). The compiler narrows an Operation into the explicit
// Unary or Binary variant, so arity is a structural property of the tree
// rather than something recomputed from slice lengths at every use.
//
// Nodes are immutable once built and each node exclusively owns its
// operand subtrees.
package ast
