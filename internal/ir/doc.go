// Package ir provides the backend-neutral intermediate representation
// that the expression compiler builds and a JIT backend consumes.
//
// A Context owns every type, field, value, lvalue, function and block
// created during one compilation session. Callers only ever hold opaque
// IDs into those tables; identity is resolved once by the Context instead
// of threading individually managed pointers through the compiler.
//
// This package imports nothing internal. All other internal packages that
// touch IR import ir; ir stays the foundational layer.
//
// Key constraints:
//   - Zero is the invalid sentinel for every ID type
//   - Aggregate (struct) values are never loaded, assigned whole or
//     returned by value; functions return pointers to them
//   - Function bodies are straight-line: one block ending in a return
//   - A Context is not safe for concurrent use
package ir
