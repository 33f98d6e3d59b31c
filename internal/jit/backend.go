package jit

import (
	"context"

	"github.com/roach88/jitexpr/internal/ir"
)

// Backend produces compilation contexts.
type Backend interface {
	// Name identifies the backend in logs, errors and the session journal.
	Name() string

	// Acquire creates a new, exclusively owned compilation context.
	Acquire(ctx context.Context) (Context, error)
}

// Context is one compilation session's backend state.
type Context interface {
	// IR returns the builder that code is emitted into.
	IR() *ir.Context

	// Layout returns the data layout compiled code uses for records.
	Layout() ir.DataLayout

	// Compile turns the IR built so far into executable code.
	Compile(ctx context.Context) (Result, error)

	// Release frees the context and everything it owns. Results compiled
	// from it become unusable.
	Release(ctx context.Context) error
}

// Result is compiled, executable code.
type Result interface {
	// Lookup returns the exported function called name.
	Lookup(name string) (Function, error)

	// Memory returns the memory that pointers returned by functions refer to.
	Memory() Memory

	// Release frees the compiled code.
	Release(ctx context.Context) error
}

// Function is an invocable compiled entry point.
// Results are returned in their raw 64-bit encoding.
type Function interface {
	Call(ctx context.Context, args ...uint64) ([]uint64, error)
}

// Memory is read access to the address space of a Result.
type Memory interface {
	Size() uint32
	ReadByte(offset uint32) (byte, bool)
	ReadUint32Le(offset uint32) (uint32, bool)
	ReadFloat64Le(offset uint32) (float64, bool)
	Read(offset, byteCount uint32) ([]byte, bool)
}
