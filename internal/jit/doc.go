// Package jit defines the contract between the expression compiler and a
// native code generation backend.
//
// A Backend hands out exclusively owned Contexts. Each Context carries its
// own IR builder (see package ir); once the IR is complete, Compile turns it
// into a Result from which exported functions are looked up by name and
// invoked. Contexts and Results must each be released exactly once.
//
//	jctx, err := backend.Acquire(ctx)
//	defer jctx.Release(ctx)
//	// build IR in jctx.IR()
//	res, err := jctx.Compile(ctx)
//	defer res.Release(ctx)
//	fn, err := res.Lookup("entry")
package jit
