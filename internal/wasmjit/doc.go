// Package wasmjit is a jit.Backend that lowers IR to a WebAssembly module
// and compiles it to native code with wazero.
//
// Memory model: every function local lives at a fixed address in linear
// memory, string constants are NUL-terminated bytes in a data segment, and
// addresses below 8 are never handed out, so a pointer of 0 is never a
// valid object. Returning the address of a local is well defined and
// calling the same function twice yields the same pointer.
//
// Data layout is ir.Wasm32: pointers and strings are 4 bytes.
package wasmjit
