package jit

// Results of Function.Call use the WebAssembly encoding: 32-bit values
// occupy the low bits of the uint64.

// DecodeI32 decodes a raw int32 result.
func DecodeI32(raw uint64) int32 {
	return int32(uint32(raw))
}

// DecodeU32 decodes a raw pointer result.
func DecodeU32(raw uint64) uint32 {
	return uint32(raw)
}
