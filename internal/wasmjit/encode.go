package wasmjit

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Section IDs, in the order they must appear.
const (
	secType     byte = 1
	secFunction byte = 3
	secMemory   byte = 5
	secExport   byte = 7
	secCode     byte = 10
	secData     byte = 11
)

const (
	valI32 byte = 0x7F
	valF64 byte = 0x7C

	funcType byte = 0x60

	exportFunc   byte = 0x00
	exportMemory byte = 0x02
)

// Opcodes used by the lowering.
const (
	opReturn   byte = 0x0F
	opEnd      byte = 0x0B
	opI32Const byte = 0x41
	opF64Const byte = 0x44

	opI32Load   byte = 0x28
	opF64Load   byte = 0x2B
	opI32Load8U byte = 0x2D
	opI32Store  byte = 0x36
	opF64Store  byte = 0x39
	opI32Store8 byte = 0x3A

	opI32Add  byte = 0x6A
	opI32Sub  byte = 0x6B
	opI32Mul  byte = 0x6C
	opI32DivS byte = 0x6D

	opF64Neg byte = 0x9A
	opF64Add byte = 0xA0
	opF64Sub byte = 0xA1
	opF64Mul byte = 0xA2
	opF64Div byte = 0xA3
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// encoder accumulates bytes with the LEB128 helpers wasm needs.
type encoder struct {
	bytes.Buffer
}

func (e *encoder) u32(v uint32) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func (e *encoder) s32(v int32) {
	x := int64(v)
	for {
		b := byte(x & 0x7F)
		x >>= 7
		done := (x == 0 && b&0x40 == 0) || (x == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		e.WriteByte(b)
		if done {
			return
		}
	}
}

func (e *encoder) f64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	e.Write(buf[:])
}

func (e *encoder) name(s string) {
	e.u32(uint32(len(s)))
	e.WriteString(s)
}

func (e *encoder) i32Const(v int32) {
	e.WriteByte(opI32Const)
	e.s32(v)
}

func (e *encoder) f64Const(v float64) {
	e.WriteByte(opF64Const)
	e.f64(v)
}

// memarg writes a load/store immediate: log2 alignment, then offset.
func (e *encoder) memarg(alignLog2, offset uint32) {
	e.u32(alignLog2)
	e.u32(offset)
}

// section appends a section with a size prefix. Empty payloads are skipped.
func (e *encoder) section(id byte, payload []byte) {
	if len(payload) == 0 {
		return
	}
	e.WriteByte(id)
	e.u32(uint32(len(payload)))
	e.Write(payload)
}
