// Package semtable implements the Table Emitter (spec.md section 4.3):
// consolidation of every instruction's flattened semantic stream into the
// three parallel tables the interpreter consumes at run time.
package semtable

import (
	"github.com/dc-lift/dcsema/internal/constpool"
	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/flatten"
)

// Tables is the emitted triple of spec.md section 3.3, held together
// because all three are read by the interpreter against the same build.
type Tables struct {
	// OpcodeToSemaIdx is indexed by target instruction enum; a zero
	// entry means "no semantics defined", pointing at the dummy
	// sequence reserved at SemanticsArray offset 0.
	OpcodeToSemaIdx []uint32 `msgpack:"opcode_to_sema_idx"`
	// SemanticsArray is the concatenation of every instruction's
	// flattened stream, in the encoding flatten.Stream.Encode produces.
	SemanticsArray []uint32 `msgpack:"semantics_array"`
	// ConstantArray is the constant pool's contents, index 0 reserved.
	ConstantArray []uint64 `msgpack:"constant_array"`
}

// Builder accumulates per-instruction streams into a Tables. The zero
// value is not usable; construct with NewBuilder.
type Builder struct {
	sema    []uint32
	offsets map[uint32]uint32
	maxEnum uint32
	pool    *constpool.Pool
}

// NewBuilder returns a Builder that will draw ConstantArray from pool and
// has already reserved SemanticsArray offset 0 for the dummy
// END_OF_INSTRUCTION sequence (spec.md SUPPLEMENTED FEATURES item 1: this
// entry is registered unconditionally, not only as a fallback).
func NewBuilder(pool *constpool.Pool) *Builder {
	return &Builder{
		sema:    []uint32{uint32(dcins.EndOfInstruction)},
		offsets: make(map[uint32]uint32),
		pool:    pool,
	}
}

// Add registers enum's flattened stream. A nil stream (no pattern, no
// explicit Semantics, or isCodeGenOnly) leaves OpcodeToSemaIdx[enum] at
// its zero value, which Build resolves to the dummy offset implicitly.
func (b *Builder) Add(enum uint32, stream *flatten.Stream) {
	if enum > b.maxEnum {
		b.maxEnum = enum
	}
	if stream == nil {
		return
	}
	offset := uint32(len(b.sema))
	b.sema = append(b.sema, stream.Encode()...)
	b.offsets[enum] = offset
}

// Build finalizes the three tables. OpcodeToSemaIdx is sized to cover
// every enum passed to Add, including enums that resolved to no stream.
func (b *Builder) Build() Tables {
	idx := make([]uint32, b.maxEnum+1)
	for enum, off := range b.offsets {
		idx[enum] = off
	}
	return Tables{
		OpcodeToSemaIdx: idx,
		SemanticsArray:  b.sema,
		ConstantArray:   b.pool.Values(),
	}
}
