package dcsema

import "github.com/dc-lift/dcsema/internal/ir"

// RegisterLayout is the build-time description SwitchToModule uses to
// establish the register-set type (spec.md section 4.6): the full set of
// architectural registers this target's register-set aggregate holds,
// each register's IR type, and its byte offset within the aggregate the
// host passes a pointer to.
type RegisterLayout struct {
	Regs    []uint32
	Types   map[uint32]ir.Type
	Offsets map[uint32]int32
}

// TypeOf returns the IR type of reg, defaulting to a 64-bit integer for
// a register the layout didn't explicitly type.
func (l RegisterLayout) TypeOf(reg uint32) ir.Type {
	if t, ok := l.Types[reg]; ok {
		return t
	}
	return ir.TypeI64
}

// RegisterSet is the runtime model of spec.md section 4.4: one typed IR
// slot and current-value cache per physical register, scoped to a single
// Function translation and never outliving it (spec.md section 5).
//
// initRegSet/finiRegSet (spec.md section 4.4) are realized as inline
// prelude/epilogue code emitted by EnterFunction/Finalize rather than as
// separately-callable shared IR functions: the ir package models one
// result value per instruction, with no aggregate-return support, which
// is exactly what a shared multi-register-returning function would need.
// The ABI-boundary role is preserved — these are still the only two
// places the register-set aggregate pointer is read or written — just
// inlined into each translated function instead of factored into a
// second callee.
type RegisterSet struct {
	b      *ir.Builder
	layout RegisterLayout

	slot    map[uint32]ir.Value // per-register Alloca, valid for the function's lifetime
	curVals map[uint32]ir.Value // materialized in the current block; cleared on EnterBlock
	dirty   map[uint32]bool     // SetReg since the last FlushBlock
}

// NewRegisterSet constructs a RegisterSet sharing b with the Translator
// that owns it, so slot/load/store instructions land wherever b's
// current block is set to at the time of the call.
func NewRegisterSet(b *ir.Builder, layout RegisterLayout) *RegisterSet {
	return &RegisterSet{
		b:       b,
		layout:  layout,
		slot:    make(map[uint32]ir.Value),
		curVals: make(map[uint32]ir.Value),
		dirty:   make(map[uint32]bool),
	}
}

// EnterFunction is initRegSet: it allocates every register's slot and
// seeds it from ctx, the register-set aggregate pointer that is this
// function's sole formal parameter. Callers run this once, in the
// function's entry block.
func (rs *RegisterSet) EnterFunction(ctx ir.Value) {
	for _, reg := range rs.layout.Regs {
		typ := rs.layout.TypeOf(reg)
		off := rs.layout.Offsets[reg]

		slot := rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsAlloca(typ)
		})
		rs.slot[reg] = slot

		initial := rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsLoad(typ, ctx, off)
		})
		rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsStore(initial, slot, 0)
		})
	}
}

// EnterBlock resets the materialization cache: spec.md section 4.4's
// "if not yet materialized in the current block" is scoped per block,
// not per function, since register state crosses blocks through the
// slots, not through cached values.
func (rs *RegisterSet) EnterBlock() {
	rs.curVals = make(map[uint32]ir.Value)
}

// GetReg returns the current IR value for reg, loading from its slot on
// first access within the current block.
func (rs *RegisterSet) GetReg(reg uint32) ir.Value {
	if v, ok := rs.curVals[reg]; ok {
		return v
	}
	v := rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsLoad(rs.layout.TypeOf(reg), rs.slot[reg], 0)
	})
	rs.curVals[reg] = v
	return v
}

// SetReg updates the current IR value for reg. The store-back to its
// slot is deferred to the next FlushBlock, coalescing repeated writes to
// the same register within a block into a single store.
func (rs *RegisterSet) SetReg(reg uint32, v ir.Value) {
	rs.curVals[reg] = v
	rs.dirty[reg] = true
}

// FlushBlock stores every register SetReg touched since the last
// FlushBlock back to its slot, then clears the dirty set. Spec.md
// section 4.4's invariant — every modified slot stored back exactly once
// per function-exit edge — holds because FlushBlock runs at
// FinalizeBasicBlock (and, for a translated return, just before its jump
// to the exit block), before any successor or the exit block runs; a
// second flush of the same block finds the dirty set empty and stores
// nothing.
func (rs *RegisterSet) FlushBlock() {
	for reg := range rs.dirty {
		v := rs.curVals[reg]
		slot := rs.slot[reg]
		rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsStore(v, slot, 0)
		})
	}
	rs.dirty = make(map[uint32]bool)
}

// Finalize is finiRegSet: it writes every register's final value back to
// ctx. Callers run this once, in the exit block, after FlushBlock.
func (rs *RegisterSet) Finalize(ctx ir.Value) {
	for _, reg := range rs.layout.Regs {
		v := rs.GetReg(reg)
		off := rs.layout.Offsets[reg]
		rs.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsStore(v, ctx, off)
		})
	}
}
