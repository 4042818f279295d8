package dcsema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dc-lift/dcsema/internal/ir"
)

func newTestFunction() (*ir.Builder, *ir.Function, *ir.BasicBlock) {
	mod := ir.NewModule("m")
	fn := mod.DeclareFunction("f", ir.Signature{Params: []ir.Type{ir.TypePtr}}, false)
	b := ir.NewBuilder()
	bb := fn.EntryBlock()
	b.SetCurrentBlock(bb)
	return b, fn, bb
}

func testLayout() RegisterLayout {
	return RegisterLayout{
		Regs:    []uint32{1, 2},
		Types:   map[uint32]ir.Type{1: ir.TypeI64, 2: ir.TypeI64},
		Offsets: map[uint32]int32{1: 0, 2: 8},
	}
}

func countOp(bb *ir.BasicBlock, op ir.Opcode) int {
	n := 0
	for _, instr := range bb.Instructions() {
		if instr.Opcode() == op {
			n++
		}
	}
	return n
}

func TestEnterFunctionSeedsEverySlotFromCtx(t *testing.T) {
	b, fn, bb := newTestFunction()
	ctx := fn.Param(0)

	rs := NewRegisterSet(b, testLayout())
	rs.EnterFunction(ctx)

	require.Equal(t, 2, countOp(bb, ir.OpcodeAlloca))
	require.Equal(t, 2, countOp(bb, ir.OpcodeLoad))
	require.Equal(t, 2, countOp(bb, ir.OpcodeStore))
}

func TestGetRegCachesWithinBlock(t *testing.T) {
	b, fn, bb := newTestFunction()
	ctx := fn.Param(0)

	rs := NewRegisterSet(b, testLayout())
	rs.EnterFunction(ctx)
	rs.EnterBlock()

	loadsBefore := countOp(bb, ir.OpcodeLoad)
	rs.GetReg(1)
	rs.GetReg(1)
	rs.GetReg(1)
	require.Equal(t, loadsBefore+1, countOp(bb, ir.OpcodeLoad))
}

func TestSetRegDefersStoreUntilFlush(t *testing.T) {
	b, fn, bb := newTestFunction()
	ctx := fn.Param(0)

	rs := NewRegisterSet(b, testLayout())
	rs.EnterFunction(ctx)
	rs.EnterBlock()

	storesBefore := countOp(bb, ir.OpcodeStore)
	v := rs.GetReg(1)
	rs.SetReg(1, v)
	rs.SetReg(1, v) // repeated write to the same register coalesces into one store
	require.Equal(t, storesBefore, countOp(bb, ir.OpcodeStore))

	rs.FlushBlock()
	require.Equal(t, storesBefore+1, countOp(bb, ir.OpcodeStore))
}

func TestFinalizeWritesEveryRegisterBackToCtx(t *testing.T) {
	b, fn, bb := newTestFunction()
	ctx := fn.Param(0)

	rs := NewRegisterSet(b, testLayout())
	rs.EnterFunction(ctx)
	rs.EnterBlock()

	storesBefore := countOp(bb, ir.OpcodeStore)
	rs.Finalize(ctx)
	require.Equal(t, storesBefore+len(testLayout().Regs), countOp(bb, ir.OpcodeStore))
}

func TestTypeOfDefaultsToI64(t *testing.T) {
	layout := RegisterLayout{Regs: []uint32{9}}
	require.Equal(t, ir.TypeI64, layout.TypeOf(9))
}
