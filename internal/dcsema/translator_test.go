package dcsema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dc-lift/dcsema/internal/constpool"
	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/diag"
	"github.com/dc-lift/dcsema/internal/flatten"
	"github.com/dc-lift/dcsema/internal/ir"
	"github.com/dc-lift/dcsema/internal/pattern"
	"github.com/dc-lift/dcsema/internal/semtable"
)

func threeRegLayout() RegisterLayout {
	return RegisterLayout{
		Regs:    []uint32{10, 11, 12},
		Types:   map[uint32]ir.Type{10: ir.TypeI64, 11: ir.TypeI64, 12: ir.TypeI64},
		Offsets: map[uint32]int32{10: 0, 11: 8, 12: 16},
	}
}

// addTables builds a single-opcode table set for `d = add a, b`, named
// operands at MI operand indices 0 (d), 1 (a), 2 (b).
func addTables(t *testing.T) semtable.Tables {
	inst := &pattern.Inst{
		EnumName: "ADDrr",
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
			{Name: "a", Kind: pattern.OperandRegisterClass, MIOperandNo: 1, Type: ir.TypeI64},
			{Name: "b", Kind: pattern.OperandRegisterClass, MIOperandNo: 2, Type: ir.TypeI64},
		},
	}
	reg := pattern.NewRegistry()
	reg.Define("add", ir.OpcodeAdd, 1)

	tree := &pattern.Node{
		Operator: "set",
		Children: []*pattern.Node{
			{Name: "d"},
			{Operator: "add", Types: []ir.Type{ir.TypeI64}, Children: []*pattern.Node{{Name: "a"}, {Name: "b"}}},
		},
	}

	pool := constpool.New()
	stream, err := flatten.Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)
	require.NotNil(t, stream)

	b := semtable.NewBuilder(pool)
	const addOpcode = 1
	b.Add(addOpcode, stream)
	return b.Build()
}

func TestTranslateInstEmitsAddAndWritesBack(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})

	mi := MI{Address: 0x1000, Opcode: 1, Operands: []MIOperand{
		{IsReg: true, Reg: 10}, {IsReg: true, Reg: 11}, {IsReg: true, Reg: 12},
	}}
	bb := &MCBasicBlock{StartAddress: 0x1000, Insts: []MI{mi}}
	mcfn := &MCFunction{Name: "f", EntryAddress: 0x1000, Blocks: []*MCBasicBlock{bb}}

	tr.SwitchToModule("m", []*MCFunction{mcfn}, nil)
	tr.SwitchToFunction(mcfn)
	tr.SwitchToBasicBlock(bb)

	_, err := tr.TranslateInst(&mi)
	require.NoError(t, err)

	tr.FinalizeBasicBlock()
	fn := tr.FinalizeFunction()
	require.NotNil(t, fn)

	mod := tr.FinalizeModule()
	require.True(t, mod.Finalized())

	addCount := 0
	var addInstr ir.Value
	for _, blk := range fn.Blocks() {
		for _, instr := range blk.Instructions() {
			if instr.Opcode() == ir.OpcodeAdd {
				addCount++
				addInstr = instr
			}
		}
	}
	require.Equal(t, 1, addCount)

	// PUT_RC's deferred write of the add result is flushed to d's slot
	// exactly once, by FinalizeBasicBlock.
	writeBacks := 0
	for _, blk := range fn.Blocks() {
		for _, instr := range blk.Instructions() {
			if x, _ := instr.Args(); instr.Opcode() == ir.OpcodeStore && x == addInstr {
				writeBacks++
			}
		}
	}
	require.Equal(t, 1, writeBacks)
}

func TestFinalizeBasicBlockSynthesizesFallthrough(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})

	bb1 := &MCBasicBlock{StartAddress: 0x1000}
	addr2 := uint64(0x1010)
	bb1.Fallthrough = &addr2
	bb2 := &MCBasicBlock{StartAddress: 0x1010}
	mcfn := &MCFunction{Name: "f", EntryAddress: 0x1000, Blocks: []*MCBasicBlock{bb1, bb2}}

	tr.SwitchToModule("m", []*MCFunction{mcfn}, nil)
	tr.SwitchToFunction(mcfn)
	tr.SwitchToBasicBlock(bb1)
	tr.FinalizeBasicBlock()

	term := tr.bb.Terminator()
	require.NotNil(t, term)
	require.Equal(t, ir.OpcodeJump, term.Opcode())
	require.Equal(t, uint64(0x1010), term.BranchTarget().StartAddress())
}

func TestFinalizeBasicBlockSynthesizesUnreachableWithoutFallthrough(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})

	bb := &MCBasicBlock{StartAddress: 0x1000}
	mcfn := &MCFunction{Name: "f", EntryAddress: 0x1000, Blocks: []*MCBasicBlock{bb}}

	tr.SwitchToModule("m", []*MCFunction{mcfn}, nil)
	tr.SwitchToFunction(mcfn)
	tr.SwitchToBasicBlock(bb)
	tr.FinalizeBasicBlock()

	term := tr.bb.Terminator()
	require.NotNil(t, term)
	require.Equal(t, ir.OpcodeUnreachable, term.Opcode())
}

func TestSwitchToFunctionFirstWinsOnDuplicateBlockAddress(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})

	bb1 := &MCBasicBlock{StartAddress: 0x2000}
	bb2 := &MCBasicBlock{StartAddress: 0x2000} // duplicate start address
	mcfn := &MCFunction{Name: "f", EntryAddress: 0x2000, Blocks: []*MCBasicBlock{bb1, bb2}}

	tr.SwitchToModule("m", []*MCFunction{mcfn}, nil)
	tr.SwitchToFunction(mcfn)

	// Exactly one block registered at that address despite two MCBasicBlocks.
	blockCount := 0
	for _, blk := range tr.fn.Blocks() {
		if blk.StartAddress() == 0x2000 {
			blockCount++
		}
	}
	require.Equal(t, 1, blockCount)
}

func TestGetFunctionMemoizesExternalWrapper(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})
	tr.SwitchToModule("m", nil, map[uint64]string{0xdead: "libc_exit"})

	w1 := tr.getFunction(0xdead)
	w2 := tr.getFunction(0xdead)
	require.Same(t, w1, w2)
	require.Equal(t, "fn_dead", w1.Name())
}

func TestGetOrCreateMainFunctionIsIdempotent(t *testing.T) {
	tables := addTables(t)
	tr := New(tables, threeRegLayout(), TargetHooks{})
	tr.SwitchToModule("m", nil, nil)

	entry := tr.mod.DeclareFunction("entry", ir.Signature{Params: []ir.Type{ir.TypePtr}}, false)

	m1 := tr.getOrCreateMainFunction(entry)
	m2 := tr.getOrCreateMainFunction(entry)
	require.Same(t, m1, m2)
}

func TestArityMatchesStreamEncoding(t *testing.T) {
	// Sanity check that the Encode layout round trips what the interpreter
	// expects to read back via dcins.ArityOf for every DCINS opcode used.
	for _, op := range []dcins.Op{dcins.GetRC, dcins.PutRC, dcins.EndOfInstruction} {
		a := dcins.ArityOf(op)
		require.GreaterOrEqual(t, a.NumTypes, 0)

		n := flatten.Node{Op: op, Types: make([]ir.Type, a.NumTypes), Operands: make([]uint32, a.NumOperands)}
		enc := flatten.Stream{Nodes: []flatten.Node{n}}.Encode()
		require.Len(t, enc, 1+a.NumTypes+a.NumOperands, "op %s", op)
	}
}
