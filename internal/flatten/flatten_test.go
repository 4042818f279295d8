package flatten

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dc-lift/dcsema/internal/constpool"
	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/diag"
	"github.com/dc-lift/dcsema/internal/ir"
	"github.com/dc-lift/dcsema/internal/pattern"
)

func namedOperand(name string) *pattern.Node { return &pattern.Node{Name: name} }

func regLeaf(reg string) *pattern.Node { return &pattern.Node{IsLeaf: true, LeafReg: reg} }

func TestFlattenSimpleAdd(t *testing.T) {
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
			namedOperand("d"),
			{Operator: "add", Types: []ir.Type{ir.TypeI64}, Children: []*pattern.Node{
				namedOperand("a"), namedOperand("b"),
			}},
		},
	}

	pool := constpool.New()
	s, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)
	require.NotNil(t, s)

	require.Equal(t, []dcins.Op{dcins.GetRC, dcins.GetRC, dcins.FromISD(ir.OpcodeAdd), dcins.PutRC, dcins.EndOfInstruction},
		opsOf(s))
}

// TestFlattenSetEquivalenceDropsImplicit is the round-trip scenario of
// `(set GPR:$d, EFLAGS, (X86Sub GPR:$a, GPR:$b))`: the target-specific
// operator X86Sub is equivalent to the target-independent "sub" with one
// fewer result, and the dropped result becomes an IMPLICIT appended after
// the rest of the top-level flattening, not inline after the sub node.
func TestFlattenSetEquivalenceDropsImplicit(t *testing.T) {
	inst := &pattern.Inst{
		EnumName: "SUBrr",
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
			{Name: "a", Kind: pattern.OperandRegisterClass, MIOperandNo: 1, Type: ir.TypeI64},
			{Name: "b", Kind: pattern.OperandRegisterClass, MIOperandNo: 2, Type: ir.TypeI64},
		},
	}
	reg := pattern.NewRegistry()
	reg.Define("sub", ir.OpcodeSub, 1)
	reg.Equiv("X86Sub", "sub")

	tree := &pattern.Node{
		Operator: "set",
		Children: []*pattern.Node{
			namedOperand("d"),
			regLeaf("EFLAGS"),
			{
				Operator:          "X86Sub",
				Types:             []ir.Type{ir.TypeI64, ir.TypeI8},
				EquivImplicitRegs: []string{"EFLAGS"},
				Children:          []*pattern.Node{namedOperand("a"), namedOperand("b")},
			},
		},
	}

	pool := constpool.New()
	s, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)
	require.NotNil(t, s)

	require.Equal(t, []dcins.Op{
		dcins.GetRC, dcins.GetRC, dcins.FromISD(ir.OpcodeSub), dcins.PutRC, dcins.Implicit, dcins.EndOfInstruction,
	}, opsOf(s))

	// The EFLAGS destination consumed no def-number of its own: it was
	// silently eliminated, already covered by the queued IMPLICIT.
	implicitNode := s.Nodes[4]
	require.Equal(t, dcins.Implicit, implicitNode.Op)
	require.Equal(t, reg.RegisterEnum("EFLAGS"), implicitNode.Operands[0])
}

func TestFlattenSetArityMismatchSkips(t *testing.T) {
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
			namedOperand("d"),
			regLeaf("EFLAGS"),
			{Operator: "add", Types: []ir.Type{ir.TypeI64}, Children: []*pattern.Node{
				namedOperand("a"), namedOperand("b"),
			}},
		},
	}

	pool := constpool.New()
	s, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestFlattenNamedOperandDedup(t *testing.T) {
	inst := &pattern.Inst{
		EnumName: "ANDrr",
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
			{Name: "a", Kind: pattern.OperandRegisterClass, MIOperandNo: 1, Type: ir.TypeI64},
		},
	}
	reg := pattern.NewRegistry()
	reg.Define("and", ir.OpcodeAnd, 1)

	tree := &pattern.Node{
		Operator: "set",
		Children: []*pattern.Node{
			namedOperand("d"),
			{Operator: "and", Types: []ir.Type{ir.TypeI64}, Children: []*pattern.Node{
				namedOperand("a"), namedOperand("a"),
			}},
		},
	}

	pool := constpool.New()
	s, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)

	// "a" is referenced twice but must only be materialized once: a
	// single GET_RC, then AND referencing def 0 for both operands.
	getRCCount := 0
	for _, n := range s.Nodes {
		if n.Op == dcins.GetRC {
			getRCCount++
		}
	}
	require.Equal(t, 1, getRCCount)

	andNode := s.Nodes[1]
	require.Equal(t, []uint32{0, 0}, andNode.Operands)
}

func TestFlattenLeafImmediateInternsConstant(t *testing.T) {
	inst := &pattern.Inst{
		EnumName: "MOVri",
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
		},
	}
	reg := pattern.NewRegistry()

	tree := &pattern.Node{
		Operator: "set",
		Children: []*pattern.Node{
			namedOperand("d"),
			{IsLeaf: true, IsLeafImm: true, LeafImmediate: 7, Types: []ir.Type{ir.TypeI64}},
		},
	}

	pool := constpool.New()
	s, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.NoError(t, err)

	require.Equal(t, dcins.MovConstant, s.Nodes[0].Op)
	require.Equal(t, 2, pool.Len()) // reserved 0, plus the interned 7
	v, err := pool.Get(int(s.Nodes[0].Operands[0]))
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)
}

func addInst(name string, codeGenOnly bool) *pattern.Inst {
	return &pattern.Inst{
		EnumName:    name,
		CodeGenOnly: codeGenOnly,
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
			{Name: "a", Kind: pattern.OperandRegisterClass, MIOperandNo: 1, Type: ir.TypeI64},
			{Name: "b", Kind: pattern.OperandRegisterClass, MIOperandNo: 2, Type: ir.TypeI64},
		},
	}
}

func addTree(op string) *pattern.Node {
	return &pattern.Node{
		Operator: "set",
		Children: []*pattern.Node{
			namedOperand("d"),
			{Operator: op, Types: []ir.Type{ir.TypeI64}, Children: []*pattern.Node{
				namedOperand("a"), namedOperand("b"),
			}},
		},
	}
}

func TestBuildAllExplicitWinsOverPattern(t *testing.T) {
	reg := pattern.NewRegistry()
	reg.Define("add", ir.OpcodeAdd, 1)
	reg.Define("sub", ir.OpcodeSub, 1)
	pool := constpool.New()

	inst := addInst("ADDrr", false)
	explicit := []EnumExplicit{
		{Enum: 1, Semantics: &pattern.ExplicitSemantics{Inst: inst, Trees: []*pattern.Node{addTree("sub")}}},
	}
	patterns := []EnumPattern{
		{Enum: 1, Pattern: &pattern.Pattern{Inst: inst, Trees: []*pattern.Node{addTree("add")}}},
	}

	out, err := BuildAll(reg, pool, diag.NewBatch(), explicit, patterns)
	require.NoError(t, err)
	require.Contains(t, opsOf(out[1]), dcins.FromISD(ir.OpcodeSub))
	require.NotContains(t, opsOf(out[1]), dcins.FromISD(ir.OpcodeAdd))
}

func TestBuildAllSkipsCodeGenOnlyPattern(t *testing.T) {
	reg := pattern.NewRegistry()
	reg.Define("add", ir.OpcodeAdd, 1)
	pool := constpool.New()

	inst := addInst("PSEUDO_ADD", true)
	patterns := []EnumPattern{
		{Enum: 2, Pattern: &pattern.Pattern{Inst: inst, Trees: []*pattern.Node{addTree("add")}}},
	}

	out, err := BuildAll(reg, pool, diag.NewBatch(), nil, patterns)
	require.NoError(t, err)
	_, ok := out[2]
	require.False(t, ok)
}

func TestBuildAllCoexistsAcrossDistinctEnums(t *testing.T) {
	reg := pattern.NewRegistry()
	reg.Define("add", ir.OpcodeAdd, 1)
	reg.Define("sub", ir.OpcodeSub, 1)
	pool := constpool.New()

	explicit := []EnumExplicit{
		{Enum: 1, Semantics: &pattern.ExplicitSemantics{Inst: addInst("ADDrr", false), Trees: []*pattern.Node{addTree("add")}}},
	}
	patterns := []EnumPattern{
		{Enum: 2, Pattern: &pattern.Pattern{Inst: addInst("SUBrr", false), Trees: []*pattern.Node{addTree("sub")}}},
	}

	out, err := BuildAll(reg, pool, diag.NewBatch(), explicit, patterns)
	require.NoError(t, err)
	require.Contains(t, opsOf(out[1]), dcins.FromISD(ir.OpcodeAdd))
	require.Contains(t, opsOf(out[2]), dcins.FromISD(ir.OpcodeSub))
}

func TestFlattenCustomOperandMultiTypeIsFatal(t *testing.T) {
	inst := &pattern.Inst{
		EnumName: "LEA",
		Operands: []pattern.OperandInfo{
			{Name: "d", Kind: pattern.OperandRegisterClass, MIOperandNo: 0, Type: ir.TypeI64},
			{Name: "addr", Kind: pattern.OperandCustom, MIOperandNo: 1, CustomType: "X86AddrMode"},
		},
	}
	reg := pattern.NewRegistry()

	// A bare top-level reference (no "set" wrapper) so the flattener
	// reaches flattenNamedOperand directly instead of first tripping the
	// unrelated set-arity mismatch check.
	tree := &pattern.Node{Name: "addr", Types: []ir.Type{ir.TypeI64, ir.TypeI64}}

	pool := constpool.New()
	_, err := Flatten(inst, reg, pool, diag.NewBatch(), tree)
	require.Error(t, err)
}

func opsOf(s *Stream) []dcins.Op {
	ops := make([]dcins.Op, len(s.Nodes))
	for i, n := range s.Nodes {
		ops[i] = n.Op
	}
	return ops
}
