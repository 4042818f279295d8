package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dc-lift/dcsema/internal/ir"
)

func TestOperandByName(t *testing.T) {
	inst := &Inst{
		EnumName: "ADDrr",
		Operands: []OperandInfo{
			{Name: "dst", Kind: OperandRegisterClass, MIOperandNo: 0},
			{Name: "src", Kind: OperandRegisterClass, MIOperandNo: 1},
		},
	}

	op := inst.OperandByName("src")
	require.NotNil(t, op)
	require.Equal(t, 1, op.MIOperandNo)

	require.Nil(t, inst.OperandByName("nope"))
	require.Nil(t, inst.OperandByName(""))
}

func TestNumTypes(t *testing.T) {
	n := &Node{Types: []ir.Type{ir.TypeI64, ir.TypeI64}}
	require.Equal(t, 2, n.NumTypes())

	void := &Node{}
	require.Equal(t, 0, void.NumTypes())
}

func TestRegistryEnumInterningIsStableAndDense(t *testing.T) {
	r := NewRegistry()

	a := r.RegisterEnum("EAX")
	b := r.RegisterEnum("EBX")
	aAgain := r.RegisterEnum("EAX")

	require.Equal(t, a, aAgain)
	require.NotEqual(t, a, b)
	require.ElementsMatch(t, []uint32{0, 1}, []uint32{a, b})

	// operandTypes has its own independent namespace from registers.
	ot := r.OperandTypeEnum("addr_mode")
	require.Equal(t, uint32(0), ot)
}

func TestDefineAndEquiv(t *testing.T) {
	r := NewRegistry()
	r.Define("sub", ir.OpcodeSub, 1)
	r.Equiv("X86Sub", "sub")

	def, ok := r.Operators["sub"]
	require.True(t, ok)
	require.Equal(t, ir.OpcodeSub, def.Opcode)
	require.Equal(t, 1, def.NumResults)

	require.Equal(t, "sub", r.SDNodeEquiv["X86Sub"])
}
