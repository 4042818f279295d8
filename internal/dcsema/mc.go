package dcsema

// MI is one decoded machine instruction: the Instruction-Semantics
// Interpreter's input. The real decoder is an external collaborator
// (spec.md section 1); this is the minimal shape the interpreter needs
// from it.
type MI struct {
	Address  uint64
	Opcode   uint32
	Operands []MIOperand
}

// MIOperand is one operand of a decoded machine instruction, tagged by
// kind so GET_RC/CONSTANT_OP decoding can assert the expected shape.
type MIOperand struct {
	IsReg bool
	Reg   uint32
	Imm   int64
}

// RegNo returns the operand's register number.
func (o MIOperand) RegNo() uint32 { return o.Reg }

// ImmVal returns the operand's immediate value.
func (o MIOperand) ImmVal() int64 { return o.Imm }

// MCBasicBlock is one decoded machine basic block: a run of MIs sharing a
// single entry point, plus enough successor information for
// FinalizeBasicBlock to synthesize a terminator when the translated
// instructions didn't emit one themselves.
type MCBasicBlock struct {
	StartAddress uint64
	Insts        []MI

	// Fallthrough is the start address of the block textually following
	// this one, used when no instruction in Insts branches explicitly.
	// Nil means this block ends the function (return or unconditional
	// jump is expected to have been emitted already).
	Fallthrough *uint64
}

// MCFunction is one decoded machine function: an entry address and its
// basic blocks, keyed implicitly by MCBasicBlock.StartAddress.
type MCFunction struct {
	Name         string
	EntryAddress uint64
	Blocks       []*MCBasicBlock
}

// BlockAt returns the block starting at addr, if any.
func (f *MCFunction) BlockAt(addr uint64) (*MCBasicBlock, bool) {
	for _, bb := range f.Blocks {
		if bb.StartAddress == addr {
			return bb, true
		}
	}
	return nil, false
}
