package ir

import (
	"fmt"
	"strings"
)

// Opcode identifies the operation an Instruction performs. This is the
// target-independent ISD namespace of spec.md section 3.1: a fixed, small
// set of arithmetic, memory, control-flow, and conversion operations that
// the interpreter emits 1:1 from a flattened DAG operator.
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// Arithmetic and bitwise, all binary: `a = Op x, y`.
	OpcodeAdd
	OpcodeSub
	OpcodeMul
	OpcodeUDiv
	OpcodeSDiv
	OpcodeURem
	OpcodeSRem
	OpcodeAnd
	OpcodeOr
	OpcodeXor
	OpcodeShl
	OpcodeLshr
	OpcodeAshr

	// Unary.
	OpcodeNeg
	OpcodeNot

	// Floating point, all binary unless noted.
	OpcodeFAdd
	OpcodeFSub
	OpcodeFMul
	OpcodeFDiv
	OpcodeFNeg // unary

	// Comparison: `a = Icmp Pred, x, y` / `a = Fcmp Pred, x, y`, result is i8 (0/1).
	OpcodeIcmp
	OpcodeFcmp

	// Memory.
	OpcodeLoad  // `a = Load p, Offset`
	OpcodeStore // `Store x, p, Offset`
	OpcodeAlloca

	// Conversion, all unary.
	OpcodeTrunc
	OpcodeSExt
	OpcodeZExt
	OpcodeFpTrunc
	OpcodeFpExt
	OpcodeSitofp
	OpcodeUitofp
	OpcodeFptosi
	OpcodeFptoui
	OpcodeBitcast

	// Constants.
	OpcodeIconst
	OpcodeFconst

	// Control flow.
	OpcodeJump         // `Jump blk, args`
	OpcodeBr           // `Br cond, trueBlk, falseBlk, args`
	OpcodeReturn       // `Return vs`
	OpcodeTrap         // `Trap`
	OpcodeUnreachable  // `Unreachable`
	OpcodeCall         // `rvals = Call FN, args`
	OpcodeCallIndirect // `rvals = CallIndirect callee, args`
	OpcodeFuncAddr     // `a = FuncAddr FN`

	opcodeEnd
)

var opcodeNames = [...]string{
	OpcodeInvalid:      "invalid",
	OpcodeAdd:          "add",
	OpcodeSub:          "sub",
	OpcodeMul:          "mul",
	OpcodeUDiv:         "udiv",
	OpcodeSDiv:         "sdiv",
	OpcodeURem:         "urem",
	OpcodeSRem:         "srem",
	OpcodeAnd:          "and",
	OpcodeOr:           "or",
	OpcodeXor:          "xor",
	OpcodeShl:          "shl",
	OpcodeLshr:         "lshr",
	OpcodeAshr:         "ashr",
	OpcodeNeg:          "neg",
	OpcodeNot:          "not",
	OpcodeFAdd:         "fadd",
	OpcodeFSub:         "fsub",
	OpcodeFMul:         "fmul",
	OpcodeFDiv:         "fdiv",
	OpcodeFNeg:         "fneg",
	OpcodeIcmp:         "icmp",
	OpcodeFcmp:         "fcmp",
	OpcodeLoad:         "load",
	OpcodeStore:        "store",
	OpcodeAlloca:       "alloca",
	OpcodeTrunc:        "trunc",
	OpcodeSExt:         "sext",
	OpcodeZExt:         "zext",
	OpcodeFpTrunc:      "fptrunc",
	OpcodeFpExt:        "fpext",
	OpcodeSitofp:       "sitofp",
	OpcodeUitofp:       "uitofp",
	OpcodeFptosi:       "fptosi",
	OpcodeFptoui:       "fptoui",
	OpcodeBitcast:      "bitcast",
	OpcodeIconst:       "iconst",
	OpcodeFconst:       "fconst",
	OpcodeJump:         "jump",
	OpcodeBr:           "br",
	OpcodeReturn:       "return",
	OpcodeTrap:         "trap",
	OpcodeUnreachable:  "unreachable",
	OpcodeCall:         "call",
	OpcodeCallIndirect: "call_indirect",
	OpcodeFuncAddr:     "func_addr",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return "unknown"
}

// CmpPredicate is the comparison kind for Icmp/Fcmp.
type CmpPredicate byte

const (
	CmpEqual CmpPredicate = iota
	CmpNotEqual
	CmpSignedLessThan
	CmpSignedLessThanOrEqual
	CmpSignedGreaterThan
	CmpSignedGreaterThanOrEqual
	CmpUnsignedLessThan
	CmpUnsignedLessThanOrEqual
	CmpUnsignedGreaterThan
	CmpUnsignedGreaterThanOrEqual
)

// FuncRef identifies a declared or defined Function within a Module.
type FuncRef uint32

// Instruction is the single flattened representation of every IR
// operation, following the teacher's approach of one struct shape reused
// for all opcodes (Go has no tagged unions) rather than one type per
// opcode.
type Instruction struct {
	opcode Opcode
	typ    Type
	pred   CmpPredicate
	u64    uint64
	v, v2  Value
	vs     []Value
	callee FuncRef
	target *BasicBlock
	target2 *BasicBlock // Br's false-edge.
	offset int32

	id         int
	prev, next *Instruction
}

// Type implements Value. Void instructions (Store, Jump, Br, Return, Trap,
// Call with no results) still satisfy Value for uniformity; callers must
// not use their result.
func (i *Instruction) Type() Type { return i.typ }

// Opcode returns the operation this instruction performs.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Next returns the instruction immediately following this one in its
// basic block, or nil if this is the last instruction.
func (i *Instruction) Next() *Instruction { return i.next }

// Args returns the binary/unary operand(s) of an arithmetic, comparison,
// conversion, load, or store instruction.
func (i *Instruction) Args() (x, y Value) { return i.v, i.v2 }

// ConstBits returns the raw bit pattern of an Iconst/Fconst instruction.
func (i *Instruction) ConstBits() uint64 { return i.u64 }

// Predicate returns the comparison kind of an Icmp/Fcmp instruction.
func (i *Instruction) Predicate() CmpPredicate { return i.pred }

// Offset returns the byte offset of a Load/Store/Alloca instruction.
func (i *Instruction) Offset() int32 { return i.offset }

// Callee returns the function referenced by a Call or FuncAddr
// instruction. A CallIndirect's callee pointer is not held here; Args
// returns it as x.
func (i *Instruction) Callee() FuncRef { return i.callee }

// CallArgs returns the argument list of a Call/CallIndirect, or the value
// list of a Return/Jump.
func (i *Instruction) CallArgs() []Value { return i.vs }

// BranchTarget returns the unconditional target of a Jump, or the
// taken-branch target of a Br.
func (i *Instruction) BranchTarget() *BasicBlock { return i.target }

// FallthroughTarget returns the not-taken target of a Br.
func (i *Instruction) FallthroughTarget() *BasicBlock { return i.target2 }

// IsTerminator reports whether this instruction ends a basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.opcode {
	case OpcodeJump, OpcodeBr, OpcodeReturn, OpcodeTrap, OpcodeUnreachable:
		return true
	}
	return false
}

// String implements fmt.Stringer, formatting the instruction in a
// disassembly-like textual form for debugging and tests.
func (i *Instruction) String() string {
	switch i.opcode {
	case OpcodeIconst:
		return fmt.Sprintf("v%d = iconst.%s %#x", i.id, i.typ, i.u64)
	case OpcodeFconst:
		return fmt.Sprintf("v%d = fconst.%s %#x", i.id, i.typ, i.u64)
	case OpcodeLoad:
		return fmt.Sprintf("v%d = load.%s %s, %#x", i.id, i.typ, i.v, i.offset)
	case OpcodeStore:
		return fmt.Sprintf("store %s, %s, %#x", i.v, i.v2, i.offset)
	case OpcodeAlloca:
		return fmt.Sprintf("v%d = alloca.%s", i.id, i.typ)
	case OpcodeJump:
		return fmt.Sprintf("jump %s(%s)", i.target.Name(), formatValues(i.vs))
	case OpcodeBr:
		return fmt.Sprintf("br %s, %s, %s", i.v, i.target.Name(), i.target2.Name())
	case OpcodeReturn:
		return fmt.Sprintf("return %s", formatValues(i.vs))
	case OpcodeTrap:
		return "trap"
	case OpcodeUnreachable:
		return "unreachable"
	case OpcodeCall:
		return fmt.Sprintf("v%d = call.%s f%d(%s)", i.id, i.typ, i.callee, formatValues(i.vs))
	case OpcodeCallIndirect:
		return fmt.Sprintf("v%d = call_indirect.%s %s(%s)", i.id, i.typ, i.v, formatValues(i.vs))
	case OpcodeFuncAddr:
		return fmt.Sprintf("v%d = func_addr f%d", i.id, i.callee)
	case OpcodeIcmp, OpcodeFcmp:
		return fmt.Sprintf("v%d = %s.%s %d, %s, %s", i.id, i.opcode, i.typ, i.pred, i.v, i.v2)
	default:
		if i.v2 != nil {
			return fmt.Sprintf("v%d = %s.%s %s, %s", i.id, i.opcode, i.typ, i.v, i.v2)
		}
		if i.v != nil {
			return fmt.Sprintf("v%d = %s.%s %s", i.id, i.opcode, i.typ, i.v)
		}
		return fmt.Sprintf("v%d = %s.%s", i.id, i.opcode, i.typ)
	}
}

func formatValues(vs []Value) string {
	ss := make([]string, len(vs))
	for i, v := range vs {
		ss[i] = v.String()
	}
	return strings.Join(ss, ", ")
}

func (i *Instruction) asBinary(op Opcode, typ Type, x, y Value) *Instruction {
	i.opcode, i.typ, i.v, i.v2 = op, typ, x, y
	return i
}

func (i *Instruction) asUnary(op Opcode, typ Type, x Value) *Instruction {
	i.opcode, i.typ, i.v = op, typ, x
	return i
}

// AsIconst64 configures this instruction as a 64-bit integer constant.
func (i *Instruction) AsIconst64(typ Type, v uint64) *Instruction {
	i.opcode, i.typ, i.u64 = OpcodeIconst, typ, v
	return i
}

// AsFconst configures this instruction as a floating-point constant,
// storing its IEEE-754 bit pattern.
func (i *Instruction) AsFconst(typ Type, bits uint64) *Instruction {
	i.opcode, i.typ, i.u64 = OpcodeFconst, typ, bits
	return i
}

// AsLoad configures this instruction as a load of typ from ptr+offset.
func (i *Instruction) AsLoad(typ Type, ptr Value, offset int32) *Instruction {
	i.opcode, i.typ, i.v, i.offset = OpcodeLoad, typ, ptr, offset
	return i
}

// AsStore configures this instruction as a store of value to ptr+offset.
func (i *Instruction) AsStore(value, ptr Value, offset int32) *Instruction {
	i.opcode, i.typ, i.v, i.v2, i.offset = OpcodeStore, TypeVoid, value, ptr, offset
	return i
}

// AsAlloca configures this instruction as a stack slot allocation of typ,
// used by the register-set abstraction to back each register's slot.
func (i *Instruction) AsAlloca(typ Type) *Instruction {
	i.opcode, i.typ = OpcodeAlloca, typ
	return i
}

// AsBinary configures this instruction as a binary arithmetic/bitwise op.
func (i *Instruction) AsBinary(op Opcode, typ Type, x, y Value) *Instruction {
	return i.asBinary(op, typ, x, y)
}

// AsUnary configures this instruction as a unary arithmetic/conversion op.
func (i *Instruction) AsUnary(op Opcode, typ Type, x Value) *Instruction {
	return i.asUnary(op, typ, x)
}

// AsIcmp configures this instruction as an integer comparison.
func (i *Instruction) AsIcmp(pred CmpPredicate, x, y Value) *Instruction {
	i.opcode, i.typ, i.pred, i.v, i.v2 = OpcodeIcmp, TypeI8, pred, x, y
	return i
}

// AsFcmp configures this instruction as a floating-point comparison.
func (i *Instruction) AsFcmp(pred CmpPredicate, x, y Value) *Instruction {
	i.opcode, i.typ, i.pred, i.v, i.v2 = OpcodeFcmp, TypeI8, pred, x, y
	return i
}

// AsJump configures this instruction as an unconditional branch to target,
// passing args (used when target expects block parameters; unused by the
// register-set-backed translation, kept for IR-builder generality).
func (i *Instruction) AsJump(target *BasicBlock, args []Value) *Instruction {
	i.opcode, i.typ, i.target, i.vs = OpcodeJump, TypeVoid, target, args
	return i
}

// AsBr configures this instruction as a conditional branch.
func (i *Instruction) AsBr(cond Value, trueTarget, falseTarget *BasicBlock) *Instruction {
	i.opcode, i.typ, i.v, i.target, i.target2 = OpcodeBr, TypeVoid, cond, trueTarget, falseTarget
	return i
}

// AsReturn configures this instruction as a function return.
func (i *Instruction) AsReturn(vs []Value) *Instruction {
	i.opcode, i.typ, i.vs = OpcodeReturn, TypeVoid, vs
	return i
}

// AsTrap configures this instruction as an immediate trap.
func (i *Instruction) AsTrap() *Instruction {
	i.opcode, i.typ = OpcodeTrap, TypeVoid
	return i
}

// AsUnreachable configures this instruction as an unreachable terminator,
// synthesized by the assembler when a fall-through target is missing.
func (i *Instruction) AsUnreachable() *Instruction {
	i.opcode, i.typ = OpcodeUnreachable, TypeVoid
	return i
}

// AsCall configures this instruction as a direct call to callee.
func (i *Instruction) AsCall(callee FuncRef, resultType Type, args []Value) *Instruction {
	i.opcode, i.typ, i.callee, i.vs = OpcodeCall, resultType, callee, args
	return i
}

// AsCallIndirect configures this instruction as a call through a function
// pointer value, used for indirect branch/call targets resolved at
// runtime via the host's translate-at callback.
func (i *Instruction) AsCallIndirect(calleePtr Value, resultType Type, args []Value) *Instruction {
	i.opcode, i.typ, i.v, i.vs = OpcodeCallIndirect, resultType, calleePtr, args
	return i
}

// AsFuncAddr configures this instruction as taking the address of a
// declared or defined function.
func (i *Instruction) AsFuncAddr(callee FuncRef) *Instruction {
	i.opcode, i.typ, i.callee = OpcodeFuncAddr, TypePtr, callee
	return i
}
