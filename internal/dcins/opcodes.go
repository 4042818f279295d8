// Package dcins defines the DCINS meta-opcode namespace: spec.md section
// 3.1's closed set of semantic opcodes for operand/register/constant
// access and flow control of the interpreter, plus the arity table that
// makes every opcode's result-type and operand-cell counts explicit
// rather than implicit in prose.
package dcins

import "github.com/dc-lift/dcsema/internal/ir"

// Op is a semantic opcode: either a DCINS meta-opcode (this package) or an
// ISD opcode (ir.Opcode) inherited from the pattern DSL. The two spaces are
// disjoint; IsDCOp tells which one a given value belongs to, and
// FromISD/ToISD convert ISD opcodes in and out, so
// a single flattened stream can carry both without a second enum.
type Op uint32

// dcBase tags the high bit of the DCINS sub-range so DCINS and ISD opcodes
// never collide numerically within one Semantics stream, per spec.md
// section 3.1 ("distinguished by high-bit tag or a separate namespace").
const dcBase Op = 1 << 16

const (
	// END_OF_INSTRUCTION sentinel-terminates one instruction's semantic
	// program (spec.md section 3.1).
	EndOfInstruction Op = dcBase + iota

	// GetRC reads a register operand of the machine instruction by MI
	// operand index, yielding a typed IR value.
	GetRC
	// PutRC writes a register operand: MI operand index, value index.
	PutRC
	// GetReg reads an explicitly-named physical register.
	GetReg
	// PutReg writes an explicitly-named physical register: register
	// enum, value index.
	PutReg
	// CustomOp requests a target-specific decoding of a non-register
	// operand: operand-type enum, first MI operand index.
	CustomOp
	// ConstantOp reads an immediate operand from the MI by operand index.
	ConstantOp
	// MovConstant produces a compile-time constant from the constant
	// pool by pool index.
	MovConstant
	// Implicit declares an implicit register def/use by register enum.
	Implicit

	opEnd
)

var names = map[Op]string{
	EndOfInstruction: "END_OF_INSTRUCTION",
	GetRC:            "GET_RC",
	PutRC:            "PUT_RC",
	GetReg:           "GET_REG",
	PutReg:           "PUT_REG",
	CustomOp:         "CUSTOM_OP",
	ConstantOp:       "CONSTANT_OP",
	MovConstant:      "MOV_CONSTANT",
	Implicit:         "IMPLICIT",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return "DCINS(?)"
}

// IsDCOp reports whether op belongs to the DCINS namespace, as opposed to
// being an ISD opcode from the pattern DSL.
func IsDCOp(op Op) bool { return op >= dcBase && op < opEnd }

// FromISD converts a pattern-DSL ISD opcode into the shared Op space.
func FromISD(op ir.Opcode) Op { return Op(op) }

// ToISD converts a shared Op known to be an ISD opcode back to ir.Opcode.
// Callers must check !IsDCOp(op) first.
func ToISD(op Op) ir.Opcode { return ir.Opcode(op) }

// Arity describes how many result-type cells and operand cells a DCINS
// opcode consumes in a flattened Semantics stream (spec.md section 3.1:
// "the arity... is determined by the opcode").
type Arity struct {
	NumTypes    int
	NumOperands int
}

var arities = map[Op]Arity{
	EndOfInstruction: {0, 0},
	GetRC:             {1, 1}, // type, MI operand index
	PutRC:             {0, 2}, // MI operand index, value index
	GetReg:            {1, 1}, // type, register enum
	PutReg:            {0, 2}, // register enum, value index
	CustomOp:          {1, 2}, // type, operand-type enum, first MI operand index
	ConstantOp:        {1, 1}, // type, MI operand index
	MovConstant:       {1, 1}, // type, pool index
	Implicit:          {0, 1}, // register enum
}

// ArityOf returns the arity of a DCINS opcode. It panics for an ISD
// opcode or an opcode outside the known set — callers are expected to
// branch on IsDCOp before calling this, matching the interpreter's fixed
// per-opcode decode table (spec.md section 4.5).
func ArityOf(op Op) Arity {
	a, ok := arities[op]
	if !ok {
		panic("dcins: ArityOf called on non-DCINS opcode " + op.String())
	}
	return a
}
