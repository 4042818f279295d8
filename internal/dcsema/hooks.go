package dcsema

import "github.com/dc-lift/dcsema/internal/ir"

// TargetHooks is the capability record re-expressing spec.md section
// 6.1's target-supplied subclass contract: a struct of function
// references handed to the Translator at construction, rather than
// virtual dispatch over a base class (spec.md section 9).
type TargetHooks struct {
	// TranslateTargetOpcode emits IR for an ISD opcode the generic
	// interpreter does not recognize. It owns cur for the duration of the
	// call and must read exactly its own opcode's type/operand cells
	// through it (Next/NextVT/NextOperand) before returning, and push its
	// result, if any, via cur.PushResult — mirroring the protected
	// Idx/SemanticsArray cursor a C++ translateTargetOpcode override
	// inherits from DCInstrSema. Returning ok == false is a fatal
	// unsupported-opcode error for the enclosing function.
	TranslateTargetOpcode func(tx *Translator, opcode ir.Opcode, mi *MI, cur *Cursor) (ok bool)

	// TranslateCustomOperand decodes a non-trivial operand (addressing
	// mode, flag bundle) and must return exactly one value: CUSTOM_OP
	// reserves exactly one def-number for its node, both at flatten time
	// (internal/flatten rejects a custom operand pattern declaring more
	// than one result type) and at translation time (dispatchDCOp treats
	// any other count as fatal). An operand that legitimately decomposes
	// into more than one value — a base+index addressing mode, say — is
	// modeled as separate named operands, each its own CUSTOM_OP, not as
	// multiple values from one hook call.
	TranslateCustomOperand func(tx *Translator, operandType uint32, miOperandNo int) []ir.Value

	// TranslateImplicit expresses a target-specific implicit register
	// def/use for an IMPLICIT node.
	TranslateImplicit func(tx *Translator, reg uint32)

	// TranslateTargetIntrinsic lowers a target intrinsic id to IR, reading
	// its own operand cells through cur exactly as TranslateTargetOpcode
	// does.
	TranslateTargetIntrinsic func(tx *Translator, intrinsicID uint32, cur *Cursor) []ir.Value

	// TranslateTargetInst is an optional early-out override for
	// whole-instruction lowering, tried before the generic semantics
	// stream walk. A nil func is equivalent to one that always returns
	// false.
	TranslateTargetInst func(tx *Translator, mi *MI) (handled bool)
}

// translateTargetInst calls the TranslateTargetInst hook, treating an
// unset hook as one that returns false, matching DCInstrSema's default
// "return false" base-class behavior for optional overrides.
func (h TargetHooks) translateTargetInst(tx *Translator, mi *MI) bool {
	if h.TranslateTargetInst == nil {
		return false
	}
	return h.TranslateTargetInst(tx, mi)
}

// DynTranslateAtFunc is the host callback of spec.md section 6.2: given
// the IR value of an indirect branch/call target address, it returns an
// IR value usable as the call target resolved at run time.
type DynTranslateAtFunc func(tx *Translator, target ir.Value) ir.Value
