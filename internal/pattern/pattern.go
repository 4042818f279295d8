// Package pattern is the in-memory model of a decoded DAG pattern tree, a
// target instruction's operand list, and the SDNode equivalence map
// (spec.md section 2, "Pattern Model"). It is pure data: nothing here
// walks or flattens a tree, that is internal/flatten's job.
package pattern

import "github.com/dc-lift/dcsema/internal/ir"

// OperandKind classifies a named machine-instruction operand, mirroring
// the TableGen operand class hierarchy the flattener must collapse
// (spec.md section 4.2.2).
type OperandKind byte

const (
	// OperandRegisterClass is a plain register-class operand: flattens
	// to GET_RC / PUT_RC.
	OperandRegisterClass OperandKind = iota
	// OperandImmediate is an Operand with the OPERAND_IMMEDIATE flag:
	// flattens to CONSTANT_OP.
	OperandImmediate
	// OperandCustom is any other Operand subclass (addressing modes,
	// flags): flattens to CUSTOM_OP.
	OperandCustom
)

// OperandInfo describes one named operand of a target instruction.
// RegisterOperand is deliberately not a distinct Kind: spec.md section
// 4.2.2 says it "is collapsed to its underlying RegisterClass" before the
// flattener ever sees it, so callers construct OperandRegisterClass
// OperandInfo values for both.
type OperandInfo struct {
	Name string
	Kind OperandKind

	// MIOperandNo is the positional index of this operand within the
	// decoded machine instruction.
	MIOperandNo int

	// CustomType names the target's OpTypes enum value for an
	// OperandCustom operand (DCINS.CUSTOM_OP's first argument).
	CustomType string

	// Type is the inferred simple value type of this operand. For every
	// operand kind it is the result type used when the referencing
	// pattern tree node declares no Types of its own; node Types win.
	Type ir.Type
}

// Inst is the target-instruction-operand-list half of the Pattern Model:
// one target instruction's decoded operand table plus the bookkeeping the
// emitter needs to place it in OpcodeToSemaIdx.
type Inst struct {
	// EnumName is this instruction's name in the target instruction
	// enum, used only for diagnostics and the emitted table's comments.
	EnumName string

	// Operands is the full list of this instruction's named operands.
	Operands []OperandInfo

	// CodeGenOnly marks a pseudo-instruction with no real encoding.
	// Pattern-derived semantics are skipped for these (spec.md
	// SUPPLEMENTED FEATURES item 3); explicit Semantics are not.
	CodeGenOnly bool
}

// OperandByName returns the OperandInfo for name, or nil if this
// instruction has no operand by that name.
func (i *Inst) OperandByName(name string) *OperandInfo {
	if name == "" {
		return nil
	}
	for idx := range i.Operands {
		if i.Operands[idx].Name == name {
			return &i.Operands[idx]
		}
	}
	return nil
}

// Node is one node of a decoded DAG pattern tree (spec.md section 4.2).
// A Node is exactly one of: a named-operand reference (Name set, matching
// some Inst.Operands[i].Name), a leaf (IsLeaf true), or an interior node
// (Operator set, Children populated).
type Node struct {
	// Name, when non-empty, makes this a named operand reference: the
	// flattener resolves it against the enclosing Inst's operand table
	// rather than treating it as a leaf or interior node.
	Name string

	IsLeaf bool
	// LeafReg is the physical register name for a leaf that is an
	// explicit register (e.g. "EFLAGS").
	LeafReg string
	// LeafImmediate is the literal integer value for a leaf that is a
	// compile-time constant; only meaningful when LeafReg == "".
	LeafImmediate int64
	IsLeafImm     bool

	// Operator is the DAG operator name for an interior node: "set",
	// "implicit", or an SDNode name looked up in the Registry.
	Operator string
	Children []*Node

	// EquivImplicitRegs names, in order, the physical registers that
	// SDNode equivalence collapsing drops from this node's result list
	// (spec.md section 4.2.3). Only meaningful when Operator is a key
	// of the Registry's SDNodeEquiv map; its length must equal the
	// number of results dropped by that equivalence.
	EquivImplicitRegs []string

	// Types are this node's inferred result types, in order; empty
	// means void (spec.md's isVoid sentinel result).
	Types []ir.Type
}

// NumTypes returns the number of non-void result types this node
// produces; 0 for a void-result node.
func (n *Node) NumTypes() int { return len(n.Types) }

// OperatorDef is one entry of the DAG-operator registry: the ISD opcode
// an SDNode operator name flattens to, and how many typed results it
// produces by default.
type OperatorDef struct {
	Opcode     ir.Opcode
	NumResults int
}

// Registry is the build-time, target-wide side tables the flattener
// consults: the DAG-operator name table, and the SDNode equivalence map
// (spec.md section 4.2.3).
type Registry struct {
	// Operators maps an SDNode operator name (e.g. "add") to its
	// OperatorDef.
	Operators map[string]OperatorDef

	// SDNodeEquiv maps a target-specific DAG operator name to a
	// target-independent OperatorDef name with potentially fewer
	// results (spec.md section 4.2.3). The referenced name must also be
	// present in Operators.
	SDNodeEquiv map[string]string

	// registers and operandTypes intern physical-register and
	// custom-operand-type names into the dense uint32 enums DCINS
	// opcode arguments carry. Real targets assign these from generated
	// register/operand-type info; this Registry assigns them by
	// first-use order instead, which is sufficient for a build that
	// only needs them to be dense and stable, not numbered any
	// particular way.
	registers     map[string]uint32
	operandTypes  map[string]uint32
}

// NewRegistry returns an empty Registry ready for Define/Equiv calls.
func NewRegistry() *Registry {
	return &Registry{
		Operators:    make(map[string]OperatorDef),
		SDNodeEquiv:  make(map[string]string),
		registers:    make(map[string]uint32),
		operandTypes: make(map[string]uint32),
	}
}

// RegisterEnum interns a physical register name, returning the same
// value for the same name on every call.
func (r *Registry) RegisterEnum(name string) uint32 {
	return intern(r.registers, name)
}

// OperandTypeEnum interns a custom operand-type name, returning the same
// value for the same name on every call.
func (r *Registry) OperandTypeEnum(name string) uint32 {
	return intern(r.operandTypes, name)
}

func intern(table map[string]uint32, name string) uint32 {
	if v, ok := table[name]; ok {
		return v
	}
	v := uint32(len(table))
	table[name] = v
	return v
}

// Define registers operator name as producing numResults typed values
// via opcode.
func (r *Registry) Define(name string, opcode ir.Opcode, numResults int) {
	r.Operators[name] = OperatorDef{Opcode: opcode, NumResults: numResults}
}

// Equiv registers targetSpecific as equivalent to targetIndependent,
// which must already (or later) be Define'd.
func (r *Registry) Equiv(targetSpecific, targetIndependent string) {
	r.SDNodeEquiv[targetSpecific] = targetIndependent
}

// Pattern is one target instruction's full DAG pattern: its Inst operand
// table, and one or more pattern trees (TableGen instructions can carry
// more than one top-level tree, e.g. a register def plus a flags
// side-effect declared via separate "set"/"implicit" nodes).
type Pattern struct {
	Inst  *Inst
	Trees []*Node
}

// ExplicitSemantics is a hand-written (non-pattern-derived) semantics
// program for one instruction, taking priority over any DAG pattern for
// the same instruction (spec.md SUPPLEMENTED FEATURES item 2). Its trees
// use this package's Node, the same shape as Pattern.Trees.
type ExplicitSemantics struct {
	Inst *Inst
	// Trees, like Pattern.Trees, are flattened exactly as DAG patterns
	// are: explicit Semantics definitions are themselves written in the
	// same DAG pattern language, just attached directly to the
	// instruction instead of inferred from its operand list.
	Trees []*Node
}
