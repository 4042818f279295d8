// Package flatten implements the Semantics Flattener (spec.md section
// 4.2): it walks one instruction's DAG pattern tree bottom-up and emits a
// linear sequence of semantic nodes, assigning def-numbers to every
// non-void result and rewriting later operand references to point at
// them.
package flatten

import (
	"fortio.org/safecast"

	"github.com/dc-lift/dcsema/internal/constpool"
	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/diag"
	"github.com/dc-lift/dcsema/internal/ir"
	"github.com/dc-lift/dcsema/internal/pattern"
)

// Node is one flattened semantic node: an opcode, its result types, and
// its raw operand cells. What an operand cell means (a def-number, an MI
// operand index, a register enum, a constant-pool index) depends on Op,
// exactly as spec.md section 3.2 describes.
type Node struct {
	Op       dcins.Op
	Types    []ir.Type
	Operands []uint32

	// DefBase is the def-number of this node's first result. Len(Types)
	// non-void results are assigned DefBase, DefBase+1, ... in order.
	// A void node (len(Types) == 0) does not advance the def-number
	// counter and DefBase is meaningless for it.
	DefBase int
}

// NumDefs returns how many def-numbers this node contributes.
func (n Node) NumDefs() int { return len(n.Types) }

// Stream is one instruction's complete flattened semantic program,
// always ending in an EndOfInstruction node.
type Stream struct {
	Nodes []Node
}

// Encode packs the stream into the flat []uint32 layout of spec.md
// section 3.2: `[opcode, type_0..type_k, operand_0..operand_m]+`. This is
// the representation internal/semtable concatenates into SemanticsArray.
func (s Stream) Encode() []uint32 {
	out := make([]uint32, 0, len(s.Nodes)*4)
	for _, n := range s.Nodes {
		out = append(out, uint32(n.Op))
		for _, t := range n.Types {
			out = append(out, uint32(t))
		}
		out = append(out, n.Operands...)
	}
	return out
}

// flattener holds the per-instruction ephemeral state spec.md section 9
// calls out explicitly: a name->def-index dedup table and a monotonic
// def-number counter, both scoped to one Flatten call and nothing else.
type flattener struct {
	inst *pattern.Inst
	reg  *pattern.Registry
	pool *constpool.Pool
	b    diag.Batch

	nextDef   int
	namedDefs map[string]int
	nodes     []Node

	// pendingImplicits accumulates register names whose IMPLICIT node is
	// deferred until the top-level node has been fully flattened (spec.md
	// section 4.2.3: "appended after the main flattening").
	pendingImplicits []string
}

// Flatten flattens one pattern tree for inst, using reg for operator
// lookups and SDNode equivalence, and pool for interning integer-literal
// leaves. A recoverable set-arity mismatch returns (nil, nil) with a
// diagnostic logged via b — callers must treat a nil, nil return as
// "skip this instruction", not as success.
func Flatten(inst *pattern.Inst, reg *pattern.Registry, pool *constpool.Pool, b diag.Batch, tree *pattern.Node) (*Stream, error) {
	return FlattenAll(inst, reg, pool, b, []*pattern.Node{tree})
}

// FlattenAll flattens every top-level tree of inst into a single stream,
// sharing one flattener's named-operand dedup table and def-number
// counter across all of them: a TableGen instruction can declare more
// than one top-level form (e.g. a register-def "set" plus a separate
// "implicit" side effect), and both halves belong in one instruction's
// semantics program, not two. A recoverable set-arity mismatch in any
// tree skips the whole instruction, exactly as a single-tree Flatten
// would skip on its own mismatch.
func FlattenAll(inst *pattern.Inst, reg *pattern.Registry, pool *constpool.Pool, b diag.Batch, trees []*pattern.Node) (*Stream, error) {
	f := &flattener{
		inst:      inst,
		reg:       reg,
		pool:      pool,
		b:         b,
		namedDefs: make(map[string]int),
	}

	for _, tree := range trees {
		skip, err := f.flattenTop(tree)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, nil
		}
	}

	for _, regName := range f.pendingImplicits {
		f.emitImplicit(regName)
	}
	f.nodes = append(f.nodes, Node{Op: dcins.EndOfInstruction})

	return &Stream{Nodes: f.nodes}, nil
}

// EnumExplicit pairs an instruction enum with its hand-written Semantics
// definition, for BuildAll's explicit-wins pass.
type EnumExplicit struct {
	Enum      uint32
	Semantics *pattern.ExplicitSemantics
}

// EnumPattern pairs an instruction enum with its DAG-derived Pattern, for
// BuildAll's fallback pass.
type EnumPattern struct {
	Enum    uint32
	Pattern *pattern.Pattern
}

// BuildAll flattens a whole target's instructions the way the original
// emitter's ParseSemantics walk does (spec.md SUPPLEMENTED FEATURES item
// 2): every explicit Semantics definition is flattened and registered
// first, then every pattern-derived instruction not already covered by
// an explicit definition is flattened, skipping isCodeGenOnly
// instructions (item 3) since a pseudo-instruction with no real encoding
// has no DAG pattern worth deriving semantics from. Explicit and
// pattern-derived instructions may freely coexist in the same build;
// this is first-wins registration per enum, not a merge. The returned
// map holds one entry per enum that produced a stream; an enum with no
// explicit definition, no pattern, or a skipped pattern is simply
// absent, and callers resolve that to the Table Emitter's dummy
// offset-0 entry via semtable.Builder.Add's nil-stream handling.
func BuildAll(reg *pattern.Registry, pool *constpool.Pool, b diag.Batch, explicit []EnumExplicit, patterns []EnumPattern) (map[uint32]*Stream, error) {
	out := make(map[uint32]*Stream, len(explicit)+len(patterns))
	done := make(map[uint32]bool, len(explicit))

	for _, e := range explicit {
		s, err := FlattenAll(e.Semantics.Inst, reg, pool, b, e.Semantics.Trees)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out[e.Enum] = s
		}
		done[e.Enum] = true
	}

	for _, p := range patterns {
		if done[p.Enum] || p.Pattern.Inst.CodeGenOnly {
			continue
		}
		s, err := FlattenAll(p.Pattern.Inst, reg, pool, b, p.Pattern.Trees)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out[p.Enum] = s
		}
	}

	return out, nil
}

// flattenTop dispatches the three top-level-only forms (set, implicit,
// or a bare side-effecting DAG node) described in spec.md section 4.2.
// A true skip return means a recoverable set-arity mismatch was found
// and already logged.
func (f *flattener) flattenTop(tree *pattern.Node) (skip bool, err error) {
	switch tree.Operator {
	case "set":
		return f.flattenSet(tree)
	case "implicit":
		return false, f.flattenImplicitTop(tree)
	default:
		_, err := f.flattenNode(tree)
		return false, err
	}
}

// flattenSet implements spec.md section 4.2.2's `set` handling and
// section 4.2.4's arity edge policy together: the last child is the
// value expression, the preceding children are destinations.
func (f *flattener) flattenSet(tree *pattern.Node) (skip bool, err error) {
	if len(tree.Children) < 2 {
		return false, f.b.Fatalf("set node needs at least one destination and a value, got %d children", len(tree.Children))
	}
	dests := tree.Children[:len(tree.Children)-1]
	value := tree.Children[len(tree.Children)-1]

	if len(dests) != len(value.Types) {
		f.b.Warn("set arity mismatch: skipping instruction",
			"inst", f.inst.EnumName, "destinations", len(dests), "value_types", len(value.Types))
		return true, nil
	}

	valueDefs, err := f.flattenNode(value)
	if err != nil {
		return false, err
	}

	for i, dest := range dests {
		if i >= len(valueDefs) {
			// Excess destination eliminated by SDNode equivalence: its
			// IMPLICIT entry was already queued while flattening value.
			continue
		}
		if err := f.emitPut(dest, valueDefs[i]); err != nil {
			return false, err
		}
	}
	return false, nil
}

// flattenImplicitTop implements the top-level `implicit` form: emit one
// IMPLICIT per child register leaf.
func (f *flattener) flattenImplicitTop(tree *pattern.Node) error {
	for _, c := range tree.Children {
		if !c.IsLeaf || c.LeafReg == "" {
			return f.b.Fatalf("implicit node child is not a register leaf")
		}
		f.emitImplicit(c.LeafReg)
	}
	return nil
}

// emitPut emits PUT_RC or PUT_REG for one set destination, according to
// whether it is a named operand or an explicit register leaf.
func (f *flattener) emitPut(dest *pattern.Node, valueDef int) error {
	switch {
	case dest.Name != "":
		op := f.inst.OperandByName(dest.Name)
		if op == nil {
			return f.b.Fatalf("unknown destination operand %q on %s", dest.Name, f.inst.EnumName)
		}
		f.emitNode(Node{
			Op:       dcins.PutRC,
			Operands: []uint32{mustU32(op.MIOperandNo), mustU32(valueDef)},
		})
		return nil
	case dest.IsLeaf && dest.LeafReg != "":
		f.emitNode(Node{
			Op:       dcins.PutReg,
			Operands: []uint32{f.reg.RegisterEnum(dest.LeafReg), mustU32(valueDef)},
		})
		return nil
	default:
		return f.b.Fatalf("set destination is neither a named operand nor a register leaf")
	}
}

// emitImplicit emits a single IMPLICIT node for a named physical
// register, producing no def-numbers.
func (f *flattener) emitImplicit(regName string) {
	f.emitNode(Node{
		Op:       dcins.Implicit,
		Operands: []uint32{f.reg.RegisterEnum(regName)},
	})
}

// flattenNode is the general recursive case: named operand reference,
// leaf, or interior DAG operator (spec.md section 4.2.2). It returns the
// def-numbers of every non-void result the node produced, in order.
func (f *flattener) flattenNode(n *pattern.Node) ([]int, error) {
	switch {
	case n.Name != "":
		return f.flattenNamedOperand(n)
	case n.IsLeaf:
		return f.flattenLeaf(n)
	case n.Operator != "":
		return f.flattenOperator(n)
	default:
		return nil, f.b.Fatalf("pattern node is neither a named operand, a leaf, nor an operator")
	}
}

func (f *flattener) flattenNamedOperand(n *pattern.Node) ([]int, error) {
	if d, ok := f.namedDefs[n.Name]; ok {
		return []int{d}, nil
	}

	op := f.inst.OperandByName(n.Name)
	if op == nil {
		return nil, f.b.Fatalf("unknown named operand %q on %s", n.Name, f.inst.EnumName)
	}

	var node Node
	switch op.Kind {
	case pattern.OperandRegisterClass:
		node = Node{
			Op:       dcins.GetRC,
			Types:    operandTypes(n, op),
			Operands: []uint32{mustU32(op.MIOperandNo)},
		}
	case pattern.OperandImmediate:
		node = Node{
			Op:       dcins.ConstantOp,
			Types:    operandTypes(n, op),
			Operands: []uint32{mustU32(op.MIOperandNo)},
		}
	case pattern.OperandCustom:
		// CUSTOM_OP reserves exactly one def-number for its node (one
		// type cell in the encoded stream); the target hook that decodes
		// it at run time is held to the same one-result contract
		// (internal/dcsema's dispatchDCOp), so a pattern can't declare
		// more than one result type for a custom operand here either.
		customTypes := operandTypes(n, op)
		if len(customTypes) != 1 {
			return nil, f.b.Fatalf("%s: custom operand %q declares %d result types, want exactly 1",
				f.inst.EnumName, n.Name, len(customTypes))
		}
		node = Node{
			Op:       dcins.CustomOp,
			Types:    customTypes,
			Operands: []uint32{f.reg.OperandTypeEnum(op.CustomType), mustU32(op.MIOperandNo)},
		}
	default:
		return nil, f.b.Fatalf("unknown operand kind for %q on %s", n.Name, f.inst.EnumName)
	}

	defs := f.emitNode(node)
	f.namedDefs[n.Name] = defs[0]
	return defs, nil
}

func (f *flattener) flattenLeaf(n *pattern.Node) ([]int, error) {
	switch {
	case n.LeafReg != "":
		return f.emitNode(Node{
			Op:       dcins.GetReg,
			Types:    defaultTypes(n),
			Operands: []uint32{f.reg.RegisterEnum(n.LeafReg)},
		}), nil
	case n.IsLeafImm:
		idx := f.pool.Intern(uint64(n.LeafImmediate))
		return f.emitNode(Node{
			Op:       dcins.MovConstant,
			Types:    defaultTypes(n),
			Operands: []uint32{mustU32(idx)},
		}), nil
	default:
		return nil, f.b.Fatalf("leaf pattern node has neither a register nor an integer literal")
	}
}

func (f *flattener) flattenOperator(n *pattern.Node) ([]int, error) {
	equivTarget, hasEquiv := f.reg.SDNodeEquiv[n.Operator]
	lookupName := n.Operator
	if hasEquiv {
		lookupName = equivTarget
	}
	def, ok := f.reg.Operators[lookupName]
	if !ok {
		return nil, f.b.Fatalf("unknown DAG operator %q on %s", n.Operator, f.inst.EnumName)
	}

	childDefs := make([]uint32, 0, len(n.Children))
	for _, c := range n.Children {
		defs, err := f.flattenNode(c)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			childDefs = append(childDefs, mustU32(d))
		}
	}

	types := n.Types
	if hasEquiv {
		dropped := len(types) - def.NumResults
		if dropped < 0 {
			return nil, f.b.Fatalf("%s: equivalent operator %q declares more results than %q provides", f.inst.EnumName, lookupName, n.Operator)
		}
		if dropped != len(n.EquivImplicitRegs) {
			return nil, f.b.Fatalf("%s: operator %q drops %d results under equivalence but names %d implicit registers",
				f.inst.EnumName, n.Operator, dropped, len(n.EquivImplicitRegs))
		}
		f.pendingImplicits = append(f.pendingImplicits, n.EquivImplicitRegs...)
		types = types[:def.NumResults]
	} else if len(types) != def.NumResults {
		return nil, f.b.Fatalf("%s: operator %q declares %d result types, operator definition expects %d",
			f.inst.EnumName, n.Operator, len(types), def.NumResults)
	}

	return f.emitNode(Node{
		Op:       dcins.FromISD(def.Opcode),
		Types:    types,
		Operands: childDefs,
	}), nil
}

// emitNode appends node to the stream, assigns it def-numbers for every
// non-void result, and returns those def-numbers.
func (f *flattener) emitNode(node Node) []int {
	node.DefBase = f.nextDef
	defs := make([]int, len(node.Types))
	for i := range node.Types {
		defs[i] = f.nextDef
		f.nextDef++
	}
	f.nodes = append(f.nodes, node)
	return defs
}

func operandTypes(n *pattern.Node, op *pattern.OperandInfo) []ir.Type {
	if len(n.Types) > 0 {
		return n.Types
	}
	return []ir.Type{op.Type}
}

func defaultTypes(n *pattern.Node) []ir.Type {
	if len(n.Types) > 0 {
		return n.Types
	}
	return []ir.Type{ir.TypeI64}
}

func mustU32(v int) uint32 {
	u, err := safecast.Conv[uint32](v)
	if err != nil {
		panic(err)
	}
	return u
}
