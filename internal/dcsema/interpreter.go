package dcsema

import (
	"tlog.app/go/errors"

	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/ir"
)

// TranslatedInst records the IR range produced for one decoded
// instruction, the diagnostic object of spec.md section 3.4.
type TranslatedInst struct {
	MI         *MI
	FirstIR    *ir.Instruction
	LastIR     *ir.Instruction
}

// TranslateInst walks mi's semantics stream, emitting IR into the
// current basic block, per spec.md section 4.5.
func (t *Translator) TranslateInst(mi *MI) (*TranslatedInst, error) {
	if t.hooks.translateTargetInst(t, mi) {
		return &TranslatedInst{MI: mi}, nil
	}

	off := uint32(0)
	if int(mi.Opcode) < len(t.tables.OpcodeToSemaIdx) {
		off = t.tables.OpcodeToSemaIdx[mi.Opcode]
	}
	if off == 0 {
		return nil, t.batch.Fatalf("unsupported instruction opcode %d at %#x", mi.Opcode, mi.Address)
	}

	startBB := t.b.CurrentBlock()
	var prevTail *ir.Instruction
	if instrs := startBB.Instructions(); len(instrs) > 0 {
		prevTail = instrs[len(instrs)-1]
	}

	w := &walker{t: t, mi: mi, stream: t.tables.SemanticsArray, idx: int(off)}

	if err := w.run(); err != nil {
		return nil, errors.Wrap(err, "translate inst at %#x", mi.Address)
	}

	ti := &TranslatedInst{MI: mi, FirstIR: startBB.Root()}
	if prevTail != nil {
		ti.FirstIR = prevTail.Next()
	}
	if ti.FirstIR != nil {
		if instrs := t.b.CurrentBlock().Instructions(); len(instrs) > 0 {
			ti.LastIR = instrs[len(instrs)-1]
		}
	}
	return ti, nil
}

// walker is the per-instruction interpreter state: the working value
// vector V indexed by def-number, and a cursor into the shared
// SemanticsArray (spec.md section 4.5, step 3).
type walker struct {
	t      *Translator
	mi     *MI
	stream []uint32
	idx    int
	vals   []ir.Value
}

func (w *walker) next() uint32 {
	v := w.stream[w.idx]
	w.idx++
	return v
}

func (w *walker) push(v ir.Value) { w.vals = append(w.vals, v) }

func (w *walker) operand(defIdx uint32) ir.Value {
	return w.vals[defIdx]
}

// Cursor lets a target hook read its own opcode's type/operand cells
// from the shared semantics stream, and push whatever result it
// produces onto the interpreter's value vector. It is the Go
// translation of the protected Idx/SemanticsArray cursor a C++
// translateTargetOpcode override inherits directly from DCInstrSema
// (original_source/include/llvm/DC/DCInstrSema.h's Next/NextVT/
// getNextOperand/registerResult); the capability-record hook has no base
// class to inherit from, so the cursor is passed in explicitly instead.
// A Cursor is only valid for the duration of the hook call that received
// it.
type Cursor struct {
	w *walker
}

// Next returns the next raw stream word, advancing the cursor.
func (c *Cursor) Next() uint32 { return c.w.next() }

// NextVT returns the next stream word interpreted as a result type.
func (c *Cursor) NextVT() ir.Type { return ir.Type(c.w.next()) }

// NextOperand resolves the next stream word as a def-number into the
// value it already produced earlier in this instruction.
func (c *Cursor) NextOperand() ir.Value { return c.w.operand(c.w.next()) }

// PushResult registers v as this instruction's next produced def-number,
// for a hook that returns a value consumed by a later node.
func (c *Cursor) PushResult(v ir.Value) { c.w.push(v) }

// run executes the semantics stream until END_OF_INSTRUCTION.
func (w *walker) run() error {
	for {
		op := dcins.Op(w.next())

		if op == dcins.EndOfInstruction {
			return nil
		}

		if dcins.IsDCOp(op) {
			if err := w.dispatchDCOp(op); err != nil {
				return err
			}
			continue
		}

		if err := w.dispatchISDOp(op); err != nil {
			return err
		}
	}
}

func (w *walker) dispatchDCOp(op dcins.Op) error {
	switch op {
	case dcins.GetRC:
		typ := ir.Type(w.next())
		miIdx := w.next()
		_ = typ
		w.push(w.t.rs.GetReg(w.mi.Operands[miIdx].RegNo()))

	case dcins.PutRC:
		miIdx := w.next()
		valDef := w.next()
		w.t.rs.SetReg(w.mi.Operands[miIdx].RegNo(), w.operand(valDef))

	case dcins.GetReg:
		typ := ir.Type(w.next())
		regEnum := w.next()
		_ = typ
		w.push(w.t.rs.GetReg(regEnum))

	case dcins.PutReg:
		regEnum := w.next()
		valDef := w.next()
		w.t.rs.SetReg(regEnum, w.operand(valDef))

	case dcins.CustomOp:
		typ := ir.Type(w.next())
		opType := w.next()
		miIdx := w.next()
		if w.t.hooks.TranslateCustomOperand == nil {
			return w.t.batch.Fatalf("custom operand type %d has no target hook", opType)
		}
		vs := w.t.hooks.TranslateCustomOperand(w.t, opType, int(miIdx))
		if len(vs) != 1 {
			return w.t.batch.Fatalf("custom operand type %d (result type %s) hook returned %d values, want exactly 1",
				opType, typ, len(vs))
		}
		w.push(vs[0])

	case dcins.ConstantOp:
		typ := ir.Type(w.next())
		miIdx := w.next()
		imm := w.mi.Operands[miIdx].ImmVal()
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsIconst64(typ, uint64(imm))
		}))

	case dcins.MovConstant:
		typ := ir.Type(w.next())
		poolIdx := w.next()
		val := w.t.tables.ConstantArray[poolIdx]
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsIconst64(typ, val)
		}))

	case dcins.Implicit:
		regEnum := w.next()
		if w.t.hooks.TranslateImplicit != nil {
			w.t.hooks.TranslateImplicit(w.t, regEnum)
		}

	default:
		return w.t.batch.Fatalf("unknown DCINS opcode %s", op)
	}
	return nil
}

func (w *walker) dispatchISDOp(op dcins.Op) error {
	isd := dcins.ToISD(op)

	switch isd {
	case ir.OpcodeAdd, ir.OpcodeSub, ir.OpcodeMul, ir.OpcodeUDiv, ir.OpcodeSDiv,
		ir.OpcodeURem, ir.OpcodeSRem, ir.OpcodeAnd, ir.OpcodeOr, ir.OpcodeXor,
		ir.OpcodeShl, ir.OpcodeLshr, ir.OpcodeAshr,
		ir.OpcodeFAdd, ir.OpcodeFSub, ir.OpcodeFMul, ir.OpcodeFDiv:
		typ := ir.Type(w.next())
		x := w.operand(w.next())
		y := w.operand(w.next())
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsBinary(isd, typ, x, y)
		}))

	case ir.OpcodeNeg, ir.OpcodeNot, ir.OpcodeFNeg,
		ir.OpcodeTrunc, ir.OpcodeSExt, ir.OpcodeZExt,
		ir.OpcodeFpTrunc, ir.OpcodeFpExt, ir.OpcodeSitofp, ir.OpcodeUitofp,
		ir.OpcodeFptosi, ir.OpcodeFptoui, ir.OpcodeBitcast:
		typ := ir.Type(w.next())
		x := w.operand(w.next())
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsUnary(isd, typ, x)
		}))

	case ir.OpcodeIcmp:
		_ = w.next() // result type, always i8; kept for stream symmetry
		pred := ir.CmpPredicate(w.next())
		x := w.operand(w.next())
		y := w.operand(w.next())
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsIcmp(pred, x, y)
		}))

	case ir.OpcodeFcmp:
		_ = w.next()
		pred := ir.CmpPredicate(w.next())
		x := w.operand(w.next())
		y := w.operand(w.next())
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsFcmp(pred, x, y)
		}))

	case ir.OpcodeLoad:
		typ := ir.Type(w.next())
		ptr := w.operand(w.next())
		w.push(w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsLoad(typ, ptr, 0)
		}))

	case ir.OpcodeStore:
		_ = w.next() // void
		ptr := w.operand(w.next())
		val := w.operand(w.next())
		w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsStore(val, ptr, 0)
		})

	case ir.OpcodeCall, ir.OpcodeCallIndirect:
		return w.dispatchCall(isd)

	case ir.OpcodeReturn:
		_ = w.next() // void
		w.t.rs.FlushBlock()
		w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsJump(w.t.exitBB, nil)
		})

	case ir.OpcodeTrap:
		_ = w.next()
		w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsTrap()
		})

	default:
		if w.t.hooks.TranslateTargetOpcode == nil {
			return w.t.batch.Fatalf("unsupported ISD opcode %s at %#x", isd, w.mi.Address)
		}
		// The hook consumes its own type/operand cells through cur
		// (Next/NextVT/NextOperand), advancing the shared cursor exactly
		// as the generic cases above do, and pushes its result through
		// cur.PushResult.
		ok := w.t.hooks.TranslateTargetOpcode(w.t, isd, w.mi, &Cursor{w: w})
		if !ok {
			return w.t.batch.Fatalf("target hook declined ISD opcode %s at %#x", isd, w.mi.Address)
		}
	}
	return nil
}

// dispatchCall handles both direct and indirect calls: the call's sole
// argument is always the register-set aggregate pointer under this
// design's ABI (spec.md section 3.4); the operand stream carries only the callee
// address expression, as a def-number for an indirect callee or, for a
// direct callee, the constant address materialized earlier in the
// stream.
func (w *walker) dispatchCall(isd ir.Opcode) error {
	_ = w.next() // void result
	targetDef := w.operand(w.next())

	if isd == ir.OpcodeCall {
		addr, ok := constAddress(targetDef)
		if !ok {
			return w.t.batch.Fatalf("direct call target at %#x has no resolvable constant address", w.mi.Address)
		}
		callee := w.t.getFunction(addr)
		w.t.insertCall(callee)
		return nil
	}

	fnPtr := w.t.insertTranslateAt(targetDef)
	w.t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCallIndirect(fnPtr, ir.TypeVoid, []ir.Value{w.t.ctx})
	})
	w.t.insertCallBB()
	return nil
}

// constAddress recovers the literal address a direct-call target was
// materialized from, if v is an Iconst produced by MOV_CONSTANT or
// CONSTANT_OP.
func constAddress(v ir.Value) (uint64, bool) {
	instr, ok := v.(*ir.Instruction)
	if !ok || instr.Opcode() != ir.OpcodeIconst {
		return 0, false
	}
	return instr.ConstBits(), true
}
