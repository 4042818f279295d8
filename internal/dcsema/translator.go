// Package dcsema implements the runtime half of the core: the
// Register-Set Abstraction (spec.md section 4.4), the
// Instruction-Semantics Interpreter (section 4.5), and the Function &
// Block Assembler (section 4.6), unified here as Translator — this
// module's name for spec.md's DCInstrSema.
package dcsema

import (
	"fmt"

	"github.com/dc-lift/dcsema/internal/diag"
	"github.com/dc-lift/dcsema/internal/ir"
	"github.com/dc-lift/dcsema/internal/semtable"
)

// Translator is the explicit translation context threaded through every
// operation and hook call, replacing the source's global mutable cursors
// (spec.md section 9). It is the Function & Block Assembler plus the interpreter that
// drives it: it maintains the current module/function/basic-block
// cursors and exposes the primitives spec.md section 4.6 names.
type Translator struct {
	tables semtable.Tables
	hooks  TargetHooks
	layout RegisterLayout

	dynTranslateAt DynTranslateAtFunc
	symbolNames    map[uint64]string

	mod          *ir.Module
	b            *ir.Builder
	internalAddr map[uint64]bool

	fn               *ir.Function
	mcFn             *MCFunction
	rs               *RegisterSet
	ctx              ir.Value
	exitBB           *ir.BasicBlock
	seenStart        map[uint64]bool
	pendingCallBBs   []*ir.BasicBlock
	externalWrappers map[uint64]*ir.Function

	bb   *ir.BasicBlock
	mcBB *MCBasicBlock

	batch diag.Batch
}

// New constructs a Translator over tables (the build-time emitted
// tables) and hooks (the target's capability record). layout establishes
// the register-set type for every module this Translator subsequently
// switches to.
func New(tables semtable.Tables, layout RegisterLayout, hooks TargetHooks) *Translator {
	return &Translator{
		tables:           tables,
		hooks:            hooks,
		layout:           layout,
		externalWrappers: make(map[uint64]*ir.Function),
		batch:            diag.NewBatch(),
	}
}

// SetDynTranslateAtCallback registers the host callback used to resolve
// indirect branch targets (spec.md section 6.2). It may be set before or
// after SwitchToModule, and is consulted lazily only when an indirect
// branch is actually translated (spec.md SUPPLEMENTED FEATURES item 6).
func (t *Translator) SetDynTranslateAtCallback(fn DynTranslateAtFunc) {
	t.dynTranslateAt = fn
}

// SwitchToModule establishes the register-set type and the set of
// addresses this module defines internally, distinguishing an internal
// call target from an external one for getFunction (spec.md section
// 4.6). funcs is every machine function the module will eventually
// SwitchToFunction to; symbolNames optionally names external addresses
// for wrapper synthesis.
func (t *Translator) SwitchToModule(name string, funcs []*MCFunction, symbolNames map[uint64]string) {
	t.mod = ir.NewModule(name)
	t.b = ir.NewBuilder()
	t.internalAddr = make(map[uint64]bool, len(funcs))
	for _, f := range funcs {
		t.internalAddr[f.EntryAddress] = true
	}
	t.symbolNames = symbolNames
	t.externalWrappers = make(map[uint64]*ir.Function)
}

// FinalizeModule marks the module complete and returns it.
func (t *Translator) FinalizeModule() *ir.Module {
	t.mod.Finalize()
	return t.mod
}

// Module returns the module currently under construction.
func (t *Translator) Module() *ir.Module { return t.mod }

// SwitchToFunction creates the IR function for mcfn: a single (ptr)
// parameter carrying the register-set aggregate, an entry block that
// runs initRegSet, one block per MCBasicBlock keyed by start address,
// and an exit block that will run finiRegSet and return.
func (t *Translator) SwitchToFunction(mcfn *MCFunction) {
	t.mcFn = mcfn
	sig := ir.Signature{Params: []ir.Type{ir.TypePtr}}
	fn := t.mod.DeclareFunction(mcfn.Name, sig, false)
	t.fn = fn
	t.ctx = fn.Param(0)

	t.seenStart = make(map[uint64]bool)
	t.pendingCallBBs = nil

	entry := fn.EntryBlock()
	t.b.SetCurrentBlock(entry)
	t.rs = NewRegisterSet(t.b, t.layout)
	t.rs.EnterFunction(t.ctx)

	for _, mcbb := range mcfn.Blocks {
		if t.seenStart[mcbb.StartAddress] {
			t.batch.Warn("duplicate basic block start address, first wins",
				"func", mcfn.Name, "addr", mcbb.StartAddress)
			continue
		}
		t.seenStart[mcbb.StartAddress] = true
		fn.GetOrCreateBlockAt(mcbb.StartAddress)
	}

	t.exitBB = fn.NewBlock()
	preludeTarget, ok := fn.BlockAt(mcfn.EntryAddress)
	if ok {
		t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsJump(preludeTarget, nil)
		})
	}
}

// getOrCreateBasicBlock returns the block for addr within the current
// function, creating one on demand (spec.md section 4.6).
func (t *Translator) getOrCreateBasicBlock(addr uint64) *ir.BasicBlock {
	return t.fn.GetOrCreateBlockAt(addr)
}

// SwitchToBasicBlock selects mcbb for further instruction translation.
func (t *Translator) SwitchToBasicBlock(mcbb *MCBasicBlock) {
	t.mcBB = mcbb
	bb := t.getOrCreateBasicBlock(mcbb.StartAddress)
	t.bb = bb
	t.b.SetCurrentBlock(bb)
	t.rs.EnterBlock()
}

// FinalizeBasicBlock ensures the current block ends in a terminator,
// synthesizing a fall-through jump to the successor address, or an
// unreachable terminator if there is none (spec.md section 4.6's
// tie-break for a missing fall-through target).
func (t *Translator) FinalizeBasicBlock() {
	t.rs.FlushBlock()

	if t.bb.Terminator() != nil {
		return
	}

	if t.mcBB.Fallthrough != nil {
		target := t.getOrCreateBasicBlock(*t.mcBB.Fallthrough)
		t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
			return i.AsJump(target, nil)
		})
		return
	}

	t.batch.Warn("missing fall-through target, synthesizing unreachable",
		"func", t.mcFn.Name, "block", t.mcBB.StartAddress)
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsUnreachable()
	})
}

// FinalizeFunction resolves any dangling per-call basic blocks, appends
// the exit block, and returns the completed function.
func (t *Translator) FinalizeFunction() *ir.Function {
	for _, bb := range t.pendingCallBBs {
		if bb.Terminator() == nil {
			t.b.SetCurrentBlock(bb)
			t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
				return i.AsUnreachable()
			})
		}
	}

	t.b.SetCurrentBlock(t.exitBB)
	t.rs.EnterBlock()
	t.rs.Finalize(t.ctx)
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsReturn(nil)
	})

	fn := t.fn
	t.fn, t.rs, t.mcFn, t.bb, t.mcBB, t.exitBB = nil, nil, nil, nil, nil, nil
	return fn
}

// getOrCreateMainFunction synthesizes a `main` function whose body is a
// single call into entry through the register-set protocol: allocate a
// register-set aggregate is the host's job, so main simply forwards
// whatever pointer it is given.
func (t *Translator) getOrCreateMainFunction(entry *ir.Function) *ir.Function {
	if fn, ok := t.mod.FunctionByName("main"); ok {
		return fn
	}
	main := t.mod.DeclareFunction("main", ir.Signature{Params: []ir.Type{ir.TypePtr}}, false)
	bb := main.EntryBlock()
	t.b.SetCurrentBlock(bb)
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCall(entry.Ref(), ir.TypeVoid, []ir.Value{main.Param(0)})
	})
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsReturn(nil)
	})
	return main
}

// getFunction resolves addr to an IR function, declaring an external
// wrapper on first sight if addr falls outside the module (spec.md
// section 4.5, "External targets").
func (t *Translator) getFunction(addr uint64) *ir.Function {
	name := fmt.Sprintf("fn_%x", addr)
	if fn, ok := t.mod.FunctionByName(name); ok {
		return fn
	}
	if t.internalAddr[addr] {
		return t.mod.DeclareFunction(name, ir.Signature{Params: []ir.Type{ir.TypePtr}}, false)
	}
	return t.createExternalWrapperFunction(addr)
}

// createExternalWrapperFunction synthesizes a thin wrapper for an
// address outside the decoded module: its body calls the external symbol
// declaration with the wrapper's own register-set aggregate pointer as
// the sole argument, then returns; no register is marshaled into
// separate arguments or back (spec.md section 4.5, spec.md SUPPLEMENTED FEATURES item 5:
// memoized per address so a repeatedly called external symbol gets one
// wrapper, not one per call site).
func (t *Translator) createExternalWrapperFunction(addr uint64) *ir.Function {
	if fn, ok := t.externalWrappers[addr]; ok {
		return fn
	}

	symName := t.symbolNames[addr]
	if symName == "" {
		symName = fmt.Sprintf("ext_%x", addr)
	}
	extDecl := t.mod.DeclareFunction(symName, ir.Signature{Params: []ir.Type{ir.TypePtr}}, true)

	wrapperName := fmt.Sprintf("fn_%x", addr)
	wrapper := t.mod.DeclareFunction(wrapperName, ir.Signature{Params: []ir.Type{ir.TypePtr}}, false)

	savedBB := t.b.CurrentBlock()
	t.b.SetCurrentBlock(wrapper.EntryBlock())
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCall(extDecl.Ref(), ir.TypeVoid, []ir.Value{wrapper.Param(0)})
	})
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsReturn(nil)
	})
	if savedBB != nil {
		t.b.SetCurrentBlock(savedBB)
	}

	t.externalWrappers[addr] = wrapper
	return wrapper
}

// createExternalTailCallBB synthesizes a basic block that calls the
// external wrapper for addr and returns, for a jump that targets a
// known-external tail-call address (spec.md section 4.5).
func (t *Translator) createExternalTailCallBB(addr uint64) *ir.BasicBlock {
	wrapper := t.createExternalWrapperFunction(addr)
	bb := t.fn.NewBlock()
	saved := t.b.CurrentBlock()
	t.b.SetCurrentBlock(bb)
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCall(wrapper.Ref(), ir.TypeVoid, []ir.Value{t.ctx})
	})
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsReturn(nil)
	})
	if saved != nil {
		t.b.SetCurrentBlock(saved)
	}
	return bb
}

// insertCallBB splits a call, direct or indirect, into its own basic block so that the
// return edge — the point execution resumes at once the callee returns
// — is unambiguous, per spec.md section 4.5 and SUPPLEMENTED FEATURES
// item 4. The new block becomes the current block; callers keep
// emitting the rest of the source instruction stream into it.
func (t *Translator) insertCallBB() *ir.BasicBlock {
	cont := t.fn.NewBlock()
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsJump(cont, nil)
	})
	t.b.SetCurrentBlock(cont)
	t.pendingCallBBs = append(t.pendingCallBBs, cont)
	t.bb = cont
	return cont
}

// insertCall emits a call to callee, the register-set aggregate
// pointer being the sole argument under this design's ABI (spec.md
// section 3.4: every translated function takes a pointer to the
// register-set aggregate; there is no separate argument marshaling for
// an internal call).
func (t *Translator) insertCall(callee *ir.Function) {
	t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCall(callee.Ref(), ir.TypeVoid, []ir.Value{t.ctx})
	})
	t.insertCallBB()
}

// insertTranslateAt resolves an indirect branch target to a callable IR
// value via the host callback (spec.md section 6.2), or the built-in
// two-step default if no callback was registered.
func (t *Translator) insertTranslateAt(target ir.Value) ir.Value {
	if t.dynTranslateAt != nil {
		return t.dynTranslateAt(t, target)
	}
	return t.defaultInsertTranslateAt(target)
}

// defaultInsertTranslateAt models the header comment's two-call form
// directly: `%translated_pc = FnPtr(new_pc)`, called through by the
// caller. dc.dyn_translate_at is declared once per module as an
// external symbol the host links against.
func (t *Translator) defaultInsertTranslateAt(target ir.Value) ir.Value {
	const name = "dc.dyn_translate_at"
	fn, ok := t.mod.FunctionByName(name)
	if !ok {
		fn = t.mod.DeclareFunction(name, ir.Signature{Params: []ir.Type{ir.TypeI64}, Results: []ir.Type{ir.TypePtr}}, true)
	}
	return t.b.Emit(func(i *ir.Instruction) *ir.Instruction {
		return i.AsCall(fn.Ref(), ir.TypePtr, []ir.Value{target})
	})
}
