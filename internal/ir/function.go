package ir

import "fmt"

// Signature describes a Function's parameter and result types.
type Signature struct {
	Params  []Type
	Results []Type
}

// Function is one translated machine function (spec.md section 3.4): a
// prelude, a body of basic blocks keyed by start address, and an exit
// block. External (undefined) functions carry a nil body and a Name for
// the host symbol to link against.
type Function struct {
	ref    FuncRef
	name   string
	sig    Signature
	m      *Module
	params []*Param

	blocksByAddr map[uint64]*BasicBlock
	order        []*BasicBlock
	entry        *BasicBlock
	exit         *BasicBlock

	external bool

	nextBlockID, nextInstrIDCounter int
}

// Ref returns this function's reference within its Module.
func (f *Function) Ref() FuncRef { return f.ref }

// Name returns the function's symbol name.
func (f *Function) Name() string { return f.name }

// Signature returns the function's parameter/result types.
func (f *Function) Signature() Signature { return f.sig }

// External reports whether this is a forward declaration with no body,
// i.e. a symbol resolved outside the translated module.
func (f *Function) External() bool { return f.external }

// Param returns the i-th formal parameter as a Value.
func (f *Function) Param(i int) Value { return f.params[i] }

// EntryBlock returns the function's entry block.
func (f *Function) EntryBlock() *BasicBlock { return f.entry }

// ExitBlock returns the exit block recorded on the function, or nil if
// none is recorded. Nothing in this module records one: blocks made with
// NewBlock, including the Translator's exit block, are not recorded here,
// so ExitBlock returns nil.
func (f *Function) ExitBlock() *BasicBlock { return f.exit }

// Blocks returns all basic blocks in creation order.
func (f *Function) Blocks() []*BasicBlock { return f.order }

// BlockAt returns the basic block keyed by start address, if any.
func (f *Function) BlockAt(addr uint64) (*BasicBlock, bool) {
	bb, ok := f.blocksByAddr[addr]
	return bb, ok
}

// NewBlock allocates a fresh, address-less basic block (used for the
// entry prelude, exit block, and per-call split blocks, none of which are
// keyed by a machine start address).
func (f *Function) NewBlock() *BasicBlock {
	bb := &BasicBlock{id: f.nextBlockID, fn: f}
	f.nextBlockID++
	f.order = append(f.order, bb)
	return bb
}

// GetOrCreateBlockAt returns the basic block for addr, creating and
// registering one if it does not exist yet.
func (f *Function) GetOrCreateBlockAt(addr uint64) *BasicBlock {
	if bb, ok := f.blocksByAddr[addr]; ok {
		return bb
	}
	bb := f.NewBlock()
	bb.startAddr = addr
	f.blocksByAddr[addr] = bb
	return bb
}

func (f *Function) nextInstrID() int {
	id := f.nextInstrIDCounter
	f.nextInstrIDCounter++
	return id
}

// String implements fmt.Stringer, rendering every block in creation order.
func (f *Function) String() string {
	s := fmt.Sprintf("func %s %v -> %v:\n", f.name, f.sig.Params, f.sig.Results)
	for _, bb := range f.order {
		s += bb.Name() + ":\n"
		for _, instr := range bb.Instructions() {
			s += "\t" + instr.String() + "\n"
		}
	}
	return s
}
