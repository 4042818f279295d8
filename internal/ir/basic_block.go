package ir

import "fmt"

// BasicBlock is one IR basic block, corresponding 1:1 to a decoded machine
// basic block keyed by its start address (spec.md section 3.4).
type BasicBlock struct {
	id         int
	startAddr  uint64
	fn         *Function
	root, tail *Instruction
	preds      []*BasicBlock
}

// Name returns a debug name for this block.
func (b *BasicBlock) Name() string {
	if b == nil {
		return "blk_nil"
	}
	return fmt.Sprintf("blk%d@%#x", b.id, b.startAddr)
}

// StartAddress returns the machine-code address this block was created for.
func (b *BasicBlock) StartAddress() uint64 { return b.startAddr }

// Root returns the first instruction in the block, or nil if empty.
func (b *BasicBlock) Root() *Instruction { return b.root }

// Terminator returns the block's terminator instruction, or nil if the
// block has not yet been finalized with one.
func (b *BasicBlock) Terminator() *Instruction {
	if b.tail != nil && b.tail.IsTerminator() {
		return b.tail
	}
	return nil
}

// Preds returns the predecessor blocks recorded via AddPred.
func (b *BasicBlock) Preds() []*BasicBlock { return b.preds }

// AddPred records pred as a predecessor of this block. Duplicate start
// addresses among MCBBs are a caller-level concern (see Translator); this
// only maintains the edge list once resolved to a single representative
// *BasicBlock per start address.
func (b *BasicBlock) AddPred(pred *BasicBlock) {
	b.preds = append(b.preds, pred)
}

// Insert appends instr to the tail of this block, assigning it the next
// instruction id within the owning function.
func (b *BasicBlock) Insert(instr *Instruction) {
	instr.id = b.fn.nextInstrID()
	if b.tail != nil {
		b.tail.next = instr
		instr.prev = b.tail
	} else {
		b.root = instr
	}
	b.tail = instr
}

// Instructions returns the block's instructions in order.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.root; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}
