package ir

// Builder positions instruction insertion at a single BasicBlock, mirroring
// the teacher's ssa.Builder.SetCurrentBlock/InsertInstruction split, but
// without the Variable/phi machinery: this IR relies on explicit
// Alloca+Load+Store for cross-block register state (the register-set
// abstraction's job), not on SSA block parameters.
type Builder struct {
	cur *BasicBlock
	pool pool
}

// NewBuilder returns a Builder with no current block.
func NewBuilder() *Builder { return &Builder{} }

// SetCurrentBlock selects bb as the insertion target for subsequent
// Allocate+Insert calls.
func (b *Builder) SetCurrentBlock(bb *BasicBlock) { b.cur = bb }

// CurrentBlock returns the block last set by SetCurrentBlock.
func (b *Builder) CurrentBlock() *BasicBlock { return b.cur }

// Allocate returns a new, unconfigured Instruction from the pool. Callers
// configure it via one of the AsXxx methods, then Insert it.
func (b *Builder) Allocate() *Instruction { return b.pool.allocate() }

// Insert appends instr to the current block.
func (b *Builder) Insert(instr *Instruction) { b.cur.Insert(instr) }

// Emit allocates, configures via cfg, inserts into the current block, and
// returns the configured instruction as a Value.
func (b *Builder) Emit(cfg func(*Instruction) *Instruction) Value {
	instr := cfg(b.Allocate())
	b.Insert(instr)
	return instr
}

// Reset clears the builder for reuse across functions/modules, matching
// the teacher's per-function Reset convention.
func (b *Builder) Reset() {
	b.cur = nil
	b.pool.reset()
}

const poolPageSize = 128

// pool is a page-allocated free-list-free pool for Instruction, grounded
// on the teacher's generic ssa.pool[T]: avoids one heap allocation per
// instruction during a translation that may emit thousands of them.
type pool struct {
	pages []*[poolPageSize]Instruction
	index int
}

func (p *pool) allocate() *Instruction {
	if p.index == poolPageSize || len(p.pages) == 0 {
		p.pages = append(p.pages, new([poolPageSize]Instruction))
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	return ret
}

func (p *pool) reset() {
	p.pages = p.pages[:0]
	p.index = poolPageSize
}
