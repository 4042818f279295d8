// Package constpool implements the flattened stream's constant pool
// (spec.md section 4.1): a dense, order-stable, deduplicating table of
// 64-bit constants referenced from a Semantics stream by index.
package constpool

import "fmt"

// Pool interns uint64 constants and hands back stable indices. Index 0 is
// reserved (spec.md section 4.1: "index 0 is reserved, matching the
// reserved-zero convention used elsewhere in the table layout") and is
// never returned by Intern; Get(0) always yields (0, nil).
type Pool struct {
	values []uint64
	index  map[uint64]int
}

// New returns an empty Pool with index 0 already reserved.
func New() *Pool {
	return &Pool{
		values: []uint64{0},
		index:  map[uint64]int{},
	}
}

// Intern returns the stable index for v, adding it to the pool on first
// sight. Interning the same value twice, even across separate Intern
// calls for separate instructions, returns the same index: the pool is
// deduplicated module-wide, not per-instruction (spec.md testable
// property 3).
func (p *Pool) Intern(v uint64) int {
	if idx, ok := p.index[v]; ok {
		return idx
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.index[v] = idx
	return idx
}

// Get returns the constant stored at idx. An out-of-range idx is a
// programmer error in the caller (a stream referencing a pool index that
// was never Intern'd) and returns an error rather than panicking, since
// callers may be validating a deserialized table of unknown provenance.
func (p *Pool) Get(idx int) (uint64, error) {
	if idx < 0 || idx >= len(p.values) {
		return 0, fmt.Errorf("constpool: index %d out of range [0,%d)", idx, len(p.values))
	}
	return p.values[idx], nil
}

// Len returns the number of entries in the pool, including the reserved
// index 0.
func (p *Pool) Len() int { return len(p.values) }

// Values returns the pool contents in index order, suitable for emitting
// as ConstantArray. The returned slice aliases the Pool's internal
// storage and must not be mutated.
func (p *Pool) Values() []uint64 { return p.values }
