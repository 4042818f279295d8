package ir

import "fmt"

// Value is a typed IR value: the result of some Instruction, or a function
// parameter. Every non-void Instruction implements Value via itself.
type Value interface {
	fmt.Stringer
	Type() Type
}

// Param is a formal parameter of a Function, materialized as a Value at
// function-entry without any defining Instruction.
type Param struct {
	name string
	typ  Type
	n    int
}

// Type implements Value.
func (p *Param) Type() Type { return p.typ }

// String implements Value.
func (p *Param) String() string { return fmt.Sprintf("%%%s.%d", p.name, p.n) }

var _ Value = (*Param)(nil)
var _ Value = (*Instruction)(nil)
