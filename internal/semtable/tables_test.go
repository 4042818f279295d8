package semtable

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dc-lift/dcsema/internal/constpool"
	"github.com/dc-lift/dcsema/internal/dcins"
	"github.com/dc-lift/dcsema/internal/flatten"
)

func TestBuilderReservesDummyEntryUnconditionally(t *testing.T) {
	pool := constpool.New()
	b := NewBuilder(pool)
	tables := b.Build()

	require.Equal(t, []uint32{uint32(dcins.EndOfInstruction)}, tables.SemanticsArray)
}

func TestBuilderAddAssignsDistinctOffsets(t *testing.T) {
	pool := constpool.New()
	b := NewBuilder(pool)

	s1 := &flatten.Stream{Nodes: []flatten.Node{{Op: dcins.EndOfInstruction}}}
	s2 := &flatten.Stream{Nodes: []flatten.Node{
		{Op: dcins.GetRC, Types: nil, Operands: []uint32{0}},
		{Op: dcins.EndOfInstruction},
	}}

	b.Add(1, s1)
	b.Add(2, s2)
	b.Add(3, nil) // no semantics defined for enum 3

	tables := b.Build()

	require.Len(t, tables.OpcodeToSemaIdx, 4) // enums 0..3
	require.Equal(t, uint32(0), tables.OpcodeToSemaIdx[3]) // falls back to the dummy offset
	require.NotEqual(t, tables.OpcodeToSemaIdx[1], tables.OpcodeToSemaIdx[2])
	require.NotZero(t, tables.OpcodeToSemaIdx[1])
}

func TestSnapshotRoundTrip(t *testing.T) {
	pool := constpool.New()
	pool.Intern(99)
	b := NewBuilder(pool)
	b.Add(1, &flatten.Stream{Nodes: []flatten.Node{{Op: dcins.EndOfInstruction}}})

	want := b.Build()

	data, err := Snapshot(want)
	require.NoError(t, err)

	got, err := LoadSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDumpTableRendersAllThreeSections(t *testing.T) {
	pool := constpool.New()
	b := NewBuilder(pool)
	b.Add(1, &flatten.Stream{Nodes: []flatten.Node{{Op: dcins.EndOfInstruction}}})

	out := DumpTable(b.Build())
	require.Contains(t, out, "OpcodeToSemaIdx")
	require.Contains(t, out, "SemanticsArray")
	require.Contains(t, out, "ConstantArray")
}

func TestEmitProducesValidGoSource(t *testing.T) {
	pool := constpool.New()
	pool.Intern(5)
	b := NewBuilder(pool)
	b.Add(1, &flatten.Stream{Nodes: []flatten.Node{{Op: dcins.EndOfInstruction}}})
	tables := b.Build()

	src, err := Emit(tables, "gen", true)
	require.NoError(t, err)

	_, err = parser.ParseFile(token.NewFileSet(), "gen.go", src, 0)
	require.NoError(t, err)
}
