package semtable

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// DumpTable renders t as three aligned text tables, for local inspection
// of a build's emitted tables without grepping raw arrays (spec.md
// section 4.3: "a dense integer array with human-readable comments", in
// a form meant to be paged through rather than embedded).
func DumpTable(t Tables) string {
	opIdx := table.NewWriter()
	opIdx.SetTitle("OpcodeToSemaIdx")
	opIdx.AppendHeader(table.Row{"opcode", "offset"})
	for i, v := range t.OpcodeToSemaIdx {
		opIdx.AppendRow(table.Row{i, v})
	}

	sema := table.NewWriter()
	sema.SetTitle("SemanticsArray")
	sema.AppendHeader(table.Row{"offset", "value"})
	for i, v := range t.SemanticsArray {
		sema.AppendRow(table.Row{i, v})
	}

	pool := table.NewWriter()
	pool.SetTitle("ConstantArray")
	pool.AppendHeader(table.Row{"index", "value"})
	for i, v := range t.ConstantArray {
		pool.AppendRow(table.Row{i, v})
	}

	return opIdx.Render() + "\n" + sema.Render() + "\n" + pool.Render() + "\n"
}
