package semtable

import (
	"bytes"
	"fmt"
	"go/format"

	"tlog.app/go/errors"
)

// Emit renders t as embeddable Go source declaring the three tables as
// package-level vars, the idiomatic equivalent of spec.md section 6.3's
// C++ translation-unit form. pkg names the generated file's package;
// comment, when true, annotates each entry of all three arrays with its
// decimal position (opcode, offset or index) for human inspection.
func Emit(t Tables, pkg string, comment bool) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by the semantics table emitter. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkg)

	fmt.Fprintf(&buf, "var OpcodeToSemaIdx = [%d]uint32{\n", len(t.OpcodeToSemaIdx))
	for i, v := range t.OpcodeToSemaIdx {
		if comment {
			fmt.Fprintf(&buf, "\t%d, // opcode %d\n", v, i)
		} else {
			fmt.Fprintf(&buf, "\t%d,\n", v)
		}
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(&buf, "var SemanticsArray = [%d]uint32{\n", len(t.SemanticsArray))
	for i, v := range t.SemanticsArray {
		if comment {
			fmt.Fprintf(&buf, "\t%d, // offset %d\n", v, i)
		} else {
			fmt.Fprintf(&buf, "\t%d,\n", v)
		}
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(&buf, "var ConstantArray = [%d]uint64{\n", len(t.ConstantArray))
	for i, v := range t.ConstantArray {
		if comment {
			fmt.Fprintf(&buf, "\t%d, // index %d\n", v, i)
		} else {
			fmt.Fprintf(&buf, "\t%d,\n", v)
		}
	}
	buf.WriteString("}\n")

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "format generated table source")
	}
	return out, nil
}
