package ir

// Module is a container of translated Functions sharing one register-set
// type (spec.md section 3.4).
type Module struct {
	Name string

	funcs    []*Function
	byName   map[string]FuncRef
	final    bool
}

// NewModule creates an empty Module.
func NewModule(name string) *Module {
	return &Module{Name: name, byName: make(map[string]FuncRef)}
}

// DeclareFunction registers a function by name and signature, returning
// its FuncRef. If name was already declared, the existing Function is
// returned instead of creating a duplicate — this is what lets the
// Translator memoize external wrapper functions and forward declarations
// for call targets discovered out of address order.
func (m *Module) DeclareFunction(name string, sig Signature, external bool) *Function {
	if ref, ok := m.byName[name]; ok {
		return m.funcs[ref]
	}
	ref := FuncRef(len(m.funcs))
	fn := &Function{
		ref: ref, name: name, sig: sig, m: m,
		blocksByAddr: make(map[uint64]*BasicBlock),
		external:     external,
	}
	for i, t := range sig.Params {
		fn.params = append(fn.params, &Param{name: "p", typ: t, n: i})
	}
	m.funcs = append(m.funcs, fn)
	m.byName[name] = ref
	if !external {
		fn.entry = fn.NewBlock()
	}
	return fn
}

// Function dereferences a FuncRef.
func (m *Module) Function(ref FuncRef) *Function { return m.funcs[ref] }

// Functions returns every function declared in the module, in declaration
// order.
func (m *Module) Functions() []*Function { return m.funcs }

// FunctionByName looks up a previously declared function by symbol name.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	ref, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.funcs[ref], true
}

// Finalize marks the module as fully translated. After this call the
// Module's Functions are considered immutable by convention (the type
// does not enforce it, matching the teacher's lack of a frozen/mutable
// distinction at the ssa.Builder level).
func (m *Module) Finalize() { m.final = true }

// Finalized reports whether Finalize has been called.
func (m *Module) Finalized() bool { return m.final }
