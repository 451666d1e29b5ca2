package mir

// BasicBlock is a straight-line sequence of Statements ending in exactly
// one Terminator.
type BasicBlock struct {
	Statements []Statement
	Terminator Terminator
}

// Local describes one typed local slot: parameters occupy the first
// len(Params) slots after ReturnLocal, the rest are lowering-introduced
// temporaries and named bindings.
type Local struct {
	Name    string // source name for named locals; "" for pure temporaries
	Type    *Type
	Mutable bool
}

// Function is a single lowered function body: a typed local table plus a
// control-flow graph of basic blocks, together with the effect and
// contract metadata the checker and effect passes attach to it.
type Function struct {
	ID         FuncID
	Name       string // mangled name; see Program.NameIndex for the source name
	IsEntry    bool
	IsPublic   bool
	TypeParams []string // empty for non-generic functions and monomorphized instances
	Params     []LocalID
	ReturnType *Type
	Locals     []Local // indexed by LocalID
	Blocks     []BasicBlock
	Entry      BlockID

	Effects  EffectRow
	Contract FunctionContract

	// MonoOf/MonoArgs are set on a monomorphized instance: MonoOf is the
	// FuncID of the generic template it was instantiated from, and
	// MonoArgs is the concrete type substituted for each of the
	// template's TypeParams, in order.
	MonoOf   FuncID
	MonoArgs []*Type
	IsMono   bool
}

// NewLocal appends a fresh local and returns its LocalID.
func (f *Function) NewLocal(name string, t *Type, mutable bool) LocalID {
	id := LocalID(len(f.Locals))
	f.Locals = append(f.Locals, Local{Name: name, Type: t, Mutable: mutable})
	return id
}

// NewBlock appends a fresh, terminator-less basic block and returns its ID.
func (f *Function) NewBlock() BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, BasicBlock{})
	return id
}

// Block returns a pointer to the basic block identified by id for in-place
// mutation during lowering.
func (f *Function) Block(id BlockID) *BasicBlock {
	return &f.Blocks[id]
}
