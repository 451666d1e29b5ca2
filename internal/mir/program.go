package mir

// StructDef is a lowered entity declaration.
type StructDef struct {
	Name       string
	TypeParams []string
	Fields     []StructField
	Implements []string // trait names, carried through for witness-table wiring
}

// StructField is one field of a StructDef.
type StructField struct {
	Name string
	Type *Type
}

// EnumDef is a lowered enum declaration.
type EnumDef struct {
	Name       string
	TypeParams []string
	Variants   []EnumVariantDef
}

// EnumVariantDef is one variant of an EnumDef.
type EnumVariantDef struct {
	Name   string
	Fields []StructField
}

// TraitDef is a lowered trait declaration: a named set of method
// signatures a witness table must supply one FuncID per.
type TraitDef struct {
	Name    string
	Methods []string
}

// Program is the root of a lowered, checked module: every function,
// struct, enum, trait, and effect the AST declared, plus the tables
// monomorphization and codegen consult by name.
type Program struct {
	ModuleName string
	IsEntry    bool

	Functions []*Function
	Structs   []*StructDef
	Enums     []*EnumDef
	Traits    []*TraitDef
	Effects   []*EffectDef

	// NameIndex maps a function's source name to its FuncID for generic
	// templates and non-generic functions alike; monomorphized instances
	// are reachable only through MonoCache.
	NameIndex map[string]FuncID

	// MonoCache maps a monomorphization key (see internal/mono) to the
	// FuncID of the already-instantiated specialization, so repeated
	// instantiation requests for the same (generic, concrete args) pair
	// are served from cache instead of re-lowered.
	MonoCache map[string]FuncID

	// EntryFunc is the FuncID of the program's `entry function`, if any.
	EntryFunc FuncID
	HasEntry  bool

	// stringIntern deduplicates string-literal constants across the
	// program; codegen backends that want to place strings in a single
	// rodata/data segment can walk this instead of re-scanning.
	stringIntern map[string]int
	Strings      []string
}

// NewProgram creates an empty Program ready for a lowering pass to fill in.
func NewProgram(moduleName string, isEntry bool) *Program {
	return &Program{
		ModuleName:   moduleName,
		IsEntry:      isEntry,
		NameIndex:    make(map[string]FuncID),
		MonoCache:    make(map[string]FuncID),
		stringIntern: make(map[string]int),
	}
}

// AddFunction appends fn to the function table, assigns it a fresh FuncID,
// and (for non-anonymous, non-monomorphized functions) registers it in
// NameIndex.
func (p *Program) AddFunction(fn *Function) FuncID {
	id := FuncID(len(p.Functions))
	fn.ID = id
	p.Functions = append(p.Functions, fn)
	if fn.Name != "" && !fn.IsMono {
		p.NameIndex[fn.Name] = id
	}
	if fn.IsEntry {
		p.EntryFunc = id
		p.HasEntry = true
	}
	return id
}

// Func looks up a function by FuncID.
func (p *Program) Func(id FuncID) *Function { return p.Functions[id] }

// FuncByName looks up a non-generic or generic-template function by its
// declared source name.
func (p *Program) FuncByName(name string) (*Function, bool) {
	id, ok := p.NameIndex[name]
	if !ok {
		return nil, false
	}
	return p.Functions[id], true
}

// InternString returns a stable index for s within the program's string
// table, adding it on first sight.
func (p *Program) InternString(s string) int {
	if idx, ok := p.stringIntern[s]; ok {
		return idx
	}
	idx := len(p.Strings)
	p.stringIntern[s] = idx
	p.Strings = append(p.Strings, s)
	return idx
}

// StructByName looks up a struct definition by name.
func (p *Program) StructByName(name string) (*StructDef, bool) {
	for _, s := range p.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// EnumByName looks up an enum definition by name.
func (p *Program) EnumByName(name string) (*EnumDef, bool) {
	for _, e := range p.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// EffectByName looks up an effect declaration by name.
func (p *Program) EffectByName(name string) (*EffectDef, bool) {
	for _, e := range p.Effects {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}
