// Package wasmgen lowers a monomorphized mir.Program directly to a binary
// WebAssembly module, the self-emitted counterpart to internal/nativegen's
// LLVM object-file backend. It reuses the teacher's own low-level WASM
// binary-format encoder (section/LEB128/opcode plumbing, see encoding.go)
// unchanged in spirit, but retargets the generator and function compiler
// that sit on top of it from the teacher's old tree-shaped ir.Function to
// mir.Program's control-flow graph — the same retargeting nativegen applies
// on the LLVM side, expressed in WASM bytecode instead of LLVM IR.
//
// Every non-primitive value (struct, enum, array, closure, Result, Option,
// channel) is an opaque i32 handle the runtime support library linked into
// the host embedding owns; field/index access and aggregate construction
// route through imported rt_* functions exactly as they route through
// nativegen's externs (see runtime.go and DESIGN.md).
package wasmgen

import (
	"github.com/nyxlang/nyx/internal/mir"
)

// funcSig is a deduplicated WASM function type.
type funcSig struct {
	params []byte
	result byte // noResult (0) for void
}

func (s funcSig) key() string {
	k := make([]byte, 0, len(s.params)+2)
	k = append(k, s.result, '|')
	k = append(k, s.params...)
	return string(k)
}

// Backend holds the state for one lowering pass over a Program, emitting a
// single binary WASM module.
type Backend struct {
	prog *mir.Program

	sigs     []funcSig
	sigIndex map[string]uint32

	// funcIndex maps every callable (imports first, then defined
	// functions) into the single WASM function index space.
	funcIndex   map[mir.FuncID]uint32
	funcSigIdx  []uint32 // parallel to the whole index space
	importCount uint32
	defined     []*mir.Function // non-generic functions, in emission order

	stringOff map[string]int32 // interned name/string -> data-segment offset
	stringLen map[string]int32
	dataSegs  []dataSeg
	dataPtr   int32
}

type dataSeg struct {
	offset int32
	bytes  []byte
}

// NewBackend creates a WASM lowering context for prog.
func NewBackend(prog *mir.Program) *Backend {
	b := &Backend{
		prog:      prog,
		sigIndex:  make(map[string]uint32),
		funcIndex: make(map[mir.FuncID]uint32),
		stringOff: make(map[string]int32),
		stringLen: make(map[string]int32),
	}
	return b
}

// sigIdx returns the deduplicated type-section index for sig, adding it on
// first sight.
func (b *Backend) sigIdx(sig funcSig) uint32 {
	k := sig.key()
	if idx, ok := b.sigIndex[k]; ok {
		return idx
	}
	idx := uint32(len(b.sigs))
	b.sigs = append(b.sigs, sig)
	b.sigIndex[k] = idx
	return idx
}

// internData interns s into the module's data section (NUL-terminated, so a
// runtime written in a host language can also treat it as a C string) and
// returns its (offset, length) pair.
func (b *Backend) internData(s string) (int32, int32) {
	if off, ok := b.stringOff[s]; ok {
		return off, b.stringLen[s]
	}
	off := b.dataPtr
	raw := append([]byte(s), 0)
	b.dataSegs = append(b.dataSegs, dataSeg{offset: off, bytes: raw})
	b.dataPtr += int32(len(raw))
	b.stringOff[s] = off
	b.stringLen[s] = int32(len(s))
	return off, int32(len(s))
}

// Emit lowers the whole program into a binary WASM module.
func (b *Backend) Emit() ([]byte, error) {
	imports := runtimeImports()
	for _, imp := range imports {
		sig := funcSig{params: imp.params, result: imp.result}
		b.funcSigIdx = append(b.funcSigIdx, b.sigIdx(sig))
	}
	b.importCount = uint32(len(imports))

	for _, fn := range b.prog.Functions {
		if len(fn.TypeParams) > 0 {
			continue // generic templates carry no concrete locals to emit code for
		}
		idx := b.importCount + uint32(len(b.defined))
		b.defined = append(b.defined, fn)
		b.funcIndex[fn.ID] = idx

		params := make([]byte, len(fn.Params))
		for i, localID := range fn.Params {
			params[i] = wasmType(fn.Locals[localID].Type)
		}
		result := noResult
		if !isVoid(fn.ReturnType) {
			result = wasmType(fn.ReturnType)
		}
		b.funcSigIdx = append(b.funcSigIdx, b.sigIdx(funcSig{params: params, result: result}))
	}

	// Reserve data-section slots up front for the field names (and the
	// "$tag"/"$cell" markers) that assignments and aggregates reference.
	// Any other string is interned by pushStringRef on first use below.
	for _, fn := range b.defined {
		internFunctionNames(b, fn)
	}

	codeBodies := make([][]byte, len(b.defined))
	for i, fn := range b.defined {
		fc := newFuncCompiler(b, fn)
		codeBodies[i] = fc.compile()
	}

	var out []byte
	out = append(out, wasmMagic...)
	out = append(out, wasmVersion...)

	out = append(out, encodeSection(sectionType, b.encodeTypeSection())...)
	out = append(out, encodeSection(sectionImport, b.encodeImportSection(imports))...)
	out = append(out, encodeSection(sectionFunction, b.encodeFunctionSection())...)
	out = append(out, encodeSection(sectionTable, b.encodeTableSection())...)
	out = append(out, encodeSection(sectionMemory, b.encodeMemorySection())...)
	out = append(out, encodeSection(sectionExport, b.encodeExportSection())...)
	out = append(out, encodeSection(sectionElement, b.encodeElementSection())...)
	out = append(out, encodeSection(sectionCode, b.encodeCodeSection(codeBodies))...)
	out = append(out, encodeSection(sectionData, b.encodeDataSection())...)

	return out, nil
}

func (b *Backend) encodeTypeSection() []byte {
	var items []byte
	for _, sig := range b.sigs {
		entry := []byte{0x60} // func type tag
		entry = append(entry, encodeVector(len(sig.params), sig.params)...)
		if sig.result == noResult {
			entry = append(entry, encodeVector(0, nil)...)
		} else {
			entry = append(entry, encodeVector(1, []byte{sig.result})...)
		}
		items = append(items, entry...)
	}
	return encodeVector(len(b.sigs), items)
}

func (b *Backend) encodeImportSection(imports []importSig) []byte {
	var items []byte
	for i, imp := range imports {
		entry := encodeString("env")
		entry = append(entry, encodeString(imp.name)...)
		entry = append(entry, importFunc)
		entry = append(entry, encodeLEB128U(uint64(b.funcSigIdx[i]))...)
		items = append(items, entry...)
	}
	return encodeVector(len(imports), items)
}

func (b *Backend) encodeFunctionSection() []byte {
	var items []byte
	for i := range b.defined {
		items = append(items, encodeLEB128U(uint64(b.funcSigIdx[int(b.importCount)+i]))...)
	}
	return encodeVector(len(b.defined), items)
}

// encodeTableSection reserves one funcref slot per defined function, table
// slot i holding the funcref for global function index importCount+i (see
// encodeElementSection). A closure's stored function index is resolvable
// by the host embedding's Table API; perform dispatch additionally issues
// a genuine call_indirect against this same table (see funcgen.go).
func (b *Backend) encodeTableSection() []byte {
	if len(b.defined) == 0 {
		return nil
	}
	entry := []byte{funcref, 0x00} // limits: flags=0 (min only)
	entry = append(entry, encodeLEB128U(uint64(len(b.defined)))...)
	return encodeVector(1, entry)
}

func (b *Backend) encodeElementSection() []byte {
	if len(b.defined) == 0 {
		return nil
	}
	var init []byte
	init = append(init, opI32Const)
	init = append(init, encodeLEB128S(0)...)
	init = append(init, opEnd)
	var indices []byte
	for i := range b.defined {
		indices = append(indices, encodeLEB128U(uint64(b.importCount)+uint64(i))...)
	}
	entry := encodeLEB128U(0) // table index 0
	entry = append(entry, init...)
	entry = append(entry, encodeVector(len(b.defined), indices)...)
	return encodeVector(1, entry)
}

func (b *Backend) encodeMemorySection() []byte {
	pages := uint64(b.dataPtr)/65536 + 1
	entry := []byte{0x00} // flags: min only
	entry = append(entry, encodeLEB128U(pages)...)
	return encodeVector(1, entry)
}

func (b *Backend) encodeExportSection() []byte {
	var items []byte
	count := 0
	items = append(items, encodeString("memory")...)
	items = append(items, exportMemory)
	items = append(items, encodeLEB128U(0)...)
	count++
	if len(b.defined) > 0 {
		items = append(items, encodeString("table")...)
		items = append(items, exportTable)
		items = append(items, encodeLEB128U(0)...)
		count++
	}
	if b.prog.HasEntry {
		if idx, ok := b.funcIndex[b.prog.EntryFunc]; ok {
			items = append(items, encodeString("nyx_entry")...)
			items = append(items, exportFunc)
			items = append(items, encodeLEB128U(uint64(idx))...)
			count++
		}
	}
	for _, fn := range b.defined {
		if !fn.IsPublic || fn.IsEntry {
			continue
		}
		items = append(items, encodeString(fn.Name)...)
		items = append(items, exportFunc)
		items = append(items, encodeLEB128U(uint64(b.funcIndex[fn.ID]))...)
		count++
	}
	return encodeVector(count, items)
}

func (b *Backend) encodeCodeSection(bodies [][]byte) []byte {
	var items []byte
	for _, body := range bodies {
		items = append(items, encodeLEB128U(uint64(len(body)))...)
		items = append(items, body...)
	}
	return encodeVector(len(bodies), items)
}

func (b *Backend) encodeDataSection() []byte {
	var items []byte
	for _, seg := range b.dataSegs {
		entry := encodeLEB128U(0) // memory index 0
		entry = append(entry, opI32Const)
		entry = append(entry, encodeLEB128S(int64(seg.offset))...)
		entry = append(entry, opEnd)
		entry = append(entry, encodeVector(len(seg.bytes), seg.bytes)...)
		items = append(items, entry...)
	}
	return encodeVector(len(b.dataSegs), items)
}

// internFunctionNames walks fn's statements once, interning the field names
// of assignment targets and aggregates, plus "$tag" for enum variants and
// "$cell" for dereferences. Terminators are not walked; strings such as
// "$vtable" or string constants are interned by pushStringRef when the
// code-section pass first needs them.
func internFunctionNames(b *Backend, fn *mir.Function) {
	for _, blk := range fn.Blocks {
		for _, s := range blk.Statements {
			if as, ok := s.(mir.AssignStatement); ok {
				internPlaceNames(b, as.Target)
				if agg, ok := as.Value.(mir.AggregateRvalue); ok {
					for _, n := range agg.FieldNames {
						b.internData(n)
					}
					if agg.Kind == mir.AggregateEnumVariant {
						b.internData("$tag")
					}
				}
			}
		}
	}
}

func internPlaceNames(b *Backend, p mir.Place) {
	for _, elem := range p.Projection {
		switch e := elem.(type) {
		case mir.Field:
			b.internData(e.Name)
		case mir.Deref:
			b.internData(refCellField)
		}
	}
}

