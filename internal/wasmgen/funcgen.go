package wasmgen

import (
	"fmt"

	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// funcCompiler lowers one mir.Function into a WASM function body.
//
// WASM only allows structured control flow (block/loop/br/br_if), while
// mir.Function is an arbitrary control-flow graph of goto/switch/call-with-
// successor edges. Rather than a full Relooper, funcCompiler uses the
// standard "dispatch loop" technique: one extra __block local holds the
// index of the basic block to run next, an outer loop wraps one nested
// WASM block per mir.BasicBlock, and a br_table at the innermost point
// jumps into the right nesting level; falling off any case's code re-enters
// the loop (by branching to it, which WASM treats as "continue") after the
// case stores its successor into __block. Every basic block this produces
// code for is reducible by construction (mir's own lowering only ever
// emits goto/switch/call-edges the way a structured if/while/match/try
// compiles to), but the dispatch loop does not depend on that — it handles
// an arbitrary CFG.
type funcCompiler struct {
	b  *Backend
	fn *mir.Function

	wasmIdx     map[mir.LocalID]uint32
	blockLocal  uint32
	scratchI32  uint32
	scratch2I32 uint32
	numNonParam int

	code []byte

	// curDepthToLoop is the WASM branch depth, from the current emission
	// point, back to the dispatch loop's own label. It is the single
	// source of truth emitGoto uses; every transient block/if/loop opened
	// while compiling a case's body increments it on entry and decrements
	// it on exit.
	curDepthToLoop int
}

// refCellField is the well-known field name a mutable capture's reference
// cell stores its value under (see the Deref cases in loadPlace/storePlace).
const refCellField = "$cell"

func newFuncCompiler(b *Backend, fn *mir.Function) *funcCompiler {
	fc := &funcCompiler{b: b, fn: fn, wasmIdx: make(map[mir.LocalID]uint32)}
	fc.assignLocals()
	return fc
}

// assignLocals lays out the WASM local-index space: fn.Params first (in
// declared order, since WASM func params occupy indices 0..len(params)-1),
// then every other mir.Local in ascending LocalID order (including
// ReturnLocal), then three compiler-introduced locals (__block, and two
// scratch i32 cells select and perform-dispatch lowering reuse).
func (fc *funcCompiler) assignLocals() {
	isParam := make(map[mir.LocalID]bool, len(fc.fn.Params))
	for i, id := range fc.fn.Params {
		fc.wasmIdx[id] = uint32(i)
		isParam[id] = true
	}
	next := uint32(len(fc.fn.Params))
	for id := range fc.fn.Locals {
		lid := mir.LocalID(id)
		if isParam[lid] {
			continue
		}
		fc.wasmIdx[lid] = next
		next++
		fc.numNonParam++
	}
	fc.blockLocal = next
	next++
	fc.scratchI32 = next
	next++
	fc.scratch2I32 = next
}

func (fc *funcCompiler) localType(id mir.LocalID) byte {
	return wasmType(fc.fn.Locals[id].Type)
}

// compile returns fn's complete WASM function body: the locals declaration
// vector followed by the instruction stream.
func (fc *funcCompiler) compile() []byte {
	var localsDecl []byte
	count := fc.numNonParam + 3 // + __block + scratch + scratch2
	for id := range fc.fn.Locals {
		lid := mir.LocalID(id)
		if _, isParam := indexOf(fc.fn.Params, lid); isParam {
			continue
		}
		localsDecl = append(localsDecl, encodeLEB128U(1)...)
		localsDecl = append(localsDecl, fc.localType(lid))
	}
	localsDecl = append(localsDecl, encodeLEB128U(1)...)
	localsDecl = append(localsDecl, valI32) // __block
	localsDecl = append(localsDecl, encodeLEB128U(1)...)
	localsDecl = append(localsDecl, valI32) // scratch
	localsDecl = append(localsDecl, encodeLEB128U(1)...)
	localsDecl = append(localsDecl, valI32) // scratch2

	fc.emitDispatchLoop()
	fc.code = append(fc.code, opEnd) // function end

	out := encodeVector(count, localsDecl)
	out = append(out, fc.code...)
	return out
}

func indexOf(ids []mir.LocalID, target mir.LocalID) (int, bool) {
	for i, id := range ids {
		if id == target {
			return i, true
		}
	}
	return 0, false
}

func (fc *funcCompiler) emit(b ...byte)     { fc.code = append(fc.code, b...) }
func (fc *funcCompiler) emitU32(v uint32)   { fc.code = append(fc.code, encodeLEB128U(uint64(v))...) }
func (fc *funcCompiler) emitS64(v int64)    { fc.code = append(fc.code, encodeLEB128S(v)...) }
func (fc *funcCompiler) emitF64(v float64)  { fc.code = append(fc.code, encodeF64(v)...) }
func (fc *funcCompiler) emitLocalGet(i uint32) { fc.emit(opLocalGet); fc.emitU32(i) }
func (fc *funcCompiler) emitLocalSet(i uint32) { fc.emit(opLocalSet); fc.emitU32(i) }
func (fc *funcCompiler) emitConstI32(v int32) { fc.emit(opI32Const); fc.emitS64(int64(v)) }
func (fc *funcCompiler) emitConstI64(v int64) { fc.emit(opI64Const); fc.emitS64(v) }

func (fc *funcCompiler) emitCallImport(name string) {
	for i, imp := range runtimeImports() {
		if imp.name == name {
			fc.emit(opCall)
			fc.emitU32(uint32(i))
			return
		}
	}
	panic("wasmgen: undeclared runtime import " + name)
}

func (fc *funcCompiler) emitCallDirect(id mir.FuncID) {
	idx, ok := fc.b.funcIndex[id]
	if !ok {
		panic(fmt.Sprintf("wasmgen: call to unresolved direct function %d (missing monomorphization?)", id))
	}
	fc.emit(opCall)
	fc.emitU32(idx)
}

// pushStringRef pushes the NUL-terminated linear-memory offset of an
// already-interned string.
func (fc *funcCompiler) pushStringRef(s string) {
	off, ok := fc.b.stringOff[s]
	if !ok {
		off, _ = fc.b.internData(s)
	}
	fc.emitConstI32(off)
}

// emitGoto stores target into __block and branches back to the dispatch
// loop, the WASM analogue of nativegen's CreateBr to a mir.BlockID.
func (fc *funcCompiler) emitGoto(target mir.BlockID) {
	fc.emitConstI32(int32(target))
	fc.emitLocalSet(fc.blockLocal)
	fc.emit(opBr)
	fc.emitU32(uint32(fc.curDepthToLoop))
}

// emitDispatchLoop builds the nested-block/br_table CFG dispatcher and
// lowers every basic block's statements and terminator inside it.
func (fc *funcCompiler) emitDispatchLoop() {
	n := len(fc.fn.Blocks)

	fc.emitConstI32(int32(fc.fn.Entry))
	fc.emitLocalSet(fc.blockLocal)

	if n == 0 {
		return
	}

	fc.emit(opLoop, blockVoid)
	for i := n - 1; i >= 0; i-- {
		fc.emit(opBlock, blockVoid)
	}

	// Blocks were opened outermost-to-innermost in index order n-1..0, so
	// block_i is the i-th-innermost construct at this point: branching with
	// label i lands right after block_i's own end, which is exactly where
	// case i's code begins below.
	fc.emitLocalGet(fc.blockLocal)
	fc.emit(opBrTable)
	fc.emitU32(uint32(n))
	for i := 0; i < n; i++ {
		fc.emitU32(uint32(i))
	}
	fc.emitU32(uint32(n - 1)) // default: defensive, never hit for well-formed __block values

	for i := 0; i < n; i++ {
		fc.emit(opEnd) // closes block_i; case i's code starts here
		fc.curDepthToLoop = n - 1 - i
		fc.compileBlock(mir.BlockID(i), fc.fn.Blocks[i])
	}
	fc.emit(opEnd) // closes the dispatch loop
}

func (fc *funcCompiler) compileBlock(id mir.BlockID, blk mir.BasicBlock) {
	for _, s := range blk.Statements {
		fc.compileStatement(s)
	}
	fc.compileTerminator(blk.Terminator)
}

// --- places -----------------------------------------------------------

func (fc *funcCompiler) loadPlace(p mir.Place, t *mir.Type) {
	root := fc.wasmIdx[p.Local]
	if len(p.Projection) == 0 {
		fc.emitLocalGet(root)
		return
	}
	fc.emitLocalGet(root)
	for i, elem := range p.Projection {
		last := i == len(p.Projection)-1
		switch e := elem.(type) {
		case mir.Field:
			fc.pushStringRef(e.Name)
			fc.emitCallImport("rt_field_get")
			if last {
				fc.unbox(t)
				return
			}
			fc.unbox(e.Type)
		case mir.Index:
			fc.compileOperand(e.Index)
			fc.emitCallImport("rt_array_get")
			if last {
				fc.unbox(t)
				return
			}
			fc.unbox(e.Type)
		case mir.Deref:
			// WASM locals have no address the way a native stack slot does,
			// so a mutable capture's reference is, on this backend, an
			// ordinary one-field runtime struct cell rather than a raw
			// pointer: dereferencing it is just another named-field read
			// (see DESIGN.md for why this differs from nativegen's direct
			// pointer load here).
			fc.pushStringRef(refCellField)
			fc.emitCallImport("rt_field_get")
			if last {
				fc.unbox(t)
				return
			}
			fc.unbox(e.Type)
		}
	}
}

func (fc *funcCompiler) storePlace(p mir.Place, t *mir.Type, pushValue func()) {
	root := fc.wasmIdx[p.Local]
	if len(p.Projection) == 0 {
		pushValue()
		fc.emitLocalSet(root)
		return
	}

	fc.emitLocalGet(root)
	for i := 0; i < len(p.Projection)-1; i++ {
		switch e := p.Projection[i].(type) {
		case mir.Field:
			fc.pushStringRef(e.Name)
			fc.emitCallImport("rt_field_get")
			fc.unbox(e.Type)
		case mir.Index:
			fc.compileOperand(e.Index)
			fc.emitCallImport("rt_array_get")
			fc.unbox(e.Type)
		}
	}

	switch e := p.Projection[len(p.Projection)-1].(type) {
	case mir.Field:
		fc.pushStringRef(e.Name)
		pushValue()
		fc.box(t)
		fc.emitCallImport("rt_field_set")
	case mir.Index:
		fc.compileOperand(e.Index)
		pushValue()
		fc.box(t)
		fc.emitCallImport("rt_array_set")
	case mir.Deref:
		// See the matching case in loadPlace: a mutable capture's reference
		// is a one-field runtime struct cell, so storing through it is an
		// ordinary named-field write.
		fc.pushStringRef(refCellField)
		pushValue()
		fc.box(t)
		fc.emitCallImport("rt_field_set")
	}
}

func (fc *funcCompiler) placeBaseType(p mir.Place) *mir.Type {
	return fc.fn.Locals[p.Local].Type
}

func (fc *funcCompiler) box(t *mir.Type)   { fc.code = emitToWord(fc.code, t) }
func (fc *funcCompiler) unbox(t *mir.Type) { fc.code = emitFromWord(fc.code, t) }

// --- operands -----------------------------------------------------------

func operandType(op mir.Operand) *mir.Type {
	switch o := op.(type) {
	case mir.Constant:
		return o.Type
	case mir.Copy:
		return o.Type
	case mir.Move:
		return o.Type
	default:
		return mir.TypeVoid
	}
}

func (fc *funcCompiler) compileOperand(op mir.Operand) {
	switch o := op.(type) {
	case mir.Constant:
		fc.compileConstant(o)
	case mir.Copy:
		fc.loadPlace(o.Place, o.Type)
	case mir.Move:
		fc.loadPlace(o.Place, o.Type)
	default:
		panic(fmt.Sprintf("wasmgen: unknown operand %T", op))
	}
}

func (fc *funcCompiler) compileConstant(c mir.Constant) {
	switch c.Kind {
	case mir.ConstInt:
		fc.emitConstI64(c.Int)
	case mir.ConstFloat:
		var f float64
		fmt.Sscanf(c.Float, "%g", &f)
		fc.emit(opF64Const)
		fc.emitF64(f)
	case mir.ConstBool:
		v := int32(0)
		if c.Bool {
			v = 1
		}
		fc.emitConstI32(v)
	case mir.ConstString:
		fc.pushStringRef(c.Str)
	default:
		panic("wasmgen: unknown constant kind")
	}
}

// --- statements -----------------------------------------------------------

func (fc *funcCompiler) compileStatement(s mir.Statement) {
	switch st := s.(type) {
	case mir.AssignStatement:
		t := fc.placeBaseType(st.Target)
		fc.storePlace(st.Target, t, func() { fc.compileRvalue(st.Value, t) })
	case mir.StorageLiveStatement, mir.StorageDeadStatement:
		// WASM locals live for the whole function; nothing to do.
	case mir.DropStatement:
		// Channel/task handle release is a runtime-side refcount decrement;
		// nothing to emit at the drop point itself.
	case mir.InstallHandlerStatement:
		fc.compileInstallHandler(st)
	case mir.UninstallHandlerStatement:
		fc.compileUninstallHandler(st)
	case mir.CaptureContinuationStatement, mir.CloneContinuationStatement, mir.FfiBarrierStatement:
		// Full one-shot continuation capture and FFI-boundary effect
		// barriers are reserved in the data model but not yet wired to any
		// lowering path. Reaching one here is a compiler defect, not a
		// reachable program state, so it traps instead of miscompiling.
		fc.pushStringRef("continuation capture not implemented")
		fc.emitCallImport("rt_panic")
	default:
		panic(fmt.Sprintf("wasmgen: unknown statement %T", s))
	}
}

// handlerVTableField names the single field of a handler record that
// holds its operation vtable: an rt_array of table-relative function
// indices, indexed by each operation's declared ordinal within its effect.
const handlerVTableField = "$vtable"

// compileInstallHandler builds a handler record — a vtable of the handled
// effect's operation function indices plus a 1-field struct pointing at
// it — and writes its handle into the evidence vector's slot for this
// effect, stashing whatever handle was there before so UninstallHandler
// can restore it.
func (fc *funcCompiler) compileInstallHandler(st mir.InstallHandlerStatement) {
	numOps := len(st.Operations)
	if def, ok := fc.b.prog.EffectByName(st.Effect); ok {
		numOps = len(def.Operations)
	}
	fc.emitConstI64(int64(numOps))
	fc.emitCallImport("rt_array_new")
	fc.emitLocalSet(fc.scratchI32) // vtable handle

	for i, opName := range st.Operations {
		idx := operationIndex(fc.b.prog, st.Effect, opName)
		fnIdx, ok := fc.b.funcIndex[st.Handlers[i]]
		if !ok {
			panic(fmt.Sprintf("wasmgen: unresolved handler function id %d", st.Handlers[i]))
		}
		// The function table is populated with one funcref per defined
		// function starting at importCount; a call_indirect operand (what
		// the vtable ultimately feeds) must be that table-relative index,
		// not the global function index rt_closure_new expects elsewhere.
		tblIdx := int32(fnIdx) - int32(fc.b.importCount)
		fc.emitLocalGet(fc.scratchI32)
		fc.emitConstI64(idx)
		fc.emitConstI32(tblIdx)
		fc.box(&mir.Type{Kind: mir.KindStruct})
		fc.emitCallImport("rt_array_set")
	}

	fc.emitConstI64(1)
	fc.emitCallImport("rt_struct_new")
	fc.emitLocalSet(fc.scratch2I32) // handler record handle

	fc.emitLocalGet(fc.scratch2I32)
	fc.pushStringRef(handlerVTableField)
	fc.emitLocalGet(fc.scratchI32)
	fc.box(&mir.Type{Kind: mir.KindArray})
	fc.emitCallImport("rt_field_set")

	fc.compileOperand(st.Evidence)
	fc.emitConstI64(int64(st.EvidenceSlot))
	fc.emitCallImport("rt_array_get") // prev handler word, already i64
	fc.emitLocalSet(fc.wasmIdx[st.PrevLocal])

	fc.compileOperand(st.Evidence)
	fc.emitConstI64(int64(st.EvidenceSlot))
	fc.emitLocalGet(fc.scratch2I32)
	fc.box(&mir.Type{Kind: mir.KindStruct})
	fc.emitCallImport("rt_array_set")
}

// compileUninstallHandler restores the evidence slot this effect's handler
// occupied before InstallHandler ran, scoping nested handlers correctly.
func (fc *funcCompiler) compileUninstallHandler(st mir.UninstallHandlerStatement) {
	fc.compileOperand(st.Evidence)
	fc.emitConstI64(int64(st.EvidenceSlot))
	fc.emitLocalGet(fc.wasmIdx[st.PrevLocal]) // already i64, no box needed
	fc.emitCallImport("rt_array_set")
}

// --- rvalues -----------------------------------------------------------

func (fc *funcCompiler) compileRvalue(r mir.Rvalue, t *mir.Type) {
	switch rv := r.(type) {
	case mir.UseRvalue:
		fc.compileOperand(rv.Operand)
	case mir.BinaryOpRvalue:
		fc.compileBinaryOp(rv)
	case mir.UnaryOpRvalue:
		fc.compileUnaryOp(rv)
	case mir.AggregateRvalue:
		fc.compileAggregate(rv)
	case mir.CallPureRvalue:
		fc.compileCallPure(rv)
	default:
		panic(fmt.Sprintf("wasmgen: unknown rvalue %T", r))
	}
}

func (fc *funcCompiler) compileBinaryOp(rv mir.BinaryOpRvalue) {
	isFloat := operandType(rv.Left) != nil && operandType(rv.Left).Kind == mir.KindFloat
	fc.compileOperand(rv.Left)
	fc.compileOperand(rv.Right)

	switch rv.Op {
	case lexer.PLUS:
		if isFloat {
			fc.emit(opF64Add)
		} else {
			fc.emit(opI64Add)
		}
	case lexer.MINUS:
		if isFloat {
			fc.emit(opF64Sub)
		} else {
			fc.emit(opI64Sub)
		}
	case lexer.STAR:
		if isFloat {
			fc.emit(opF64Mul)
		} else {
			fc.emit(opI64Mul)
		}
	case lexer.SLASH:
		if isFloat {
			fc.emit(opF64Div)
		} else {
			fc.emit(opI64DivS)
		}
	case lexer.PERCENT:
		fc.emit(opI64RemS)
	case lexer.EQ:
		if isFloat {
			fc.emit(opF64Eq)
		} else {
			fc.emit(opI64Eq)
		}
	case lexer.NEQ:
		if isFloat {
			fc.emit(opF64Ne)
		} else {
			fc.emit(opI64Ne)
		}
	case lexer.LT:
		if isFloat {
			fc.emit(opF64Lt)
		} else {
			fc.emit(opI64LtS)
		}
	case lexer.GT:
		if isFloat {
			fc.emit(opF64Gt)
		} else {
			fc.emit(opI64GtS)
		}
	case lexer.LEQ:
		if isFloat {
			fc.emit(opF64Le)
		} else {
			fc.emit(opI64LeS)
		}
	case lexer.GEQ:
		if isFloat {
			fc.emit(opF64Ge)
		} else {
			fc.emit(opI64GeS)
		}
	case lexer.AND:
		fc.emit(opI32And)
	case lexer.OR:
		fc.emit(opI32Or)
	default:
		panic(fmt.Sprintf("wasmgen: unsupported binary operator %v", rv.Op))
	}
}

func (fc *funcCompiler) compileUnaryOp(rv mir.UnaryOpRvalue) {
	switch rv.Op {
	case lexer.MINUS:
		if operandType(rv.Operand).Kind == mir.KindFloat {
			fc.compileOperand(rv.Operand)
			fc.emit(opF64Neg)
		} else {
			fc.emitConstI64(0)
			fc.compileOperand(rv.Operand)
			fc.emit(opI64Sub)
		}
	case lexer.NOT:
		fc.compileOperand(rv.Operand)
		fc.emit(opI32Eqz)
	default:
		panic(fmt.Sprintf("wasmgen: unsupported unary operator %v", rv.Op))
	}
}

func (fc *funcCompiler) compileAggregate(rv mir.AggregateRvalue) {
	switch rv.Kind {
	case mir.AggregateArray:
		fc.emitConstI64(int64(len(rv.Fields)))
		fc.emitCallImport("rt_array_new")
		fc.emitLocalSet(fc.scratchI32)
		for i, f := range rv.Fields {
			fc.emitLocalGet(fc.scratchI32)
			fc.emitConstI64(int64(i))
			fc.compileOperand(f)
			fc.box(operandType(f))
			fc.emitCallImport("rt_array_set")
		}
		fc.emitLocalGet(fc.scratchI32)

	case mir.AggregateStruct:
		fc.emitConstI64(int64(len(rv.Fields)))
		fc.emitCallImport("rt_struct_new")
		fc.emitLocalSet(fc.scratchI32)
		for i, name := range rv.FieldNames {
			fc.emitLocalGet(fc.scratchI32)
			fc.pushStringRef(name)
			fc.compileOperand(rv.Fields[i])
			fc.box(operandType(rv.Fields[i]))
			fc.emitCallImport("rt_field_set")
		}
		fc.emitLocalGet(fc.scratchI32)

	case mir.AggregateEnumVariant:
		fc.emitConstI64(int64(len(rv.Fields) + 1))
		fc.emitCallImport("rt_struct_new")
		fc.emitLocalSet(fc.scratchI32)
		fc.emitLocalGet(fc.scratchI32)
		fc.pushStringRef("$tag")
		fc.emitConstI64(variantTag(fc.b.prog, rv.TypeName, rv.VariantName))
		fc.emitCallImport("rt_field_set")
		for i, name := range rv.FieldNames {
			fc.emitLocalGet(fc.scratchI32)
			fc.pushStringRef(name)
			fc.compileOperand(rv.Fields[i])
			fc.box(operandType(rv.Fields[i]))
			fc.emitCallImport("rt_field_set")
		}
		fc.emitLocalGet(fc.scratchI32)

	case mir.AggregateClosure:
		fc.emitConstI64(int64(len(rv.Fields)))
		fc.emitCallImport("rt_struct_new")
		fc.emitLocalSet(fc.scratchI32)
		for i, name := range rv.FieldNames {
			fc.emitLocalGet(fc.scratchI32)
			fc.pushStringRef(name)
			fc.compileOperand(rv.Fields[i])
			fc.box(operandType(rv.Fields[i]))
			fc.emitCallImport("rt_field_set")
		}
		fnIdx, ok := fc.b.funcIndex[rv.ClosureFunc]
		if !ok {
			panic(fmt.Sprintf("wasmgen: unresolved closure function id %d", rv.ClosureFunc))
		}
		fc.emitConstI32(int32(fnIdx))
		fc.emitLocalGet(fc.scratchI32)
		fc.emitCallImport("rt_closure_new")

	case mir.AggregateEvidenceVector:
		fc.emitConstI64(int64(rv.Count))
		fc.emitCallImport("rt_array_new")

	default:
		panic("wasmgen: unknown aggregate kind")
	}
}

func (fc *funcCompiler) pushArgsArray(args []mir.Operand) {
	fc.emitConstI64(int64(len(args)))
	fc.emitCallImport("rt_array_new")
	fc.emitLocalSet(fc.scratchI32)
	for i, a := range args {
		fc.emitLocalGet(fc.scratchI32)
		fc.emitConstI64(int64(i))
		fc.compileOperand(a)
		fc.box(operandType(a))
		fc.emitCallImport("rt_array_set")
	}
	fc.emitLocalGet(fc.scratchI32)
}

func (fc *funcCompiler) compileCallPure(rv mir.CallPureRvalue) {
	switch rv.Func.Direct {
	case mir.BuiltinPrint:
		arg := rv.Args[0]
		t := operandType(arg)
		fc.compileOperand(arg)
		switch {
		case t != nil && t.Kind == mir.KindFloat:
			fc.emitCallImport("rt_print_float")
		case t != nil && t.Kind == mir.KindBool:
			fc.emitCallImport("rt_print_bool")
		case t != nil && t.Kind == mir.KindString:
			fc.emitCallImport("rt_print_string")
		default:
			fc.emitCallImport("rt_print_int")
		}
		return
	case mir.BuiltinArrayLen:
		fc.compileOperand(rv.Args[0])
		fc.emitCallImport("rt_array_len")
		return
	case mir.BuiltinArrayPush:
		fc.compileOperand(rv.Args[0])
		fc.compileOperand(rv.Args[1])
		fc.box(operandType(rv.Args[1]))
		fc.emitCallImport("rt_array_push")
		return
	}

	if rv.Func.Indirect != nil {
		fc.loadPlace(*rv.Func.Indirect, mir.Closure(nil, nil))
		fc.pushArgsArray(rv.Args)
		fc.emitCallImport("rt_closure_call")
		fc.unbox(rv.Type)
		return
	}

	for _, a := range rv.Args {
		fc.compileOperand(a)
	}
	fc.emitCallDirect(rv.Func.Direct)
}

// --- terminators -----------------------------------------------------------

func (fc *funcCompiler) compileTerminator(term mir.Terminator) {
	switch t := term.(type) {
	case mir.GotoTerminator:
		fc.emitGoto(t.Target)

	case mir.ReturnTerminator:
		if isVoid(fc.fn.ReturnType) {
			fc.emit(opReturn)
			return
		}
		fc.emitLocalGet(fc.wasmIdx[mir.ReturnLocal])
		fc.emit(opReturn)

	case mir.UnreachableTerminator:
		fc.emit(opUnreachable)

	case mir.SwitchIntTerminator:
		discIsI64 := operandType(t.Discriminant) != nil && operandType(t.Discriminant).Kind == mir.KindInt
		for _, c := range t.Cases {
			fc.compileOperand(t.Discriminant)
			if discIsI64 {
				fc.toI32Disc()
			}
			fc.emitConstI32(int32(c.Value))
			fc.emit(opI32Eq)
			fc.emit(opIf, blockVoid)
			fc.curDepthToLoop++
			fc.emitGoto(c.Target)
			fc.curDepthToLoop--
			fc.emit(opEnd)
		}
		fc.emitGoto(t.Default)

	case mir.CallTerminator:
		fc.compileCallTerminator(t)

	case mir.SpawnTerminator:
		// rt_spawn returns the new task's id directly as an i64, already
		// in TaskId/Int's natural representation (nothing to unbox).
		fc.compileOperand(t.Closure)
		fc.emitLocalSet(fc.scratchI32)
		fc.emitLocalGet(fc.scratchI32)
		fc.emitCallImport("rt_closure_func")
		fc.emitLocalGet(fc.scratchI32)
		fc.emitCallImport("rt_closure_env")
		fc.emitCallImport("rt_spawn")
		fc.storeSuspendResult(t.Destination, nil)
		fc.emitGoto(t.Target)

	case mir.AwaitTerminator:
		fc.compileOperand(t.Task)
		fc.emitCallImport("rt_await")
		fc.storeSuspendResult(t.Destination, fc.placeBaseType(t.Destination))
		fc.emitGoto(t.Target)

	case mir.YieldTerminator:
		fc.emitCallImport("rt_yield")
		fc.emitGoto(t.Target)

	case mir.ChanRecvTerminator:
		fc.compileOperand(t.Chan)
		fc.emitCallImport("rt_chan_recv")
		fc.emitLocalSet(fc.wasmIdx[t.Destination.Local])
		fc.emitGoto(t.Target)

	case mir.ChanSendTerminator:
		fc.compileOperand(t.Chan)
		fc.compileOperand(t.Value)
		fc.box(operandType(t.Value))
		fc.emitCallImport("rt_chan_send")
		fc.emitGoto(t.Target)

	case mir.SelectTerminator:
		fc.compileSelect(t)

	default:
		panic(fmt.Sprintf("wasmgen: unknown terminator %T", term))
	}
}

// toI32Disc narrows an Int-typed discriminant operand (an enum/Result/
// Option tag field, always read out as a boxed-then-unboxed i64 word) into
// the i32 SwitchIntTerminator case values compare against. Bool-typed
// discriminants (plain if/while conditions) are already i32 and skip this
// — see the discIsI64 check at the call site.
func (fc *funcCompiler) toI32Disc() { fc.emit(opI32WrapI64) }

// storeSuspendResult stores a value already on the stack into dest, a bare
// local (every suspending terminator's Destination is, by construction,
// never a projected place). When t is non-nil the value is a boxed i64
// word and gets unboxed to t first; t is nil when the runtime call already
// returns the value in its natural representation (e.g. rt_spawn's task
// id, already Int-shaped).
func (fc *funcCompiler) storeSuspendResult(dest mir.Place, t *mir.Type) {
	if len(dest.Projection) != 0 {
		panic("wasmgen: suspend-result destination with field projection unsupported")
	}
	if t != nil {
		fc.unbox(t)
	}
	fc.emitLocalSet(fc.wasmIdx[dest.Local])
}

func (fc *funcCompiler) compileCallTerminator(t mir.CallTerminator) {
	if t.PerformEffect != "" {
		fc.compilePerformDispatch(t)
		return
	}

	for _, a := range t.Args {
		fc.compileOperand(a)
	}
	fc.emitCallDirect(t.Func.Direct)
	retType := fc.calleeReturnType(t.Func.Direct)
	if !isVoid(retType) {
		fc.emitLocalSet(fc.wasmIdx[t.Destination.Local])
	}
	fc.emitGoto(t.Target)
}

// compilePerformDispatch emits the tail-resumptive evidence/vtable/
// call_indirect sequence a `perform Effect.op(args)` compiles to: load the
// handler record from the evidence vector's slot, load its vtable, load
// the operation's table-relative function index out of the vtable at its
// declared ordinal, and call_indirect it with the handler record itself as
// the leading ("self") argument. The call site's signature is statically
// known (self plus the operation's declared args), so — unlike a closure
// call, whose captured-environment shape isn't known at any one call
// site — a genuine call_indirect is possible here instead of bouncing
// through rt_closure_call.
func (fc *funcCompiler) compilePerformDispatch(t mir.CallTerminator) {
	fc.compileOperand(t.PerformEvidence)
	fc.emitConstI64(int64(t.PerformEvidenceSlot))
	fc.emitCallImport("rt_array_get")
	fc.unbox(&mir.Type{Kind: mir.KindStruct})
	fc.emitLocalSet(fc.scratchI32) // handler record handle ("self")

	fc.emitLocalGet(fc.scratchI32)
	fc.pushStringRef(handlerVTableField)
	fc.emitCallImport("rt_field_get")
	fc.unbox(&mir.Type{Kind: mir.KindArray})
	fc.emitLocalSet(fc.scratch2I32) // vtable handle

	fc.emitLocalGet(fc.scratchI32) // self
	for _, a := range t.Args {
		fc.compileOperand(a)
	}

	fc.emitLocalGet(fc.scratch2I32)
	fc.emitConstI64(int64(t.PerformOpIndex))
	fc.emitCallImport("rt_array_get")
	fc.unbox(&mir.Type{Kind: mir.KindStruct}) // table-relative function index

	params := make([]byte, len(t.Args)+1)
	params[0] = valI32
	for i, a := range t.Args {
		params[i+1] = wasmType(operandType(a))
	}
	result := noResult
	destType := fc.placeBaseType(t.Destination)
	if !isVoid(destType) {
		result = wasmType(destType)
	}
	typeIdx := fc.b.sigIdx(funcSig{params: params, result: result})

	fc.emit(opCallIndirect)
	fc.emitU32(typeIdx)
	fc.emitU32(0) // table index 0, the MVP encoding's only table

	if !isVoid(destType) {
		fc.emitLocalSet(fc.wasmIdx[t.Destination.Local])
	}
	fc.emitGoto(t.Target)
}

func (fc *funcCompiler) calleeReturnType(id mir.FuncID) *mir.Type {
	if id < 0 || int(id) >= len(fc.b.prog.Functions) {
		return mir.TypeVoid
	}
	return fc.b.prog.Func(id).ReturnType
}

// compileSelect lowers a SelectTerminator into a transient poll loop that
// tries every arm once per iteration (via the non-blocking
// rt_chan_try_recv/try_send imports) in source order, looping back when
// none fire and no default arm is present — the WASM-structured-control
// restatement of the same first-ready-wins busy-poll semantics nativegen
// expands into a chain of basic blocks for.
func (fc *funcCompiler) compileSelect(t mir.SelectTerminator) {
	fc.emit(opLoop, blockVoid)
	fc.curDepthToLoop++
	pollDepth := fc.curDepthToLoop

	for _, arm := range t.Arms {
		fc.compileOperand(arm.Chan)
		if arm.IsSend {
			fc.compileOperand(arm.Value)
			fc.box(operandType(arm.Value))
			fc.emitCallImport("rt_chan_try_send")
		} else {
			fc.emitCallImport("rt_chan_try_recv")
			fc.emitLocalSet(fc.scratchI32)
			fc.emitLocalGet(fc.scratchI32)
			fc.emitConstI32(0)
			fc.emit(opI32Ne)
		}

		fc.emit(opIf, blockVoid)
		fc.curDepthToLoop++
		if !arm.IsSend {
			fc.storePlace(arm.Destination, fc.placeBaseType(arm.Destination), func() {
				fc.emitLocalGet(fc.scratchI32)
			})
		}
		fc.emitGoto(arm.Target)
		fc.curDepthToLoop--
		fc.emit(opEnd)
	}

	if t.Default != nil {
		fc.emitGoto(*t.Default)
	} else {
		fc.emit(opBr)
		fc.emitU32(uint32(fc.curDepthToLoop - pollDepth))
	}
	fc.curDepthToLoop--
	fc.emit(opEnd) // closes the poll loop
}
