package nativegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// declareFunction creates fn's llvm.Value (signature only); bodies are
// filled in by a later pass so forward and mutually-recursive calls always
// find a callable llvm.Value.
func (b *Backend) declareFunction(fn *mir.Function) {
	paramTypes := make([]llvm.Type, len(fn.Params))
	for i, localID := range fn.Params {
		paramTypes[i] = b.llvmType(fn.Locals[localID].Type)
	}
	fnType := llvm.FunctionType(b.llvmType(fn.ReturnType), paramTypes, false)
	name := fn.Name
	if name == "" {
		name = fmt.Sprintf("fn%d", fn.ID)
	}
	llfn := llvm.AddFunction(b.module, name, fnType)
	if !fn.IsPublic {
		llfn.SetLinkage(llvm.InternalLinkage)
	}
	b.funcs[fn.ID] = llfn
}

// lowerFunction fills in fn's previously declared llvm.Value with its
// lowered body: one llvm.BasicBlock per mir.BasicBlock, an alloca per
// local (locals are always stack slots here; SSA promotion is mem2reg's
// job downstream, not nativegen's), statements lowered in order, and
// finally the block's terminator.
func (b *Backend) lowerFunction(fn *mir.Function) error {
	llfn := b.funcs[fn.ID]
	b.curFn = fn
	b.curLLFn = llfn
	b.blockMap = make(map[mir.BlockID]llvm.BasicBlock, len(fn.Blocks))
	b.localMap = make(map[mir.LocalID]llvm.Value, len(fn.Locals))

	for i := range fn.Blocks {
		b.blockMap[mir.BlockID(i)] = llvm.AddBasicBlock(llfn, fmt.Sprintf("bb%d", i))
	}

	entry := b.blockMap[fn.Entry]
	b.builder.SetInsertPointAtEnd(entry)
	for id, local := range fn.Locals {
		alloca := b.builder.CreateAlloca(b.llvmType(local.Type), localAllocaName(local))
		b.localMap[mir.LocalID(id)] = alloca
	}
	for i, localID := range fn.Params {
		b.builder.CreateStore(llfn.Param(i), b.localMap[localID])
	}

	for i, block := range fn.Blocks {
		b.builder.SetInsertPointAtEnd(b.blockMap[mir.BlockID(i)])
		for _, stmt := range block.Statements {
			b.lowerStatement(stmt)
		}
		if block.Terminator == nil {
			b.builder.CreateUnreachable()
			continue
		}
		b.lowerTerminator(block.Terminator)
	}
	return nil
}

func localAllocaName(l mir.Local) string {
	if l.Name != "" {
		return l.Name
	}
	return "tmp"
}

// --- places -----------------------------------------------------------

// placePtr resolves place to the llvm.Value pointer it denotes, walking
// Field/Index projections through runtime helper calls (the place's base
// local may itself be an opaque handle, never a raw aggregate).
//
// Two shapes come out of this: for a bare local (no projections) the
// result is the local's own alloca, loadable/storable directly in its
// native LLVM type. For a projected place (anything with a Field or Index
// step) there is no real pointer to hand back — struct/array element
// storage is owned by the runtime, reachable only through rt_field_get/set
// and rt_array_get/set — so loadPlace/storePlace below handle projected
// places specially instead of going through this helper.
func (b *Backend) placeRoot(p mir.Place) llvm.Value {
	return b.localMap[p.Local]
}

func (b *Backend) loadPlace(p mir.Place, t *mir.Type) llvm.Value {
	root := b.placeRoot(p)
	if len(p.Projection) == 0 {
		return b.builder.CreateLoad(root, "ld")
	}

	cur := b.builder.CreateLoad(root, "ld.base")
	for i, elem := range p.Projection {
		last := i == len(p.Projection)-1
		switch e := elem.(type) {
		case mir.Field:
			word := b.callExtern("rt_field_get", cur, b.globalCString(e.Name))
			if last {
				return b.fromWord(word, t)
			}
			cur = b.fromWord(word, e.Type)
		case mir.Index:
			idx := b.toWord(b.lowerOperand(e.Index), mir.TypeInt)
			word := b.callExtern("rt_array_get", cur, idx)
			if last {
				return b.fromWord(word, t)
			}
			cur = b.fromWord(word, e.Type)
		case mir.Deref:
			if last {
				return b.builder.CreateLoad(cur, "ld.deref")
			}
		}
	}
	return cur
}

func (b *Backend) storePlace(p mir.Place, v llvm.Value, t *mir.Type) {
	root := b.placeRoot(p)
	if len(p.Projection) == 0 {
		b.builder.CreateStore(v, root)
		return
	}

	// Walk every projection but the last to reach the immediate container
	// handle, then apply the final field/index write through the runtime.
	cur := b.builder.CreateLoad(root, "ld.base")
	for i := 0; i < len(p.Projection)-1; i++ {
		switch e := p.Projection[i].(type) {
		case mir.Field:
			word := b.callExtern("rt_field_get", cur, b.globalCString(e.Name))
			cur = b.fromWord(word, e.Type)
		case mir.Index:
			idx := b.toWord(b.lowerOperand(e.Index), mir.TypeInt)
			word := b.callExtern("rt_array_get", cur, idx)
			cur = b.fromWord(word, e.Type)
		}
	}

	switch e := p.Projection[len(p.Projection)-1].(type) {
	case mir.Field:
		b.callExtern("rt_field_set", cur, b.globalCString(e.Name), b.toWord(v, t))
	case mir.Index:
		idx := b.toWord(b.lowerOperand(e.Index), mir.TypeInt)
		b.callExtern("rt_array_set", cur, idx, b.toWord(v, t))
	case mir.Deref:
		b.builder.CreateStore(v, cur)
	}
}

// placeBaseType is the type of the place's root local, independent of any
// projection applied on top of it.
func (b *Backend) placeBaseType(p mir.Place) *mir.Type {
	return b.curFn.Locals[p.Local].Type
}

// globalCString interns s as a NUL-terminated global and returns a pointer
// to its first byte, the representation rt_field_get/rt_field_set's name
// argument and every String value share.
func (b *Backend) globalCString(s string) llvm.Value {
	return b.builder.CreateGlobalStringPtr(s, ".str")
}

// --- operands -----------------------------------------------------------

func (b *Backend) lowerOperand(op mir.Operand) llvm.Value {
	switch o := op.(type) {
	case mir.Constant:
		return b.lowerConstant(o)
	case mir.Copy:
		return b.loadPlace(o.Place, o.Type)
	case mir.Move:
		return b.loadPlace(o.Place, o.Type)
	default:
		panic(fmt.Sprintf("nativegen: unknown operand %T", op))
	}
}

func (b *Backend) operandType(op mir.Operand) *mir.Type {
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

func (b *Backend) lowerConstant(c mir.Constant) llvm.Value {
	switch c.Kind {
	case mir.ConstInt:
		return llvm.ConstInt(llvm.Int64Type(), uint64(c.Int), true)
	case mir.ConstFloat:
		var f float64
		fmt.Sscanf(c.Float, "%g", &f)
		return llvm.ConstFloat(llvm.DoubleType(), f)
	case mir.ConstBool:
		v := uint64(0)
		if c.Bool {
			v = 1
		}
		return llvm.ConstInt(llvm.Int1Type(), v, false)
	case mir.ConstString:
		return b.globalCString(c.Str)
	default:
		panic("nativegen: unknown constant kind")
	}
}

// --- statements -----------------------------------------------------------

func (b *Backend) lowerStatement(s mir.Statement) {
	switch st := s.(type) {
	case mir.AssignStatement:
		v := b.lowerRvalue(st.Value, b.placeBaseType(st.Target))
		b.storePlace(st.Target, v, b.placeBaseType(st.Target))
	case mir.StorageLiveStatement, mir.StorageDeadStatement:
		// stack slots live for the whole function; nothing to do.
	case mir.DropStatement:
		// Channel/task handle release is a runtime-side refcount decrement
		// keyed off the handle value alone; no cleanup code of our own to
		// emit at the drop point itself.
	case mir.InstallHandlerStatement:
		b.lowerInstallHandler(st)
	case mir.UninstallHandlerStatement:
		b.lowerUninstallHandler(st)
	case mir.CaptureContinuationStatement, mir.CloneContinuationStatement, mir.FfiBarrierStatement:
		// Full one-shot continuation capture and FFI-boundary effect
		// barriers are reserved in the data model but not yet wired to any
		// lowering path. Reaching one here is a compiler defect, not a
		// reachable program state, so it traps instead of miscompiling.
		b.callExtern("rt_panic", b.globalCString("continuation capture not implemented"))
	default:
		panic(fmt.Sprintf("nativegen: unknown statement %T", s))
	}
}

// handlerVTableField names the single field of a handler record that
// holds its operation vtable: an rt_array of boxed operation function
// pointers, indexed by each operation's declared ordinal within its effect.
const handlerVTableField = "$vtable"

// lowerInstallHandler builds a handler record — a vtable of the handled
// effect's operation function pointers plus a 1-field struct pointing at
// it — and writes its pointer into the evidence vector's slot for this
// effect, stashing whatever pointer was there before so UninstallHandler
// can restore it.
func (b *Backend) lowerInstallHandler(st mir.InstallHandlerStatement) {
	numOps := len(st.Operations)
	if def, ok := b.prog.EffectByName(st.Effect); ok {
		numOps = len(def.Operations)
	}
	vtable := b.callExtern("rt_array_new", llvm.ConstInt(llvm.Int64Type(), uint64(numOps), false))
	for i, opName := range st.Operations {
		idx := b.operationIndex(st.Effect, opName)
		fnPtr := b.funcValuePtr(st.Handlers[i])
		b.callExtern("rt_array_set", vtable, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false), b.toWord(fnPtr, &mir.Type{Kind: mir.KindStruct}))
	}

	handler := b.callExtern("rt_struct_new", llvm.ConstInt(llvm.Int64Type(), 1, false))
	b.callExtern("rt_field_set", handler, b.globalCString(handlerVTableField), b.toWord(vtable, &mir.Type{Kind: mir.KindArray}))

	evidence := b.lowerOperand(st.Evidence)
	slotIdx := llvm.ConstInt(llvm.Int64Type(), uint64(st.EvidenceSlot), false)
	prevWord := b.callExtern("rt_array_get", evidence, slotIdx)
	b.storePlace(mir.LocalPlace(st.PrevLocal), prevWord, mir.TypeInt)
	b.callExtern("rt_array_set", evidence, slotIdx, b.toWord(handler, &mir.Type{Kind: mir.KindStruct}))
}

// lowerUninstallHandler restores the evidence slot this effect's handler
// occupied before InstallHandler ran, scoping nested handlers correctly.
func (b *Backend) lowerUninstallHandler(st mir.UninstallHandlerStatement) {
	evidence := b.lowerOperand(st.Evidence)
	slotIdx := llvm.ConstInt(llvm.Int64Type(), uint64(st.EvidenceSlot), false)
	prevWord := b.loadPlace(mir.LocalPlace(st.PrevLocal), mir.TypeInt)
	b.callExtern("rt_array_set", evidence, slotIdx, prevWord)
}

// --- rvalues -----------------------------------------------------------

func (b *Backend) lowerRvalue(r mir.Rvalue, t *mir.Type) llvm.Value {
	switch rv := r.(type) {
	case mir.UseRvalue:
		return b.lowerOperand(rv.Operand)
	case mir.BinaryOpRvalue:
		return b.lowerBinaryOp(rv)
	case mir.UnaryOpRvalue:
		return b.lowerUnaryOp(rv)
	case mir.AggregateRvalue:
		return b.lowerAggregate(rv)
	case mir.CallPureRvalue:
		return b.lowerCallPure(rv)
	default:
		panic(fmt.Sprintf("nativegen: unknown rvalue %T", r))
	}
}

func (b *Backend) lowerBinaryOp(rv mir.BinaryOpRvalue) llvm.Value {
	lhs := b.lowerOperand(rv.Left)
	rhs := b.lowerOperand(rv.Right)
	isFloat := b.operandType(rv.Left) != nil && b.operandType(rv.Left).Kind == mir.KindFloat

	switch rv.Op {
	case lexer.PLUS:
		if isFloat {
			return b.builder.CreateFAdd(lhs, rhs, "add")
		}
		return b.builder.CreateAdd(lhs, rhs, "add")
	case lexer.MINUS:
		if isFloat {
			return b.builder.CreateFSub(lhs, rhs, "sub")
		}
		return b.builder.CreateSub(lhs, rhs, "sub")
	case lexer.STAR:
		if isFloat {
			return b.builder.CreateFMul(lhs, rhs, "mul")
		}
		return b.builder.CreateMul(lhs, rhs, "mul")
	case lexer.SLASH:
		if isFloat {
			return b.builder.CreateFDiv(lhs, rhs, "div")
		}
		return b.builder.CreateSDiv(lhs, rhs, "div")
	case lexer.PERCENT:
		return b.builder.CreateSRem(lhs, rhs, "rem")
	case lexer.EQ:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatOEQ, lhs, rhs, "eq")
		}
		return b.builder.CreateICmp(llvm.IntEQ, lhs, rhs, "eq")
	case lexer.NEQ:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatONE, lhs, rhs, "ne")
		}
		return b.builder.CreateICmp(llvm.IntNE, lhs, rhs, "ne")
	case lexer.LT:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatOLT, lhs, rhs, "lt")
		}
		return b.builder.CreateICmp(llvm.IntSLT, lhs, rhs, "lt")
	case lexer.GT:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatOGT, lhs, rhs, "gt")
		}
		return b.builder.CreateICmp(llvm.IntSGT, lhs, rhs, "gt")
	case lexer.LEQ:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatOLE, lhs, rhs, "le")
		}
		return b.builder.CreateICmp(llvm.IntSLE, lhs, rhs, "le")
	case lexer.GEQ:
		if isFloat {
			return b.builder.CreateFCmp(llvm.FloatOGE, lhs, rhs, "ge")
		}
		return b.builder.CreateICmp(llvm.IntSGE, lhs, rhs, "ge")
	case lexer.AND:
		return b.builder.CreateAnd(lhs, rhs, "and")
	case lexer.OR:
		return b.builder.CreateOr(lhs, rhs, "or")
	default:
		panic(fmt.Sprintf("nativegen: unsupported binary operator %v", rv.Op))
	}
}

func (b *Backend) lowerUnaryOp(rv mir.UnaryOpRvalue) llvm.Value {
	v := b.lowerOperand(rv.Operand)
	switch rv.Op {
	case lexer.MINUS:
		if b.operandType(rv.Operand).Kind == mir.KindFloat {
			return b.builder.CreateFNeg(v, "neg")
		}
		return b.builder.CreateNeg(v, "neg")
	case lexer.NOT:
		return b.builder.CreateNot(v, "not")
	default:
		panic(fmt.Sprintf("nativegen: unsupported unary operator %v", rv.Op))
	}
}

func (b *Backend) lowerAggregate(rv mir.AggregateRvalue) llvm.Value {
	switch rv.Kind {
	case mir.AggregateArray:
		arr := b.callExtern("rt_array_new", llvm.ConstInt(llvm.Int64Type(), uint64(len(rv.Fields)), false))
		for i, f := range rv.Fields {
			idx := llvm.ConstInt(llvm.Int64Type(), uint64(i), false)
			b.callExtern("rt_array_set", arr, idx, b.toWord(b.lowerOperand(f), b.operandType(f)))
		}
		return arr

	case mir.AggregateStruct:
		h := b.callExtern("rt_struct_new", llvm.ConstInt(llvm.Int64Type(), uint64(len(rv.Fields)), false))
		for i, name := range rv.FieldNames {
			b.callExtern("rt_field_set", h, b.globalCString(name), b.toWord(b.lowerOperand(rv.Fields[i]), b.operandType(rv.Fields[i])))
		}
		return h

	case mir.AggregateEnumVariant:
		h := b.callExtern("rt_struct_new", llvm.ConstInt(llvm.Int64Type(), uint64(len(rv.Fields)+1), false))
		tag := b.variantTag(rv.TypeName, rv.VariantName)
		b.callExtern("rt_field_set", h, b.globalCString("$tag"), llvm.ConstInt(b.wordType(), uint64(tag), true))
		for i, name := range rv.FieldNames {
			b.callExtern("rt_field_set", h, b.globalCString(name), b.toWord(b.lowerOperand(rv.Fields[i]), b.operandType(rv.Fields[i])))
		}
		return h

	case mir.AggregateClosure:
		env := b.callExtern("rt_struct_new", llvm.ConstInt(llvm.Int64Type(), uint64(len(rv.Fields)), false))
		for i, name := range rv.FieldNames {
			b.callExtern("rt_field_set", env, b.globalCString(name), b.toWord(b.lowerOperand(rv.Fields[i]), b.operandType(rv.Fields[i])))
		}
		fnPtr := b.funcValuePtr(rv.ClosureFunc)
		return b.callExtern("rt_closure_new", fnPtr, env)

	case mir.AggregateEvidenceVector:
		return b.callExtern("rt_array_new", llvm.ConstInt(llvm.Int64Type(), uint64(rv.Count), false))

	default:
		panic("nativegen: unknown aggregate kind")
	}
}

// funcValuePtr returns a function's address as an opaque i8* value, the
// representation a closure handle and the Async spawn ABI both expect.
func (b *Backend) funcValuePtr(id mir.FuncID) llvm.Value {
	fn, ok := b.funcs[id]
	if !ok {
		panic(fmt.Sprintf("nativegen: unresolved function id %d", id))
	}
	return b.builder.CreateBitCast(fn, b.ptrType(), "fn.ptr")
}

func (b *Backend) lowerCallPure(rv mir.CallPureRvalue) llvm.Value {
	switch rv.Func.Direct {
	case mir.BuiltinPrint:
		arg := rv.Args[0]
		t := b.operandType(arg)
		v := b.lowerOperand(arg)
		switch {
		case t != nil && t.Kind == mir.KindFloat:
			return b.callExtern("rt_print_float", v)
		case t != nil && t.Kind == mir.KindBool:
			return b.callExtern("rt_print_bool", v)
		case t != nil && t.Kind == mir.KindString:
			return b.callExtern("rt_print_string", v)
		default:
			return b.callExtern("rt_print_int", v)
		}
	case mir.BuiltinArrayLen:
		return b.callExtern("rt_array_len", b.lowerOperand(rv.Args[0]))
	case mir.BuiltinArrayPush:
		arr := b.lowerOperand(rv.Args[0])
		val := b.toWord(b.lowerOperand(rv.Args[1]), b.operandType(rv.Args[1]))
		return b.callExtern("rt_array_push", arr, val)
	}

	if rv.Func.Indirect != nil {
		closure := b.loadPlace(*rv.Func.Indirect, mir.Closure(nil, nil))
		argsArr := b.callExtern("rt_array_new", llvm.ConstInt(llvm.Int64Type(), uint64(len(rv.Args)), false))
		for i, a := range rv.Args {
			idx := llvm.ConstInt(llvm.Int64Type(), uint64(i), false)
			b.callExtern("rt_array_set", argsArr, idx, b.toWord(b.lowerOperand(a), b.operandType(a)))
		}
		word := b.callExtern("rt_closure_call", closure, argsArr)
		return b.fromWord(word, rv.Type)
	}

	fn, ok := b.funcs[rv.Func.Direct]
	if !ok {
		panic(fmt.Sprintf("nativegen: call to unresolved direct function %d (missing monomorphization?)", rv.Func.Direct))
	}
	args := make([]llvm.Value, len(rv.Args))
	for i, a := range rv.Args {
		args[i] = b.lowerOperand(a)
	}
	return b.builder.CreateCall(fn, args, "")
}

// --- terminators -----------------------------------------------------------

func (b *Backend) lowerTerminator(term mir.Terminator) {
	switch t := term.(type) {
	case mir.GotoTerminator:
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.ReturnTerminator:
		if b.curFn.ReturnType == nil || b.curFn.ReturnType.Kind == mir.KindVoid {
			b.builder.CreateRetVoid()
			return
		}
		ret := b.builder.CreateLoad(b.localMap[mir.ReturnLocal], "ret")
		b.builder.CreateRet(ret)

	case mir.UnreachableTerminator:
		b.builder.CreateUnreachable()

	case mir.SwitchIntTerminator:
		disc := b.lowerOperand(t.Discriminant)
		if disc.Type().TypeKind() == llvm.IntegerTypeKind && disc.Type().IntTypeWidth() < 64 {
			disc = b.builder.CreateZExt(disc, llvm.Int64Type(), "disc.ext")
		}
		sw := b.builder.CreateSwitch(disc, b.blockMap[t.Default], len(t.Cases))
		for _, c := range t.Cases {
			sw.AddCase(llvm.ConstInt(llvm.Int64Type(), uint64(c.Value), true), b.blockMap[c.Target])
		}

	case mir.CallTerminator:
		b.lowerCallTerminator(t)

	case mir.SpawnTerminator:
		closure := b.lowerOperand(t.Closure)
		fnPtr := b.callExtern("rt_closure_func", closure)
		env := b.callExtern("rt_closure_env", closure)
		taskID := b.callExtern("spawn", fnPtr, env)
		b.storePlace(t.Destination, taskID, mir.TypeInt)
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.AwaitTerminator:
		taskID := b.lowerOperand(t.Task)
		word := b.callExtern("await", taskID)
		b.storePlace(t.Destination, b.fromWord(word, b.placeBaseType(t.Destination)), b.placeBaseType(t.Destination))
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.YieldTerminator:
		b.callExtern("yield")
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.ChanRecvTerminator:
		ch := b.lowerOperand(t.Chan)
		opt := b.callExtern("rt_chan_recv", ch)
		b.storePlace(t.Destination, opt, b.placeBaseType(t.Destination))
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.ChanSendTerminator:
		ch := b.lowerOperand(t.Chan)
		val := b.toWord(b.lowerOperand(t.Value), b.operandType(t.Value))
		b.callExtern("rt_chan_send", ch, val)
		b.builder.CreateBr(b.blockMap[t.Target])

	case mir.SelectTerminator:
		b.lowerSelect(t)

	default:
		panic(fmt.Sprintf("nativegen: unknown terminator %T", term))
	}
}

func (b *Backend) lowerCallTerminator(t mir.CallTerminator) {
	if t.PerformEffect != "" {
		b.lowerPerformDispatch(t)
		return
	}

	fn, ok := b.funcs[t.Func.Direct]
	if !ok {
		panic(fmt.Sprintf("nativegen: call to unresolved direct function %d (missing monomorphization?)", t.Func.Direct))
	}
	args := make([]llvm.Value, len(t.Args))
	for i, a := range t.Args {
		args[i] = b.lowerOperand(a)
	}
	result := b.builder.CreateCall(fn, args, "")
	if b.curFn != nil {
		retType := b.calleeReturnType(t.Func.Direct)
		if retType == nil || retType.Kind != mir.KindVoid {
			b.storePlace(t.Destination, result, retType)
		}
	}
	b.builder.CreateBr(b.blockMap[t.Target])
}

// lowerPerformDispatch emits the tail-resumptive evidence/vtable/indirect-
// call sequence a `perform Effect.op(args)` compiles to: load the handler
// record from the evidence vector's slot, load its vtable, load the
// operation's function pointer out of the vtable at its declared ordinal,
// and call it directly with the handler record itself as the leading
// ("self") argument.
func (b *Backend) lowerPerformDispatch(t mir.CallTerminator) {
	evidence := b.lowerOperand(t.PerformEvidence)
	slotIdx := llvm.ConstInt(llvm.Int64Type(), uint64(t.PerformEvidenceSlot), false)
	handlerWord := b.callExtern("rt_array_get", evidence, slotIdx)
	handler := b.fromWord(handlerWord, &mir.Type{Kind: mir.KindStruct})

	vtableWord := b.callExtern("rt_field_get", handler, b.globalCString(handlerVTableField))
	vtable := b.fromWord(vtableWord, &mir.Type{Kind: mir.KindArray})

	opIdx := llvm.ConstInt(llvm.Int64Type(), uint64(t.PerformOpIndex), false)
	opWord := b.callExtern("rt_array_get", vtable, opIdx)
	opPtr := b.fromWord(opWord, &mir.Type{Kind: mir.KindStruct})

	destType := b.placeBaseType(t.Destination)
	argTypes := make([]llvm.Type, 0, len(t.Args)+1)
	argTypes = append(argTypes, b.ptrType()) // handler record: self
	for _, a := range t.Args {
		argTypes = append(argTypes, b.llvmType(b.operandType(a)))
	}
	fnType := llvm.FunctionType(b.llvmType(destType), argTypes, false)
	callee := b.builder.CreateBitCast(opPtr, llvm.PointerType(fnType, 0), "op.fn")

	args := make([]llvm.Value, 0, len(t.Args)+1)
	args = append(args, handler)
	for _, a := range t.Args {
		args = append(args, b.lowerOperand(a))
	}
	result := b.builder.CreateCall(callee, args, "")
	if destType == nil || destType.Kind != mir.KindVoid {
		b.storePlace(t.Destination, result, destType)
	}
	b.builder.CreateBr(b.blockMap[t.Target])
}

func (b *Backend) calleeReturnType(id mir.FuncID) *mir.Type {
	if id < 0 || int(id) >= len(b.prog.Functions) {
		return mir.TypeVoid
	}
	return b.prog.Func(id).ReturnType
}

// lowerSelect expands a SelectTerminator into a chain of try-then-branch
// blocks: each arm's channel is polled once (non-blocking, via
// rt_chan_try_recv/try_send) in source order, falling through to the next
// arm on failure and looping back to the first arm if none fired and no
// default arm is present — the same first-ready-wins semantics the
// channel primitive's own busy-poll select implements, expressed directly
// in the control-flow graph instead of delegated to a runtime loop.
func (b *Backend) lowerSelect(t mir.SelectTerminator) {
	pollBlock := llvm.AddBasicBlock(b.curLLFn, "select.poll")
	b.builder.CreateBr(pollBlock)

	arms := make([]llvm.BasicBlock, len(t.Arms))
	for i := range t.Arms {
		arms[i] = llvm.AddBasicBlock(b.curLLFn, fmt.Sprintf("select.arm%d", i))
	}
	var defaultBlock llvm.BasicBlock
	if t.Default != nil {
		defaultBlock = b.blockMap[*t.Default]
	}

	b.builder.SetInsertPointAtEnd(pollBlock)
	tryBlocks := make([]llvm.BasicBlock, len(t.Arms))
	for i := range t.Arms {
		tryBlocks[i] = llvm.AddBasicBlock(b.curLLFn, fmt.Sprintf("select.try%d", i))
	}
	if len(tryBlocks) > 0 {
		b.builder.CreateBr(tryBlocks[0])
	} else if t.Default != nil {
		b.builder.CreateBr(defaultBlock)
	} else {
		b.builder.CreateUnreachable()
	}

	for i, arm := range t.Arms {
		b.builder.SetInsertPointAtEnd(tryBlocks[i])
		ch := b.lowerOperand(arm.Chan)

		var fired llvm.Value
		if arm.IsSend {
			val := b.toWord(b.lowerOperand(arm.Value), b.operandType(arm.Value))
			fired = b.callExtern("rt_chan_try_send", ch, val)
		} else {
			opt := b.callExtern("rt_chan_try_recv", ch)
			fired = b.builder.CreateICmp(llvm.IntNE,
				b.builder.CreatePtrToInt(opt, b.wordType(), "try.word"),
				llvm.ConstInt(b.wordType(), 0, false), "try.ok")
			armBody := arms[i]
			next := defaultBlock
			if i+1 < len(tryBlocks) {
				next = tryBlocks[i+1]
			} else if t.Default == nil {
				next = pollBlock
			}
			b.builder.CreateCondBr(fired, armBody, next)
			b.builder.SetInsertPointAtEnd(armBody)
			b.storePlace(arm.Destination, opt, b.placeBaseType(arm.Destination))
			b.builder.CreateBr(b.blockMap[arm.Target])
			continue
		}

		armBody := arms[i]
		next := defaultBlock
		if i+1 < len(tryBlocks) {
			next = tryBlocks[i+1]
		} else if t.Default == nil {
			next = pollBlock
		}
		b.builder.CreateCondBr(fired, armBody, next)
		b.builder.SetInsertPointAtEnd(armBody)
		b.builder.CreateBr(b.blockMap[arm.Target])
	}
}
