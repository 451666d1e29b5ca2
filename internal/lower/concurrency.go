package lower

import (
	"fmt"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/mir"
)

// capturedVar is one free variable a lifted closure or handler body reads
// from its defining scope, passed to the lifted function as a leading
// hidden parameter.
type capturedVar struct {
	Name string
	ID   mir.LocalID
	Type *mir.Type
}

// visibleLocals returns every local currently in scope, outermost first,
// with inner shadowing taking priority — the conservative capture set a
// lifted closure needs (it over-captures rather than computing exact
// liveness, the same tradeoff the teacher's own lowering makes for old()
// capture sets).
func (fc *funcLowering) visibleLocals() []capturedVar {
	var order []string
	byName := make(map[string]mir.LocalID)
	for _, scope := range fc.scopes {
		for name, id := range scope {
			if _, exists := byName[name]; !exists {
				order = append(order, name)
			}
			byName[name] = id
		}
	}
	vars := make([]capturedVar, 0, len(order))
	for _, name := range order {
		id := byName[name]
		vars = append(vars, capturedVar{Name: name, ID: id, Type: fc.fn.Locals[id].Type})
	}
	return vars
}

// lowerClosureExpr lifts a closure literal into its own top-level
// mir.Function (capturing every currently-visible local by value) and
// assigns dest an AggregateClosure value referencing it.
func (fc *funcLowering) lowerClosureExpr(dest mir.Place, e *ast.ClosureExpr) {
	l := fc.l
	captured := fc.visibleLocals()

	name := fmt.Sprintf("%s::closure%d", fc.fn.Name, l.closureCounter)
	l.closureCounter++

	lfn := &mir.Function{Name: name, ReturnType: mir.TypeVoid, IsMono: true}
	lfn.NewLocal("", lfn.ReturnType, true)
	for _, cap := range captured {
		id := lfn.NewLocal(cap.Name, cap.Type, false)
		lfn.Params = append(lfn.Params, id)
	}
	for _, p := range e.Params {
		t := l.resolveTypeRef(p.Type, nil)
		id := lfn.NewLocal(p.Name, t, false)
		lfn.Params = append(lfn.Params, id)
	}
	id := l.prog.AddFunction(lfn)

	cfc := newFuncLowering(l, lfn)
	cfc.pushScope()
	for i, cap := range captured {
		cfc.define(cap.Name, lfn.Params[i])
	}
	for i, p := range e.Params {
		cfc.define(p.Name, lfn.Params[len(captured)+i])
	}
	if body, ok := e.Body.(*ast.BlockExpr); ok {
		cfc.lowerBlockExprInto(mir.LocalPlace(mir.ReturnLocal), body)
	} else {
		cfc.lowerExprInto(mir.LocalPlace(mir.ReturnLocal), e.Body)
	}
	cfc.finish(nil)

	var fieldNames []string
	var fields []mir.Operand
	for _, cap := range captured {
		fieldNames = append(fieldNames, cap.Name)
		fields = append(fields, readPlace(mir.LocalPlace(cap.ID), cap.Type))
	}
	fc.assign(dest, mir.AggregateRvalue{
		Kind: mir.AggregateClosure, ClosureFunc: id,
		FieldNames: fieldNames, Fields: fields, Type: fc.typeOf(e),
	})
}

// findEffectOp looks up operation opName's declared signature within the
// named effect.
func (l *lowerer) findEffectOp(effectName, opName string) *ast.EffectOperationSig {
	decl, ok := l.effects[effectName]
	if !ok {
		return nil
	}
	for _, op := range decl.Operations {
		if op.Name == opName {
			return op
		}
	}
	return nil
}

// findEffectOpIndex returns opName's declared ordinal within the named
// effect — the OperationId a handler vtable's construction and a perform's
// dispatch both key off of.
func (l *lowerer) findEffectOpIndex(effectName, opName string) int {
	decl, ok := l.effects[effectName]
	if !ok {
		return 0
	}
	for i, op := range decl.Operations {
		if op.Name == opName {
			return i
		}
	}
	return 0
}

// evidenceLocal returns the local holding fc's evidence vector, resolving
// it once per function. A function whose own effect row is non-empty
// reuses the trailing "$evidence" parameter declareFunction appended; one
// whose row is empty but that still installs a handler (fully discharging
// whatever it handles before returning to its own non-effectful caller)
// synthesizes its own, sized to every declared effect.
func (fc *funcLowering) evidenceLocal() mir.LocalID {
	if fc.evidenceResolved {
		return fc.evidenceLocalID
	}
	fc.evidenceResolved = true
	if len(fc.fn.Effects.Effects) > 0 {
		fc.evidenceLocalID = fc.fn.Params[len(fc.fn.Params)-1]
		return fc.evidenceLocalID
	}
	tmp := fc.newTemp(evidenceVectorType())
	fc.emit(mir.StorageLiveStatement{Local: tmp})
	fc.assign(mir.LocalPlace(tmp), mir.AggregateRvalue{
		Kind: mir.AggregateEvidenceVector, Count: len(fc.l.effectSlots), Type: evidenceVectorType(),
	})
	fc.evidenceLocalID = tmp
	return fc.evidenceLocalID
}

// evidenceOperand reads fc's evidence vector as an Operand, for forwarding
// to an effectful callee's trailing parameter or for a perform/install/
// uninstall site to index into directly.
func (fc *funcLowering) evidenceOperand() mir.Operand {
	return readPlace(mir.LocalPlace(fc.evidenceLocal()), evidenceVectorType())
}

// liftHandlerClause lowers one handle-clause body into its own top-level
// mir.Function, named positionally after the clause's bound parameters, and
// returns its FuncID for the handler vtable. resume(v) inside the body
// lowers to that function simply returning v — the tail-resumptive,
// direct-call compilation strategy; a handler whose checker-computed
// IsTailResumptive is false still lowers this way today, since full
// one-shot continuation capture belongs to the runtime scheduler rather
// than this static lowering pass.
func (l *lowerer) liftHandlerClause(effectName string, clause *ast.HandleClause) mir.FuncID {
	op := l.findEffectOp(effectName, clause.Operation)
	retType := mir.TypeVoid
	if op != nil {
		retType = l.resolveTypeRef(op.ReturnType, nil)
	}

	name := fmt.Sprintf("%s::handle::%s::%d", effectName, clause.Operation, l.handlerCounter)
	l.handlerCounter++

	hfn := &mir.Function{Name: name, ReturnType: retType, IsMono: true}
	hfn.NewLocal("", retType, true)
	// Leading "self" param: the handler record pointer a perform's
	// call_indirect passes as its own first argument, per the Effect ABI.
	// The clause body never reads it by name.
	selfID := hfn.NewLocal("self", &mir.Type{Kind: mir.KindStruct, Name: "$handler"}, false)
	hfn.Params = append(hfn.Params, selfID)
	for i, pname := range clause.Params {
		pt := mir.TypeVoid
		if op != nil && i < len(op.Params) {
			pt = l.resolveTypeRef(op.Params[i].Type, nil)
		}
		id := hfn.NewLocal(pname, pt, false)
		hfn.Params = append(hfn.Params, id)
	}
	id := l.prog.AddFunction(hfn)

	hfc := newFuncLowering(l, hfn)
	hfc.pushScope()
	for i, pname := range clause.Params {
		hfc.define(pname, hfn.Params[i+1]) // +1: self occupies index 0
	}
	if body, ok := clause.Body.(*ast.BlockExpr); ok {
		hfc.lowerBlockExprInto(mir.LocalPlace(mir.ReturnLocal), body)
	} else {
		hfc.lowerExprInto(mir.LocalPlace(mir.ReturnLocal), clause.Body)
	}
	hfc.finish(nil)

	return id
}

// lowerPerformExpr lowers `perform Effect.op(args)` to a Call terminator
// carrying the three coordinates tail-resumptive dispatch needs at codegen
// time: the caller's own evidence vector, the effect's static slot within
// it, and the operation's ordinal within the effect's declared operation
// list. PerformEffect/PerformOp are kept as the non-empty-string
// discriminator the backends switch on; the name strings themselves are
// never pushed to a runtime call.
func (fc *funcLowering) lowerPerformExpr(dest mir.Place, e *ast.PerformExpr) {
	args := fc.lowerArgs(e.Args)
	slot := fc.l.effectSlots[e.Effect]
	opIndex := fc.l.findEffectOpIndex(e.Effect, e.Operation)
	next := fc.newBlock()
	fc.setTerm(mir.CallTerminator{
		Args:                args,
		Destination:         dest,
		Target:              next,
		PerformEffect:       e.Effect,
		PerformOp:           e.Operation,
		PerformEvidence:     fc.evidenceOperand(),
		PerformEvidenceSlot: slot,
		PerformOpIndex:      opIndex,
		PerformClass:        mir.OpTailResumptive,
	})
	fc.cur = next
}

// lowerHandleExpr installs one evidence-vector frame for the handled
// effect, lowers the handled body, and uninstalls the frame on every exit,
// restoring whatever handler (if any) occupied the slot before — so nested
// handlers of the same effect scope correctly.
func (fc *funcLowering) lowerHandleExpr(dest mir.Place, e *ast.HandleExpr) {
	l := fc.l
	var opNames []string
	var handlerIDs []mir.FuncID
	for _, clause := range e.Clauses {
		opNames = append(opNames, clause.Operation)
		handlerIDs = append(handlerIDs, l.liftHandlerClause(e.Effect, clause))
	}
	slot := l.effectSlots[e.Effect]
	evidence := fc.evidenceOperand()
	prev := fc.newTemp(mir.TypeInt)
	fc.emit(mir.StorageLiveStatement{Local: prev})
	fc.emit(mir.InstallHandlerStatement{
		Effect: e.Effect, Operations: opNames, Handlers: handlerIDs,
		Evidence: evidence, EvidenceSlot: slot, PrevLocal: prev,
	})
	fc.lowerExprInto(dest, e.Body)
	fc.emit(mir.UninstallHandlerStatement{
		Effect: e.Effect, Evidence: evidence, EvidenceSlot: slot, PrevLocal: prev,
	})
}

// lowerSpawnExpr starts a new task: a bare function-name spawn wraps the
// callee as a zero-capture closure value so SpawnTerminator always starts
// from a first-class closure operand.
func (fc *funcLowering) lowerSpawnExpr(dest mir.Place, e *ast.SpawnExpr) {
	l := fc.l
	var closureOperand mir.Operand
	switch fn := e.Func.(type) {
	case *ast.ClosureExpr:
		t := mir.Closure(nil, mir.TypeVoid)
		tmp := fc.newTemp(t)
		fc.lowerClosureExpr(mir.LocalPlace(tmp), fn)
		closureOperand = readPlace(mir.LocalPlace(tmp), t)
	case *ast.Identifier:
		if mf, ok := l.prog.FuncByName(fn.Name); ok {
			t := mir.Closure(nil, mf.ReturnType)
			tmp := fc.newTemp(t)
			fc.assign(mir.LocalPlace(tmp), mir.AggregateRvalue{Kind: mir.AggregateClosure, ClosureFunc: mf.ID, Type: t})
			closureOperand = readPlace(mir.LocalPlace(tmp), t)
		} else {
			closureOperand = fc.lowerExprToOperand(fn)
		}
	default:
		closureOperand = fc.lowerExprToOperand(fn)
	}
	args := fc.lowerArgs(e.Args)
	next := fc.newBlock()
	fc.setTerm(mir.SpawnTerminator{Closure: closureOperand, Args: args, Destination: dest, Target: next})
	fc.cur = next
}

func (fc *funcLowering) lowerAwaitExpr(dest mir.Place, e *ast.AwaitExpr) {
	task := fc.lowerExprToOperand(e.Task)
	next := fc.newBlock()
	fc.setTerm(mir.AwaitTerminator{Task: task, Destination: dest, Target: next})
	fc.cur = next
}

func (fc *funcLowering) lowerYieldExpr(dest mir.Place) {
	next := fc.newBlock()
	fc.setTerm(mir.YieldTerminator{Target: next})
	fc.cur = next
	fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
}

func (fc *funcLowering) lowerRecvExpr(dest mir.Place, e *ast.RecvExpr) {
	ch := fc.lowerExprToOperand(e.Chan)
	next := fc.newBlock()
	fc.setTerm(mir.ChanRecvTerminator{Chan: ch, Destination: dest, Target: next})
	fc.cur = next
}

func (fc *funcLowering) lowerSendStmt(s *ast.SendStmt) {
	ch := fc.lowerExprToOperand(s.Chan)
	val := fc.lowerExprToOperand(s.Value)
	next := fc.newBlock()
	fc.setTerm(mir.ChanSendTerminator{Chan: ch, Value: val, Target: next})
	fc.cur = next
}

func (fc *funcLowering) typeOfChanElem(expr ast.Expression) *mir.Type {
	t := fc.typeOf(expr)
	if t != nil && t.Kind == mir.KindChannel {
		return t.Elem
	}
	return mir.TypeVoid
}

// lowerSelectStmt lowers a multi-way channel select: each case's channel
// (and, for a send case, its value) is evaluated eagerly in the current
// block, matching the channel primitive's own all-candidates-armed select
// semantics, before the Select terminator blocks until one is ready.
func (fc *funcLowering) lowerSelectStmt(s *ast.SelectStmt) {
	joinBlock := fc.newBlock()

	type armInfo struct {
		body      *ast.Block
		bindName  string
		bindLocal mir.LocalID
		isSend    bool
	}
	var arms []mir.SelectArm
	var infos []armInfo

	for _, c := range s.Cases {
		armBlock := fc.newBlock()
		chOp := fc.lowerExprToOperand(c.Chan)
		if c.IsSend {
			valOp := fc.lowerExprToOperand(c.Value)
			arms = append(arms, mir.SelectArm{IsSend: true, Chan: chOp, Value: valOp, Target: armBlock})
			infos = append(infos, armInfo{body: c.Body, isSend: true})
		} else {
			elemType := fc.typeOfChanElem(c.Chan)
			bindLocal := fc.fn.NewLocal(c.Bind, elemType, true)
			arms = append(arms, mir.SelectArm{IsSend: false, Chan: chOp, Destination: mir.LocalPlace(bindLocal), Target: armBlock})
			infos = append(infos, armInfo{body: c.Body, bindName: c.Bind, bindLocal: bindLocal})
		}
	}

	var defaultBlock *mir.BlockID
	if s.Default != nil {
		db := fc.newBlock()
		defaultBlock = &db
	}

	fc.setTerm(mir.SelectTerminator{Arms: arms, Default: defaultBlock})

	for i, arm := range arms {
		fc.cur = arm.Target
		fc.pushScope()
		if !infos[i].isSend {
			fc.define(infos[i].bindName, infos[i].bindLocal)
		}
		fc.lowerBlock(infos[i].body)
		if fc.fn.Block(fc.cur).Terminator == nil {
			fc.setTerm(mir.GotoTerminator{Target: joinBlock})
		}
		fc.popScope()
	}
	if s.Default != nil {
		fc.cur = *defaultBlock
		fc.lowerBlock(s.Default)
		if fc.fn.Block(fc.cur).Terminator == nil {
			fc.setTerm(mir.GotoTerminator{Target: joinBlock})
		}
	}

	fc.cur = joinBlock
}
