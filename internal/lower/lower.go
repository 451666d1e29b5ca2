// Package lower transforms a checked AST into the mir package's
// control-flow-graph representation, the way original_source's aria-mir
// crate's LoweringContext/FunctionLoweringContext pair lowers AST into CFG
// MIR (see crates/aria-mir/src/lower.rs), but following the teacher's own
// internal/ir/lower.go in file layout and naming conventions.
package lower

import (
	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/checker"
	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// lowerer holds the whole-program state a LoweringContext needs: the
// checker's resolved types, and the mir.Program being built up.
type lowerer struct {
	exprTypes map[ast.Expression]*checker.Type
	entities  map[string]*checker.EntityInfo
	enums     map[string]*checker.EnumInfo
	traits    map[string]*ast.TraitDecl
	effects   map[string]*ast.EffectDecl

	// variantOwner/variantIndex/variantFields let call and match lowering
	// resolve a bare variant name (Ok, Err, Some, None, or a user enum's
	// variant) to its enum, tag, and field list without re-walking the AST.
	variantOwner  map[string]string
	variantIndex  map[string]int
	variantFields map[string][]string

	// closureCounter/handlerCounter name-mangle lifted closure bodies and
	// handle-clause bodies into unique top-level mir.Functions.
	closureCounter int
	handlerCounter int

	// effectSlots assigns each declared effect a stable evidence-vector
	// index, in the AST's own declaration order, so every perform/install
	// site in the program agrees on which slot an effect occupies.
	effectSlots map[string]int

	prog *mir.Program
}

// evidenceVectorType is the MIR type of the evidence vector threaded
// through every effectful call: a runtime array of handler-record
// pointers, one per declared effect, indexed by effectSlots.
func evidenceVectorType() *mir.Type {
	return &mir.Type{Kind: mir.KindArray, Name: "EvidenceVector"}
}

// Lower transforms a single checked AST program into a mir.Program.
func Lower(prog *ast.Program, result *checker.CheckResult) *mir.Program {
	modName := ""
	if prog.Module != nil {
		modName = prog.Module.Name
	}

	l := &lowerer{
		exprTypes: result.ExprTypes,
		entities:  result.Entities,
		enums:     result.Enums,
		traits:    make(map[string]*ast.TraitDecl),
		effects:   make(map[string]*ast.EffectDecl),
		variantOwner:  map[string]string{"Ok": "Result", "Err": "Result", "Some": "Option", "None": "Option"},
		variantIndex:  map[string]int{"Ok": 0, "Err": 1, "Some": 0, "None": 1},
		variantFields: map[string][]string{"Ok": {"value"}, "Err": {"error"}, "Some": {"value"}, "None": nil},
		effectSlots:   make(map[string]int),
		prog:      mir.NewProgram(modName, true),
	}
	for _, t := range prog.Traits {
		l.traits[t.Name] = t
	}
	for i, e := range prog.Effects {
		l.effects[e.Name] = e
		l.effectSlots[e.Name] = i
	}
	for _, e := range prog.Enums {
		for vi, v := range e.Variants {
			l.variantOwner[v.Name] = e.Name
			l.variantIndex[v.Name] = vi
			for _, f := range v.Fields {
				l.variantFields[v.Name] = append(l.variantFields[v.Name], f.Name)
			}
		}
	}

	for _, e := range prog.Enums {
		l.prog.Enums = append(l.prog.Enums, l.lowerEnumDecl(e))
	}
	for _, e := range prog.Entities {
		l.prog.Structs = append(l.prog.Structs, l.lowerEntityDecl(e))
	}
	for _, t := range prog.Traits {
		l.prog.Traits = append(l.prog.Traits, l.lowerTraitDecl(t))
	}
	for _, e := range prog.Effects {
		l.prog.Effects = append(l.prog.Effects, l.lowerEffectDecl(e))
	}

	// Register function signatures before lowering any body, so forward
	// and mutually-recursive calls resolve.
	for _, fn := range prog.Functions {
		l.declareFunction(fn)
	}
	for _, ent := range prog.Entities {
		for _, m := range ent.Methods {
			l.declareMethod(ent, m)
		}
		if ent.Constructor != nil {
			l.declareConstructor(ent)
		}
	}

	for _, fn := range prog.Functions {
		l.lowerFunctionBody(fn)
	}
	for _, ent := range prog.Entities {
		for _, m := range ent.Methods {
			l.lowerMethodBody(ent, m)
		}
		if ent.Constructor != nil {
			l.lowerConstructorBody(ent)
		}
	}

	return l.prog
}

func (l *lowerer) lowerEnumDecl(e *ast.EnumDecl) *mir.EnumDef {
	def := &mir.EnumDef{Name: e.Name, TypeParams: e.TypeParams}
	for _, v := range e.Variants {
		variant := mir.EnumVariantDef{Name: v.Name}
		for _, f := range v.Fields {
			variant.Fields = append(variant.Fields, mir.StructField{
				Name: f.Name,
				Type: l.resolveTypeRef(f.Type, e.TypeParams),
			})
		}
		def.Variants = append(def.Variants, variant)
	}
	return def
}

func (l *lowerer) lowerEntityDecl(e *ast.EntityDecl) *mir.StructDef {
	def := &mir.StructDef{Name: e.Name, TypeParams: e.TypeParams, Implements: e.Implements}
	for _, f := range e.Fields {
		def.Fields = append(def.Fields, mir.StructField{
			Name: f.Name,
			Type: l.resolveTypeRef(f.Type, e.TypeParams),
		})
	}
	return def
}

func (l *lowerer) lowerTraitDecl(t *ast.TraitDecl) *mir.TraitDef {
	def := &mir.TraitDef{Name: t.Name}
	for _, m := range t.Methods {
		def.Methods = append(def.Methods, m.Name)
	}
	return def
}

func (l *lowerer) lowerEffectDecl(e *ast.EffectDecl) *mir.EffectDef {
	def := &mir.EffectDef{Name: e.Name}
	for _, op := range e.Operations {
		kind := mir.OpGeneral
		mop := mir.EffectOperation{Name: op.Name, ReturnType: l.resolveTypeRef(op.ReturnType, nil), Kind: kind}
		for _, p := range op.Params {
			mop.ParamTypes = append(mop.ParamTypes, l.resolveTypeRef(p.Type, nil))
		}
		def.Operations = append(def.Operations, mop)
	}
	return def
}

// resolveTypeRef resolves an ast.TypeRef to a mir.Type, recognizing names
// in typeParams as type variables.
func (l *lowerer) resolveTypeRef(ref *ast.TypeRef, typeParams []string) *mir.Type {
	ct := checker.ResolveTypeInScope(ref, l.entities, l.enums, typeParams)
	if ct == nil {
		return mir.TypeVoid
	}
	return mir.FromChecker(ct)
}

func (l *lowerer) declareFunction(fn *ast.FunctionDecl) {
	mf := &mir.Function{
		Name:       fn.Name,
		IsEntry:    fn.IsEntry,
		IsPublic:   fn.IsPublic,
		TypeParams: fn.TypeParams,
		ReturnType: l.resolveTypeRef(fn.ReturnType, fn.TypeParams),
		Effects:    mir.EffectRow{Effects: fn.Effects},
	}
	mf.NewLocal("", mf.ReturnType, true) // local 0: return place
	for _, p := range fn.Params {
		id := mf.NewLocal(p.Name, l.resolveTypeRef(p.Type, fn.TypeParams), false)
		mf.Params = append(mf.Params, id)
	}
	if len(fn.Effects) > 0 {
		// Every function whose effect row is non-empty receives a trailing
		// evidence-vector pointer parameter: the perform dispatch inside it
		// (or inside anything it calls) has nowhere else to load a handler
		// from.
		id := mf.NewLocal("$evidence", evidenceVectorType(), false)
		mf.Params = append(mf.Params, id)
	}
	l.prog.AddFunction(mf)
}

func mangleMethod(entity, method string) string { return entity + "::" + method }

// variantFieldType looks up the declared type of a variant's i'th field by
// consulting the already-lowered EnumDef; falls back to Void for the
// builtin Result/Option variants, whose payload type varies per
// instantiation and is resolved precisely during monomorphization.
func (l *lowerer) variantFieldType(variantName string, i int) *mir.Type {
	owner, ok := l.variantOwner[variantName]
	if !ok {
		return mir.TypeVoid
	}
	if owner == "Result" || owner == "Option" {
		return mir.TypeVoid
	}
	def, ok := l.prog.EnumByName(owner)
	if !ok {
		return mir.TypeVoid
	}
	for _, v := range def.Variants {
		if v.Name == variantName && i < len(v.Fields) {
			return v.Fields[i].Type
		}
	}
	return mir.TypeVoid
}

func (l *lowerer) declareMethod(ent *ast.EntityDecl, m *ast.MethodDecl) {
	mf := &mir.Function{
		Name:       mangleMethod(ent.Name, m.Name),
		TypeParams: ent.TypeParams,
		ReturnType: l.resolveTypeRef(m.ReturnType, ent.TypeParams),
	}
	mf.NewLocal("", mf.ReturnType, true)
	mf.NewLocal("self", &mir.Type{Kind: mir.KindStruct, Name: ent.Name}, false)
	for _, p := range m.Params {
		id := mf.NewLocal(p.Name, l.resolveTypeRef(p.Type, ent.TypeParams), false)
		mf.Params = append(mf.Params, id)
	}
	l.prog.AddFunction(mf)
}

func (l *lowerer) declareConstructor(ent *ast.EntityDecl) {
	mf := &mir.Function{
		Name:       mangleMethod(ent.Name, "new"),
		TypeParams: ent.TypeParams,
		ReturnType: &mir.Type{Kind: mir.KindStruct, Name: ent.Name},
	}
	mf.NewLocal("", mf.ReturnType, true)
	for _, p := range ent.Constructor.Params {
		id := mf.NewLocal(p.Name, l.resolveTypeRef(p.Type, ent.TypeParams), false)
		mf.Params = append(mf.Params, id)
	}
	l.prog.AddFunction(mf)
}

func (l *lowerer) lowerFunctionBody(fn *ast.FunctionDecl) {
	mf, _ := l.prog.FuncByName(fn.Name)
	fc := newFuncLowering(l, mf)
	fc.pushScope()
	for i, p := range fn.Params {
		fc.define(p.Name, mf.Params[i])
	}
	fc.lowerOldCaptures(fn.Ensures)
	fc.lowerRequires(fn.Requires)
	fc.lowerBlock(fn.Body)
	fc.finish(fn.Ensures)
}

func (l *lowerer) lowerMethodBody(ent *ast.EntityDecl, m *ast.MethodDecl) {
	mf, ok := l.prog.FuncByName(mangleMethod(ent.Name, m.Name))
	if !ok {
		return
	}
	fc := newFuncLowering(l, mf)
	fc.pushScope()
	fc.define("self", mir.LocalID(1))
	for i, p := range m.Params {
		fc.define(p.Name, mf.Params[i])
	}
	fc.lowerOldCaptures(m.Ensures)
	fc.lowerRequires(m.Requires)
	fc.lowerBlock(m.Body)
	fc.finish(m.Ensures)
}

func (l *lowerer) lowerConstructorBody(ent *ast.EntityDecl) {
	mf, ok := l.prog.FuncByName(mangleMethod(ent.Name, "new"))
	if !ok {
		return
	}
	fc := newFuncLowering(l, mf)
	fc.pushScope()
	for i, p := range ent.Constructor.Params {
		fc.define(p.Name, mf.Params[i])
	}
	fc.lowerOldCaptures(ent.Constructor.Ensures)
	fc.lowerRequires(ent.Constructor.Requires)
	fc.lowerBlock(ent.Constructor.Body)
	fc.finish(ent.Constructor.Ensures)
}

// funcLowering holds the per-function state a FunctionLoweringContext
// needs: the in-progress mir.Function, the block currently being
// appended to, lexical scopes mapping names to locals, and the
// break/continue/defer stacks active loops and blocks need.
type funcLowering struct {
	l   *lowerer
	fn  *mir.Function
	cur mir.BlockID

	scopes []map[string]mir.LocalID

	breakTargets    []mir.BlockID
	continueTargets []mir.BlockID

	// deferStack holds pending `defer` expressions for the innermost
	// block, run in LIFO order on every exit from it.
	deferStack [][]ast.Expression

	// oldCounter/oldKeyExprs back old(expr) capture lowering: each capture
	// gets a generated name, and oldKeyExprs maps that name back to the
	// captured AST node so a later old(expr) read resolves by identity.
	oldCounter  int
	oldKeyExprs map[string]ast.Expression

	// evidenceLocalID/evidenceResolved lazily cache the local holding this
	// function's evidence vector: its own trailing parameter if its effect
	// row is non-empty, or a freshly allocated local it populates itself
	// (see evidenceLocal in concurrency.go) if it only installs handlers
	// without ever being effectful in its own right.
	evidenceLocalID mir.LocalID
	evidenceResolved bool
}

func newFuncLowering(l *lowerer, fn *mir.Function) *funcLowering {
	fc := &funcLowering{l: l, fn: fn}
	fc.fn.Entry = fc.fn.NewBlock()
	fc.cur = fc.fn.Entry
	return fc
}

func (fc *funcLowering) pushScope() {
	fc.scopes = append(fc.scopes, make(map[string]mir.LocalID))
	fc.deferStack = append(fc.deferStack, nil)
}

func (fc *funcLowering) popScope() []ast.Expression {
	defers := fc.deferStack[len(fc.deferStack)-1]
	fc.deferStack = fc.deferStack[:len(fc.deferStack)-1]
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
	return defers
}

func (fc *funcLowering) define(name string, id mir.LocalID) {
	fc.scopes[len(fc.scopes)-1][name] = id
}

func (fc *funcLowering) lookup(name string) (mir.LocalID, bool) {
	for i := len(fc.scopes) - 1; i >= 0; i-- {
		if id, ok := fc.scopes[i][name]; ok {
			return id, true
		}
	}
	return 0, false
}

func (fc *funcLowering) newTemp(t *mir.Type) mir.LocalID {
	return fc.fn.NewLocal("", t, false)
}

func (fc *funcLowering) emit(s mir.Statement) {
	block := fc.fn.Block(fc.cur)
	block.Statements = append(block.Statements, s)
}

func (fc *funcLowering) setTerm(t mir.Terminator) {
	fc.fn.Block(fc.cur).Terminator = t
}

// newBlock allocates a fresh block without switching the current one.
func (fc *funcLowering) newBlock() mir.BlockID { return fc.fn.NewBlock() }

// gotoNew terminates the current block with a Goto to a new block, and
// switches the cursor to it.
func (fc *funcLowering) gotoNew() mir.BlockID {
	next := fc.newBlock()
	fc.setTerm(mir.GotoTerminator{Target: next})
	fc.cur = next
	return next
}

func (fc *funcLowering) assign(target mir.Place, rv mir.Rvalue) {
	fc.emit(mir.AssignStatement{Target: target, Value: rv})
}

// finish runs any outstanding top-level defers, lowers ensures clauses
// (referencing the function's ReturnLocal as `result`), and terminates the
// entry scope's final block with Return if body lowering didn't already.
func (fc *funcLowering) finish(ensures []*ast.ContractClause) {
	defers := fc.popScope()
	fc.runDefers(defers)
	if fc.fn.Block(fc.cur).Terminator == nil {
		fc.lowerEnsures(ensures, mir.ReturnLocal)
		fc.setTerm(mir.ReturnTerminator{})
	}
}

func (fc *funcLowering) runDefers(defers []ast.Expression) {
	for i := len(defers) - 1; i >= 0; i-- {
		fc.lowerExprDiscard(defers[i])
	}
}

// lowerExprDiscard lowers expr purely for effect, discarding its value.
func (fc *funcLowering) lowerExprDiscard(expr ast.Expression) {
	t := fc.typeOf(expr)
	tmp := fc.newTemp(t)
	fc.lowerExprInto(mir.LocalPlace(tmp), expr)
}

func (fc *funcLowering) typeOf(expr ast.Expression) *mir.Type {
	ct := fc.l.exprTypes[expr]
	return mir.FromChecker(ct)
}

// --- statements ---

func (fc *funcLowering) lowerBlock(b *ast.Block) {
	if b == nil {
		return
	}
	fc.pushScope()
	for _, stmt := range b.Statements {
		fc.lowerStmt(stmt)
	}
	defers := fc.popScope()
	fc.runDefers(defers)
}

func (fc *funcLowering) lowerStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		t := fc.typeOf(s.Value)
		id := fc.fn.NewLocal(s.Name, t, s.Mutable)
		fc.emit(mir.StorageLiveStatement{Local: id})
		fc.lowerExprInto(mir.LocalPlace(id), s.Value)
		fc.define(s.Name, id)
	case *ast.AssignStmt:
		target := fc.lowerPlace(s.Target)
		fc.lowerExprInto(target, s.Value)
	case *ast.ReturnStmt:
		if s.Value != nil {
			fc.lowerExprInto(mir.LocalPlace(mir.ReturnLocal), s.Value)
		}
		for i := len(fc.deferStack) - 1; i >= 0; i-- {
			fc.runDefers(fc.deferStack[i])
		}
		fc.setTerm(mir.ReturnTerminator{})
		fc.cur = fc.newBlock() // unreachable tail block, kept terminator-complete below
		fc.setTerm(mir.UnreachableTerminator{})
	case *ast.ExprStmt:
		fc.lowerExprDiscard(s.Expr)
	case *ast.IfStmt:
		fc.lowerIfStmt(s)
	case *ast.WhileStmt:
		fc.lowerWhileStmt(s)
	case *ast.ForInStmt:
		fc.lowerForInStmt(s)
	case *ast.BreakStmt:
		if len(fc.breakTargets) > 0 {
			fc.setTerm(mir.GotoTerminator{Target: fc.breakTargets[len(fc.breakTargets)-1]})
			fc.cur = fc.newBlock()
			fc.setTerm(mir.UnreachableTerminator{})
		}
	case *ast.ContinueStmt:
		if len(fc.continueTargets) > 0 {
			fc.setTerm(mir.GotoTerminator{Target: fc.continueTargets[len(fc.continueTargets)-1]})
			fc.cur = fc.newBlock()
			fc.setTerm(mir.UnreachableTerminator{})
		}
	case *ast.DeferStmt:
		top := len(fc.deferStack) - 1
		fc.deferStack[top] = append(fc.deferStack[top], s.Expr)
	case *ast.SendStmt:
		fc.lowerSendStmt(s)
	case *ast.SelectStmt:
		fc.lowerSelectStmt(s)
	}
}

func (fc *funcLowering) lowerIfStmt(s *ast.IfStmt) {
	cond := fc.lowerExprToOperand(s.Condition)
	thenBlock := fc.newBlock()
	joinBlock := fc.newBlock()

	var elseBlock mir.BlockID
	if s.Else != nil {
		elseBlock = fc.newBlock()
	} else {
		elseBlock = joinBlock
	}

	fc.setTerm(mir.SwitchIntTerminator{
		Discriminant: cond,
		Cases:        []mir.SwitchCase{{Value: 1, Target: thenBlock}},
		Default:      elseBlock,
	})

	fc.cur = thenBlock
	fc.lowerBlock(s.Then)
	if fc.fn.Block(fc.cur).Terminator == nil {
		fc.setTerm(mir.GotoTerminator{Target: joinBlock})
	}

	if s.Else != nil {
		fc.cur = elseBlock
		switch e := s.Else.(type) {
		case *ast.Block:
			fc.lowerBlock(e)
		case *ast.IfStmt:
			fc.lowerIfStmt(e)
		}
		if fc.fn.Block(fc.cur).Terminator == nil {
			fc.setTerm(mir.GotoTerminator{Target: joinBlock})
		}
	}

	fc.cur = joinBlock
}

func (fc *funcLowering) lowerWhileStmt(s *ast.WhileStmt) {
	headBlock := fc.gotoNew()
	cond := fc.lowerExprToOperand(s.Condition)
	bodyBlock := fc.newBlock()
	afterBlock := fc.newBlock()

	fc.setTerm(mir.SwitchIntTerminator{
		Discriminant: cond,
		Cases:        []mir.SwitchCase{{Value: 1, Target: bodyBlock}},
		Default:      afterBlock,
	})

	fc.breakTargets = append(fc.breakTargets, afterBlock)
	fc.continueTargets = append(fc.continueTargets, headBlock)

	fc.cur = bodyBlock
	fc.lowerBlock(s.Body)
	if fc.fn.Block(fc.cur).Terminator == nil {
		fc.setTerm(mir.GotoTerminator{Target: headBlock})
	}

	fc.breakTargets = fc.breakTargets[:len(fc.breakTargets)-1]
	fc.continueTargets = fc.continueTargets[:len(fc.continueTargets)-1]

	fc.cur = afterBlock
}

// lowerForInStmt lowers `for x in a..b { }` to a counted loop and
// `for x in arr { }` to an index-counted loop over the array's length;
// both desugar to the same head/body/after shape as lowerWhileStmt.
func (fc *funcLowering) lowerForInStmt(s *ast.ForInStmt) {
	if rng, ok := s.Iterable.(*ast.RangeExpr); ok {
		fc.lowerCountedFor(s, rng)
		return
	}
	fc.lowerArrayFor(s)
}

func (fc *funcLowering) lowerCountedFor(s *ast.ForInStmt, rng *ast.RangeExpr) {
	startOp := fc.lowerExprToOperand(rng.Start)
	endTmp := fc.newTemp(mir.TypeInt)
	fc.lowerExprInto(mir.LocalPlace(endTmp), rng.End)

	iv := fc.fn.NewLocal(s.Variable, mir.TypeInt, true)
	fc.emit(mir.StorageLiveStatement{Local: iv})
	fc.assign(mir.LocalPlace(iv), mir.UseRvalue{Operand: startOp})

	headBlock := fc.gotoNew()
	cond := fc.newTemp(mir.TypeBool)
	fc.assign(mir.LocalPlace(cond), mir.BinaryOpRvalue{
		Op:    lexer.LT,
		Left:  mir.Copy{Place: mir.LocalPlace(iv), Type: mir.TypeInt},
		Right: mir.Copy{Place: mir.LocalPlace(endTmp), Type: mir.TypeInt},
		Type:  mir.TypeBool,
	})
	bodyBlock := fc.newBlock()
	afterBlock := fc.newBlock()
	fc.setTerm(mir.SwitchIntTerminator{
		Discriminant: mir.Copy{Place: mir.LocalPlace(cond), Type: mir.TypeBool},
		Cases:        []mir.SwitchCase{{Value: 1, Target: bodyBlock}},
		Default:      afterBlock,
	})

	fc.breakTargets = append(fc.breakTargets, afterBlock)
	fc.continueTargets = append(fc.continueTargets, headBlock)

	fc.cur = bodyBlock
	fc.define(s.Variable, iv)
	fc.lowerBlock(s.Body)
	if fc.fn.Block(fc.cur).Terminator == nil {
		fc.assign(mir.LocalPlace(iv), mir.BinaryOpRvalue{
			Op:    lexer.PLUS,
			Left:  mir.Copy{Place: mir.LocalPlace(iv), Type: mir.TypeInt},
			Right: mir.Constant{Kind: mir.ConstInt, Int: 1, Type: mir.TypeInt},
			Type:  mir.TypeInt,
		})
		fc.setTerm(mir.GotoTerminator{Target: headBlock})
	}

	fc.breakTargets = fc.breakTargets[:len(fc.breakTargets)-1]
	fc.continueTargets = fc.continueTargets[:len(fc.continueTargets)-1]
	fc.cur = afterBlock
}

func (fc *funcLowering) lowerArrayFor(s *ast.ForInStmt) {
	arrType := fc.typeOf(s.Iterable)
	arrTmp := fc.newTemp(arrType)
	fc.lowerExprInto(mir.LocalPlace(arrTmp), s.Iterable)

	idx := fc.fn.NewLocal("__idx", mir.TypeInt, true)
	fc.emit(mir.StorageLiveStatement{Local: idx})
	fc.assign(mir.LocalPlace(idx), mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstInt, Int: 0, Type: mir.TypeInt}})

	lenTmp := fc.newTemp(mir.TypeInt)
	fc.assign(mir.LocalPlace(lenTmp), mir.CallPureRvalue{
		Func: mir.FuncRef{Direct: mir.BuiltinArrayLen},
		Args: []mir.Operand{mir.Copy{Place: mir.LocalPlace(arrTmp), Type: arrType}},
		Type: mir.TypeInt,
	})

	elemType := arrType.Elem
	if elemType == nil {
		elemType = mir.TypeVoid
	}
	iv := fc.fn.NewLocal(s.Variable, elemType, true)

	headBlock := fc.gotoNew()
	cond := fc.newTemp(mir.TypeBool)
	fc.assign(mir.LocalPlace(cond), mir.BinaryOpRvalue{
		Op:    lexer.LT,
		Left:  mir.Copy{Place: mir.LocalPlace(idx), Type: mir.TypeInt},
		Right: mir.Copy{Place: mir.LocalPlace(lenTmp), Type: mir.TypeInt},
		Type:  mir.TypeBool,
	})
	bodyBlock := fc.newBlock()
	afterBlock := fc.newBlock()
	fc.setTerm(mir.SwitchIntTerminator{
		Discriminant: mir.Copy{Place: mir.LocalPlace(cond), Type: mir.TypeBool},
		Cases:        []mir.SwitchCase{{Value: 1, Target: bodyBlock}},
		Default:      afterBlock,
	})

	fc.breakTargets = append(fc.breakTargets, afterBlock)
	fc.continueTargets = append(fc.continueTargets, headBlock)

	fc.cur = bodyBlock
	fc.emit(mir.StorageLiveStatement{Local: iv})
	elemPlace := mir.LocalPlace(arrTmp).WithIndex(mir.Copy{Place: mir.LocalPlace(idx), Type: mir.TypeInt}, elemType)
	fc.assign(mir.LocalPlace(iv), mir.UseRvalue{Operand: mir.Copy{Place: elemPlace, Type: elemType}})
	fc.define(s.Variable, iv)
	fc.lowerBlock(s.Body)
	if fc.fn.Block(fc.cur).Terminator == nil {
		fc.assign(mir.LocalPlace(idx), mir.BinaryOpRvalue{
			Op:    lexer.PLUS,
			Left:  mir.Copy{Place: mir.LocalPlace(idx), Type: mir.TypeInt},
			Right: mir.Constant{Kind: mir.ConstInt, Int: 1, Type: mir.TypeInt},
			Type:  mir.TypeInt,
		})
		fc.setTerm(mir.GotoTerminator{Target: headBlock})
	}

	fc.breakTargets = fc.breakTargets[:len(fc.breakTargets)-1]
	fc.continueTargets = fc.continueTargets[:len(fc.continueTargets)-1]
	fc.cur = afterBlock
}
