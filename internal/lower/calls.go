package lower

import (
	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// tagField is the synthetic Int field every lowered enum aggregate carries
// recording which variant it holds; SwitchInt discriminants for match and
// try read it, and aggregate construction always sets it alongside the
// variant's own named fields.
const tagField = "$tag"

func (fc *funcLowering) lowerArgs(args []ast.Expression) []mir.Operand {
	ops := make([]mir.Operand, len(args))
	for i, a := range args {
		ops[i] = fc.lowerExprToOperand(a)
	}
	return ops
}

// inferTypeArgs matches mf's declared parameter types against the call
// site's actual argument types to recover a concrete type for each of mf's
// TypeParams, positionally, by walking into Array/Channel/Result/Option
// structure wherever a template parameter's declared type mentions a type
// variable directly. internal/mono resolves the FuncRef this produces into
// (or creates) the specialization; a TypeParam no call-site argument
// constrains falls back to Void, which mono leaves as-is.
func (fc *funcLowering) inferTypeArgs(mf *mir.Function, argExprs []ast.Expression) []*mir.Type {
	if len(mf.TypeParams) == 0 {
		return nil
	}
	bound := make(map[string]*mir.Type)
	for i, argExpr := range argExprs {
		if i >= len(mf.Params) {
			break
		}
		paramType := mf.Locals[mf.Params[i]].Type
		unifyTypeVar(paramType, fc.typeOf(argExpr), bound)
	}
	out := make([]*mir.Type, len(mf.TypeParams))
	for i, name := range mf.TypeParams {
		if t, ok := bound[name]; ok {
			out[i] = t
		} else {
			out[i] = mir.TypeVoid
		}
	}
	return out
}

func unifyTypeVar(paramType, argType *mir.Type, bound map[string]*mir.Type) {
	if paramType == nil || argType == nil {
		return
	}
	if paramType.Kind == mir.KindTypeVar {
		if _, ok := bound[paramType.Name]; !ok {
			bound[paramType.Name] = argType
		}
		return
	}
	switch paramType.Kind {
	case mir.KindArray, mir.KindChannel:
		unifyTypeVar(paramType.Elem, argType.Elem, bound)
	case mir.KindResult, mir.KindOption:
		for i := range paramType.Params {
			if i < len(argType.Params) {
				unifyTypeVar(paramType.Params[i], argType.Params[i], bound)
			}
		}
	}
}

// emitEffectfulCall ends the current block with a Call terminator and
// resumes lowering in a fresh block, modeling the task-suspension point a
// call to an effectful function represents.
func (fc *funcLowering) emitEffectfulCall(dest mir.Place, ref mir.FuncRef, args []mir.Operand) {
	// An effectful callee's trailing parameter is its evidence vector
	// (declareFunction appends it for every non-empty effect row); forward
	// the caller's own so a perform inside the callee resolves the same
	// handler stack.
	args = append(args, fc.evidenceOperand())
	next := fc.newBlock()
	fc.setTerm(mir.CallTerminator{Func: ref, Args: args, Destination: dest, Target: next})
	fc.cur = next
}

func (fc *funcLowering) lowerCallExpr(dest mir.Place, e *ast.CallExpr) {
	l := fc.l
	t := fc.typeOf(e)

	switch e.Function {
	case "print":
		args := fc.lowerArgs(e.Args)
		fc.assign(dest, mir.CallPureRvalue{Func: mir.FuncRef{Direct: mir.BuiltinPrint}, Args: args, Type: mir.TypeVoid})
		return
	case "len":
		args := fc.lowerArgs(e.Args)
		fc.assign(dest, mir.CallPureRvalue{Func: mir.FuncRef{Direct: mir.BuiltinArrayLen}, Args: args, Type: mir.TypeInt})
		return
	}

	if owner, ok := l.variantOwner[e.Function]; ok {
		fc.assign(dest, mir.AggregateRvalue{
			Kind: mir.AggregateEnumVariant, TypeName: owner, VariantName: e.Function,
			FieldNames: l.variantFields[e.Function], Fields: fc.lowerArgs(e.Args), Type: t,
		})
		return
	}

	if _, ok := l.entities[e.Function]; ok {
		ctor, ok := l.prog.FuncByName(mangleMethod(e.Function, "new"))
		args := fc.lowerArgs(e.Args)
		if !ok {
			fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
			return
		}
		ref := mir.FuncRef{Direct: ctor.ID, TypeArgs: fc.inferTypeArgs(ctor, e.Args)}
		if ctor.Effects.Contains("Async") || ctor.Effects.Contains("IO") || ctor.Effects.Contains("Panic") {
			fc.emitEffectfulCall(dest, ref, args)
			return
		}
		fc.assign(dest, mir.CallPureRvalue{Func: ref, Args: args, Type: t})
		return
	}

	mf, ok := l.prog.FuncByName(e.Function)
	args := fc.lowerArgs(e.Args)
	if !ok {
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
		return
	}
	ref := mir.FuncRef{Direct: mf.ID, TypeArgs: fc.inferTypeArgs(mf, e.Args)}
	if len(mf.Effects.Effects) > 0 {
		fc.emitEffectfulCall(dest, ref, args)
		return
	}
	fc.assign(dest, mir.CallPureRvalue{Func: ref, Args: args, Type: t})
}

func (fc *funcLowering) lowerMethodCallExpr(dest mir.Place, e *ast.MethodCallExpr) {
	l := fc.l
	objType := fc.typeOf(e.Object)
	t := fc.typeOf(e)

	if objType != nil && objType.Kind == mir.KindArray {
		switch e.Method {
		case "push":
			base := fc.lowerPlace(e.Object)
			args := append([]mir.Operand{readPlace(base, objType)}, fc.lowerArgs(e.Args)...)
			fc.assign(dest, mir.CallPureRvalue{Func: mir.FuncRef{Direct: mir.BuiltinArrayPush}, Args: args, Type: mir.TypeVoid})
			return
		}
	}

	if objType != nil && (objType.Kind == mir.KindResult || objType.Kind == mir.KindOption) {
		switch e.Method {
		case "is_ok", "is_some":
			base := fc.lowerPlace(e.Object)
			tag := readPlace(base.WithField(tagField, mir.TypeInt), mir.TypeInt)
			fc.assign(dest, mir.BinaryOpRvalue{Op: lexer.EQ, Left: tag, Right: mir.Constant{Kind: mir.ConstInt, Int: 0, Type: mir.TypeInt}, Type: mir.TypeBool})
			return
		case "is_err", "is_none":
			base := fc.lowerPlace(e.Object)
			tag := readPlace(base.WithField(tagField, mir.TypeInt), mir.TypeInt)
			fc.assign(dest, mir.BinaryOpRvalue{Op: lexer.EQ, Left: tag, Right: mir.Constant{Kind: mir.ConstInt, Int: 1, Type: mir.TypeInt}, Type: mir.TypeBool})
			return
		}
	}

	objOperand := fc.lowerPlace(e.Object)
	args := fc.lowerArgs(e.Args)
	var entityName string
	if objType != nil {
		entityName = objType.Name
	}
	mf, ok := l.prog.FuncByName(mangleMethod(entityName, e.Method))
	fullArgs := append([]mir.Operand{readPlace(objOperand, objType)}, args...)
	if !ok {
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
		return
	}
	ref := mir.FuncRef{Direct: mf.ID, TypeArgs: fc.inferTypeArgs(mf, e.Args)}
	if len(mf.Effects.Effects) > 0 {
		fc.emitEffectfulCall(dest, ref, fullArgs)
		return
	}
	fc.assign(dest, mir.CallPureRvalue{Func: ref, Args: fullArgs, Type: t})
}

// lowerMatchExpr lowers a match over an enum-typed scrutinee to a SwitchInt
// over its tag field, one target block per arm (wildcard arms share the
// Default target), joining afterward into dest.
func (fc *funcLowering) lowerMatchExpr(dest mir.Place, e *ast.MatchExpr) {
	scrutType := fc.typeOf(e.Scrutinee)
	scrutTmp := fc.newTemp(scrutType)
	fc.lowerExprInto(mir.LocalPlace(scrutTmp), e.Scrutinee)
	scrutPlace := mir.LocalPlace(scrutTmp)
	tag := readPlace(scrutPlace.WithField(tagField, mir.TypeInt), mir.TypeInt)

	joinBlock := fc.newBlock()
	var cases []mir.SwitchCase
	defaultBlock := joinBlock

	for _, arm := range e.Arms {
		armBlock := fc.newBlock()
		if arm.Pattern.IsWildcard {
			defaultBlock = armBlock
		} else {
			idx := fc.l.variantIndex[arm.Pattern.VariantName]
			cases = append(cases, mir.SwitchCase{Value: int64(idx), Target: armBlock})
		}
	}

	fc.setTerm(mir.SwitchIntTerminator{Discriminant: tag, Cases: cases, Default: defaultBlock})

	bi := 0
	for _, arm := range e.Arms {
		var blockID mir.BlockID
		if arm.Pattern.IsWildcard {
			blockID = defaultBlock
		} else {
			blockID = cases[bi].Target
			bi++
		}
		fc.cur = blockID
		fc.pushScope()
		for i, bind := range arm.Pattern.Bindings {
			fieldNames := fc.l.variantFields[arm.Pattern.VariantName]
			if i < len(fieldNames) {
				ft := fc.l.variantFieldType(arm.Pattern.VariantName, i)
				bindLocal := fc.fn.NewLocal(bind, ft, false)
				fc.assign(mir.LocalPlace(bindLocal), mir.UseRvalue{Operand: readPlace(scrutPlace.WithField(fieldNames[i], ft), ft)})
				fc.define(bind, bindLocal)
			}
		}
		fc.lowerExprInto(dest, arm.Body)
		if fc.fn.Block(fc.cur).Terminator == nil {
			fc.setTerm(mir.GotoTerminator{Target: joinBlock})
		}
		fc.popScope()
	}

	fc.cur = joinBlock
}

// lowerTryExpr lowers `expr?`: on Ok/Some, dest gets the payload; on Err/None
// the enclosing function returns the whole value immediately.
func (fc *funcLowering) lowerTryExpr(dest mir.Place, e *ast.TryExpr) {
	innerType := fc.typeOf(e.Expr)
	innerTmp := fc.newTemp(innerType)
	fc.lowerExprInto(mir.LocalPlace(innerTmp), e.Expr)
	innerPlace := mir.LocalPlace(innerTmp)
	tag := readPlace(innerPlace.WithField(tagField, mir.TypeInt), mir.TypeInt)

	okBlock := fc.newBlock()
	errBlock := fc.newBlock()
	joinBlock := fc.newBlock()
	fc.setTerm(mir.SwitchIntTerminator{
		Discriminant: tag,
		Cases:        []mir.SwitchCase{{Value: 0, Target: okBlock}},
		Default:      errBlock,
	})

	fc.cur = errBlock
	fc.assign(mir.LocalPlace(mir.ReturnLocal), mir.UseRvalue{Operand: readPlace(innerPlace, innerType)})
	fc.setTerm(mir.ReturnTerminator{})

	fc.cur = okBlock
	payloadType := fc.typeOf(e)
	fc.assign(dest, mir.UseRvalue{Operand: readPlace(innerPlace.WithField("value", payloadType), payloadType)})
	fc.setTerm(mir.GotoTerminator{Target: joinBlock})

	fc.cur = joinBlock
}
