package lower

import (
	"strconv"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// isMoveKind reports whether a value of this kind is passed around by Move
// (aggregates, closures) rather than Copy (scalars, channel handles).
func isMoveKind(t *mir.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case mir.KindStruct, mir.KindEnum, mir.KindArray, mir.KindClosure, mir.KindResult, mir.KindOption:
		return true
	default:
		return false
	}
}

func readPlace(p mir.Place, t *mir.Type) mir.Operand {
	if isMoveKind(t) {
		return mir.Move{Place: p, Type: t}
	}
	return mir.Copy{Place: p, Type: t}
}

// lowerPlace lowers an lvalue expression (assignment target, field/index
// base, self reference) to the Place it denotes.
func (fc *funcLowering) lowerPlace(expr ast.Expression) mir.Place {
	switch e := expr.(type) {
	case *ast.Identifier:
		if id, ok := fc.lookup(e.Name); ok {
			return mir.LocalPlace(id)
		}
		return mir.LocalPlace(fc.newTemp(mir.TypeVoid))
	case *ast.SelfExpr:
		if id, ok := fc.lookup("self"); ok {
			return mir.LocalPlace(id)
		}
		return mir.LocalPlace(fc.newTemp(mir.TypeVoid))
	case *ast.FieldAccessExpr:
		base := fc.lowerPlace(e.Object)
		ft := fc.typeOf(expr)
		return base.WithField(e.Field, ft)
	case *ast.IndexExpr:
		base := fc.lowerPlace(e.Object)
		idx := fc.lowerExprToOperand(e.Index)
		et := fc.typeOf(expr)
		return base.WithIndex(idx, et)
	default:
		// Non-lvalue expression used as a target (shouldn't happen post-check);
		// materialize it into a fresh temp so lowering can proceed.
		t := fc.typeOf(expr)
		tmp := fc.newTemp(t)
		fc.lowerExprInto(mir.LocalPlace(tmp), expr)
		return mir.LocalPlace(tmp)
	}
}

// lowerExprToOperand evaluates expr and returns an Operand usable directly
// by another Rvalue or a terminator, introducing a temporary only when expr
// isn't already a bare literal, identifier, or field/index chain.
func (fc *funcLowering) lowerExprToOperand(expr ast.Expression) mir.Operand {
	t := fc.typeOf(expr)
	switch e := expr.(type) {
	case *ast.IntLit:
		v, _ := strconv.ParseInt(e.Value, 10, 64)
		return mir.Constant{Kind: mir.ConstInt, Int: v, Type: mir.TypeInt}
	case *ast.FloatLit:
		return mir.Constant{Kind: mir.ConstFloat, Float: e.Value, Type: mir.TypeFloat}
	case *ast.StringLit:
		return mir.Constant{Kind: mir.ConstString, Str: e.Value, Type: mir.TypeString}
	case *ast.BoolLit:
		return mir.Constant{Kind: mir.ConstBool, Bool: e.Value, Type: mir.TypeBool}
	case *ast.Identifier:
		if e.Name == "None" {
			tmp := fc.newTemp(t)
			fc.lowerExprInto(mir.LocalPlace(tmp), expr)
			return readPlace(mir.LocalPlace(tmp), t)
		}
		if id, ok := fc.lookup(e.Name); ok {
			return readPlace(mir.LocalPlace(id), t)
		}
	case *ast.SelfExpr:
		if id, ok := fc.lookup("self"); ok {
			return readPlace(mir.LocalPlace(id), t)
		}
	case *ast.FieldAccessExpr:
		return readPlace(fc.lowerPlace(e), t)
	case *ast.IndexExpr:
		return readPlace(fc.lowerPlace(e), t)
	}
	tmp := fc.newTemp(t)
	fc.lowerExprInto(mir.LocalPlace(tmp), expr)
	return readPlace(mir.LocalPlace(tmp), t)
}

// lowerExprInto lowers expr and assigns its result into dest, splitting the
// current block when expr's evaluation may suspend the task (an effectful
// call, perform, handle, spawn, await, yield, or channel op).
func (fc *funcLowering) lowerExprInto(dest mir.Place, expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.StringLit, *ast.BoolLit:
		fc.assign(dest, mir.UseRvalue{Operand: fc.lowerExprToOperand(expr)})
	case *ast.Identifier:
		if e.Name == "None" {
			fc.assign(dest, mir.AggregateRvalue{
				Kind: mir.AggregateEnumVariant, TypeName: "Option", VariantName: "None",
				Type: fc.typeOf(expr),
			})
			return
		}
		fc.assign(dest, mir.UseRvalue{Operand: fc.lowerExprToOperand(expr)})
	case *ast.SelfExpr, *ast.FieldAccessExpr, *ast.IndexExpr:
		fc.assign(dest, mir.UseRvalue{Operand: fc.lowerExprToOperand(expr)})
	case *ast.ResultExpr:
		rid, ok := fc.lookup("result")
		if !ok {
			rid = mir.ReturnLocal
		}
		fc.assign(dest, mir.UseRvalue{Operand: readPlace(mir.LocalPlace(rid), fc.typeOf(expr))})
	case *ast.OldExpr:
		// old(expr)'s pre-call snapshot is captured at function entry by
		// lowerFunctionContract; inside an ensures clause it resolves to
		// that snapshot local instead of re-evaluating expr here.
		if id, ok := fc.oldLocal(e); ok {
			fc.assign(dest, mir.UseRvalue{Operand: readPlace(mir.LocalPlace(id), fc.typeOf(expr))})
			return
		}
		fc.lowerExprInto(dest, e.Expr)
	case *ast.BinaryExpr:
		fc.lowerBinaryExpr(dest, e)
	case *ast.UnaryExpr:
		operand := fc.lowerExprToOperand(e.Operand)
		fc.assign(dest, mir.UnaryOpRvalue{Op: e.Op, Operand: operand, Type: fc.typeOf(expr)})
	case *ast.CallExpr:
		fc.lowerCallExpr(dest, e)
	case *ast.MethodCallExpr:
		fc.lowerMethodCallExpr(dest, e)
	case *ast.ArrayLit:
		var elems []mir.Operand
		for _, el := range e.Elements {
			elems = append(elems, fc.lowerExprToOperand(el))
		}
		fc.assign(dest, mir.AggregateRvalue{Kind: mir.AggregateArray, Fields: elems, Type: fc.typeOf(expr)})
	case *ast.MatchExpr:
		fc.lowerMatchExpr(dest, e)
	case *ast.TryExpr:
		fc.lowerTryExpr(dest, e)
	case *ast.BlockExpr:
		fc.lowerBlockExprInto(dest, e)
	case *ast.ClosureExpr:
		fc.lowerClosureExpr(dest, e)
	case *ast.PerformExpr:
		fc.lowerPerformExpr(dest, e)
	case *ast.HandleExpr:
		fc.lowerHandleExpr(dest, e)
	case *ast.ResumeExpr:
		val := fc.lowerExprToOperand(e.Value)
		fc.assign(dest, mir.UseRvalue{Operand: val})
	case *ast.SpawnExpr:
		fc.lowerSpawnExpr(dest, e)
	case *ast.AwaitExpr:
		fc.lowerAwaitExpr(dest, e)
	case *ast.YieldExpr:
		fc.lowerYieldExpr(dest)
	case *ast.RecvExpr:
		fc.lowerRecvExpr(dest, e)
	case *ast.RangeExpr, *ast.ForallExpr, *ast.ExistsExpr:
		// Quantifier/range expressions occur only inside contract clauses,
		// which the verifier discharges over RawText; the body never
		// evaluates them at runtime, so a constant `true` placeholder is
		// sufficient.
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: true, Type: mir.TypeBool}})
	default:
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
	}
}

func (fc *funcLowering) oldLocal(e *ast.OldExpr) (mir.LocalID, bool) {
	if fc.fn.Contract.OldLocals == nil {
		return 0, false
	}
	for key, id := range fc.fn.Contract.OldLocals {
		if fc.oldKeyExprs[key] == e.Expr {
			return id, true
		}
	}
	return 0, false
}

func (fc *funcLowering) lowerBinaryExpr(dest mir.Place, e *ast.BinaryExpr) {
	// `and`/`or` short-circuit: desugar into an if/else writing dest.
	if e.Op == lexer.AND || e.Op == lexer.OR {
		left := fc.lowerExprToOperand(e.Left)
		rhsBlock := fc.newBlock()
		shortBlock := fc.newBlock()
		joinBlock := fc.newBlock()
		if e.Op == lexer.AND {
			fc.setTerm(mir.SwitchIntTerminator{Discriminant: left, Cases: []mir.SwitchCase{{Value: 1, Target: rhsBlock}}, Default: shortBlock})
		} else {
			fc.setTerm(mir.SwitchIntTerminator{Discriminant: left, Cases: []mir.SwitchCase{{Value: 1, Target: shortBlock}}, Default: rhsBlock})
		}

		fc.cur = shortBlock
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: e.Op == lexer.OR, Type: mir.TypeBool}})
		fc.setTerm(mir.GotoTerminator{Target: joinBlock})

		fc.cur = rhsBlock
		right := fc.lowerExprToOperand(e.Right)
		fc.assign(dest, mir.UseRvalue{Operand: right})
		fc.setTerm(mir.GotoTerminator{Target: joinBlock})

		fc.cur = joinBlock
		return
	}

	left := fc.lowerExprToOperand(e.Left)
	right := fc.lowerExprToOperand(e.Right)
	fc.assign(dest, mir.BinaryOpRvalue{Op: e.Op, Left: left, Right: right, Type: fc.typeOf(e)})
}

// lowerBlockExprInto lowers a brace-delimited expression body (closure and
// handler bodies) by lowering every statement but the last as ordinary
// statements, and the last ExprStmt's expression directly into dest.
func (fc *funcLowering) lowerBlockExprInto(dest mir.Place, e *ast.BlockExpr) {
	if e.Body == nil || len(e.Body.Statements) == 0 {
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
		return
	}
	fc.pushScope()
	stmts := e.Body.Statements
	for _, s := range stmts[:len(stmts)-1] {
		fc.lowerStmt(s)
	}
	last := stmts[len(stmts)-1]
	switch s := last.(type) {
	case *ast.ExprStmt:
		fc.lowerExprInto(dest, s.Expr)
	default:
		fc.lowerStmt(last)
		fc.assign(dest, mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstBool, Bool: false, Type: mir.TypeVoid}})
	}
	defers := fc.popScope()
	fc.runDefers(defers)
}
