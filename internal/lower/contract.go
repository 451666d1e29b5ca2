package lower

import (
	"fmt"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/mir"
)

// lowerRequires evaluates each requires clause's condition at function entry
// into a fresh bool local, recording it on fn.Contract.
func (fc *funcLowering) lowerRequires(clauses []*ast.ContractClause) {
	for _, c := range clauses {
		tmp := fc.newTemp(mir.TypeBool)
		fc.lowerExprInto(mir.LocalPlace(tmp), c.Expr)
		fc.fn.Contract.Requires = append(fc.fn.Contract.Requires, mir.ContractClauseMIR{CondLocal: tmp, RawText: c.RawText})
	}
}

// lowerOldCaptures finds every old(expr) reachable from ensures, evaluates
// expr once at function entry (before the body can mutate anything it
// reads), and records the snapshot so lowerEnsures's later old(expr)
// lowering can resolve it by AST identity instead of re-evaluating it
// post-call.
func (fc *funcLowering) lowerOldCaptures(clauses []*ast.ContractClause) {
	var olds []*ast.OldExpr
	for _, c := range clauses {
		collectOldExprs(c.Expr, &olds)
	}
	if len(olds) == 0 {
		return
	}
	if fc.fn.Contract.OldLocals == nil {
		fc.fn.Contract.OldLocals = make(map[string]mir.LocalID)
	}
	if fc.oldKeyExprs == nil {
		fc.oldKeyExprs = make(map[string]ast.Expression)
	}
	for _, o := range olds {
		name := fmt.Sprintf("__old%d", fc.oldCounter)
		fc.oldCounter++
		t := fc.typeOf(o.Expr)
		tmp := fc.newTemp(t)
		fc.lowerExprInto(mir.LocalPlace(tmp), o.Expr)
		fc.fn.Contract.OldLocals[name] = tmp
		fc.oldKeyExprs[name] = o.Expr
	}
}

// lowerEnsures evaluates each ensures clause's condition, binding "result"
// to resultLocal for the duration so ResultExpr resolves correctly.
func (fc *funcLowering) lowerEnsures(clauses []*ast.ContractClause, resultLocal mir.LocalID) {
	if len(clauses) == 0 {
		return
	}
	fc.fn.Contract.ResultLocal = resultLocal
	fc.pushScope()
	fc.define("result", resultLocal)
	for _, c := range clauses {
		tmp := fc.newTemp(mir.TypeBool)
		fc.lowerExprInto(mir.LocalPlace(tmp), c.Expr)
		fc.fn.Contract.Ensures = append(fc.fn.Contract.Ensures, mir.ContractClauseMIR{CondLocal: tmp, RawText: c.RawText})
	}
	fc.popScope()
}

// collectOldExprs walks an expression tree looking for OldExpr nodes,
// covering the expression shapes contract clauses are built from.
func collectOldExprs(expr ast.Expression, out *[]*ast.OldExpr) {
	switch e := expr.(type) {
	case *ast.OldExpr:
		*out = append(*out, e)
	case *ast.BinaryExpr:
		collectOldExprs(e.Left, out)
		collectOldExprs(e.Right, out)
	case *ast.UnaryExpr:
		collectOldExprs(e.Operand, out)
	case *ast.CallExpr:
		for _, a := range e.Args {
			collectOldExprs(a, out)
		}
	case *ast.MethodCallExpr:
		collectOldExprs(e.Object, out)
		for _, a := range e.Args {
			collectOldExprs(a, out)
		}
	case *ast.FieldAccessExpr:
		collectOldExprs(e.Object, out)
	case *ast.IndexExpr:
		collectOldExprs(e.Object, out)
		collectOldExprs(e.Index, out)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			collectOldExprs(el, out)
		}
	case *ast.TryExpr:
		collectOldExprs(e.Expr, out)
	case *ast.RangeExpr:
		collectOldExprs(e.Start, out)
		collectOldExprs(e.End, out)
	case *ast.ForallExpr:
		collectOldExprs(e.Body, out)
	case *ast.ExistsExpr:
		collectOldExprs(e.Body, out)
	case *ast.MatchExpr:
		collectOldExprs(e.Scrutinee, out)
		for _, arm := range e.Arms {
			collectOldExprs(arm.Body, out)
		}
	}
}
