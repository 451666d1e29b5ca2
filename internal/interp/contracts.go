package interp

import (
	"fmt"

	"github.com/nyxlang/nyx/internal/ast"
)

// bindEnv builds a root scope with self (if any) and params bound to
// args positionally, the shared setup CheckRequires/CheckEnsures/
// CaptureOld all need before evaluating a contract clause.
func (i *Interpreter) bindEnv(params []*ast.Param, args []any, self *EntityInstance) *Env {
	env := NewEnv(nil)
	if self != nil {
		env.Define("self", self)
	}
	for idx, p := range params {
		if idx < len(args) {
			env.Define(p.Name, args[idx])
		}
	}
	return env
}

func (i *Interpreter) evalBoolClause(e ast.Expression, env *Env) (bool, error) {
	v, err := i.eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("interp: contract clause did not evaluate to Bool")
	}
	return b, nil
}

// CheckRequires reports whether every clause holds for the given
// arguments (and self, for a method/constructor; nil for a free
// function).
func (i *Interpreter) CheckRequires(requires []*ast.ContractClause, params []*ast.Param, args []any, self *EntityInstance) (bool, error) {
	env := i.bindEnv(params, args, self)
	for _, c := range requires {
		ok, err := i.evalBoolClause(c.Expr, env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CaptureOld snapshots every old(...) subexpression reachable from
// clauses against the pre-call state, so CheckEnsures's later
// evaluation of those same OldExpr nodes reads the snapshot instead of
// re-evaluating against post-call state.
func (i *Interpreter) CaptureOld(clauses []*ast.ContractClause, params []*ast.Param, args []any, self *EntityInstance) error {
	env := i.bindEnv(params, args, self)
	for _, c := range clauses {
		if err := i.captureOldExpr(c.Expr, env); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) captureOldExpr(e ast.Expression, env *Env) error {
	switch x := e.(type) {
	case *ast.BinaryExpr:
		if err := i.captureOldExpr(x.Left, env); err != nil {
			return err
		}
		return i.captureOldExpr(x.Right, env)
	case *ast.UnaryExpr:
		return i.captureOldExpr(x.Operand, env)
	case *ast.FieldAccessExpr:
		return i.captureOldExpr(x.Object, env)
	case *ast.IndexExpr:
		if err := i.captureOldExpr(x.Object, env); err != nil {
			return err
		}
		return i.captureOldExpr(x.Index, env)
	case *ast.CallExpr:
		for _, arg := range x.Args {
			if err := i.captureOldExpr(arg, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.MethodCallExpr:
		if err := i.captureOldExpr(x.Object, env); err != nil {
			return err
		}
		for _, arg := range x.Args {
			if err := i.captureOldExpr(arg, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.ForallExpr:
		return i.captureOldExpr(x.Body, env)
	case *ast.ExistsExpr:
		return i.captureOldExpr(x.Body, env)
	case *ast.OldExpr:
		v, err := i.eval(x.Expr, env)
		if err != nil {
			return err
		}
		if i.oldCaptures == nil {
			i.oldCaptures = make(map[*ast.OldExpr]any)
		}
		i.oldCaptures[x] = v
		return nil
	default:
		return nil
	}
}

// CheckEnsures evaluates every ensures clause against the post-call
// state: params bound to the call's arguments, "result" bound to its
// return value, and self (nil for a free function). Returns the raw
// text of the first failing clause.
func (i *Interpreter) CheckEnsures(ensures []*ast.ContractClause, params []*ast.Param, args []any, result any, self *EntityInstance) (bool, string, error) {
	env := i.bindEnv(params, args, self)
	env.Define("result", result)
	for _, c := range ensures {
		ok, err := i.evalBoolClause(c.Expr, env)
		if err != nil {
			return false, c.RawText, err
		}
		if !ok {
			return false, c.RawText, nil
		}
	}
	return true, "", nil
}

// CheckInvariants evaluates an entity's own invariants against an
// already-constructed instance. Returns the raw text of the first
// failing invariant.
func (i *Interpreter) CheckInvariants(invariants []*ast.InvariantDecl, self *EntityInstance) (bool, string, error) {
	env := i.bindEnv(nil, nil, self)
	for _, inv := range invariants {
		ok, err := i.evalBoolClause(inv.Expr, env)
		if err != nil {
			return false, inv.RawText, err
		}
		if !ok {
			return false, inv.RawText, nil
		}
	}
	return true, "", nil
}
