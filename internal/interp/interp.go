// Package interp is a tree-walking evaluator for the parsed syntax tree,
// used by the `run` CLI subcommand and by internal/testgen to execute
// contract-bearing functions directly instead of emitting text for a
// separate compiler to build. It is deliberately not the native/WASM
// code path: those lower through internal/mir for ahead-of-time object
// code, while this package interprets an *ast.Program straight off the
// parser, the same relationship aria-interpreter/src/eval.rs bears to
// aria-codegen/ in the implementation this line of packages descends
// from.
package interp

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/effect"
	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/runtime/task"
)

// variantInfo records which enum a bare variant name belongs to, and how
// many positional fields it carries, mirroring internal/checker's own
// enumVariants lookup table.
type variantInfo struct {
	enumName string
	fields   []*ast.FieldDecl
}

// Interpreter evaluates one *ast.Program. It owns the effect evidence
// stack and the task scheduler backing perform/handle and spawn/await,
// so it is single-owner like both of those: build a fresh Interpreter
// per top-level run rather than sharing one across goroutines.
type Interpreter struct {
	prog      *ast.Program
	functions map[string]*ast.FunctionDecl
	entities  map[string]*ast.EntityDecl
	enums     map[string]*ast.EnumDecl
	variants  map[string]*variantInfo

	effects   *effect.Stack
	scheduler *task.Scheduler

	// oldCaptures holds pre-call snapshots of old(...) subexpressions,
	// keyed by AST node identity so an ensures clause's old(expr) reads
	// the value captured before the call ran rather than re-evaluating
	// expr against post-call state.
	oldCaptures map[*ast.OldExpr]any
}

// New builds an Interpreter over prog, indexing its functions, entities
// and enum variants for name resolution during evaluation.
func New(prog *ast.Program) *Interpreter {
	i := &Interpreter{
		prog:      prog,
		functions: make(map[string]*ast.FunctionDecl),
		entities:  make(map[string]*ast.EntityDecl),
		enums:     make(map[string]*ast.EnumDecl),
		variants:  make(map[string]*variantInfo),
		effects:   effect.NewStack(),
		scheduler: task.NewScheduler(int64(runtime.NumCPU())),
	}
	for _, fn := range prog.Functions {
		i.functions[fn.Name] = fn
	}
	for _, e := range prog.Entities {
		i.entities[e.Name] = e
	}
	for _, e := range prog.Enums {
		i.enums[e.Name] = e
		for _, v := range e.Variants {
			i.variants[v.Name] = &variantInfo{enumName: e.Name, fields: v.Fields}
		}
	}
	return i
}

// ctrlKind classifies how a statement sequence stopped running.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

type ctrl struct {
	kind  ctrlKind
	value any
}

// earlyReturn is how a `?` try-expression unwinds to its enclosing
// function: Err/None propagates by returning this as an eval error,
// which execStmt recognizes and converts into a ctrlReturn.
type earlyReturn struct {
	value any
}

func (e *earlyReturn) Error() string { return "early return via ?" }

// deferredCall is one `defer expr;` registration: the expression and the
// scope it closed over, re-evaluated in full at its owning block's exit.
type deferredCall struct {
	expr ast.Expression
	env  *Env
}

// CallFunction invokes a free function by name with already-evaluated
// arguments.
func (i *Interpreter) CallFunction(name string, args []any) (any, error) {
	fn, ok := i.functions[name]
	if !ok {
		return nil, fmt.Errorf("interp: unknown function %q", name)
	}
	env := NewEnv(nil)
	for idx, p := range fn.Params {
		env.Define(p.Name, args[idx])
	}
	return i.runBody(fn.Body, env)
}

// Construct builds a new instance of entityName by running its
// constructor with args.
func (i *Interpreter) Construct(entityName string, args []any) (*EntityInstance, error) {
	ent, ok := i.entities[entityName]
	if !ok {
		return nil, fmt.Errorf("interp: unknown entity %q", entityName)
	}
	inst := &EntityInstance{Type: entityName, Fields: make(map[string]any)}
	if ent.Constructor == nil {
		return inst, nil
	}
	env := NewEnv(nil)
	env.Define("self", inst)
	for idx, p := range ent.Constructor.Params {
		env.Define(p.Name, args[idx])
	}
	if _, err := i.runBody(ent.Constructor.Body, env); err != nil {
		return nil, err
	}
	return inst, nil
}

// CallMethod invokes a method on an already-constructed entity instance.
func (i *Interpreter) CallMethod(inst *EntityInstance, methodName string, args []any) (any, error) {
	ent, ok := i.entities[inst.Type]
	if !ok {
		return nil, fmt.Errorf("interp: unknown entity %q", inst.Type)
	}
	var m *ast.MethodDecl
	for _, cand := range ent.Methods {
		if cand.Name == methodName {
			m = cand
			break
		}
	}
	if m == nil {
		return nil, fmt.Errorf("interp: entity %q has no method %q", inst.Type, methodName)
	}
	env := NewEnv(nil)
	env.Define("self", inst)
	for idx, p := range m.Params {
		env.Define(p.Name, args[idx])
	}
	return i.runBody(m.Body, env)
}

// runBody executes a function/method/constructor body already seeded
// with its parameter bindings in env, returning the value passed to its
// `return`, or nil for a body that falls off the end (Void).
func (i *Interpreter) runBody(body *ast.Block, env *Env) (any, error) {
	if body == nil {
		return nil, nil
	}
	c, err := i.execBlock(body, env)
	if err != nil {
		return nil, err
	}
	if c.kind == ctrlReturn {
		return c.value, nil
	}
	return nil, nil
}

// --- statement execution ---

func (i *Interpreter) execBlock(b *ast.Block, env *Env) (ctrl, error) {
	child := NewEnv(env)
	c, err := i.execStatements(b.Statements, child)
	// Run this block's own defers, LIFO, on every exit edge.
	for n := len(child.defers) - 1; n >= 0; n-- {
		d := child.defers[n]
		if _, derr := i.eval(d.expr, d.env); derr != nil && err == nil {
			err = derr
		}
	}
	return c, err
}

func (i *Interpreter) execStatements(stmts []ast.Statement, env *Env) (ctrl, error) {
	for _, s := range stmts {
		c, err := i.execStmt(s, env)
		if err != nil {
			return ctrl{}, err
		}
		if c.kind != ctrlNone {
			return c, nil
		}
	}
	return ctrl{}, nil
}

// asEarlyReturn converts a `?`-propagation error into the ctrlReturn it
// represents, or returns (ctrl{}, err, false) for any other error.
func asEarlyReturn(err error) (ctrl, bool) {
	if er, ok := err.(*earlyReturn); ok {
		return ctrl{kind: ctrlReturn, value: er.value}, true
	}
	return ctrl{}, false
}

func (i *Interpreter) execStmt(s ast.Statement, env *Env) (ctrl, error) {
	switch st := s.(type) {
	case *ast.Block:
		return i.execBlock(st, env)

	case *ast.LetStmt:
		v, err := i.eval(st.Value, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		env.Define(st.Name, v)
		return ctrl{}, nil

	case *ast.AssignStmt:
		v, err := i.eval(st.Value, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		if err := i.assign(st.Target, v, env); err != nil {
			return ctrl{}, err
		}
		return ctrl{}, nil

	case *ast.ReturnStmt:
		if st.Value == nil {
			return ctrl{kind: ctrlReturn}, nil
		}
		v, err := i.eval(st.Value, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		return ctrl{kind: ctrlReturn, value: v}, nil

	case *ast.IfStmt:
		cond, err := i.eval(st.Condition, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		b, ok := cond.(bool)
		if !ok {
			return ctrl{}, fmt.Errorf("interp: if condition is not Bool")
		}
		if b {
			return i.execBlock(st.Then, env)
		}
		if st.Else != nil {
			return i.execStmt(st.Else, env)
		}
		return ctrl{}, nil

	case *ast.WhileStmt:
		for {
			cond, err := i.eval(st.Condition, env)
			if err != nil {
				if c, ok := asEarlyReturn(err); ok {
					return c, nil
				}
				return ctrl{}, err
			}
			b, ok := cond.(bool)
			if !ok {
				return ctrl{}, fmt.Errorf("interp: while condition is not Bool")
			}
			if !b {
				return ctrl{}, nil
			}
			c, err := i.execBlock(st.Body, env)
			if err != nil {
				return ctrl{}, err
			}
			switch c.kind {
			case ctrlBreak:
				return ctrl{}, nil
			case ctrlReturn:
				return c, nil
			}
		}

	case *ast.ForInStmt:
		iterable, err := i.eval(st.Iterable, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		var items []any
		switch it := iterable.(type) {
		case *ArrayValue:
			items = it.Elems
		case rangeValue:
			for v := it.start; v < it.end; v++ {
				items = append(items, v)
			}
		default:
			return ctrl{}, fmt.Errorf("interp: for-in over non-iterable value")
		}
		for _, item := range items {
			loopEnv := NewEnv(env)
			loopEnv.Define(st.Variable, item)
			c, err := i.execBlock(st.Body, loopEnv)
			if err != nil {
				return ctrl{}, err
			}
			switch c.kind {
			case ctrlBreak:
				return ctrl{}, nil
			case ctrlReturn:
				return c, nil
			}
		}
		return ctrl{}, nil

	case *ast.BreakStmt:
		return ctrl{kind: ctrlBreak}, nil

	case *ast.ContinueStmt:
		return ctrl{kind: ctrlContinue}, nil

	case *ast.ExprStmt:
		_, err := i.eval(st.Expr, env)
		if err != nil {
			if c, ok := asEarlyReturn(err); ok {
				return c, nil
			}
			return ctrl{}, err
		}
		return ctrl{}, nil

	case *ast.DeferStmt:
		env.defers = append(env.defers, &deferredCall{expr: st.Expr, env: env})
		return ctrl{}, nil

	case *ast.SendStmt, *ast.SelectStmt:
		return ctrl{}, fmt.Errorf("interp: channel operations are not supported (no channel construction form in the grammar yet)")

	default:
		return ctrl{}, fmt.Errorf("interp: unsupported statement %T", s)
	}
}

// assign writes v to the storage target names, handling the three
// assignable expression shapes: a bare identifier, an entity field, and
// an array slot.
func (i *Interpreter) assign(target ast.Expression, v any, env *Env) error {
	switch t := target.(type) {
	case *ast.Identifier:
		if !env.Assign(t.Name, v) {
			return fmt.Errorf("interp: assignment to undeclared variable %q", t.Name)
		}
		return nil
	case *ast.FieldAccessExpr:
		obj, err := i.eval(t.Object, env)
		if err != nil {
			return err
		}
		inst, ok := obj.(*EntityInstance)
		if !ok {
			return fmt.Errorf("interp: field assignment target is not an entity")
		}
		inst.Fields[t.Field] = v
		return nil
	case *ast.IndexExpr:
		obj, err := i.eval(t.Object, env)
		if err != nil {
			return err
		}
		arr, ok := obj.(*ArrayValue)
		if !ok {
			return fmt.Errorf("interp: index assignment target is not an array")
		}
		idx, err := i.eval(t.Index, env)
		if err != nil {
			return err
		}
		ix, ok := idx.(int64)
		if !ok || ix < 0 || int(ix) >= len(arr.Elems) {
			return fmt.Errorf("interp: array index out of range")
		}
		arr.Elems[ix] = v
		return nil
	default:
		return fmt.Errorf("interp: unsupported assignment target %T", target)
	}
}

// --- expression evaluation ---

func (i *Interpreter) eval(e ast.Expression, env *Env) (any, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		n, err := strconv.ParseInt(x.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("interp: invalid int literal %q: %w", x.Value, err)
		}
		return n, nil

	case *ast.FloatLit:
		f, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("interp: invalid float literal %q: %w", x.Value, err)
		}
		return f, nil

	case *ast.StringLit:
		return x.Value, nil

	case *ast.BoolLit:
		return x.Value, nil

	case *ast.Identifier:
		if v, ok := env.Resolve(x.Name); ok {
			return v, nil
		}
		if x.Name == "None" {
			return &EnumValue{Enum: "Option", Variant: "None"}, nil
		}
		if vi, ok := i.variants[x.Name]; ok && len(vi.fields) == 0 {
			return &EnumValue{Enum: vi.enumName, Variant: x.Name}, nil
		}
		return nil, fmt.Errorf("interp: unbound identifier %q", x.Name)

	case *ast.SelfExpr:
		v, ok := env.Resolve("self")
		if !ok {
			return nil, fmt.Errorf("interp: 'self' referenced outside a method")
		}
		return v, nil

	case *ast.ResultExpr:
		v, ok := env.Resolve("result")
		if !ok {
			return nil, fmt.Errorf("interp: 'result' referenced outside an ensures clause")
		}
		return v, nil

	case *ast.OldExpr:
		if v, ok := i.oldCaptures[x]; ok {
			return v, nil
		}
		return i.eval(x.Expr, env)

	case *ast.BinaryExpr:
		return i.evalBinary(x, env)

	case *ast.UnaryExpr:
		return i.evalUnary(x, env)

	case *ast.FieldAccessExpr:
		obj, err := i.eval(x.Object, env)
		if err != nil {
			return nil, err
		}
		inst, ok := obj.(*EntityInstance)
		if !ok {
			return nil, fmt.Errorf("interp: field access on non-entity value")
		}
		v, ok := inst.Fields[x.Field]
		if !ok {
			return nil, fmt.Errorf("interp: %s has no field %q", inst.Type, x.Field)
		}
		return v, nil

	case *ast.IndexExpr:
		obj, err := i.eval(x.Object, env)
		if err != nil {
			return nil, err
		}
		arr, ok := obj.(*ArrayValue)
		if !ok {
			return nil, fmt.Errorf("interp: index target is not an array")
		}
		idxv, err := i.eval(x.Index, env)
		if err != nil {
			return nil, err
		}
		ix, ok := idxv.(int64)
		if !ok || ix < 0 || int(ix) >= len(arr.Elems) {
			return nil, fmt.Errorf("interp: array index out of range")
		}
		return arr.Elems[ix], nil

	case *ast.ArrayLit:
		elems := make([]any, len(x.Elements))
		for idx, el := range x.Elements {
			v, err := i.eval(el, env)
			if err != nil {
				return nil, err
			}
			elems[idx] = v
		}
		return &ArrayValue{Elems: elems}, nil

	case *ast.RangeExpr:
		start, err := i.eval(x.Start, env)
		if err != nil {
			return nil, err
		}
		end, err := i.eval(x.End, env)
		if err != nil {
			return nil, err
		}
		s, ok1 := start.(int64)
		e2, ok2 := end.(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("interp: range bounds must be Int")
		}
		return rangeValue{start: s, end: e2}, nil

	case *ast.ForallExpr:
		return i.evalQuantifier(x.Variable, x.Domain, x.Body, env, true)

	case *ast.ExistsExpr:
		return i.evalQuantifier(x.Variable, x.Domain, x.Body, env, false)

	case *ast.CallExpr:
		return i.evalCall(x, env)

	case *ast.MethodCallExpr:
		return i.evalMethodCall(x, env)

	case *ast.TryExpr:
		return i.evalTry(x, env)

	case *ast.MatchExpr:
		return i.evalMatch(x, env)

	case *ast.ClosureExpr:
		names := make([]string, len(x.Params))
		for idx, p := range x.Params {
			names[idx] = p.Name
		}
		return &closureValue{params: names, body: x.Body, env: env}, nil

	case *ast.BlockExpr:
		c, err := i.execBlock(x.Body, env)
		if err != nil {
			return nil, err
		}
		if c.kind == ctrlReturn {
			return c.value, nil
		}
		return nil, nil

	case *ast.PerformExpr:
		return i.evalPerform(x, env)

	case *ast.HandleExpr:
		return i.evalHandle(x, env)

	case *ast.ResumeExpr:
		return i.eval(x.Value, env)

	case *ast.SpawnExpr:
		return i.evalSpawn(x, env)

	case *ast.AwaitExpr:
		return i.evalAwait(x, env)

	case *ast.YieldExpr:
		runtime.Gosched()
		return nil, nil

	case *ast.RecvExpr:
		return nil, fmt.Errorf("interp: channel operations are not supported (no channel construction form in the grammar yet)")

	default:
		return nil, fmt.Errorf("interp: unsupported expression %T", e)
	}
}

func (i *Interpreter) evalQuantifier(variable string, domain *ast.RangeExpr, body ast.Expression, env *Env, isForall bool) (any, error) {
	d, err := i.eval(domain, env)
	if err != nil {
		return nil, err
	}
	r, ok := d.(rangeValue)
	if !ok {
		return nil, fmt.Errorf("interp: quantifier domain must be a range")
	}
	for v := r.start; v < r.end; v++ {
		child := NewEnv(env)
		child.Define(variable, v)
		res, err := i.eval(body, child)
		if err != nil {
			return nil, err
		}
		b, ok := res.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: quantifier body is not Bool")
		}
		if isForall && !b {
			return false, nil
		}
		if !isForall && b {
			return true, nil
		}
	}
	return isForall, nil
}

func (i *Interpreter) evalTry(t *ast.TryExpr, env *Env) (any, error) {
	v, err := i.eval(t.Expr, env)
	if err != nil {
		return nil, err
	}
	ev, ok := v.(*EnumValue)
	if !ok {
		return nil, fmt.Errorf("interp: '?' requires a Result/Option value")
	}
	switch ev.Variant {
	case "Ok", "Some":
		if len(ev.Fields) > 0 {
			return ev.Fields[0], nil
		}
		return nil, nil
	default:
		return nil, &earlyReturn{value: ev}
	}
}

func (i *Interpreter) evalMatch(m *ast.MatchExpr, env *Env) (any, error) {
	scrutinee, err := i.eval(m.Scrutinee, env)
	if err != nil {
		return nil, err
	}
	ev, ok := scrutinee.(*EnumValue)
	if !ok {
		return nil, fmt.Errorf("interp: match scrutinee is not an enum value")
	}
	var wildcard *ast.MatchArm
	for _, arm := range m.Arms {
		if arm.Pattern.IsWildcard {
			wildcard = arm
			continue
		}
		if arm.Pattern.VariantName != ev.Variant {
			continue
		}
		child := NewEnv(env)
		for idx, bind := range arm.Pattern.Bindings {
			if idx < len(ev.Fields) {
				child.Define(bind, ev.Fields[idx])
			}
		}
		return i.eval(arm.Body, child)
	}
	if wildcard != nil {
		return i.eval(wildcard.Body, NewEnv(env))
	}
	return nil, fmt.Errorf("interp: match has no arm for variant %q", ev.Variant)
}

func (i *Interpreter) evalCall(c *ast.CallExpr, env *Env) (any, error) {
	switch c.Function {
	case "print":
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("interp: print() expects 1 argument")
		}
		v, err := i.eval(c.Args[0], env)
		if err != nil {
			return nil, err
		}
		fmt.Println(formatValue(v))
		return nil, nil

	case "len":
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("interp: len() expects 1 argument")
		}
		v, err := i.eval(c.Args[0], env)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(*ArrayValue)
		if !ok {
			return nil, fmt.Errorf("interp: len() requires an Array argument")
		}
		return int64(len(arr.Elems)), nil

	case "Ok":
		v, err := i.evalSingleArg(c, env)
		if err != nil {
			return nil, err
		}
		return &EnumValue{Enum: "Result", Variant: "Ok", Fields: []any{v}}, nil

	case "Err":
		v, err := i.evalSingleArg(c, env)
		if err != nil {
			return nil, err
		}
		return &EnumValue{Enum: "Result", Variant: "Err", Fields: []any{v}}, nil

	case "Some":
		v, err := i.evalSingleArg(c, env)
		if err != nil {
			return nil, err
		}
		return &EnumValue{Enum: "Option", Variant: "Some", Fields: []any{v}}, nil
	}

	args, err := i.evalArgs(c.Args, env)
	if err != nil {
		return nil, err
	}

	if vi, ok := i.variants[c.Function]; ok {
		return &EnumValue{Enum: vi.enumName, Variant: c.Function, Fields: args}, nil
	}
	if _, ok := i.entities[c.Function]; ok {
		return i.Construct(c.Function, args)
	}
	if _, ok := i.functions[c.Function]; ok {
		return i.CallFunction(c.Function, args)
	}
	return nil, fmt.Errorf("interp: call to unknown function %q", c.Function)
}

func (i *Interpreter) evalSingleArg(c *ast.CallExpr, env *Env) (any, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("interp: %s() expects 1 argument", c.Function)
	}
	return i.eval(c.Args[0], env)
}

func (i *Interpreter) evalArgs(exprs []ast.Expression, env *Env) ([]any, error) {
	args := make([]any, len(exprs))
	for idx, e := range exprs {
		v, err := i.eval(e, env)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}
	return args, nil
}

func (i *Interpreter) evalMethodCall(m *ast.MethodCallExpr, env *Env) (any, error) {
	obj, err := i.eval(m.Object, env)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*EntityInstance)
	if !ok {
		return nil, fmt.Errorf("interp: method call on a non-entity value")
	}
	args, err := i.evalArgs(m.Args, env)
	if err != nil {
		return nil, err
	}
	return i.CallMethod(inst, m.Method, args)
}

// --- effects and concurrency ---

func (i *Interpreter) evalPerform(p *ast.PerformExpr, env *Env) (any, error) {
	args, err := i.evalArgs(p.Args, env)
	if err != nil {
		return nil, err
	}
	return i.effects.Perform(p.Effect, p.Operation, args)
}

func (i *Interpreter) evalHandle(h *ast.HandleExpr, env *Env) (any, error) {
	ops := make(map[string]effect.HandlerFunc, len(h.Clauses))
	for _, clause := range h.Clauses {
		clause := clause
		ops[clause.Operation] = func(args []any) (any, error) {
			clauseEnv := NewEnv(env)
			for idx, name := range clause.Params {
				if idx < len(args) {
					clauseEnv.Define(name, args[idx])
				}
			}
			return i.evalExprBody(clause.Body, clauseEnv)
		}
	}
	i.effects.Install(h.Effect, ops)
	defer i.effects.Uninstall(h.Effect)
	return i.eval(h.Body, env)
}

// evalExprBody evaluates an expression used as a closure/handler-clause
// body, unwrapping a BlockExpr's trailing control flow the same way
// execBlock does for an ordinary block.
func (i *Interpreter) evalExprBody(body ast.Expression, env *Env) (any, error) {
	if be, ok := body.(*ast.BlockExpr); ok {
		c, err := i.execBlock(be.Body, env)
		if err != nil {
			return nil, err
		}
		if c.kind == ctrlReturn {
			return c.value, nil
		}
		return nil, nil
	}
	return i.eval(body, env)
}

func (i *Interpreter) callClosure(cv *closureValue, args []any) (any, error) {
	env := NewEnv(cv.env)
	for idx, name := range cv.params {
		if idx < len(args) {
			env.Define(name, args[idx])
		}
	}
	return i.evalExprBody(cv.body, env)
}

func (i *Interpreter) evalSpawn(s *ast.SpawnExpr, env *Env) (any, error) {
	args, err := i.evalArgs(s.Args, env)
	if err != nil {
		return nil, err
	}

	run, err := i.resolveCallable(s.Func, env)
	if err != nil {
		return nil, err
	}

	id, err := i.scheduler.Spawn(context.Background(), nil, func(*task.Task) any {
		v, err := run(args)
		if err != nil {
			panic(err)
		}
		return v
	})
	if err != nil {
		return nil, err
	}
	return &TaskHandle{id: id}, nil
}

// resolveCallable turns spawn's Func expression into a Go closure over
// args, without forcing an eval of a bare function-name Identifier
// (which eval would otherwise reject as an unbound variable).
func (i *Interpreter) resolveCallable(fnExpr ast.Expression, env *Env) (func([]any) (any, error), error) {
	if ident, ok := fnExpr.(*ast.Identifier); ok {
		if _, isVar := env.Resolve(ident.Name); !isVar {
			if _, ok := i.functions[ident.Name]; ok {
				name := ident.Name
				return func(args []any) (any, error) { return i.CallFunction(name, args) }, nil
			}
		}
	}
	v, err := i.eval(fnExpr, env)
	if err != nil {
		return nil, err
	}
	cv, ok := v.(*closureValue)
	if !ok {
		return nil, fmt.Errorf("interp: spawn target is not callable")
	}
	return func(args []any) (any, error) { return i.callClosure(cv, args) }, nil
}

func (i *Interpreter) evalAwait(a *ast.AwaitExpr, env *Env) (any, error) {
	v, err := i.eval(a.Task, env)
	if err != nil {
		return nil, err
	}
	th, ok := v.(*TaskHandle)
	if !ok {
		return nil, fmt.Errorf("interp: await target is not a task handle")
	}
	return i.scheduler.Await(context.Background(), th.id)
}

// --- binary/unary operators ---

func (i *Interpreter) evalBinary(b *ast.BinaryExpr, env *Env) (any, error) {
	switch b.Op {
	case lexer.AND:
		l, err := i.eval(b.Left, env)
		if err != nil {
			return nil, err
		}
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: '&&' left operand is not Bool")
		}
		if !lb {
			return false, nil
		}
		r, err := i.eval(b.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: '&&' right operand is not Bool")
		}
		return rb, nil

	case lexer.OR:
		l, err := i.eval(b.Left, env)
		if err != nil {
			return nil, err
		}
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: '||' left operand is not Bool")
		}
		if lb {
			return true, nil
		}
		r, err := i.eval(b.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: '||' right operand is not Bool")
		}
		return rb, nil
	}

	l, err := i.eval(b.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := i.eval(b.Right, env)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case lexer.IMPLIES:
		lb, ok1 := l.(bool)
		rb, ok2 := r.(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("interp: '==>' requires Bool operands")
		}
		return !lb || rb, nil

	case lexer.EQ:
		return valuesEqual(l, r), nil
	case lexer.NEQ:
		return !valuesEqual(l, r), nil
	}

	if ls, ok := l.(string); ok && b.Op == lexer.PLUS {
		rs, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("interp: '+' mixes String with a non-String operand")
		}
		return ls + rs, nil
	}

	lf, lIsFloat := toFloat(l)
	rf, rIsFloat := toFloat(r)
	if !lIsFloat || !rIsFloat {
		return nil, fmt.Errorf("interp: arithmetic/comparison requires numeric operands")
	}
	_, lWasFloat := l.(float64)
	_, rWasFloat := r.(float64)
	useFloat := lWasFloat || rWasFloat

	switch b.Op {
	case lexer.PLUS, lexer.MINUS, lexer.STAR, lexer.SLASH, lexer.PERCENT:
		if useFloat {
			switch b.Op {
			case lexer.PLUS:
				return lf + rf, nil
			case lexer.MINUS:
				return lf - rf, nil
			case lexer.STAR:
				return lf * rf, nil
			case lexer.SLASH:
				if rf == 0 {
					return nil, fmt.Errorf("interp: division by zero")
				}
				return lf / rf, nil
			default:
				return nil, fmt.Errorf("interp: '%%' is not defined for Float")
			}
		}
		li, ri := int64(lf), int64(rf)
		switch b.Op {
		case lexer.PLUS:
			return li + ri, nil
		case lexer.MINUS:
			return li - ri, nil
		case lexer.STAR:
			return li * ri, nil
		case lexer.SLASH:
			if ri == 0 {
				return nil, fmt.Errorf("interp: division by zero")
			}
			return li / ri, nil
		case lexer.PERCENT:
			if ri == 0 {
				return nil, fmt.Errorf("interp: modulo by zero")
			}
			return li % ri, nil
		}

	case lexer.LT:
		return lf < rf, nil
	case lexer.GT:
		return lf > rf, nil
	case lexer.LEQ:
		return lf <= rf, nil
	case lexer.GEQ:
		return lf >= rf, nil
	}

	return nil, fmt.Errorf("interp: unsupported binary operator %v", b.Op)
}

func (i *Interpreter) evalUnary(u *ast.UnaryExpr, env *Env) (any, error) {
	v, err := i.eval(u.Operand, env)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case lexer.NOT:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: 'not' requires a Bool operand")
		}
		return !b, nil
	case lexer.MINUS:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, fmt.Errorf("interp: unary '-' requires a numeric operand")
		}
	default:
		return nil, fmt.Errorf("interp: unsupported unary operator %v", u.Op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b any) bool {
	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case *EnumValue:
		bv, ok := b.(*EnumValue)
		if !ok || av.Variant != bv.Variant || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for idx := range av.Fields {
			if !valuesEqual(av.Fields[idx], bv.Fields[idx]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
