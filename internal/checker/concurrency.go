package checker

import "github.com/nyxlang/nyx/internal/ast"

// This file checks the grammar the teacher's checker never had to handle:
// traits, impls, effects/handlers, and structured concurrency. It runs as
// its own pass after the main declaration/body checks so the teacher's
// original checker.go control flow stays untouched and diffable.

// TraitInfo holds the method signatures a trait declares.
type TraitInfo struct {
	Name    string
	Methods map[string]*TraitMethodInfo
}

// TraitMethodInfo is one method signature inside a trait.
type TraitMethodInfo struct {
	Name       string
	ParamCount int
}

// EffectInfo holds the operation signatures an effect declares.
type EffectInfo struct {
	Name       string
	Operations map[string]*EffectOpInfo
}

// EffectOpInfo is one operation signature inside an effect.
type EffectOpInfo struct {
	Name       string
	ParamCount int
}

func (c *Checker) checkConcurrency() {
	c.traits = make(map[string]*TraitInfo)
	c.effects = make(map[string]*EffectInfo)

	c.registerTraits()
	c.registerEffects()
	c.checkImpls()
	c.checkFunctionEffectRows()
	c.checkConcurrencyBodies()
}

func (c *Checker) registerTraits() {
	for _, t := range c.prog.Traits {
		info := &TraitInfo{Name: t.Name, Methods: make(map[string]*TraitMethodInfo)}
		for _, m := range t.Methods {
			if _, dup := info.Methods[m.Name]; dup {
				c.diag.Errorf(m.Line, m.Column, "trait '%s' declares method '%s' more than once", t.Name, m.Name)
				continue
			}
			info.Methods[m.Name] = &TraitMethodInfo{Name: m.Name, ParamCount: len(m.Params)}
		}
		if _, dup := c.traits[t.Name]; dup {
			c.diag.Errorf(t.Line, t.Column, "trait '%s' is declared more than once", t.Name)
			continue
		}
		c.traits[t.Name] = info
	}
}

func (c *Checker) registerEffects() {
	for _, e := range c.prog.Effects {
		info := &EffectInfo{Name: e.Name, Operations: make(map[string]*EffectOpInfo)}
		for _, op := range e.Operations {
			if _, dup := info.Operations[op.Name]; dup {
				c.diag.Errorf(op.Line, op.Column, "effect '%s' declares operation '%s' more than once", e.Name, op.Name)
				continue
			}
			info.Operations[op.Name] = &EffectOpInfo{Name: op.Name, ParamCount: len(op.Params)}
		}
		if _, dup := c.effects[e.Name]; dup {
			c.diag.Errorf(e.Line, e.Column, "effect '%s' is declared more than once", e.Name)
			continue
		}
		c.effects[e.Name] = info
	}
}

// checkImpls verifies that every impl block names a known trait and type,
// and implements every method the trait declares with matching arity.
func (c *Checker) checkImpls() {
	for _, impl := range c.prog.Impls {
		trait, ok := c.traits[impl.TraitName]
		if !ok {
			c.diag.Errorf(impl.Line, impl.Column, "unknown trait '%s'", impl.TraitName)
			continue
		}
		if _, ok := c.entities[impl.TypeName]; !ok {
			c.diag.Errorf(impl.Line, impl.Column, "unknown entity '%s' in impl", impl.TypeName)
			continue
		}

		implemented := make(map[string]*ast.MethodDecl)
		for _, m := range impl.Methods {
			if _, dup := implemented[m.Name]; dup {
				c.diag.Errorf(m.Line, m.Column, "method '%s' implemented more than once in this impl block", m.Name)
				continue
			}
			implemented[m.Name] = m
		}

		for name, sig := range trait.Methods {
			m, ok := implemented[name]
			if !ok {
				c.diag.Errorf(impl.Line, impl.Column,
					"impl %s for %s is missing method '%s' required by the trait",
					impl.TraitName, impl.TypeName, name)
				continue
			}
			if len(m.Params) != sig.ParamCount {
				c.diag.Errorf(m.Line, m.Column,
					"method '%s' has %d parameter(s), trait '%s' declares %d",
					name, len(m.Params), impl.TraitName, sig.ParamCount)
			}
		}
		for name := range implemented {
			if _, ok := trait.Methods[name]; !ok {
				c.diag.Errorf(impl.Line, impl.Column,
					"method '%s' is not part of trait '%s'", name, impl.TraitName)
			}
		}
	}
}

// checkFunctionEffectRows verifies every effect named in a function's
// `with` clause is a declared effect or one of the builtin Async/IO/Panic
// effects that structured concurrency and intrinsic operations desugar to.
func (c *Checker) checkFunctionEffectRows() {
	builtin := map[string]bool{"Async": true, "IO": true, "Panic": true}
	for _, fn := range c.prog.Functions {
		for _, eff := range fn.Effects {
			if builtin[eff] {
				continue
			}
			if _, ok := c.effects[eff]; !ok {
				c.diag.Errorf(fn.Line, fn.Column,
					"function '%s' declares unknown effect '%s' in its effect row", fn.Name, eff)
			}
		}
	}
}

// checkConcurrencyBodies walks every function and method body looking for
// the new expression/statement forms, validating perform/handle targets
// against declared effects and classifying handler clauses as
// tail-resumptive or general.
func (c *Checker) checkConcurrencyBodies() {
	for _, fn := range c.prog.Functions {
		c.walkBlockConcurrency(fn.Body)
	}
	for _, ent := range c.prog.Entities {
		if ent.Constructor != nil {
			c.walkBlockConcurrency(ent.Constructor.Body)
		}
		for _, m := range ent.Methods {
			c.walkBlockConcurrency(m.Body)
		}
	}
	for _, impl := range c.prog.Impls {
		for _, m := range impl.Methods {
			c.walkBlockConcurrency(m.Body)
		}
	}
}

func (c *Checker) walkBlockConcurrency(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		c.walkStmtConcurrency(stmt)
	}
}

func (c *Checker) walkStmtConcurrency(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		c.walkExprConcurrency(s.Value)
	case *ast.AssignStmt:
		c.walkExprConcurrency(s.Target)
		c.walkExprConcurrency(s.Value)
	case *ast.ReturnStmt:
		c.walkExprConcurrency(s.Value)
	case *ast.ExprStmt:
		c.walkExprConcurrency(s.Expr)
	case *ast.IfStmt:
		c.walkExprConcurrency(s.Condition)
		c.walkBlockConcurrency(s.Then)
		c.walkStmtConcurrency(s.Else)
	case *ast.WhileStmt:
		c.walkExprConcurrency(s.Condition)
		c.walkBlockConcurrency(s.Body)
	case *ast.ForInStmt:
		c.walkExprConcurrency(s.Iterable)
		c.walkBlockConcurrency(s.Body)
	case *ast.DeferStmt:
		c.walkExprConcurrency(s.Expr)
	case *ast.SendStmt:
		c.walkExprConcurrency(s.Chan)
		c.walkExprConcurrency(s.Value)
	case *ast.SelectStmt:
		for _, cs := range s.Cases {
			c.walkExprConcurrency(cs.Chan)
			c.walkExprConcurrency(cs.Value)
			c.walkBlockConcurrency(cs.Body)
		}
		c.walkBlockConcurrency(s.Default)
	case *ast.Block:
		c.walkBlockConcurrency(s)
	}
}

func (c *Checker) walkExprConcurrency(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.BinaryExpr:
		c.walkExprConcurrency(e.Left)
		c.walkExprConcurrency(e.Right)
	case *ast.UnaryExpr:
		c.walkExprConcurrency(e.Operand)
	case *ast.CallExpr:
		for _, a := range e.Args {
			c.walkExprConcurrency(a)
		}
	case *ast.MethodCallExpr:
		c.walkExprConcurrency(e.Object)
		for _, a := range e.Args {
			c.walkExprConcurrency(a)
		}
	case *ast.FieldAccessExpr:
		c.walkExprConcurrency(e.Object)
	case *ast.IndexExpr:
		c.walkExprConcurrency(e.Object)
		c.walkExprConcurrency(e.Index)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			c.walkExprConcurrency(el)
		}
	case *ast.TryExpr:
		c.walkExprConcurrency(e.Expr)
	case *ast.MatchExpr:
		c.walkExprConcurrency(e.Scrutinee)
		for _, arm := range e.Arms {
			c.walkExprConcurrency(arm.Body)
		}
	case *ast.BlockExpr:
		c.walkBlockConcurrency(e.Body)
	case *ast.ClosureExpr:
		c.walkExprConcurrency(e.Body)
	case *ast.PerformExpr:
		c.checkPerform(e)
		for _, a := range e.Args {
			c.walkExprConcurrency(a)
		}
	case *ast.HandleExpr:
		c.checkHandle(e)
	case *ast.ResumeExpr:
		c.walkExprConcurrency(e.Value)
	case *ast.SpawnExpr:
		c.walkExprConcurrency(e.Func)
		for _, a := range e.Args {
			c.walkExprConcurrency(a)
		}
	case *ast.AwaitExpr:
		c.walkExprConcurrency(e.Task)
	case *ast.RecvExpr:
		c.walkExprConcurrency(e.Chan)
	}
}

func (c *Checker) checkPerform(p *ast.PerformExpr) {
	effect, ok := c.effects[p.Effect]
	if !ok {
		c.diag.Errorf(p.Line, p.Column, "unknown effect '%s'", p.Effect)
		return
	}
	op, ok := effect.Operations[p.Operation]
	if !ok {
		c.diag.Errorf(p.Line, p.Column, "effect '%s' has no operation '%s'", p.Effect, p.Operation)
		return
	}
	if len(p.Args) != op.ParamCount {
		c.diag.Errorf(p.Line, p.Column,
			"operation '%s.%s' expects %d argument(s), got %d",
			p.Effect, p.Operation, op.ParamCount, len(p.Args))
	}
}

func (c *Checker) checkHandle(h *ast.HandleExpr) {
	effect, ok := c.effects[h.Effect]
	if !ok {
		c.diag.Errorf(h.Line, h.Column, "unknown effect '%s' in handle", h.Effect)
	}

	c.walkExprConcurrency(h.Body)

	seen := make(map[string]bool)
	for _, clause := range h.Clauses {
		if seen[clause.Operation] {
			c.diag.Errorf(clause.Line, clause.Column,
				"handler clause for '%s' given more than once", clause.Operation)
		}
		seen[clause.Operation] = true

		if ok {
			op, known := effect.Operations[clause.Operation]
			if !known {
				c.diag.Errorf(clause.Line, clause.Column,
					"effect '%s' has no operation '%s'", h.Effect, clause.Operation)
			} else if len(clause.Params) != op.ParamCount {
				c.diag.Errorf(clause.Line, clause.Column,
					"handler clause for '%s' binds %d parameter(s), operation takes %d",
					clause.Operation, len(clause.Params), op.ParamCount)
			}
		}

		clause.IsTailResumptive = isTailResumptive(clause.Body)
		c.walkExprConcurrency(clause.Body)
	}

	if ok {
		for name := range effect.Operations {
			if !seen[name] {
				c.diag.Errorf(h.Line, h.Column,
					"handle %s is missing a clause for operation '%s'", h.Effect, name)
			}
		}
	}
}

// isTailResumptive reports whether every `resume` invocation that can be
// reached in body occurs in tail position, i.e. its result is immediately
// produced as the value of the clause rather than used in further
// computation. The result is recorded on the clause's IsTailResumptive;
// lowering does not read it and compiles every handler clause as a direct
// call.
func isTailResumptive(body ast.Expression) bool {
	switch e := body.(type) {
	case *ast.ResumeExpr:
		return true
	case *ast.BlockExpr:
		if e.Body == nil || len(e.Body.Statements) == 0 {
			return true
		}
		last := e.Body.Statements[len(e.Body.Statements)-1]
		switch s := last.(type) {
		case *ast.ExprStmt:
			return isTailResumptive(s.Expr) && !containsResumeExceptLast(e.Body.Statements[:len(e.Body.Statements)-1])
		case *ast.ReturnStmt:
			return isTailResumptive(s.Value) && !containsResumeExceptLast(e.Body.Statements[:len(e.Body.Statements)-1])
		default:
			return !containsResume(e.Body.Statements)
		}
	case *ast.MatchExpr:
		for _, arm := range e.Arms {
			if !isTailResumptive(arm.Body) {
				return false
			}
		}
		return true
	default:
		return !exprContainsResume(body)
	}
}

func containsResumeExceptLast(stmts []ast.Statement) bool {
	return containsResume(stmts)
}

func containsResume(stmts []ast.Statement) bool {
	for _, s := range stmts {
		if stmtContainsResume(s) {
			return true
		}
	}
	return false
}

func stmtContainsResume(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return exprContainsResume(s.Expr)
	case *ast.LetStmt:
		return exprContainsResume(s.Value)
	case *ast.ReturnStmt:
		return exprContainsResume(s.Value)
	case *ast.AssignStmt:
		return exprContainsResume(s.Value)
	default:
		return false
	}
}

func exprContainsResume(expr ast.Expression) bool {
	switch e := expr.(type) {
	case nil:
		return false
	case *ast.ResumeExpr:
		return true
	case *ast.BinaryExpr:
		return exprContainsResume(e.Left) || exprContainsResume(e.Right)
	case *ast.UnaryExpr:
		return exprContainsResume(e.Operand)
	case *ast.CallExpr:
		for _, a := range e.Args {
			if exprContainsResume(a) {
				return true
			}
		}
		return false
	case *ast.BlockExpr:
		if e.Body == nil {
			return false
		}
		return containsResume(e.Body.Statements)
	default:
		return false
	}
}
