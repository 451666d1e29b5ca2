package parser

import (
	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/lexer"
)

// This file holds the parse rules for the grammar beyond the teacher's
// original: traits, impls, effects/handlers, closures, and structured
// concurrency. Kept apart from parser.go so that file's control flow stays
// easy to diff against.

// parseTraitDecl parses:
//
//	trait Name {
//	    function method(params) returns Type;
//	}
func (p *Parser) parseTraitDecl() *ast.TraitDecl {
	tok := p.expect(lexer.TRAIT)
	name := p.expect(lexer.IDENT)
	p.expect(lexer.LBRACE)

	trait := &ast.TraitDecl{Name: name.Literal, Line: tok.Line, Column: tok.Column}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		trait.Methods = append(trait.Methods, p.parseTraitMethodSig())
	}
	p.expect(lexer.RBRACE)
	return trait
}

func (p *Parser) parseTraitMethodSig() *ast.TraitMethodSig {
	tok := p.expect(lexer.FUNCTION)
	name := p.expect(lexer.IDENT)
	p.expect(lexer.LPAREN)
	params := p.parseParamList()
	p.expect(lexer.RPAREN)
	p.expect(lexer.RETURNS)
	retType := p.parseTypeRef()
	p.expect(lexer.SEMICOLON)
	return &ast.TraitMethodSig{
		Name:       name.Literal,
		Params:     params,
		ReturnType: retType,
		Line:       tok.Line,
		Column:     tok.Column,
	}
}

// parseImplDecl parses:
//
//	impl TraitName for TypeName {
//	    method name(params) returns Type { ... }
//	}
func (p *Parser) parseImplDecl() *ast.ImplDecl {
	tok := p.expect(lexer.IMPL)
	traitName := p.expect(lexer.IDENT)
	p.expect(lexer.FOR)
	typeName := p.expect(lexer.IDENT)
	p.expect(lexer.LBRACE)

	impl := &ast.ImplDecl{
		TraitName: traitName.Literal,
		TypeName:  typeName.Literal,
		Line:      tok.Line,
		Column:    tok.Column,
	}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		impl.Methods = append(impl.Methods, p.parseMethodDecl())
	}
	p.expect(lexer.RBRACE)
	return impl
}

// parseEffectDecl parses:
//
//	effect Name {
//	    function operation(params) returns Type;
//	}
func (p *Parser) parseEffectDecl() *ast.EffectDecl {
	tok := p.expect(lexer.EFFECT)
	name := p.expect(lexer.IDENT)
	p.expect(lexer.LBRACE)

	effect := &ast.EffectDecl{Name: name.Literal, Line: tok.Line, Column: tok.Column}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		opTok := p.expect(lexer.FUNCTION)
		opName := p.expect(lexer.IDENT)
		p.expect(lexer.LPAREN)
		params := p.parseParamList()
		p.expect(lexer.RPAREN)
		p.expect(lexer.RETURNS)
		retType := p.parseTypeRef()
		p.expect(lexer.SEMICOLON)
		effect.Operations = append(effect.Operations, &ast.EffectOperationSig{
			Name:       opName.Literal,
			Params:     params,
			ReturnType: retType,
			Line:       opTok.Line,
			Column:     opTok.Column,
		})
	}
	p.expect(lexer.RBRACE)
	return effect
}

// parseClosureExpr parses: |a: Int, b| <expr>   or   |a, b| { <block> }
func (p *Parser) parseClosureExpr() *ast.ClosureExpr {
	tok := p.expect(lexer.PIPE)
	var params []*ast.Param
	if !p.check(lexer.PIPE) {
		params = append(params, p.parseClosureParam())
		for p.match(lexer.COMMA) {
			params = append(params, p.parseClosureParam())
		}
	}
	p.expect(lexer.PIPE)

	var body ast.Expression
	if p.check(lexer.LBRACE) {
		body = &ast.BlockExpr{Body: p.parseBlock(), Line: tok.Line, Column: tok.Column}
	} else {
		body = p.parseExpression()
	}

	return &ast.ClosureExpr{Params: params, Body: body, Line: tok.Line, Column: tok.Column}
}

// parseClosureParam parses a closure parameter, whose type annotation is
// optional because closure parameter types are solved by unification.
func (p *Parser) parseClosureParam() *ast.Param {
	name := p.expect(lexer.IDENT)
	paramType := &ast.TypeRef{Name: "_", Line: name.Line, Column: name.Column}
	if p.match(lexer.COLON) {
		paramType = p.parseTypeRef()
	}
	return &ast.Param{Name: name.Literal, Type: paramType, Line: name.Line, Column: name.Column}
}

// parsePerformExpr parses: perform Effect.operation(args)
func (p *Parser) parsePerformExpr() *ast.PerformExpr {
	tok := p.expect(lexer.PERFORM)
	effect := p.expect(lexer.IDENT)
	p.expect(lexer.DOT)
	operation := p.expect(lexer.IDENT)
	p.expect(lexer.LPAREN)
	args := p.parseArgList()
	p.expect(lexer.RPAREN)
	return &ast.PerformExpr{
		Effect:    effect.Literal,
		Operation: operation.Literal,
		Args:      args,
		Line:      tok.Line,
		Column:    tok.Column,
	}
}

// parseHandleExpr parses:
//
//	handle { <block> } with Effect {
//	    operation(params) => <expr>
//	}
func (p *Parser) parseHandleExpr() *ast.HandleExpr {
	tok := p.expect(lexer.HANDLE)
	body := &ast.BlockExpr{Line: tok.Line, Column: tok.Column}
	body.Body = p.parseBlock()
	p.expect(lexer.WITH)
	effect := p.expect(lexer.IDENT)
	p.expect(lexer.LBRACE)

	handle := &ast.HandleExpr{Effect: effect.Literal, Body: body, Line: tok.Line, Column: tok.Column}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		handle.Clauses = append(handle.Clauses, p.parseHandleClause())
	}
	p.expect(lexer.RBRACE)
	return handle
}

func (p *Parser) parseHandleClause() *ast.HandleClause {
	opTok := p.expect(lexer.IDENT)
	p.expect(lexer.LPAREN)
	var params []string
	if !p.check(lexer.RPAREN) {
		params = append(params, p.expect(lexer.IDENT).Literal)
		for p.match(lexer.COMMA) {
			params = append(params, p.expect(lexer.IDENT).Literal)
		}
	}
	p.expect(lexer.RPAREN)
	p.expect(lexer.ARROW)
	body := p.parseExpression()
	if p.check(lexer.COMMA) {
		p.advance()
	}
	return &ast.HandleClause{
		Operation: opTok.Literal,
		Params:    params,
		Body:      body,
		Line:      opTok.Line,
		Column:    opTok.Column,
	}
}

// parseResumeExpr parses: resume(value)
func (p *Parser) parseResumeExpr() *ast.ResumeExpr {
	tok := p.expect(lexer.RESUME)
	p.expect(lexer.LPAREN)
	value := p.parseExpression()
	p.expect(lexer.RPAREN)
	return &ast.ResumeExpr{Value: value, Line: tok.Line, Column: tok.Column}
}

// parseSpawnExpr parses: spawn <expr>(args)  or  spawn <closure>
func (p *Parser) parseSpawnExpr() *ast.SpawnExpr {
	tok := p.expect(lexer.SPAWN)
	fn := p.parseUnary()

	var args []ast.Expression
	if call, ok := fn.(*ast.CallExpr); ok {
		return &ast.SpawnExpr{
			Func:   &ast.Identifier{Name: call.Function, Line: call.Line, Column: call.Column},
			Args:   call.Args,
			Line:   tok.Line,
			Column: tok.Column,
		}
	}
	return &ast.SpawnExpr{Func: fn, Args: args, Line: tok.Line, Column: tok.Column}
}

// parseAwaitExpr parses: await <expr>
func (p *Parser) parseAwaitExpr() *ast.AwaitExpr {
	tok := p.expect(lexer.AWAIT)
	task := p.parseUnary()
	return &ast.AwaitExpr{Task: task, Line: tok.Line, Column: tok.Column}
}

// parseDeferStmt parses: defer <expr>;
func (p *Parser) parseDeferStmt() *ast.DeferStmt {
	tok := p.expect(lexer.DEFER)
	expr := p.parseExpression()
	p.expect(lexer.SEMICOLON)
	return &ast.DeferStmt{Expr: expr, Line: tok.Line, Column: tok.Column}
}

// parseSelectStmt parses:
//
//	select {
//	    case v = <-ch { ... }
//	    case ch <- v { ... }
//	    default { ... }
//	}
func (p *Parser) parseSelectStmt() *ast.SelectStmt {
	tok := p.expect(lexer.SELECT)
	p.expect(lexer.LBRACE)

	stmt := &ast.SelectStmt{Line: tok.Line, Column: tok.Column}
	for p.check(lexer.CASE) {
		stmt.Cases = append(stmt.Cases, p.parseSelectCase())
	}
	if p.match(lexer.DEFAULT) {
		stmt.Default = p.parseBlock()
	}
	p.expect(lexer.RBRACE)
	return stmt
}

func (p *Parser) parseSelectCase() *ast.SelectCase {
	tok := p.expect(lexer.CASE)

	// Disambiguate `v = <-ch` (recv) from `ch <- v` (send) by looking for
	// ASSIGN after the first identifier.
	if p.check(lexer.IDENT) && p.peek().Type == lexer.ASSIGN {
		bind := p.advance()
		p.advance() // consume '='
		p.expect(lexer.LARROW)
		ch := p.parseExpression()
		body := p.parseBlock()
		return &ast.SelectCase{
			IsSend: false,
			Chan:   ch,
			Bind:   bind.Literal,
			Body:   body,
			Line:   tok.Line,
			Column: tok.Column,
		}
	}

	ch := p.parseExpression()
	p.expect(lexer.LARROW)
	value := p.parseExpression()
	body := p.parseBlock()
	return &ast.SelectCase{
		IsSend: true,
		Chan:   ch,
		Value:  value,
		Body:   body,
		Line:   tok.Line,
		Column: tok.Column,
	}
}
