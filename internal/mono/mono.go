// Package mono monomorphizes a lowered mir.Program: every call site
// internal/lower left pointing at a generic function template, together
// with the concrete type it inferred for each of the template's type
// parameters, is resolved to (or used to create) one concrete
// specialization per distinct instantiation.
package mono

import (
	"fmt"
	"strings"

	"github.com/nyxlang/nyx/internal/mir"
)

// Monomorphize walks prog's functions, replaces every generic call site's
// FuncRef with a reference to the concrete specialization it needs
// (instantiating one on first sight, reusing it via prog.MonoCache on
// repeat sight), and keeps going over newly-created specializations until
// no generic call sites remain. Template functions themselves stay in
// prog.Functions, unreferenced by any non-generic call, for codegen to
// simply skip (they carry no concrete Locals to emit code for).
func Monomorphize(prog *mir.Program) {
	for i := 0; i < len(prog.Functions); i++ {
		fn := prog.Functions[i]
		for bi := range fn.Blocks {
			resolveBlock(prog, &fn.Blocks[bi])
		}
	}
}

func resolveBlock(prog *mir.Program, b *mir.BasicBlock) {
	for si, s := range b.Statements {
		if as, ok := s.(mir.AssignStatement); ok {
			as.Value = resolveRvalue(prog, as.Value)
			b.Statements[si] = as
		}
	}
	b.Terminator = resolveTerminator(prog, b.Terminator)
}

func resolveRvalue(prog *mir.Program, rv mir.Rvalue) mir.Rvalue {
	cp, ok := rv.(mir.CallPureRvalue)
	if !ok {
		return rv
	}
	cp.Func = resolveRef(prog, cp.Func)
	return cp
}

func resolveTerminator(prog *mir.Program, term mir.Terminator) mir.Terminator {
	ct, ok := term.(mir.CallTerminator)
	if !ok {
		return term
	}
	ct.Func = resolveRef(prog, ct.Func)
	return ct
}

// resolveRef rewrites ref to point at a concrete specialization when it
// targets a generic template and carries inferred TypeArgs; any other ref
// (non-generic callee, indirect call, perform) passes through unchanged.
func resolveRef(prog *mir.Program, ref mir.FuncRef) mir.FuncRef {
	if ref.Indirect != nil || len(ref.TypeArgs) == 0 {
		return ref
	}
	if int(ref.Direct) < 0 || int(ref.Direct) >= len(prog.Functions) {
		return ref
	}
	tmpl := prog.Functions[ref.Direct]
	if len(tmpl.TypeParams) == 0 {
		return ref
	}
	id := instantiate(prog, tmpl, ref.TypeArgs)
	return mir.FuncRef{Direct: id}
}

// instantiate returns the FuncID of tmpl specialized to args, creating and
// caching it on first request.
func instantiate(prog *mir.Program, tmpl *mir.Function, args []*mir.Type) mir.FuncID {
	key := monoKey(tmpl.Name, args)
	if id, ok := prog.MonoCache[key]; ok {
		return id
	}
	bind := make(map[string]*mir.Type, len(tmpl.TypeParams))
	for i, name := range tmpl.TypeParams {
		if i < len(args) && args[i] != nil {
			bind[name] = args[i]
		}
	}

	clone := &mir.Function{
		Name:       key,
		IsEntry:    false,
		IsPublic:   tmpl.IsPublic,
		ReturnType: substType(tmpl.ReturnType, bind),
		Effects:    tmpl.Effects,
		MonoOf:     tmpl.ID,
		MonoArgs:   args,
		IsMono:     true,
	}
	clone.Locals = make([]mir.Local, len(tmpl.Locals))
	for i, l := range tmpl.Locals {
		clone.Locals[i] = mir.Local{Name: l.Name, Mutable: l.Mutable, Type: substType(l.Type, bind)}
	}
	clone.Params = append([]mir.LocalID(nil), tmpl.Params...)
	clone.Entry = tmpl.Entry
	clone.Contract = tmpl.Contract

	clone.Blocks = make([]mir.BasicBlock, len(tmpl.Blocks))
	for i, blk := range tmpl.Blocks {
		nb := mir.BasicBlock{Statements: make([]mir.Statement, len(blk.Statements))}
		for si, s := range blk.Statements {
			nb.Statements[si] = substStatement(s, bind)
		}
		nb.Terminator = substTerminator(blk.Terminator, bind)
		clone.Blocks[i] = nb
	}

	id := prog.AddFunction(clone)
	prog.MonoCache[key] = id

	// The freshly-added clone may itself contain calls to other generic
	// templates (now with TypeArgs substituted against bind); the running
	// Monomorphize loop picks it up since it was appended to prog.Functions
	// past the index already scanned.
	return id
}

// monoKey names a specialization uniquely by template name and concrete
// type arguments, e.g. "Box::new<Int>" or "map<Int,String>".
func monoKey(name string, args []*mir.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = typeKey(a)
	}
	return fmt.Sprintf("%s<%s>", name, strings.Join(parts, ","))
}

func typeKey(t *mir.Type) string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case mir.KindArray:
		return "Array[" + typeKey(t.Elem) + "]"
	case mir.KindChannel:
		return "Channel[" + typeKey(t.Elem) + "]"
	case mir.KindResult, mir.KindOption:
		inner := make([]string, len(t.Params))
		for i, p := range t.Params {
			inner[i] = typeKey(p)
		}
		return t.Name + "[" + strings.Join(inner, ",") + "]"
	case mir.KindClosure:
		in := make([]string, len(t.ClosureIn))
		for i, p := range t.ClosureIn {
			in[i] = typeKey(p)
		}
		return "closure(" + strings.Join(in, ",") + ")->" + typeKey(t.ClosureOut)
	default:
		return t.Name
	}
}

// substType returns t with every KindTypeVar leaf bound in bind replaced by
// its concrete binding; type vars with no binding (a template parameter no
// call site ever constrained) are left as-is. Neither backend rejects a
// leftover type var: both lower it like any other handle-typed value.
func substType(t *mir.Type, bind map[string]*mir.Type) *mir.Type {
	if t == nil {
		return nil
	}
	if t.Kind == mir.KindTypeVar {
		if c, ok := bind[t.Name]; ok {
			return c
		}
		return t
	}
	switch t.Kind {
	case mir.KindArray:
		return &mir.Type{Kind: mir.KindArray, Name: t.Name, Elem: substType(t.Elem, bind)}
	case mir.KindChannel:
		return &mir.Type{Kind: mir.KindChannel, Name: t.Name, Elem: substType(t.Elem, bind)}
	case mir.KindResult, mir.KindOption:
		params := make([]*mir.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = substType(p, bind)
		}
		return &mir.Type{Kind: t.Kind, Name: t.Name, Params: params}
	case mir.KindClosure:
		in := make([]*mir.Type, len(t.ClosureIn))
		for i, p := range t.ClosureIn {
			in[i] = substType(p, bind)
		}
		return &mir.Type{Kind: mir.KindClosure, Name: t.Name, ClosureIn: in, ClosureOut: substType(t.ClosureOut, bind)}
	default:
		return t
	}
}

func substPlace(p mir.Place, bind map[string]*mir.Type) mir.Place {
	if len(p.Projection) == 0 {
		return p
	}
	proj := make([]mir.PlaceElem, len(p.Projection))
	for i, e := range p.Projection {
		switch el := e.(type) {
		case mir.Field:
			proj[i] = mir.Field{Name: el.Name, Type: substType(el.Type, bind)}
		case mir.Index:
			proj[i] = mir.Index{Index: substOperand(el.Index, bind), Type: substType(el.Type, bind)}
		case mir.Deref:
			proj[i] = mir.Deref{Type: substType(el.Type, bind)}
		default:
			proj[i] = e
		}
	}
	return mir.Place{Local: p.Local, Projection: proj}
}

func substOperand(op mir.Operand, bind map[string]*mir.Type) mir.Operand {
	switch o := op.(type) {
	case mir.Constant:
		o.Type = substType(o.Type, bind)
		return o
	case mir.Copy:
		o.Place = substPlace(o.Place, bind)
		o.Type = substType(o.Type, bind)
		return o
	case mir.Move:
		o.Place = substPlace(o.Place, bind)
		o.Type = substType(o.Type, bind)
		return o
	default:
		return op
	}
}

func substOperands(ops []mir.Operand, bind map[string]*mir.Type) []mir.Operand {
	out := make([]mir.Operand, len(ops))
	for i, o := range ops {
		out[i] = substOperand(o, bind)
	}
	return out
}

func substRef(ref mir.FuncRef, bind map[string]*mir.Type) mir.FuncRef {
	if ref.Indirect != nil {
		p := substPlace(*ref.Indirect, bind)
		ref.Indirect = &p
	}
	if len(ref.TypeArgs) > 0 {
		args := make([]*mir.Type, len(ref.TypeArgs))
		for i, a := range ref.TypeArgs {
			args[i] = substType(a, bind)
		}
		ref.TypeArgs = args
	}
	return ref
}

func substRvalue(rv mir.Rvalue, bind map[string]*mir.Type) mir.Rvalue {
	switch v := rv.(type) {
	case mir.UseRvalue:
		v.Operand = substOperand(v.Operand, bind)
		return v
	case mir.BinaryOpRvalue:
		v.Left = substOperand(v.Left, bind)
		v.Right = substOperand(v.Right, bind)
		v.Type = substType(v.Type, bind)
		return v
	case mir.UnaryOpRvalue:
		v.Operand = substOperand(v.Operand, bind)
		v.Type = substType(v.Type, bind)
		return v
	case mir.AggregateRvalue:
		v.Fields = substOperands(v.Fields, bind)
		v.Type = substType(v.Type, bind)
		return v
	case mir.CallPureRvalue:
		v.Func = substRef(v.Func, bind)
		v.Args = substOperands(v.Args, bind)
		v.Type = substType(v.Type, bind)
		return v
	default:
		return rv
	}
}

func substStatement(s mir.Statement, bind map[string]*mir.Type) mir.Statement {
	switch st := s.(type) {
	case mir.AssignStatement:
		st.Target = substPlace(st.Target, bind)
		st.Value = substRvalue(st.Value, bind)
		return st
	case mir.DropStatement:
		st.Place = substPlace(st.Place, bind)
		return st
	default:
		return s
	}
}

func substTerminator(t mir.Terminator, bind map[string]*mir.Type) mir.Terminator {
	switch term := t.(type) {
	case mir.CallTerminator:
		term.Func = substRef(term.Func, bind)
		term.Args = substOperands(term.Args, bind)
		term.Destination = substPlace(term.Destination, bind)
		return term
	case mir.SpawnTerminator:
		term.Closure = substOperand(term.Closure, bind)
		term.Args = substOperands(term.Args, bind)
		term.Destination = substPlace(term.Destination, bind)
		return term
	case mir.AwaitTerminator:
		term.Task = substOperand(term.Task, bind)
		term.Destination = substPlace(term.Destination, bind)
		return term
	case mir.ChanRecvTerminator:
		term.Chan = substOperand(term.Chan, bind)
		term.Destination = substPlace(term.Destination, bind)
		return term
	case mir.ChanSendTerminator:
		term.Chan = substOperand(term.Chan, bind)
		term.Value = substOperand(term.Value, bind)
		return term
	case mir.SelectTerminator:
		arms := make([]mir.SelectArm, len(term.Arms))
		for i, a := range term.Arms {
			a.Chan = substOperand(a.Chan, bind)
			a.Value = substOperand(a.Value, bind)
			a.Destination = substPlace(a.Destination, bind)
			arms[i] = a
		}
		term.Arms = arms
		return term
	case mir.SwitchIntTerminator:
		term.Discriminant = substOperand(term.Discriminant, bind)
		return term
	default:
		return t
	}
}
