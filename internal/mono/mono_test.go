package mono

import (
	"testing"

	"github.com/nyxlang/nyx/internal/mir"
)

// buildIdentityProgram builds a program with a generic `identity<T>(x: T):
// T` template and a caller that invokes identity(5) — mimicking what
// internal/lower emits for a generic call site before monomorphization.
func buildIdentityProgram() *mir.Program {
	prog := mir.NewProgram("test", true)

	tvar := &mir.Type{Kind: mir.KindTypeVar, Name: "T"}
	tmpl := &mir.Function{Name: "identity", TypeParams: []string{"T"}, ReturnType: tvar}
	tmpl.NewLocal("", tvar, true) // ReturnLocal
	p0 := tmpl.NewLocal("x", tvar, false)
	tmpl.Params = []mir.LocalID{p0}
	entry := tmpl.NewBlock()
	tmpl.Entry = entry
	tmpl.Blocks[entry].Terminator = mir.ReturnTerminator{}
	tmplID := prog.AddFunction(tmpl)

	caller := &mir.Function{Name: "main", IsEntry: true, ReturnType: mir.TypeInt}
	caller.NewLocal("", mir.TypeInt, true)
	cb := caller.NewBlock()
	caller.Entry = cb
	dest := mir.LocalPlace(mir.ReturnLocal)
	caller.Blocks[cb].Statements = append(caller.Blocks[cb].Statements, mir.AssignStatement{
		Target: dest,
		Value: mir.CallPureRvalue{
			Func: mir.FuncRef{Direct: tmplID, TypeArgs: []*mir.Type{mir.TypeInt}},
			Args: []mir.Operand{mir.Constant{Kind: mir.ConstInt, Int: 5, Type: mir.TypeInt}},
			Type: tvar,
		},
	})
	caller.Blocks[cb].Terminator = mir.ReturnTerminator{}
	prog.AddFunction(caller)

	return prog
}

func TestMonomorphizeCreatesSpecialization(t *testing.T) {
	prog := buildIdentityProgram()
	before := len(prog.Functions)

	Monomorphize(prog)

	if len(prog.Functions) != before+1 {
		t.Fatalf("expected one new specialization, got %d new functions", len(prog.Functions)-before)
	}

	spec := prog.Functions[len(prog.Functions)-1]
	if !spec.IsMono {
		t.Fatalf("specialization should be marked IsMono")
	}
	if len(spec.TypeParams) != 0 {
		t.Fatalf("specialization should have no remaining TypeParams, got %v", spec.TypeParams)
	}
	if spec.ReturnType.Kind != mir.KindInt {
		t.Fatalf("specialization's ReturnType should resolve to Int, got %v", spec.ReturnType.Kind)
	}
	if spec.Locals[spec.Params[0]].Type.Kind != mir.KindInt {
		t.Fatalf("specialization's param local should resolve to Int")
	}

	caller, _ := prog.FuncByName("main")
	call := caller.Blocks[caller.Entry].Statements[0].(mir.AssignStatement).Value.(mir.CallPureRvalue)
	if call.Func.Direct != spec.ID {
		t.Fatalf("caller's call site should be rewritten to point at the specialization")
	}
	if len(call.Func.TypeArgs) != 0 {
		t.Fatalf("resolved call site should have no leftover TypeArgs")
	}
}

func TestMonomorphizeCachesRepeatedInstantiation(t *testing.T) {
	prog := buildIdentityProgram()

	// A second call site identical in template + type args should resolve
	// to the same specialization rather than creating a duplicate.
	tmplID, _ := prog.NameIndex["identity"], true
	caller, _ := prog.FuncByName("main")
	cb := caller.Entry
	caller.Blocks[cb].Statements = append(caller.Blocks[cb].Statements, mir.AssignStatement{
		Target: mir.LocalPlace(mir.ReturnLocal),
		Value: mir.CallPureRvalue{
			Func: mir.FuncRef{Direct: prog.NameIndex["identity"], TypeArgs: []*mir.Type{mir.TypeInt}},
			Args: []mir.Operand{mir.Constant{Kind: mir.ConstInt, Int: 7, Type: mir.TypeInt}},
			Type: mir.TypeInt,
		},
	})
	_ = tmplID

	Monomorphize(prog)

	var specCount int
	for _, fn := range prog.Functions {
		if fn.IsMono {
			specCount++
		}
	}
	if specCount != 1 {
		t.Fatalf("expected exactly one cached specialization across both call sites, got %d", specCount)
	}
}
