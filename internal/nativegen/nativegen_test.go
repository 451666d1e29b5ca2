package nativegen

import (
	"testing"

	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

// addFunc builds add(a, b) returns Int { return a + b; } directly as MIR,
// the same hand-built-IR style internal/wasmgen's tests use for its own
// backend.
func addFunc(a, b mir.LocalID, ret mir.LocalID) *mir.Function {
	fn := &mir.Function{
		Name:       "add",
		IsPublic:   true,
		Params:     []mir.LocalID{a, b},
		ReturnType: mir.TypeInt,
		Locals: []mir.Local{
			{Name: "$ret", Type: mir.TypeInt},
			{Name: "a", Type: mir.TypeInt},
			{Name: "b", Type: mir.TypeInt},
		},
		Entry: 0,
	}
	fn.Blocks = []mir.BasicBlock{{
		Statements: []mir.Statement{
			mir.AssignStatement{
				Target: mir.LocalPlace(ret),
				Value: mir.BinaryOpRvalue{
					Op:    lexer.PLUS,
					Left:  mir.Copy{Place: mir.LocalPlace(a), Type: mir.TypeInt},
					Right: mir.Copy{Place: mir.LocalPlace(b), Type: mir.TypeInt},
					Type:  mir.TypeInt,
				},
			},
		},
		Terminator: mir.ReturnTerminator{},
	}}
	return fn
}

func TestEmitProducesNonEmptyObject(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.AddFunction(addFunc(1, 2, mir.ReturnLocal))

	b := NewBackend(prog)
	defer b.Dispose()

	obj, err := b.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(obj) == 0 {
		t.Fatal("expected non-empty object code")
	}
}

func TestEmitSkipsGenericTemplates(t *testing.T) {
	prog := mir.NewProgram("test", false)
	generic := addFunc(1, 2, mir.ReturnLocal)
	generic.Name = "identity"
	generic.TypeParams = []string{"T"}
	prog.AddFunction(generic)

	b := NewBackend(prog)
	defer b.Dispose()

	if _, err := b.Emit(); err != nil {
		t.Fatalf("Emit: %v", err)
	}
}

func TestVariantTagLooksUpDeclaredOrdinal(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.Enums = append(prog.Enums, &mir.EnumDef{
		Name: "Color",
		Variants: []mir.EnumVariantDef{
			{Name: "Red"},
			{Name: "Green"},
			{Name: "Blue"},
		},
	})

	b := NewBackend(prog)
	defer b.Dispose()

	if tag := b.variantTag("Color", "Green"); tag != 1 {
		t.Errorf("variantTag(Color, Green) = %d, want 1", tag)
	}
	if tag := b.variantTag("Color", "Purple"); tag != 0 {
		t.Errorf("variantTag(Color, Purple) = %d, want 0 (unknown variant fallback)", tag)
	}
}
