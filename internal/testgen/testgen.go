package testgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyxlang/nyx/internal/ast"
)

// Generate produces a Go test file that drives every contract-bearing
// function and entity in prog through internal/interp and checks
// requires/ensures/invariants against generated boundary and random
// inputs, the same role the teacher's emitted #[cfg(test)] module
// played for a Rust build -- except these tests run directly against
// an embedded copy of the source text instead of needing a second
// compilation unit.
func Generate(prog *ast.Program, source string) string {
	var testFns []string

	for _, f := range prog.Functions {
		if f.IsEntry {
			continue
		}
		if len(f.Requires) == 0 && len(f.Ensures) == 0 {
			continue
		}
		testFns = append(testFns, generateFunctionTest(f))
	}

	for _, e := range prog.Entities {
		testFns = append(testFns, generateEntityTests(e)...)
	}

	if len(testFns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "const contractTestSource = %s\n\n", goStringLiteral(source))
	sb.WriteString("var contractTestProgram = mustParse(contractTestSource)\n\n")
	for _, fn := range testFns {
		sb.WriteString(fn)
		sb.WriteString("\n")
	}
	return sb.String()
}

const header = `package contracttest

import (
	"fmt"
	"testing"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/interp"
	"github.com/nyxlang/nyx/internal/parser"
)

func mustParse(source string) *ast.Program {
	p := parser.New(source)
	prog := p.Parse()
	if p.Diagnostics().HasErrors() {
		panic(fmt.Sprintf("contracttest: fixture failed to parse: %s", p.Diagnostics().Format("fixture")))
	}
	return prog
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mustFindFunction(prog *ast.Program, name string) *ast.FunctionDecl {
	for _, f := range prog.Functions {
		if f.Name == name {
			return f
		}
	}
	panic("contracttest: no such function: " + name)
}

func mustFindEntity(prog *ast.Program, name string) *ast.EntityDecl {
	for _, e := range prog.Entities {
		if e.Name == name {
			return e
		}
	}
	panic("contracttest: no such entity: " + name)
}

func mustFindMethod(e *ast.EntityDecl, name string) *ast.MethodDecl {
	for _, m := range e.Methods {
		if m.Name == name {
			return m
		}
	}
	panic("contracttest: no such method: " + e.Name + "." + name)
}

`

// generateFunctionTest emits a Go test function that exercises a
// standalone contract-bearing function.
func generateFunctionTest(f *ast.FunctionDecl) string {
	var sb strings.Builder
	constraints := AnalyzeConstraints(f.Params, f.Requires)
	testName := exportedTestName(f.Name)

	fmt.Fprintf(&sb, "func Test%s_Contracts(t *testing.T) {\n", testName)
	fmt.Fprintf(&sb, "\tfn := mustFindFunction(contractTestProgram, %q)\n", f.Name)

	if len(f.Params) == 0 {
		sb.WriteString("\tit := interp.New(contractTestProgram)\n")
		sb.WriteString("\tif err := it.CaptureOld(fn.Ensures, fn.Params, nil, nil); err != nil {\n")
		sb.WriteString("\t\tt.Fatalf(\"capturing old(): %v\", err)\n\t}\n")
		fmt.Fprintf(&sb, "\tresult, err := it.CallFunction(%q, nil)\n", f.Name)
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"call failed: %v\", err)\n\t}\n")
		sb.WriteString("\tok, failed, err := it.CheckEnsures(fn.Ensures, fn.Params, nil, result, nil)\n")
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"evaluating ensures: %v\", err)\n\t}\n")
		sb.WriteString("\tif !ok {\n\t\tt.Errorf(\"postcondition %q failed\", failed)\n\t}\n")
		sb.WriteString("}\n")
		return sb.String()
	}

	valueVars := emitParamValueVars(&sb, f.Params, constraints)
	fmt.Fprintf(&sb, "\tmaxLen := %s\n", maxLenExpr(f.Params, valueVars))
	sb.WriteString("\tfor idx := 0; idx < maxLen; idx++ {\n")
	sb.WriteString("\t\targs := []any{\n")
	for _, p := range f.Params {
		fmt.Fprintf(&sb, "\t\t\t%s[idx%%len(%s)],\n", valueVars[p.Name], valueVars[p.Name])
	}
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\tit := interp.New(contractTestProgram)\n")
	sb.WriteString("\t\trequiresOK, err := it.CheckRequires(fn.Requires, fn.Params, args, nil)\n")
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating requires: %v\", err)\n\t\t}\n")
	sb.WriteString("\t\tif !requiresOK {\n\t\t\tcontinue\n\t\t}\n")
	sb.WriteString("\t\tif err := it.CaptureOld(fn.Ensures, fn.Params, args, nil); err != nil {\n")
	sb.WriteString("\t\t\tt.Fatalf(\"capturing old(): %v\", err)\n\t\t}\n")
	fmt.Fprintf(&sb, "\t\tresult, err := it.CallFunction(%q, args)\n", f.Name)
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"call failed for args=%v: %v\", args, err)\n\t\t}\n")
	if len(f.Ensures) > 0 {
		sb.WriteString("\t\tok, failed, err := it.CheckEnsures(fn.Ensures, fn.Params, args, result, nil)\n")
		sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating ensures: %v\", err)\n\t\t}\n")
		sb.WriteString("\t\tif !ok {\n\t\t\tt.Errorf(\"postcondition %q failed for args=%v\", failed, args)\n\t\t}\n")
	}
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return sb.String()
}

// generateEntityTests emits constructor, per-method, and workflow
// tests for an entity.
func generateEntityTests(e *ast.EntityDecl) []string {
	var tests []string
	hasInvariants := len(e.Invariants) > 0

	if e.Constructor != nil {
		tests = append(tests, generateConstructorTest(e))
	}

	for _, m := range e.Methods {
		if len(m.Requires) == 0 && len(m.Ensures) == 0 && !hasInvariants {
			continue
		}
		tests = append(tests, generateMethodTest(e, m))
	}

	if e.Constructor != nil && len(e.Methods) > 0 {
		tests = append(tests, generateWorkflowTest(e))
	}

	return tests
}

// generateConstructorTest emits a test exercising an entity's
// constructor across generated argument combinations.
func generateConstructorTest(e *ast.EntityDecl) string {
	ctor := e.Constructor
	constraints := AnalyzeConstraints(ctor.Params, ctor.Requires)

	var sb strings.Builder
	fmt.Fprintf(&sb, "func Test%s_Constructor_Contracts(t *testing.T) {\n", e.Name)
	fmt.Fprintf(&sb, "\tentity := mustFindEntity(contractTestProgram, %q)\n", e.Name)
	sb.WriteString("\tctor := entity.Constructor\n")

	if len(ctor.Params) == 0 {
		sb.WriteString("\tit := interp.New(contractTestProgram)\n")
		fmt.Fprintf(&sb, "\tinst, err := it.Construct(%q, nil)\n", e.Name)
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"construction failed: %v\", err)\n\t}\n")
		sb.WriteString("\tok, failed, err := it.CheckEnsures(ctor.Ensures, ctor.Params, nil, inst, inst)\n")
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"evaluating constructor ensures: %v\", err)\n\t}\n")
		sb.WriteString("\tif !ok {\n\t\tt.Errorf(\"constructor postcondition %q failed\", failed)\n\t}\n")
		sb.WriteString("\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
		sb.WriteString("\t\tt.Fatalf(\"evaluating invariants: %v\", err)\n\t} else if !ok {\n")
		sb.WriteString("\t\tt.Errorf(\"invariant %q failed after construction\", failed)\n\t}\n")
		sb.WriteString("}\n")
		return sb.String()
	}

	valueVars := emitParamValueVars(&sb, ctor.Params, constraints)
	fmt.Fprintf(&sb, "\tmaxLen := %s\n", maxLenExpr(ctor.Params, valueVars))
	sb.WriteString("\tfor idx := 0; idx < maxLen; idx++ {\n")
	sb.WriteString("\t\targs := []any{\n")
	for _, p := range ctor.Params {
		fmt.Fprintf(&sb, "\t\t\t%s[idx%%len(%s)],\n", valueVars[p.Name], valueVars[p.Name])
	}
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\tit := interp.New(contractTestProgram)\n")
	sb.WriteString("\t\trequiresOK, err := it.CheckRequires(ctor.Requires, ctor.Params, args, nil)\n")
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating constructor requires: %v\", err)\n\t\t}\n")
	sb.WriteString("\t\tif !requiresOK {\n\t\t\tcontinue\n\t\t}\n")
	fmt.Fprintf(&sb, "\t\tinst, err := it.Construct(%q, args)\n", e.Name)
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"construction failed for args=%v: %v\", args, err)\n\t\t}\n")
	sb.WriteString("\t\tok, failed, err := it.CheckEnsures(ctor.Ensures, ctor.Params, args, inst, inst)\n")
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating constructor ensures: %v\", err)\n\t\t}\n")
	sb.WriteString("\t\tif !ok {\n\t\t\tt.Errorf(\"constructor postcondition %q failed for args=%v\", failed, args)\n\t\t}\n")
	sb.WriteString("\t\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
	sb.WriteString("\t\t\tt.Fatalf(\"evaluating invariants: %v\", err)\n\t\t} else if !ok {\n")
	sb.WriteString("\t\t\tt.Errorf(\"invariant %q failed after construction\", failed)\n\t\t}\n")
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return sb.String()
}

// generateMethodTest emits a test exercising one method of an entity
// against a freshly constructed instance, re-constructed each
// iteration so method calls never leak state across cases.
func generateMethodTest(e *ast.EntityDecl, m *ast.MethodDecl) string {
	if e.Constructor == nil {
		return ""
	}
	constraints := AnalyzeConstraints(m.Params, m.Requires)
	ctorConstraints := AnalyzeConstraints(e.Constructor.Params, e.Constructor.Requires)

	var sb strings.Builder
	fmt.Fprintf(&sb, "func Test%s_%s_Contracts(t *testing.T) {\n", e.Name, exportedTestName(m.Name))
	fmt.Fprintf(&sb, "\tentity := mustFindEntity(contractTestProgram, %q)\n", e.Name)
	fmt.Fprintf(&sb, "\tmethod := mustFindMethod(entity, %q)\n", m.Name)
	sb.WriteString("\tctorArgs := []any{\n")
	for _, p := range e.Constructor.Params {
		fmt.Fprintf(&sb, "\t\t%s,\n", defaultValueForType(ctorConstraints[p.Name]))
	}
	sb.WriteString("\t}\n")

	buildEntity := func(indent string) {
		fmt.Fprintf(&sb, "%sit := interp.New(contractTestProgram)\n", indent)
		fmt.Fprintf(&sb, "%sinst, err := it.Construct(%q, ctorArgs)\n", indent, e.Name)
		fmt.Fprintf(&sb, "%sif err != nil {\n%s\tt.Fatalf(\"construction failed: %%v\", err)\n%s}\n", indent, indent, indent)
	}

	if len(m.Params) == 0 {
		buildEntity("\t")
		sb.WriteString("\tif err := it.CaptureOld(method.Ensures, method.Params, nil, inst); err != nil {\n")
		sb.WriteString("\t\tt.Fatalf(\"capturing old(): %v\", err)\n\t}\n")
		fmt.Fprintf(&sb, "\tresult, err := it.CallMethod(inst, %q, nil)\n", m.Name)
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"call failed: %v\", err)\n\t}\n")
		sb.WriteString("\tok, failed, err := it.CheckEnsures(method.Ensures, method.Params, nil, result, inst)\n")
		sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"evaluating ensures: %v\", err)\n\t}\n")
		sb.WriteString("\tif !ok {\n\t\tt.Errorf(\"postcondition %q failed\", failed)\n\t}\n")
		sb.WriteString("\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
		fmt.Fprintf(&sb, "\t\tt.Fatalf(\"evaluating invariants: %%v\", err)\n\t} else if !ok {\n\t\tt.Errorf(\"invariant %%q failed after %s\", failed)\n\t}\n", m.Name)
		sb.WriteString("}\n")
		return sb.String()
	}

	valueVars := emitParamValueVars(&sb, m.Params, constraints)
	fmt.Fprintf(&sb, "\tmaxLen := %s\n", maxLenExpr(m.Params, valueVars))
	sb.WriteString("\tfor idx := 0; idx < maxLen; idx++ {\n")
	sb.WriteString("\t\targs := []any{\n")
	for _, p := range m.Params {
		fmt.Fprintf(&sb, "\t\t\t%s[idx%%len(%s)],\n", valueVars[p.Name], valueVars[p.Name])
	}
	sb.WriteString("\t\t}\n")
	buildEntity("\t\t")
	sb.WriteString("\t\trequiresOK, err := it.CheckRequires(method.Requires, method.Params, args, inst)\n")
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating requires: %v\", err)\n\t\t}\n")
	sb.WriteString("\t\tif !requiresOK {\n\t\t\tcontinue\n\t\t}\n")
	sb.WriteString("\t\tif err := it.CaptureOld(method.Ensures, method.Params, args, inst); err != nil {\n")
	sb.WriteString("\t\t\tt.Fatalf(\"capturing old(): %v\", err)\n\t\t}\n")
	fmt.Fprintf(&sb, "\t\tresult, err := it.CallMethod(inst, %q, args)\n", m.Name)
	sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"call failed for args=%v: %v\", args, err)\n\t\t}\n")
	if len(m.Ensures) > 0 {
		sb.WriteString("\t\tok, failed, err := it.CheckEnsures(method.Ensures, method.Params, args, result, inst)\n")
		sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating ensures: %v\", err)\n\t\t}\n")
		sb.WriteString("\t\tif !ok {\n\t\t\tt.Errorf(\"postcondition %q failed for args=%v\", failed, args)\n\t\t}\n")
	}
	sb.WriteString("\t\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
	fmt.Fprintf(&sb, "\t\t\tt.Fatalf(\"evaluating invariants: %%v\", err)\n\t\t} else if !ok {\n\t\t\tt.Errorf(\"invariant %%q failed after %s\", failed)\n\t\t}\n", m.Name)
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return sb.String()
}

// generateWorkflowTest constructs an entity once and calls each
// method in turn with a single valid argument set, checking
// invariants hold after every step -- a cheap sequential-use smoke
// test layered on top of the per-method property checks.
func generateWorkflowTest(e *ast.EntityDecl) string {
	var sb strings.Builder
	ctorConstraints := AnalyzeConstraints(e.Constructor.Params, e.Constructor.Requires)

	fmt.Fprintf(&sb, "func Test%s_Workflow(t *testing.T) {\n", e.Name)
	fmt.Fprintf(&sb, "\tentity := mustFindEntity(contractTestProgram, %q)\n", e.Name)
	sb.WriteString("\tctorArgs := []any{\n")
	for _, p := range e.Constructor.Params {
		fmt.Fprintf(&sb, "\t\t%s,\n", defaultValueForType(ctorConstraints[p.Name]))
	}
	sb.WriteString("\t}\n")
	sb.WriteString("\tit := interp.New(contractTestProgram)\n")
	fmt.Fprintf(&sb, "\tinst, err := it.Construct(%q, ctorArgs)\n", e.Name)
	sb.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"construction failed: %v\", err)\n\t}\n")
	sb.WriteString("\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
	sb.WriteString("\t\tt.Fatalf(\"evaluating invariants: %v\", err)\n\t} else if !ok {\n")
	sb.WriteString("\t\tt.Errorf(\"invariant %q failed after construction\", failed)\n\t}\n")

	for _, m := range e.Methods {
		methodConstraints := AnalyzeConstraints(m.Params, m.Requires)
		fmt.Fprintf(&sb, "\tmethod%s := mustFindMethod(entity, %q)\n", m.Name, m.Name)
		if len(m.Params) > 0 {
			sb.WriteString("\t{\n")
			sb.WriteString("\t\targs := []any{\n")
			for _, p := range m.Params {
				fmt.Fprintf(&sb, "\t\t\t%s,\n", defaultValueForType(methodConstraints[p.Name]))
			}
			sb.WriteString("\t\t}\n")
			fmt.Fprintf(&sb, "\t\trequiresOK, err := it.CheckRequires(method%s.Requires, method%s.Params, args, inst)\n", m.Name, m.Name)
			sb.WriteString("\t\tif err != nil {\n\t\t\tt.Fatalf(\"evaluating requires: %v\", err)\n\t\t}\n")
			sb.WriteString("\t\tif requiresOK {\n")
			fmt.Fprintf(&sb, "\t\t\tif _, err := it.CallMethod(inst, %q, args); err != nil {\n", m.Name)
			sb.WriteString("\t\t\t\tt.Fatalf(\"call failed: %v\", err)\n\t\t\t}\n")
			sb.WriteString("\t\t\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
			fmt.Fprintf(&sb, "\t\t\t\tt.Fatalf(\"evaluating invariants: %%v\", err)\n\t\t\t} else if !ok {\n\t\t\t\tt.Errorf(\"invariant %%q failed after %s in workflow\", failed)\n\t\t\t}\n", m.Name)
			sb.WriteString("\t\t}\n")
			sb.WriteString("\t}\n")
		} else {
			fmt.Fprintf(&sb, "\tif _, err := it.CallMethod(inst, %q, nil); err != nil {\n", m.Name)
			sb.WriteString("\t\tt.Fatalf(\"call failed: %v\", err)\n\t}\n")
			sb.WriteString("\tif ok, failed, err := it.CheckInvariants(entity.Invariants, inst); err != nil {\n")
			fmt.Fprintf(&sb, "\t\tt.Fatalf(\"evaluating invariants: %%v\", err)\n\t} else if !ok {\n\t\tt.Errorf(\"invariant %%q failed after %s in workflow\", failed)\n\t}\n", m.Name)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// --- shared helpers ---

// emitParamValueVars declares a local slice variable per parameter
// holding its generated test values, and returns the name used for
// each.
func emitParamValueVars(sb *strings.Builder, params []*ast.Param, constraints map[string]*ParamConstraint) map[string]string {
	valueVars := make(map[string]string)
	for _, p := range params {
		c := constraints[p.Name]
		varName := p.Name + "Values"
		valueVars[p.Name] = varName
		values := generateValuesForParam(c)
		fmt.Fprintf(sb, "\t%s := []any{%s}\n", varName, strings.Join(values, ", "))
	}
	return valueVars
}

// generateValuesForParam selects a value-generation strategy based on
// the parameter's declared type.
func generateValuesForParam(c *ParamConstraint) []string {
	switch c.TypeName {
	case "Int":
		return GenerateIntValues(c)
	case "Float":
		return GenerateFloatValues(c)
	case "Bool":
		return GenerateBoolValues()
	case "String":
		return GenerateStringValues()
	case "Array":
		return GenerateArrayIntValues(c)
	default:
		return []string{}
	}
}

// maxLenExpr builds a Go expression computing the largest value-list
// length across a parameter set, so the zipped iteration below covers
// every generated value at least once.
func maxLenExpr(params []*ast.Param, valueVars map[string]string) string {
	if len(params) == 1 {
		return fmt.Sprintf("len(%s)", valueVars[params[0].Name])
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("len(%s)", valueVars[p.Name])
	}
	result := parts[0]
	for _, p := range parts[1:] {
		result = fmt.Sprintf("maxInt(%s, %s)", result, p)
	}
	return result
}

// defaultValueForType picks a single valid value for a constrained
// parameter, used where a test needs just one instance (constructing
// a base entity, seeding a workflow step).
func defaultValueForType(c *ParamConstraint) string {
	switch c.TypeName {
	case "Int":
		lo := int64(0)
		if c.Lower != nil {
			lo = *c.Lower
		}
		for _, ne := range c.NotEqual {
			if lo == ne {
				lo++
			}
		}
		return fmt.Sprintf("int64(%d)", lo)
	case "Float":
		if c.Lower != nil {
			return formatFloat(float64(*c.Lower))
		}
		return "0.0"
	case "Bool":
		return "true"
	case "String":
		return `"test"`
	case "Array":
		minLen := int64(1)
		if c.MinLen != nil {
			minLen = *c.MinLen
		}
		elemLo := int64(1)
		if c.ElemLower != nil {
			elemLo = *c.ElemLower
		}
		return makeArrayLiteral(minLen, elemLo, elemLo+10, 0xdeadbeef)
	default:
		return "nil"
	}
}

// exportedTestName turns a lowercase identifier into the exported
// Test<Name> form Go's testing package requires.
func exportedTestName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// goStringLiteral renders source as a double-quoted Go string literal
// (escaping newlines, quotes, etc. via strconv rather than a raw
// backtick block, since module source can itself contain backticks).
func goStringLiteral(source string) string {
	return strconv.Quote(source)
}
