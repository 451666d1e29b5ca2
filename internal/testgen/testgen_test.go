package testgen

import (
	"strings"
	"testing"

	"github.com/nyxlang/nyx/internal/parser"
)

func TestGenerateTestForSimpleFunction(t *testing.T) {
	source := `
module test version "1.0.0";

function fib(n: Int) returns Int
    requires n >= 0
    ensures result >= 0
{
    if n <= 0 { return 0; }
    if n == 1 { return 1; }
    let mutable a: Int = 0;
    let mutable b: Int = 1;
    let mutable i: Int = 2;
    while i <= n {
        let temp: Int = a + b;
        a = b;
        b = temp;
        i = i + 1;
    }
    return b;
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "package contracttest") {
		t.Error("Expected a package clause")
	}
	if !strings.Contains(result, `"github.com/nyxlang/nyx/internal/interp"`) {
		t.Error("Expected an import of internal/interp")
	}
	if !strings.Contains(result, "func TestFib_Contracts(t *testing.T)") {
		t.Error("Expected TestFib_Contracts test function")
	}
	if !strings.Contains(result, "nValues := []any{") {
		t.Error("Expected generated value slice for param n")
	}
	// Should check requires before calling
	if !strings.Contains(result, "it.CheckRequires(fn.Requires, fn.Params, args, nil)") {
		t.Error("Expected a CheckRequires call gating the function call")
	}
	// Should call the function through the interpreter
	if !strings.Contains(result, `it.CallFunction("fib", args)`) {
		t.Error("Expected an interpreter call to fib")
	}
	// Should check ensures afterward
	if !strings.Contains(result, "it.CheckEnsures(fn.Ensures, fn.Params, args, result, nil)") {
		t.Error("Expected a CheckEnsures call after the function call")
	}
}

func TestGenerateTestNoContracts(t *testing.T) {
	source := `
module test version "1.0.0";

function add(a: Int, b: Int) returns Int {
    return a + b;
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if result != "" {
		t.Errorf("Expected empty output for function without contracts, got:\n%s", result)
	}
}

func TestGenerateTestEntryFunction(t *testing.T) {
	source := `
module test version "1.0.0";

entry function main() returns Int
    requires true
    ensures result >= 0
{
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	// Entry functions should be skipped
	if strings.Contains(result, "TestMain_Contracts") {
		t.Error("Expected entry function to be skipped")
	}
}

func TestGenerateTestEntityConstructor(t *testing.T) {
	source := `
module test version "1.0.0";

entity BankAccount {
    field balance: Int;

    invariant self.balance >= 0;

    constructor(initial_balance: Int)
        requires initial_balance >= 0
        ensures self.balance == initial_balance
    {
        self.balance = initial_balance;
    }
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestBankAccount_Constructor_Contracts(t *testing.T)") {
		t.Error("Expected constructor test function")
	}
	if !strings.Contains(result, `it.Construct("BankAccount", args)`) {
		t.Error("Expected an interpreter Construct call")
	}
	if !strings.Contains(result, "it.CheckEnsures(ctor.Ensures, ctor.Params, args, inst, inst)") {
		t.Error("Expected constructor postcondition check")
	}
	if !strings.Contains(result, "it.CheckInvariants(entity.Invariants, inst)") {
		t.Error("Expected invariant check after construction")
	}
}

func TestGenerateTestEntityMethod(t *testing.T) {
	source := `
module test version "1.0.0";

entity BankAccount {
    field balance: Int;

    invariant self.balance >= 0;

    constructor(initial_balance: Int)
        requires initial_balance >= 0
    {
        self.balance = initial_balance;
    }

    method deposit(amount: Int) returns Void
        requires amount > 0
        ensures self.balance == old(self.balance) + amount
    {
        self.balance = self.balance + amount;
    }
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestBankAccount_Deposit_Contracts(t *testing.T)") {
		t.Error("Expected deposit test function")
	}
	// Should capture old values before the mutating call
	if !strings.Contains(result, "it.CaptureOld(method.Ensures, method.Params, args, inst)") {
		t.Error("Expected old-value capture before the method call")
	}
	if !strings.Contains(result, `it.CallMethod(inst, "deposit", args)`) {
		t.Error("Expected an interpreter CallMethod call for deposit")
	}
	if !strings.Contains(result, "it.CheckInvariants(entity.Invariants, inst)") {
		t.Error("Expected invariant check after method call")
	}
	// Should re-construct the entity fresh each iteration
	if !strings.Contains(result, `it.Construct("BankAccount", ctorArgs)`) {
		t.Error("Expected fresh entity construction per iteration")
	}
}

func TestGenerateTestArrayParam(t *testing.T) {
	source := `
module test version "1.0.0";

function check_sorted(arr: Array<Int>) returns Bool
    requires len(arr) > 0
{
    return true;
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestCheck_sorted_Contracts(t *testing.T)") {
		t.Error("Expected check_sorted test function")
	}
	if !strings.Contains(result, "&interp.ArrayValue{Elems: []any{") {
		t.Error("Expected ArrayValue literals for array values")
	}
	if !strings.Contains(result, `it.CallFunction("check_sorted", args)`) {
		t.Error("Expected an interpreter call to check_sorted")
	}
}

func TestGenerateTestMultipleRequires(t *testing.T) {
	source := `
module test version "1.0.0";

function clamp(n: Int, lo: Int, hi: Int) returns Int
    requires lo >= 0
    requires hi >= lo
    ensures result >= lo
    ensures result <= hi
{
    if n < lo { return lo; }
    if n > hi { return hi; }
    return n;
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestClamp_Contracts(t *testing.T)") {
		t.Error("Expected clamp test function")
	}
	if !strings.Contains(result, "nValues := []any{") {
		t.Error("Expected value slice for n")
	}
	if !strings.Contains(result, "loValues := []any{") {
		t.Error("Expected value slice for lo")
	}
	if !strings.Contains(result, "hiValues := []any{") {
		t.Error("Expected value slice for hi")
	}
	if !strings.Contains(result, "maxInt(") {
		t.Error("Expected a maxInt-based zip length for multiple params")
	}
}

func TestGenerateTestWorkflow(t *testing.T) {
	source := `
module test version "1.0.0";

entity Counter {
    field value: Int;

    invariant self.value >= 0;

    constructor(initial: Int)
        requires initial >= 0
    {
        self.value = initial;
    }

    method increment() returns Void {
        self.value = self.value + 1;
    }
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestCounter_Workflow(t *testing.T)") {
		t.Error("Expected workflow test function")
	}
	if !strings.Contains(result, `it.Construct("Counter", ctorArgs)`) {
		t.Error("Expected Counter construction in workflow")
	}
	if !strings.Contains(result, `it.CallMethod(inst, "increment", nil)`) {
		t.Error("Expected increment call in workflow")
	}
	if !strings.Contains(result, "CheckInvariants") {
		t.Error("Expected invariant check in workflow")
	}
}

func TestGenerateTestOnlyRequires(t *testing.T) {
	source := `
module test version "1.0.0";

function divide(a: Int, b: Int) returns Int
    requires b != 0
{
    return a / b;
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestDivide_Contracts(t *testing.T)") {
		t.Error("Expected divide test function")
	}
	if !strings.Contains(result, `it.CallFunction("divide", args)`) {
		t.Error("Expected a call to divide")
	}
	// No ensures clauses, so no CheckEnsures call should be emitted
	if strings.Contains(result, "it.CheckEnsures(fn.Ensures") {
		t.Error("Expected no ensures check for a function with only requires")
	}
}

func TestGenerateTestStringParam(t *testing.T) {
	source := `
module test version "1.0.0";

entity Account {
    field name: String;

    constructor(name: String)
        requires true
    {
        self.name = name;
    }
}

entry function main() returns Int {
    return 0;
}
`
	prog := parser.New(source).Parse()
	result := Generate(prog, source)

	if !strings.Contains(result, "func TestAccount_Constructor_Contracts(t *testing.T)") {
		t.Error("Expected constructor test function")
	}
	if !strings.Contains(result, `"test"`) {
		t.Error("Expected string literal test values")
	}
}

func TestConstraintAnalysis(t *testing.T) {
	t.Run("LowerBound", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(n: Int) returns Int
    requires n >= 0
{ return n; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["n"]
		if c == nil {
			t.Fatal("Expected constraint for n")
		}
		if c.Lower == nil || *c.Lower != 0 {
			t.Errorf("Expected lower bound 0, got %v", c.Lower)
		}
	})

	t.Run("UpperBound", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(n: Int) returns Int
    requires n <= 100
{ return n; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["n"]
		if c == nil {
			t.Fatal("Expected constraint for n")
		}
		if c.Upper == nil || *c.Upper != 100 {
			t.Errorf("Expected upper bound 100, got %v", c.Upper)
		}
	})

	t.Run("StrictGT", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(n: Int) returns Int
    requires n > 0
{ return n; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["n"]
		if c == nil {
			t.Fatal("Expected constraint for n")
		}
		if c.Lower == nil || *c.Lower != 1 {
			t.Errorf("Expected lower bound 1 (from n > 0), got %v", c.Lower)
		}
	})

	t.Run("NotEqual", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(n: Int) returns Int
    requires n != 0
{ return n; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["n"]
		if c == nil {
			t.Fatal("Expected constraint for n")
		}
		if len(c.NotEqual) != 1 || c.NotEqual[0] != 0 {
			t.Errorf("Expected NotEqual [0], got %v", c.NotEqual)
		}
	})

	t.Run("AndCombination", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(n: Int) returns Int
    requires n >= 0 and n <= 100
{ return n; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["n"]
		if c == nil {
			t.Fatal("Expected constraint for n")
		}
		if c.Lower == nil || *c.Lower != 0 {
			t.Errorf("Expected lower bound 0, got %v", c.Lower)
		}
		if c.Upper == nil || *c.Upper != 100 {
			t.Errorf("Expected upper bound 100, got %v", c.Upper)
		}
	})

	t.Run("LenConstraint", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(arr: Array<Int>) returns Int
    requires len(arr) > 0
{ return 0; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["arr"]
		if c == nil {
			t.Fatal("Expected constraint for arr")
		}
		if c.TypeName != "Array" {
			t.Errorf("Expected Array type, got %s", c.TypeName)
		}
		if c.ElemType != "Int" {
			t.Errorf("Expected Int element type, got %s", c.ElemType)
		}
		if c.MinLen == nil || *c.MinLen != 1 {
			t.Errorf("Expected MinLen 1 (from len(arr) > 0), got %v", c.MinLen)
		}
	})

	t.Run("ForallElementBounds", func(t *testing.T) {
		source := `
module test version "1.0.0";
function f(arr: Array<Int>) returns Int
    requires forall i in 0..len(arr): arr[i] > 0
{ return 0; }
entry function main() returns Int { return 0; }
`
		prog := parser.New(source).Parse()
		fn := prog.Functions[0]
		constraints := AnalyzeConstraints(fn.Params, fn.Requires)

		c := constraints["arr"]
		if c == nil {
			t.Fatal("Expected constraint for arr")
		}
		if c.ElemLower == nil || *c.ElemLower != 1 {
			t.Errorf("Expected ElemLower 1 (from arr[i] > 0), got %v", c.ElemLower)
		}
	})
}

func TestValueGeneration(t *testing.T) {
	t.Run("IntValues", func(t *testing.T) {
		c := &ParamConstraint{
			Name:     "n",
			TypeName: "Int",
			Lower:    int64Ptr(0),
			Upper:    int64Ptr(100),
		}
		values := GenerateIntValues(c)
		if len(values) == 0 {
			t.Fatal("Expected non-empty values")
		}
		found0 := false
		found100 := false
		for _, v := range values {
			if v == "int64(0)" {
				found0 = true
			}
			if v == "int64(100)" {
				found100 = true
			}
		}
		if !found0 {
			t.Error("Expected int64(0) in boundary values")
		}
		if !found100 {
			t.Error("Expected int64(100) in boundary values")
		}
	})

	t.Run("IntWithExclusion", func(t *testing.T) {
		c := &ParamConstraint{
			Name:     "n",
			TypeName: "Int",
			Lower:    int64Ptr(0),
			NotEqual: []int64{0},
		}
		values := GenerateIntValues(c)
		for _, v := range values[:6] {
			if v == "int64(0)" {
				t.Error("Expected int64(0) to be excluded")
			}
		}
	})

	t.Run("FloatValues", func(t *testing.T) {
		c := &ParamConstraint{
			Name:     "f",
			TypeName: "Float",
		}
		values := GenerateFloatValues(c)
		if len(values) == 0 {
			t.Fatal("Expected non-empty values")
		}
		found := false
		for _, v := range values {
			if v == "0.0" {
				found = true
				break
			}
		}
		if !found {
			t.Error("Expected a zero-like value in float values")
		}
	})

	t.Run("BoolValues", func(t *testing.T) {
		values := GenerateBoolValues()
		if len(values) != 2 {
			t.Errorf("Expected 2 bool values, got %d", len(values))
		}
	})

	t.Run("StringValues", func(t *testing.T) {
		values := GenerateStringValues()
		if len(values) != 3 {
			t.Errorf("Expected 3 string values, got %d", len(values))
		}
		for _, v := range values {
			if !strings.HasPrefix(v, `"`) {
				t.Errorf("Expected a quoted Go string literal, got %s", v)
			}
		}
	})

	t.Run("ArrayValues", func(t *testing.T) {
		c := &ParamConstraint{
			Name:     "arr",
			TypeName: "Array",
			ElemType: "Int",
			MinLen:   int64Ptr(1),
		}
		values := GenerateArrayIntValues(c)
		if len(values) == 0 {
			t.Fatal("Expected non-empty array values")
		}
		for _, v := range values {
			if !strings.HasPrefix(v, "&interp.ArrayValue{Elems: []any{") {
				t.Errorf("Expected ArrayValue literal, got %s", v)
			}
		}
	})

	t.Run("ArrayWithElementBounds", func(t *testing.T) {
		c := &ParamConstraint{
			Name:      "arr",
			TypeName:  "Array",
			ElemType:  "Int",
			MinLen:    int64Ptr(2),
			ElemLower: int64Ptr(1),
			ElemUpper: int64Ptr(10),
		}
		values := GenerateArrayIntValues(c)
		if len(values) == 0 {
			t.Fatal("Expected non-empty array values")
		}
		for _, v := range values {
			elems := strings.Count(v, "int64(")
			if elems < 2 {
				t.Errorf("Expected at least 2 elements, got %s", v)
			}
		}
	})
}
