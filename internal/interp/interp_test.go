package interp

import (
	"testing"

	"github.com/nyxlang/nyx/internal/parser"
)

func parseProgram(t *testing.T, source string) *Interpreter {
	t.Helper()
	p := parser.New(source)
	prog := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("fixture failed to parse: %s", p.Diagnostics().Format("fixture"))
	}
	return New(prog)
}

func TestCallFunctionArithmetic(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function add(a: Int, b: Int) returns Int {
    return a + b;
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("add", []any{int64(2), int64(3)})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 5 {
		t.Errorf("expected 5, got %v", result)
	}
}

func TestCallFunctionFibonacciLoop(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function fib(n: Int) returns Int {
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

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("fib", []any{int64(10)})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 55 {
		t.Errorf("expected fib(10) = 55, got %v", result)
	}
}

func TestConstructAndCallMethodMutatesSelf(t *testing.T) {
	it := parseProgram(t, `
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
    {
        self.balance = self.balance + amount;
    }
}

entry function main() returns Int { return 0; }
`)
	inst, err := it.Construct("BankAccount", []any{int64(100)})
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if inst.Fields["balance"].(int64) != 100 {
		t.Fatalf("expected balance 100, got %v", inst.Fields["balance"])
	}
	if _, err := it.CallMethod(inst, "deposit", []any{int64(50)}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if inst.Fields["balance"].(int64) != 150 {
		t.Errorf("expected balance 150 after deposit, got %v", inst.Fields["balance"])
	}
}

func TestContractCheckingAcrossACall(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

entity BankAccount {
    field balance: Int;

    constructor(initial_balance: Int) {
        self.balance = initial_balance;
    }

    method deposit(amount: Int) returns Void
        requires amount > 0
        ensures self.balance == old(self.balance) + amount
    {
        self.balance = self.balance + amount;
    }
}

entry function main() returns Int { return 0; }
`)
	inst, err := it.Construct("BankAccount", []any{int64(10)})
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	ent := it.entities["BankAccount"]
	method := ent.Methods[0]
	args := []any{int64(5)}

	ok, err := it.CheckRequires(method.Requires, method.Params, args, inst)
	if err != nil || !ok {
		t.Fatalf("expected requires to pass, ok=%v err=%v", ok, err)
	}
	if err := it.CaptureOld(method.Ensures, method.Params, args, inst); err != nil {
		t.Fatalf("capturing old(): %v", err)
	}
	result, err := it.CallMethod(inst, "deposit", args)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	ok, failed, err := it.CheckEnsures(method.Ensures, method.Params, args, result, inst)
	if err != nil {
		t.Fatalf("evaluating ensures: %v", err)
	}
	if !ok {
		t.Errorf("postcondition %q unexpectedly failed", failed)
	}
}

func TestArrayLiteralAndIndexing(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function first(arr: Array<Int>) returns Int {
    return arr[0];
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("first", []any{&ArrayValue{Elems: []any{int64(7), int64(8)}}})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 7 {
		t.Errorf("expected 7, got %v", result)
	}
}

func TestTryExprPropagatesErr(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function inner() returns Result<Int, Int> {
    return Err(42);
}

function outer() returns Result<Int, Int> {
    let v: Int = inner()?;
    return Ok(v);
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("outer", nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	ev, ok := result.(*EnumValue)
	if !ok || ev.Variant != "Err" {
		t.Fatalf("expected Err propagated through '?', got %v", result)
	}
	if ev.Fields[0].(int64) != 42 {
		t.Errorf("expected propagated Err(42), got %v", ev.Fields[0])
	}
}

func TestMatchExprDispatchesOnVariant(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function unwrap_or(r: Result<Int, Int>, fallback: Int) returns Int {
    match r {
        Ok(v) => { return v; }
        Err(_e) => { return fallback; }
    }
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("unwrap_or", []any{
		&EnumValue{Enum: "Result", Variant: "Ok", Fields: []any{int64(9)}},
		int64(-1),
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 9 {
		t.Errorf("expected 9 from Ok branch, got %v", result)
	}
}

func TestDeferRunsLIFOOnBlockExit(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

entity Log {
    field last: Int;

    constructor() {
        self.last = 0;
    }

    method run() returns Void {
        defer self.mark(1);
        defer self.mark(2);
        self.mark(0);
    }

    method mark(n: Int) returns Void {
        self.last = n;
    }
}

entry function main() returns Int { return 0; }
`)
	inst, err := it.Construct("Log", nil)
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if _, err := it.CallMethod(inst, "run", nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// mark(0) runs first, then the defers in reverse order: mark(2), mark(1).
	if inst.Fields["last"].(int64) != 1 {
		t.Errorf("expected the first-registered defer to run last (last=1), got %v", inst.Fields["last"])
	}
}

func TestPerformWithoutHandlerReturnsError(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

effect Logger {
    function log(n: Int) returns Void;
}

function noisy() returns Int with Logger {
    perform Logger.log(1);
    perform Logger.log(2);
    return 3;
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("noisy", nil)
	if err == nil {
		// Without an enclosing handle expression, perform has nothing to
		// dispatch to; this is expected to error, not to silently no-op.
		t.Fatalf("expected an error performing an effect with no installed handler, got result=%v", result)
	}
}

func TestHandleExprInstallsAndResumes(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

effect Logger {
    function log(n: Int) returns Int;
}

function noisy() returns Int with Logger {
    let a: Int = perform Logger.log(1);
    let b: Int = perform Logger.log(2);
    return a + b;
}

function runner() returns Int {
    return handle {
        return noisy();
    } with Logger {
        log(n) => resume(n * 10)
    };
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("runner", nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 30 {
		t.Errorf("expected 10+20=30 from handled perform calls, got %v", result)
	}
}

func TestSpawnAndAwait(t *testing.T) {
	it := parseProgram(t, `
module test version "1.0.0";

function double(n: Int) returns Int {
    return n * 2;
}

function runner() returns Int {
    let h: Task<Int> = spawn double(21);
    return await h;
}

entry function main() returns Int { return 0; }
`)
	result, err := it.CallFunction("runner", nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.(int64) != 42 {
		t.Errorf("expected 42 from spawned+awaited double(21), got %v", result)
	}
}
