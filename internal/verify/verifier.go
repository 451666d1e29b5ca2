package verify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nyxlang/nyx/internal/ast"
)

// VerifyResult holds the outcome of checking a single contract clause
// against z3.
type VerifyResult struct {
	EntityName   string // empty for a free function's own contracts
	FunctionName string // empty for an entity invariant
	ContractKind string // "requires", "ensures", "invariant", or "loop_invariant"
	ContractText string
	IsEnsures    bool
	Status       string // "verified", "unverified", "error", "timeout"
	Message      string
	SMTOutput    string // raw SMT-LIB, for debugging
}

// QualifiedName renders the dotted path an intent block's verified_by
// clause names this result with, e.g. "BankAccount.withdraw.requires" or
// "abs.ensures".
func (r *VerifyResult) QualifiedName() string {
	var parts []string
	if r.EntityName != "" {
		parts = append(parts, r.EntityName)
	}
	if r.FunctionName != "" {
		parts = append(parts, r.FunctionName)
	}
	parts = append(parts, r.ContractKind)
	return strings.Join(parts, ".")
}

// Verify checks every contract clause in prog: free functions' requires/
// ensures/loop invariants, and entities' constructor/method contracts plus
// their own invariants.
func Verify(prog *ast.Program) []*VerifyResult {
	z3Path, err := exec.LookPath("z3")
	if err != nil {
		return []*VerifyResult{{Status: "error", Message: "z3 not found on PATH"}}
	}

	var results []*VerifyResult
	for _, fn := range prog.Functions {
		results = append(results, verifyFunctionWithZ3(fn, z3Path)...)
	}
	for _, ent := range prog.Entities {
		results = append(results, verifyEntityWithZ3(ent, z3Path)...)
	}
	return results
}

// VerifyFunction verifies contracts for a single free function.
func VerifyFunction(fn *ast.FunctionDecl) []*VerifyResult {
	z3Path, err := exec.LookPath("z3")
	if err != nil {
		return []*VerifyResult{{FunctionName: fn.Name, Status: "error", Message: "z3 not found on PATH"}}
	}
	return verifyFunctionWithZ3(fn, z3Path)
}

func verifyFunctionWithZ3(fn *ast.FunctionDecl, z3Path string) []*VerifyResult {
	var results []*VerifyResult

	for _, req := range fn.Requires {
		smtLib := TranslateContract(fn, req, false)
		r := runZ3(z3Path, smtLib)
		r.FunctionName = fn.Name
		r.ContractKind = "requires"
		r.ContractText = req.RawText
		r.SMTOutput = smtLib
		results = append(results, r)
	}

	for _, ens := range fn.Ensures {
		smtLib := TranslateContract(fn, ens, true)
		r := runZ3(z3Path, smtLib)
		r.FunctionName = fn.Name
		r.ContractKind = "ensures"
		r.IsEnsures = true
		r.ContractText = ens.RawText
		r.SMTOutput = smtLib
		results = append(results, r)
	}

	if fn.Body != nil {
		for _, loop := range findWhileStmts(fn.Body.Statements) {
			for _, inv := range loop.Invariants {
				smtLib := TranslateLoopInvariant(fn, loop, inv)
				r := runZ3(z3Path, smtLib)
				r.FunctionName = fn.Name
				r.ContractKind = "loop_invariant"
				r.ContractText = inv.RawText
				r.SMTOutput = smtLib
				results = append(results, r)
			}
		}
	}

	return results
}

func verifyEntityWithZ3(ent *ast.EntityDecl, z3Path string) []*VerifyResult {
	var results []*VerifyResult

	for _, inv := range ent.Invariants {
		clause := &ast.ContractClause{Expr: inv.Expr, RawText: inv.RawText, Line: inv.Line, Column: inv.Column}
		smtLib := TranslateInvariant(ent.Name, ent.Fields, clause)
		r := runZ3(z3Path, smtLib)
		r.EntityName = ent.Name
		r.ContractKind = "invariant"
		r.ContractText = inv.RawText
		r.SMTOutput = smtLib
		results = append(results, r)
	}

	entityInvariantClauses := make([]*ast.ContractClause, len(ent.Invariants))
	for i, inv := range ent.Invariants {
		entityInvariantClauses[i] = &ast.ContractClause{Expr: inv.Expr, RawText: inv.RawText, Line: inv.Line, Column: inv.Column}
	}

	if c := ent.Constructor; c != nil {
		results = append(results, verifyMethodContracts(ent.Name, "new", ent.Fields, c.Params, nil,
			c.Requires, c.Ensures, entityInvariantClauses, c.Body, z3Path)...)
	}
	for _, m := range ent.Methods {
		results = append(results, verifyMethodContracts(ent.Name, m.Name, ent.Fields, m.Params, m.ReturnType,
			m.Requires, m.Ensures, entityInvariantClauses, m.Body, z3Path)...)
	}

	return results
}

func verifyMethodContracts(entityName, methodName string, fields []*ast.FieldDecl, params []*ast.Param, returnType *ast.TypeRef,
	requires, ensures, invariants []*ast.ContractClause, body *ast.Block, z3Path string) []*VerifyResult {
	var results []*VerifyResult

	for _, req := range requires {
		smtLib := TranslateMethodContract(entityName, methodName, fields, params, returnType, requires, invariants, req, false)
		r := runZ3(z3Path, smtLib)
		r.EntityName = entityName
		r.FunctionName = methodName
		r.ContractKind = "requires"
		r.ContractText = req.RawText
		r.SMTOutput = smtLib
		results = append(results, r)
	}

	for _, ens := range ensures {
		smtLib := TranslateMethodContract(entityName, methodName, fields, params, returnType, requires, invariants, ens, true)
		r := runZ3(z3Path, smtLib)
		r.EntityName = entityName
		r.FunctionName = methodName
		r.ContractKind = "ensures"
		r.IsEnsures = true
		r.ContractText = ens.RawText
		r.SMTOutput = smtLib
		results = append(results, r)
	}

	if body != nil {
		for _, loop := range findWhileStmts(body.Statements) {
			for _, inv := range loop.Invariants {
				smtLib := TranslateLoopInvariantForMethod(entityName, methodName, fields, params, loop, inv)
				r := runZ3(z3Path, smtLib)
				r.EntityName = entityName
				r.FunctionName = methodName
				r.ContractKind = "loop_invariant"
				r.ContractText = inv.RawText
				r.SMTOutput = smtLib
				results = append(results, r)
			}
		}
	}

	return results
}

// runZ3 executes z3 on smtLib and classifies its output into a VerifyResult.
func runZ3(z3Path, smtLib string) *VerifyResult {
	result := &VerifyResult{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, z3Path, "-in", "-T:5")
	cmd.Stdin = strings.NewReader(smtLib)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		result.Status = "timeout"
		result.Message = "z3 timed out after 5 seconds"
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("z3 error: %v", err)
		if stderr.Len() > 0 {
			result.Message += "\n" + stderr.String()
		}
		return result
	}

	output := strings.TrimSpace(stdout.String())

	// Both requires (direct) and ensures (negated) checks reduce to a
	// satisfiability query: for requires, sat means the precondition is
	// satisfiable (not self-contradictory); for ensures/invariants, unsat
	// of the negation means no counterexample exists, i.e. verified.
	switch output {
	case "unsat":
		result.Status = "verified"
		result.Message = "contract verified (no counterexample exists)"
	case "sat":
		result.Status = "unverified"
		result.Message = "counterexample found (contract may not hold)"
	case "timeout":
		result.Status = "timeout"
		result.Message = "z3 timed out"
	case "unknown":
		result.Status = "timeout"
		result.Message = "z3 returned unknown (likely timeout or too complex)"
	default:
		result.Status = "error"
		result.Message = fmt.Sprintf("unexpected z3 output: %s", output)
	}

	return result
}
