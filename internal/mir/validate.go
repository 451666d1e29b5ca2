package mir

import "fmt"

// Validate checks a lowered Program for the structural invariants every
// later pass (monomorphization, codegen, the verifier) relies on, and
// returns a list of human-readable error messages. An empty slice means
// the program is well-formed.
func Validate(prog *Program) []string {
	var errors []string

	if prog.IsEntry && !prog.HasEntry {
		errors = append(errors, fmt.Sprintf("entry module %q has no entry function", prog.ModuleName))
	}

	for _, fn := range prog.Functions {
		errors = append(errors, validateFunction(fn)...)
	}

	return errors
}

func validateFunction(fn *Function) []string {
	var errors []string
	label := fmt.Sprintf("function %s", fn.Name)

	if fn.ReturnType == nil {
		errors = append(errors, label+" has nil ReturnType")
	}
	if len(fn.Blocks) == 0 {
		errors = append(errors, label+" has no basic blocks")
		return errors
	}
	if int(fn.Entry) >= len(fn.Blocks) {
		errors = append(errors, fmt.Sprintf("%s entry block %d out of range", label, fn.Entry))
	}
	for i, p := range fn.Params {
		if int(p) >= len(fn.Locals) {
			errors = append(errors, fmt.Sprintf("%s param %d refers to out-of-range local %d", label, i, p))
		}
	}

	for i, b := range fn.Blocks {
		blockLabel := fmt.Sprintf("%s bb%d", label, i)
		if b.Terminator == nil {
			errors = append(errors, blockLabel+" has no terminator")
			continue
		}
		errors = append(errors, validateTerminator(fn, blockLabel, b.Terminator)...)
		for _, s := range b.Statements {
			errors = append(errors, validateStatement(fn, blockLabel, s)...)
		}
	}

	errors = append(errors, validateContract(fn, label)...)
	return errors
}

func validatePlace(fn *Function, label string, p Place) []string {
	var errors []string
	if int(p.Local) >= len(fn.Locals) {
		errors = append(errors, fmt.Sprintf("%s: place refers to out-of-range local %s", label, p.Local))
	}
	return errors
}

func validateBlockTarget(fn *Function, label string, b BlockID) []string {
	if int(b) >= len(fn.Blocks) {
		return []string{fmt.Sprintf("%s: terminator targets out-of-range block %s", label, b)}
	}
	return nil
}

func validateStatement(fn *Function, label string, s Statement) []string {
	switch st := s.(type) {
	case AssignStatement:
		return validatePlace(fn, label, st.Target)
	case StorageLiveStatement, StorageDeadStatement, DropStatement:
		return nil
	case InstallHandlerStatement:
		if int(st.PrevLocal) >= len(fn.Locals) {
			return []string{fmt.Sprintf("%s: install handler refers to out-of-range local %s", label, st.PrevLocal)}
		}
		return nil
	case UninstallHandlerStatement:
		if int(st.PrevLocal) >= len(fn.Locals) {
			return []string{fmt.Sprintf("%s: uninstall handler refers to out-of-range local %s", label, st.PrevLocal)}
		}
		return nil
	case CaptureContinuationStatement:
		return validatePlace(fn, label, st.Dest)
	case CloneContinuationStatement:
		errors := validatePlace(fn, label, st.Source)
		return append(errors, validatePlace(fn, label, st.Dest)...)
	case FfiBarrierStatement:
		return nil
	default:
		return []string{fmt.Sprintf("%s: unknown statement type %T", label, s)}
	}
}

func validateTerminator(fn *Function, label string, t Terminator) []string {
	var errors []string
	switch term := t.(type) {
	case GotoTerminator:
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case SwitchIntTerminator:
		for _, c := range term.Cases {
			errors = append(errors, validateBlockTarget(fn, label, c.Target)...)
		}
		errors = append(errors, validateBlockTarget(fn, label, term.Default)...)
	case ReturnTerminator, UnreachableTerminator:
		// no target to validate
	case CallTerminator:
		errors = append(errors, validatePlace(fn, label, term.Destination)...)
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
		if term.Unwind != nil {
			errors = append(errors, validateBlockTarget(fn, label, *term.Unwind)...)
		}
	case SpawnTerminator:
		errors = append(errors, validatePlace(fn, label, term.Destination)...)
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case AwaitTerminator:
		errors = append(errors, validatePlace(fn, label, term.Destination)...)
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case YieldTerminator:
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case ChanRecvTerminator:
		errors = append(errors, validatePlace(fn, label, term.Destination)...)
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case ChanSendTerminator:
		errors = append(errors, validateBlockTarget(fn, label, term.Target)...)
	case SelectTerminator:
		for _, arm := range term.Arms {
			errors = append(errors, validateBlockTarget(fn, label, arm.Target)...)
		}
		if term.Default != nil {
			errors = append(errors, validateBlockTarget(fn, label, *term.Default)...)
		}
	default:
		errors = append(errors, fmt.Sprintf("%s: unknown terminator type %T", label, t))
	}
	return errors
}

func validateContract(fn *Function, label string) []string {
	var errors []string
	for i, c := range fn.Contract.Requires {
		if int(c.CondLocal) >= len(fn.Locals) {
			errors = append(errors, fmt.Sprintf("%s requires[%d] refers to out-of-range local %s", label, i, c.CondLocal))
		}
	}
	for i, c := range fn.Contract.Ensures {
		if int(c.CondLocal) >= len(fn.Locals) {
			errors = append(errors, fmt.Sprintf("%s ensures[%d] refers to out-of-range local %s", label, i, c.CondLocal))
		}
	}
	return errors
}
