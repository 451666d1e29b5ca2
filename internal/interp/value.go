package interp

import (
	"fmt"
	"strings"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/runtime/task"
)

// EntityInstance is a runtime instance of an entity: a mutable bag of
// named fields, matching the reference-type, mutable-self semantics
// entity methods assume (a method that writes self.field mutates the
// caller's instance, not a copy).
type EntityInstance struct {
	Type   string
	Fields map[string]any
}

func (e *EntityInstance) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s{", e.Type)
	first := true
	for k, v := range e.Fields {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s: %v", k, v)
	}
	sb.WriteString("}")
	return sb.String()
}

// ArrayValue is a mutable, reference-typed array. Held behind a pointer
// so index assignment (arr[i] = v) and append mutate the same backing
// value other holders see, the same sharing model EntityInstance gives
// entity fields.
type ArrayValue struct {
	Elems []any
}

// EnumValue is a runtime instance of an enum variant, including the
// built-in Result/Option variants (Ok/Err/Some/None).
type EnumValue struct {
	Enum    string
	Variant string
	Fields  []any
}

func (e *EnumValue) String() string {
	if len(e.Fields) == 0 {
		return e.Variant
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%v", f)
	}
	return fmt.Sprintf("%s(%s)", e.Variant, strings.Join(parts, ", "))
}

// rangeValue is the runtime value of a RangeExpr evaluated on its own
// (outside a forall/exists/for-in context that consumes it directly).
type rangeValue struct {
	start, end int64
}

// closureValue is a runtime closure: a lambda literal bound to the
// environment active where it was written.
type closureValue struct {
	params []string
	body   ast.Expression
	env    *Env
}

// TaskHandle is the value a `spawn` expression evaluates to: a handle
// an `await` expression later resolves, via the same Scheduler the
// compiled runtime's Async effect ABI uses.
type TaskHandle struct {
	id task.TaskId
}

// formatValue renders a runtime value the way print() shows it.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "void"
	case *ArrayValue:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
