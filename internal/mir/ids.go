// Package mir implements the mid-level intermediate representation lowered
// from the checked AST: a control-flow graph of basic blocks over typed
// locals, in the shape the original aria-mir crate lowers into (see
// original_source/crates/aria-mir/src/lower.rs) but expressed the way the
// teacher's internal/ir package expresses its tree IR: exported node
// structs (holding mir's own *Type rather than *checker.Type), small
// marker-method interfaces, no visitor framework.
package mir

import "fmt"

// LocalID names a typed local slot within a function (locals include
// parameters, the return place, and every temporary introduced during
// lowering).
type LocalID int

func (l LocalID) String() string { return fmt.Sprintf("_%d", int(l)) }

// BlockID names a basic block within a function's control-flow graph.
type BlockID int

func (b BlockID) String() string { return fmt.Sprintf("bb%d", int(b)) }

// FuncID names a function in a Program's function table. Monomorphized
// instantiations of a generic function get their own FuncID distinct from
// the generic template's.
type FuncID int

// ReturnLocal is the local every function reserves for its return value;
// lowering always allocates it first, matching the aria-mir convention of
// local 0 being the return place.
const ReturnLocal LocalID = 0

// Negative FuncIDs name runtime builtins with no user-level declaration to
// attach a real FuncID to (array length, array push, print). Backends must
// special-case FuncID < 0 instead of indexing Program.Functions with it.
const (
	BuiltinArrayLen FuncID = -1 - iota
	BuiltinArrayPush
	BuiltinPrint
)
