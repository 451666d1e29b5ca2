package mir

import "github.com/nyxlang/nyx/internal/lexer"

// Operand is a value usable directly by an Rvalue or a terminator: either a
// constant or a read of a Place.
type Operand interface{ operandNode() }

// Constant is a compile-time-known value embedded directly in the MIR.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float string // preserved as source text for exact re-emission
	Str   string
	Bool  bool
	Type  *Type
}

func (Constant) operandNode() {}

// ConstKind tags the variant of a Constant.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBool
)

// Copy reads a Place without consuming it (used when the place's type is
// Copy, e.g. Int/Float/Bool/Channel handles).
type Copy struct {
	Place Place
	Type  *Type
}

func (Copy) operandNode() {}

// Move reads a Place and, conceptually, relinquishes the source's
// ownership of it (used for non-Copy aggregate and closure values).
type Move struct {
	Place Place
	Type  *Type
}

func (Move) operandNode() {}

// Rvalue is the right-hand side of an Assign statement: a value-producing
// computation over operands that, unlike a Call, cannot suspend the
// current task and so never needs a basic-block boundary of its own.
type Rvalue interface{ rvalueNode() }

// UseRvalue is the identity rvalue: just the value of an operand.
type UseRvalue struct {
	Operand Operand
}

func (UseRvalue) rvalueNode() {}

// BinaryOpRvalue applies a binary operator to two operands.
type BinaryOpRvalue struct {
	Op    lexer.TokenType
	Left  Operand
	Right Operand
	Type  *Type
}

func (BinaryOpRvalue) rvalueNode() {}

// UnaryOpRvalue applies a unary operator to one operand.
type UnaryOpRvalue struct {
	Op      lexer.TokenType
	Operand Operand
	Type    *Type
}

func (UnaryOpRvalue) rvalueNode() {}

// AggregateKind tags the variant of an AggregateRvalue.
type AggregateKind int

const (
	AggregateStruct AggregateKind = iota
	AggregateEnumVariant
	AggregateArray
	AggregateClosure
	// AggregateEvidenceVector allocates a function's own local evidence
	// vector (Count slots, one per declared effect) for a function whose
	// effect row is empty but that still installs handlers of its own
	// (fully discharging whatever it handles before returning).
	AggregateEvidenceVector
)

// AggregateRvalue constructs a compound value: a struct literal, an enum
// variant, an array literal, a closure capturing its environment, or a
// fresh evidence vector.
type AggregateRvalue struct {
	Kind        AggregateKind
	TypeName    string   // struct or enum name; empty for arrays
	VariantName string   // set for AggregateEnumVariant
	FieldNames  []string // parallel to Fields, set for struct/variant aggregates
	Fields      []Operand
	ClosureFunc FuncID // set for AggregateClosure: the lifted closure body's FuncID
	Count       int    // set for AggregateEvidenceVector: the slot count to allocate
	Type        *Type
}

func (AggregateRvalue) rvalueNode() {}

// CallPureRvalue is a call to a function known not to suspend the current
// task (no effect row, no await/recv inside it transitively). Pure calls
// stay within a single basic block; effectful calls are lowered to the
// Call terminator instead so the CFG can model the suspension point.
type CallPureRvalue struct {
	Func FuncRef
	Args []Operand
	Type *Type
}

func (CallPureRvalue) rvalueNode() {}

// FuncRef names a callee: either a direct function reference or an
// indirect call through a closure value held in a Place.
type FuncRef struct {
	Direct FuncID
	// TypeArgs holds the lowering-inferred concrete type for each of the
	// callee's TypeParams, in order, when Direct names a generic
	// template; internal/mono consumes this to select (or create) the
	// specialization and rewrites Direct to point at it. Empty for calls
	// to non-generic functions and for already-monomorphized call sites.
	TypeArgs []*Type
	Indirect *Place
}
