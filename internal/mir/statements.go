package mir

// Statement is a non-control-flow instruction inside a basic block.
type Statement interface{ statementNode() }

// AssignStatement stores the result of an Rvalue into a Place.
type AssignStatement struct {
	Target Place
	Value  Rvalue
	Line   int // source line the statement lowers from, for diagnostics
}

func (AssignStatement) statementNode() {}

// StorageLiveStatement marks the point from which Local's storage is valid.
// Lowering emits one at the top of the block that declares a `let`, mirroring
// aria-mir's own storage-liveness bookkeeping. The native and WASM backends
// ignore it: every local gets a slot for the whole function.
type StorageLiveStatement struct {
	Local LocalID
}

func (StorageLiveStatement) statementNode() {}

// StorageDeadStatement marks the point after which Local's storage may be
// reused. Lowering does not emit it, and the backends ignore it.
type StorageDeadStatement struct {
	Local LocalID
}

func (StorageDeadStatement) statementNode() {}

// DropStatement runs a value's destructor (channel Sender/Receiver refcount
// decrement, task-handle release) before its storage goes dead.
type DropStatement struct {
	Place Place
}

func (DropStatement) statementNode() {}

// InstallHandlerStatement writes a handler record (a vtable built from
// Operations/Handlers) into Evidence's EvidenceSlot, binding each of
// Effect's operations to the FuncID that implements the corresponding
// handle clause. Lowering emits this at the start of a handle expression's
// body and the matching UninstallHandlerStatement on every exit edge
// (normal return, break/continue out of the handled region, and propagated
// panics). PrevLocal is a fresh local the backend uses to stash whatever
// handler pointer previously occupied the slot, so a nested handler for the
// same effect restores correctly on exit.
type InstallHandlerStatement struct {
	Effect       string
	Operations   []string // parallel to Handlers
	Handlers     []FuncID
	Evidence     Operand
	EvidenceSlot int
	PrevLocal    LocalID
}

func (InstallHandlerStatement) statementNode() {}

// UninstallHandlerStatement restores Evidence's EvidenceSlot to the handler
// pointer PrevLocal saved, undoing the matching InstallHandlerStatement.
type UninstallHandlerStatement struct {
	Effect       string
	Evidence     Operand
	EvidenceSlot int
	PrevLocal    LocalID
}

func (UninstallHandlerStatement) statementNode() {}

// CaptureContinuationStatement captures the current handled region's
// continuation into Dest as a first-class, resumable-later value. Reserved
// for full (non-tail-resumptive) effect handling; not yet wired to any
// AST/lowering path (see DESIGN.md) — the backends trap if one is reached.
type CaptureContinuationStatement struct {
	Dest Place
}

func (CaptureContinuationStatement) statementNode() {}

// CloneContinuationStatement duplicates a previously captured continuation
// at Source into Dest, supporting multi-shot resumption. Reserved
// alongside CaptureContinuationStatement; not yet wired to any
// AST/lowering path (see DESIGN.md) — the backends trap if one is reached.
type CloneContinuationStatement struct {
	Source Place
	Dest   Place
}

func (CloneContinuationStatement) statementNode() {}

// FfiBarrierStatement marks a boundary across which BlockedEffects may not
// propagate uncaught (an FFI call frame, under Strategy's unwind/abort
// policy). Reserved for the OpFfiBoundary operation classification; not yet
// wired to any AST/lowering path (see DESIGN.md) — the backends trap if one
// is reached.
type FfiBarrierStatement struct {
	Strategy       string
	BlockedEffects []string
}

func (FfiBarrierStatement) statementNode() {}
