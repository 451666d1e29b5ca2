// Package nativegen lowers a monomorphized mir.Program to a relocatable
// host object file via LLVM: one llvm.Module, one llvm.Function per
// mir.Function, one llvm.BasicBlock per mir.BasicBlock, built with a
// single shared llvm.Builder exactly the way the go-llvm-based reference
// backend in the retrieval pack builds its own syntax tree into LLVM IR.
//
// Every non-primitive MIR value (struct, enum, array, closure, Result,
// Option, channel) lowers to an opaque `i8*` handle managed by the
// runtime support library described in the object-output interface —
// field/index access, aggregate construction, and closure calls all
// route through named runtime calls rather than raw GEP instructions,
// since the MIR carries no concrete memory layout of its own (see
// DESIGN.md for the full reasoning).
package nativegen

import (
	"fmt"
	"os"

	"tinygo.org/x/go-llvm"

	"github.com/nyxlang/nyx/internal/mir"
)

// Backend holds the LLVM state for one lowering pass over a Program.
type Backend struct {
	prog *mir.Program

	ctx     llvm.Context
	module  llvm.Module
	builder llvm.Builder

	funcs   map[mir.FuncID]llvm.Value
	externs map[string]llvm.Value

	// blockMap/localMap are reset per-function by lowerFunction.
	blockMap map[mir.BlockID]llvm.BasicBlock
	localMap map[mir.LocalID]llvm.Value
	curFn    *mir.Function
	curLLFn  llvm.Value
}

// NewBackend creates an LLVM lowering context for prog.
func NewBackend(prog *mir.Program) *Backend {
	ctx := llvm.NewContext()
	b := &Backend{
		prog:    prog,
		ctx:     ctx,
		module:  ctx.NewModule(prog.ModuleName),
		builder: ctx.NewBuilder(),
		funcs:   make(map[mir.FuncID]llvm.Value),
		externs: make(map[string]llvm.Value),
	}
	return b
}

// Dispose releases the underlying LLVM context, module, and builder.
func (b *Backend) Dispose() {
	b.builder.Dispose()
	b.module.Dispose()
	b.ctx.Dispose()
}

// Emit lowers the whole program and returns a host-format relocatable
// object file's bytes, ready to be linked against the runtime support
// library and the async FFI trio.
func (b *Backend) Emit() ([]byte, error) {
	b.declareExterns()

	// Two passes, same reason internal/lower uses one: forward and
	// mutually-recursive calls need every function declared (a valid
	// llvm.Value to call) before any body is built.
	for _, fn := range b.prog.Functions {
		if len(fn.TypeParams) > 0 {
			continue // generic templates carry no concrete locals to emit code for
		}
		b.declareFunction(fn)
	}
	for _, fn := range b.prog.Functions {
		if len(fn.TypeParams) > 0 {
			continue
		}
		if err := b.lowerFunction(fn); err != nil {
			return nil, fmt.Errorf("nativegen: function %q: %w", fn.Name, err)
		}
	}

	if err := llvm.VerifyModule(b.module, llvm.ReturnStatusAction); err != nil {
		return nil, fmt.Errorf("nativegen: module verification failed: %w", err)
	}

	return b.emitObject()
}

// EmitToFile is a convenience wrapper writing Emit's bytes to path.
func (b *Backend) EmitToFile(path string) error {
	buf, err := b.Emit()
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (b *Backend) emitObject() ([]byte, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()
	llvm.InitializeAllTargets()

	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return nil, fmt.Errorf("resolving native target triple %q: %w", triple, err)
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	b.module.SetDataLayout(td.String())
	b.module.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(b.module, llvm.ObjectFile)
	if err != nil {
		return nil, fmt.Errorf("emitting object code: %w", err)
	}
	defer buf.Dispose()
	if buf.IsNil() {
		return nil, fmt.Errorf("emitting object code: LLVM produced no buffer")
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
