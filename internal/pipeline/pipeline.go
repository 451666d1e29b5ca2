// Package pipeline orchestrates the stages that turn parsed source into
// a runnable artifact: parse -> check -> lower -> monomorphize -> validate
// -> (native object code via LLVM | self-emitted WASM) -> link. It is the
// single place that wires internal/mir, internal/lower, internal/mono,
// internal/nativegen, and internal/wasmgen together; none of those
// packages call each other directly.
package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nyxlang/nyx/internal/checker"
	"github.com/nyxlang/nyx/internal/diagnostic"
	"github.com/nyxlang/nyx/internal/lower"
	"github.com/nyxlang/nyx/internal/mir"
	"github.com/nyxlang/nyx/internal/mono"
	"github.com/nyxlang/nyx/internal/nativegen"
	"github.com/nyxlang/nyx/internal/parser"
	"github.com/nyxlang/nyx/internal/testgen"
	"github.com/nyxlang/nyx/internal/verify"
	"github.com/nyxlang/nyx/internal/wasmgen"
)

// Target selects the codegen backend a Build produces.
type Target string

const (
	TargetNative Target = "native"
	TargetWasm   Target = "wasm"
)

// Result carries every artifact a pipeline stage produced, so callers can
// inspect diagnostics without re-running earlier stages.
type Result struct {
	Diagnostics  *diagnostic.Diagnostics
	MIR          *mir.Program
	Object       []byte // native object file bytes (TargetNative)
	Wasm         []byte // WASM module bytes (TargetWasm)
	BinaryPath   string
	GoTestSource string
}

// Pipeline holds the shared logger every stage logs through. A nil
// logger is replaced with zap's no-op logger so callers that don't care
// about structured logs don't need to thread one through.
type Pipeline struct {
	log *zap.Logger
}

// New returns a Pipeline that logs through l, or discards logs if l is nil.
func New(l *zap.Logger) *Pipeline {
	if l == nil {
		l = zap.NewNop()
	}
	return &Pipeline{log: l}
}

// CheckSource parses and type-checks a single in-memory source string.
func (p *Pipeline) CheckSource(source string) *diagnostic.Diagnostics {
	ps := parser.New(source)
	prog := ps.Parse()
	if ps.Diagnostics().HasErrors() {
		return ps.Diagnostics()
	}
	return checker.CheckWithResult(prog).Diagnostics
}

// Build runs the full single-file pipeline for the requested target and
// returns a Result with either Object or Wasm populated.
func (p *Pipeline) Build(source string, target Target) *Result {
	res := &Result{}
	p.log.Info("build starting", zap.String("target", string(target)))

	ps := parser.New(source)
	prog := ps.Parse()
	if ps.Diagnostics().HasErrors() {
		p.log.Warn("parse failed", zap.Int("errors", ps.Diagnostics().ErrorCount()))
		res.Diagnostics = ps.Diagnostics()
		return res
	}

	cr := checker.CheckWithResult(prog)
	if cr.Diagnostics.HasErrors() {
		p.log.Warn("check failed", zap.Int("errors", cr.Diagnostics.ErrorCount()))
		res.Diagnostics = cr.Diagnostics
		return res
	}
	res.Diagnostics = cr.Diagnostics

	modProg := lower.Lower(prog, cr)
	mono.Monomorphize(modProg)
	if errs := mir.Validate(modProg); len(errs) > 0 {
		p.log.Error("mir validation failed", zap.Strings("errors", errs))
		res.Diagnostics.Errorf(0, 0, "internal error: invalid lowered program: %v", errs)
		return res
	}
	res.MIR = modProg

	switch target {
	case TargetWasm:
		b := wasmgen.NewBackend(modProg)
		out, err := b.Emit()
		if err != nil {
			res.Diagnostics.Errorf(0, 0, "wasm codegen failed: %s", err)
			return res
		}
		res.Wasm = out
	default:
		b := nativegen.NewBackend(modProg)
		defer b.Dispose()
		out, err := b.Emit()
		if err != nil {
			res.Diagnostics.Errorf(0, 0, "native codegen failed: %s", err)
			return res
		}
		res.Object = out
	}

	p.log.Info("build finished", zap.String("target", string(target)))
	return res
}

// Link invokes the system linker to turn a native object file into an
// executable. The runtime support library nativegen's externs assume
// (rt_array_new, rt_field_get, the Async FFI trio, ...) is expected at
// runtimeArchive; producing it is outside this package's scope (see
// DESIGN.md) the same way a Go program's linker step doesn't reimplement
// libc.
func (p *Pipeline) Link(objectPath, runtimeArchive, outPath string) error {
	args := []string{objectPath, "-o", outPath}
	if runtimeArchive != "" {
		args = append(args, runtimeArchive)
	}
	cmd := exec.Command("cc", args...)
	cmd.Stderr = os.Stderr
	p.log.Info("linking", zap.String("object", objectPath), zap.String("out", outPath))
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "linking %s", objectPath)
	}
	return nil
}

// BuildAndLink runs Build for TargetNative, writes the object file to a
// temp directory, links it, and copies the resulting binary to outPath.
func (p *Pipeline) BuildAndLink(source, runtimeArchive, outPath string) error {
	res := p.Build(source, TargetNative)
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		return errors.Errorf("compilation errors:\n%s", res.Diagnostics.Format("input"))
	}

	tmpDir, err := os.MkdirTemp("", "nyx-build-*")
	if err != nil {
		return errors.Wrap(err, "creating temp build dir")
	}
	defer os.RemoveAll(tmpDir)

	objPath := filepath.Join(tmpDir, "out.o")
	if err := os.WriteFile(objPath, res.Object, 0644); err != nil {
		return errors.Wrap(err, "writing object file")
	}

	if err := p.Link(objPath, runtimeArchive, outPath); err != nil {
		return err
	}
	if err := os.Chmod(outPath, 0755); err != nil {
		return errors.Wrap(err, "marking binary executable")
	}
	return nil
}

// CheckProject runs cross-file type checking for a multi-file project.
// DiscoverDependencies parses every module once, sequentially; an
// errgroup then confirms concurrently that each module in dependency
// order has a parsed program, before the (inherently sequential,
// two-pass) cross-file check itself runs.
func (p *Pipeline) CheckProject(entryPath string) (*ModuleRegistry, *diagnostic.Diagnostics) {
	registry, err := NewModuleRegistry(entryPath)
	if err != nil {
		diag := diagnostic.New()
		diag.Errorf(0, 0, "failed to initialize module registry: %s", err)
		return nil, diag
	}

	diag, err := registry.DiscoverDependencies()
	if err != nil {
		if diag == nil {
			diag = diagnostic.New()
		}
		diag.Errorf(0, 0, "%s", err)
		return registry, diag
	}
	if diag.HasErrors() {
		return registry, diag
	}

	sortedPaths, err := registry.TopologicalSort()
	if err != nil {
		diag.Errorf(0, 0, "%s", err)
		return registry, diag
	}

	// Confirm concurrently that every sorted module has a parsed program.
	// No parsing happens here: DiscoverDependencies already parsed each
	// module once.
	var g errgroup.Group
	for _, path := range sortedPaths {
		path := path
		g.Go(func() error {
			if registry.AllModules()[path] == nil {
				return fmt.Errorf("module %s failed to parse", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		diag.Errorf(0, 0, "%s", err)
		return registry, diag
	}

	checkResult := checker.CheckAll(registry.AllModules(), sortedPaths)
	p.log.Info("project checked", zap.Int("modules", len(sortedPaths)), zap.Int("errors", checkResult.Diagnostics.ErrorCount()))
	return registry, checkResult.Diagnostics
}

// GenerateTests runs check + lower on source and emits a Go contract-test
// source driven by internal/interp against the same parsed program.
func (p *Pipeline) GenerateTests(source string) (*diagnostic.Diagnostics, string) {
	ps := parser.New(source)
	prog := ps.Parse()
	if ps.Diagnostics().HasErrors() {
		return ps.Diagnostics(), ""
	}
	cr := checker.CheckWithResult(prog)
	if cr.Diagnostics.HasErrors() {
		return cr.Diagnostics, ""
	}
	return cr.Diagnostics, testgen.Generate(prog, source)
}

// Verify runs the contract verifier over a single parsed module.
func (p *Pipeline) Verify(source string) ([]*verify.VerifyResult, error) {
	ps := parser.New(source)
	prog := ps.Parse()
	if ps.Diagnostics().HasErrors() {
		return nil, errors.Errorf("parse errors:\n%s", ps.Diagnostics().Format("input"))
	}
	cr := checker.CheckWithResult(prog)
	if cr.Diagnostics.HasErrors() {
		return nil, errors.Errorf("type check errors:\n%s", cr.Diagnostics.Format("input"))
	}
	return verify.Verify(prog), nil
}
