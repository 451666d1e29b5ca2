package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nyxlang/nyx/internal/ast"
	"github.com/nyxlang/nyx/internal/diagnostic"
	"github.com/nyxlang/nyx/internal/parser"
)

// ModuleRegistry discovers a project's transitive imports from an entry
// file by BFS, then orders them dependencies-first for checking and
// lowering. One registry is built per build/check/verify invocation.
type ModuleRegistry struct {
	modules      map[string]*ast.Program
	sources      map[string]string
	dependencies map[string][]string
	entryPath    string
	projectRoot  string
}

// NewModuleRegistry creates a registry rooted at the given entry file.
func NewModuleRegistry(entryPath string) (*ModuleRegistry, error) {
	absPath, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, fmt.Errorf("resolving entry path: %w", err)
	}

	return &ModuleRegistry{
		modules:      make(map[string]*ast.Program),
		sources:      make(map[string]string),
		dependencies: make(map[string][]string),
		entryPath:    absPath,
		projectRoot:  filepath.Dir(absPath),
	}, nil
}

// DiscoverDependencies performs BFS from the entry file, parsing every
// discovered source file and collecting its imports.
func (r *ModuleRegistry) DiscoverDependencies() (*diagnostic.Diagnostics, error) {
	diag := diagnostic.New()
	queue := []string{r.entryPath}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		filePath := queue[0]
		queue = queue[1:]

		if visited[filePath] {
			continue
		}
		visited[filePath] = true

		source, err := os.ReadFile(filePath)
		if err != nil {
			return diag, fmt.Errorf("imported file not found: %s", filePath)
		}

		p := parser.New(string(source))
		prog := p.Parse()
		if p.Diagnostics().HasErrors() {
			for _, d := range p.Diagnostics().Errors() {
				diag.ErrorfInFile(filePath, d.Line, d.Column, "%s", d.Message)
			}
		}

		r.modules[filePath] = prog
		r.sources[filePath] = string(source)

		var deps []string
		for _, imp := range prog.Imports {
			resolved := resolveImportPath(imp.Path, r.projectRoot)

			if !strings.HasSuffix(resolved, ".intent") {
				diag.ErrorfInFile(filePath, imp.Line, imp.Column,
					"import path must have .intent extension: %s", imp.Path)
				continue
			}
			if _, err := os.Stat(resolved); os.IsNotExist(err) {
				return diag, fmt.Errorf("imported file not found: %s (resolved from %q in %s)",
					resolved, imp.Path, filePath)
			}

			deps = append(deps, resolved)
			if !visited[resolved] {
				queue = append(queue, resolved)
			}
		}
		r.dependencies[filePath] = deps
	}

	return diag, nil
}

// TopologicalSort returns files in dependency order, entry file last.
func (r *ModuleRegistry) TopologicalSort() ([]string, error) {
	var sorted []string
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(path string, stack []string) error
	visit = func(path string, stack []string) error {
		if visiting[path] {
			cycleStart := -1
			for i, p := range stack {
				if p == path {
					cycleStart = i
					break
				}
			}
			cyclePath := append(stack[cycleStart:], path)
			var names []string
			for _, p := range cyclePath {
				names = append(names, filepath.Base(p))
			}
			return fmt.Errorf("import cycle detected: %s", strings.Join(names, " -> "))
		}
		if visited[path] {
			return nil
		}

		visiting[path] = true
		stack = append(stack, path)

		for _, dep := range r.dependencies[path] {
			if err := visit(dep, stack); err != nil {
				return err
			}
		}

		visiting[path] = false
		visited[path] = true
		sorted = append(sorted, path)
		return nil
	}

	if err := visit(r.entryPath, nil); err != nil {
		return nil, err
	}
	for path := range r.modules {
		if !visited[path] {
			if err := visit(path, nil); err != nil {
				return nil, err
			}
		}
	}

	return sorted, nil
}

// AllModules returns every parsed module keyed by absolute file path.
func (r *ModuleRegistry) AllModules() map[string]*ast.Program {
	return r.modules
}

// Source returns the raw text a module was parsed from.
func (r *ModuleRegistry) Source(path string) string {
	return r.sources[path]
}

// EntryPath returns the registry's resolved entry file path.
func (r *ModuleRegistry) EntryPath() string {
	return r.entryPath
}

func resolveImportPath(importPath, projectRoot string) string {
	return filepath.Clean(filepath.Join(projectRoot, importPath))
}
