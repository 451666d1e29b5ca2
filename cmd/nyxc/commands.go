package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nyxlang/nyx/internal/formatter"
	"github.com/nyxlang/nyx/internal/interp"
	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/linter"
	"github.com/nyxlang/nyx/internal/parser"
	"github.com/nyxlang/nyx/internal/pipeline"
)

func newLexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lex <file.intent>",
		Short: "Print the token stream for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			l := lexer.New(string(source))
			for _, tok := range l.Tokenize() {
				fmt.Printf("%d:%d %s %q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
			}
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.intent>",
		Short: "Parse a module and report diagnostics (no type checking)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			p := parser.New(string(source))
			prog := p.Parse()
			if p.Diagnostics().HasErrors() {
				printDiagnostics(p.Diagnostics(), filePath, colorMode(cfg.Color))
				return fmt.Errorf("parse failed")
			}
			fmt.Printf("parsed ok: %d function(s), %d entity(ies), %d enum(s)\n",
				len(prog.Functions), len(prog.Entities), len(prog.Enums))
			return nil
		},
	}
}

func isMultiFile(path string) (bool, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	p := parser.New(string(source))
	prog := p.Parse()
	return len(prog.Imports) > 0, nil
}

func baseNameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func newBuildCmd() *cobra.Command {
	var target string
	var runtimeArchive string
	var watch bool

	cmd := &cobra.Command{
		Use:   "build <file.intent>",
		Short: "Compile a single module to a native binary or a WASM module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			if target == "" {
				target = cfg.Target
			}

			run := func() error {
				if multi, err := isMultiFile(filePath); err != nil {
					return err
				} else if multi {
					return fmt.Errorf("build: multi-file codegen is not yet supported; run %q through 'check' to validate it instead", filePath)
				}

				source, err := os.ReadFile(filePath)
				if err != nil {
					return err
				}

				pl := pipeline.New(logger)
				baseName := baseNameOf(filePath)
				useColor := colorMode(cfg.Color)

				if pipeline.Target(target) == pipeline.TargetWasm {
					res := pl.Build(string(source), pipeline.TargetWasm)
					if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
						printDiagnostics(res.Diagnostics, filePath, useColor)
						return fmt.Errorf("build failed")
					}
					outPath := baseName + ".wasm"
					if err := os.WriteFile(outPath, res.Wasm, 0644); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", outPath)
					return nil
				}

				outPath := baseName
				if runtimeArchive == "" {
					runtimeArchive = cfg.RuntimeArchive
				}
				if err := pl.BuildAndLink(string(source), runtimeArchive, outPath); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", outPath)
				return nil
			}

			if !watch {
				return run()
			}
			return watchFile(filePath, func() {
				if err := run(); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				}
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "native (default) or wasm")
	cmd.Flags().StringVar(&runtimeArchive, "runtime-archive", "", "path to the rt_* support library to link against")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild on file change")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "check <file.intent>",
		Short: "Parse and type-check without generating code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			run := func() error {
				pl := pipeline.New(logger)
				useColor := colorMode(cfg.Color)

				multi, err := isMultiFile(filePath)
				if err != nil {
					return err
				}

				if multi {
					_, diag := pl.CheckProject(filePath)
					if diag.HasErrors() {
						printDiagnostics(diag, filePath, useColor)
						return fmt.Errorf("check failed")
					}
					fmt.Println("No errors found.")
					return nil
				}

				source, err := os.ReadFile(filePath)
				if err != nil {
					return err
				}
				diag := pl.CheckSource(string(source))
				if diag.HasErrors() {
					printDiagnostics(diag, filePath, useColor)
					return fmt.Errorf("check failed")
				}
				fmt.Println("No errors found.")
				return nil
			}

			if !watch {
				return run()
			}
			return watchFile(filePath, func() {
				if err := run(); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-check on file change")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.intent>",
		Short: "Interpret a module directly, calling its entry function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			p := parser.New(string(source))
			prog := p.Parse()
			if p.Diagnostics().HasErrors() {
				printDiagnostics(p.Diagnostics(), filePath, colorMode(cfg.Color))
				return fmt.Errorf("parse failed")
			}

			var entryName string
			for _, fn := range prog.Functions {
				if fn.IsEntry {
					entryName = fn.Name
					break
				}
			}
			if entryName == "" {
				return fmt.Errorf("%s declares no entry function", filePath)
			}

			it := interp.New(prog)
			logger.Debug("running entry function", zap.String("function", entryName))
			result, err := it.CallFunction(entryName, nil)
			if err != nil {
				return fmt.Errorf("runtime error: %w", err)
			}
			fmt.Println(result)
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file.intent>",
		Short: "Verify contracts with the SMT-based verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			pl := pipeline.New(logger)
			results, err := pl.Verify(string(source))
			if err != nil {
				return err
			}

			verified, unverified, timeouts, errored := 0, 0, 0, 0
			for _, r := range results {
				contractType := "requires"
				if r.IsEnsures {
					contractType = "ensures"
				}
				switch r.Status {
				case "verified":
					fmt.Printf("VERIFIED: %s %s: %s\n", r.FunctionName, contractType, r.ContractText)
					verified++
				case "unverified":
					fmt.Printf("UNVERIFIED: %s %s: %s\n  %s\n", r.FunctionName, contractType, r.ContractText, r.Message)
					unverified++
				case "error":
					fmt.Printf("ERROR: %s\n", r.Message)
					errored++
				case "timeout":
					fmt.Printf("TIMEOUT: %s %s: %s\n  %s\n", r.FunctionName, contractType, r.ContractText, r.Message)
					timeouts++
				}
			}

			fmt.Printf("\nVerification summary: %d verified, %d unverified, %d timeouts, %d errors\n",
				verified, unverified, timeouts, errored)
			if errored > 0 || unverified > 0 || timeouts > 0 {
				return fmt.Errorf("verification found issues")
			}
			return nil
		},
	}
}

func newTestGenCmd() *cobra.Command {
	var emit bool
	cmd := &cobra.Command{
		Use:   "test-gen <file.intent>",
		Short: "Generate Go contract tests driven by the interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			pl := pipeline.New(logger)
			diag, testSrc := pl.GenerateTests(string(source))
			if diag != nil && diag.HasErrors() {
				printDiagnostics(diag, filePath, colorMode(cfg.Color))
				return fmt.Errorf("test generation failed")
			}
			if testSrc == "" {
				fmt.Println("No contract-bearing functions or entities found; nothing to generate.")
				return nil
			}

			if emit {
				outPath := baseNameOf(filePath) + "_contract_test.go"
				if err := os.WriteFile(outPath, []byte(testSrc), 0644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", outPath)
				return nil
			}
			fmt.Print(testSrc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&emit, "emit", false, "write to <file>_contract_test.go instead of stdout")
	return cmd
}

func newFmtCmd() *cobra.Command {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "fmt <file.intent>",
		Short: "Format source to canonical style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			p := parser.New(string(source))
			prog := p.Parse()
			if p.Diagnostics().HasErrors() {
				printDiagnostics(p.Diagnostics(), filePath, colorMode(cfg.Color))
				return fmt.Errorf("fmt failed")
			}

			formatted := formatter.Format(prog)
			if checkOnly {
				if formatted != string(source) {
					return fmt.Errorf("%s is not formatted", filePath)
				}
				return nil
			}
			return os.WriteFile(filePath, []byte(formatted), 0644)
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "exit nonzero if not already formatted")
	return cmd
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file.intent>",
		Short: "Run style and best-practice lint checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			source, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			p := parser.New(string(source))
			prog := p.Parse()
			if p.Diagnostics().HasErrors() {
				printDiagnostics(p.Diagnostics(), filePath, colorMode(cfg.Color))
				return fmt.Errorf("lint failed")
			}

			diag := linter.Lint(prog)
			if diag.Count() == 0 {
				fmt.Println("No lint warnings.")
				return nil
			}
			fmt.Print(diag.Format(filePath))
			fmt.Printf("\n%d warning(s) found.\n", diag.Count())
			return nil
		},
	}
}
