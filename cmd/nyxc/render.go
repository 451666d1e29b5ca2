package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nyxlang/nyx/internal/diagnostic"
)

// colorMode resolves the config's "auto"/"always"/"never" color setting
// against whether stdout is actually a terminal, the same three-state
// convention most CLIs (cargo, eslint) expose.
func colorMode(setting string) bool {
	switch setting {
	case "always":
		return true
	case "never":
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
}

// printDiagnostics renders a diagnostic set to stderr, colorizing errors
// red and warnings yellow when enabled.
func printDiagnostics(diag *diagnostic.Diagnostics, filePath string, useColor bool) {
	if !useColor {
		fmt.Fprint(os.Stderr, diag.Format(filePath))
		return
	}

	errColor := color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor := color.New(color.FgYellow, color.Bold).SprintFunc()

	for _, d := range diag.All() {
		label := errColor("error")
		if d.Severity != 0 {
			label = warnColor("warning")
		}
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s: %s\n", filePath, d.Line, d.Column, label, d.Message)
	}
}
