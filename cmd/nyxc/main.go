// Command nyxc is the compiler driver: parse -> check -> lower -> codegen,
// plus the contract-verification, test-generation, format, and lint
// utilities that sit alongside the compiler proper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version    = "dev"
	configPath string
	verboseLog bool
	cfg        Config
	logger     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:     "nyxc",
		Short:   "Compiler and tooling for the nyx language",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", configPath, err)
			}
			cfg = loaded
			if verboseLog {
				cfg.Verbose = true
			}

			var zcfg zap.Config
			if cfg.Verbose {
				zcfg = zap.NewDevelopmentConfig()
			} else {
				zcfg = zap.NewProductionConfig()
				zcfg.OutputPaths = []string{"stderr"}
			}
			l, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			logger = l
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "nyx.toml", "project config file")
	root.PersistentFlags().BoolVarP(&verboseLog, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLexCmd(),
		newParseCmd(),
		newBuildCmd(),
		newCheckCmd(),
		newRunCmd(),
		newVerifyCmd(),
		newTestGenCmd(),
		newFmtCmd(),
		newLintCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
