package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nholloway/modguard/internal/permission"
)

var levelFlag string

var rootCmd = &cobra.Command{
	Use:   "modguard-cli",
	Short: "ModGuard CLI tool",
	Long: `ModGuard CLI is a command-line interface for mod script authors.

Available commands:
  validate    Statically validate a script against a permission level
  run         Execute a script in the sandbox
  levels      Show the permission level envelopes

Use "modguard-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&levelFlag, "level", "restricted",
		"permission level to check or run under (none, restricted, readonly, standard, elevated, unrestricted)")
}

// parseLevel resolves the --level flag or exits with a usage error.
func parseLevel() permission.Level {
	level, err := permission.ParseLevel(levelFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return level
}
