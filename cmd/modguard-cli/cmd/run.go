package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nholloway/modguard/internal/hostapi"
	"github.com/nholloway/modguard/internal/permission"
	"github.com/nholloway/modguard/internal/sandbox"
)

var (
	entryFlag string
	argFlags  []string
	traceFlag bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <script-file>",
	Short: "Execute a script in the sandbox",
	Long: `Execute a script under the envelope of the given permission level, against
an empty in-memory game state. Validation failures, timeouts and runtime
errors are reported; they never crash the CLI.

Examples:
  modguard-cli run mods/combat/strike.tengo
  modguard-cli run --level standard --entry calc --arg 21 mods/combat/strike.tengo
  modguard-cli run --trace mods/economy/trade.tengo`,
	Args: cobra.ExactArgs(1),
	Run:  runHandler,
}

func runHandler(cmd *cobra.Command, args []string) {
	path := args[0]
	level := parseLevel()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read script: %v\n", err)
		os.Exit(1)
	}

	scriptArgs := make([]interface{}, 0, len(argFlags))
	for _, a := range argFlags {
		scriptArgs = append(scriptArgs, a)
	}

	executor := sandbox.New()
	result := executor.Execute(context.Background(), sandbox.Request{
		Source:      string(source),
		Permissions: permission.NewBuilder(level).WithScriptID(path).Build(),
		EntryPoint:  entryFlag,
		Args:        scriptArgs,
		Host:        hostapi.NewMemoryHost(nil),
	})

	if traceFlag {
		fmt.Println("Audit trail:")
		for _, event := range result.SecurityEvents {
			fmt.Printf("  %-10s %s\n", event.Phase, event.Detail)
			for _, violation := range event.Violations {
				fmt.Printf("             %s\n", violation)
			}
		}
		fmt.Println()
	}

	if !result.Success {
		switch {
		case result.TimedOut:
			fmt.Printf("❌ timed out after %s\n", result.ExecutionTime.Round(time.Millisecond))
		case result.Exception != nil:
			fmt.Printf("❌ %s failure: %s\n", result.Exception.Type, result.Exception.Error())
		default:
			fmt.Println("❌ execution failed")
		}
		os.Exit(1)
	}

	fmt.Printf("✅ completed in %s (≈%d bytes)\n",
		result.ExecutionTime.Round(time.Millisecond), result.MemoryUsedApprox)
	if result.ReturnValue != nil {
		fmt.Printf("→ %v\n", result.ReturnValue)
	}
}

func init() {
	runCmd.Flags().StringVar(&entryFlag, "entry", "", "entry point function to invoke")
	runCmd.Flags().StringArrayVar(&argFlags, "arg", nil, "argument passed to the entry point (repeatable)")
	runCmd.Flags().BoolVar(&traceFlag, "trace", false, "print the full audit trail")
	rootCmd.AddCommand(runCmd)
}
