package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nholloway/modguard/internal/permission"
	"github.com/nholloway/modguard/internal/validator"
)

var complexityFlag int

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <script-file>",
	Short: "Statically validate a script against a permission level",
	Long: `Validate a script without executing it. The script is checked against the
envelope of the given permission level: module allow/deny lists, API category
grants, dangerous patterns and cyclomatic complexity.

Examples:
  modguard-cli validate mods/combat/strike.tengo
  modguard-cli validate --level standard mods/combat/strike.tengo
  modguard-cli validate --level elevated --complexity 20 mods/economy/trade.tengo

Output:
  ✅ Success - the script may run at the given level
  ❌ Error   - blocking violations, one per line with severity and source line`,
	Args: cobra.ExactArgs(1),
	Run:  validateHandler,
}

func validateHandler(cmd *cobra.Command, args []string) {
	path := args[0]
	level := parseLevel()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read script: %v\n", err)
		os.Exit(1)
	}

	perms := permission.NewBuilder(level).WithScriptID(path).Build()
	v := validator.New(validator.WithComplexityThreshold(complexityFlag))
	res := v.Validate(string(source), perms)

	for _, violation := range res.Violations {
		marker := "⚠️ "
		if violation.Severity >= validator.SeverityError {
			marker = "❌"
		}
		fmt.Printf("%s [%s/%s] line %d: %s\n",
			marker, violation.Severity, violation.Category, violation.SourceLine, violation.Message)
	}

	if !res.IsValid {
		fmt.Printf("\n❌ %s\n", res.Summary)
		os.Exit(1)
	}
	fmt.Printf("✅ %s\n", res.Summary)
}

func init() {
	validateCmd.Flags().IntVar(&complexityFlag, "complexity", validator.DefaultComplexityThreshold,
		"cyclomatic complexity warning threshold")
	rootCmd.AddCommand(validateCmd)
}
