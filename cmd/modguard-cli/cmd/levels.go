package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nholloway/modguard/internal/permission"
)

// levelsCmd represents the levels command
var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Show the permission level envelopes",
	Long: `List every permission level with its default API categories, execution
timeout and memory cap. These are the envelopes scripts run under before any
per-script narrowing.`,
	Run: levelsHandler,
}

func levelsHandler(cmd *cobra.Command, args []string) {
	levels := []permission.Level{
		permission.LevelNone,
		permission.LevelRestricted,
		permission.LevelReadOnly,
		permission.LevelStandard,
		permission.LevelElevated,
		permission.LevelUnrestricted,
	}

	for _, level := range levels {
		set := permission.NewBuilder(level).Build()

		timeout := "unlimited"
		if set.Timeout() > 0 {
			timeout = set.Timeout().String()
		}
		memory := "unlimited"
		if set.MaxMemoryBytes() > 0 {
			memory = fmt.Sprintf("%d MiB", set.MaxMemoryBytes()/(1024*1024))
		}
		categories := "(none)"
		if cats := set.Categories(); len(cats) > 0 {
			names := make([]string, len(cats))
			for i, cat := range cats {
				names[i] = string(cat)
			}
			categories = strings.Join(names, ", ")
		}

		fmt.Printf("%-13s timeout=%-10s memory=%-10s %s\n", level, timeout, memory, categories)
	}
}

func init() {
	rootCmd.AddCommand(levelsCmd)
}
