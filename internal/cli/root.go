package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sv",
	Short: "Coordination layer for simultaneous work on one git repository",
	Long: `sv coordinates multiple actors working concurrently on the same git
repository. It layers advisory path leases, protected-path policy, an
undoable operation journal, and a shared task log on top of git without
changing how git itself behaves.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// JSONRequested reports whether the invocation asked for --json output
func JSONRequested() bool {
	v, _ := rootCmd.PersistentFlags().GetBool("json")
	return v
}

func init() {
	rootCmd.PersistentFlags().String("repo", "", "Path inside the repository to operate on (defaults to cwd)")
	rootCmd.PersistentFlags().String("as", "", "Actor to perform the action as (overrides SV_ACTOR)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as a JSON envelope")
}
