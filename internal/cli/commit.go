package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/engine"
	"github.com/lherron/sv/internal/render"
)

var commitCmd = &cobra.Command{
	Use:   "commit [paths...]",
	Short: "Commit staged changes through the policy checks",
	Long: `Commits the index on the current branch after the protect and lease
checks pass. Paths given as arguments are staged first. A policy block
leaves the repository untouched and journals a failed record.

Examples:
  sv commit -m "fix parser"
  sv commit -m "update docs" docs/intro.md
  sv commit -m "merge shared" --allow-overlap`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runCommit),
}

var (
	commitMessage      string
	commitAllowOverlap bool
)

func init() {
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message")
	commitCmd.Flags().BoolVar(&commitAllowOverlap, "allow-overlap", false, "Permit overlap with compatible leases")
}

func runCommit(app *appctx.App, cmd *cobra.Command, args []string) error {
	result, err := app.Engine.Commit(cmd.Context(), engine.CommitOptions{
		Message:      commitMessage,
		Paths:        args,
		AllowOverlap: commitAllowOverlap,
	})
	if err != nil {
		return err
	}
	return output(app, cmd, result, func(r *render.Renderer) error {
		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %d file(s)\n", result.Branch, shortOID(result.OID), len(result.Staged))
		return err
	})
}

func shortOID(oid string) string {
	if len(oid) > 8 {
		return oid[:8]
	}
	return oid
}
