package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo a journaled operation",
	Long: `Applies the inverse plan of the latest journaled operation, or of the
operation named by --op. The undo fails without touching state when the
repository has moved past the operation's recorded preconditions.

Examples:
  sv undo
  sv undo --op 0001755948000000000000-a1b2c3d4`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runUndo),
}

var undoOp string

func init() {
	rootCmd.AddCommand(undoCmd)
	undoCmd.Flags().StringVar(&undoOp, "op", "", "Op id to undo (default: the latest)")
}

func runUndo(app *appctx.App, cmd *cobra.Command, args []string) error {
	result, err := app.Engine.Undo(cmd.Context(), undoOp)
	if err != nil {
		return err
	}
	return output(app, cmd, result, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "undid %s (%s)\n", result.Command, result.UndoneOp)
		return err
	})
}
