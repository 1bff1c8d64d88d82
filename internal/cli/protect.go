package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Toggle protected-path patterns for this workspace",
}

var protectOnCmd = &cobra.Command{
	Use:   "on <pattern>",
	Short: "Re-enable a disabled protect pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProtectOn),
}

var protectOffCmd = &cobra.Command{
	Use:   "off <pattern>",
	Short: "Disable a configured protect pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProtectOff),
}

func init() {
	rootCmd.AddCommand(protectCmd)
	protectCmd.AddCommand(protectOnCmd)
	protectCmd.AddCommand(protectOffCmd)
}

func runProtectOn(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.ProtectOn(cmd.Context(), args[0]); err != nil {
		return err
	}
	data := map[string]string{"pattern": args[0], "state": "enabled"}
	return output(app, cmd, data, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "protection enabled for %s\n", args[0])
		return err
	})
}

func runProtectOff(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.ProtectOff(cmd.Context(), args[0]); err != nil {
		return err
	}
	data := map[string]string{"pattern": args[0], "state": "disabled"}
	return output(app, cmd, data, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "protection disabled for %s\n", args[0])
		return err
	})
}
