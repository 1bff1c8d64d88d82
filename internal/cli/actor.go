package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var actorCmd = &cobra.Command{
	Use:   "actor",
	Short: "Show or set the acting principal",
}

var actorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved actor",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runActorShow),
}

var actorSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Persist the repository-local actor",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runActorSet),
}

func init() {
	rootCmd.AddCommand(actorCmd)
	actorCmd.AddCommand(actorShowCmd)
	actorCmd.AddCommand(actorSetCmd)
}

func runActorShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	actor := app.Engine.Actor()
	return output(app, cmd, map[string]string{"actor": actor}, func(r *render.Renderer) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), actor)
		return err
	})
}

func runActorSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.SetActor(args[0]); err != nil {
		return err
	}
	return output(app, cmd, map[string]string{"actor": args[0]}, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "actor set to %s\n", args[0])
		return err
	})
}
