package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/render"
	"github.com/lherron/sv/internal/selectors"
)

var wsCmd = &cobra.Command{
	Use:   "ws",
	Short: "Manage workspaces (named branches off the base)",
}

var wsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a workspace branch off the configured base",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runWsNew),
}

var wsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workspaces",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runWsList),
}

var wsSwitchCmd = &cobra.Command{
	Use:   "switch <name|id>",
	Short: "Check out a workspace's branch",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runWsSwitch),
}

var wsRmCmd = &cobra.Command{
	Use:   "rm [name|id]",
	Short: "Remove a workspace and its branch",
	Long: `Removes a workspace and deletes its branch. The removal is journaled
with the branch's prior position, so it can be undone.

With --select, removes every workspace matched by a selector expression
instead of a single named one.

Examples:
  sv ws rm feature-x
  sv ws rm --select 'ws(stale)'`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runWsRm),
}

var wsRmSelect string

func init() {
	rootCmd.AddCommand(wsCmd)
	wsCmd.AddCommand(wsNewCmd)
	wsCmd.AddCommand(wsListCmd)
	wsCmd.AddCommand(wsSwitchCmd)
	wsCmd.AddCommand(wsRmCmd)

	wsRmCmd.Flags().StringVar(&wsRmSelect, "select", "", "Selector expression naming the workspaces to remove")
}

func runWsNew(app *appctx.App, cmd *cobra.Command, args []string) error {
	ws, err := app.Engine.WorkspaceNew(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return output(app, cmd, ws, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", ws.ID, ws.Name)
		return err
	})
}

func runWsList(app *appctx.App, cmd *cobra.Command, args []string) error {
	list, err := app.Engine.WorkspaceList()
	if err != nil {
		return err
	}
	return output(app, cmd, list, func(r *render.Renderer) error {
		headers := []string{"ID", "Name", "Branch", "Created"}
		var rows [][]string
		for _, ws := range list {
			rows = append(rows, []string{ws.ID, ws.Name, ws.Branch, ws.CreatedAt.Format("2006-01-02 15:04")})
		}
		return r.RenderTable(headers, rows)
	})
}

func runWsSwitch(app *appctx.App, cmd *cobra.Command, args []string) error {
	ws, err := app.Engine.WorkspaceSwitch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return output(app, cmd, ws, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", ws.Branch)
		return err
	})
}

func runWsRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	var targets []string
	switch {
	case wsRmSelect != "":
		matches, err := app.Engine.Select(wsRmSelect)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.Kind == selectors.KindWorkspace {
				targets = append(targets, m.Item.ID)
			}
		}
	case len(args) == 1:
		targets = args
	default:
		return domain.Invalidf("a workspace name or --select expression is required")
	}

	var removed []string
	for _, target := range targets {
		ws, err := app.Engine.WorkspaceRemove(cmd.Context(), target)
		if err != nil {
			return err
		}
		removed = append(removed, ws.Name)
	}
	return output(app, cmd, map[string][]string{"removed": removed}, func(r *render.Renderer) error {
		return r.RenderList(removed)
	})
}
