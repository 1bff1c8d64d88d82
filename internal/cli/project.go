package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProjectNew),
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProjectList),
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project-id> <name>",
	Short: "Rename a project",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProjectRename),
}

var projectMigrateCmd = &cobra.Command{
	Use:   "migrate-legacy",
	Short: "Synthesize project records for legacy task-as-project anchors",
	Long: `Scans the task log for project assignments whose target is itself a
task with no project record, and synthesizes the missing ProjectCreated
events so the legacy anchors become first-class projects.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runProjectMigrate),
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectMigrateCmd)
}

func runProjectNew(app *appctx.App, cmd *cobra.Command, args []string) error {
	project, err := app.Engine.ProjectNew(args[0])
	if err != nil {
		return err
	}
	return output(app, cmd, project, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", project.ID, project.Name)
		return err
	})
}

func runProjectList(app *appctx.App, cmd *cobra.Command, args []string) error {
	list, err := app.Engine.ProjectList()
	if err != nil {
		return err
	}
	return output(app, cmd, list, func(r *render.Renderer) error {
		headers := []string{"ID", "Name", "Legacy"}
		var rows [][]string
		for _, p := range list {
			legacy := ""
			if p.Legacy {
				legacy = "yes"
			}
			rows = append(rows, []string{p.ID, p.Name, legacy})
		}
		return r.RenderTable(headers, rows)
	})
}

func runProjectRename(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.ProjectRename(args[0], args[1]); err != nil {
		return err
	}
	data := map[string]string{"project": args[0], "name": args[1]}
	return output(app, cmd, data, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s renamed to %s\n", args[0], args[1])
		return err
	})
}

func runProjectMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	synthesized, err := app.Engine.ProjectMigrateLegacy()
	if err != nil {
		return err
	}
	return output(app, cmd, synthesized, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "synthesized %d project record(s)\n", len(synthesized))
		return err
	})
}
