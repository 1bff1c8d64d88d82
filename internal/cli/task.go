package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/render"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks in the shared event log",
}

var taskNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskNew),
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `Lists tasks folded from the tracked event log, optionally filtered by
project.

With --events -, streams the raw task events to stdout as NDJSON
instead of the folded task view.

Examples:
  sv task list
  sv task list --project P-1
  sv task list --events -`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runTaskList),
}

var taskCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count tasks, optionally per project",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskCount),
}

var taskCloseCmd = &cobra.Command{
	Use:   "close <task-id>",
	Short: "Close a task",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskClose),
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen <task-id>",
	Short: "Reopen a closed task",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskReopen),
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <actor>",
	Short: "Assign a task to an actor",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskAssign),
}

var taskRelateCmd = &cobra.Command{
	Use:   "relate <task-id> <related-id>",
	Short: "Record a relation between two tasks",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskRelate),
}

var taskProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage a task's project assignment",
}

var taskProjectSetCmd = &cobra.Command{
	Use:   "set <task-id> <project-id>",
	Short: "Assign a task to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskProjectSet),
}

var taskProjectClearCmd = &cobra.Command{
	Use:   "clear <task-id>",
	Short: "Remove a task from its project",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskProjectClear),
}

var taskSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge the tracked, shared, and external task logs",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runTaskSync),
}

var (
	taskNewProject  string
	taskListProject string
	taskListEvents  string
	taskCntProject  string
	taskRelateDesc  string
	taskSyncExtern  string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskNewCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCountCmd)
	taskCmd.AddCommand(taskCloseCmd)
	taskCmd.AddCommand(taskReopenCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskRelateCmd)
	taskCmd.AddCommand(taskProjectCmd)
	taskProjectCmd.AddCommand(taskProjectSetCmd)
	taskProjectCmd.AddCommand(taskProjectClearCmd)
	taskCmd.AddCommand(taskSyncCmd)

	taskNewCmd.Flags().StringVar(&taskNewProject, "project", "", "Assign the new task to a project")
	taskListCmd.Flags().StringVar(&taskListProject, "project", "", `Filter by project ("-" disables the SV_PROJECT default)`)
	taskListCmd.Flags().StringVar(&taskListEvents, "events", "", `Stream raw task events as NDJSON ("-" for stdout)`)
	taskCountCmd.Flags().StringVar(&taskCntProject, "project", "", "Count only tasks in this project")
	taskRelateCmd.Flags().StringVar(&taskRelateDesc, "desc", "", "Relation description")
	taskSyncCmd.Flags().StringVar(&taskSyncExtern, "external", "", "Path to an external task log to merge")
}

func runTaskNew(app *appctx.App, cmd *cobra.Command, args []string) error {
	task, err := app.Engine.TaskNew(args[0], taskNewProject)
	if err != nil {
		return err
	}
	return output(app, cmd, task, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", task.ID, task.Title)
		return err
	})
}

func runTaskList(app *appctx.App, cmd *cobra.Command, args []string) error {
	if taskListEvents != "" {
		if taskListEvents != "-" {
			return domain.Invalidf("--events only supports \"-\" (stdout)")
		}
		events, err := app.Engine.Tasks.ReadTracked()
		if err != nil {
			return err
		}
		items := make([]interface{}, len(events))
		for i := range events {
			items[i] = events[i]
		}
		r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatNDJSON})
		return r.RenderNDJSON(items)
	}

	list, err := app.Engine.TaskList(taskListProject)
	if err != nil {
		return err
	}
	return output(app, cmd, list, func(r *render.Renderer) error {
		headers := []string{"ID", "Title", "Project", "Assignee", "State"}
		var rows [][]string
		for _, t := range list {
			state := "open"
			if t.Closed {
				state = "closed"
			}
			rows = append(rows, []string{t.ID, t.Title, t.ProjectID, t.Assignee, state})
		}
		return r.RenderTable(headers, rows)
	})
}

func runTaskCount(app *appctx.App, cmd *cobra.Command, args []string) error {
	count, err := app.Engine.TaskCount(taskCntProject)
	if err != nil {
		return err
	}
	return output(app, cmd, map[string]int{"count": count}, func(r *render.Renderer) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), count)
		return err
	})
}

func runTaskClose(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.TaskClose(args[0]); err != nil {
		return err
	}
	return taskAck(app, cmd, args[0], "closed")
}

func runTaskReopen(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.TaskReopen(args[0]); err != nil {
		return err
	}
	return taskAck(app, cmd, args[0], "reopened")
}

func runTaskAssign(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.TaskAssign(args[0], args[1]); err != nil {
		return err
	}
	return taskAck(app, cmd, args[0], "assigned to "+args[1])
}

func runTaskRelate(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.TaskRelate(args[0], args[1], taskRelateDesc); err != nil {
		return err
	}
	return taskAck(app, cmd, args[0], "related to "+args[1])
}

func runTaskProjectSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	task, err := app.Engine.TaskProjectSet(args[0], args[1])
	if err != nil {
		return err
	}
	return output(app, cmd, task, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", task.ID, task.ProjectID)
		return err
	})
}

func runTaskProjectClear(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Engine.TaskProjectClear(args[0]); err != nil {
		return err
	}
	return taskAck(app, cmd, args[0], "project cleared")
}

func runTaskSync(app *appctx.App, cmd *cobra.Command, args []string) error {
	report, err := app.Engine.TaskSync(cmd.Context(), taskSyncExtern)
	if err != nil {
		return err
	}
	return output(app, cmd, report, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "synced %d events (%d new)\n", report.TotalEvents, report.AddedEvents)
		return err
	})
}

func taskAck(app *appctx.App, cmd *cobra.Command, taskID, verb string) error {
	data := map[string]string{"task": taskID, "result": verb}
	return output(app, cmd, data, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", taskID, verb)
		return err
	})
}
