package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the aggregate repository view",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	st, err := app.Engine.StatusReport()
	if err != nil {
		return err
	}
	return output(app, cmd, st, func(r *render.Renderer) error {
		pairs := [][2]string{
			{"branch", st.Branch},
			{"actor", st.Actor},
			{"staged", strconv.Itoa(st.StagedPaths)},
			{"leases", strconv.Itoa(st.ActiveLeases) + " active / " + strconv.Itoa(st.TotalLeases) + " total"},
			{"protect", st.ProtectMode},
			{"workspaces", strconv.Itoa(st.Workspaces)},
			{"tasks", strconv.Itoa(st.OpenTasks) + " open / " + strconv.Itoa(st.ClosedTasks) + " closed"},
			{"projects", strconv.Itoa(st.Projects)},
		}
		if st.LastOp != "" {
			pairs = append(pairs, [2]string{"last op", st.LastCommand + " (" + st.LastOp + ")"})
		}
		return r.RenderKV(pairs)
	})
}
