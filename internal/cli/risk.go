package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/render"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Scan staged changes against leases and protected paths",
	Long: `Reports every staged path that hits a protected pattern or another
actor's active lease, plus overlapping lease claims between actors.
Read-only.

With --merge, additionally dry-runs a three-way merge of the current
branch into the given ref and reports the conflicts.

In --quiet mode nothing is printed; the exit code alone reports whether
the scan was clean. The installed pre-commit hook runs this mode.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRisk),
}

var (
	riskQuiet  bool
	riskStaged bool
	riskMerge  string
)

func init() {
	rootCmd.AddCommand(riskCmd)
	riskCmd.Flags().BoolVar(&riskQuiet, "quiet", false, "No output; exit code only")
	riskCmd.Flags().BoolVar(&riskStaged, "staged", false, "Scan staged paths only (the default; kept for the hook)")
	riskCmd.Flags().StringVar(&riskMerge, "merge", "", "Also simulate merging the current branch into this ref")
}

func runRisk(app *appctx.App, cmd *cobra.Command, args []string) error {
	report, err := app.Engine.Risk()
	if err != nil {
		return err
	}

	type riskView struct {
		Report    interface{} `json:"report"`
		Conflicts interface{} `json:"merge_conflicts,omitempty"`
	}
	view := riskView{Report: report}

	mergeClean := true
	if riskMerge != "" {
		sim, err := app.Engine.SimulateMerge(report.Branch, riskMerge, "")
		if err != nil {
			return err
		}
		view.Conflicts = sim.Conflicts
		mergeClean = sim.Clean()
	}

	if !riskQuiet {
		err = output(app, cmd, view, func(r *render.Renderer) error {
			if report.Clean() && mergeClean {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "clean")
				return err
			}
			headers := []string{"Kind", "Path", "Detail"}
			var rows [][]string
			for _, item := range report.Items {
				detail := item.Pattern
				if item.Holder != "" {
					detail = "held by " + item.Holder
				}
				rows = append(rows, []string{item.Kind, item.Path, detail})
			}
			return r.RenderTable(headers, rows)
		})
		if err != nil {
			return err
		}
	}

	if !report.Clean() || !mergeClean {
		return &domain.PolicyError{Message: "risk scan found findings"}
	}
	return nil
}
