package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/oplog"
	"github.com/lherron/sv/internal/render"
)

var opCmd = &cobra.Command{
	Use:   "op",
	Short: "Inspect the operation journal",
}

var opLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List journaled operations, newest first",
	Long: `Lists the operation journal, newest first. Timestamps for --since and
--until are RFC 3339; both bounds are inclusive.

Examples:
  sv op log --limit 10
  sv op log --actor alice --since 2026-08-01T00:00:00Z
  sv op log --command commit --json
  sv op log --output ndjson`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runOpLog),
}

var (
	opLogLimit   int
	opLogActor   string
	opLogCommand string
	opLogSince   string
	opLogUntil   string
	opLogOutput  string
)

func init() {
	rootCmd.AddCommand(opCmd)
	opCmd.AddCommand(opLogCmd)

	opLogCmd.Flags().StringVar(&opLogOutput, "output", "table", "Output format: table, ndjson, or yaml")
	opLogCmd.Flags().IntVar(&opLogLimit, "limit", 0, "Maximum number of records (0 = no limit)")
	opLogCmd.Flags().StringVar(&opLogActor, "actor", "", "Only records by this actor")
	opLogCmd.Flags().StringVar(&opLogCommand, "command", "", "Only records whose command contains this text")
	opLogCmd.Flags().StringVar(&opLogSince, "since", "", "Only records at or after this time (RFC 3339)")
	opLogCmd.Flags().StringVar(&opLogUntil, "until", "", "Only records at or before this time (RFC 3339)")
}

func runOpLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	filter := oplog.Filter{
		Actor:   opLogActor,
		Command: opLogCommand,
		Limit:   opLogLimit,
	}
	if opLogSince != "" {
		t, err := time.Parse(time.RFC3339, opLogSince)
		if err != nil {
			return domain.Invalidf("invalid --since: %v", err)
		}
		filter.Since = t
	}
	if opLogUntil != "" {
		t, err := time.Parse(time.RFC3339, opLogUntil)
		if err != nil {
			return domain.Invalidf("invalid --until: %v", err)
		}
		filter.Until = t
	}

	records, err := app.Engine.Oplog.Read(filter)
	if err != nil {
		return err
	}
	return output(app, cmd, records, func(r *render.Renderer) error {
		switch opLogOutput {
		case "ndjson":
			items := make([]interface{}, len(records))
			for i := range records {
				items[i] = records[i]
			}
			return r.RenderNDJSON(items)
		case "yaml":
			return r.RenderYAML(records)
		case "table":
		default:
			return domain.Invalidf("unknown output format %q", opLogOutput)
		}
		headers := []string{"Op", "Time", "Actor", "Command", "Outcome"}
		var rows [][]string
		for _, rec := range records {
			rows = append(rows, []string{
				rec.OpID,
				rec.Timestamp.Format(time.RFC3339),
				rec.Actor,
				rec.Command,
				string(rec.Outcome),
			})
		}
		return r.RenderTable(headers, rows)
	})
}
