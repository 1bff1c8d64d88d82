package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/engine"
	"github.com/lherron/sv/internal/render"
	"github.com/lherron/sv/internal/selectors"
)

var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Manage advisory path leases",
}

var leaseAcquireCmd = &cobra.Command{
	Use:   "acquire <pathspec>",
	Short: "Claim a pathspec for the current actor",
	Long: `Claims a pathspec (literal path or glob) for the current actor. The
claim is advisory: it gates sv commands, not git itself.

Examples:
  sv lease acquire src/parser/
  sv lease acquire 'docs/**' --strength strong --ttl 2h
  sv lease acquire src/shared.go --allow-overlap`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runLeaseAcquire),
}

var leaseReleaseCmd = &cobra.Command{
	Use:   "release [lease-id]",
	Short: "Release a lease",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runLeaseRelease),
}

var leaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leases",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runLeaseList),
}

var (
	leaseStrength      string
	leaseNote          string
	leaseIntent        string
	leaseTTL           time.Duration
	leaseAllowOverlap  bool
	leaseReleaseSelect string
)

func init() {
	rootCmd.AddCommand(leaseCmd)
	leaseCmd.AddCommand(leaseAcquireCmd)
	leaseCmd.AddCommand(leaseReleaseCmd)
	leaseCmd.AddCommand(leaseListCmd)

	leaseAcquireCmd.Flags().StringVar(&leaseStrength, "strength", "", "Lease strength: cooperative, strong, or exclusive")
	leaseAcquireCmd.Flags().StringVar(&leaseNote, "note", "", "Free-form note attached to the lease")
	leaseAcquireCmd.Flags().StringVar(&leaseIntent, "intent", "", "Declared intent (edit, refactor, ...)")
	leaseAcquireCmd.Flags().DurationVar(&leaseTTL, "ttl", 0, "Time to live (0 = configured default)")
	leaseAcquireCmd.Flags().BoolVar(&leaseAllowOverlap, "allow-overlap", false, "Permit overlap with compatible leases")
	leaseReleaseCmd.Flags().StringVar(&leaseReleaseSelect, "select", "", "Selector expression naming the leases to release")
}

func runLeaseAcquire(app *appctx.App, cmd *cobra.Command, args []string) error {
	acquired, err := app.Engine.LeaseAcquire(cmd.Context(), engine.LeaseAcquireOptions{
		Pathspec:     args[0],
		Strength:     leaseStrength,
		Note:         leaseNote,
		Intent:       leaseIntent,
		TTL:          leaseTTL,
		AllowOverlap: leaseAllowOverlap,
	})
	if err != nil {
		return err
	}
	return output(app, cmd, acquired, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%s)\n", acquired.ID, acquired.Pathspec, acquired.Strength)
		return err
	})
}

func runLeaseRelease(app *appctx.App, cmd *cobra.Command, args []string) error {
	var targets []string
	switch {
	case leaseReleaseSelect != "":
		matches, err := app.Engine.Select(leaseReleaseSelect)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.Kind == selectors.KindLease {
				targets = append(targets, m.Item.ID)
			}
		}
	case len(args) == 1:
		targets = args
	default:
		return domain.Invalidf("a lease id or --select expression is required")
	}

	var released []string
	for _, target := range targets {
		removed, err := app.Engine.LeaseRelease(cmd.Context(), target)
		if err != nil {
			return err
		}
		released = append(released, removed.ID)
	}
	return output(app, cmd, map[string][]string{"released": released}, func(r *render.Renderer) error {
		return r.RenderList(released)
	})
}

func runLeaseList(app *appctx.App, cmd *cobra.Command, args []string) error {
	list, err := app.Engine.LeaseList()
	if err != nil {
		return err
	}
	now := app.Engine.Now()
	return output(app, cmd, list, func(r *render.Renderer) error {
		headers := []string{"ID", "Pathspec", "Strength", "Actor", "State"}
		var rows [][]string
		for _, l := range list {
			state := "active"
			if l.Expired(now) {
				state = "expired"
			}
			rows = append(rows, []string{l.ID, l.Pathspec, string(l.Strength), l.Actor, state})
		}
		return r.RenderTable(headers, rows)
	})
}
