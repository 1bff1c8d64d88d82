package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var forgeCmd = &cobra.Command{
	Use:   "forge",
	Short: "Integrate sv with the local git plumbing",
}

var forgeHooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage installed git hooks",
}

var forgeHooksInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the pre-commit risk hook",
	Long: `Installs a pre-commit hook that runs the risk scan before every git
commit. Re-running against an already installed hook is a no-op; a
foreign pre-commit hook is left alone and reported as an error.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runForgeHooksInstall),
}

func init() {
	rootCmd.AddCommand(forgeCmd)
	forgeCmd.AddCommand(forgeHooksCmd)
	forgeHooksCmd.AddCommand(forgeHooksInstallCmd)
}

func runForgeHooksInstall(app *appctx.App, cmd *cobra.Command, args []string) error {
	installed, err := app.Engine.InstallHooks()
	if err != nil {
		return err
	}
	data := map[string]bool{"installed": installed}
	return output(app, cmd, data, func(r *render.Renderer) error {
		msg := "pre-commit hook already installed"
		if installed {
			msg = "pre-commit hook installed"
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	})
}
