package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize sv in a repository",
	Long: `Initializes sv in the current (or --repo) directory. Creates the git
repository when none exists, lays out the reserved .sv/ and .git/sv/
directories, and writes a default .sv.toml config file.

Examples:
  sv init              # Initialize in the current directory
  sv init --repo /path # Initialize elsewhere`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.Options{InitRepo: true}, runInit),
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(app *appctx.App, cmd *cobra.Command, args []string) error {
	data := map[string]string{"root": app.Engine.Repo.Root()}
	return output(app, cmd, data, func(r *render.Renderer) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "initialized sv in %s\n", app.Engine.Repo.Root())
		return err
	})
}
