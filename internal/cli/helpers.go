package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/cli/appctx"
	"github.com/lherron/sv/internal/render"
)

// output renders data as a JSON envelope under --json, otherwise calls
// the human renderer.
func output(app *appctx.App, cmd *cobra.Command, data interface{}, human func(r *render.Renderer) error) error {
	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{})
	if app.JSON {
		return r.RenderEnvelope(data)
	}
	return human(r)
}
