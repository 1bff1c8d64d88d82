// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes repository discovery, engine construction, and actor
// override handling to reduce boilerplate across commands.
package appctx

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lherron/sv/internal/engine"
)

// App holds the shared application context for commands
type App struct {
	// Engine is the opened coordination engine
	Engine *engine.Engine

	// JSON reports whether --json output was requested
	JSON bool
}

// Options configures the bootstrap behavior
type Options struct {
	// InitRepo creates the repository and layout instead of requiring
	// an existing one. Used only by init.
	InitRepo bool
}

// DefaultOptions returns default options (existing repository required)
func DefaultOptions() Options {
	return Options{}
}

// RunFunc is the signature for command run functions
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic:
// resolve the repository from --repo (or the working directory), open
// the engine, and apply the --as actor override.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		return fn(app, cmd, args)
	}
}

// Bootstrap builds the App for a command invocation
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	path := cmd.Flag("repo").Value.String()
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	logger := slog.Default()
	var eng *engine.Engine
	var err error
	if opts.InitRepo {
		eng, err = engine.Init(path, logger)
	} else {
		eng, err = engine.Open(path, logger)
	}
	if err != nil {
		return nil, err
	}

	if as := cmd.Flag("as").Value.String(); as != "" {
		eng.ActorOverride = as
	}

	jsonFlag, _ := cmd.Flags().GetBool("json")
	return &App{Engine: eng, JSON: jsonFlag}, nil
}
