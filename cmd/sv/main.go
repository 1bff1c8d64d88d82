package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/lherron/sv/internal/cli"
	"github.com/lherron/sv/internal/config"
	"github.com/lherron/sv/internal/domain"
	"github.com/lherron/sv/internal/render"
)

func main() {
	// Best effort; a missing .env is fine
	_ = godotenv.Load()

	setupLogging()

	if err := cli.Execute(); err != nil {
		if cli.JSONRequested() {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(render.ErrorEnvelope(err))
		} else {
			fmt.Fprintf(os.Stderr, "sv: %v\n", err)
		}
		os.Exit(domain.ExitCode(err))
	}
}

func setupLogging() {
	level := slog.LevelWarn
	switch config.EnvLogLevel() {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
