package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkloom/internal/app"
	"github.com/MrSnakeDoc/linkloom/internal/config"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, background jobs and schedulers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := app.New(cmd.Context(), cfg, loggerClient)
	if err != nil {
		return err
	}
	return a.Run()
}
