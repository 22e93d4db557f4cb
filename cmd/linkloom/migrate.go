package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkloom/internal/config"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/utils"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(s *sqlstore.Store, log logger.Logger) error {
				if err := s.Migrate(cmd.Context()); err != nil {
					return err
				}
				log.Info("schema up to date", logger.String("driver", s.Driver()))
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (postgres only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withStore(cmd, func(s *sqlstore.Store, log logger.Logger) error {
				if err := s.MigrateDown(steps); err != nil {
					return err
				}
				log.Info("rolled back migrations", logger.Int("steps", steps))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// withStore opens the configured database for a maintenance command.
func withStore(cmd *cobra.Command, fn func(*sqlstore.Store, logger.Logger) error) error {
	cfg := config.LoadDatabase()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	s, err := sqlstore.Open(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer utils.Close(s)
	return fn(s, log)
}
