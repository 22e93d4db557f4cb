package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var username, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API token, creating the user when needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			return withStore(cmd, func(s *sqlstore.Store, log logger.Logger) error {
				if err := s.Migrate(cmd.Context()); err != nil {
					return err
				}
				token, err := createToken(cmd, s, username, name)
				if err != nil {
					return err
				}
				log.Info("api token created", logger.String("username", username), logger.String("name", name))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "owner of the token")
	create.Flags().StringVar(&name, "name", "cli", "label shown for the token")

	cmd.AddCommand(create)
	return cmd
}

func createToken(cmd *cobra.Command, s *sqlstore.Store, username, name string) (string, error) {
	token, err := domain.NewAPIToken()
	if err != nil {
		return "", err
	}
	ctx := cmd.Context()
	err = s.InTx(ctx, func(q *sqlstore.Queries) error {
		now := domain.Now()
		u, err := q.EnsureUser(ctx, username, now)
		if err != nil {
			return err
		}
		return q.CreateAPIToken(ctx, u.ID, name, domain.HashAPIToken(token), now)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
