package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the CLI. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkloom",
		Short:         "Self-hosted bookmark sync server",
		Long:          `LinkLoom keeps browser bookmarks in sync with a server copy and runs imports, link checks and content enrichment in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}
