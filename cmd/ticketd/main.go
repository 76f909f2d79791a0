package main

import (
	"os"

	"github.com/spf13/cobra"

	"ticketd/internal/interfaces/cli/migrate"
	"ticketd/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ticketd",
		Short: "ticketd - ticket tracking service",
		Long:  `ticketd is a ticket tracking service with pluggable SQL storage, a Redis read-through cache, and attachment handling.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
