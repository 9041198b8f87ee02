package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL     string
	timeout     time.Duration
	databaseURL string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "balanceledger-cli",
		Short:         "BalanceLedger CLI tool",
		Long:          `A command line interface for the BalanceLedger API and its database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the BalanceLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL for commands that bypass the API")

	rootCmd.AddCommand(
		accountCmd(),
		balanceCmd(),
		historyCmd(),
		reconcileCmd(),
		migrateCmd(),
	)

	return rootCmd
}
