package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/config"
)

// NewRootCmd returns the cryptodash command tree bound to cfg.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "cryptodash",
		Short: "Crypto dashboard gateway and backend",
		Long: `cryptodash serves the dashboard frontend bundle, forwards /api requests to
the backend according to the configured rewrite rules, and runs the backend
API that aggregates Binance and Coinbase market data.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		NewWebCmd(cfg),
		NewBackendCmd(cfg),
		NewRoutesCmd(cfg),
		NewExportCmd(cfg),
		NewAuditCmd(cfg),
		NewUpdateCmd(),
		NewVersionCmd(),
	)
	return root
}

// Execute loads the environment configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
