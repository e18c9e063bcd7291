package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/bundle"
	"github.com/shaharia-lab/cryptodash/internal/config"
)

// NewExportCmd returns the "export" subcommand that writes the frontend
// bundle as static files.
func NewExportCmd(cfg *config.AppConfig) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the frontend bundle to a directory",
		Long: `Write every file of the frontend bundle to <dir> for hosting on a static
file server. Rewrites and redirects need the gateway and are not applied to
an export.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("config") {
				cfg.FrontendConfigFile = configFile
			}
			fc, err := loadFrontendConfig(cfg)
			if err != nil {
				return err
			}

			mode := fc.Output
			if mode == config.OutputStandalone {
				mode = config.OutputExport
			}
			files, err := bundle.Select(mode, WebFS, fc.DistDir)
			if err != nil {
				return err
			}
			if files == nil {
				return errors.New("no frontend bundle available")
			}

			if n := fc.Rewrites.Len() + len(fc.Redirects); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d rewrite/redirect rules are not applied to a static export\n", n)
			}

			n, err := bundle.Export(cmd.Context(), files, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", cfg.FrontendConfigFile, "Frontend config file (overrides CRYPTODASH_CONFIG env var)")
	return cmd
}
