package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/build"
	"github.com/shaharia-lab/cryptodash/internal/bundle"
	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/proxy"
	"github.com/shaharia-lab/cryptodash/internal/server"
)

// NewWebCmd returns the "web" subcommand that starts the frontend gateway.
func NewWebCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		port       int
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the dashboard frontend and apply rewrites",
		Long: `Start the frontend gateway. It serves the frontend bundle (embedded in
standalone mode, read from distDir in server mode) and forwards requests
matching the configured rewrite rules, by default /api/:path* to the backend
at http://backend:5000.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("config") {
				cfg.FrontendConfigFile = configFile
			}
			return runWeb(cmd, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().StringVar(&configFile, "config", cfg.FrontendConfigFile, "Frontend config file (overrides CRYPTODASH_CONFIG env var)")
	return cmd
}

func runWeb(cmd *cobra.Command, cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, closer, err := newLogger(cfg, "gateway")
	if err != nil {
		return err
	}
	defer closer.Close()

	fc, err := loadFrontendConfig(cfg)
	if err != nil {
		log.Error("loading frontend config", "error", err)
		return err
	}
	if fc.Output == config.OutputExport {
		return errors.New("output mode export has no server; run `cryptodash export <dir>` instead")
	}

	rules, err := fc.Compile()
	if err != nil {
		return fmt.Errorf("compiling rules: %w", err)
	}

	files, err := bundle.Select(fc.Output, WebFS, fc.DistDir)
	if err != nil {
		log.Error("selecting frontend bundle", "output", fc.Output, "error", err)
		return err
	}

	shutdown, err := setupTelemetry(ctx, cfg, "cryptodash-gateway", log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(shutdown, log)

	reg := metrics.New()
	reg.SetRules("redirects", len(rules.Redirects.Redirects()))
	reg.SetRules("beforeFiles", rules.BeforeFiles.Len())
	reg.SetRules("afterFiles", rules.AfterFiles.Len())
	reg.SetRules("fallback", rules.Fallback.Len())

	srv, err := server.NewGateway(server.GatewayOptions{
		Port:         cfg.Port,
		Rules:        rules,
		Files:        files,
		DevServerURL: fc.DevServerURL,
		Proxy: proxy.New(proxy.Options{
			Logger:       log,
			PreserveHost: fc.Proxy.PreserveHost,
			XForwarded:   fc.Proxy.XForwardedEnabled(),
			Timeout:      fc.Proxy.Timeout,
			Metrics:      reg,
		}),
		Metrics: reg,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	mode := string(fc.Output)
	if files == nil {
		mode = "dev (proxying to " + fc.DevServerURL + ")"
	}
	log.Info("gateway starting",
		"port", cfg.Port,
		"output", mode,
		"rewrites", fc.Rewrites.Len(),
		"redirects", len(fc.Redirects),
		"version", build.Version,
		"commit", build.CommitSHA,
	)

	printBanner(cmd.OutOrStdout(), "cryptodash gateway "+build.Version, [][2]string{
		{"URL", fmt.Sprintf("http://localhost:%d", cfg.Port)},
		{"Output", mode},
		{"Rewrites", fmt.Sprintf("%d rules", fc.Rewrites.Len())},
		{"Logs", cfg.LogDir()},
	})

	return srv.Run(ctx)
}
