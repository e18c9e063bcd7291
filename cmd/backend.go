package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/api"
	"github.com/shaharia-lab/cryptodash/internal/auth"
	"github.com/shaharia-lab/cryptodash/internal/build"
	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/exchange"
	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/scheduler"
	"github.com/shaharia-lab/cryptodash/internal/server"
	"github.com/shaharia-lab/cryptodash/internal/storage"
)

const (
	redisPingTimeout = 3 * time.Second
	upstreamTimeout  = 15 * time.Second
	warmerJobName    = "exchange-cache-warmer"
)

// NewBackendCmd returns the "backend" subcommand that starts the API service.
func NewBackendCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Start the backend API service",
		Long: `Start the backend API: token login at POST /api/auth/login and aggregated
Binance and Coinbase market data at GET /api/exchange-data, cached in Redis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				cfg.BackendPort = port
			}
			return runBackend(cmd, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.BackendPort, "HTTP server port (overrides BACKEND_PORT env var)")
	return cmd
}

func runBackend(cmd *cobra.Command, cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, closer, err := newLogger(cfg, "backend")
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET_KEY is not set; using the built-in development secret")
	}

	shutdown, err := setupTelemetry(ctx, cfg, "cryptodash-backend", log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(shutdown, log)

	issuer, err := auth.NewIssuer(cfg.JWTSecretKey, cfg.JWTAccessTokenExpires)
	if err != nil {
		return fmt.Errorf("configuring tokens: %w", err)
	}

	db, _, err := storage.NewSQLiteDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	reg := metrics.New()
	var cache exchange.Cache
	if rc := connectCache(ctx, cfg, log); rc != nil {
		defer rc.Close()
		cache = rc
	}
	exchangeSvc := exchange.NewService(
		exchange.NewClient(exchange.ClientOptions{
			BinanceURL:  cfg.BinanceAPIURL,
			CoinbaseURL: cfg.CoinbaseAPIURL,
			Timeout:     upstreamTimeout,
			Metrics:     reg,
		}),
		cache,
		cfg.ExchangeCacheTTL,
		log,
		reg,
	)

	if cfg.ExchangeRefreshInterval > 0 {
		sched, err := scheduler.New(log)
		if err != nil {
			return err
		}
		if err := sched.Every(warmerJobName, cfg.ExchangeRefreshInterval, func(ctx context.Context) error {
			_, err := exchangeSvc.Refresh(ctx)
			return err
		}); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("stopping scheduler", "error", err)
			}
		}()
	}

	srv := server.NewBackend(server.BackendOptions{
		Port:           cfg.BackendPort,
		API:            api.New(exchangeSvc, issuer, storage.NewSQLiteLoginStore(db), log, reg),
		AllowedOrigins: cfg.AllowedOrigins(),
		Metrics:        reg,
		Logger:         log,
	})

	log.Info("backend starting",
		"port", cfg.BackendPort,
		"redis", cfg.RedisAddr(),
		"cache_enabled", cache != nil,
		"version", build.Version,
		"commit", build.CommitSHA,
	)

	cacheState := "redis " + cfg.RedisAddr()
	if cache == nil {
		cacheState = "disabled (redis unreachable)"
	}
	printBanner(cmd.OutOrStdout(), "cryptodash backend "+build.Version, [][2]string{
		{"URL", fmt.Sprintf("http://localhost:%d/api", cfg.BackendPort)},
		{"Cache", cacheState},
		{"Database", cfg.DatabasePath()},
		{"Logs", cfg.LogDir()},
	})

	return srv.Run(ctx)
}

// connectCache returns a Redis cache, or nil when the server cannot be
// reached at startup; the backend then serves uncached data.
func connectCache(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) *exchange.RedisCache {
	rc := exchange.NewRedisCache(cfg.RedisAddr(), cfg.RedisPassword)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Error("redis connection error; running without cache", "error", err)
		_ = rc.Close()
		return nil
	}
	return rc
}
