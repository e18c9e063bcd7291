package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultJWTSecret is the development secret used when JWT_SECRET_KEY is unset.
const DefaultJWTSecret = "your-secret-key"

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the gateway port serving the frontend bundle. Defaults to 3000.
	Port int `envconfig:"PORT" default:"3000"`

	// BackendPort is the port of the backend API service. Defaults to 5000.
	BackendPort int `envconfig:"BACKEND_PORT" default:"5000"`

	// DataDir is the root data directory. Defaults to ~/.cryptodash.
	DataDir string `envconfig:"CRYPTODASH_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFormat selects the slog handler: json or text.
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// FrontendConfigFile is the YAML file holding output mode and rewrites.
	// When empty or missing, the built-in defaults apply.
	FrontendConfigFile string `envconfig:"CRYPTODASH_CONFIG"`

	// BackendURL is the upstream the default /api rewrite points at.
	// Ignored when a frontend config file defines its own rewrites.
	BackendURL string `envconfig:"BACKEND_URL" default:"http://backend:5000"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// JWTSecretKey signs access tokens. Change it in production.
	JWTSecretKey string `envconfig:"JWT_SECRET_KEY" default:"your-secret-key"`

	// JWTAccessTokenExpires is the lifetime of issued access tokens.
	JWTAccessTokenExpires time.Duration `envconfig:"JWT_ACCESS_TOKEN_EXPIRES" default:"1h"`

	// ExchangeCacheTTL is how long fetched exchange data stays in Redis.
	ExchangeCacheTTL time.Duration `envconfig:"EXCHANGE_CACHE_TTL" default:"30s"`

	// ExchangeRefreshInterval enables a background job keeping the cache warm.
	// Zero disables it.
	ExchangeRefreshInterval time.Duration `envconfig:"EXCHANGE_REFRESH_INTERVAL" default:"0s"`

	BinanceAPIURL  string `envconfig:"BINANCE_API_URL" default:"https://api.binance.com"`
	CoinbaseAPIURL string `envconfig:"COINBASE_API_URL" default:"https://api.pro.coinbase.com"`

	// CORSAllowedOrigins is a comma separated origin list for the backend.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// OTLPEndpoint enables trace export when set, e.g. http://collector:4317.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.cryptodash if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".cryptodash")
	}
	c.BackendURL = strings.TrimSuffix(c.BackendURL, "/")
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.cryptodash/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DatabasePath returns the path of the SQLite database.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "cryptodash.db")
}

// RedisAddr returns host:port of the Redis server.
func (c *AppConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// AllowedOrigins splits CORSAllowedOrigins into a list.
func (c *AppConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// UsesDefaultSecret reports whether tokens are signed with the development secret.
func (c *AppConfig) UsesDefaultSecret() bool {
	return c.JWTSecretKey == DefaultJWTSecret
}
