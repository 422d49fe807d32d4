// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Venues     VenuesConfig     `mapstructure:"venues"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// VenueConfig holds one exchange venue's connection settings.
type VenueConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Categories    []string      `mapstructure:"categories"` // spot, linear, inverse
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	Testnet       bool          `mapstructure:"testnet"`
	PublicOnly    bool          `mapstructure:"public_only"`
	DepthSpeedMs  int           `mapstructure:"depth_speed_ms"`
	StaleTimeout  time.Duration `mapstructure:"stale_timeout"`
	RateLimitRPM  int           `mapstructure:"rate_limit_rpm"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// VenuesConfig holds per-venue settings keyed by venue id.
type VenuesConfig struct {
	Binance VenueConfig `mapstructure:"binance"`
	Bybit   VenueConfig `mapstructure:"bybit"`
}

// RiskConfig bounds what the executor is allowed to do automatically.
type RiskConfig struct {
	MaxOrderQty      float64       `mapstructure:"max_order_qty"`
	MaxDailyLossUSD  float64       `mapstructure:"max_daily_loss_usd"`
	MaxExecsPerPair  int           `mapstructure:"max_execs_per_pair"`
	MinThresholdBps  float64       `mapstructure:"min_threshold_bps"`
	DetectorInterval time.Duration `mapstructure:"detector_interval"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	WSHeartbeat     time.Duration `mapstructure:"ws_heartbeat"`
	WSPongTimeout   time.Duration `mapstructure:"ws_pong_timeout"`
}

// DatabaseConfig holds the Postgres connection settings for the durable store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"` // otlp, zipkin, stdout
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("venues.binance.enabled", "ARB_BINANCE_ENABLED")
	v.BindEnv("venues.binance.api_key", "ARB_VENUE_BINANCE_API_KEY")
	v.BindEnv("venues.binance.api_secret", "ARB_VENUE_BINANCE_API_SECRET")
	v.BindEnv("venues.binance.public_only", "ARB_VENUE_BINANCE_PUBLIC_ONLY")
	v.BindEnv("venues.binance.categories", "ARB_BINANCE_CATEGORIES")

	v.BindEnv("venues.bybit.enabled", "ARB_BYBIT_ENABLED")
	v.BindEnv("venues.bybit.api_key", "ARB_VENUE_BYBIT_API_KEY")
	v.BindEnv("venues.bybit.api_secret", "ARB_VENUE_BYBIT_API_SECRET")
	v.BindEnv("venues.bybit.public_only", "ARB_VENUE_BYBIT_PUBLIC_ONLY")
	v.BindEnv("venues.bybit.categories", "ARB_BYBIT_CATEGORIES")

	v.BindEnv("risk.max_order_qty", "ARB_RISK_MAX_ORDER_QTY")
	v.BindEnv("risk.max_daily_loss_usd", "ARB_RISK_MAX_DAILY_LOSS_USD")
	v.BindEnv("risk.max_execs_per_pair", "ARB_MAX_EXECS_PER_PAIR")
	v.BindEnv("risk.min_threshold_bps", "ARB_MIN_THRESHOLD_BPS")

	v.BindEnv("server.listen_addr", "ARB_LISTEN_ADDR", "ARB_HTTP_PORT")

	v.BindEnv("database.dsn", "ARB_DB_DSN", "ARB_DATABASE_DSN", "DATABASE_URL")

	v.BindEnv("telemetry.enabled", "ARB_TELEMETRY_ENABLED", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.provider", "ARB_TELEMETRY_PROVIDER")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbitrage-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("venues.binance.enabled", true)
	v.SetDefault("venues.binance.categories", []string{"spot"})
	v.SetDefault("venues.binance.depth_speed_ms", 100)
	v.SetDefault("venues.binance.stale_timeout", "5s")
	v.SetDefault("venues.binance.rate_limit_rpm", 1200)
	v.SetDefault("venues.binance.submit_timeout", "10s")
	v.SetDefault("venues.binance.fetch_timeout", "3s")

	v.SetDefault("venues.bybit.enabled", true)
	v.SetDefault("venues.bybit.categories", []string{"spot"})
	v.SetDefault("venues.bybit.stale_timeout", "5s")
	v.SetDefault("venues.bybit.rate_limit_rpm", 600)
	v.SetDefault("venues.bybit.submit_timeout", "10s")
	v.SetDefault("venues.bybit.fetch_timeout", "3s")

	v.SetDefault("risk.max_order_qty", 1.0)
	v.SetDefault("risk.max_daily_loss_usd", 1000.0)
	v.SetDefault("risk.max_execs_per_pair", 100)
	v.SetDefault("risk.min_threshold_bps", 5.0)
	v.SetDefault("risk.detector_interval", "1s")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.ws_heartbeat", "30s")
	v.SetDefault("server.ws_pong_timeout", "90s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.provider", "otlp")
	v.SetDefault("telemetry.service_name", "arbitrage-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Venues.Binance.Enabled && !c.Venues.Bybit.Enabled {
		return fmt.Errorf("at least one venue must be enabled")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
