package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/vegas-max/Titan2.0/internal/chains"
	"github.com/vegas-max/Titan2.0/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Matrix     MatrixConfig     `mapstructure:"matrix"`
	Quotes     QuotesConfig     `mapstructure:"quotes"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails"`
	Server     ServerConfig     `mapstructure:"server"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// persistence.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the periodic scan cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MatrixConfig locates the route matrix file.
type MatrixConfig struct {
	Path string `mapstructure:"path"`
}

// QuotesConfig selects and parameterises the quote provider.
type QuotesConfig struct {
	Provider       string        `mapstructure:"provider"`
	LiFiBaseURL    string        `mapstructure:"lifi_base_url"`
	LiFiAPIKey     string        `mapstructure:"lifi_api_key"`
	NotionalUSD    float64       `mapstructure:"notional_usd"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatePerSec     float64       `mapstructure:"rate_per_sec"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ScoringConfig tunes the ranking pipeline.
type ScoringConfig struct {
	MinTarScore float64 `mapstructure:"min_tar_score"`
	TopN        int     `mapstructure:"top_n"`
	Workers     int     `mapstructure:"workers"`
}

// GuardrailsConfig seeds the loan sizer's real-money limits.
type GuardrailsConfig struct {
	MinLoanUSD        uint64  `mapstructure:"min_loan_usd"`
	MaxTVLShare       float64 `mapstructure:"max_tvl_share"`
	SlippageTolerance float64 `mapstructure:"slippage_tolerance"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DefaultLender  string        `mapstructure:"default_lender"`
}

// ChainConfig wires one chain's RPC endpoint.
type ChainConfig struct {
	ChainID uint64 `mapstructure:"chain_id"`
	Name    string `mapstructure:"name"`
	RPCURL  string `mapstructure:"rpc_url"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	MinTarScore float64        `mapstructure:"min_tar_score"`
	Cooldown    time.Duration  `mapstructure:"cooldown"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TITAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "titan")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x7469746e))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("matrix.path", "data/omniarb_matrix.md")

	v.SetDefault("quotes.provider", "synthetic")
	v.SetDefault("quotes.lifi_base_url", "https://li.quest")
	v.SetDefault("quotes.notional_usd", 10000.0)
	v.SetDefault("quotes.request_timeout", "10s")
	v.SetDefault("quotes.rate_per_sec", 2.0)
	v.SetDefault("quotes.user_agent", "titan/2.0")

	v.SetDefault("scoring.min_tar_score", 85.0)
	v.SetDefault("scoring.top_n", 10)
	v.SetDefault("scoring.workers", 0)

	v.SetDefault("guardrails.min_loan_usd", uint64(10000))
	v.SetDefault("guardrails.max_tvl_share", 0.20)
	v.SetDefault("guardrails.slippage_tolerance", 0.995)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.default_lender", chains.BalancerV3Vault)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_tar_score", 90.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("chains", []map[string]any{
		{"chain_id": 1, "name": "ethereum", "rpc_url": ""},
		{"chain_id": 137, "name": "polygon", "rpc_url": ""},
		{"chain_id": 42161, "name": "arbitrum", "rpc_url": ""},
		{"chain_id": 10, "name": "optimism", "rpc_url": ""},
		{"chain_id": 8453, "name": "base", "rpc_url": ""},
	})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Matrix.Path == "" {
		return fmt.Errorf("matrix.path must be configured")
	}
	switch c.Quotes.Provider {
	case "synthetic", "lifi":
	default:
		return fmt.Errorf("quotes.provider must be synthetic or lifi, got %q", c.Quotes.Provider)
	}
	if c.Quotes.NotionalUSD <= 0 {
		return fmt.Errorf("quotes.notional_usd must be greater than zero")
	}
	if c.Scoring.TopN <= 0 {
		return fmt.Errorf("scoring.top_n must be greater than zero")
	}
	if c.Guardrails.MaxTVLShare <= 0 || c.Guardrails.MaxTVLShare > 1 {
		return fmt.Errorf("guardrails.max_tvl_share must be in (0, 1]")
	}
	if c.Guardrails.SlippageTolerance <= 0 || c.Guardrails.SlippageTolerance > 1 {
		return fmt.Errorf("guardrails.slippage_tolerance must be in (0, 1]")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}
	return nil
}

// Endpoints converts the configured chains into registry endpoints.
func (c *Config) Endpoints() []chains.Endpoint {
	endpoints := make([]chains.Endpoint, 0, len(c.Chains))
	for _, chain := range c.Chains {
		endpoints = append(endpoints, chains.Endpoint{
			ChainID: chain.ChainID,
			Name:    chain.Name,
			RPCURL:  chain.RPCURL,
		})
	}
	return endpoints
}
