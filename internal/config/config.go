package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the backtest engine.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Backtest   BacktestDefaults `mapstructure:"backtest"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig holds the Postgres connection settings for the cache store
// and the backtest report archive.
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	MaxConns    int           `mapstructure:"max_conns"`
	MinConns    int           `mapstructure:"min_conns"`
	MaxConnLife time.Duration `mapstructure:"max_conn_life"`
}

// MarketDataConfig selects the vendor tier and credentials for the External
// Data Fetcher.
type MarketDataConfig struct {
	Tier   string `mapstructure:"tier"` // "premium" or "free"
	APIKey string `mapstructure:"api_key"`
}

// BacktestDefaults holds default run parameters loaded from configuration.
// Neither CLI command reads them: both take their run defaults from
// backtest.DefaultConfig and their own flags.
type BacktestDefaults struct {
	InitialCapital  float64 `mapstructure:"initial_capital"`
	CommissionPerShare float64 `mapstructure:"commission_per_share"`
	SlippageBps     float64 `mapstructure:"slippage_bps"`
	DailyLossLimitPct float64 `mapstructure:"daily_loss_limit_pct"`
}

// SweepConfig bounds the parameter-sweep scheduler's concurrency.
type SweepConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "console"
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("BACKTEST")
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if v.IsSet("DB_HOST") {
		config.Database.Host = v.GetString("DB_HOST")
	}
	if v.IsSet("DB_PORT") {
		config.Database.Port = v.GetInt("DB_PORT")
	}
	if v.IsSet("DB_USER") {
		config.Database.User = v.GetString("DB_USER")
	}
	if v.IsSet("DB_PASSWORD") {
		config.Database.Password = v.GetString("DB_PASSWORD")
	}
	if v.IsSet("DB_NAME") {
		config.Database.Database = v.GetString("DB_NAME")
	}
	if v.IsSet("MARKETDATA_API_KEY") {
		config.MarketData.APIKey = v.GetString("MARKETDATA_API_KEY")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "backtest")
	v.SetDefault("database.password", "backtest")
	v.SetDefault("database.database", "backtest")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_life", 5*time.Minute)

	v.SetDefault("market_data.tier", "free")

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.commission_per_share", 0.005)
	v.SetDefault("backtest.slippage_bps", 5.0)
	v.SetDefault("backtest.daily_loss_limit_pct", 0.0)

	v.SetDefault("sweep.max_concurrency", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
