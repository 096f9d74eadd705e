// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	Whitelist  WhitelistConfig  `mapstructure:"whitelist"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Channel    ChannelConfig    `mapstructure:"channel"`
	Wager      WagerConfig      `mapstructure:"wager"`
	Crash      CrashConfig      `mapstructure:"crash"`
	Mines      MinesConfig      `mapstructure:"mines"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	TxRetries       int           `mapstructure:"tx_retries"`
}

// RedisConfig holds the shared cooldown store connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig holds the ops endpoint configuration.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// ChannelConfig holds the games channel where settlements are published.
type ChannelConfig struct {
	GamesChatID int64 `mapstructure:"games_chat_id"`
}

// WagerConfig holds bet admission configuration.
type WagerConfig struct {
	DefaultMinBet  int64         `mapstructure:"default_min_bet"`
	DefaultMaxBet  int64         `mapstructure:"default_max_bet"`
	LimitsCacheTTL time.Duration `mapstructure:"limits_cache_ttl"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	CooldownStore  string        `mapstructure:"cooldown_store"` // memory | redis
}

// CrashConfig holds crash game configuration.
type CrashConfig struct {
	HouseEdge       float64       `mapstructure:"house_edge"`
	GrowthK         float64       `mapstructure:"growth_k"`
	Tick            time.Duration `mapstructure:"tick"`
	DisplayInterval time.Duration `mapstructure:"display_interval"`
}

// MinesConfig holds mines game configuration.
type MinesConfig struct {
	GridSize      int           `mapstructure:"grid_size"`
	HouseEdge     float64       `mapstructure:"house_edge"`
	RoundTTL      time.Duration `mapstructure:"round_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ReferralConfig holds the fallback referral percent used when the settings row has none.
type ReferralConfig struct {
	DefaultPercent int64 `mapstructure:"default_percent"`
}

// WithdrawalConfig holds withdrawal request limits.
type WithdrawalConfig struct {
	MinAmount int64 `mapstructure:"min_amount"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory is loaded first so its values are visible as env vars.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, WAGER_COOLDOWN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would make the engine misbehave.
func (c *Config) Validate() error {
	if c.Wager.DefaultMinBet <= 0 || c.Wager.DefaultMaxBet < c.Wager.DefaultMinBet {
		return fmt.Errorf("invalid default bet range [%d, %d]", c.Wager.DefaultMinBet, c.Wager.DefaultMaxBet)
	}
	if c.Crash.HouseEdge < 0 || c.Crash.HouseEdge >= 1 {
		return fmt.Errorf("crash house edge must be in [0, 1), got %v", c.Crash.HouseEdge)
	}
	if c.Mines.HouseEdge < 0 || c.Mines.HouseEdge >= 1 {
		return fmt.Errorf("mines house edge must be in [0, 1), got %v", c.Mines.HouseEdge)
	}
	if c.Mines.GridSize < 2 {
		return fmt.Errorf("mines grid size must be at least 2, got %d", c.Mines.GridSize)
	}
	if c.Mines.RoundTTL <= 0 || c.Mines.SweepInterval <= 0 {
		return fmt.Errorf("mines round_ttl and sweep_interval must be positive")
	}
	if c.Referral.DefaultPercent < 0 || c.Referral.DefaultPercent > 100 {
		return fmt.Errorf("referral percent must be in [0, 100], got %d", c.Referral.DefaultPercent)
	}
	switch c.Wager.CooldownStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cooldown store %q", c.Wager.CooldownStore)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.tx_retries", 3)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http.addr", ":8081")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("wager.default_min_bet", 10)
	v.SetDefault("wager.default_max_bet", 10000)
	v.SetDefault("wager.limits_cache_ttl", "5s")
	v.SetDefault("wager.cooldown", "5s")
	v.SetDefault("wager.cooldown_store", "memory")

	v.SetDefault("crash.house_edge", 0.08)
	v.SetDefault("crash.growth_k", 0.185)
	v.SetDefault("crash.tick", "120ms")
	v.SetDefault("crash.display_interval", "900ms")

	v.SetDefault("mines.grid_size", 5)
	v.SetDefault("mines.house_edge", 0.06)
	v.SetDefault("mines.round_ttl", "15m")
	v.SetDefault("mines.sweep_interval", "1m")

	v.SetDefault("referral.default_percent", 0)
	v.SetDefault("withdrawal.min_amount", 100)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
