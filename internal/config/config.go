// Package config loads runtime configuration from flags, environment
// variables, and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"raydium-pool-watch/internal/raydium"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL  string
	WSURL   string
	Program string

	LogLevel  string
	LogFormat string

	MetricsAddr string

	StorageBackend string // memory, postgres
	PostgresDSN    string
	ClickhouseDSN  string // optional snapshot sink
	Migrate        bool

	PollSpec  string
	SweepSpec string

	ChangeThreshold float64
	EventBuffer     int

	StaleWindow      time.Duration
	ProgressTimeout  time.Duration
	MonitoringMaxAge time.Duration
	MaxPending       int
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "https://api.mainnet-beta.solana.com")
	v.SetDefault("ws", "wss://api.mainnet-beta.solana.com")
	v.SetDefault("program", raydium.AMMV4Program)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("storage", "memory")
	v.SetDefault("migrate", true)
	v.SetDefault("poll-spec", "*/10 * * * * *")
	v.SetDefault("sweep-spec", "0 */5 * * * *")
	v.SetDefault("change-threshold", 0.005)
	v.SetDefault("event-buffer", 1024)
	v.SetDefault("stale-window", time.Hour)
	v.SetDefault("progress-timeout", 30*time.Minute)
	v.SetDefault("monitoring-max-age", time.Hour)
	v.SetDefault("max-pending", 100)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		WSURL:            v.GetString("ws"),
		Program:          v.GetString("program"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		MetricsAddr:      v.GetString("metrics-addr"),
		StorageBackend:   v.GetString("storage"),
		PostgresDSN:      v.GetString("postgres-dsn"),
		ClickhouseDSN:    v.GetString("clickhouse-dsn"),
		Migrate:          v.GetBool("migrate"),
		PollSpec:         v.GetString("poll-spec"),
		SweepSpec:        v.GetString("sweep-spec"),
		ChangeThreshold:  v.GetFloat64("change-threshold"),
		EventBuffer:      v.GetInt("event-buffer"),
		StaleWindow:      v.GetDuration("stale-window"),
		ProgressTimeout:  v.GetDuration("progress-timeout"),
		MonitoringMaxAge: v.GetDuration("monitoring-max-age"),
		MaxPending:       v.GetInt("max-pending"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.WSURL == "" {
		return fmt.Errorf("ws url is required")
	}
	if c.Program == "" {
		return fmt.Errorf("program id is required")
	}
	switch c.StorageBackend {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.ChangeThreshold < 0 {
		return fmt.Errorf("change-threshold cannot be negative")
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event-buffer must be greater than zero")
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("max-pending must be greater than zero")
	}
	if c.StaleWindow <= 0 || c.ProgressTimeout <= 0 || c.MonitoringMaxAge <= 0 {
		return fmt.Errorf("lifecycle windows must be greater than zero")
	}
	return nil
}
