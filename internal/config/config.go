// Package config provides layered configuration loading for the SQL core
// gateway and its operator CLI.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

// Config holds the full application configuration.
type Config struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RateLimitConfig configures the per-principal sliding window admission
// control (C7).
type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// BreakerConfig configures the LLM circuit breaker (C6).
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	WindowSeconds    int `mapstructure:"window_seconds"`
	RecoverySeconds  int `mapstructure:"recovery_seconds"`
}

// LLMConfig configures the LLM provider abstraction (C4) and its timeout
// wrapper (C5).
type LLMConfig struct {
	Provider            string  `mapstructure:"provider"`
	Model                string  `mapstructure:"model"`
	APIKey               string  `mapstructure:"api_key"`
	BaseURL              string  `mapstructure:"base_url"`
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"`
}

// CacheConfig configures the short-term cache (C8).
type CacheConfig struct {
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
	MaxValueBytes int    `mapstructure:"max_value_bytes"`
	RedisAddr     string `mapstructure:"redis_addr"`
}

// HistoryConfig configures the query history store (C9).
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// ValidatorConfig configures the SQL safety validator (C1).
type ValidatorConfig struct {
	DefaultLimit        int      `mapstructure:"default_limit"`
	AllowlistedTables    []string `mapstructure:"allowlisted_tables"`
	BlockedKeywords      []string `mapstructure:"blocked_keywords"`
}

// DatabaseConfig holds the PostgreSQL connection settings backing the
// audit sink (C2) and query history store (C9).
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	ExecutorDSN string `mapstructure:"executor_dsn"`
}

// ServerConfig holds the inbound HTTP adapter's settings.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// AuditConfig configures the audit sink (C2).
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig configures structured JSON logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration spec.md §6 enumerates as
// defaults.
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{MaxRequests: 100, WindowSeconds: 60},
		Breaker:   BreakerConfig{FailureThreshold: 5, WindowSeconds: 60, RecoverySeconds: 30},
		LLM: LLMConfig{
			Provider:            "mock",
			TimeoutSeconds:      30,
			ConfidenceThreshold: 0.7,
		},
		Cache:   CacheConfig{TTLSeconds: 1800, MaxValueBytes: 1048576},
		History: HistoryConfig{RetentionDays: 30},
		Validator: ValidatorConfig{
			DefaultLimit:      200,
			AllowlistedTables: []string{"sales_fact", "job_runs", "audit_log"},
			BlockedKeywords:   []string{"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TRUNCATE", "GRANT", "REVOKE", "COPY"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "sqlcore",
			Name:    "sqlcore",
			SSLMode: "disable",
		},
		Server:  ServerConfig{Port: 8080, ReadTimeout: "30s", WriteTimeout: "30s"},
		Audit:   AuditConfig{Enabled: true},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from an optional file and environment
// variables, layered over the defaults. A missing config file is
// tolerated; a malformed one is not.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".sqlcore"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SQLCORE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, cerrors.NewConfigurationError("error reading config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerrors.NewConfigurationError("error parsing config", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("rate_limit.max_requests", d.RateLimit.MaxRequests)
	v.SetDefault("rate_limit.window_seconds", d.RateLimit.WindowSeconds)
	v.SetDefault("breaker.failure_threshold", d.Breaker.FailureThreshold)
	v.SetDefault("breaker.window_seconds", d.Breaker.WindowSeconds)
	v.SetDefault("breaker.recovery_seconds", d.Breaker.RecoverySeconds)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSeconds)
	v.SetDefault("llm.confidence_threshold", d.LLM.ConfidenceThreshold)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.max_value_bytes", d.Cache.MaxValueBytes)
	v.SetDefault("history.retention_days", d.History.RetentionDays)
	v.SetDefault("validator.default_limit", d.Validator.DefaultLimit)
	v.SetDefault("validator.allowlisted_tables", d.Validator.AllowlistedTables)
	v.SetDefault("validator.blocked_keywords", d.Validator.BlockedKeywords)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.name", d.Database.Name)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
