// Package config loads agent configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Budget  BudgetConfig  `mapstructure:"budget"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig points at the monitor service JSON-RPC endpoint
type BackendConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// AgentConfig defines the poll loop behavior
type AgentConfig struct {
	PollInterval   string `mapstructure:"poll_interval"`
	AutoCloseDelay string `mapstructure:"autoclose_delay"`
	NameCacheSize  int    `mapstructure:"name_cache_size"`
}

// ServerConfig defines the dashboard API and metrics listeners
type ServerConfig struct {
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	BindAddress    string   `mapstructure:"bind_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// PolicyConfig points at the session eligibility policies
type PolicyConfig struct {
	// Dir is a directory of .rego files. Empty uses the built-in policy.
	Dir string `mapstructure:"dir"`
}

// BudgetConfig holds household defaults shown when the monitor service
// has no configuration of its own
type BudgetConfig struct {
	DailyAllowanceMinutes int `mapstructure:"daily_allowance_minutes"`
	RolloverDays          int `mapstructure:"rollover_days"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PLAYWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.url", "http://127.0.0.1:8090/rpc")
	v.SetDefault("backend.timeout", "5s")

	// Agent defaults
	v.SetDefault("agent.poll_interval", "1s")
	v.SetDefault("agent.autoclose_delay", "30s")
	v.SetDefault("agent.name_cache_size", 256)

	// Server defaults
	v.SetDefault("server.api_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Policy defaults (empty dir means built-in policy)
	v.SetDefault("policy.dir", "")

	// Budget defaults
	v.SetDefault("budget.daily_allowance_minutes", 120)
	v.SetDefault("budget.rollover_days", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend URL is required")
	}

	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	// Duration fields are kept as strings for config file readability;
	// reject unparseable values here rather than at first use.
	durations := map[string]string{
		"backend.timeout":             cfg.Backend.Timeout,
		"agent.poll_interval":         cfg.Agent.PollInterval,
		"agent.autoclose_delay":       cfg.Agent.AutoCloseDelay,
		"storage.redis.dial_timeout":  cfg.Storage.Redis.DialTimeout,
		"storage.redis.read_timeout":  cfg.Storage.Redis.ReadTimeout,
		"storage.redis.write_timeout": cfg.Storage.Redis.WriteTimeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if cfg.Budget.DailyAllowanceMinutes <= 0 {
		return fmt.Errorf("daily allowance must be positive: %d", cfg.Budget.DailyAllowanceMinutes)
	}
	if cfg.Budget.RolloverDays < 0 {
		return fmt.Errorf("rollover days cannot be negative: %d", cfg.Budget.RolloverDays)
	}

	return nil
}
