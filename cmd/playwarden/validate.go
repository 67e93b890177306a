package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goodtune/playwarden/internal/config"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Playwarden configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the effective configuration after validation")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// Load configuration
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 60))
		_, _ = fmt.Fprintln(os.Stdout, "EFFECTIVE CONFIGURATION")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 60))
		dumpEffectiveConfig(configPath)
	}

	return nil
}

// dumpEffectiveConfig prints the merged file-plus-defaults view the
// agent would actually run with.
func dumpEffectiveConfig(path string) {
	v := viper.New()
	setDefaultsForDump(v)
	v.SetConfigFile(path)
	_ = v.ReadInConfig()

	keys := v.AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(os.Stdout, "%-36s %v\n", key+":", v.Get(key))
	}
}

// setDefaultsForDump sets default configuration values (mirrors the
// config package defaults)
func setDefaultsForDump(v *viper.Viper) {
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
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Policy defaults
	v.SetDefault("policy.dir", "")

	// Budget defaults
	v.SetDefault("budget.daily_allowance_minutes", 120)
	v.SetDefault("budget.rollover_days", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	allKeys := v.AllKeys()
	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range allKeys {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	return map[string]bool{
		// Backend
		"backend.url":     true,
		"backend.timeout": true,

		// Agent
		"agent.poll_interval":   true,
		"agent.autoclose_delay": true,
		"agent.name_cache_size": true,

		// Server
		"server.api_port":        true,
		"server.metrics_port":    true,
		"server.bind_address":    true,
		"server.allowed_origins": true,

		// Storage
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Policy
		"policy.dir": true,

		// Budget
		"budget.daily_allowance_minutes": true,
		"budget.rollover_days":           true,

		// Logging
		"logging.level":  true,
		"logging.format": true,
	}
}
