package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultEngineConfig
	v.SetDefault("engine.data_dir", "./data")
	v.SetDefault("engine.report_dir", "./reports")
	v.SetDefault("engine.max_workers", 8)
	v.SetDefault("engine.run_timeout", "5m")
	v.SetDefault("engine.log_retention_days", 30)

	// Bind environment variables with DK_ prefix
	v.SetEnvPrefix("DK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Database credentials are environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &EngineConfig{
		DataDir:          v.GetString("engine.data_dir"),
		ReportDir:        v.GetString("engine.report_dir"),
		MaxWorkers:       v.GetInt("engine.max_workers"),
		RunTimeout:       v.GetDuration("engine.run_timeout"),
		LogRetentionDays: v.GetInt("engine.log_retention_days"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig rejects database credentials in config files.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("db_password") || v.IsSet("engine.db_password") {
		return fmt.Errorf("database credentials not allowed in config files (use the DK_DB_URL environment variable)")
	}
	return nil
}
