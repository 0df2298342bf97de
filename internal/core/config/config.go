// Package config provides configuration management for the DueKeeper engine.
package config

import (
	"fmt"
	"time"
)

// EngineConfig holds configuration for a reconciliation run.
type EngineConfig struct {
	DataDir          string
	ReportDir        string
	MaxWorkers       int
	RunTimeout       time.Duration
	LogRetentionDays int
}

// DefaultEngineConfig returns configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DataDir:          "./data",
		ReportDir:        "./reports",
		MaxWorkers:       8,
		RunTimeout:       5 * time.Minute,
		LogRetentionDays: 30,
	}
}

// Validate checks positive worker count, timeout and retention window.
func (cfg *EngineConfig) Validate() error {
	if cfg.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %v", cfg.RunTimeout)
	}
	if cfg.LogRetentionDays <= 0 {
		return fmt.Errorf("log_retention_days must be positive, got %d", cfg.LogRetentionDays)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if cfg.ReportDir == "" {
		return fmt.Errorf("report_dir must not be empty")
	}
	return nil
}
