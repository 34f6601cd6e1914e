// Package config loads process configuration the way the teacher's own
// internal/config package is called from main.go (env + optional file,
// surfaced as a single typed Config struct).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env  string
	Port string
}

// DatabaseConfig holds the metadata store connection string.
type DatabaseConfig struct {
	URL string
}

// OrchestratorConfig holds the orchestrator's settings. TickInterval drives
// the reconciliation loop. DefaultInactivationTimeout is loaded but not
// passed to the orchestrator: stop requests without a timeout wait
// ops.DefaultWaitForInactivationTimeout.
type OrchestratorConfig struct {
	TickInterval               time.Duration
	DefaultInactivationTimeout time.Duration
}

// Config is the fully resolved process configuration.
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Orchestrator OrchestratorConfig
}

// Load resolves configuration from environment variables prefixed
// ORCHESTRATOR_, with an optional config.yaml in the working directory,
// falling back to defaults sufficient to run against the in-memory
// metadata store.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "postgres://localhost:5432/orchestrator?sslmode=disable")
	v.SetDefault("orchestrator.tick_interval", "2s")
	v.SetDefault("orchestrator.default_inactivation_timeout", "120s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	tickInterval, err := time.ParseDuration(v.GetString("orchestrator.tick_interval"))
	if err != nil {
		return nil, err
	}
	inactivationTimeout, err := time.ParseDuration(v.GetString("orchestrator.default_inactivation_timeout"))
	if err != nil {
		return nil, err
	}

	return &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Orchestrator: OrchestratorConfig{
			TickInterval:               tickInterval,
			DefaultInactivationTimeout: inactivationTimeout,
		},
	}, nil
}
