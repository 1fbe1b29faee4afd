package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/drossen/ticketsmith/internal/retry"
)

// Load reads configuration from a YAML file, expands ${VAR} references
// from the environment, applies defaults, and validates.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Tracker.LookbackDays == 0 {
		cfg.Tracker.LookbackDays = 7
	}
	if cfg.Pipeline.PollInterval == 0 {
		cfg.Pipeline.PollInterval = 60 * time.Second
	}
	if len(cfg.Pipeline.Backoff) == 0 {
		cfg.Pipeline.Backoff = retry.DefaultBackoff
	}
	if cfg.Pipeline.StaleAfter == 0 {
		cfg.Pipeline.StaleAfter = time.Hour
	}
	if cfg.Pipeline.TrackerTimeout == 0 {
		cfg.Pipeline.TrackerTimeout = 30 * time.Second
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 2 * time.Minute
	}
	if cfg.SourceHost.Timeout == 0 {
		cfg.SourceHost.Timeout = 2 * time.Minute
	}
	if cfg.SourceHost.BaseBranch == "" {
		cfg.SourceHost.BaseBranch = "main"
	}
	if cfg.SourceHost.WorkspaceDir == "" {
		cfg.SourceHost.WorkspaceDir = os.TempDir()
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "file"
	}
	if cfg.Store.Type == "file" && cfg.Store.Path == "" {
		cfg.Store.Path = "data/tracking.json"
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker.base_url is required")
	}
	if cfg.Tracker.Project == "" {
		return fmt.Errorf("tracker.project is required")
	}
	if cfg.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if cfg.SourceHost.AccessToken == "" {
		return fmt.Errorf("source_host.access_token is required")
	}
	if cfg.SourceHost.Owner == "" || cfg.SourceHost.Repo == "" {
		return fmt.Errorf("source_host.owner and source_host.repo are required")
	}
	if cfg.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be set to at least 1")
	}
	switch cfg.Store.Type {
	case "file", "redis":
	default:
		return fmt.Errorf("store.type must be file or redis, got %q", cfg.Store.Type)
	}
	return nil
}
