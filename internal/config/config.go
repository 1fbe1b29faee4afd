// Package config loads the pipeline configuration from a YAML file.
// Environment variables referenced as ${VAR} in the file are expanded
// at load time, so secrets stay out of the file itself.
package config

import (
	"time"

	"github.com/drossen/ticketsmith/internal/resilience"
	"github.com/drossen/ticketsmith/internal/store"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Generation GenerationConfig `yaml:"generation"`
	SourceHost SourceHostConfig `yaml:"source_host"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Circuits   []CircuitConfig  `yaml:"circuits"`
	Store      StoreConfig      `yaml:"store"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// ServerConfig holds management HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TrackerConfig holds issue tracker connection and query settings.
type TrackerConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Username        string   `yaml:"username"`
	APIToken        string   `yaml:"api_token"`
	Project         string   `yaml:"project"`
	Statuses        []string `yaml:"statuses"`
	DoneStatus      string   `yaml:"done_status"`
	ReprocessLabels []string `yaml:"reprocess_labels"`
	TriggerComments []string `yaml:"trigger_comments"`
	LookbackDays    int      `yaml:"lookback_days"`
}

// GenerationConfig holds code generation service settings.
type GenerationConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SourceHostConfig holds source host settings and the target repo for
// published artifacts.
type SourceHostConfig struct {
	AccessToken  string        `yaml:"access_token"`
	WorkspaceDir string        `yaml:"workspace_dir"`
	Owner        string        `yaml:"owner"`
	Repo         string        `yaml:"repo"`
	BaseBranch   string        `yaml:"base_branch"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PipelineConfig tunes the poll loop and the retry schedule. MaxAttempts
// has no default; every deployment must state its ceiling explicitly.
type PipelineConfig struct {
	PollInterval   time.Duration   `yaml:"poll_interval"`
	MaxAttempts    int             `yaml:"max_attempts"`
	Backoff        []time.Duration `yaml:"backoff"`
	StaleAfter     time.Duration   `yaml:"stale_after"`
	TrackerTimeout time.Duration   `yaml:"tracker_timeout"`
}

// CircuitConfig overrides breaker settings for one service name.
type CircuitConfig struct {
	Service          string        `yaml:"service"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// StoreConfig selects where tracking records persist.
type StoreConfig struct {
	Type  string            `yaml:"type"` // file, redis
	Path  string            `yaml:"path"` // file store only
	Redis store.RedisConfig `yaml:"redis"`
}

// NotifyConfig holds the optional outcome webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// BreakerSettings converts the circuit overrides into the form the
// resilience manager consumes.
func (c *AppConfig) BreakerSettings() map[string]resilience.Settings {
	settings := make(map[string]resilience.Settings, len(c.Circuits))
	for _, cc := range c.Circuits {
		settings[cc.Service] = resilience.Settings{
			FailureThreshold: cc.FailureThreshold,
			Cooldown:         cc.Cooldown,
		}
	}
	return settings
}
