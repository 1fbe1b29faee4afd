package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
tracker:
  base_url: https://example.atlassian.net
  project: PIPE
generation:
  api_key: test-key
source_host:
  access_token: test-token
  owner: acme
  repo: generated
pipeline:
  max_attempts: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Pipeline.PollInterval != 60*time.Second {
		t.Errorf("expected default poll interval 60s, got %s", cfg.Pipeline.PollInterval)
	}
	if len(cfg.Pipeline.Backoff) != 4 || cfg.Pipeline.Backoff[0] != 5*time.Minute {
		t.Errorf("expected default backoff table, got %v", cfg.Pipeline.Backoff)
	}
	if cfg.Store.Type != "file" || cfg.Store.Path != "data/tracking.json" {
		t.Errorf("expected file store defaults, got %+v", cfg.Store)
	}
	if cfg.Tracker.LookbackDays != 7 {
		t.Errorf("expected default lookback 7, got %d", cfg.Tracker.LookbackDays)
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_TRACKER_TOKEN", "s3cret")
	defer os.Unsetenv("TEST_TRACKER_TOKEN")

	content := strings.Replace(minimalConfig,
		"project: PIPE",
		"project: PIPE\n  api_token: ${TEST_TRACKER_TOKEN}", 1)

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tracker.APIToken != "s3cret" {
		t.Errorf("expected token s3cret, got %s", cfg.Tracker.APIToken)
	}
}

func TestLoad_MaxAttemptsRequired(t *testing.T) {
	content := strings.Replace(minimalConfig, "max_attempts: 3", "max_attempts: 0", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected error for missing max_attempts")
	}
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	content := minimalConfig + `
store:
  type: etcd
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}

func TestLoad_BreakerOverrides(t *testing.T) {
	content := minimalConfig + `
circuits:
  - service: generation
    failure_threshold: 10
    cooldown: 5m
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	settings := cfg.BreakerSettings()
	got, ok := settings["generation"]
	if !ok {
		t.Fatal("expected generation override")
	}
	if got.FailureThreshold != 10 || got.Cooldown != 5*time.Minute {
		t.Errorf("unexpected settings: %+v", got)
	}
}
