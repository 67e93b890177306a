package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.URL != "http://127.0.0.1:8090/rpc" {
		t.Errorf("backend URL = %s", cfg.Backend.URL)
	}
	if cfg.Agent.PollInterval != "1s" {
		t.Errorf("poll interval = %s", cfg.Agent.PollInterval)
	}
	if cfg.Server.APIPort != 8080 || cfg.Server.MetricsPort != 9090 {
		t.Errorf("ports = %d/%d, want 8080/9090", cfg.Server.APIPort, cfg.Server.MetricsPort)
	}
	if cfg.Budget.DailyAllowanceMinutes != 120 {
		t.Errorf("daily allowance = %d, want 120", cfg.Budget.DailyAllowanceMinutes)
	}
	if cfg.Budget.RolloverDays != 3 {
		t.Errorf("rollover days = %d, want 3", cfg.Budget.RolloverDays)
	}
	if cfg.Storage.Redis.Host != "127.0.0.1" || cfg.Storage.Redis.Port != 6379 {
		t.Errorf("redis addr = %s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port)
	}
	if cfg.Policy.Dir != "" {
		t.Errorf("policy dir = %q, want built-in", cfg.Policy.Dir)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
backend:
  url: http://monitor.local:9000/rpc
  timeout: 2s
agent:
  poll_interval: 500ms
server:
  api_port: 9001
policy:
  dir: /etc/playwarden/policies
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.URL != "http://monitor.local:9000/rpc" {
		t.Errorf("backend URL = %s", cfg.Backend.URL)
	}
	if cfg.Agent.PollInterval != "500ms" {
		t.Errorf("poll interval = %s", cfg.Agent.PollInterval)
	}
	if cfg.Server.APIPort != 9001 {
		t.Errorf("API port = %d", cfg.Server.APIPort)
	}
	if cfg.Policy.Dir != "/etc/playwarden/policies" {
		t.Errorf("policy dir = %s", cfg.Policy.Dir)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("metrics port = %d, want default 9090", cfg.Server.MetricsPort)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad poll interval", content: "agent:\n  poll_interval: soon\n"},
		{name: "bad api port", content: "server:\n  api_port: 70000\n"},
		{name: "missing backend url", content: "backend:\n  url: \"\"\n"},
		{name: "zero allowance", content: "budget:\n  daily_allowance_minutes: 0\n"},
		{name: "bad redis timeout", content: "storage:\n  redis:\n    read_timeout: fast\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected Load to fail")
			}
		})
	}
}
