package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME at an empty dir so a developer's ~/.pulse.yaml is ignored.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Server != want.Server || cfg.Engine != want.Engine || cfg.Log != want.Log || cfg.Metrics != want.Metrics {
		t.Errorf("cfg = %+v, want %+v", cfg, want)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37780" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	data := `
server:
  port: 4100
engine:
  sweep_interval: 30m
  audit_retention: 168h
  geo_bucket: eu-central
  persist: false
log:
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4100 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Engine.SweepInterval != 30*time.Minute || cfg.Engine.GeoBucket != "eu-central" || cfg.Engine.Persist {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.AuditRetention != 7*24*time.Hour {
		t.Errorf("audit_retention = %s", cfg.Engine.AuditRetention)
	}
	if cfg.Engine.TopN != 10 {
		t.Errorf("top_n default lost: %d", cfg.Engine.TopN)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadHomeFile(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, ".pulse.yaml"), []byte("engine:\n  top_n: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TopN != 3 {
		t.Errorf("top_n = %d, want 3", cfg.Engine.TopN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PULSE_SERVER_PORT", "4200")
	t.Setenv("PULSE_ENGINE_POLICY_PATH", "/etc/pulse/policy.cedar")
	t.Setenv("PULSE_METRICS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4200 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Engine.PolicyPath != "/etc/pulse/policy.cedar" {
		t.Errorf("policy path = %q", cfg.Engine.PolicyPath)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by env")
	}
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}

	t.Setenv("PULSE_SERVER_PORT", "70000")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("err = %v, want port range error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sweep too short", func(c *Config) { c.Engine.SweepInterval = time.Second }},
		{"top_n zero", func(c *Config) { c.Engine.TopN = 0 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"retention too short", func(c *Config) { c.Engine.AuditRetention = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
