package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "quartermaster.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default invalid: %v", err)
	}
	if Default().Capabilities.RequestAnyone {
		t.Fatalf("open requests should be off by default")
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := write(t, `
agent: {name: qm-7}
capabilities: {trade: false}
planner: {max_depth: 4}
executor: {cooperative_timeout: 90s, reminder_interval: 5s}
redis_url: redis://localhost:6379/0
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Agent.Name = "qm-7"
	want.Capabilities.Trade = false
	want.Planner.MaxDepth = 4
	want.Executor.CooperativeTimeout = 90 * time.Second
	want.Executor.ReminderInterval = 5 * time.Second
	want.RedisURL = "redis://localhost:6379/0"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if cc := cfg.ClientConfig(); cc.AgentName != "qm-7" || cc.URL != want.ServerURL || cc.WorldPreference != "OVERWORLD" {
		t.Fatalf("ClientConfig=%+v", cc)
	}
}

func TestLoad_RejectsNonPositiveBounds(t *testing.T) {
	p := write(t, "planner: {max_depth: 0}\nexecutor: {dig_retries: -1}\n")
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"planner.max_depth", "executor.dig_retries"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "quartermaster.yaml"))
	if err != nil {
		t.Fatalf("Load shipped config: %v", err)
	}
	if cfg.Agent.Name == "" || cfg.Executor.OpenRequestTimeout != 120*time.Second {
		t.Fatalf("unexpected shipped config: %+v", cfg)
	}
}
