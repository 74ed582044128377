package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/701789262a/backend-dailychat/config"
	"github.com/701789262a/backend-dailychat/internal/identify"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNodeConfigLoad(t *testing.T) {
	path := writeConfig(t, `
name: node-a
queue:
  capacity: 4
identify:
  levels: 3
  compare_backoff: 250ms
batch:
  strategy: weighted
  floor: 0.1
release:
  url: http://dispatcher:5000
`)
	t.Setenv("VOICEID_QUEUE_CAPACITY", "8")

	var cfg NodeConfig
	if err := config.LoadConfig("node", &cfg, config.WithConfigFile(path)); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Name != "node-a" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Queue.Capacity != 8 {
		t.Errorf("env override lost: capacity = %d", cfg.Queue.Capacity)
	}
	if cfg.Identify.Levels != 3 || cfg.Identify.CompareBackoff != 250*time.Millisecond {
		t.Errorf("identify = %+v", cfg.Identify)
	}
	if cfg.Identify.Workers != 4 || cfg.Identify.Threshold != 0.25 {
		t.Errorf("identify defaults not applied: %+v", cfg.Identify)
	}
	if cfg.Server.Port != DefaultNodePort {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Transcription.Provider != "whisper" {
		t.Errorf("Transcription.Provider = %q", cfg.Transcription.Provider)
	}
	if _, ok := cfg.Strategy(nil).(identify.ScoreWeighted); !ok {
		t.Errorf("Strategy = %T, want ScoreWeighted", cfg.Strategy(nil))
	}
}

func TestNodeConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NodeConfig)
		errMsg string
	}{
		{"defaults", func(*NodeConfig) {}, ""},
		{"unknown strategy", func(c *NodeConfig) { c.Batch.Strategy = "random" }, "batch.strategy"},
		{"floor above one", func(c *NodeConfig) { c.Batch.Floor = 1.5 }, "batch.floor"},
		{"threshold", func(c *NodeConfig) { c.Identify.Threshold = 1 }, "threshold"},
		{"ntfy without url", func(c *NodeConfig) { c.Notify.Ntfy.Enabled = true }, "notify.ntfy.url"},
		{"no release target", func(c *NodeConfig) {
			c.Release.URL = ""
			c.Release.Service = ""
		}, "release"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NodeConfig{}
			cfg.Storage.Provider = "memory"
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestRegistryConfig(t *testing.T) {
	cfg := RegistryConfig{Probe: ProbeConfig{Ranges: []string{"10.0.0.0/30"}}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Probe.Port != DefaultNodePort || cfg.Server.Port != 5001 {
		t.Errorf("ports = %d/%d", cfg.Probe.Port, cfg.Server.Port)
	}
	pc := cfg.Probe.Prober()
	if pc.DialTimeout != cfg.Probe.Timeout || pc.Port != cfg.Probe.Port {
		t.Errorf("Prober() = %+v", pc)
	}

	cfg.Probe.Ranges = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty ranges")
	}
	cfg.Probe.Ranges = []string{"not-a-cidr"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for malformed range")
	}
}

func TestDispatcherConfig(t *testing.T) {
	cfg := DispatcherConfig{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Staleness != 20*time.Second || cfg.NodePort != DefaultNodePort {
		t.Errorf("defaults = %v/%d", cfg.Staleness, cfg.NodePort)
	}
	if cfg.BusySet.Backend != BusySetMemory {
		t.Errorf("BusySet.Backend = %q", cfg.BusySet.Backend)
	}

	cfg.BusySet.Backend = "etcd"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "busy_set.backend") {
		t.Errorf("expected busy_set error, got %v", err)
	}
}

func TestLinkResolver(t *testing.T) {
	static := Link{URL: "http://registry:5001"}
	got, err := static.Resolver(nil)(context.Background())
	if err != nil || got != "http://registry:5001" {
		t.Errorf("static = %q, %v", got, err)
	}

	dynamic := Link{Service: "voiceid-registry"}
	if _, err := dynamic.Resolver(nil)(context.Background()); err == nil {
		t.Error("expected error without a discovery client")
	}
}
