package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 8085
  shutdown_timeout: 5s
backend:
  base_url: http://localhost:8000
  timeout: 3s
health:
  timeout: 5s
  settle_delay: 1500ms
poller:
  interval: 5s
push:
  transport: websocket
  websocket_url: ws://localhost:8000/ws/portfolio
  coalesce_window: 150ms
navigation:
  pending_ttl: 10s
voice:
  enabled: true
  debounce: 1s
  target_screen: Assistant
  backends:
    - name: socket
      url: ws://localhost:7700/events
      keyword: finsight
    - name: exec
      command: wakehelper
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesDurationsAndNesting(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Health.SettleDelay != 1500*time.Millisecond {
		t.Errorf("settle delay = %v", cfg.Health.SettleDelay)
	}
	if cfg.Push.Transport != "websocket" {
		t.Errorf("transport = %q", cfg.Push.Transport)
	}
	if len(cfg.Voice.Backends) != 2 || cfg.Voice.Backends[0].Name != "socket" {
		t.Errorf("voice backends = %+v", cfg.Voice.Backends)
	}
	if cfg.Voice.Backends[1].Command != "wakehelper" {
		t.Errorf("exec backend command = %q", cfg.Voice.Backends[1].Command)
	}
}

func TestValidateRejectsBadTransport(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Push.Transport = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown transport must fail validation")
	}

	cfg.Push.Transport = "kafka"
	cfg.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Error("kafka transport without brokers must fail validation")
	}
}

func TestValidateRequiresBackendURL(t *testing.T) {
	cfg := &Config{Environment: "test"}
	if err := cfg.Validate(); err == nil {
		t.Error("missing backend.base_url must fail validation")
	}
}

func TestValidateRejectsUnknownVoiceAdapter(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Voice.Backends[0].Name = "telepathy"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown voice adapter must fail validation")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://override:9000")
	t.Setenv("PUSH_TRANSPORT", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}

	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("base url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Push.Transport != "kafka" || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("transport/brokers = %q/%v", cfg.Push.Transport, cfg.Kafka.Brokers)
	}
}
