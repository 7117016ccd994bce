package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FinSight/pkg/util"
)

// VoiceBackendConfig describes one entry of the wake-word cascade, in
// fallback order.
type VoiceBackendConfig struct {
	Name    string   `yaml:"name"`    // adapter kind: "socket" or "exec"
	URL     string   `yaml:"url"`     // socket adapter: daemon websocket url
	Command string   `yaml:"command"` // exec adapter: helper binary
	Args    []string `yaml:"args"`
	Keyword string   `yaml:"keyword"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`
	Health struct {
		Timeout     time.Duration `yaml:"timeout"`
		SettleDelay time.Duration `yaml:"settle_delay"`
	} `yaml:"health"`
	Poller struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"poller"`
	Push struct {
		Transport       string        `yaml:"transport"` // "websocket" or "kafka"
		WebSocketURL    string        `yaml:"websocket_url"`
		Channels        []string      `yaml:"channels"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		CoalesceWindow  time.Duration `yaml:"coalesce_window"`
		CoalesceMaxWait time.Duration `yaml:"coalesce_max_wait"`
	} `yaml:"push"`
	Query struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"query"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		DeltasTopic    string   `yaml:"deltas_topic"`
		TelemetryTopic string   `yaml:"telemetry_topic"`
		LogsTopic      string   `yaml:"logs_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	History struct {
		Enabled         bool          `yaml:"enabled"`
		UseQueue        bool          `yaml:"use_queue"`
		BatchSize       int           `yaml:"batch_size"`
		BatchTimeout    time.Duration `yaml:"batch_timeout"`
		Retention       time.Duration `yaml:"retention"`
		CleanupSchedule string        `yaml:"cleanup_schedule"` // cron spec
	} `yaml:"history"`
	Voice struct {
		Enabled        bool                 `yaml:"enabled"`
		Debounce       time.Duration        `yaml:"debounce"`
		TargetScreen   string               `yaml:"target_screen"`
		Screens        []string             `yaml:"screens"`
		MatchThreshold float64              `yaml:"match_threshold"`
		Backends       []VoiceBackendConfig `yaml:"backends"`
	} `yaml:"voice"`
	Navigation struct {
		PendingTTL time.Duration `yaml:"pending_ttl"`
		ParamsTTL  time.Duration `yaml:"params_ttl"`
	} `yaml:"navigation"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Health.Timeout <= 0 {
		c.Health.Timeout = 5 * time.Second
	}
	if c.Health.SettleDelay <= 0 {
		c.Health.SettleDelay = 1500 * time.Millisecond
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = 15 * time.Second
	}
	if c.Query.CacheTTL <= 0 {
		c.Query.CacheTTL = 30 * time.Second
	}
	if c.Voice.Debounce <= 0 {
		c.Voice.Debounce = time.Second
	}
	if c.Navigation.PendingTTL <= 0 {
		c.Navigation.PendingTTL = 10 * time.Second
	}
	if c.Navigation.ParamsTTL <= 0 {
		c.Navigation.ParamsTTL = 30 * time.Second
	}
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("PUSH_TRANSPORT"); v != "" {
		c.Push.Transport = v
	}
	if v := os.Getenv("PUSH_WEBSOCKET_URL"); v != "" {
		c.Push.WebSocketURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_DELTAS_TOPIC"); v != "" {
		c.Kafka.DeltasTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Push.Transport == "" {
		return fmt.Errorf("push.transport is required")
	}
	if c.Push.Transport != "websocket" && c.Push.Transport != "kafka" {
		return fmt.Errorf("push.transport must be 'websocket' or 'kafka', got '%s'", c.Push.Transport)
	}
	if c.Push.Transport == "websocket" && c.Push.WebSocketURL == "" {
		return fmt.Errorf("push.websocket_url is required for the websocket transport")
	}
	if c.Push.Transport == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty for the kafka transport")
	}
	if c.Voice.Enabled && len(c.Voice.Backends) == 0 {
		return fmt.Errorf("voice.backends cannot be empty when voice is enabled")
	}
	for i, b := range c.Voice.Backends {
		if b.Name != "socket" && b.Name != "exec" {
			return fmt.Errorf("voice.backends[%d].name must be 'socket' or 'exec', got '%s'", i, b.Name)
		}
	}
	if c.History.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when history is enabled")
	}
	return nil
}
