package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Relay struct {
		Address         string        `yaml:"address"`
		PublicBaseURL   string        `yaml:"public_base_url"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"relay"`

	Robot struct {
		ID   string `yaml:"id"`
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"robot"`

	Bridge struct {
		RelayURL          string        `yaml:"relay_url"`
		TelemetryInterval time.Duration `yaml:"telemetry_interval"`
		GripperInterval   time.Duration `yaml:"gripper_interval"`
		StateInterval     time.Duration `yaml:"state_interval"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
	} `yaml:"bridge"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Relay
	if c.Relay.Address == "" {
		return fmt.Errorf("relay.address must not be empty")
	}
	if c.Relay.ReadTimeout <= 0 {
		return fmt.Errorf("relay.read_timeout must be > 0")
	}
	if c.Relay.WriteTimeout <= 0 {
		return fmt.Errorf("relay.write_timeout must be > 0")
	}
	if c.Relay.ShutdownTimeout <= 0 {
		return fmt.Errorf("relay.shutdown_timeout must be > 0")
	}

	// Robot
	if c.Robot.ID == "" {
		return fmt.Errorf("robot.id must not be empty")
	}
	if c.Robot.IP == "" {
		return fmt.Errorf("robot.ip must not be empty")
	}
	if c.Robot.Port <= 0 || c.Robot.Port > 65535 {
		return fmt.Errorf("robot.port must be a valid port number")
	}

	// Bridge
	if c.Bridge.RelayURL == "" {
		return fmt.Errorf("bridge.relay_url must not be empty")
	}
	if c.Bridge.TelemetryInterval < 0 {
		return fmt.Errorf("bridge.telemetry_interval must be >= 0")
	}
	if c.Bridge.GripperInterval < 0 {
		return fmt.Errorf("bridge.gripper_interval must be >= 0")
	}
	if c.Bridge.StateInterval < 0 {
		return fmt.Errorf("bridge.state_interval must be >= 0")
	}
	if c.Bridge.HeartbeatInterval <= 0 {
		return fmt.Errorf("bridge.heartbeat_interval must be > 0")
	}
	if c.Bridge.RetryDelay <= 0 {
		return fmt.Errorf("bridge.retry_delay must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Relay.Address = ":5000"
	cfg.Relay.PublicBaseURL = ""
	cfg.Relay.ReadTimeout = 30 * time.Second
	cfg.Relay.WriteTimeout = 30 * time.Second
	cfg.Relay.ShutdownTimeout = 30 * time.Second

	cfg.Robot.ID = "Robot_Niryo_01"
	cfg.Robot.IP = "169.254.200.200"
	cfg.Robot.Port = 9090

	cfg.Bridge.RelayURL = "ws://localhost:5000/robot"
	cfg.Bridge.TelemetryInterval = 100 * time.Millisecond
	cfg.Bridge.GripperInterval = time.Second
	cfg.Bridge.StateInterval = 500 * time.Millisecond
	cfg.Bridge.HeartbeatInterval = 5 * time.Second
	cfg.Bridge.RetryDelay = 3 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Rate limiting defaults (disabled by default: a private relay
	// typically serves exactly one operator and one chat webhook)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("ROBOTRELAY_ADDRESS"); addr != "" {
		c.Relay.Address = addr
	}
	if url := os.Getenv("ROBOTRELAY_PUBLIC_BASE_URL"); url != "" {
		c.Relay.PublicBaseURL = url
	}
	if id := os.Getenv("ROBOTRELAY_ROBOT_ID"); id != "" {
		c.Robot.ID = id
	}
	if ip := os.Getenv("ROBOTRELAY_ROBOT_IP"); ip != "" {
		c.Robot.IP = ip
	}
	if port := os.Getenv("ROBOTRELAY_ROBOT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Robot.Port = p
		}
	}
	if url := os.Getenv("ROBOTRELAY_RELAY_URL"); url != "" {
		c.Bridge.RelayURL = url
	}
	if level := os.Getenv("ROBOTRELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
