// Package config loads gateway configuration from the environment.
//
// Every protocol tunable the design leaves open is a documented constant
// here: the score decay half-life, the envelope reorder window, the
// containment threshold. Components receive values by injection, never by
// reading the environment themselves.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Channel   ChannelConfig
	Threat    ThreatConfig
	Isolation IsolationConfig
	Honeypot  HoneypotConfig
	Policy    PolicyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// PolicyConfig locates the operator approval policy.
type PolicyConfig struct {
	// Path points at the TOML approval table. Empty runs with an empty
	// observe-only policy: unknown extensions connect with zero grants.
	Path string `envconfig:"POLICY_PATH" default:""`
}

// ServerConfig holds the audit/report HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ChannelConfig holds secure channel protocol constants.
type ChannelConfig struct {
	// ReorderWindow is the number of sequence positions an envelope may
	// skip ahead before being rejected as out of order.
	ReorderWindow uint64 `envconfig:"CHANNEL_REORDER_WINDOW" default:"8"`
	// CompressThreshold is the payload size in bytes above which the
	// channel applies zstd before encrypting.
	CompressThreshold int `envconfig:"CHANNEL_COMPRESS_THRESHOLD" default:"4096"`
}

// ThreatConfig holds scoring engine parameters.
type ThreatConfig struct {
	// ContainThreshold is the score at which a session is contained.
	ContainThreshold float64 `envconfig:"THREAT_CONTAIN_THRESHOLD" default:"50"`
	// DecayHalfLife is the exponential decay half-life for event weights.
	DecayHalfLife time.Duration `envconfig:"THREAT_DECAY_HALF_LIFE" default:"5m"`
}

// IsolationConfig holds execution confinement parameters.
type IsolationConfig struct {
	// CallTimeout bounds every privileged operation.
	CallTimeout time.Duration `envconfig:"ISOLATION_CALL_TIMEOUT" default:"10s"`
	// CallsPerSecond and CallBurst bound per-session call rate.
	CallsPerSecond float64 `envconfig:"ISOLATION_CALLS_PER_SECOND" default:"20"`
	CallBurst      int     `envconfig:"ISOLATION_CALL_BURST" default:"40"`
	// RateLimitCooldown is how long a session stays RateLimited before
	// automatically returning to Active.
	RateLimitCooldown time.Duration `envconfig:"ISOLATION_RATE_COOLDOWN" default:"30s"`
	// MaxBytesPerSession caps total bytes transferred before an
	// excessive-network threat event fires.
	MaxBytesPerSession int64 `envconfig:"ISOLATION_MAX_BYTES" default:"104857600"`
	// MaxOpenHandles caps concurrently open resource handles.
	MaxOpenHandles int `envconfig:"ISOLATION_MAX_HANDLES" default:"64"`
}

// HoneypotConfig holds deception environment parameters.
type HoneypotConfig struct {
	// DecoyRoot optionally points at a directory tree used to seed the
	// honeypot filesystem. Empty uses the built-in corpus.
	DecoyRoot string `envconfig:"HONEYPOT_DECOY_ROOT" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8400", Host: "0.0.0.0"},
		Channel: ChannelConfig{
			ReorderWindow:     8,
			CompressThreshold: 4096,
		},
		Threat: ThreatConfig{
			ContainThreshold: 50,
			DecayHalfLife:    5 * time.Minute,
		},
		Isolation: IsolationConfig{
			CallTimeout:        10 * time.Second,
			CallsPerSecond:     20,
			CallBurst:          40,
			RateLimitCooldown:  30 * time.Second,
			MaxBytesPerSession: 100 << 20,
			MaxOpenHandles:     64,
		},
		Logging:   LogConfig{Level: "info", Development: false},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200, Enabled: true},
	}
}
