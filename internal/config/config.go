package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CreelConfig represents the top-level creel.yml configuration.
type CreelConfig struct {
	Version    string           `yaml:"version"`
	Instance   string           `yaml:"instance"`
	Redis      RedisConfig      `yaml:"redis"`
	LogLevel   string           `yaml:"log_level,omitempty"` // debug, info, warn, error (default: info)
	Correlator CorrelatorConfig `yaml:"correlator,omitempty"`
	Prompts    PromptsConfig    `yaml:"prompts,omitempty"`
	Notify     NotifyConfig     `yaml:"notify,omitempty"`
}

// RedisConfig specifies the Redis connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// CorrelatorConfig specifies burst correlation timing.
// Two independent timeouts: the short quiet period coalesces a burst's
// frames into one settled event, the long binding TTL bounds how long an
// idle burst key may keep correlation state alive.
type CorrelatorConfig struct {
	QuietPeriodMs int `yaml:"quiet_period_ms,omitempty"` // Default: 1500
	BindingTTLMs  int `yaml:"binding_ttl_ms,omitempty"`  // Default: 300000 (5 minutes)
}

// QuietPeriod returns the debounce quiet period as a duration.
func (c *CorrelatorConfig) QuietPeriod() time.Duration {
	return time.Duration(c.QuietPeriodMs) * time.Millisecond
}

// BindingTTL returns the burst binding lifetime as a duration.
func (c *CorrelatorConfig) BindingTTL() time.Duration {
	return time.Duration(c.BindingTTLMs) * time.Millisecond
}

// PromptsConfig specifies pending-prompt expiry.
type PromptsConfig struct {
	TTLMs int `yaml:"ttl_ms,omitempty"` // Default: 600000 (10 minutes)
}

// TTL returns the prompt lifetime as a duration.
func (c *PromptsConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// NotifyConfig specifies notification fan-out behaviour.
type NotifyConfig struct {
	MaxAlbum      int          `yaml:"max_album,omitempty"`       // Photos per album, capped at 10 by the transport
	SendTimeoutMs int          `yaml:"send_timeout_ms,omitempty"` // Per-recipient delivery timeout. Default: 5000
	Policy        PolicyConfig `yaml:"policy,omitempty"`
}

// SendTimeout returns the per-recipient delivery timeout as a duration.
func (c *NotifyConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

// PolicyConfig is the default recipient policy applied to shipment events.
type PolicyConfig struct {
	Managers      string `yaml:"managers,omitempty"` // all, by_client, or none. Default: all
	IncludeClient *bool  `yaml:"include_client,omitempty"`
	ExcludeAuthor *bool  `yaml:"exclude_author,omitempty"`
}

// IncludeClientOrDefault returns the include_client setting, defaulting to true.
func (p *PolicyConfig) IncludeClientOrDefault() bool {
	return p.IncludeClient == nil || *p.IncludeClient
}

// ExcludeAuthorOrDefault returns the exclude_author setting, defaulting to true.
func (p *PolicyConfig) ExcludeAuthorOrDefault() bool {
	return p.ExcludeAuthor == nil || *p.ExcludeAuthor
}

// Validate performs strict validation on the configuration.
func (c *CreelConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Correlator.QuietPeriodMs < 0 {
		return fmt.Errorf("correlator.quiet_period_ms cannot be negative")
	}
	if c.Correlator.BindingTTLMs < 0 {
		return fmt.Errorf("correlator.binding_ttl_ms cannot be negative")
	}
	if c.Correlator.QuietPeriodMs > c.Correlator.BindingTTLMs {
		return fmt.Errorf("correlator.quiet_period_ms cannot exceed correlator.binding_ttl_ms")
	}
	if c.Prompts.TTLMs < 0 {
		return fmt.Errorf("prompts.ttl_ms cannot be negative")
	}
	if c.Notify.MaxAlbum < 1 || c.Notify.MaxAlbum > 10 {
		return fmt.Errorf("notify.max_album must be between 1 and 10")
	}
	if c.Notify.SendTimeoutMs < 0 {
		return fmt.Errorf("notify.send_timeout_ms cannot be negative")
	}
	switch c.Notify.Policy.Managers {
	case "all", "by_client", "none":
	default:
		return fmt.Errorf("notify.policy.managers must be all, by_client, or none (got: %s)", c.Notify.Policy.Managers)
	}
	return nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *CreelConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Correlator.QuietPeriodMs == 0 {
		c.Correlator.QuietPeriodMs = 1500
	}
	if c.Correlator.BindingTTLMs == 0 {
		c.Correlator.BindingTTLMs = 300000
	}
	if c.Prompts.TTLMs == 0 {
		c.Prompts.TTLMs = 600000
	}
	if c.Notify.MaxAlbum == 0 {
		c.Notify.MaxAlbum = 10
	}
	if c.Notify.SendTimeoutMs == 0 {
		c.Notify.SendTimeoutMs = 5000
	}
	if c.Notify.Policy.Managers == "" {
		c.Notify.Policy.Managers = "all"
	}
}

// Load reads, parses, and validates a creel.yml file, applying defaults.
func Load(path string) (*CreelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config CreelConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
