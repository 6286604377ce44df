// Package config resolves the runtime configuration: the ~/.bashx config
// directory, the policy pack and the audit log, plus dispatcher knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".bashx"
	DefaultConfigFile = "config.yaml"
	DefaultPolicyFile = "policy.yaml"
	DefaultAuditFile  = "audit.jsonl"
)

// Dispatch holds the dispatcher knobs exposed through configuration.
type Dispatch struct {
	// ContinueOnError switches pipelines to POSIX run-all semantics.
	ContinueOnError bool `yaml:"continue_on_error"`
	// RatePerSecond throttles per-user exec calls; 0 disables.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// Breaker holds circuit-breaker tuning shared by all downstreams.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	HalfOpenSuccess  int           `yaml:"half_open_success_threshold"`
}

// Session holds auth cache tuning.
type Session struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// Config is the resolved runtime configuration.
type Config struct {
	ConfigDir  string   `yaml:"-"`
	PolicyPath string   `yaml:"-"`
	AuditPath  string   `yaml:"-"`
	Dispatch   Dispatch `yaml:"dispatch"`
	Breaker    Breaker  `yaml:"breaker"`
	Session    Session  `yaml:"session"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Breaker: Breaker{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenSuccess:  1,
		},
		Session: Session{TTL: 300 * time.Second, MaxEntries: 1024},
	}
}

// Load resolves configuration from the config dir, applying overrides for
// the policy and audit paths when non-empty.
func Load(policyPath, auditPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.ConfigDir = configDir

	data, err := os.ReadFile(filepath.Join(configDir, DefaultConfigFile))
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if policyPath != "" {
		cfg.PolicyPath = policyPath
	} else {
		cfg.PolicyPath = filepath.Join(configDir, DefaultPolicyFile)
	}
	if auditPath != "" {
		cfg.AuditPath = auditPath
	} else {
		cfg.AuditPath = filepath.Join(configDir, DefaultAuditFile)
	}
	return cfg, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
