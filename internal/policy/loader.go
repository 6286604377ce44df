package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/runshield/bashx/internal/analyzer"
)

// Pack is a YAML rule pack extending the built-in danger list.
type Pack struct {
	Version  string     `yaml:"version"`
	Defaults Defaults   `yaml:"defaults"`
	Rules    []PackRule `yaml:"rules"`
}

// Defaults carries pack-wide switches.
type Defaults struct {
	RedactAudit bool `yaml:"redact_audit"`
}

// PackRule is one danger pattern: commands matching it require admin scope.
type PackRule struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason"`
}

// LoadPack reads a rule pack from disk. A missing file yields an empty
// pack, so fresh installs run on the built-ins alone.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Pack{Version: "1", Defaults: Defaults{RedactAudit: true}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy pack: %w", err)
	}
	return ParsePack(data)
}

// ParsePack decodes and validates pack YAML.
func ParsePack(data []byte) (*Pack, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse policy pack: %w", err)
	}
	for _, r := range pack.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("policy rule without id")
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return nil, fmt.Errorf("policy rule %s: bad pattern: %w", r.ID, err)
		}
	}
	return &pack, nil
}

// DangerPatterns compiles the pack rules for the analyzer.
func (p *Pack) DangerPatterns() []analyzer.DangerPattern {
	out := make([]analyzer.DangerPattern, 0, len(p.Rules))
	for _, r := range p.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			continue
		}
		reason := r.Reason
		if reason == "" {
			reason = "matched policy rule " + r.ID
		}
		out = append(out, analyzer.DangerPattern{ID: r.ID, Pattern: re, Reason: reason})
	}
	return out
}
