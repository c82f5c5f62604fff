package models

import (
	"slices"
	"time"
)

// Config represents the main configuration
type Config struct {
	HTTP                   HTTPConfig             `mapstructure:"http"`
	Output                 OutputConfig           `mapstructure:"output"`
	Pending                PendingConfig          `mapstructure:"pending"`
	Containers             []string               `mapstructure:"containers"`
	FallbackRule           CleanupType            `mapstructure:"fallback_rule"`
	Rules                  []Rule                 `mapstructure:"rules"`
	RulesFile              string                 `mapstructure:"rules_file"`
	RuleLists              []RuleList             `mapstructure:"rule_lists"`
	DomainLeave            FeatureConfig          `mapstructure:"domain_leave"`
	Instantly              FeatureConfig          `mapstructure:"instantly"`
	Startup                FeatureConfig          `mapstructure:"startup"`
	CleanThirdPartyCookies ThirdPartyCookieConfig `mapstructure:"clean_third_party_cookies"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// OutputConfig contains export settings
type OutputConfig struct {
	MaxRulesPerFile int `mapstructure:"max_rules_per_file"`
}

// PendingConfig locates the durable pending cleanup store.
// An empty Path keeps the set in memory only.
type PendingConfig struct {
	Path string `mapstructure:"path"`
}

// FeatureConfig toggles a cleanup trigger and the data types it applies to
type FeatureConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Types   []string `mapstructure:"types"`
}

// Applies reports whether the feature is on for the given data type
func (f FeatureConfig) Applies(dataType string) bool {
	return f.Enabled && slices.Contains(f.Types, dataType)
}

// ThirdPartyCookieConfig controls interception of third-party Set-Cookie headers
type ThirdPartyCookieConfig struct {
	BeforeCreation bool `mapstructure:"before_creation"`
}

// RuleList represents a remote rule list subscription
type RuleList struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// EnabledLists returns only enabled rule lists
func (c *Config) EnabledLists() []RuleList {
	var enabled []RuleList
	for _, l := range c.RuleLists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}
