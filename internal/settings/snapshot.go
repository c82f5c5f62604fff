// Package settings provides immutable settings snapshots and the process-wide holder
// that replaces them on change.
package settings

import (
	"reflect"
	"slices"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/models"
)

// Keys reported in change notifications
const (
	KeyRules                  = "rules"
	KeyFallbackRule           = "fallback_rule"
	KeyDomainLeave            = "domain_leave"
	KeyInstantly              = "instantly"
	KeyStartup                = "startup"
	KeyCleanThirdPartyCookies = "clean_third_party_cookies"
)

// Snapshot is the engine's read-only view of the settings.
// Consumers must not mutate it; a change produces a new Snapshot.
type Snapshot struct {
	Rules                  []models.Rule
	FallbackRule           models.CleanupType
	DomainLeave            models.FeatureConfig
	Instantly              models.FeatureConfig
	Startup                models.FeatureConfig
	CleanThirdPartyCookies models.ThirdPartyCookieConfig
}

// FromConfig builds a snapshot from a decoded config and its collected rules
func FromConfig(cfg models.Config, rules []models.Rule) *Snapshot {
	return &Snapshot{
		Rules:                  slices.Clone(rules),
		FallbackRule:           cfg.FallbackRule,
		DomainLeave:            cloneFeature(cfg.DomainLeave),
		Instantly:              cloneFeature(cfg.Instantly),
		Startup:                cloneFeature(cfg.Startup),
		CleanThirdPartyCookies: cfg.CleanThirdPartyCookies,
	}
}

// Defaults returns the snapshot used before any config is read
func Defaults() *Snapshot {
	types := DefaultDataTypes()
	return &Snapshot{
		FallbackRule: models.CleanupLeave,
		DomainLeave:  models.FeatureConfig{Enabled: true, Types: slices.Clone(types)},
		Instantly:    models.FeatureConfig{Enabled: true, Types: slices.Clone(types)},
		Startup:      models.FeatureConfig{Enabled: true, Types: slices.Clone(types)},
	}
}

// DefaultDataTypes are the data types each trigger applies to unless configured
func DefaultDataTypes() []string {
	return []string{browsingdata.Cookies, browsingdata.LocalStorage}
}

func cloneFeature(f models.FeatureConfig) models.FeatureConfig {
	return models.FeatureConfig{Enabled: f.Enabled, Types: slices.Clone(f.Types)}
}

// AllKeys lists every settings key
func AllKeys() []string {
	return []string{KeyRules, KeyFallbackRule, KeyDomainLeave, KeyInstantly, KeyStartup, KeyCleanThirdPartyCookies}
}

// ChangedKeys lists the keys whose values differ between two snapshots.
// A nil prev reports every key, a nil next none.
func ChangedKeys(prev, next *Snapshot) []string {
	if next == nil {
		return nil
	}
	if prev == nil {
		return AllKeys()
	}

	var changed []string
	if !slices.Equal(prev.Rules, next.Rules) {
		changed = append(changed, KeyRules)
	}
	if prev.FallbackRule != next.FallbackRule {
		changed = append(changed, KeyFallbackRule)
	}
	if !reflect.DeepEqual(prev.DomainLeave, next.DomainLeave) {
		changed = append(changed, KeyDomainLeave)
	}
	if !reflect.DeepEqual(prev.Instantly, next.Instantly) {
		changed = append(changed, KeyInstantly)
	}
	if !reflect.DeepEqual(prev.Startup, next.Startup) {
		changed = append(changed, KeyStartup)
	}
	if prev.CleanThirdPartyCookies != next.CleanThirdPartyCookies {
		changed = append(changed, KeyCleanThirdPartyCookies)
	}
	return changed
}
