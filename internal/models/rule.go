package models

import (
	"errors"
	"fmt"
	"strings"
)

// CleanupType is the cleanup policy attached to a rule.
// Values are ordered by increasing eagerness.
type CleanupType int

const (
	CleanupNever CleanupType = iota
	CleanupStartup
	CleanupLeave
	CleanupInstantly
)

var (
	// ErrUnknownCleanupType is returned when a cleanup type name is not recognized
	ErrUnknownCleanupType = errors.New("unknown cleanup type")
	// ErrInvalidPattern is returned for rule patterns that can never match a hostname
	ErrInvalidPattern = errors.New("invalid rule pattern")
)

var cleanupTypeNames = map[CleanupType]string{
	CleanupNever:     "never",
	CleanupStartup:   "startup",
	CleanupLeave:     "leave",
	CleanupInstantly: "instantly",
}

// String returns the lowercase name used in config files
func (t CleanupType) String() string {
	if name, ok := cleanupTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CleanupType(%d)", int(t))
}

// ParseCleanupType parses a cleanup type name (case-insensitive)
func ParseCleanupType(s string) (CleanupType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range cleanupTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCleanupType, s)
}

// MarshalText implements encoding.TextMarshaler
func (t CleanupType) MarshalText() ([]byte, error) {
	if _, ok := cleanupTypeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCleanupType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *CleanupType) UnmarshalText(text []byte) error {
	parsed, err := ParseCleanupType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Protects reports whether the type keeps data alive outside of browser startup
func (t CleanupType) Protects() bool {
	return t == CleanupNever || t == CleanupStartup
}

// Rule maps a hostname pattern to a cleanup type
type Rule struct {
	Pattern string      `mapstructure:"pattern" json:"pattern" yaml:"pattern"`
	Type    CleanupType `mapstructure:"type" json:"type" yaml:"type"`
}

// Wildcard prefix for patterns matching a domain and all its subdomains
const WildcardPrefix = "*."

// Validate checks the rule pattern is a usable hostname pattern
func (r Rule) Validate() error {
	if _, ok := cleanupTypeNames[r.Type]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCleanupType, int(r.Type))
	}
	p := NormalizeHostname(r.Pattern)
	if p == "*" {
		return nil
	}
	p = strings.TrimPrefix(p, WildcardPrefix)
	if p == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if strings.ContainsAny(p, "*/: \t") {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, r.Pattern)
	}
	for _, label := range strings.Split(p, ".") {
		if label == "" {
			return fmt.Errorf("%w: empty label in %q", ErrInvalidPattern, r.Pattern)
		}
	}
	return nil
}
