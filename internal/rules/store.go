// Package rules resolves hostnames to cleanup types.
package rules

import (
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
)

// compiled is a rule with its pattern split into labels, right to left
type compiled struct {
	rule     models.Rule
	labels   []string // reversed: "www.example.com" -> [com example www]
	wildcard bool
}

// Store holds the ordered rule list.
// The list is only ever replaced as a whole, never patched.
type Store struct {
	rules    []compiled
	fallback models.CleanupType
}

// New creates a store with the given rules and fallback type
func New(rules []models.Rule, fallback models.CleanupType) *Store {
	s := &Store{}
	s.Replace(rules, fallback)
	return s
}

// Replace swaps the rule list and fallback type.
// Rules that fail validation are dropped.
func (s *Store) Replace(rules []models.Rule, fallback models.CleanupType) {
	out := make([]compiled, 0, len(rules))
	for _, r := range rules {
		if r.Validate() != nil {
			continue
		}
		out = append(out, compile(r))
	}
	s.rules = out
	s.fallback = fallback
}

func compile(r models.Rule) compiled {
	p := models.NormalizeHostname(r.Pattern)
	c := compiled{rule: models.Rule{Pattern: p, Type: r.Type}}
	if p == "*" {
		c.wildcard = true
		return c
	}
	if strings.HasPrefix(p, models.WildcardPrefix) {
		c.wildcard = true
		p = p[len(models.WildcardPrefix):]
	}
	c.labels = reverseLabels(p)
	return c
}

func reverseLabels(hostname string) []string {
	labels := strings.Split(hostname, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}

// matches compares labels from the right.
// Wildcards accept the bare domain and any subdomain, plain patterns only the exact hostname.
func (c compiled) matches(host []string) bool {
	if len(host) < len(c.labels) {
		return false
	}
	if !c.wildcard && len(host) != len(c.labels) {
		return false
	}
	for i, label := range c.labels {
		if host[i] != label {
			return false
		}
	}
	return true
}

// Resolve returns the effective cleanup type for a hostname.
// The matching rule with the most labels wins; earlier rules win ties.
func (s *Store) Resolve(hostname string) models.CleanupType {
	if r, ok := s.Match(hostname); ok {
		return r.Type
	}
	return s.fallback
}

// Match returns the rule that decides the hostname, if any
func (s *Store) Match(hostname string) (models.Rule, bool) {
	host := reverseLabels(models.NormalizeHostname(hostname))
	best := -1
	for i, c := range s.rules {
		if !c.matches(host) {
			continue
		}
		if best < 0 || len(c.labels) > len(s.rules[best].labels) {
			best = i
		}
	}
	if best < 0 {
		return models.Rule{}, false
	}
	return s.rules[best].rule, true
}

// Matching returns every rule matching the hostname in list order
func (s *Store) Matching(hostname string) []models.Rule {
	host := reverseLabels(models.NormalizeHostname(hostname))
	var out []models.Rule
	for _, c := range s.rules {
		if c.matches(host) {
			out = append(out, c.rule)
		}
	}
	return out
}

// HasType reports whether any rule carries the given type
func (s *Store) HasType(t models.CleanupType) bool {
	for _, c := range s.rules {
		if c.rule.Type == t {
			return true
		}
	}
	return false
}

// Rules returns a copy of the active rule list
func (s *Store) Rules() []models.Rule {
	out := make([]models.Rule, len(s.rules))
	for i, c := range s.rules {
		out[i] = c.rule
	}
	return out
}

// Fallback returns the type used for unmatched hostnames
func (s *Store) Fallback() models.CleanupType {
	return s.fallback
}
