package converter

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
)

// Converter turns cleanup rules into WebKit cookie-blocking rules
type Converter struct {
	stats Stats
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipNoCookieAction = "no-cookie-action"
	SkipInvalidPattern = "invalid-pattern"
)

// urlPrefix matches the scheme and separator in front of the host
const urlPrefix = `^[a-z-]+://`

// New creates a new converter
func New() *Converter {
	return &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped rule with reason
func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert emits WebKit rules whose net effect per URL follows rule resolution: the most
// specific pattern decides, and the earlier rule wins ties.
//
// The fallback forms the baseline. Rules are then emitted from least to most specific,
// each one resetting what broader rules decided (ignore-previous-rules) before applying
// its own type:
//   - INSTANTLY blocks cookies on every load
//   - LEAVE blocks third-party cookies when beforeCreation is set
//   - NEVER and STARTUP block nothing
func (c *Converter) Convert(rules []models.Rule, fallback models.CleanupType, beforeCreation bool) []models.WebKitRule {
	type ranked struct {
		rule  models.Rule
		index int
		depth int
	}

	var valid []ranked
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			c.skip(SkipInvalidPattern)
			continue
		}
		valid = append(valid, ranked{rule: r, index: i, depth: specificity(r.Pattern)})
	}
	// ties are emitted last-first so the earliest rule ends up deciding
	slices.SortStableFunc(valid, func(a, b ranked) int {
		if a.depth != b.depth {
			return cmp.Compare(a.depth, b.depth)
		}
		return cmp.Compare(b.index, a.index)
	})

	out := blockFor(fallback, ".*", beforeCreation)
	seen := newBlockedSet()
	seen.all = len(out) > 0

	for _, v := range valid {
		urlFilter := HostToRegex(v.rule.Pattern)
		own := blockFor(v.rule.Type, urlFilter, beforeCreation)

		var emitted []models.WebKitRule
		// blocking every load supersedes anything broader, so INSTANTLY needs no reset
		if v.rule.Type != models.CleanupInstantly && seen.overlaps(v.rule.Pattern) {
			emitted = append(emitted, models.WebKitRule{
				Trigger: models.WebKitTrigger{URLFilter: urlFilter},
				Action:  models.WebKitAction{Type: models.ActionIgnorePreviousRule},
			})
		}
		emitted = append(emitted, own...)
		if len(emitted) == 0 {
			c.skip(SkipNoCookieAction)
			continue
		}
		if len(own) > 0 {
			seen.add(v.rule.Pattern)
		}
		out = append(out, emitted...)
		c.stats.Converted++
	}

	return out
}

// blockedSet remembers the patterns that already carry a block-cookies rule
type blockedSet struct {
	all       bool
	wildcards map[string]bool
	exact     map[string]bool
}

func newBlockedSet() *blockedSet {
	return &blockedSet{wildcards: make(map[string]bool), exact: make(map[string]bool)}
}

func (b *blockedSet) add(pattern string) {
	p := models.NormalizeHostname(pattern)
	switch {
	case p == "*":
		b.all = true
	case strings.HasPrefix(p, models.WildcardPrefix):
		b.wildcards[p[len(models.WildcardPrefix):]] = true
	default:
		b.exact[p] = true
	}
}

// overlaps reports whether a block added so far can match a hostname that pattern matches.
// Patterns are added from least to most specific, so only equal or broader ones are present.
func (b *blockedSet) overlaps(pattern string) bool {
	if b.all {
		return true
	}
	p := models.NormalizeHostname(pattern)
	if p == "*" {
		return len(b.wildcards)+len(b.exact) > 0
	}
	base := strings.TrimPrefix(p, models.WildcardPrefix)
	if b.exact[base] {
		return true
	}
	for suffix := base; ; {
		if b.wildcards[suffix] {
			return true
		}
		dot := strings.IndexByte(suffix, '.')
		if dot < 0 {
			return false
		}
		suffix = suffix[dot+1:]
	}
}

// blockFor returns the block-cookies rules for URLs decided by cleanup type t
func blockFor(t models.CleanupType, urlFilter string, beforeCreation bool) []models.WebKitRule {
	switch {
	case t == models.CleanupInstantly:
		return []models.WebKitRule{{
			Trigger: models.WebKitTrigger{URLFilter: urlFilter},
			Action:  models.WebKitAction{Type: models.ActionBlockCookies},
		}}
	case t == models.CleanupLeave && beforeCreation:
		return []models.WebKitRule{{
			Trigger: models.WebKitTrigger{URLFilter: urlFilter, LoadType: []string{models.LoadThirdParty}},
			Action:  models.WebKitAction{Type: models.ActionBlockCookies},
		}}
	default:
		return nil
	}
}

// specificity counts the labels a pattern pins down; "*" pins none
func specificity(pattern string) int {
	p := models.NormalizeHostname(pattern)
	if p == "*" {
		return 0
	}
	return len(strings.Split(strings.TrimPrefix(p, models.WildcardPrefix), "."))
}

// HostToRegex builds a url-filter matching URLs served by a hostname pattern
func HostToRegex(pattern string) string {
	p := models.NormalizeHostname(pattern)
	if p == "*" {
		return ".*"
	}
	if strings.HasPrefix(p, models.WildcardPrefix) {
		return urlPrefix + `([^/:]+\.)?` + regexp.QuoteMeta(p[len(models.WildcardPrefix):]) + `[:/]`
	}
	return urlPrefix + regexp.QuoteMeta(p) + `[:/]`
}
