package converter

import (
	"fmt"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
)

// MaxRulesPerFile is Safari/WebKit's limit per content blocker
const MaxRulesPerFile = 50000

// Part is one content blocker file
type Part struct {
	Name  string
	Rules []models.WebKitRule
}

// Splitter splits rules into chunks respecting the 50k limit
type Splitter struct {
	maxRules int
}

// NewSplitter creates a splitter with the given max rules per file
func NewSplitter(maxRules int) *Splitter {
	if maxRules <= 0 {
		maxRules = MaxRulesPerFile
	}
	return &Splitter{maxRules: maxRules}
}

// Split divides rules into consecutive parts, keeping their order.
// ignore-previous-rules only reaches rules of the same content blocker, so an
// exception split away from the block it cancels stops working; see Crosses.
func (s *Splitter) Split(rules []models.WebKitRule, baseName string) []Part {
	if len(rules) <= s.maxRules {
		return []Part{{Name: baseName, Rules: rules}}
	}

	var parts []Part
	for start := 0; start < len(rules); start += s.maxRules {
		end := min(start+s.maxRules, len(rules))
		parts = append(parts, Part{
			Name:  fmt.Sprintf("%s-part%d", baseName, len(parts)+1),
			Rules: rules[start:end],
		})
	}
	return parts
}

// Crosses reports whether a part after the first holds exceptions, which cannot
// cancel blocks written to earlier parts
func Crosses(parts []Part) bool {
	for _, p := range parts[min(1, len(parts)):] {
		for _, r := range p.Rules {
			if r.Action.Type == models.ActionIgnorePreviousRule {
				return true
			}
		}
	}
	return false
}

// Deduplicate drops repeated rules without changing the outcome.
// Rules only commute within a run of the same action, so duplicates are
// collapsed per run, keeping the first occurrence.
func Deduplicate(rules []models.WebKitRule) []models.WebKitRule {
	result := make([]models.WebKitRule, 0, len(rules))
	var seen map[string]bool
	runAction := ""

	for _, r := range rules {
		if r.Action.Type != runAction {
			runAction = r.Action.Type
			seen = make(map[string]bool)
		}
		key := r.Trigger.URLFilter + "|" + strings.Join(r.Trigger.LoadType, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, r)
	}

	return result
}
