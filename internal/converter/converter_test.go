package converter

import (
	"fmt"
	"regexp"
	"slices"
	"testing"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRules = []models.Rule{
	{Pattern: "*.never.com", Type: models.CleanupNever},
	{Pattern: "startup.com", Type: models.CleanupStartup},
	{Pattern: "leave.com", Type: models.CleanupLeave},
	{Pattern: "*.instantly.com", Type: models.CleanupInstantly},
	{Pattern: "http://bad", Type: models.CleanupInstantly},
}

// cookiesBlocked evaluates content blocker rules in order the way WebKit does:
// block-cookies accumulates, ignore-previous-rules drops everything triggered so far.
func cookiesBlocked(t *testing.T, out []models.WebKitRule, url string, thirdParty bool) bool {
	t.Helper()
	blocked := false
	for _, r := range out {
		if len(r.Trigger.LoadType) > 0 && !(thirdParty && slices.Contains(r.Trigger.LoadType, models.LoadThirdParty)) {
			continue
		}
		if !regexp.MustCompile(r.Trigger.URLFilter).MatchString(url) {
			continue
		}
		switch r.Action.Type {
		case models.ActionIgnorePreviousRule:
			blocked = false
		case models.ActionBlockCookies:
			blocked = true
		default:
			t.Fatalf("unexpected action %q", r.Action.Type)
		}
	}
	return blocked
}

func wantBlocked(ct models.CleanupType, thirdParty, beforeCreation bool) bool {
	if ct == models.CleanupInstantly {
		return true
	}
	return beforeCreation && thirdParty && !ct.Protects()
}

func TestConvertFollowsRuleResolution(t *testing.T) {
	ruleSets := map[string][]models.Rule{
		"specific never under instantly wildcard": {
			{Pattern: "*.example.com", Type: models.CleanupInstantly},
			{Pattern: "login.example.com", Type: models.CleanupNever},
		},
		"catch-all never": {
			{Pattern: "*", Type: models.CleanupNever},
			{Pattern: "tracker.example.net", Type: models.CleanupInstantly},
		},
		"tie keeps first rule": {
			{Pattern: "example.com", Type: models.CleanupNever},
			{Pattern: "*.example.com", Type: models.CleanupInstantly},
		},
		"tie keeps first wildcard": {
			{Pattern: "*.example.com", Type: models.CleanupStartup},
			{Pattern: "example.com", Type: models.CleanupInstantly},
		},
		"nested layers": append(slices.Clone(sampleRules),
			models.Rule{Pattern: "*.ads.instantly.com", Type: models.CleanupLeave},
			models.Rule{Pattern: "deep.ads.instantly.com", Type: models.CleanupInstantly},
			models.Rule{Pattern: "keep.never.com", Type: models.CleanupInstantly},
		),
	}
	hosts := []string{
		"example.com", "login.example.com", "www.example.com", "tracker.example.net", "other.org",
		"instantly.com", "ads.instantly.com", "x.ads.instantly.com", "deep.ads.instantly.com",
		"never.com", "keep.never.com", "startup.com", "leave.com",
	}
	fallbacks := []models.CleanupType{models.CleanupLeave, models.CleanupInstantly, models.CleanupNever}

	for name, set := range ruleSets {
		for _, fallback := range fallbacks {
			for _, beforeCreation := range []bool{false, true} {
				t.Run(fmt.Sprintf("%s/fallback=%s/before=%v", name, fallback, beforeCreation), func(t *testing.T) {
					store := rules.New(set, fallback)
					out := New().Convert(set, fallback, beforeCreation)

					for _, variant := range [][]models.WebKitRule{out, Deduplicate(out)} {
						for _, host := range hosts {
							ct := store.Resolve(host)
							for _, thirdParty := range []bool{false, true} {
								assert.Equal(t, wantBlocked(ct, thirdParty, beforeCreation),
									cookiesBlocked(t, variant, "https://"+host+"/path", thirdParty),
									"%s (%s) third-party=%v", host, ct, thirdParty)
							}
						}
					}
				})
			}
		}
	}
}

func TestConvertExceptsProtectedSubdomain(t *testing.T) {
	out := New().Convert([]models.Rule{
		{Pattern: "*.example.com", Type: models.CleanupInstantly},
		{Pattern: "login.example.com", Type: models.CleanupNever},
	}, models.CleanupLeave, false)

	require.Len(t, out, 2)
	assert.Equal(t, models.ActionBlockCookies, out[0].Action.Type)
	assert.Equal(t, models.WebKitRule{
		Trigger: models.WebKitTrigger{URLFilter: HostToRegex("login.example.com")},
		Action:  models.WebKitAction{Type: models.ActionIgnorePreviousRule},
	}, out[1])
}

func TestConvertCatchAllNever(t *testing.T) {
	out := New().Convert([]models.Rule{{Pattern: "*", Type: models.CleanupNever}}, models.CleanupLeave, true)

	require.Len(t, out, 2)
	assert.Equal(t, []string{models.LoadThirdParty}, out[0].Trigger.LoadType)
	assert.Equal(t, models.WebKitRule{
		Trigger: models.WebKitTrigger{URLFilter: ".*"},
		Action:  models.WebKitAction{Type: models.ActionIgnorePreviousRule},
	}, out[1])
}

func TestConvertInstantlyOnly(t *testing.T) {
	c := New()
	out := c.Convert(sampleRules, models.CleanupLeave, false)

	require.Len(t, out, 1)
	assert.Equal(t, models.ActionBlockCookies, out[0].Action.Type)
	assert.Empty(t, out[0].Trigger.LoadType)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, map[string]int{SkipNoCookieAction: 3, SkipInvalidPattern: 1}, stats.SkipReasons)
}

func TestConvertBeforeCreation(t *testing.T) {
	c := New()
	out := c.Convert(sampleRules, models.CleanupLeave, true)

	require.NotEmpty(t, out)
	assert.Equal(t, models.WebKitTrigger{URLFilter: ".*", LoadType: []string{models.LoadThirdParty}}, out[0].Trigger)
	assert.Equal(t, 4, c.Stats().Converted)
	assert.Equal(t, map[string]int{SkipInvalidPattern: 1}, c.Stats().SkipReasons)
}

func TestHostToRegex(t *testing.T) {
	tests := []struct {
		pattern string
		url     string
		match   bool
	}{
		{"*.instantly.com", "https://instantly.com/", true},
		{"*.instantly.com", "https://ads.instantly.com:8443/x", true},
		{"*.instantly.com", "https://notinstantly.com/", false},
		{"exact.org", "http://exact.org/path", true},
		{"exact.org", "http://www.exact.org/path", false},
		{"exact.org", "http://exact.org.evil.net/", false},
		{"*", "https://anything/", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.pattern, tt.url), func(t *testing.T) {
			re := regexp.MustCompile(HostToRegex(tt.pattern))
			assert.Equal(t, tt.match, re.MatchString(tt.url))
		})
	}
}

func block(host string) models.WebKitRule {
	return models.WebKitRule{
		Trigger: models.WebKitTrigger{URLFilter: HostToRegex(host)},
		Action:  models.WebKitAction{Type: models.ActionBlockCookies},
	}
}

func ignore(host string) models.WebKitRule {
	return models.WebKitRule{
		Trigger: models.WebKitTrigger{URLFilter: HostToRegex(host)},
		Action:  models.WebKitAction{Type: models.ActionIgnorePreviousRule},
	}
}

func TestDeduplicateKeepsOrderAcrossExceptions(t *testing.T) {
	in := []models.WebKitRule{
		block("a.com"), block("b.com"), block("a.com"),
		ignore("a.com"), ignore("a.com"),
		block("a.com"),
	}

	assert.Equal(t, []models.WebKitRule{
		block("a.com"), block("b.com"),
		ignore("a.com"),
		block("a.com"),
	}, Deduplicate(in))
}

func TestSplit(t *testing.T) {
	in := []models.WebKitRule{block("a.com"), block("b.com"), ignore("a.com")}

	parts := NewSplitter(2).Split(in, "cookies")
	require.Len(t, parts, 2)
	assert.Equal(t, "cookies-part1", parts[0].Name)
	assert.Equal(t, in[:2], parts[0].Rules)
	assert.Equal(t, "cookies-part2", parts[1].Name)
	assert.Equal(t, in[2:], parts[1].Rules)
	assert.True(t, Crosses(parts))

	single := NewSplitter(0).Split(in, "cookies")
	require.Len(t, single, 1)
	assert.Equal(t, "cookies", single[0].Name)
	assert.False(t, Crosses(single))
	assert.False(t, Crosses(nil))
}
