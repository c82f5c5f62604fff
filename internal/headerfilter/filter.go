// Package headerfilter strips third-party Set-Cookie headers before the browser stores them.
package headerfilter

import (
	"encoding/json"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Rules is the read side of the rule store used by the filter
type Rules interface {
	Resolve(hostname string) models.CleanupType
	HasType(t models.CleanupType) bool
}

// Tabs looks up the hostname shown by a tab
type Tabs interface {
	HostnameForTab(tabID int) (string, bool)
}

// BlockingResponse is the answer returned to the network stack.
// Without headers it means "no change"; an empty header list means "all removed".
type BlockingResponse struct {
	ResponseHeaders []models.HTTPHeader
	HasHeaders      bool
}

// MarshalJSON omits responseHeaders when no change is signaled and keeps an empty list otherwise
func (r BlockingResponse) MarshalJSON() ([]byte, error) {
	if !r.HasHeaders {
		return []byte("{}"), nil
	}
	headers := r.ResponseHeaders
	if headers == nil {
		headers = []models.HTTPHeader{}
	}
	return json.Marshal(struct {
		ResponseHeaders []models.HTTPHeader `json:"responseHeaders"`
	}{headers})
}

// mode records why the filter is enabled
type mode struct {
	beforeCreation bool // strip every third-party cookie not protected by a rule
	instantly      bool // strip third-party cookies of INSTANTLY domains
}

func (m mode) enabled() bool { return m.beforeCreation || m.instantly }

// Filter is disabled or enabled depending on the current settings.
// The state is recomputed on every settings change and applies to later requests only.
type Filter struct {
	rules Rules
	tabs  Tabs
	mode  mode
	log   *zap.Logger
}

// New creates a filter and subscribes it to settings changes.
// rules must already reflect the snapshot held by h.
func New(h *settings.Holder, rules Rules, tabs Tabs, log *zap.Logger) *Filter {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Filter{rules: rules, tabs: tabs, log: log}
	f.Update(h.Get())
	h.Subscribe(func(next *settings.Snapshot, _ []string) {
		f.Update(next)
	})
	return f
}

// Update re-evaluates the enabled state from a snapshot.
// An INSTANTLY fallback counts as an INSTANTLY rule.
func (f *Filter) Update(snap *settings.Snapshot) {
	next := mode{
		beforeCreation: snap.CleanThirdPartyCookies.BeforeCreation,
		instantly:      snap.Instantly.Enabled && (snap.FallbackRule == models.CleanupInstantly || f.rules.HasType(models.CleanupInstantly)),
	}
	if next.enabled() != f.mode.enabled() {
		f.log.Info("header filter state changed", zap.Bool("enabled", next.enabled()))
	}
	f.mode = next
}

// IsEnabled reports whether responses are being filtered
func (f *Filter) IsEnabled() bool {
	return f.mode.enabled()
}

// FilterResponseHeaders returns the headers to hand back to the network stack.
// Set-Cookie headers are dropped for third-party responses whose hostname is not
// protected; every other header keeps its position and content.
func (f *Filter) FilterResponseHeaders(requestHostname string, tabID int, headers []models.HTTPHeader) []models.HTTPHeader {
	if !f.mode.enabled() || len(headers) == 0 {
		return headers
	}
	if !f.shouldBlockCookies(models.NormalizeHostname(requestHostname), tabID) {
		return headers
	}

	out := make([]models.HTTPHeader, 0, len(headers))
	for _, h := range headers {
		if strings.EqualFold(h.Name, "set-cookie") {
			continue
		}
		out = append(out, h)
	}
	return out
}

// OnHeadersReceived is the interception callback: it maps request details to a BlockingResponse
func (f *Filter) OnHeadersReceived(url string, tabID int, headers []models.HTTPHeader) BlockingResponse {
	if !f.mode.enabled() || headers == nil {
		return BlockingResponse{}
	}
	filtered := f.FilterResponseHeaders(models.HostnameFromURL(url), tabID, headers)
	return BlockingResponse{ResponseHeaders: filtered, HasHeaders: true}
}

func (f *Filter) shouldBlockCookies(hostname string, tabID int) bool {
	tabHostname, ok := f.tabs.HostnameForTab(tabID)
	if !ok || tabHostname == "" || hostname == "" {
		return false
	}
	if isFirstParty(tabHostname, hostname) {
		return false
	}

	switch ct := f.rules.Resolve(hostname); {
	case ct.Protects():
		return false
	case f.mode.beforeCreation:
		return true
	default:
		return f.mode.instantly && ct == models.CleanupInstantly
	}
}

// isFirstParty compares registrable domains; identical hostnames are always first-party
func isFirstParty(tabHostname, hostname string) bool {
	if tabHostname == hostname {
		return true
	}
	return registrableDomain(tabHostname) == registrableDomain(hostname)
}

func registrableDomain(hostname string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return d
}
