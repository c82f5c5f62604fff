package models

import (
	"net/url"
	"strings"
)

// NormalizeHostname lowercases a hostname and strips surrounding dots and spaces
func NormalizeHostname(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, ".")
	return strings.TrimSuffix(h, ".")
}

// HostnameFromURL extracts the normalized hostname of a URL.
// Returns "" for URLs without a host (about:blank, file://, malformed input).
func HostnameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return NormalizeHostname(u.Hostname())
}
