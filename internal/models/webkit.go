package models

// WebKitRule represents a Safari/WebKit content blocker rule
type WebKitRule struct {
	Trigger WebKitTrigger `json:"trigger"`
	Action  WebKitAction  `json:"action"`
}

// WebKitTrigger defines when a rule should activate
type WebKitTrigger struct {
	URLFilter string   `json:"url-filter"`
	LoadType  []string `json:"load-type,omitempty"`
}

// WebKitAction defines what to do when a rule triggers
type WebKitAction struct {
	Type string `json:"type"` // block-cookies, ignore-previous-rules
}

// Action type constants
const (
	ActionBlockCookies       = "block-cookies"
	ActionIgnorePreviousRule = "ignore-previous-rules"
)

// LoadThirdParty restricts a trigger to third-party loads
const LoadThirdParty = "third-party"
