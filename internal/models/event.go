package models

// EventType identifies a browser event delivered by the host
type EventType string

// Event types understood by the engine
const (
	EventTabCreated      EventType = "tab_created"
	EventTabNavigated    EventType = "tab_navigated"
	EventTabRemoved      EventType = "tab_removed"
	EventHeadersReceived EventType = "headers_received"
	EventCookieChanged   EventType = "cookie_changed"
	EventManualCleanup   EventType = "manual_cleanup"
	EventStartup         EventType = "startup"
)

// HTTPHeader is a single response header as delivered by the network stack
type HTTPHeader struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Event is one browser event. Which fields are meaningful depends on Type.
type Event struct {
	Type            EventType    `json:"type" yaml:"type"`
	TabID           int          `json:"tabId,omitempty" yaml:"tab_id,omitempty"`
	ContainerID     string       `json:"cookieStoreId,omitempty" yaml:"container_id,omitempty"`
	URL             string       `json:"url,omitempty" yaml:"url,omitempty"`
	Hostname        string       `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	ResponseHeaders []HTTPHeader `json:"responseHeaders,omitempty" yaml:"response_headers,omitempty"`
}

// Host returns the event hostname, falling back to the URL host
func (e Event) Host() string {
	if e.Hostname != "" {
		return NormalizeHostname(e.Hostname)
	}
	return HostnameFromURL(e.URL)
}
