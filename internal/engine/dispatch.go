package engine

import (
	"fmt"

	"github.com/bnema/sitedata-sweeper/internal/headerfilter"
	"github.com/bnema/sitedata-sweeper/internal/models"
)

// Result is the engine's answer to one event.
// Only headers_received events carry a response.
type Result struct {
	Event    models.EventType               `json:"event"`
	TabID    int                            `json:"tabId,omitempty"`
	Response *headerfilter.BlockingResponse `json:"response,omitempty"`
}

// Dispatch routes one host event to the matching handler.
// defaultContainers is used by startup events that name no container.
func (e *Engine) Dispatch(ev models.Event, defaultContainers []string) (Result, error) {
	res := Result{Event: ev.Type, TabID: ev.TabID}

	switch ev.Type {
	case models.EventTabCreated:
		e.OnTabCreated(ev.TabID, ev.ContainerID, ev.Host())
	case models.EventTabNavigated:
		e.OnTabNavigated(ev.TabID, ev.Host())
	case models.EventTabRemoved:
		e.OnTabRemoved(ev.TabID)
	case models.EventCookieChanged:
		e.OnCookieChanged(ev.ContainerID, ev.Host())
	case models.EventManualCleanup:
		e.CleanNow(ev.ContainerID, ev.Host())
	case models.EventStartup:
		containers := defaultContainers
		if ev.ContainerID != "" {
			containers = []string{ev.ContainerID}
		}
		e.Startup(containers)
	case models.EventHeadersReceived:
		url := ev.URL
		if url == "" && ev.Hostname != "" {
			url = "https://" + ev.Hostname
		}
		resp := e.OnHeadersReceived(url, ev.TabID, ev.ResponseHeaders)
		res.Response = &resp
	default:
		return res, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return res, nil
}
