// Package tabwatcher tracks which domains are open in which cookie container.
//
// A Watcher is driven by the host's tab events and is not safe for concurrent use:
// events are expected to be dispatched one at a time, and listeners run synchronously
// inside the event call that triggered them.
package tabwatcher

import (
	"fmt"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"go.uber.org/zap"
)

// Listener receives domain transitions
type Listener interface {
	OnDomainEnter(containerID, hostname string)
	OnDomainLeave(containerID, hostname string)
}

// ListenerFuncs adapts a pair of functions to Listener. Nil funcs are skipped.
type ListenerFuncs struct {
	Enter func(containerID, hostname string)
	Leave func(containerID, hostname string)
}

// OnDomainEnter calls Enter
func (l ListenerFuncs) OnDomainEnter(containerID, hostname string) {
	if l.Enter != nil {
		l.Enter(containerID, hostname)
	}
}

// OnDomainLeave calls Leave
func (l ListenerFuncs) OnDomainLeave(containerID, hostname string) {
	if l.Leave != nil {
		l.Leave(containerID, hostname)
	}
}

type tabInfo struct {
	containerID string
	hostname    string
}

// Watcher maintains a per-container reference count of open hostnames
type Watcher struct {
	tabs       map[int]tabInfo
	containers map[string]map[string]int
	listeners  []Listener
	log        *zap.Logger
}

// New creates a watcher with the given listeners, invoked in order
func New(log *zap.Logger, listeners ...Listener) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		tabs:       make(map[int]tabInfo),
		containers: make(map[string]map[string]int),
		listeners:  listeners,
		log:        log,
	}
}

// AddListener appends a listener after the existing ones
func (w *Watcher) AddListener(l Listener) {
	w.listeners = append(w.listeners, l)
}

// OnTabCreated starts tracking a tab. A known tab id is treated as a navigation.
func (w *Watcher) OnTabCreated(tabID int, containerID, hostname string) {
	hostname = models.NormalizeHostname(hostname)
	if info, ok := w.tabs[tabID]; ok {
		if info.containerID == containerID {
			w.OnTabNavigated(tabID, hostname)
			return
		}
		w.OnTabRemoved(tabID)
	}
	w.tabs[tabID] = tabInfo{containerID: containerID, hostname: hostname}
	w.increment(containerID, hostname)
}

// OnTabNavigated moves a tab to a new hostname.
// The leave of the old hostname is fully dispatched before the enter of the new one.
func (w *Watcher) OnTabNavigated(tabID int, hostname string) {
	hostname = models.NormalizeHostname(hostname)
	info, ok := w.tabs[tabID]
	if !ok || info.hostname == hostname {
		return
	}
	w.tabs[tabID] = tabInfo{containerID: info.containerID, hostname: hostname}
	w.decrement(info.containerID, info.hostname)
	w.increment(info.containerID, hostname)
}

// OnTabRemoved stops tracking a tab. Unknown tab ids are ignored.
func (w *Watcher) OnTabRemoved(tabID int) {
	info, ok := w.tabs[tabID]
	if !ok {
		return
	}
	delete(w.tabs, tabID)
	w.decrement(info.containerID, info.hostname)
}

func (w *Watcher) increment(containerID, hostname string) {
	if hostname == "" {
		return
	}
	domains := w.containers[containerID]
	if domains == nil {
		domains = make(map[string]int)
		w.containers[containerID] = domains
	}
	domains[hostname]++
	if domains[hostname] == 1 {
		w.dispatch(containerID, hostname, true)
	}
}

func (w *Watcher) decrement(containerID, hostname string) {
	domains := w.containers[containerID]
	if hostname == "" || domains[hostname] == 0 {
		return
	}
	domains[hostname]--
	if domains[hostname] > 0 {
		return
	}
	delete(domains, hostname)
	if len(domains) == 0 {
		delete(w.containers, containerID)
	}
	w.dispatch(containerID, hostname, false)
}

func (w *Watcher) dispatch(containerID, hostname string, enter bool) {
	for i, l := range w.listeners {
		w.notify(i, l, containerID, hostname, enter)
	}
}

// notify runs one listener, recovering from a panic so the rest still run
func (w *Watcher) notify(index int, l Listener, containerID, hostname string, enter bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("domain listener panicked",
				zap.Int("listener", index),
				zap.String("container", containerID),
				zap.String("hostname", hostname),
				zap.Bool("enter", enter),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if enter {
		l.OnDomainEnter(containerID, hostname)
	} else {
		l.OnDomainLeave(containerID, hostname)
	}
}

// IsDomainOpen reports whether a hostname is shown in any tab of the container
func (w *Watcher) IsDomainOpen(containerID, hostname string) bool {
	return w.containers[containerID][models.NormalizeHostname(hostname)] > 0
}

// ContainsDomain reports whether a hostname is open in any container
func (w *Watcher) ContainsDomain(hostname string) bool {
	hostname = models.NormalizeHostname(hostname)
	for _, domains := range w.containers {
		if domains[hostname] > 0 {
			return true
		}
	}
	return false
}

// HostnameForTab returns the hostname currently shown by a tab
func (w *Watcher) HostnameForTab(tabID int) (string, bool) {
	info, ok := w.tabs[tabID]
	return info.hostname, ok
}

// ContainerForTab returns the container a tab belongs to
func (w *Watcher) ContainerForTab(tabID int) (string, bool) {
	info, ok := w.tabs[tabID]
	return info.containerID, ok
}

// OpenDomains returns the hostnames open in a container, unordered
func (w *Watcher) OpenDomains(containerID string) []string {
	domains := w.containers[containerID]
	out := make([]string, 0, len(domains))
	for h := range domains {
		out = append(out, h)
	}
	return out
}

// Containers returns the ids of containers with at least one open domain
func (w *Watcher) Containers() []string {
	out := make([]string, 0, len(w.containers))
	for id := range w.containers {
		out = append(out, id)
	}
	return out
}
