// Package engine connects browser events to the rule store, tab watcher, cleaners,
// pending set and header filter.
//
// The engine follows the host's event loop: every method runs to completion before the
// next event is delivered, and none of them may be called concurrently.
package engine

import (
	"slices"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/cleaner"
	"github.com/bnema/sitedata-sweeper/internal/headerfilter"
	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/pending"
	"github.com/bnema/sitedata-sweeper/internal/rules"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"github.com/bnema/sitedata-sweeper/internal/tabwatcher"
	"go.uber.org/zap"
)

// DomainCleaner is the capability every data-type cleaner provides
type DomainCleaner interface {
	DataType() cleaner.DataType
	IsDomainProtected(containerID, hostname string) bool
	CleanDomainOnLeave(containerID, hostname string)
	CleanDomain(containerID, hostname string)
	CleanDomains(containerID string, hostnames []string)
}

// Options configures a new Engine
type Options struct {
	Settings *settings.Holder
	Pending  *pending.Set
	Remover  browsingdata.Remover
	Log      *zap.Logger
	// DataTypes restricts the cleaners created; empty means every known data type
	DataTypes []cleaner.DataType
}

// Engine is the background core
type Engine struct {
	settings *settings.Holder
	rules    *rules.Store
	tabs     *tabwatcher.Watcher
	pending  *pending.Set
	cleaners []DomainCleaner
	headers  *headerfilter.Filter
	log      *zap.Logger
}

// New builds an engine. Settings changes replace the rule list before the header
// filter re-evaluates its state.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	holder := opts.Settings
	if holder == nil {
		holder = settings.NewHolder(nil)
	}
	set := opts.Pending
	if set == nil {
		set = pending.NewMemory()
	}

	snap := holder.Get()
	e := &Engine{
		settings: holder,
		rules:    rules.New(snap.Rules, snap.FallbackRule),
		pending:  set,
		log:      log,
	}
	holder.Subscribe(e.onSettingsChanged)

	e.tabs = tabwatcher.New(log.Named("tabs"), e)

	deps := cleaner.Deps{
		Settings: holder,
		Rules:    e.rules,
		Tabs:     e.tabs,
		Pending:  set,
		Remover:  opts.Remover,
		Log:      log.Named("cleaner"),
	}
	for _, c := range cleaner.All(deps, opts.DataTypes...) {
		e.cleaners = append(e.cleaners, c)
	}

	e.headers = headerfilter.New(holder, e.rules, e.tabs, log.Named("headers"))
	return e
}

func (e *Engine) onSettingsChanged(next *settings.Snapshot, changed []string) {
	if slices.Contains(changed, settings.KeyRules) || slices.Contains(changed, settings.KeyFallbackRule) {
		e.rules.Replace(next.Rules, next.FallbackRule)
	}
	e.log.Debug("settings changed", zap.Strings("keys", changed))
}

// Tabs returns the tab watcher fed by this engine
func (e *Engine) Tabs() *tabwatcher.Watcher { return e.tabs }

// Rules returns the active rule store
func (e *Engine) Rules() *rules.Store { return e.rules }

// Pending returns the pending cleanup set
func (e *Engine) Pending() *pending.Set { return e.pending }

// HeaderFilter returns the Set-Cookie interceptor
func (e *Engine) HeaderFilter() *headerfilter.Filter { return e.headers }

// Cleaners returns the data-type cleaners in creation order
func (e *Engine) Cleaners() []DomainCleaner { return slices.Clone(e.cleaners) }

// OnDomainEnter implements tabwatcher.Listener.
// An open domain cannot be pending.
func (e *Engine) OnDomainEnter(containerID, hostname string) {
	e.log.Debug("domain enter", zap.String("container", containerID), zap.String("hostname", hostname))
	e.pending.Remove(hostname)
}

// OnDomainLeave implements tabwatcher.Listener.
// Each cleaner decides for its data type; whatever leave cleaning did not cover is
// queued for the startup pass unless the domain is never cleaned.
func (e *Engine) OnDomainLeave(containerID, hostname string) {
	e.log.Debug("domain leave", zap.String("container", containerID), zap.String("hostname", hostname))
	for _, c := range e.cleaners {
		c.CleanDomainOnLeave(containerID, hostname)
	}

	ct := e.rules.Resolve(hostname)
	if ct == models.CleanupNever || e.tabs.ContainsDomain(hostname) {
		return
	}
	if ct == models.CleanupStartup || !e.leaveCoversAll() {
		e.pending.Add(hostname)
	}
}

// leaveCoversAll reports whether leave cleaning handles every data type startup would
func (e *Engine) leaveCoversAll() bool {
	snap := e.settings.Get()
	if !snap.DomainLeave.Enabled {
		return false
	}
	for _, c := range e.cleaners {
		name := c.DataType().Name
		if snap.Startup.Applies(name) && !snap.DomainLeave.Applies(name) {
			return false
		}
	}
	return true
}

// OnTabCreated forwards a tab creation to the watcher
func (e *Engine) OnTabCreated(tabID int, containerID, hostname string) {
	e.tabs.OnTabCreated(tabID, containerID, hostname)
	e.cleanInstantly(containerID, hostname)
}

// OnTabNavigated forwards a committed navigation to the watcher
func (e *Engine) OnTabNavigated(tabID int, hostname string) {
	e.tabs.OnTabNavigated(tabID, hostname)
	if containerID, ok := e.tabs.ContainerForTab(tabID); ok {
		e.cleanInstantly(containerID, hostname)
	}
}

// OnTabRemoved forwards a tab removal to the watcher
func (e *Engine) OnTabRemoved(tabID int) {
	e.tabs.OnTabRemoved(tabID)
}

// OnCookieChanged reacts to data being written for hostname in a container
func (e *Engine) OnCookieChanged(containerID, hostname string) {
	e.cleanInstantly(containerID, hostname)
}

// OnHeadersReceived filters response headers and triggers instant cleanup
// for the responding domain.
func (e *Engine) OnHeadersReceived(url string, tabID int, headers []models.HTTPHeader) headerfilter.BlockingResponse {
	resp := e.headers.OnHeadersReceived(url, tabID, headers)
	if containerID, ok := e.tabs.ContainerForTab(tabID); ok {
		e.cleanInstantly(containerID, models.HostnameFromURL(url))
	}
	return resp
}

// cleanInstantly removes data of INSTANTLY domains for the data types configured
// under instantly.types, regardless of open tabs.
func (e *Engine) cleanInstantly(containerID, hostname string) {
	hostname = models.NormalizeHostname(hostname)
	if hostname == "" || e.rules.Resolve(hostname) != models.CleanupInstantly {
		return
	}
	snap := e.settings.Get()
	for _, c := range e.cleaners {
		if snap.Instantly.Applies(c.DataType().Name) {
			c.CleanDomain(containerID, hostname)
		}
	}
}

// CleanNow removes every data type for hostname, ignoring rules and open tabs
func (e *Engine) CleanNow(containerID, hostname string) {
	hostname = models.NormalizeHostname(hostname)
	if hostname == "" {
		return
	}
	for _, c := range e.cleaners {
		c.CleanDomain(containerID, hostname)
	}
}

// IsDomainProtected reports whether any data type of hostname is protected in the container
func (e *Engine) IsDomainProtected(containerID, hostname string) bool {
	for _, c := range e.cleaners {
		if c.IsDomainProtected(containerID, hostname) {
			return true
		}
	}
	return false
}

// Startup sweeps the pending set at browser launch for the given containers.
// Domains open again stay pending; NEVER domains are dropped from the set.
func (e *Engine) Startup(containerIDs []string) {
	snap := e.settings.Get()
	if !snap.Startup.Enabled {
		return
	}

	var hostnames, never []string
	for _, h := range e.pending.Hostnames() {
		if e.tabs.ContainsDomain(h) {
			continue
		}
		if e.rules.Resolve(h) == models.CleanupNever {
			never = append(never, h)
			continue
		}
		hostnames = append(hostnames, h)
	}
	e.pending.Remove(never...)
	if len(hostnames) == 0 {
		return
	}

	for _, containerID := range containerIDs {
		for _, c := range e.cleaners {
			if snap.Startup.Applies(c.DataType().Name) {
				c.CleanDomains(containerID, hostnames)
			}
		}
	}
	e.log.Info("startup cleanup", zap.Strings("containers", containerIDs), zap.Int("hostnames", len(hostnames)))
}
