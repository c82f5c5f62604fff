// Package cleaner decides whether a domain's stored data is protected and issues
// scoped deletion requests for one data type.
package cleaner

import (
	"slices"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/pending"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"go.uber.org/zap"
)

// DataType describes one kind of site data
type DataType struct {
	// Name is the browsingData key, also used in the *.types settings lists
	Name string
}

// Known data types
var (
	Cookies        = DataType{Name: browsingdata.Cookies}
	LocalStorage   = DataType{Name: browsingdata.LocalStorage}
	IndexedDB      = DataType{Name: browsingdata.IndexedDB}
	ServiceWorkers = DataType{Name: browsingdata.ServiceWorkers}
)

// DataTypes returns every known data type
func DataTypes() []DataType {
	return []DataType{Cookies, LocalStorage, IndexedDB, ServiceWorkers}
}

// Resolver maps a hostname to its cleanup type
type Resolver interface {
	Resolve(hostname string) models.CleanupType
}

// DomainTracker answers whether a domain is open
type DomainTracker interface {
	IsDomainOpen(containerID, hostname string) bool
	ContainsDomain(hostname string) bool
}

// Deps are the collaborators shared by every cleaner
type Deps struct {
	Settings *settings.Holder
	Rules    Resolver
	Tabs     DomainTracker
	Pending  *pending.Set
	Remover  browsingdata.Remover
	Log      *zap.Logger
}

// Cleaner removes one data type
type Cleaner struct {
	dataType DataType
	deps     Deps
	log      *zap.Logger
}

// New creates a cleaner for dt
func New(dt DataType, deps Deps) *Cleaner {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewHolder(nil)
	}
	return &Cleaner{
		dataType: dt,
		deps:     deps,
		log:      log.With(zap.String("data_type", dt.Name)),
	}
}

// All creates one cleaner per data type, in order; every known type when none are given
func All(deps Deps, types ...DataType) []*Cleaner {
	if len(types) == 0 {
		types = DataTypes()
	}
	out := make([]*Cleaner, 0, len(types))
	for _, dt := range types {
		out = append(out, New(dt, deps))
	}
	return out
}

// DataType returns the data type this cleaner removes
func (c *Cleaner) DataType() DataType {
	return c.dataType
}

// IsDomainProtected reports whether data for hostname must survive leave and instant cleanup:
// the domain is open in the container, or its rule is NEVER or STARTUP.
func (c *Cleaner) IsDomainProtected(containerID, hostname string) bool {
	if c.deps.Tabs != nil && c.deps.Tabs.IsDomainOpen(containerID, hostname) {
		return true
	}
	return c.deps.Rules != nil && c.deps.Rules.Resolve(hostname).Protects()
}

// CleanDomainOnLeave removes the data when leave cleaning is enabled for this data type
// and the domain is not protected.
func (c *Cleaner) CleanDomainOnLeave(containerID, hostname string) {
	if !c.deps.Settings.Get().DomainLeave.Applies(c.dataType.Name) {
		return
	}
	if c.IsDomainProtected(containerID, hostname) {
		return
	}
	c.remove(containerID, []string{hostname})
}

// CleanDomain removes the data unconditionally
func (c *Cleaner) CleanDomain(containerID, hostname string) {
	c.remove(containerID, []string{hostname})
}

// CleanDomains removes the data for a batch of hostnames, then drops them from the
// pending set unless they are open again.
func (c *Cleaner) CleanDomains(containerID string, hostnames []string) {
	if len(hostnames) == 0 {
		return
	}
	c.remove(containerID, hostnames)
	if c.deps.Pending == nil {
		return
	}
	var isOpen func(string) bool
	if c.deps.Tabs != nil {
		isOpen = c.deps.Tabs.ContainsDomain
	}
	c.deps.Pending.Forget(hostnames, isOpen)
}

// remove hands the request to the browser. Failures are logged and not retried:
// the next leave, startup or manual trigger covers the domain again.
func (c *Cleaner) remove(containerID string, hostnames []string) {
	if c.deps.Remover == nil {
		return
	}
	opts := browsingdata.RemovalOptions{
		OriginTypes:   browsingdata.OriginTypes{UnprotectedWeb: true},
		Hostnames:     slices.Clone(hostnames),
		CookieStoreID: containerID,
	}
	err := c.deps.Remover.Remove(opts, browsingdata.DataTypeSet{c.dataType.Name: true})
	if err != nil {
		c.log.Warn("removal request failed",
			zap.String("container", containerID),
			zap.Strings("hostnames", hostnames),
			zap.Error(err))
		return
	}
	c.log.Debug("removal requested",
		zap.String("container", containerID),
		zap.Strings("hostnames", hostnames))
}
