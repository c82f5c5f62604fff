package tabwatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []string
}

func (r *recorder) OnDomainEnter(containerID, hostname string) {
	r.events = append(r.events, "enter:"+containerID+":"+hostname)
}

func (r *recorder) OnDomainLeave(containerID, hostname string) {
	r.events = append(r.events, "leave:"+containerID+":"+hostname)
}

func TestRefCounting(t *testing.T) {
	rec := &recorder{}
	w := New(nil, rec)

	w.OnTabCreated(1, "firefox-default", "a.com")
	w.OnTabCreated(2, "firefox-default", "a.com")
	assert.Equal(t, []string{"enter:firefox-default:a.com"}, rec.events)
	assert.True(t, w.IsDomainOpen("firefox-default", "a.com"))

	w.OnTabRemoved(1)
	assert.Len(t, rec.events, 1, "2->1 must not fire leave")
	assert.True(t, w.IsDomainOpen("firefox-default", "a.com"))

	w.OnTabRemoved(2)
	assert.Equal(t, "leave:firefox-default:a.com", rec.events[1])
	assert.False(t, w.IsDomainOpen("firefox-default", "a.com"))
}

func TestNavigationFiresLeaveBeforeEnter(t *testing.T) {
	var order []string
	var w *Watcher
	w = New(nil, ListenerFuncs{
		Enter: func(c, h string) { order = append(order, "enter:"+h) },
		Leave: func(c, h string) {
			order = append(order, "leave:"+h)
			assert.False(t, w.IsDomainOpen(c, h))
			assert.False(t, w.IsDomainOpen(c, "b.com"), "enter must not be applied before leave is dispatched")
		},
	})

	w.OnTabCreated(7, "c1", "a.com")
	w.OnTabNavigated(7, "b.com")

	assert.Equal(t, []string{"enter:a.com", "leave:a.com", "enter:b.com"}, order)
	host, ok := w.HostnameForTab(7)
	assert.True(t, ok)
	assert.Equal(t, "b.com", host)
}

func TestSameHostnameNavigationIsNoop(t *testing.T) {
	rec := &recorder{}
	w := New(nil, rec)

	w.OnTabCreated(1, "c1", "a.com")
	w.OnTabNavigated(1, "A.com")
	assert.Equal(t, []string{"enter:c1:a.com"}, rec.events)

	w.OnTabCreated(2, "c1", "a.com")
	w.OnTabNavigated(2, "b.com")
	assert.Equal(t, []string{"enter:c1:a.com", "enter:c1:b.com"}, rec.events)
}

func TestContainersAreIsolated(t *testing.T) {
	rec := &recorder{}
	w := New(nil, rec)

	w.OnTabCreated(1, "c1", "a.com")
	w.OnTabCreated(2, "c2", "a.com")
	assert.Len(t, rec.events, 2)

	w.OnTabRemoved(1)
	assert.Equal(t, "leave:c1:a.com", rec.events[2])
	assert.False(t, w.IsDomainOpen("c1", "a.com"))
	assert.True(t, w.IsDomainOpen("c2", "a.com"))
	assert.True(t, w.ContainsDomain("a.com"))
	assert.Equal(t, []string{"c2"}, w.Containers())
}

func TestUnknownTabsAndEmptyHostnames(t *testing.T) {
	rec := &recorder{}
	w := New(nil, rec)

	w.OnTabRemoved(99)
	w.OnTabNavigated(99, "a.com")
	assert.Empty(t, rec.events)

	w.OnTabCreated(1, "c1", "")
	assert.Empty(t, rec.events)
	w.OnTabNavigated(1, "a.com")
	w.OnTabNavigated(1, "")
	assert.Equal(t, []string{"enter:c1:a.com", "leave:c1:a.com"}, rec.events)

	_, ok := w.HostnameForTab(99)
	assert.False(t, ok)
}

func TestRecreatedTabInOtherContainer(t *testing.T) {
	rec := &recorder{}
	w := New(nil, rec)

	w.OnTabCreated(1, "c1", "a.com")
	w.OnTabCreated(1, "c2", "a.com")
	assert.Equal(t, []string{"enter:c1:a.com", "leave:c1:a.com", "enter:c2:a.com"}, rec.events)

	container, ok := w.ContainerForTab(1)
	assert.True(t, ok)
	assert.Equal(t, "c2", container)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	rec := &recorder{}
	w := New(nil, ListenerFuncs{
		Enter: func(string, string) { panic("boom") },
	}, rec)
	w.AddListener(ListenerFuncs{})

	assert.NotPanics(t, func() { w.OnTabCreated(1, "c1", "a.com") })
	assert.Equal(t, []string{"enter:c1:a.com"}, rec.events)
	assert.ElementsMatch(t, []string{"a.com"}, w.OpenDomains("c1"))
}
