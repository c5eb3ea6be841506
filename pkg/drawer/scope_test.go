package drawer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	listeners []ScopeListener
	released  int
}

func (n *fakeNavigator) Subscribe(l ScopeListener) func() {
	n.listeners = append(n.listeners, l)
	return func() { n.released++ }
}

func (n *fakeNavigator) enter(scope string) {
	for _, l := range n.listeners {
		l.ScopeEntered(scope)
	}
}

func (n *fakeNavigator) exit(scope string) {
	for _, l := range n.listeners {
		l.ScopeWillExit(scope)
	}
}

func TestScopeTracker_PurgesOnExit(t *testing.T) {
	var purged []string
	tracker := NewScopeTracker(func(scope string) { purged = append(purged, scope) })
	nav := &fakeNavigator{}
	tracker.Bind(nav)

	nav.enter("main-1")
	assert.True(t, tracker.Active("main-1"))
	_, ok := tracker.Lifetime("main-1")
	assert.True(t, ok)

	nav.exit("main-1")
	assert.False(t, tracker.Active("main-1"))
	assert.Equal(t, []string{"main-1"}, purged)

	tracker.Close()
	assert.Equal(t, 1, nav.released)
}

func TestScopeTracker_IgnoresAppScope(t *testing.T) {
	var purged []string
	tracker := NewScopeTracker(func(scope string) { purged = append(purged, scope) })

	tracker.ScopeEntered(AppScope)
	tracker.ScopeWillExit(AppScope)

	assert.Empty(t, purged)
	assert.False(t, tracker.Active(AppScope))
}

func TestController_BindNavigation(t *testing.T) {
	c := newTestController()
	nav := &fakeNavigator{}
	c.BindNavigation(nav)
	require.Len(t, nav.listeners, 1)

	nav.enter("main-1")
	c.RequestOpen("drawer1", "main-1", nil)
	nav.enter("screen-1")
	c.RequestOpen("screen1", "screen-1", nil)
	nav.exit("main-1")

	assert.Equal(t, "screen1", c.Current().ID)
	assert.True(t, c.Scopes().Active("screen-1"))

	require.NoError(t, c.Close())
	assert.Equal(t, 1, nav.released)
}
