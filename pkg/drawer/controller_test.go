package drawer

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
}

func record(c *Controller) *recorder {
	r := &recorder{}
	c.Subscribe(func(o Overlay) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.frames = append(r.frames, frame(o))
	})
	return r
}

func (r *recorder) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func frame(o Overlay) string {
	switch {
	case o.Empty():
		return "-"
	case o.Closing:
		return o.ID + "~"
	default:
		return o.ID
	}
}

func newTestController(opts ...Option) *Controller {
	opts = append([]Option{WithLogger(zerolog.Nop()), WithInvariantChecks(true)}, opts...)
	return New(opts...)
}

func TestController_OpenShowsImmediately(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", "Drawer 1")

	assert.Equal(t, "drawer1", c.Current().ID)
	assert.Equal(t, "Drawer 1", c.Current().Payload)
	assert.Equal(t, []string{"drawer1"}, rec.Frames())
	assert.Equal(t, StateShowing, c.Snapshot().State)
}

func TestController_CloseWaitsForAcknowledgment(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", nil)
	c.RequestClose("drawer1")

	snap := c.Snapshot()
	assert.Equal(t, StateClosing, snap.State)
	assert.Equal(t, "drawer1", snap.CurrentID())
	assert.True(t, c.Current().Closing)

	c.Acknowledge("drawer1")

	assert.True(t, c.Current().Empty())
	assert.Equal(t, []string{"drawer1", "drawer1~", "-"}, rec.Frames())
	assert.False(t, c.Desired("drawer1"))
}

func TestController_QueuedDrawerShownAfterClose(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", nil)
	c.RequestOpen("drawer2", "main", nil)

	assert.Equal(t, "drawer1", c.Current().ID)
	assert.Equal(t, []string{"drawer2"}, c.Snapshot().PendingIDs())

	c.RequestClose("drawer1")
	assert.Equal(t, "drawer1", c.Current().ID, "queued drawer waits for the exit transition")

	c.Acknowledge("drawer1")
	assert.Equal(t, "drawer2", c.Current().ID)

	c.RequestClose("drawer2")
	c.Acknowledge("drawer2")

	assert.Equal(t, []string{"drawer1", "drawer1~", "drawer2", "drawer2~", "-"}, rec.Frames())
}

func TestController_CancelPendingNeverShows(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", nil)
	c.Toggle("drawer2", "main", nil)
	assert.Equal(t, []string{"drawer2"}, c.Snapshot().PendingIDs())

	c.Toggle("drawer2", "main", nil)
	assert.Empty(t, c.Snapshot().PendingIDs())

	c.RequestClose("drawer1")
	c.Acknowledge("drawer1")

	assert.True(t, c.Current().Empty())
	assert.NotContains(t, rec.Frames(), "drawer2")
}

func TestController_ForceOpenEvictsEverything(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", nil)
	c.RequestOpen("drawer2", "main", nil)
	c.RequestOpen("drawer3", "main", nil)
	c.ForceOpen("drawer4", "main", nil)

	assert.Equal(t, "drawer4", c.Current().ID)
	assert.True(t, c.Current().Forced)
	assert.Empty(t, c.Snapshot().PendingIDs())

	c.RequestClose("drawer4")
	c.Acknowledge("drawer4")

	assert.Equal(t, []string{"drawer1", "drawer4", "drawer4~", "-"}, rec.Frames())
	for _, id := range []string{"drawer1", "drawer2", "drawer3"} {
		assert.False(t, c.Desired(id), id)
	}
}

func TestController_EvictedDrawerReopensAsFreshSubmission(t *testing.T) {
	c := newTestController()

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.ForceOpen("x", "main", nil)

	c.RequestOpen("a", "main", nil)
	assert.Equal(t, "x", c.Current().ID)
	assert.Equal(t, []string{"a"}, c.Snapshot().PendingIDs())

	c.RequestClose("x")
	c.Acknowledge("x")
	assert.Equal(t, "a", c.Current().ID)
}

func TestController_ConsecutiveForcedRequests(t *testing.T) {
	c := newTestController()

	c.RequestOpen("a", "main", nil)
	c.ForceOpen("x", "main", nil)
	c.ForceOpen("y", "main", nil)

	assert.Equal(t, "y", c.Current().ID)
	assert.Empty(t, c.Snapshot().PendingIDs())
}

func TestController_ForcedWhileClosingIsHeld(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.RequestClose("a")
	c.ForceOpen("x", "main", nil)

	snap := c.Snapshot()
	assert.Equal(t, StateClosing, snap.State)
	require.NotNil(t, snap.Held)
	assert.Equal(t, "x", snap.Held.ID)
	assert.Empty(t, snap.PendingIDs())

	c.RequestOpen("c", "main", nil)
	assert.Equal(t, []string{"c"}, c.Snapshot().PendingIDs())

	c.Acknowledge("a")
	assert.Equal(t, "x", c.Current().ID)
	assert.Equal(t, []string{"c"}, c.Snapshot().PendingIDs())
	assert.Equal(t, []string{"a", "a~", "x"}, rec.Frames())
}

func TestController_ReopenWhileClosing(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.RequestClose("a")
	c.RequestOpen("a", "main", "again")

	assert.True(t, c.Snapshot().Reopen)

	c.Acknowledge("a")
	assert.Equal(t, "b", c.Current().ID)
	assert.Equal(t, []string{"a"}, c.Snapshot().PendingIDs())

	c.RequestClose("b")
	c.Acknowledge("b")
	assert.Equal(t, "a", c.Current().ID)
	assert.Equal(t, "again", c.Current().Payload)
	assert.Equal(t, []string{"a", "a~", "b", "b~", "a"}, rec.Frames())
}

func TestController_ReopenCancelledBeforeAck(t *testing.T) {
	c := newTestController()

	c.RequestOpen("a", "main", nil)
	c.RequestClose("a")
	c.RequestOpen("a", "main", nil)
	c.RequestClose("a")
	c.Acknowledge("a")

	assert.True(t, c.Current().Empty())
	assert.Empty(t, c.Snapshot().PendingIDs())
}

func TestController_IdempotentOpen(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("a", "main", nil)
	c.ForceOpen("b", "main", nil)
	c.RequestOpen("c", "main", nil)
	c.RequestOpen("c", "main", nil)

	assert.Equal(t, []string{"a", "b"}, rec.Frames())
	assert.Equal(t, []string{"c"}, c.Snapshot().PendingIDs())
}

func TestController_ScopeExitPurgesScope(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("drawer1", "main", nil)
	c.RequestOpen("drawer2", "main", nil)
	c.RequestOpen("screen1", "screen-1", nil)

	c.ExitScope("main")

	assert.Equal(t, "screen1", c.Current().ID)
	assert.Empty(t, c.Snapshot().PendingIDs())
	assert.Equal(t, []string{"drawer1", "screen1"}, rec.Frames())
	assert.False(t, c.Desired("drawer2"))
}

func TestController_ScopeExitWhileClosingSkipsAck(t *testing.T) {
	c := newTestController()

	c.RequestOpen("drawer1", "main", nil)
	c.RequestOpen("other", "settings", nil)
	c.RequestClose("drawer1")
	c.ExitScope("main")

	assert.Equal(t, "other", c.Current().ID)
	c.Acknowledge("drawer1")
	assert.Equal(t, "other", c.Current().ID, "late acknowledgment is ignored")
}

func TestController_ScopeExitUnknownScope(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("a", "main", nil)
	c.ExitScope("never-opened")

	assert.Equal(t, "a", c.Current().ID)
	assert.Equal(t, []string{"a"}, rec.Frames())
}

func TestController_AppScopeSurvivesScopeExit(t *testing.T) {
	c := newTestController()

	c.RequestOpen("app", AppScope, nil)
	c.ExitScope(AppScope)
	c.ExitScope("main")

	assert.Equal(t, "app", c.Current().ID)
}

func TestController_AcknowledgeIgnoredWhenNotClosing(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.RequestOpen("a", "main", nil)
	c.Acknowledge("a")
	c.Acknowledge("ghost")
	c.RequestClose("ghost")

	assert.Equal(t, "a", c.Current().ID)
	assert.Equal(t, []string{"a"}, rec.Frames())
}

func TestController_LockDefersVisibility(t *testing.T) {
	c := newTestController()
	rec := record(c)

	c.Lock()
	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.ForceOpen("x", "main", nil)
	c.RequestOpen("c", "main", nil)

	snap := c.Snapshot()
	assert.True(t, snap.Locked)
	assert.Equal(t, 4, snap.Deferred)
	assert.True(t, c.Current().Empty())
	assert.Empty(t, rec.Frames())

	c.Unlock()

	assert.Equal(t, "x", c.Current().ID)
	assert.Equal(t, []string{"c"}, c.Snapshot().PendingIDs())
	assert.Equal(t, []string{"x"}, rec.Frames(), "replay emits the net result once")
	assert.Zero(t, c.Snapshot().Deferred)
}

func TestController_LockDefersAcknowledgment(t *testing.T) {
	c := newTestController()

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.RequestClose("a")

	c.Lock()
	c.Acknowledge("a")
	assert.Equal(t, "a", c.Current().ID)

	c.Unlock()
	assert.Equal(t, "b", c.Current().ID)
}

func TestController_LockIsBooleanByDefault(t *testing.T) {
	c := newTestController()

	c.Lock()
	c.Lock()
	c.RequestOpen("a", "main", nil)
	c.Unlock()

	assert.False(t, c.Locked())
	assert.Equal(t, "a", c.Current().ID)

	c.Unlock()
	assert.False(t, c.Locked())
}

func TestController_RefCountedLock(t *testing.T) {
	c := newTestController(WithRefCountedLock(true))

	c.Lock()
	c.Lock()
	c.RequestOpen("a", "main", nil)
	c.Unlock()

	assert.True(t, c.Locked())
	assert.True(t, c.Current().Empty())

	c.Unlock()
	assert.Equal(t, "a", c.Current().ID)
}

func TestController_LockReplaysRegistry(t *testing.T) {
	t.Run("request after force is a fresh submission", func(t *testing.T) {
		run := func(locked bool) *Controller {
			c := newTestController()
			c.RequestOpen("a", "main", nil)
			if locked {
				c.Lock()
			}
			c.ForceOpen("x", "main", nil)
			c.RequestOpen("a", "main", nil)
			if locked {
				c.Unlock()
			}
			return c
		}

		unlocked, locked := run(false), run(true)
		assert.Equal(t, "x", locked.Current().ID)
		assert.Equal(t, []string{"a"}, locked.Snapshot().PendingIDs())
		assert.True(t, locked.Desired("a"))
		assert.Equal(t, unlocked.Snapshot().PendingIDs(), locked.Snapshot().PendingIDs())
		assert.Equal(t, unlocked.Desired("a"), locked.Desired("a"))
	})

	t.Run("close then reopen a pending id", func(t *testing.T) {
		c := newTestController()
		c.RequestOpen("a", "main", nil)
		c.RequestOpen("b", "main", nil)

		c.Lock()
		c.RequestClose("b")
		c.RequestOpen("b", "main", nil)
		c.Unlock()

		assert.Equal(t, []string{"b"}, c.Snapshot().PendingIDs())
		assert.True(t, c.Desired("b"))

		c.Toggle("b", "main", nil)
		assert.Empty(t, c.Snapshot().PendingIDs())
		assert.False(t, c.Desired("b"))
	})

	t.Run("toggle is decided on replay", func(t *testing.T) {
		c := newTestController()
		c.RequestOpen("a", "main", nil)

		c.Lock()
		c.RequestClose("a")
		c.Toggle("a", "main", nil)
		c.Unlock()

		snap := c.Snapshot()
		assert.Equal(t, StateClosing, snap.State)
		assert.True(t, snap.Reopen)
		assert.True(t, c.Desired("a"))
	})

	t.Run("scope exit then request again", func(t *testing.T) {
		c := newTestController()
		c.RequestOpen("a", "home", nil)

		c.Lock()
		c.ExitScope("home")
		c.RequestOpen("a", "settings", nil)
		c.Unlock()

		snap := c.Snapshot()
		require.NotNil(t, snap.Current)
		assert.Equal(t, "a", snap.Current.ID)
		assert.Equal(t, "settings", snap.Current.Scope)
		assert.True(t, c.Desired("a"))
	})
}

func TestController_LockReplacesPayload(t *testing.T) {
	c := newTestController()
	rec := record(c)
	c.RequestOpen("a", "main", "p1")
	c.RequestOpen("b", "main", "p1")

	c.RequestOpen("a", "main", "ignored")
	assert.Equal(t, "p1", c.Current().Payload, "repeated open outside a lock is a no-op")

	c.Lock()
	c.RequestOpen("a", "main", "p2")
	c.RequestOpen("b", "main", "p2")
	assert.Equal(t, "p1", c.Current().Payload)
	c.Unlock()

	assert.Equal(t, "p2", c.Current().Payload)
	snap := c.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "p2", snap.Pending[0].Payload)
	assert.Equal(t, []string{"a", "a"}, rec.Frames())
}

func TestController_LockedAcknowledgmentClearsCloseTimer(t *testing.T) {
	c := newTestController()
	c.RequestOpen("a", "main", nil)
	c.RequestClose("a")
	require.Contains(t, c.closingSince, "a")

	c.Lock()
	c.Acknowledge("a")
	c.Unlock()

	assert.True(t, c.Current().Empty())
	assert.Empty(t, c.closingSince)
}

func TestController_ForceOpenReport(t *testing.T) {
	t.Run("reports current and pending evictions", func(t *testing.T) {
		c := newTestController()
		c.RequestOpen("a", "main", nil)
		c.RequestOpen("b", "main", nil)

		evicted, locked := c.ForceOpenReport("x", "main", nil)
		assert.False(t, locked)
		assert.ElementsMatch(t, []string{"a", "b"}, evicted)
	})

	t.Run("locked force reports on unlock", func(t *testing.T) {
		c := newTestController()
		c.RequestOpen("a", "main", nil)
		c.RequestOpen("b", "main", nil)

		c.Lock()
		evicted, locked := c.ForceOpenReport("x", "main", nil)
		assert.True(t, locked)
		assert.Empty(t, evicted)

		replayed, evicted := c.UnlockReport()
		assert.Equal(t, 1, replayed)
		assert.ElementsMatch(t, []string{"a", "b"}, evicted)
		assert.Equal(t, "x", c.Current().ID)
	})

	t.Run("nothing to evict", func(t *testing.T) {
		c := newTestController()
		evicted, _ := c.ForceOpenReport("x", "main", nil)
		assert.Empty(t, evicted)

		replayed, evicted := c.UnlockReport()
		assert.Zero(t, replayed)
		assert.Empty(t, evicted)
	})
}

func TestController_ReentrantSubscriber(t *testing.T) {
	c := newTestController()
	rec := record(c)

	// Renderer with an instant exit transition.
	c.Subscribe(func(o Overlay) {
		if o.Closing {
			c.Acknowledge(o.ID)
		}
	})

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.RequestClose("a")

	assert.Equal(t, "b", c.Current().ID)
	assert.Equal(t, []string{"a", "a~", "b"}, rec.Frames())
}

func TestController_SubscribeCancel(t *testing.T) {
	c := newTestController()

	calls := 0
	cancel := c.Subscribe(func(Overlay) { calls++ })
	c.RequestOpen("a", "main", nil)
	cancel()
	cancel()
	c.RequestClose("a")

	assert.Equal(t, 1, calls)
}

func TestController_Events(t *testing.T) {
	c := newTestController()

	var events []Event
	c.On(EventShown, func(e Event) { events = append(events, e) })
	c.On(EventEvicted, func(e Event) { events = append(events, e) })

	c.RequestOpen("a", "main", nil)
	c.RequestOpen("b", "main", nil)
	c.ForceOpen("x", "main", nil)

	require.Len(t, events, 4)
	assert.Equal(t, EventShown, events[0].Type)
	assert.Equal(t, "a", events[0].DrawerID)
	assert.Equal(t, EventEvicted, events[1].Type)
	assert.Equal(t, "b", events[1].DrawerID)
	assert.Equal(t, EventEvicted, events[2].Type)
	assert.Equal(t, "a", events[2].DrawerID)
	assert.Equal(t, EventShown, events[3].Type)
	assert.Equal(t, PriorityForced, events[3].Priority)

	c.Off(EventShown)
	c.RequestClose("x")
	c.Acknowledge("x")
	assert.Len(t, events, 4)
}

func TestController_EmptyIDIgnored(t *testing.T) {
	c := newTestController()

	c.RequestOpen("", "main", nil)
	c.ForceOpen("", "main", nil)
	c.Toggle("", "main", nil)

	assert.True(t, c.Current().Empty())
	assert.Equal(t, StateIdle, c.Snapshot().State)
}

// Normal producers are served in request order, minus those cancelled before
// promotion, and at most one drawer is ever current.
func TestController_FIFOProperty(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		c := newTestController()

		order := make(map[string]int)
		next := 0
		var shown []int
		c.On(EventShown, func(e Event) {
			shown = append(shown, order[e.DrawerID])
		})

		ids := []string{"d0", "d1", "d2", "d3", "d4", "d5"}
		for step := 0; step < 200; step++ {
			id := ids[rng.Intn(len(ids))]
			cur := c.Current()
			switch rng.Intn(4) {
			case 0, 1:
				if cur.ID == id || c.Desired(id) {
					continue
				}
				next++
				order[id] = next
				c.RequestOpen(id, "main", nil)
			case 2:
				c.RequestClose(id)
			case 3:
				if cur.Closing {
					c.Acknowledge(cur.ID)
				}
			}
		}

		for i := 1; i < len(shown); i++ {
			require.Less(t, shown[i-1], shown[i], "seed %d", seed)
		}
	}
}
