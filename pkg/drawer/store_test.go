package drawer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_CheckPanicsOnDuplicateID(t *testing.T) {
	s := newStore(NewLockGate(false), storeHooks{}, true)
	s.applySubmit(&Request{ID: "a"})

	s.pending = append(s.pending, &Request{ID: "a", RequestedAt: 99})

	assert.Panics(t, s.check)
}

func TestStore_CheckPanicsOnFIFOViolation(t *testing.T) {
	s := newStore(NewLockGate(false), storeHooks{}, true)
	s.applySubmit(&Request{ID: "a"})
	s.applySubmit(&Request{ID: "b"})
	s.applySubmit(&Request{ID: "c"})

	s.pending[0], s.pending[1] = s.pending[1], s.pending[0]

	assert.Panics(t, s.check)
}

func TestStore_CheckDisabled(t *testing.T) {
	s := newStore(NewLockGate(false), storeHooks{}, false)
	s.applySubmit(&Request{ID: "a"})
	s.pending = append(s.pending, &Request{ID: "a"})

	assert.NotPanics(t, s.check)
}

func TestStore_SequenceNumbersAreMonotonic(t *testing.T) {
	s := newStore(NewLockGate(false), storeHooks{}, true)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.submit(&Request{ID: id})
	}

	snap := s.snapshot()
	assert.Equal(t, uint64(1), snap.Current.RequestedAt)
	for i, r := range snap.Pending {
		assert.Equal(t, uint64(i+2), r.RequestedAt)
	}
}

func TestStore_CancelHeldForcedRequest(t *testing.T) {
	s := newStore(NewLockGate(false), storeHooks{}, true)
	s.submit(&Request{ID: "a"})
	s.cancel("a")
	s.submit(&Request{ID: "x", Priority: PriorityForced})
	s.cancel("x")
	s.acknowledge("a")

	assert.Equal(t, StateIdle, s.state())
	assert.Nil(t, s.snapshot().Held)
}

func TestStore_ScopeExitPurgesHeldRequest(t *testing.T) {
	var drops []DropReason
	s := newStore(NewLockGate(false), storeHooks{
		onDrop: func(_ *Request, reason DropReason) { drops = append(drops, reason) },
	}, true)
	s.submit(&Request{ID: "a", Scope: "home"})
	s.cancel("a")
	s.submit(&Request{ID: "x", Scope: "send", Priority: PriorityForced})

	s.scopeExit("send")
	assert.Nil(t, s.snapshot().Held)
	assert.Equal(t, StateClosing, s.state())
	assert.Equal(t, []DropReason{DropPurged}, drops)
}
