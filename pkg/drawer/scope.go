package drawer

import (
	"sync"
	"time"
)

// ScopeListener receives navigation scope lifecycle events. ScopeEntered
// always precedes the matching ScopeWillExit.
type ScopeListener interface {
	ScopeEntered(scope string)
	ScopeWillExit(scope string)
}

// ScopeSource is the navigation host. Subscribe returns the handle that
// detaches the listener.
type ScopeSource interface {
	Subscribe(l ScopeListener) (release func())
}

type scopeHandle struct {
	enteredAt time.Time
}

// ScopeTracker binds drawer requests to navigation scopes and purges them
// when a scope exits. The purge runs inside ScopeWillExit so it completes
// before the host unmounts the scope's subtree.
type ScopeTracker struct {
	mu       sync.Mutex
	handles  map[string]scopeHandle
	releases []func()
	purge    func(scope string)
}

// NewScopeTracker creates a tracker that calls purge on every scope exit.
func NewScopeTracker(purge func(scope string)) *ScopeTracker {
	return &ScopeTracker{
		handles: make(map[string]scopeHandle),
		purge:   purge,
	}
}

// Bind subscribes the tracker to a navigation host.
func (t *ScopeTracker) Bind(src ScopeSource) {
	release := src.Subscribe(t)
	t.mu.Lock()
	t.releases = append(t.releases, release)
	t.mu.Unlock()
}

// ScopeEntered opens a handle for scope.
func (t *ScopeTracker) ScopeEntered(scope string) {
	if scope == AppScope {
		return
	}
	t.mu.Lock()
	t.handles[scope] = scopeHandle{enteredAt: time.Now()}
	t.mu.Unlock()
}

// ScopeWillExit purges the scope's requests and releases its handle. Scopes
// that were never entered are purged too; that is a no-op when they own
// nothing.
func (t *ScopeTracker) ScopeWillExit(scope string) {
	if scope == AppScope {
		return
	}
	t.purge(scope)
	t.mu.Lock()
	delete(t.handles, scope)
	t.mu.Unlock()
}

// Active reports whether scope has been entered and not exited.
func (t *ScopeTracker) Active(scope string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[scope]
	return ok
}

// Lifetime returns how long scope has been mounted.
func (t *ScopeTracker) Lifetime(scope string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[scope]
	if !ok {
		return 0, false
	}
	return time.Since(h.enteredAt), true
}

// Close detaches the tracker from every bound host.
func (t *ScopeTracker) Close() {
	t.mu.Lock()
	releases := t.releases
	t.releases = nil
	t.mu.Unlock()
	for _, release := range releases {
		release()
	}
}
