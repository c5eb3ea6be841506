package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/harun/drawerq/internal/tracing"
)

// defaultIdempotencyTTL bounds how long a retried call replays its first
// response.
const defaultIdempotencyTTL = time.Minute

// replayKey scopes an idempotency key to the client that sent it and the
// method it was sent with. Two renderers picking the same key never share a
// response.
type replayKey struct {
	client string
	method string
	key    string
}

// cacheKey returns the replay key of req. Requests without a key are never
// cached.
func cacheKey(ctx context.Context, req *RPCRequest) (replayKey, bool) {
	if req.IdempotencyKey == "" {
		return replayKey{}, false
	}
	return replayKey{
		client: tracing.GetClientID(ctx),
		method: req.Method,
		key:    req.IdempotencyKey,
	}, true
}

// responseCache replays the first response for a repeated idempotency key.
// A client that resends drawer.force or drawer.ack must not evict or
// acknowledge twice, even when the resend overlaps the first call.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[replayKey]*flight
}

// flight is one keyed call. expiresAt stays zero while the handler runs.
type flight struct {
	ready     chan struct{}
	once      sync.Once
	response  RPCResponse
	ok        bool
	expiresAt time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[replayKey]*flight),
	}
}

// acquire returns the flight for key. leader is true when the caller must
// run the handler and then call finish; otherwise the caller waits on the
// returned flight.
func (c *responseCache) acquire(key replayKey) (f *flight, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.entries[key]; ok {
		if f.expiresAt.IsZero() || !c.now().After(f.expiresAt) {
			return f, false
		}
	}
	f = &flight{ready: make(chan struct{})}
	c.entries[key] = f
	return f, true
}

// finish stores resp for key, sweeps expired entries and wakes waiters.
func (c *responseCache) finish(key replayKey, f *flight, resp RPCResponse) {
	c.mu.Lock()
	now := c.now()
	for k, entry := range c.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	f.response = resp.clone()
	f.ok = true
	f.expiresAt = now.Add(c.ttl)
	c.entries[key] = f
	c.mu.Unlock()

	f.once.Do(func() { close(f.ready) })
}

// release drops a flight whose leader never finished so the key can be
// retried.
func (c *responseCache) release(key replayKey, f *flight) {
	c.mu.Lock()
	if !f.ok && c.entries[key] == f {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	f.once.Do(func() { close(f.ready) })
}

// wait blocks until the leader of f is done and returns its response under
// id.
func (c *responseCache) wait(ctx context.Context, f *flight, id string) *RPCResponse {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return errorResponse(id, InternalError, "request cancelled")
	}
	if !f.ok {
		return errorResponse(id, InternalError, "retried request did not complete")
	}
	resp := f.response.clone()
	resp.ID = id
	return &resp
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (r RPCResponse) clone() RPCResponse {
	if r.Error != nil {
		errCopy := *r.Error
		r.Error = &errCopy
	}
	return r
}
