package drawer

import (
	"sync"
	"time"

	"github.com/harun/drawerq/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	logger     zerolog.Logger
	strict     bool
	refCounted bool
}

// Option configures a Controller.
type Option func(*options)

// WithLogger sets the logger used for queue transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInvariantChecks makes every mutation verify the queue invariants and
// panic on violation.
func WithInvariantChecks(enabled bool) Option {
	return func(o *options) { o.strict = enabled }
}

// WithRefCountedLock makes nested Lock calls require matching Unlock calls.
func WithRefCountedLock(enabled bool) Option {
	return func(o *options) { o.refCounted = enabled }
}

// Controller is the public façade over the drawer queue. All mutations are
// serialized; notifications are delivered after the mutation completes, in
// the order they happened.
type Controller struct {
	mu       sync.Mutex
	gate     *LockGate
	store    *store
	scopes   *ScopeTracker
	signal   *Signal
	out      *dispatcher
	logger   zerolog.Logger

	closingSince map[string]time.Time
	// collect receives the events of the running mutation when set.
	collect *[]Event

	handlers  map[EventType][]EventHandler
	handlerMu sync.RWMutex
}

// New creates a Controller with an empty queue.
func New(opts ...Option) *Controller {
	observability.EnsureRegistered()

	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	out := &dispatcher{}
	c := &Controller{
		gate:         NewLockGate(o.refCounted),
		signal:       newSignal(out),
		out:          out,
		logger:       o.logger.With().Str("component", "drawer").Logger(),
		closingSince: make(map[string]time.Time),
		handlers:     make(map[EventType][]EventHandler),
	}
	c.store = newStore(c.gate, storeHooks{
		onChange: c.onChange,
		onDrop:   c.onDrop,
		onAck:    c.onAck,
		onEvent:  c.onEvent,
	}, o.strict)
	c.scopes = NewScopeTracker(c.ExitScope)
	return c
}

// RequestOpen asks for id to be shown. Repeating the request while it is
// still desired has no effect.
func (c *Controller) RequestOpen(id, scope string, payload any) {
	if id == "" {
		c.logger.Warn().Msg("Ignoring drawer request without id")
		return
	}
	c.mutate(func() { c.open(id, scope, payload) })
}

// RequestClose withdraws id. A pending request is removed immediately; the
// current one starts closing and waits for Acknowledge.
func (c *Controller) RequestClose(id string) {
	c.mutate(func() { c.close(id) })
}

// Toggle flips the producer's desired state, like pressing the same button
// twice.
func (c *Controller) Toggle(id, scope string, payload any) {
	if id == "" {
		return
	}
	c.mutate(func() {
		c.store.toggle(&Request{ID: id, Scope: scope, Priority: PriorityNormal, Payload: payload})
	})
}

// ForceOpen shows id at once, discarding the current overlay and every
// pending request. It bypasses the toggle registry.
func (c *Controller) ForceOpen(id, scope string, payload any) {
	c.ForceOpenReport(id, scope, payload)
}

// ForceOpenReport is ForceOpen returning the ids it discarded. A forced
// request issued while locked discards nothing until Unlock, so it reports
// locked instead and UnlockReport lists the evictions.
func (c *Controller) ForceOpenReport(id, scope string, payload any) (evicted []string, locked bool) {
	if id == "" {
		c.logger.Warn().Msg("Ignoring forced drawer request without id")
		return nil, false
	}
	events := c.mutateCollect(func() {
		locked = c.gate.Held()
		c.store.submit(&Request{ID: id, Scope: scope, Priority: PriorityForced, Payload: payload})
	})
	return evictedIDs(events), locked
}

// Acknowledge is called by the rendering layer once the exit transition of
// id has finished. Acknowledgments for anything but the closing overlay are
// ignored.
func (c *Controller) Acknowledge(id string) {
	c.mutate(func() {
		if !c.store.acknowledge(id) {
			c.logger.Debug().Str("drawerId", id).Msg("Ignoring close acknowledgment")
		}
	})
}

// ExitScope discards every request owned by scope. A current overlay of that
// scope is dropped without waiting for an acknowledgment.
func (c *Controller) ExitScope(scope string) {
	c.mutate(func() {
		c.store.scopeExit(scope)
	})
}

// Lock suspends visibility changes. Operations issued while locked are
// recorded and applied in order on Unlock.
func (c *Controller) Lock() {
	c.mutate(func() {
		if !c.gate.Lock() {
			return
		}
		observability.SetDrawerLocked(true)
		c.logger.Debug().Msg("Drawer queue locked")
		c.emit(Event{Type: EventLocked, Pending: len(c.store.pending)})
	})
}

// Unlock releases the gate and replays what was recorded while locked.
func (c *Controller) Unlock() {
	c.UnlockReport()
}

// UnlockReport is Unlock returning how many recorded operations it replayed
// and the ids evicted by forced requests among them. Both are zero when the
// gate stays held.
func (c *Controller) UnlockReport() (replayed int, evicted []string) {
	events := c.mutateCollect(func() {
		if !c.gate.Unlock() {
			return
		}
		observability.SetDrawerLocked(false)
		replayed = len(c.store.journal)
		c.logger.Debug().Int("deferred", replayed).Msg("Drawer queue unlocked")
		c.store.flush()
		c.emit(Event{Type: EventUnlocked, Pending: len(c.store.pending)})
	})
	return replayed, evictedIDs(events)
}

// Locked reports whether the lock gate is held.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Held()
}

// Current returns the overlay the rendering layer should mount.
func (c *Controller) Current() Overlay {
	return c.signal.Current()
}

// Subscribe registers fn for every change of the current overlay.
func (c *Controller) Subscribe(fn func(Overlay)) (cancel func()) {
	return c.signal.Subscribe(fn)
}

// Snapshot returns a copy of the queue state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.snapshot()
}

// Desired reports whether producer id currently wants to be open.
func (c *Controller) Desired(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.registry.Desired(id)
}

// Scopes returns the tracker that binds requests to navigation scopes.
func (c *Controller) Scopes() *ScopeTracker {
	return c.scopes
}

// BindNavigation subscribes the scope tracker to a navigation host.
func (c *Controller) BindNavigation(src ScopeSource) {
	c.scopes.Bind(src)
}

// Close detaches the controller from its navigation hosts.
func (c *Controller) Close() error {
	c.scopes.Close()
	return nil
}

// On registers an event handler for a specific event type
func (c *Controller) On(eventType EventType, handler EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Off removes all handlers for the event type
func (c *Controller) Off(eventType EventType) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	delete(c.handlers, eventType)
}

func (c *Controller) open(id, scope string, payload any) {
	c.store.open(&Request{ID: id, Scope: scope, Priority: PriorityNormal, Payload: payload})
}

func (c *Controller) close(id string) {
	c.store.close(id)
}

func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	c.out.drain()
}

// mutateCollect runs fn like mutate and returns the events it produced.
func (c *Controller) mutateCollect(fn func()) []Event {
	var events []Event
	c.mutate(func() {
		c.collect = &events
		defer func() { c.collect = nil }()
		fn()
	})
	return events
}

func evictedIDs(events []Event) []string {
	ids := []string{}
	for _, e := range events {
		if e.Type == EventEvicted {
			ids = append(ids, e.DrawerID)
		}
	}
	return ids
}

func (c *Controller) onChange(o Overlay) {
	observability.SetDrawerVisible(!o.Empty())
	if _, ok := c.closingSince[o.ID]; o.Closing && !ok {
		c.closingSince[o.ID] = time.Now()
	}
	c.signal.publish(o)
}

func (c *Controller) onDrop(r *Request, reason DropReason) {
	if reason == DropPurged {
		observability.RecordScopePurge()
	}
	delete(c.closingSince, r.ID)
}

// onAck runs whenever a close acknowledgment is applied, including one
// replayed on Unlock.
func (c *Controller) onAck(r *Request) {
	if since, ok := c.closingSince[r.ID]; ok {
		observability.RecordCloseAck(time.Since(since))
		delete(c.closingSince, r.ID)
	}
}

func (c *Controller) onEvent(e Event) {
	if c.collect != nil {
		*c.collect = append(*c.collect, e)
	}
	if e.Type == EventSubmitted {
		observability.RecordDrawerRequest(e.Priority.String())
	}
	observability.RecordDrawerTransition(string(e.Type), e.Pending)
	c.logger.Debug().
		Str("event", string(e.Type)).
		Str("drawerId", e.DrawerID).
		Str("scope", e.Scope).
		Str("priority", e.Priority.String()).
		Int("pending", e.Pending).
		Msg("Drawer transition")
	c.emit(e)
}

func (c *Controller) emit(e Event) {
	c.handlerMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[e.Type]...)
	c.handlerMu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	c.out.enqueue(func() {
		for _, handler := range handlers {
			handler(e)
		}
	})
}
