package drawer

import "fmt"

type opKind int

const (
	opSubmit opKind = iota
	opCancel
	opOpen
	opClose
	opToggle
	opAck
	opScopeExit
)

// op is a journaled operation recorded while the lock gate is held.
type op struct {
	kind  opKind
	req   *Request
	id    string
	scope string
}

type storeHooks struct {
	onChange func(Overlay)
	onDrop   func(r *Request, reason DropReason)
	onAck    func(r *Request)
	onEvent  func(Event)
}

// store is the queue state machine. It owns every request record and all
// transition rules; it performs no locking of its own.
type store struct {
	gate     *LockGate
	hooks    storeHooks
	registry *Registry

	current *Request
	closing bool
	// reopen re-queues the closing current request once its close is acknowledged.
	reopen  bool
	held    *Request
	pending []*Request
	journal []op
	seq     uint64

	rev       uint64
	replaying bool
	strict    bool
}

func newStore(gate *LockGate, hooks storeHooks, strict bool) *store {
	if hooks.onChange == nil {
		hooks.onChange = func(Overlay) {}
	}
	if hooks.onDrop == nil {
		hooks.onDrop = func(*Request, DropReason) {}
	}
	if hooks.onAck == nil {
		hooks.onAck = func(*Request) {}
	}
	if hooks.onEvent == nil {
		hooks.onEvent = func(Event) {}
	}
	return &store{gate: gate, hooks: hooks, registry: NewRegistry(), strict: strict}
}

func (s *store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *store) submit(r *Request) {
	s.event(EventSubmitted, r)
	if s.gate.Held() {
		s.defer_(op{kind: opSubmit, req: r})
		return
	}
	s.applySubmit(r)
	s.check()
}

func (s *store) cancel(id string) {
	if s.gate.Held() {
		s.defer_(op{kind: opCancel, id: id})
		return
	}
	s.applyCancel(id)
	s.check()
}

// open is a producer request that goes through the registry first. While
// locked the registry is left alone too; the desire is recorded with the
// request and applied on replay.
func (s *store) open(r *Request) {
	if s.gate.Held() {
		s.event(EventSubmitted, r)
		s.defer_(op{kind: opOpen, req: r})
		return
	}
	s.applyOpen(r)
	s.check()
}

func (s *store) close(id string) {
	if s.gate.Held() {
		s.defer_(op{kind: opClose, id: id})
		return
	}
	s.applyClose(id)
	s.check()
}

// toggle opens or closes r.ID depending on the desire at the time it is
// applied.
func (s *store) toggle(r *Request) {
	if s.gate.Held() {
		s.defer_(op{kind: opToggle, req: r})
		return
	}
	s.applyToggle(r)
	s.check()
}

// acknowledge reports whether id was the closing current request. While
// locked the acknowledgment is journaled and the result is optimistic.
func (s *store) acknowledge(id string) bool {
	if s.gate.Held() {
		s.defer_(op{kind: opAck, id: id})
		return s.current != nil && s.current.ID == id && s.closing
	}
	ok := s.applyAck(id)
	s.check()
	return ok
}

func (s *store) scopeExit(scope string) {
	if scope == AppScope {
		return
	}
	if s.gate.Held() {
		s.defer_(op{kind: opScopeExit, scope: scope})
		return
	}
	s.applyScopeExit(scope)
	s.check()
}

// flush replays the journal in arrival order and emits the resulting
// visibility once.
func (s *store) flush() {
	if len(s.journal) == 0 {
		return
	}
	journal := s.journal
	s.journal = nil

	startRev := s.rev
	s.replaying = true
	for _, o := range journal {
		switch o.kind {
		case opSubmit:
			s.applySubmit(o.req)
		case opCancel:
			s.applyCancel(o.id)
		case opOpen:
			s.applyOpen(o.req)
		case opClose:
			s.applyClose(o.id)
		case opToggle:
			s.applyToggle(o.req)
		case opAck:
			s.applyAck(o.id)
		case opScopeExit:
			s.applyScopeExit(o.scope)
		}
	}
	s.replaying = false

	if s.rev != startRev {
		s.hooks.onChange(s.visible())
	}
	s.check()
}

func (s *store) defer_(o op) {
	s.journal = append(s.journal, o)
	e := Event{Type: EventDeferred, DrawerID: o.id, Scope: o.scope, Pending: len(s.pending)}
	if o.req != nil {
		e.DrawerID = o.req.ID
		e.Scope = o.req.Scope
		e.Priority = o.req.Priority
	}
	s.hooks.onEvent(e)
}

func (s *store) applyOpen(r *Request) {
	if s.registry.SetDesired(r.ID, r.Scope, r.Payload, true) {
		if !s.replaying {
			s.event(EventSubmitted, r)
		}
		s.applySubmit(r)
		return
	}
	// Outside a replay a repeated open is idempotent. A request recorded
	// while locked replaces the payload of the record it matches.
	if s.replaying {
		s.replacePayload(r)
	}
}

func (s *store) applyClose(id string) {
	s.registry.SetDesired(id, "", nil, false)
	s.applyCancel(id)
}

func (s *store) applyToggle(r *Request) {
	if s.registry.Desired(r.ID) {
		s.applyClose(r.ID)
		return
	}
	s.applyOpen(r)
}

func (s *store) replacePayload(r *Request) {
	s.registry.SetPayload(r.ID, r.Payload)
	if s.held != nil && s.held.ID == r.ID {
		s.held.Payload = r.Payload
	}
	if i := s.indexOf(r.ID); i >= 0 {
		s.pending[i].Payload = r.Payload
	}
	if s.current != nil && s.current.ID == r.ID {
		s.current.Payload = r.Payload
		s.changed()
	}
}

func (s *store) applySubmit(r *Request) {
	if r.Priority == PriorityForced {
		s.applyForced(r)
		return
	}

	if s.held != nil && s.held.ID == r.ID {
		return
	}
	if s.current != nil && s.current.ID == r.ID {
		if s.closing && !s.reopen {
			s.reopen = true
			s.current.Payload = r.Payload
			s.event(EventQueued, r)
		}
		return
	}
	if s.indexOf(r.ID) >= 0 {
		return
	}

	r.RequestedAt = s.nextSeq()
	if s.current == nil && s.held == nil {
		s.show(r)
		return
	}
	s.pending = append(s.pending, r)
	s.event(EventQueued, r)
}

func (s *store) applyForced(r *Request) {
	r.RequestedAt = s.nextSeq()
	s.evictPending()

	if s.closing {
		// The outgoing overlay is mid-transition; the forced request takes
		// the slot as soon as the close is acknowledged.
		s.reopen = false
		if s.held != nil && s.held.ID != r.ID {
			s.drop(s.held, DropReplaced)
		}
		s.held = r
		s.event(EventHeld, r)
		return
	}

	if s.current != nil && s.current.ID != r.ID {
		s.drop(s.current, DropEvicted)
	}
	s.current = nil
	s.show(r)
}

func (s *store) applyCancel(id string) {
	if i := s.indexOf(id); i >= 0 {
		r := s.pending[i]
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.drop(r, DropCancelled)
		return
	}
	if s.held != nil && s.held.ID == id {
		r := s.held
		s.held = nil
		s.drop(r, DropCancelled)
		return
	}
	if s.current == nil || s.current.ID != id {
		return
	}
	if s.closing {
		s.reopen = false
		return
	}
	s.closing = true
	s.event(EventClosing, s.current)
	s.changed()
}

func (s *store) applyAck(id string) bool {
	if s.current == nil || s.current.ID != id || !s.closing {
		return false
	}
	closed := s.current
	s.current = nil
	s.closing = false
	s.hooks.onAck(closed)

	if s.reopen {
		s.reopen = false
		closed.RequestedAt = s.nextSeq()
		s.pending = append(s.pending, closed)
		s.event(EventQueued, closed)
	} else {
		s.drop(closed, DropClosed)
	}
	s.promote()
	return true
}

func (s *store) applyScopeExit(scope string) {
	kept := s.pending[:0]
	for _, r := range s.pending {
		if r.Scope == scope {
			s.drop(r, DropPurged)
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = nil
	}
	s.pending = kept

	if s.held != nil && s.held.Scope == scope {
		r := s.held
		s.held = nil
		s.drop(r, DropPurged)
	}

	if s.current == nil || s.current.Scope != scope {
		return
	}
	// The screen is gone, so the close is treated as already acknowledged.
	r := s.current
	s.current = nil
	s.closing = false
	s.reopen = false
	s.drop(r, DropPurged)
	s.promote()
}

// promote fills the empty current slot: a held forced request first, then
// the head of the pending queue.
func (s *store) promote() {
	if s.held != nil {
		r := s.held
		s.held = nil
		s.show(r)
		return
	}
	if len(s.pending) > 0 {
		r := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.show(r)
		return
	}
	s.changed()
}

func (s *store) show(r *Request) {
	s.current = r
	s.closing = false
	s.event(EventShown, r)
	s.changed()
}

func (s *store) evictPending() {
	for _, r := range s.pending {
		s.drop(r, DropEvicted)
	}
	s.pending = nil
}

func (s *store) drop(r *Request, reason DropReason) {
	s.registry.Forget(r.ID)
	s.hooks.onDrop(r, reason)
	s.event(reason.event(), r)
}

func (s *store) changed() {
	s.rev++
	if s.replaying {
		return
	}
	s.hooks.onChange(s.visible())
}

func (s *store) event(t EventType, r *Request) {
	s.hooks.onEvent(Event{
		Type:     t,
		DrawerID: r.ID,
		Scope:    r.Scope,
		Priority: r.Priority,
		Pending:  len(s.pending),
	})
}

func (s *store) indexOf(id string) int {
	for i, r := range s.pending {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *store) visible() Overlay {
	return overlayOf(s.current, s.closing)
}

func (s *store) state() State {
	switch {
	case s.current == nil:
		return StateIdle
	case s.closing:
		return StateClosing
	default:
		return StateShowing
	}
}

func (s *store) snapshot() Snapshot {
	snap := Snapshot{
		State:    s.state(),
		Pending:  make([]Request, 0, len(s.pending)),
		Locked:   s.gate.Held(),
		Deferred: len(s.journal),
		Reopen:   s.reopen,
	}
	if s.current != nil {
		c := *s.current
		snap.Current = &c
	}
	if s.held != nil {
		h := *s.held
		snap.Held = &h
	}
	for _, r := range s.pending {
		snap.Pending = append(snap.Pending, *r)
	}
	return snap
}

// check panics when the store holds two records for one producer or a
// non-empty slot disagrees with its flags. A held forced request may share
// its id with the closing current one. Such a state can only be reached
// by bypassing the Controller.
func (s *store) check() {
	if !s.strict {
		return
	}
	seen := make(map[string]struct{}, len(s.pending)+2)
	mark := func(r *Request, where string) {
		if r == nil {
			return
		}
		if _, dup := seen[r.ID]; dup {
			panic(fmt.Sprintf("drawer: id %q appears twice (%s)", r.ID, where))
		}
		seen[r.ID] = struct{}{}
	}
	mark(s.current, "current")
	for _, r := range s.pending {
		mark(r, "pending")
	}
	if s.held != nil && s.indexOf(s.held.ID) >= 0 {
		panic(fmt.Sprintf("drawer: held id %q is also pending", s.held.ID))
	}
	if s.current == nil && (s.closing || s.reopen) {
		panic("drawer: closing flag set without a current overlay")
	}
	if s.held != nil && !s.closing {
		panic("drawer: forced request held while no close is in flight")
	}
	for i := 1; i < len(s.pending); i++ {
		if s.pending[i-1].RequestedAt >= s.pending[i].RequestedAt {
			panic("drawer: pending queue is out of FIFO order")
		}
	}
}
