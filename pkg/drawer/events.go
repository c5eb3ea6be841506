package drawer

// EventType names a queue lifecycle event.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventQueued    EventType = "queued"
	EventShown     EventType = "shown"
	EventClosing   EventType = "closing"
	EventClosed    EventType = "closed"
	EventCancelled EventType = "cancelled"
	EventEvicted   EventType = "evicted"
	EventPurged    EventType = "purged"
	EventHeld      EventType = "held"
	EventDeferred  EventType = "deferred"
	EventLocked    EventType = "locked"
	EventUnlocked  EventType = "unlocked"
)

// Event describes a single queue transition.
type Event struct {
	Type     EventType `json:"type"`
	DrawerID string    `json:"drawerId,omitempty"`
	Scope    string    `json:"scope,omitempty"`
	Priority Priority  `json:"priority"`
	Pending  int       `json:"pending"`
}

// EventHandler receives lifecycle events. Handlers may call back into the
// Controller.
type EventHandler func(event Event)

// DropReason explains why a request record was destroyed.
type DropReason string

const (
	DropCancelled DropReason = "cancelled"
	DropClosed    DropReason = "closed"
	DropEvicted   DropReason = "evicted"
	DropPurged    DropReason = "purged"
	DropReplaced  DropReason = "replaced"
)

func (r DropReason) event() EventType {
	switch r {
	case DropClosed:
		return EventClosed
	case DropEvicted, DropReplaced:
		return EventEvicted
	case DropPurged:
		return EventPurged
	default:
		return EventCancelled
	}
}
