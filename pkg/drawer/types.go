package drawer

import "fmt"

// AppScope is the scope of requests that live outside any routed screen.
// They are never purged by scope exit.
const AppScope = ""

// Priority decides how a request competes for the current slot.
type Priority int

const (
	// PriorityNormal requests wait their FIFO turn.
	PriorityNormal Priority = iota
	// PriorityForced requests replace the current overlay and discard the queue.
	PriorityForced
)

func (p Priority) String() string {
	switch p {
	case PriorityForced:
		return "forced"
	default:
		return "normal"
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts "normal" or "forced".
func (p *Priority) UnmarshalText(text []byte) error {
	switch string(text) {
	case "forced":
		*p = PriorityForced
	case "normal", "":
		*p = PriorityNormal
	default:
		return fmt.Errorf("unknown priority %q", text)
	}
	return nil
}

// Request is the canonical record of a producer's wish to show a drawer.
type Request struct {
	ID          string   `json:"id"`
	Scope       string   `json:"scope"`
	Priority    Priority `json:"priority"`
	Payload     any      `json:"payload,omitempty"`
	RequestedAt uint64   `json:"requestedAt"`
}

// Overlay is what the rendering layer mounts. The zero value means no drawer.
type Overlay struct {
	ID      string `json:"id,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Forced  bool   `json:"forced,omitempty"`
	// Closing is set once the overlay has been asked to leave; the renderer
	// plays its exit transition and then calls Acknowledge.
	Closing bool `json:"closing,omitempty"`
}

// Empty reports whether no drawer is visible.
func (o Overlay) Empty() bool {
	return o.ID == ""
}

func overlayOf(r *Request, closing bool) Overlay {
	if r == nil {
		return Overlay{}
	}
	return Overlay{
		ID:      r.ID,
		Scope:   r.Scope,
		Payload: r.Payload,
		Forced:  r.Priority == PriorityForced,
		Closing: closing,
	}
}

// State names the queue's visibility state.
type State string

const (
	StateIdle    State = "idle"
	StateShowing State = "showing"
	StateClosing State = "closing"
)

// Snapshot is a read-only copy of the queue state.
type Snapshot struct {
	State    State     `json:"state"`
	Current  *Request  `json:"current,omitempty"`
	Pending  []Request `json:"pending"`
	Held     *Request  `json:"held,omitempty"`
	Locked   bool      `json:"locked"`
	Deferred int       `json:"deferred"`
	Reopen   bool      `json:"reopen,omitempty"`
}

// PendingIDs returns the ids of the pending requests in FIFO order.
func (s Snapshot) PendingIDs() []string {
	ids := make([]string, 0, len(s.Pending))
	for _, r := range s.Pending {
		ids = append(ids, r.ID)
	}
	return ids
}

// CurrentID returns the id of the current request or "".
func (s Snapshot) CurrentID() string {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}
