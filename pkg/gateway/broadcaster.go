package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/drawerq/pkg/drawer"
	"github.com/rs/zerolog"
)

// EventBroadcaster stamps server events with a gateway-wide sequence number
// and queues them on every connected renderer. Publishing never waits on the
// network; a renderer whose queue is full or closed is disconnected and
// resyncs from the initial overlay when it reconnects.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64
	now     func() time.Time

	// mu keeps every client queue in sequence order.
	mu sync.Mutex
}

// NewEventBroadcaster creates a broadcaster over clients
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
		now:     time.Now,
	}
}

// Broadcast sends a named event to all clients.
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.Publish(EventMessage{Event: event, Data: data})
}

// PublishOverlay mirrors a change of the current overlay.
func (b *EventBroadcaster) PublishOverlay(o drawer.Overlay) {
	b.Publish(EventMessage{Event: EventOverlay, Data: o})
}

// PublishLifecycle mirrors a controller lifecycle event as drawer.<type>.
func (b *EventBroadcaster) PublishLifecycle(e drawer.Event) {
	b.Publish(EventMessage{Event: eventDrawerPrefix + string(e.Type), Data: e})
}

// Publish stamps msg and queues it on every client. It returns how many
// clients accepted it.
func (b *EventBroadcaster) Publish(msg EventMessage) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(&msg)

	frame, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Msg("Failed to encode event")
		return 0
	}

	delivered := 0
	var failed []*Client
	for _, client := range b.clients.List() {
		if client.AwaitingAuth() {
			continue
		}
		if err := client.Send(frame); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Dropping client that cannot keep up")
			failed = append(failed, client)
			continue
		}
		delivered++
	}

	for _, client := range failed {
		b.clients.Remove(client.ID)
		client.Close()
	}

	if delivered > 0 || len(failed) > 0 {
		b.logger.Debug().
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Int("delivered", delivered).
			Int("dropped", len(failed)).
			Msg("Event published")
	}
	return delivered
}

// SendTo queues an event for a single client using the shared sequence.
func (b *EventBroadcaster) SendTo(client *Client, msg EventMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(&msg)
	return client.WriteJSON(msg)
}

func (b *EventBroadcaster) stamp(msg *EventMessage) {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = b.seq.Add(1)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = b.now().UnixMilli()
	}
}
