package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/harun/drawerq/internal/observability"
)

// idleAfter is how long a renderer may stay silent before it is reported idle.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks connected renderers and the close acknowledgments
// each of them delivered.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

// Add registers a client and returns the number of connected clients.
func (r *ClientRegistry) Add(client *Client) int {
	r.mu.Lock()
	r.clients[client.ID] = client
	count := len(r.clients)
	r.mu.Unlock()

	observability.SetGatewayClients(count)
	return count
}

// Remove forgets a client. It reports whether the client was registered, so
// concurrent disconnect paths can tell which of them won.
func (r *ClientRegistry) Remove(clientID string) bool {
	r.mu.Lock()
	_, existed := r.clients[clientID]
	delete(r.clients, clientID)
	count := len(r.clients)
	r.mu.Unlock()

	if existed {
		observability.SetGatewayClients(count)
	}
	return existed
}

// Get looks a client up by id.
func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	return client, ok
}

// List returns the connected clients, oldest connection first.
func (r *ClientRegistry) List() []*Client {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].ConnectedAt.Equal(clients[j].ConnectedAt) {
			return clients[i].ID < clients[j].ID
		}
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return clients
}

// Len returns the number of connected clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Touch records activity from a client.
func (r *ClientRegistry) Touch(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = r.now()
	}
}

// RecordAck notes that clientID acknowledged the close of drawerID. Unknown
// clients, such as one-shot HTTP callers, are ignored.
func (r *ClientRegistry) RecordAck(clientID, drawerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.Acks++
		client.LastAck = drawerID
		client.LastActivity = r.now()
	}
}

// Infos describes every connected client, oldest connection first.
func (r *ClientRegistry) Infos() []ClientInfo {
	now := r.now()
	clients := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(clients))
	for _, client := range clients {
		infos = append(infos, ClientInfo{
			ID:           client.ID,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: client.LastActivity,
			IPAddress:    client.IPAddress,
			Acks:         client.Acks,
			LastAck:      client.LastAck,
			Idle:         now.Sub(client.LastActivity) > idleAfter,
		})
	}
	return infos
}
