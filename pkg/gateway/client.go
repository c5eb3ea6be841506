package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout  = 5 * time.Second
	sendQueueSize = 64
)

var (
	// ErrClientClosed is returned when sending to a disconnected client.
	ErrClientClosed = errors.New("client connection closed")
	// ErrSendQueueFull is returned when a client cannot keep up. The client
	// is disconnected and resyncs from the initial overlay on reconnect.
	ErrSendQueueFull = errors.New("client send queue is full")
)

// Client is a connected renderer. Frames are queued and written by the
// client's own goroutine, so a slow renderer never blocks the controller.
// LastActivity, Acks and LastAck are guarded by the owning ClientRegistry;
// Challenge and AuthAttempts belong to the read loop.
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string
	RateLimiter  *ClientRateLimiter
	Acks         int
	LastAck      string

	Challenge    string
	AuthAttempts int

	// awaitingAuth keeps a challenged client out of broadcasts.
	awaitingAuth atomic.Bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onClosed  func(*Client)
}

// NewClient wraps conn and starts its writer. onClosed, if set, runs once
// when the client is closed for any reason.
func NewClient(id string, conn *websocket.Conn, onClosed func(*Client)) *Client {
	now := time.Now()
	c := &Client{
		ID:           id,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		RateLimiter:  NewClientRateLimiter(),
		send:         make(chan []byte, sendQueueSize),
		done:         make(chan struct{}),
		onClosed:     onClosed,
	}
	go c.writePump()
	return c
}

// Send queues a pre-encoded text frame without blocking. A full queue
// closes the client.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.Close()
		return ErrSendQueueFull
	}
}

// WriteJSON encodes v and queues it.
func (c *Client) WriteJSON(v interface{}) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return c.Send(frame)
}

// Close stops the writer. Frames already queued are flushed before the
// connection is closed.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.onClosed != nil {
			c.onClosed(c)
		}
	})
}

// AwaitingAuth reports whether the client still owes an auth.response.
func (c *Client) AwaitingAuth() bool {
	return c.awaitingAuth.Load()
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writePump() {
	defer func() { _ = c.Conn.Close() }()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.send:
					if c.write(frame) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Client) write(frame []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, frame)
}
