package daemon

import (
	"context"
	"time"

	"github.com/harun/drawerq/pkg/drawer"
)

const (
	defaultMaintenanceInterval = 30 * time.Second
	// staleCloseAfter is how long a drawer may wait for its close
	// acknowledgment before the event loop warns about it.
	staleCloseAfter = 10 * time.Second
)

// EventLoop runs periodic maintenance: queue stats and the stale close
// watchdog.
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
	now      func() time.Time

	closingID    string
	closingSince time.Time
	warned       bool
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	interval := time.Duration(d.config.Gateway.TickInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &EventLoop{
		daemon:   d,
		interval: interval,
		now:      time.Now,
	}
}

// Run runs the event loop until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Debug().Dur("interval", e.interval).Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Debug().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

// processTasks logs queue stats and watches for closes nobody acknowledges.
func (e *EventLoop) processTasks() {
	snap := e.daemon.controller.Snapshot()

	if snap.State != drawer.StateIdle || len(snap.Pending) > 0 {
		e.daemon.logger.Debug().
			Str("state", string(snap.State)).
			Str("current", snap.CurrentID()).
			Strs("pending", snap.PendingIDs()).
			Bool("locked", snap.Locked).
			Int("deferred", snap.Deferred).
			Msg("Queue stats")
	}

	e.watchClose(snap)
}

// watchClose warns once per close that has waited longer than
// staleCloseAfter. The daemon never acknowledges on a renderer's behalf.
func (e *EventLoop) watchClose(snap drawer.Snapshot) {
	if snap.State != drawer.StateClosing {
		e.closingID = ""
		e.warned = false
		return
	}

	id := snap.CurrentID()
	now := e.now()
	if id != e.closingID {
		e.closingID = id
		e.closingSince = now
		e.warned = false
		return
	}

	if e.warned || now.Sub(e.closingSince) < staleCloseAfter {
		return
	}
	e.warned = true

	clients := 0
	if e.daemon.gatewayServer != nil {
		clients = len(e.daemon.gatewayServer.GetConnectedClients())
	}
	e.daemon.logger.Warn().
		Str("drawerId", id).
		Dur("waiting", now.Sub(e.closingSince)).
		Int("clients", clients).
		Msg("Drawer close is still waiting for an acknowledgment")
}
