package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/harun/drawerq/internal/config"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/stretchr/testify/assert"
)

func TestNewEventLoop(t *testing.T) {
	d := createTestDaemon(t)

	eventLoop := NewEventLoop(d)
	assert.Equal(t, d, eventLoop.daemon)
	assert.Equal(t, defaultMaintenanceInterval, eventLoop.interval)

	d = createTestDaemon(t, func(cfg *config.Config) {
		cfg.Gateway.TickInterval = 250
	})
	assert.Equal(t, 250*time.Millisecond, NewEventLoop(d).interval)
}

func TestEventLoopRun(t *testing.T) {
	d := createTestDaemon(t, func(cfg *config.Config) {
		cfg.Gateway.TickInterval = 10
	})
	eventLoop := NewEventLoop(d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eventLoop.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
}

func TestEventLoop_StaleCloseWatchdog(t *testing.T) {
	d := createTestDaemon(t)
	ctrl := d.GetController()

	now := time.Unix(1000, 0)
	eventLoop := NewEventLoop(d)
	eventLoop.now = func() time.Time { return now }

	ctrl.RequestOpen("promo", drawer.AppScope, nil)
	ctrl.RequestClose("promo")

	eventLoop.processTasks()
	assert.Equal(t, "promo", eventLoop.closingID)
	assert.False(t, eventLoop.warned)

	now = now.Add(staleCloseAfter / 2)
	eventLoop.processTasks()
	assert.False(t, eventLoop.warned)

	now = now.Add(staleCloseAfter)
	eventLoop.processTasks()
	assert.True(t, eventLoop.warned)

	ctrl.Acknowledge("promo")
	eventLoop.processTasks()
	assert.Empty(t, eventLoop.closingID)
	assert.False(t, eventLoop.warned)
}
