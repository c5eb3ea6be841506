package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/drawerq/internal/config"
	"github.com/harun/drawerq/internal/logger"
	"github.com/harun/drawerq/internal/observability"
	"github.com/harun/drawerq/internal/tracing"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/gateway"
	"github.com/harun/drawerq/pkg/navigation"
)

// Daemon hosts a drawer controller and its navigation stack behind the
// gateway so out-of-process renderers can mirror and acknowledge overlays.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	controller *drawer.Controller
	navigation *navigation.Stack

	// Services
	gatewayServer *gateway.Server

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running   bool            `json:"running"`
	StartTime time.Time       `json:"startTime,omitempty"`
	Uptime    time.Duration   `json:"uptime,omitempty"`
	Addr      string          `json:"addr,omitempty"`
	Clients   int             `json:"clients"`
	Drawer    drawer.Snapshot `json:"drawer"`
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Tracing.Enabled {
		err := tracing.InitOpenTelemetry(ctx, tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if cfg.Gateway.AuditLog != "" {
		if err := observability.InitAuditLogger(d.auditLogPath()); err != nil {
			d.abort()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	d.initializeCoreModules()

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// abort releases what New acquired before failing.
func (d *Daemon) abort() {
	d.cancel()
	if d.controller != nil {
		_ = d.controller.Close()
	}
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

func (d *Daemon) auditLogPath() string {
	path := d.config.Gateway.AuditLog
	if filepath.IsAbs(path) || d.config.DataDir == "" {
		return path
	}
	return filepath.Join(d.config.DataDir, path)
}

func (d *Daemon) initializeCoreModules() {
	zl := d.logger.GetZerolog()

	d.controller = drawer.New(
		drawer.WithLogger(zl),
		drawer.WithInvariantChecks(d.config.Queue.Strict),
		drawer.WithRefCountedLock(d.config.Queue.RefCountedLock),
	)
	d.navigation = navigation.NewStack(zl)
	d.controller.BindNavigation(d.navigation)

	d.logger.Debug().
		Bool("strict", d.config.Queue.Strict).
		Bool("refCountedLock", d.config.Queue.RefCountedLock).
		Msg("Drawer controller initialized")
}

func (d *Daemon) initializeServices() error {
	server, err := gateway.NewServer(gateway.Config{
		Host:         d.config.Gateway.Host,
		Port:         d.config.Gateway.Port,
		SharedSecret: d.config.Gateway.SharedSecret,
		TickInterval: time.Duration(d.config.Gateway.TickInterval) * time.Millisecond,
		Controller:   d.controller,
		Navigation:   d.navigation,
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = server
	return nil
}

// Start brings up the gateway and writes the runtime file.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("traceId", traceID).Logger()
	logger.Info().Msg("Starting drawerq daemon")

	if err := d.gatewayServer.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")

	if err := d.lifecycle.Start(); err != nil {
		_ = d.gatewayServer.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started successfully")
	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop shuts every service down. Stopping a daemon that is not running is
// an error.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("traceId", traceID).Logger()
	logger.Info().Msg("Stopping drawerq daemon")

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debug().Msg("Event loop stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for event loop to stop")
	}

	if err := d.gatewayServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop gateway server")
	}

	if err := d.controller.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close drawer controller")
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")
	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	running, startTime := d.running, d.startTime
	d.mu.RUnlock()

	status := Status{
		Running: running,
		Drawer:  d.controller.Snapshot(),
	}
	if running {
		status.StartTime = startTime
		status.Uptime = time.Since(startTime)
		status.Addr = d.gatewayServer.Addr()
		status.Clients = len(d.gatewayServer.GetConnectedClients())
	}
	return status
}

// Wait blocks until SIGINT, SIGTERM or ctx cancellation and then stops the
// daemon.
func (d *Daemon) Wait(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-ctx.Done():
		d.logger.Info().Msg("Context cancelled")
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetController returns the drawer controller
func (d *Daemon) GetController() *drawer.Controller {
	return d.controller
}

// GetNavigation returns the navigation stack
func (d *Daemon) GetNavigation() *navigation.Stack {
	return d.navigation
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}
