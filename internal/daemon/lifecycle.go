package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// RuntimeFileName is written to the data directory while the daemon runs.
const RuntimeFileName = "drawerq.runtime.json"

// RuntimeInfo tells other drawerq processes where the daemon listens.
type RuntimeInfo struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"startedAt"`
}

// ErrNotRunning is returned when no live daemon owns the runtime file.
var ErrNotRunning = errors.New("daemon is not running")

// LifecycleManager owns the runtime file.
type LifecycleManager struct {
	daemon      *Daemon
	runtimeFile string
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(d *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:      d,
		runtimeFile: RuntimeFilePath(d.config.DataDir),
	}
}

// RuntimeFilePath returns where the runtime file lives under dataDir.
func RuntimeFilePath(dataDir string) string {
	return filepath.Join(dataDir, RuntimeFileName)
}

// Start writes the runtime file
func (l *LifecycleManager) Start() error {
	if dir := l.daemon.config.DataDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if existing, err := ReadRuntimeInfo(l.daemon.config.DataDir); err == nil && existing.PID != os.Getpid() {
		return fmt.Errorf("another daemon is running (pid %d, addr %s)", existing.PID, existing.Addr)
	}

	info := RuntimeInfo{
		PID:       os.Getpid(),
		Addr:      l.daemon.gatewayServer.Addr(),
		StartedAt: l.daemon.Status().StartTime,
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode runtime file: %w", err)
	}
	if err := os.WriteFile(l.runtimeFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write runtime file: %w", err)
	}

	l.daemon.logger.Info().
		Str("runtimeFile", l.runtimeFile).
		Int("pid", info.PID).
		Msg("Lifecycle manager started")
	return nil
}

// Stop removes the runtime file
func (l *LifecycleManager) Stop() error {
	if err := os.Remove(l.runtimeFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove runtime file: %w", err)
	}

	l.daemon.logger.Info().Msg("Lifecycle manager stopped")
	return nil
}

// GetUptime returns the daemon uptime
func (l *LifecycleManager) GetUptime() time.Duration {
	return l.daemon.Status().Uptime
}

// ReadRuntimeInfo loads the runtime file from dataDir. It returns
// ErrNotRunning when the file is missing or its process is gone.
func ReadRuntimeInfo(dataDir string) (*RuntimeInfo, error) {
	data, err := os.ReadFile(RuntimeFilePath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to read runtime file: %w", err)
	}

	var info RuntimeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid runtime file: %w", err)
	}
	if !processAlive(info.PID) {
		return nil, ErrNotRunning
	}
	return &info, nil
}

// SignalStop asks the daemon recorded in dataDir to shut down.
func SignalStop(dataDir string) (*RuntimeInfo, error) {
	info, err := ReadRuntimeInfo(dataDir)
	if err != nil {
		return nil, err
	}
	process, err := os.FindProcess(info.PID)
	if err != nil {
		return nil, fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return nil, fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	return info, nil
}

// WaitStopped polls the runtime file until no live daemon owns it or ctx
// is done.
func WaitStopped(ctx context.Context, dataDir string, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if _, err := ReadRuntimeInfo(dataDir); errors.Is(err, ErrNotRunning) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Kill sends SIGKILL to info's process and removes the runtime file it
// could not remove itself.
func Kill(dataDir string, info *RuntimeInfo) error {
	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	if err := os.Remove(RuntimeFilePath(dataDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove runtime file: %w", err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 checks the process.
	return process.Signal(syscall.Signal(0)) == nil
}
