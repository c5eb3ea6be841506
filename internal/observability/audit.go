package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Audit kinds.
const (
	AuditKindDrawer = "drawer"
	AuditKindConfig = "config"
)

// AuditEntry is one line of the audit log: an imperative action taken from
// outside the process, such as a forced open or a lock held by a gateway
// client.
type AuditEntry struct {
	Kind      string
	Action    string
	Actor     string
	DrawerID  string
	Scope     string
	Evicted   []string
	Deferred  int
	Locked    bool
	Path      string
	Err       error
	Timestamp time.Time
}

// Status is "failure" when the entry carries an error and "success" otherwise.
func (e AuditEntry) Status() string {
	if e.Err != nil {
		return "failure"
	}
	return "success"
}

// AuditLogger appends audit entries as JSON lines.
type AuditLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	file   *os.File
}

var (
	auditInst    atomic.Pointer[AuditLogger]
	discardAudit = &AuditLogger{logger: zerolog.Nop()}
)

// GetAuditLogger returns the process audit logger. Until InitAuditLogger is
// called entries are discarded.
func GetAuditLogger() *AuditLogger {
	if inst := auditInst.Load(); inst != nil {
		return inst
	}
	return discardAudit
}

// InitAuditLogger points the process audit logger at path, creating its
// directory. A previously opened log is closed.
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	next := &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	if prev := auditInst.Swap(next); prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Record writes entry. When ctx carries a recording span the entry is also
// added to it as a span event and the line carries its trace id.
func (a *AuditLogger) Record(ctx context.Context, entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var traceID string
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		span.AddEvent("audit."+entry.Action, trace.WithAttributes(
			attribute.String("audit.kind", entry.Kind),
			attribute.String("audit.status", entry.Status()),
			attribute.String("audit.actor", entry.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.logger.Log().
		Str("kind", entry.Kind).
		Str("action", entry.Action).
		Str("status", entry.Status()).
		Time("at", entry.Timestamp)
	if entry.Actor != "" {
		e = e.Str("actor", entry.Actor)
	}
	if entry.DrawerID != "" {
		e = e.Str("drawerId", entry.DrawerID).Str("scope", entry.Scope)
	}
	if entry.Evicted != nil {
		e = e.Strs("evicted", entry.Evicted)
	}
	if entry.Deferred > 0 {
		e = e.Int("deferred", entry.Deferred)
	}
	if entry.Locked {
		e = e.Bool("locked", true)
	}
	if entry.Path != "" {
		e = e.Str("path", entry.Path)
	}
	if entry.Err != nil {
		e = e.Err(entry.Err)
	}
	if traceID != "" {
		e = e.Str("traceId", traceID)
	}
	e.Send()
}

// Close closes the audit file, if any.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.logger = zerolog.Nop()
	return err
}

// AuditForce records a forced open and the requests it evicted. A force
// issued while the queue is locked evicts nothing yet; its evictions are
// recorded by the AuditUnlock that replays it.
func AuditForce(ctx context.Context, actor, drawerID, scope string, evicted []string, locked bool) {
	if evicted == nil {
		evicted = []string{}
	}
	GetAuditLogger().Record(ctx, AuditEntry{
		Kind:     AuditKindDrawer,
		Action:   "drawer.force",
		Actor:    actor,
		DrawerID: drawerID,
		Scope:    scope,
		Evicted:  evicted,
		Locked:   locked,
	})
}

// AuditLock records a lock taken by actor.
func AuditLock(ctx context.Context, actor string) {
	GetAuditLogger().Record(ctx, AuditEntry{
		Kind:   AuditKindDrawer,
		Action: "drawer.lock",
		Actor:  actor,
	})
}

// AuditUnlock records an unlock, how many recorded operations it replayed
// and the requests evicted by forced requests among them.
func AuditUnlock(ctx context.Context, actor string, replayed int, evicted []string) {
	entry := AuditEntry{
		Kind:     AuditKindDrawer,
		Action:   "drawer.unlock",
		Actor:    actor,
		Deferred: replayed,
	}
	if len(evicted) > 0 {
		entry.Evicted = evicted
	}
	GetAuditLogger().Record(ctx, entry)
}

// AuditConfigWrite records a configuration file written by the CLI.
func AuditConfigWrite(ctx context.Context, action, path string, err error) {
	GetAuditLogger().Record(ctx, AuditEntry{
		Kind:   AuditKindConfig,
		Action: action,
		Actor:  "cli",
		Path:   path,
		Err:    err,
	})
}
