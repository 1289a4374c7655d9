// Package audit records integrity and lifecycle decisions as structured
// events alongside the application log.
package audit

import (
	"context"
	"log/slog"

	"propnest/pkg/requestcontext"
)

// Publisher receives audit events.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events for later inspection.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// StorePublisher emits events straight into a Store.
type StorePublisher struct {
	store Store
}

func NewPublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, event)
}

// LogAudit logs an audit event to the structured logger and, when set, the
// publisher. Publisher failures are logged and never surface to the caller.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event.Action, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
