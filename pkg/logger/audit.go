package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents an administrative action on segments or memberships
type AuditEvent struct {
	EventType     string
	SegmentID     string
	ActorID       string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogSegmentAction logs segment lifecycle and membership changes
func (al *AuditLogger) LogSegmentAction(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "segment"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.SegmentID != "" {
		attrs = append(attrs, slog.String("segment_id", event.SegmentID))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogEvaluationRun logs the outcome of a batch evaluation pass
func (al *AuditLogger) LogEvaluationRun(segmentsEvaluated, totalAdded, totalRemoved int, err error) {
	attrs := []slog.Attr{
		slog.String("audit_type", "segment"),
		slog.String("event_type", "evaluation_run"),
		slog.Int("segments_evaluated", segmentsEvaluated),
		slog.Int("total_added", totalAdded),
		slog.Int("total_removed", totalRemoved),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
		return
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
