package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lexforge/scrivener/dbopen"
	"github.com/lexforge/scrivener/idgen"
)

// ConversionEvent records one conversion operation: an extraction, a
// thumbnail render, an audio transcode.
type ConversionEvent struct {
	Operation string // "extract", "thumbnail", "images_to_pdf", "audio_mp3", ...
	Extension string
	Duration  time.Duration
	OCRUsed   bool
	Success   bool
	Detail    string // optional diagnostic, e.g. the extraction error text
}

// EventLogger writes conversion events and manages retention cleanup.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a conversion event. Errors are logged via slog but do
// not propagate, so a failing observability store never blocks a
// conversion. Writes go through the busy-retry helper: event inserts
// race the metrics flusher and the heartbeat loop on the same database.
func (l *EventLogger) LogEvent(ctx context.Context, event ConversionEvent) {
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO conversion_events (
			event_id, operation, extension, duration_ms, ocr_used, success, detail, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		l.newID(), event.Operation, event.Extension, event.Duration.Milliseconds(),
		event.OCRUsed, event.Success, event.Detail, time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "operation", event.Operation)
	}
}

// CleanupEvents deletes conversion events older than retentionDays.
func CleanupEvents(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	result, err := dbopen.Exec(ctx, db, "DELETE FROM conversion_events WHERE created_at < ?", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
