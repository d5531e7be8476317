package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/policyvet/dbopen"
	"github.com/hazyhaar/policyvet/idgen"
)

// IngestEvent is one ingestion call as recorded in ingest_events.
// It carries sizes and outcome, never the document text.
type IngestEvent struct {
	EventID      string
	TraceID      string
	Transport    string // "http", "mcp", "cli"
	Kind         string // "url", "upload", "text"
	Source       string
	Format       string
	Outcome      string // "ok" or an apperr class
	ErrorMessage string
	BytesIn      int
	CharsOut     int
	ContentHash  string
	DurationMs   int64
	CreatedAt    time.Time
}

// EventFilter controls Query results.
type EventFilter struct {
	Since   *time.Time
	Kind    string
	Outcome string
	Limit   int // default 100
}

// EventLog persists ingest events asynchronously.
type EventLog struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	ch     chan *IngestEvent
	stop   chan struct{}
	done   chan struct{}
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLogOption {
	return func(l *EventLog) { l.newID = gen }
}

// WithEventLogger sets the logger used for persistence failures.
func WithEventLogger(logger *slog.Logger) EventLogOption {
	return func(l *EventLog) { l.logger = logger }
}

// NewEventLog creates an async event log on a database carrying Schema.
// Recommended bufferSize: 256.
func NewEventLog(db *sql.DB, bufferSize int, opts ...EventLogOption) *EventLog {
	l := &EventLog{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
		ch:     make(chan *IngestEvent, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Log inserts an event synchronously.
func (l *EventLog) Log(ctx context.Context, e *IngestEvent) error {
	l.fillDefaults(e)
	return l.insert(ctx, l.db, e)
}

// Record queues an event for async persistence.
// Falls back to a synchronous insert if the buffer is full.
func (l *EventLog) Record(e *IngestEvent) {
	if l == nil {
		return
	}
	l.fillDefaults(e)
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("observability: event buffer full, sync fallback", "kind", e.Kind)
		if err := l.insert(context.Background(), l.db, e); err != nil {
			l.logger.Error("observability: sync fallback failed", "error", err)
		}
	}
}

// Query returns events matching f, newest first.
func (l *EventLog) Query(ctx context.Context, f EventFilter) ([]*IngestEvent, error) {
	q := `SELECT event_id, trace_id, transport, kind, source, format, outcome,
		error_message, bytes_in, chars_out, content_hash, duration_ms, created_at
		FROM ingest_events WHERE 1=1`
	var args []any

	if f.Since != nil {
		q += " AND created_at >= ?"
		args = append(args, f.Since.Unix())
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, f.Outcome)
	}
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY created_at DESC, event_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingest events: %w", err)
	}
	defer rows.Close()

	var out []*IngestEvent
	for rows.Next() {
		var e IngestEvent
		var traceID, format, errMsg, hash sql.NullString
		var created int64
		if err := rows.Scan(&e.EventID, &traceID, &e.Transport, &e.Kind, &e.Source, &format,
			&e.Outcome, &errMsg, &e.BytesIn, &e.CharsOut, &hash, &e.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan ingest event: %w", err)
		}
		e.TraceID = traceID.String
		e.Format = format.String
		e.ErrorMessage = errMsg.String
		e.ContentHash = hash.String
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than retentionDays.
func (l *EventLog) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := dbopen.Exec(ctx, l.db, "DELETE FROM ingest_events WHERE created_at < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup ingest events: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (l *EventLog) Close() error {
	if l == nil {
		return nil
	}
	close(l.stop)
	<-l.done
	return nil
}

func (l *EventLog) fillDefaults(e *IngestEvent) {
	if e.EventID == "" {
		e.EventID = l.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Outcome == "" {
		if e.ErrorMessage != "" {
			e.Outcome = "internal"
		} else {
			e.Outcome = "ok"
		}
	}
}

func (l *EventLog) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	batch := make([]*IngestEvent, 0, 64)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
			for _, e := range batch {
				if err := l.insert(ctx, tx, e); err != nil {
					return fmt.Errorf("insert %s: %w", e.EventID, err)
				}
			}
			return nil
		})
		if err != nil {
			l.logger.Error("observability: flush ingest events", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *EventLog) insert(ctx context.Context, x execer, e *IngestEvent) error {
	_, err := x.ExecContext(ctx, `INSERT INTO ingest_events
		(event_id, trace_id, transport, kind, source, format, outcome,
		 error_message, bytes_in, chars_out, content_hash, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.EventID, e.TraceID, e.Transport, e.Kind, e.Source, e.Format, e.Outcome,
		e.ErrorMessage, e.BytesIn, e.CharsOut, e.ContentHash, e.DurationMs, e.CreatedAt.Unix())
	return err
}
