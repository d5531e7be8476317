package observability

import "database/sql"

// Schema contains the DDL of the ingest event log.
// Call Init(db) to apply it, or pass it to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS ingest_events (
    event_id TEXT PRIMARY KEY,
    trace_id TEXT,
    transport TEXT NOT NULL DEFAULT 'http',
    kind TEXT NOT NULL,
    source TEXT NOT NULL,
    format TEXT,
    outcome TEXT NOT NULL,
    error_message TEXT,
    bytes_in INTEGER NOT NULL DEFAULT 0,
    chars_out INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_events_time ON ingest_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingest_events_outcome ON ingest_events(outcome, created_at DESC);
`

// Init applies the event log schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
