package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attempts is how many times a busy write is tried before giving up.
const Attempts = 3

// IsBusy reports whether err is SQLite lock contention worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// retry runs op until it succeeds, fails with a non-busy error, or
// Attempts is reached. Backoff is linear, 100ms per attempt.
func retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op()
		if err == nil || !IsBusy(err) || attempt == Attempts {
			return v, err
		}
		t := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, fmt.Errorf("dbopen: retry aborted: %w", errors.Join(ctx.Err(), err))
		case <-t.C:
		}
	}
}

// Exec runs a single statement, retrying on lock contention.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return retry(ctx, func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}

// RunTx runs fn in a transaction, retrying the whole transaction on
// lock contention. fn must be safe to call more than once.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := retry(ctx, func() (struct{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("dbopen: begin: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return struct{}{}, err
		}
		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("dbopen: commit: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}
