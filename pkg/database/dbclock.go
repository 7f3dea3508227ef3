package database

import (
	"context"
	"fmt"
	"time"
)

// TimeReader returns the database server's current wall-clock time
type TimeReader interface {
	DatabaseTime(ctx context.Context) (time.Time, error)
}

// clock_timestamp() rather than now(): now() is frozen at transaction start.
const databaseTimeQuery = `SELECT (EXTRACT(EPOCH FROM clock_timestamp()) * 1000)::BIGINT`

// PGTimeReader reads the clock of the PostgreSQL server
type PGTimeReader struct {
	db DBTX
}

// NewPGTimeReader creates a TimeReader backed by db
func NewPGTimeReader(db DBTX) *PGTimeReader {
	return &PGTimeReader{db: db}
}

// DatabaseTime implements TimeReader. Errors are returned as-is for the
// caller's next scheduled attempt; nothing is retried here.
func (r *PGTimeReader) DatabaseTime(ctx context.Context) (time.Time, error) {
	var ms int64
	if err := r.db.QueryRow(ctx, databaseTimeQuery).Scan(&ms); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// TimeReaderFunc adapts a function to TimeReader
type TimeReaderFunc func(ctx context.Context) (time.Time, error)

// DatabaseTime implements TimeReader
func (f TimeReaderFunc) DatabaseTime(ctx context.Context) (time.Time, error) {
	return f(ctx)
}
