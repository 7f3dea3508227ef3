package database

import (
	"context"
	"errors"
	"fmt"
)

// Table names of the coordination schema
const (
	LockTable      = "cluster_lock"
	HeartbeatTable = "cluster_node_heartbeat"
)

// ErrMissingPrimaryKey is returned by VerifySchema when a coordination table
// lacks the primary key the conditional updates depend on.
var ErrMissingPrimaryKey = errors.New("coordination table is missing its primary key")

const schema = `
	CREATE TABLE IF NOT EXISTS cluster_lock (
		lock_name TEXT NOT NULL,
		locked_by_node TEXT,
		update_time BIGINT NOT NULL,
		CONSTRAINT pk_cluster_lock PRIMARY KEY (lock_name)
	);

	CREATE INDEX IF NOT EXISTS idx_cluster_lock_locked_by_node ON cluster_lock(locked_by_node);

	CREATE TABLE IF NOT EXISTS cluster_node_heartbeat (
		node_id TEXT NOT NULL,
		heartbeat_time BIGINT NOT NULL,
		database_time BIGINT,
		CONSTRAINT pk_cluster_node_heartbeat PRIMARY KEY (node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_cluster_node_heartbeat_database_time ON cluster_node_heartbeat(database_time);
	`

// Migrate creates the coordination tables if they don't exist
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create coordination schema: %w", err)
	}
	return nil
}

const primaryKeyQuery = `
	SELECT COALESCE(string_agg(a.attname, ',' ORDER BY a.attname), '')
	FROM pg_index i
	JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE i.indrelid = to_regclass($1) AND i.indisprimary
`

// expectedPrimaryKeys maps each coordination table to its key column
var expectedPrimaryKeys = []struct {
	table  string
	column string
}{
	{LockTable, "lock_name"},
	{HeartbeatTable, "node_id"},
}

// VerifySchema checks that each coordination table has exactly the primary
// key it was created with. Tables created by hand or by older tooling
// without the constraint would let a conditional update touch several rows.
func VerifySchema(ctx context.Context, db DBTX) error {
	for _, want := range expectedPrimaryKeys {
		var columns string
		if err := db.QueryRow(ctx, primaryKeyQuery, want.table).Scan(&columns); err != nil {
			return fmt.Errorf("failed to inspect primary key of %s: %w", want.table, err)
		}
		if columns != want.column {
			return fmt.Errorf("%w: %s has primary key %q, want %q", ErrMissingPrimaryKey, want.table, columns, want.column)
		}
	}
	return nil
}
