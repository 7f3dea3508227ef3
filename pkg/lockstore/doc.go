// Package lockstore persists named cluster locks, one row per lock name.
//
// Every state change is a single conditional UPDATE whose WHERE clause
// carries the precondition (holder IS NULL to acquire, holder = node to
// release), so the database decides the winner of any race. Rows are
// created lazily and idempotently with InsertIfAbsent before the first
// acquire attempt.
package lockstore
