package lockstore

import "errors"

var (
	// ErrNotOwner means a release was attempted by a node that does not
	// hold the lock. The caller may already be inside a critical section it
	// does not own, so this is never safe to ignore.
	ErrNotOwner = errors.New("node does not hold the lock it is releasing")

	// ErrTooManyRows means a conditional update touched more than one row,
	// which the primary key on lock_name makes impossible.
	ErrTooManyRows = errors.New("conditional update affected more than one lock row")

	ErrEmptyLockName = errors.New("lock name cannot be empty")
	ErrEmptyNodeID   = errors.New("node id cannot be empty")
)
