// Package clock provides the node-local wall clock used for heartbeat and
// lock timestamps. All persisted times are integer milliseconds since the
// Unix epoch.
package clock

import (
	"sync"
	"time"
)

// Clock returns current wall-clock time for this node
type Clock interface {
	Now() time.Time
}

// System is the real wall clock
type System struct{}

// Now returns time.Now()
func (System) Now() time.Time { return time.Now() }

// Millis converts t to milliseconds since the Unix epoch
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts milliseconds since the Unix epoch to a time.Time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
