package clusterlock

import (
	"sync"
	"time"
)

// StatKey names one usage statistic of a lock handle
type StatKey string

// Statistics kept per lock name for the lifetime of the process
const (
	StatAcquireAttempts StatKey = "acquire_attempts" // counter
	StatAcquired        StatKey = "acquired"         // counter
	StatBusy            StatKey = "busy"             // counter: attempts that found the lock held
	StatReleases        StatKey = "releases"         // counter
	StatErrors          StatKey = "errors"           // counter: store failures and not-owner releases
	StatRecreated       StatKey = "recreated"        // counter: rows re-created after another node deleted them
	StatHeldMillis      StatKey = "held_ms"          // counter: total time held by this node
	StatHeld            StatKey = "held"             // gauge: 1 while this node holds the lock
)

// AllStatKeys lists every statistic a handle reports
var AllStatKeys = []StatKey{
	StatAcquireAttempts,
	StatAcquired,
	StatBusy,
	StatReleases,
	StatErrors,
	StatRecreated,
	StatHeldMillis,
	StatHeld,
}

type statistics struct {
	mu         sync.Mutex
	values     map[StatKey]int64
	acquiredAt time.Time
}

func newStatistics() *statistics {
	return &statistics{values: make(map[StatKey]int64)}
}

func (s *statistics) recordAcquire(acquired bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[StatAcquireAttempts]++
	if !acquired {
		s.values[StatBusy]++
		return
	}
	s.values[StatAcquired]++
	s.values[StatHeld] = 1
	s.acquiredAt = at
}

func (s *statistics) recordRelease(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[StatReleases]++
	if s.values[StatHeld] == 1 {
		s.values[StatHeldMillis] += at.Sub(s.acquiredAt).Milliseconds()
	}
	s.values[StatHeld] = 0
}

// recordLost clears the held gauge when the store says this node does not
// hold the lock after all
func (s *statistics) recordLost() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[StatErrors]++
	s.values[StatHeld] = 0
}

func (s *statistics) recordRecreated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[StatRecreated]++
}

func (s *statistics) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[StatErrors]++
}

// snapshot omits statistics that never moved
func (s *statistics) snapshot() map[StatKey]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[StatKey]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
