// Package scheduler runs named recurring jobs on this node.
//
// Every job runs locally: there is no cluster-wide election of a runner, each
// node that schedules a job runs its own copy on a fixed interval. A failed
// tick is logged and the job simply runs again at the next tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-coord/pkg/logging"
)

var (
	ErrJobExists      = errors.New("job already scheduled")
	ErrInvalidJob     = errors.New("job needs a name, a positive interval and a run function")
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// JobFunc is one tick of a job
type JobFunc func(ctx context.Context) error

// Job describes a recurring job
type Job struct {
	Name     string
	Interval time.Duration
	// RunImmediately runs the first tick at start instead of after one interval
	RunImmediately bool
	Run            JobFunc
}

// JobStatus is a snapshot of a job's run history
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   time.Time     `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
}

type jobState struct {
	job    Job
	mu     sync.Mutex
	status JobStatus
}

// Scheduler owns a set of jobs and the goroutines that tick them
//
// Concurrent Safety:
// 1. Schedule/Start/Stop are serialized by mu
// 2. Each job records its own status under its own mutex
// 3. Stop cancels every loop and waits for in-flight ticks to return
type Scheduler struct {
	logger logging.Logger
	jobs   map[string]*jobState

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// New creates an idle scheduler
func New(logger logging.Logger) *Scheduler {
	return &Scheduler{
		logger: logging.OrNop(logger).With(logging.Component("scheduler")),
		jobs:   make(map[string]*jobState),
	}
}

// Schedule registers a job. Jobs added while the scheduler is running start
// right away.
func (s *Scheduler) Schedule(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.Name)
	}

	state := &jobState{job: job, status: JobStatus{Name: job.Name, Interval: job.Interval}}
	s.jobs[job.Name] = state

	if s.running {
		s.launch(state)
	}
	return nil
}

// Start launches one loop per job. The loops stop when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.group, s.ctx = errgroup.WithContext(s.ctx)
	s.running = true

	for _, state := range s.jobs {
		s.launch(state)
	}

	s.logger.Info("scheduler started", logging.Count(len(s.jobs)))
	return nil
}

// Stop cancels every job loop and waits for running ticks to finish. Calling
// Stop on an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, group := s.cancel, s.group
	s.mu.Unlock()

	cancel()
	_ = group.Wait()
	s.logger.Info("scheduler stopped")
}

// Status returns a snapshot of every job, sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	states := make([]*jobState, 0, len(s.jobs))
	for _, state := range s.jobs {
		states = append(states, state)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		out = append(out, state.status)
		state.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// launch must be called with s.mu held
func (s *Scheduler) launch(state *jobState) {
	ctx := s.ctx
	s.group.Go(func() error {
		s.loop(ctx, state)
		return nil
	})
}

func (s *Scheduler) loop(ctx context.Context, state *jobState) {
	if state.job.RunImmediately {
		_ = s.tick(ctx, state)
	}

	ticker := time.NewTicker(state.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.tick(ctx, state)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, state *jobState) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", state.job.Name, r)
		}

		state.mu.Lock()
		state.status.Runs++
		state.status.LastRun = time.Now()
		state.status.LastError = ""
		if err != nil {
			state.status.Failures++
			state.status.LastError = err.Error()
		}
		state.mu.Unlock()

		if err != nil {
			s.logger.Warn("scheduled job failed",
				logging.String("job", state.job.Name),
				logging.Error(err))
		}
	}()

	return state.job.Run(ctx)
}
