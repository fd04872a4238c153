package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Loop is anything the Supervisor can drive: one tick of work per RunOnce call.
// Loop engines (content/thread/discovery/mentions) implement this.
type Loop interface {
	Name() string
	RunOnce(ctx context.Context) error
	Schedule() Schedule
}

// Option configures a Supervisor, following the functional-option pattern
// internal/cron/scheduler.go uses for its own NewScheduler.
type Option func(*Supervisor)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithTickInterval overrides how often the supervisor checks each loop's
// schedule for due work.
func WithTickInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.tickInterval = d }
}

// Supervisor runs a fixed set of Loops concurrently, each on its own
// schedule, until its context is cancelled. It mirrors
// internal/cron/scheduler.go's Start/Stop/runDue life cycle, generalized
// from "due cron jobs" to "due loop iterations" and using errgroup instead
// of a hand-rolled WaitGroup for the fan-out, per the DOMAIN STACK wiring
// of golang.org/x/sync.
type Supervisor struct {
	mu           sync.Mutex
	loops        []Loop
	logger       *slog.Logger
	clock        Clock
	tickInterval time.Duration
	used         map[string]map[string]bool // loop name -> slot id -> used
	lastRun      map[string]time.Time       // loop name -> last RunOnce dispatch, for KindInterval gating

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewSupervisor builds a Supervisor over the given loops.
func NewSupervisor(loops []Loop, opts ...Option) *Supervisor {
	s := &Supervisor{
		loops:        loops,
		logger:       slog.Default().With("component", "clock.supervisor"),
		clock:        SystemClock{},
		tickInterval: time.Second,
		used:         make(map[string]map[string]bool),
		lastRun:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one goroutine per loop and returns immediately. Call Stop
// (or cancel the context passed implicitly via Stop) to wind them down.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group
	s.mu.Unlock()

	for _, loop := range s.loops {
		loop := loop
		group.Go(func() error {
			s.run(runCtx, loop)
			return nil
		})
	}
}

// Stop cancels all running loops and blocks until they return.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	group := s.group
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if group != nil {
		_ = group.Wait()
	}
}

func (s *Supervisor) run(ctx context.Context, loop Loop) {
	logger := s.logger.With("loop", loop.Name())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.due(loop) {
			if err := loop.RunOnce(ctx); err != nil {
				logger.Error("loop iteration failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.tickInterval):
		}
	}
}

func (s *Supervisor) due(loop Loop) bool {
	sched := loop.Schedule()
	now := s.clock.Now()

	s.mu.Lock()
	used, ok := s.used[loop.Name()]
	if !ok {
		used = make(map[string]bool)
		s.used[loop.Name()] = used
	}
	s.mu.Unlock()

	switch sched.Kind {
	case KindSlots:
		id, _, ok := NextUnusedSlot(sched, now, used)
		if !ok {
			return false
		}
		s.mu.Lock()
		used[id] = true
		s.mu.Unlock()
		return true
	default:
		// KindInterval: the loop's own Schedule.Every gates it, not the
		// supervisor's polling cadence (tickInterval just controls how
		// finely that gate is checked, the way internal/cron/scheduler.go's
		// runDue polls against each job's own next-fire time).
		s.mu.Lock()
		defer s.mu.Unlock()
		last, ok := s.lastRun[loop.Name()]
		if ok && now.Sub(last) < sched.Every {
			return false
		}
		s.lastRun[loop.Name()] = now
		return true
	}
}
