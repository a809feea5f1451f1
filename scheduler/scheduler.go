// Package scheduler runs registered refresh tasks on fixed periods. A task
// never overlaps itself: a tick that arrives while the previous run is still
// in flight is skipped and counted, never queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Keksclan/minutodash/logging"
	"github.com/Keksclan/minutodash/metrics"
)

var (
	// ErrDuplicateTask is returned when a task name is registered twice.
	ErrDuplicateTask = errors.New("scheduler: duplicate task")
	// ErrStarted is returned when registering or starting after Start.
	ErrStarted = errors.New("scheduler: already started")
	// ErrInvalidPeriod is returned for a non-positive period.
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")
)

// Func is the work performed on every tick.
type Func func(ctx context.Context)

type task struct {
	name     string
	period   time.Duration
	fn       Func
	inFlight atomic.Bool
	runs     atomic.Uint64
	skipped  atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for task panics and lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records runs and skipped ticks in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler owns one ticker loop per registered task.
type Scheduler struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	tasks   map[string]*task
	order   []*task
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stop    sync.Once
}

// New creates an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{tasks: make(map[string]*task)}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger).Named("scheduler")
	return s
}

// Register adds a task. It must be called before Start.
func (s *Scheduler) Register(name string, period time.Duration, fn Func) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	t := &task{name: name, period: period, fn: fn}
	s.tasks[name] = t
	s.order = append(s.order, t)
	return nil
}

// Start launches the ticker loops. The first run of each task happens one
// period after Start. Loops end when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.order {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info("scheduler started", zap.Int("tasks", len(s.order)))
	return nil
}

// Stop cancels every loop and waits for in-flight runs to return. It is safe
// to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.stop.Do(func() {
		s.mu.Lock()
		s.started = true
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

// Stats reports how often the named task ran and how many ticks it skipped.
func (s *Scheduler) Stats(name string) (runs, skipped uint64, ok bool) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return 0, 0, false
	}
	return t.runs.Load(), t.skipped.Load(), true
}

// Tasks returns the registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.order))
	for i, t := range s.order {
		names[i] = t.name
	}
	return names
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, t *task) {
	if !t.inFlight.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		s.metrics.SchedulerSkip(t.name)
		s.logger.Debug("tick skipped, previous run still in flight", zap.String("task", t.name))
		return
	}
	s.wg.Add(1)
	go s.run(ctx, t)
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	defer s.wg.Done()
	defer t.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", zap.String("task", t.name), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	t.runs.Add(1)
	s.metrics.SchedulerRun(t.name)
	t.fn(ctx)
}
