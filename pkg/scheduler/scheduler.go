package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/metrics"
)

// Job is a periodic unit of work. Run must be safe to repeat for the same
// now: a crashed instance may leave a run half done.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// Run results reported to metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
	ResultLockErr = "lock_error"
)

// Scheduler runs registered jobs when their schedule is due, holding a lease
// per job so only one instance runs it.
type Scheduler struct {
	locker  Locker
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	job      Job
	schedule Schedule
	ttl      time.Duration
	next     time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// WithMetrics counts job runs by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler using locker for run leases.
func New(locker Locker, opts ...Option) (*Scheduler, error) {
	if locker == nil {
		return nil, ErrLockerNil
	}
	s := &Scheduler{
		locker:  locker,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.TickInterval <= 0 {
		s.cfg.TickInterval = 30 * time.Second
	}
	if s.cfg.DefaultTTL <= 0 {
		s.cfg.DefaultTTL = 5 * time.Minute
	}
	s.logger = s.logger.With(logger.Component("scheduler"))
	return s, nil
}

// Add registers job. The lease and the run context last ttl; zero uses the
// configured default. The first run is the schedule's next time after now.
func (s *Scheduler) Add(job Job, schedule Schedule, ttl time.Duration) error {
	if job == nil || job.Name() == "" || schedule == nil {
		return ErrInvalidJob
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	next := schedule.Next(s.now())
	s.entries[name] = &entry{job: job, schedule: schedule, ttl: ttl, next: next}

	s.logger.Info("registered job",
		logger.Job(name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", next),
	)
	return nil
}

// Jobs lists registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunDue runs every job due at now and waits for them. It returns the names of
// the jobs this instance ran; jobs whose lease is held elsewhere are skipped.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []string {
	due := s.collectDue(now)

	var (
		g   errgroup.Group
		mu  sync.Mutex
		ran []string
	)
	if s.cfg.MaxConcurrentJobs > 0 {
		g.SetLimit(s.cfg.MaxConcurrentJobs)
	}
	for _, e := range due {
		g.Go(func() error {
			if s.runJob(ctx, e, now) {
				mu.Lock()
				ran = append(ran, e.job.Name())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(ran)
	return ran
}

// collectDue advances the next run of every due entry and returns them.
func (s *Scheduler) collectDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.entries {
		if e.next.After(now) {
			continue
		}
		e.next = e.schedule.Next(now)
		due = append(due, e)
	}
	return due
}

func (s *Scheduler) runJob(ctx context.Context, e *entry, now time.Time) (ran bool) {
	name := e.job.Name()
	key := "scheduler:" + name

	token, ok, err := s.locker.Acquire(ctx, key, e.ttl)
	if err != nil {
		s.metrics.SchedulerRun(name, ResultLockErr)
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to acquire job lease", logger.Job(name), logger.Error(err))
		return false
	}
	if !ok {
		s.metrics.SchedulerRun(name, ResultSkipped)
		s.logger.LogAttrs(ctx, slog.LevelDebug, "job lease held elsewhere", logger.Job(name))
		return false
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release job lease", logger.Job(name), logger.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.ttl)
	defer cancel()

	start := time.Now()
	err = s.safeRun(runCtx, e.job, now)
	attrs := []slog.Attr{logger.Job(name), logger.Duration(time.Since(start))}
	if err != nil {
		s.metrics.SchedulerRun(name, ResultFailure)
		s.logger.LogAttrs(ctx, slog.LevelError, "job failed", append(attrs, logger.Error(err))...)
		return true
	}
	s.metrics.SchedulerRun(name, ResultSuccess)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "job finished", attrs...)
	return true
}

func (s *Scheduler) safeRun(ctx context.Context, job Job, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx, now)
}

// Start evaluates due jobs on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.Jobs()) == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduler started", logger.Duration(s.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "scheduler shutting down")
			return nil
		case <-ticker.C:
			s.RunDue(ctx, s.now())
		}
	}
}

// Run returns a function for errgroup that runs the scheduler until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		return s.Start(ctx)
	}
}
