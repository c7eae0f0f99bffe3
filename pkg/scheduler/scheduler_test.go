package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/scheduler"
)

type funcJob struct {
	name string
	run  func(ctx context.Context, now time.Time) error
}

func (j funcJob) Name() string { return j.name }

func (j funcJob) Run(ctx context.Context, now time.Time) error { return j.run(ctx, now) }

func counting(name string, n *atomic.Int32) funcJob {
	return funcJob{name: name, run: func(context.Context, time.Time) error {
		n.Add(1)
		return nil
	}}
}

var t0 = time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC) // Monday

func TestSchedules(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name     string
		schedule scheduler.Schedule
		from     time.Time
		want     time.Time
	}{
		{"every", scheduler.Every(5 * time.Minute), t0, t0.Add(5 * time.Minute)},
		{"daily later today", scheduler.DailyAt(6, 0, time.UTC), t0, time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)},
		{"daily exactly now moves to tomorrow", scheduler.DailyAt(5, 0, nil), t0, time.Date(2024, 3, 5, 5, 0, 0, 0, time.UTC)},
		{"daily in zone", scheduler.DailyAt(7, 0, berlin), t0, time.Date(2024, 3, 4, 7, 0, 0, 0, berlin)},
		{"weekdays skips weekend", scheduler.WeekdaysAt(7, 0, time.UTC), time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC)},
		{"weekdays same day", scheduler.WeekdaysAt(7, 0, time.UTC), t0, time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.want.Equal(tt.schedule.Next(tt.from)), "got %v want %v", tt.schedule.Next(tt.from), tt.want)
			assert.NotEmpty(t, tt.schedule.String())
		})
	}
}

func TestScheduler_RunDue(t *testing.T) {
	t.Parallel()

	t.Run("runs only due jobs", func(t *testing.T) {
		t.Parallel()

		s, err := scheduler.New(scheduler.NewMemoryLocker(nil), scheduler.WithClock(func() time.Time { return t0 }))
		require.NoError(t, err)

		var fast, daily atomic.Int32
		require.NoError(t, s.Add(counting("fast", &fast), scheduler.Every(time.Minute), 0))
		require.NoError(t, s.Add(counting("daily", &daily), scheduler.DailyAt(6, 0, time.UTC), 0))

		assert.Empty(t, s.RunDue(context.Background(), t0.Add(30*time.Second)))
		assert.Equal(t, []string{"fast"}, s.RunDue(context.Background(), t0.Add(time.Minute)))
		assert.Equal(t, []string{"daily", "fast"}, s.RunDue(context.Background(), t0.Add(time.Hour)))
		assert.Equal(t, int32(2), fast.Load())
		assert.Equal(t, int32(1), daily.Load())
		assert.Equal(t, []string{"daily", "fast"}, s.Jobs())
	})

	t.Run("lease prevents concurrent runs across instances", func(t *testing.T) {
		t.Parallel()

		locker := scheduler.NewMemoryLocker(nil)
		clock := scheduler.WithClock(func() time.Time { return t0 })
		a, err := scheduler.New(locker, clock)
		require.NoError(t, err)
		b, err := scheduler.New(locker, clock)
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		var runs atomic.Int32
		job := funcJob{name: "digest", run: func(context.Context, time.Time) error {
			if runs.Add(1) == 1 {
				close(started)
			}
			<-release
			return nil
		}}
		require.NoError(t, a.Add(job, scheduler.Every(time.Minute), time.Minute))
		require.NoError(t, b.Add(job, scheduler.Every(time.Minute), time.Minute))

		done := make(chan []string)
		go func() { done <- a.RunDue(context.Background(), t0.Add(time.Minute)) }()
		<-started

		assert.Empty(t, b.RunDue(context.Background(), t0.Add(time.Minute)))
		close(release)
		assert.Equal(t, []string{"digest"}, <-done)
		assert.Equal(t, int32(1), runs.Load())
	})

	t.Run("failing and panicking jobs do not stop others", func(t *testing.T) {
		t.Parallel()

		s, err := scheduler.New(scheduler.NewMemoryLocker(nil), scheduler.WithClock(func() time.Time { return t0 }))
		require.NoError(t, err)

		var ok atomic.Int32
		require.NoError(t, s.Add(funcJob{name: "broken", run: func(context.Context, time.Time) error {
			return errors.New("boom")
		}}, scheduler.Every(time.Minute), 0))
		require.NoError(t, s.Add(funcJob{name: "panics", run: func(context.Context, time.Time) error {
			panic("bad job")
		}}, scheduler.Every(time.Minute), 0))
		require.NoError(t, s.Add(counting("healthy", &ok), scheduler.Every(time.Minute), 0))

		ran := s.RunDue(context.Background(), t0.Add(time.Minute))
		assert.Equal(t, []string{"broken", "healthy", "panics"}, ran)
		assert.Equal(t, int32(1), ok.Load())
	})

	t.Run("job context is bounded by ttl", func(t *testing.T) {
		t.Parallel()

		s, err := scheduler.New(scheduler.NewMemoryLocker(nil), scheduler.WithClock(func() time.Time { return t0 }))
		require.NoError(t, err)

		var deadline time.Time
		require.NoError(t, s.Add(funcJob{name: "slow", run: func(ctx context.Context, _ time.Time) error {
			deadline, _ = ctx.Deadline()
			return nil
		}}, scheduler.Every(time.Minute), 2*time.Second))

		s.RunDue(context.Background(), t0.Add(time.Minute))
		assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
	})
}

func TestScheduler_Add(t *testing.T) {
	t.Parallel()

	s, err := scheduler.New(scheduler.NewMemoryLocker(nil))
	require.NoError(t, err)

	var n atomic.Int32
	require.NoError(t, s.Add(counting("job", &n), scheduler.Every(time.Minute), 0))
	assert.ErrorIs(t, s.Add(counting("job", &n), scheduler.Every(time.Minute), 0), scheduler.ErrJobAlreadyRegistered)
	assert.ErrorIs(t, s.Add(counting("", &n), scheduler.Every(time.Minute), 0), scheduler.ErrInvalidJob)
	assert.ErrorIs(t, s.Add(counting("x", &n), nil, 0), scheduler.ErrInvalidJob)

	_, err = scheduler.New(nil)
	assert.ErrorIs(t, err, scheduler.ErrLockerNil)
}

func TestScheduler_Start(t *testing.T) {
	t.Parallel()

	s, err := scheduler.New(scheduler.NewMemoryLocker(nil))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrNoJobs)

	cfg := scheduler.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	s, err = scheduler.New(scheduler.NewMemoryLocker(nil), scheduler.WithConfig(cfg))
	require.NoError(t, err)

	var n atomic.Int32
	require.NoError(t, s.Add(counting("tick", &n), scheduler.Every(time.Millisecond), 0))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx)() }()

	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}

func TestMemoryLocker(t *testing.T) {
	t.Parallel()

	now := t0
	l := scheduler.NewMemoryLocker(func() time.Time { return now })
	ctx := context.Background()

	tok, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k", "someone-else"))
	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok, "foreign token must not release")

	now = now.Add(2 * time.Minute)
	tok2, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease can be taken")
	assert.NotEqual(t, tok, tok2)

	require.NoError(t, l.Release(ctx, "k", tok2))
	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestConfig_Location(t *testing.T) {
	t.Parallel()

	loc, err := scheduler.Config{Timezone: "Europe/Berlin"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	_, err = scheduler.Config{Timezone: "Mars/Olympus"}.Location()
	assert.ErrorIs(t, err, scheduler.ErrInvalidTimezone)
}
