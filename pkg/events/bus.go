package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/metrics"
)

// Handler processes one event. A non-nil error triggers redelivery.
type Handler func(ctx context.Context, e Event) error

// Typed adapts a handler for a concrete event type.
func Typed[E Event](h func(ctx context.Context, e E) error) Handler {
	return func(ctx context.Context, e Event) error {
		ev, ok := e.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEvent, e)
		}
		return h(ctx, ev)
	}
}

// Bus delivers events to handlers at least once. Events sharing an entity key
// land on the same partition and are handled one at a time in publish order.
type Bus struct {
	cfg        Config
	partitions []chan envelope
	handlers   map[Kind][]Handler
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu      sync.RWMutex
	started bool
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(b *Bus) { b.cfg = cfg }
}

// WithMetrics counts handled, retried and dropped events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates a stopped bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		cfg:      DefaultConfig(),
		handlers: make(map[Kind][]Handler),
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cfg.Partitions = max(b.cfg.Partitions, 1)
	b.cfg.BufferSize = max(b.cfg.BufferSize, 1)
	b.cfg.MaxRedeliveries = max(b.cfg.MaxRedeliveries, 0)
	if b.cfg.MaxRedeliveryBackoff < b.cfg.RedeliveryBackoff {
		b.cfg.MaxRedeliveryBackoff = b.cfg.RedeliveryBackoff
	}

	b.partitions = make([]chan envelope, b.cfg.Partitions)
	for i := range b.partitions {
		b.partitions[i] = make(chan envelope, b.cfg.BufferSize)
	}
	b.logger = b.logger.With(logger.Component("events"))
	return b
}

// Subscribe registers h for events of kind. Register handlers before Start.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// envelope carries an event to its partition. done, when set, receives the
// final handling result.
type envelope struct {
	event Event
	done  chan error
}

// Publish validates e and queues it on its entity's partition. It blocks while
// the partition is full. A queued event is lost if the process exits before
// it is handled; sources that can replay should use PublishWait.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	return b.enqueue(ctx, envelope{event: e})
}

// PublishWait queues e like Publish and blocks until its handlers succeed or
// the event is dropped. The error wraps ErrEventDropped when the event can
// never be handled and ErrBusClosed when the bus stopped first, in which case
// the source should offer it again after a restart.
func (b *Bus) PublishWait(ctx context.Context, e Event) error {
	done := make(chan error, 1)
	if err := b.enqueue(ctx, envelope{event: e, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) enqueue(ctx context.Context, env envelope) error {
	e := env.event
	if err := e.Validate(); err != nil {
		b.metrics.BusEvent(string(e.Kind()), "invalid")
		return err
	}

	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case b.partitions[b.partition(e.EntityKey())] <- env:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.partitions)))
}

// Start launches one consumer per partition.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrBusStarted
	}
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}
	b.started = true
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i, ch := range b.partitions {
		b.wg.Add(1)
		go b.consume(i, ch)
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "event bus started", slog.Int("partitions", len(b.partitions)))
	return nil
}

// Stop refuses new events, drains queued ones and waits for handlers up to
// the shutdown timeout.
func (b *Bus) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return ErrBusNotStarted
	}
	b.started = false
	close(b.done)
	b.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		b.cancel()
		return nil
	case <-time.After(b.cfg.ShutdownTimeout):
		b.cancel()
		<-finished
		return ErrShutdownTimeout
	}
}

// Run returns a function for errgroup that starts the bus, waits for ctx to
// be cancelled, then stops it.
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		if err := b.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return b.Stop()
	}
}

func (b *Bus) consume(idx int, ch chan envelope) {
	defer b.wg.Done()
	for {
		select {
		case env := <-ch:
			b.deliver(env)
		case <-b.done:
			for {
				select {
				case env := <-ch:
					b.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(env envelope) {
	err := b.handle(env.event)
	if env.done != nil {
		env.done <- err
	}
}

// handle redelivers e until its handlers succeed. It gives up only when the
// event cannot succeed, when MaxRedeliveries is set and reached, or when the
// bus is stopping.
func (b *Bus) handle(e Event) error {
	b.mu.RLock()
	handlers := b.handlers[e.Kind()]
	b.mu.RUnlock()

	kind := string(e.Kind())
	attrs := []slog.Attr{logger.EventID(e.EventID()), logger.EventKind(kind)}

	for attempt := 0; ; attempt++ {
		err := b.invoke(handlers, e)
		if err == nil {
			b.metrics.BusEvent(kind, "handled")
			return nil
		}

		if !retryable(err) || (b.cfg.MaxRedeliveries > 0 && attempt >= b.cfg.MaxRedeliveries) {
			b.metrics.BusEvent(kind, "dropped")
			b.logger.LogAttrs(b.ctx, slog.LevelError, "dropping event",
				append(attrs, logger.Attempt(attempt+1), logger.Error(err))...)
			return errors.Join(ErrEventDropped, err)
		}

		delay := b.backoff(attempt)
		if b.ctx.Err() != nil || !b.sleep(delay) {
			b.metrics.BusEvent(kind, "interrupted")
			b.logger.LogAttrs(b.ctx, slog.LevelWarn, "event left unhandled at shutdown",
				append(attrs, logger.Attempt(attempt+1), logger.Error(err))...)
			return errors.Join(ErrBusClosed, err)
		}
		b.metrics.BusEvent(kind, "retried")
		b.logger.LogAttrs(b.ctx, slog.LevelWarn, "event handler failed, redelivered",
			append(attrs, logger.Attempt(attempt+1), logger.Duration(delay), logger.Error(err))...)
	}
}

// sleep waits d and reports false when the bus started stopping meanwhile.
func (b *Bus) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-b.done:
		return false
	case <-b.ctx.Done():
		return false
	}
}

func (b *Bus) backoff(attempt int) time.Duration {
	delay := b.cfg.RedeliveryBackoff
	for range attempt {
		delay *= 2
		if delay >= b.cfg.MaxRedeliveryBackoff {
			return b.cfg.MaxRedeliveryBackoff
		}
	}
	return delay
}

func retryable(err error) bool {
	return !errors.Is(err, ErrUnexpectedEvent) && !errors.Is(err, ErrHandlerPanic)
}

// invoke runs every handler for the event. Handlers that panic are reported
// as failed.
func (b *Bus) invoke(handlers []Handler, e Event) error {
	var errs []error
	for _, h := range handlers {
		errs = append(errs, b.call(h, e))
	}
	return errors.Join(errs...)
}

func (b *Bus) call(h Handler, e Event) (err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.HandlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, e)
}
