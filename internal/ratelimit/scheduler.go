// Package ratelimit admits outbound requests in FIFO order with a minimum
// spacing between admissions. One Scheduler is shared by every caller in the
// process so that unrelated features draw from the same request budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond stays below the upstream ceiling of 3/s
const DefaultRequestsPerSecond = 2

// ErrClosed is returned for tasks submitted to, or still queued in, a closed Scheduler
var ErrClosed = errors.New("ratelimit: scheduler closed")

// Stats is a point-in-time view of the scheduler
type Stats struct {
	Queued        int
	Submitted     uint64
	Admitted      uint64
	LastAdmission time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger used for admission tracing
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ticket is one queued call. result is buffered so the dispatcher and the
// task goroutine never block on a caller that has gone away.
type ticket struct {
	ctx    context.Context
	task   func(context.Context) error
	result chan error
}

// Scheduler is a FIFO admission queue. Admissions are at least Interval apart;
// admitted tasks run concurrently and may complete in any order.
type Scheduler struct {
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu            sync.Mutex
	queue         []*ticket
	closed        bool
	submitted     uint64
	admitted      uint64
	lastAdmission time.Time

	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a Scheduler admitting at most rps tasks per second and starts
// its dispatcher. rps <= 0 uses DefaultRequestsPerSecond.
func New(rps float64, opts ...Option) *Scheduler {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	interval := time.Duration(float64(time.Second) / rps)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   slog.Default(),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Interval returns the minimum spacing between admissions
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Execute queues task and returns its result once it has run.
// If ctx ends while the task is still queued, the task is dropped without
// consuming an admission and ctx.Err() is returned. Once admitted the task
// owns ctx and Execute waits for its result.
func (s *Scheduler) Execute(ctx context.Context, task func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &ticket{ctx: ctx, task: task, result: make(chan error, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, t)
	s.submitted++
	s.mu.Unlock()
	s.signal()

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		if s.remove(t) {
			return ctx.Err()
		}
		// Already picked up by the dispatcher; it reports the outcome.
		return <-t.result
	}
}

// Run is Execute for tasks that produce a value
func Run[T any](ctx context.Context, s *Scheduler, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.Execute(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		out = v
		return err
	})
	return out, err
}

// Stats returns queue depth and admission counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:        len(s.queue),
		Submitted:     s.submitted,
		Admitted:      s.admitted,
		LastAdmission: s.lastAdmission,
	}
}

// Close stops the dispatcher. Queued tasks fail with ErrClosed; tasks that
// were already admitted keep running.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.stopped
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	for {
		if s.ctx.Err() != nil {
			s.drain()
			return
		}

		t, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
			case <-s.ctx.Done():
			}
			continue
		}
		s.admit(t)
	}
}

func (s *Scheduler) next() (*ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return t, true
}

// admit waits for the ticket's turn and starts it.
func (s *Scheduler) admit(t *ticket) {
	waitCtx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	if err := s.limiter.Wait(waitCtx); err != nil {
		t.result <- s.waitError(t, err)
		return
	}

	// The limiter reads its clock before ours; top up any remainder so the
	// floor also holds between recorded admission times.
	s.mu.Lock()
	last := s.lastAdmission
	s.mu.Unlock()
	if !last.IsZero() {
		if remaining := s.interval - time.Since(last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-timer.C:
			case <-waitCtx.Done():
				timer.Stop()
				t.result <- s.waitError(t, waitCtx.Err())
				return
			}
		}
	}

	now := time.Now()
	s.mu.Lock()
	s.lastAdmission = now
	s.admitted++
	seq := s.admitted
	queued := len(s.queue)
	s.mu.Unlock()

	s.logger.Debug("request admitted", "seq", seq, "queued", queued)

	go func() {
		t.result <- t.task(t.ctx)
	}()
}

func (s *Scheduler) waitError(t *ticket, err error) error {
	if s.ctx.Err() != nil && t.ctx.Err() == nil {
		return ErrClosed
	}
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// rate.Limiter refuses up front when the deadline falls before the slot.
	return fmt.Errorf("ratelimit: %w", err)
}

// remove drops t from the queue, reporting whether it was still queued.
func (s *Scheduler) remove(t *ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.queue, t)
	if i < 0 {
		return false
	}
	s.queue = slices.Delete(s.queue, i, i+1)
	return true
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range pending {
		t.result <- ErrClosed
	}
}
