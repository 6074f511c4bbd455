// Package poller drives repeated gateway status checks until a
// transaction reaches a terminal outcome. One supervisor per attempt;
// the wizard session owns the handle and nothing else may start a
// competing one.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"topup-service/internal/provider/gateway"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 180 * time.Second
)

// Outcome is the single terminal result of a polling run.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota + 1
	OutcomeFailed
	OutcomeTimedOut
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusChecker is the slice of the gateway client the supervisor
// needs. A checker error is "no answer this cycle", not a failure.
type StatusChecker interface {
	CheckStatus(ctx context.Context, txnNumber string) (gateway.Status, error)
}

type Result struct {
	Outcome Outcome
}

// Supervisor owns its timer and delivers exactly one Result on Done.
type Supervisor struct {
	checker   StatusChecker
	txnNumber string
	interval  time.Duration
	timeout   time.Duration
	clock     clockz.Clock

	cancel context.CancelFunc
	done   chan Result
	once   sync.Once
}

type Option func(*Supervisor)

// WithClock swaps the wall clock, for tests.
func WithClock(c clockz.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.interval = d }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.timeout = d }
}

// Start begins polling immediately: one status check up front, then one
// per interval. The timeout is wall-clock elapsed time from the first
// check, so a suspended process still times out rather than drifting by
// tick count.
func Start(ctx context.Context, checker StatusChecker, txnNumber string, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	s := &Supervisor{
		checker:   checker,
		txnNumber: txnNumber,
		interval:  DefaultInterval,
		timeout:   DefaultTimeout,
		clock:     clockz.RealClock,
		cancel:    cancel,
		done:      make(chan Result, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(ctx)
	return s
}

// Done yields the terminal outcome. Delivered exactly once; the channel
// is buffered so the supervisor never blocks on a slow reader.
func (s *Supervisor) Done() <-chan Result {
	return s.done
}

// Cancel aborts polling. The run loop stops before its next status
// check and the outcome is Cancelled regardless of tick state.
func (s *Supervisor) Cancel() {
	s.cancel()
}

func (s *Supervisor) finish(o Outcome) {
	s.once.Do(func() {
		s.cancel()
		s.done <- Result{Outcome: o}
	})
}

func (s *Supervisor) run(ctx context.Context) {
	start := s.clock.Now()

	for {
		if ctx.Err() != nil {
			s.finish(OutcomeCancelled)
			return
		}
		if s.clock.Since(start) >= s.timeout {
			s.finish(OutcomeTimedOut)
			return
		}

		status, err := s.checker.CheckStatus(ctx, s.txnNumber)
		if ctx.Err() != nil {
			s.finish(OutcomeCancelled)
			return
		}
		if err == nil {
			switch status {
			case gateway.StatusSucceeded:
				s.finish(OutcomeSucceeded)
				return
			case gateway.StatusFailed:
				s.finish(OutcomeFailed)
				return
			}
		}

		select {
		case <-ctx.Done():
			s.finish(OutcomeCancelled)
			return
		case <-s.clock.After(s.interval):
		}
	}
}
