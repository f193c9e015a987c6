// Package tail follows the global event log in sequence order.
package tail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/0m3kk/eventsauce/eventsrc"
)

// Source is the read side a Follower polls. Every store of this module implements it.
type Source = eventsrc.EventTailer

// Handler processes a single event. Returning an error stops the current batch; the event
// is delivered again on the next attempt.
type Handler func(ctx context.Context, event eventsrc.DBEvent) error

// Follower is a background worker that polls the event log and hands new events to a handler.
//
// Stores assign sequence numbers when an event is inserted, not when its transaction
// commits, so a later number can become visible before an earlier one. The follower
// therefore stops at a missing number and waits up to the gap timeout for it to appear
// before assuming it was rolled back and moving past it.
type Follower struct {
	source     Source
	handler    Handler
	batchSize  int
	interval   time.Duration
	gapTimeout time.Duration
	maxTries   uint
	backOff    func() backoff.BackOff
	position   atomic.Int64
	log        *slog.Logger
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	// gapAfter is the position at which a missing sequence number was first seen.
	gapAfter int64
	gapSince time.Time
}

// Option configures a Follower.
type Option func(*Follower)

// WithBatchSize sets how many events are fetched per poll. Defaults to 100.
func WithBatchSize(n int) Option {
	return func(f *Follower) {
		f.batchSize = n
	}
}

// WithInterval sets the polling interval. Defaults to one second.
func WithInterval(d time.Duration) Option {
	return func(f *Follower) {
		f.interval = d
	}
}

// WithStartAfter makes the follower skip every event up to and including seq.
func WithStartAfter(seq int64) Option {
	return func(f *Follower) {
		f.position.Store(seq)
	}
}

// WithGapTimeout sets how long a missing sequence number is waited for before it is
// skipped. Defaults to five seconds.
func WithGapTimeout(d time.Duration) Option {
	return func(f *Follower) {
		f.gapTimeout = d
	}
}

// WithHandlerRetry bounds the attempts made for a failing event within one poll and sets
// the backoff between them.
func WithHandlerRetry(maxTries uint, newBackOff func() backoff.BackOff) Option {
	return func(f *Follower) {
		f.maxTries = maxTries
		f.backOff = newBackOff
	}
}

// NewFollower creates a follower starting at the beginning of the log.
func NewFollower(source Source, handler Handler, opts ...Option) *Follower {
	f := &Follower{
		source:     source,
		handler:    handler,
		batchSize:  100,
		interval:   time.Second,
		gapTimeout: 5 * time.Second,
		maxTries:   3,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		log:      slog.Default().With(slog.String("component", "tail")),
		quit:     make(chan struct{}),
		gapAfter: -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Position returns the sequence number of the last handled event.
func (f *Follower) Position() int64 {
	return f.position.Load()
}

// Start begins polling in a separate goroutine.
func (f *Follower) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.log.InfoContext(ctx, "Follower started", "position", f.Position())
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := f.Poll(ctx); err != nil {
					f.log.ErrorContext(ctx, "Failed to follow event log", "error", err, "position", f.Position())
				}
			case <-f.quit:
				f.log.InfoContext(ctx, "Follower shutting down")
				return
			case <-ctx.Done():
				f.log.InfoContext(ctx, "Context cancelled, follower shutting down")
				return
			}
		}
	}()
}

// Poll fetches and handles events until the log is drained, a handler keeps failing or a
// missing sequence number is still within the gap timeout. It must not be called while the
// follower is started.
func (f *Follower) Poll(ctx context.Context) error {
	for {
		events, err := f.source.EventsAfter(ctx, f.Position(), f.batchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch events after %d: %w", f.Position(), err)
		}
		if len(events) == 0 {
			return nil
		}

		for _, event := range events {
			if seq := event.SequenceNumber; seq != nil && *seq > f.Position()+1 && !f.gapExpired(ctx, *seq) {
				return nil
			}
			if err := f.handle(ctx, event); err != nil {
				return err
			}
			if event.SequenceNumber != nil {
				f.position.Store(*event.SequenceNumber)
			}
		}
		f.log.DebugContext(ctx, "Handled events", "count", len(events), "position", f.Position())

		if len(events) < f.batchSize {
			return nil
		}
	}
}

// gapExpired reports whether the numbers between the position and next have been missing
// for longer than the gap timeout.
func (f *Follower) gapExpired(ctx context.Context, next int64) bool {
	pos := f.Position()
	if f.gapAfter != pos {
		f.gapAfter = pos
		f.gapSince = time.Now()
	}
	if time.Since(f.gapSince) < f.gapTimeout {
		return false
	}

	f.log.WarnContext(ctx, "Skipping missing sequence numbers", "from", pos+1, "to", next-1)
	f.gapAfter = -1
	return true
}

func (f *Follower) handle(ctx context.Context, event eventsrc.DBEvent) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.handler(ctx, event)
	},
		backoff.WithBackOff(f.backOff()),
		backoff.WithMaxTries(f.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.log.WarnContext(ctx, "Handler failed, retrying", "eventID", event.ID, "error", err, "retryIn", next)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to handle event %s: %w", event.ID, err)
	}
	return nil
}

// Stop gracefully stops the follower. It is safe to call more than once.
func (f *Follower) Stop() {
	f.stopOnce.Do(func() { close(f.quit) })
	f.wg.Wait()
}
