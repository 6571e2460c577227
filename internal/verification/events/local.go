package events

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// LocalBus is an in-process bus: a buffered channel drained by a fixed pool of
// workers. Events are lost on shutdown; the follow-up sweep re-drives them.
type LocalBus struct {
	ch      chan PhaseCompleted
	workers int
	logger  *slog.Logger
}

func NewLocalBus(buffer, workers int, logger *slog.Logger) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 1
	}
	return &LocalBus{ch: make(chan PhaseCompleted, buffer), workers: workers, logger: logger}
}

// Publish enqueues without blocking.
func (b *LocalBus) Publish(ctx context.Context, event PhaseCompleted) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- event:
		return nil
	default:
		return ErrBusFull
	}
}

// Run drains the bus until ctx is cancelled. Handler errors are logged; the
// event is not retried.
func (b *LocalBus) Run(ctx context.Context, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	for range b.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case event := <-b.ch:
					if err := handler.HandlePhaseCompleted(ctx, event); err != nil {
						b.logger.ErrorContext(ctx, "phase event handler failed",
							"verification_id", event.VerificationID.String(),
							"phase", string(event.Next),
							"error", err,
						)
					}
				}
			}
		})
	}
	return g.Wait()
}
