package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
)

// emitFunc delivers one event to the reader, failing once the reader is gone.
type emitFunc func(domain.Event) error

// relay runs fn in its own goroutine and forwards its events on an
// unbuffered channel. fn returns the terminal event, or an error that
// becomes one. Nothing is sent after ctx is cancelled, and the channel is
// always closed, so readers range over it until it ends.
func relay(ctx context.Context, logger *zap.Logger, fn func(emit emitFunc) (domain.Event, error)) <-chan domain.Event {
	events := make(chan domain.Event)
	go func() {
		defer close(events)

		emit := func(ev domain.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		final, err := fn(emit)
		if err != nil {
			if ctx.Err() != nil {
				// The reader reports deadlines; cancellation means it is gone.
				logger.Info("Stream stopped", zap.NamedError("cause", ctx.Err()), zap.Error(err))
				return
			}
			final = domain.ErrorEvent(err)
		}
		if err := emit(final); err != nil {
			logger.Info("Terminal event not delivered", zap.String("type", string(final.Type)))
		}
	}()
	return events
}
