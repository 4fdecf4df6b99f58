package broadcast

import (
	"context"
	"errors"
	"log/slog"
)

// Sink is anything events can be published to.
type Sink interface {
	Publish(ctx context.Context, event string, data any) error
}

// Fanout publishes every event to each sink in turn. A failing sink is
// logged and does not stop delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a Fanout over sinks, skipping nil entries.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish returns the joined errors of every failing sink.
func (f *Fanout) Publish(ctx context.Context, event string, data any) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, event, data); err != nil {
			f.logger.Warn("publish failed", "event", event, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
