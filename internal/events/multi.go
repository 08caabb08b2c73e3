package events

import (
	"context"
	"errors"
)

// Publisher is implemented by every event sink
type Publisher interface {
	Publish(ctx context.Context, event StationEvent) error
}

// Multi publishes every event to each of its publishers. All of them are
// tried; the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event StationEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
