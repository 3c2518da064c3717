package flight

import (
	"context"
	"time"
)

// Observer receives an event after each Group, Loader, or memo store operation
// completes. hit is true when the caller was served without running a producer.
type Observer interface {
	OnFlightOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration)

// OnFlightOp implements Observer.
func (f ObserverFunc) OnFlightOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur)
}

// Observers fans each event out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration) {
		for _, o := range observers {
			if o != nil {
				o.OnFlightOp(ctx, op, key, hit, err, dur)
			}
		}
	})
}
