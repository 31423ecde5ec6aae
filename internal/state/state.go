// Package state holds the view-state containers the presentation layer reads
// from. Each container is explicitly constructed, owned by one flow and only
// mutated through its methods; every method is atomic.
package state

import "time"

// Option configures a container.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for lastUpdated/lastRefresh stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// listeners fires registered callbacks outside the container lock.
type listeners []func()

func (l listeners) fire() {
	for _, fn := range l {
		fn()
	}
}
