package speedlimit

import (
	"github.com/hashicorp/go-metrics"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for slow-consumer observations. Defaults
// to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		l.log = log
	}
}

// WithMetricSink sets the sink receiving throttle and slow-consumer metrics.
// Defaults to a blackhole sink.
func WithMetricSink(sink metrics.MetricSink) Option {
	return func(l *Limiter) {
		l.metricSink = sink
	}
}

// WithClock substitutes the clock the limiter reads time from, mainly for
// tests. Defaults to the real monotonic clock.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// WithSleepFunc substitutes the idling primitive used to pause the caller,
// e.g. to cooperate with a custom scheduler or to advance a fake clock in
// tests. Defaults to sleeping on the limiter's clock.
func WithSleepFunc(sleep SleepFunc) Option {
	return func(l *Limiter) {
		l.sleep = sleep
	}
}
