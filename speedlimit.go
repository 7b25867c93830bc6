package speedlimit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	statsdStem                = []string{"speedlimit"}
	statsdThrottleWait        = append(statsdStem, "throttle", "wait")
	statsdThrottleWaitSeconds = append(statsdStem, "throttle", "wait", "seconds")
	statsdSlowConsumer        = append(statsdStem, "consumer", "slow")
	statsdBucketTokens        = append(statsdStem, "bucket", "tokens")
)

// SleepFunc pauses the calling goroutine for the given duration. The default
// sleeps on the limiter's clock; tests substitute a function that advances a
// fake clock instead of blocking.
type SleepFunc func(time.Duration)

// Limiter throttles one sequential consumption stream with a token bucket
// and escalates to a TooSlowError when the consumer stays below the
// configured minimum rate.
//
// A Limiter is single-consumer and one-shot: it must not be driven by more
// than one goroutine, and once failed it refuses all further admissions with
// the same error. Abandoning it at any point is safe, it holds no resources
// beyond its in-memory state.
type Limiter struct {
	cfg        Config
	perSecond  float64
	clock      clockwork.Clock
	sleep      SleepFunc
	log        *zap.Logger
	metricSink metrics.MetricSink
	tags       []metrics.Label

	bucket  tokenBucket
	monitor slownessMonitor
	failed  error
}

// New creates a Limiter from the given configuration, anchored at the
// current clock reading. It fails fast when the configuration is invalid,
// in particular when MinPerSecond exceeds ItemsPerSecond.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("speedlimit: invalid configuration: %w", err)
	}

	l := &Limiter{cfg: cfg, perSecond: cfg.ItemsPerSecond}
	if l.perSecond == 0 {
		l.perSecond = unlimitedRate
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = clockwork.NewRealClock()
	}
	if l.sleep == nil {
		l.sleep = l.clock.Sleep
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if l.metricSink == nil {
		l.metricSink = &metrics.BlackholeSink{}
	}

	id := uuid.NewString()
	l.log = l.log.With(zap.String("limiter", id))
	l.tags = []metrics.Label{{Name: "limiter", Value: id}}

	now := l.clock.Now()
	l.bucket = newTokenBucket(l.perSecond, cfg.InitialBucketSize, cfg.RefreshRate, now)
	l.monitor = newSlownessMonitor(cfg, l.perSecond, l.bucket.tokens, now, l.log, l.metricSink, l.tags)

	return l, nil
}

// admit debits size tokens, sleeping first when the bucket cannot cover the
// debit yet. Order per admission: fill, slow-consumer check, wait, re-fill
// (the sleep may have crossed one or more tic boundaries), debit.
func (l *Limiter) admit(size float64) error {
	if l.failed != nil {
		return l.failed
	}

	now := l.clock.Now()
	l.bucket.fill(now)
	if err := l.monitor.check(now, l.bucket.tokens); err != nil {
		l.failed = err
		return err
	}

	if size > 0 && size > l.bucket.tokens {
		if wait := l.bucket.waitFor(size, now); wait > 0 {
			l.metricSink.IncrCounterWithLabels(statsdThrottleWait, 1.0, l.tags)
			l.metricSink.AddSampleWithLabels(statsdThrottleWaitSeconds, float32(wait.Seconds()), l.tags)
			l.sleep(wait)
		}
		l.bucket.fill(l.clock.Now())
	}
	l.bucket.debit(size)

	return nil
}

// burstTokens is the maximum reserve the bucket starts with:
// ItemsPerSecond × RefreshRate × InitialBucketSize.
func (l *Limiter) burstTokens() float64 {
	return l.perSecond * l.cfg.RefreshRate.Seconds() * l.cfg.InitialBucketSize
}
