package speedlimit

import (
	"math"
	"time"

	"github.com/hashicorp/go-metrics"
	"go.uber.org/zap"
)

// checkDisabled keeps the watchdog dormant when no minimum rate is set.
const checkDisabled = time.Duration(math.MaxInt64)

// slownessMonitor watches for the failure mode a token bucket alone cannot
// express: a consumer drawing items too slowly. An idle bucket filling up
// looks exactly like a legitimately bursty consumer, so the monitor bounds
// bucket growth per check interval by the steepest growth a consumer
// draining at least MinPerSecond could leave behind.
type slownessMonitor struct {
	lastCheckAt        time.Time
	lastTokens         float64
	interval           time.Duration
	maxGrowthPerSecond float64
	violations         int
	threshold          int

	log        *zap.Logger
	metricSink metrics.MetricSink
	tags       []metrics.Label
}

func newSlownessMonitor(cfg Config, perSecond, startTokens float64, now time.Time, log *zap.Logger, sink metrics.MetricSink, tags []metrics.Label) slownessMonitor {
	interval := cfg.CheckInterval
	if cfg.MinPerSecond == 0 {
		interval = checkDisabled
	}
	return slownessMonitor{
		lastCheckAt:        now,
		lastTokens:         startTokens,
		interval:           interval,
		maxGrowthPerSecond: (perSecond - cfg.MinPerSecond) * cfg.InitialBucketSize,
		threshold:          cfg.ViolationThreshold,
		log:                log,
		metricSink:         sink,
		tags:               tags,
	}
}

// check runs at most once per interval, comparing the bucket against the
// growth envelope anchored at the previous check's size. Detection is
// window-based: only monotonic over-accumulation across a whole interval
// trips it, oscillation inside the window does not.
func (m *slownessMonitor) check(now time.Time, tokens float64) error {
	elapsed := now.Sub(m.lastCheckAt)
	if elapsed <= m.interval {
		return nil
	}

	var err error
	maxAllowed := m.lastTokens + m.maxGrowthPerSecond*elapsed.Seconds()
	if tokens > maxAllowed {
		m.violations++
		m.metricSink.IncrCounterWithLabels(statsdSlowConsumer, 1.0, m.tags)
		m.metricSink.SetGaugeWithLabels(statsdBucketTokens, float32(tokens), m.tags)
		m.log.Warn("consumer below minimum rate",
			zap.Float64("bucket_tokens", tokens),
			zap.Float64("max_allowed", maxAllowed),
			zap.Int("consecutive_violations", m.violations),
			zap.Int("violation_threshold", m.threshold))
		if m.violations >= m.threshold {
			err = &TooSlowError{BucketTokens: tokens, MaxAllowed: maxAllowed, Violations: m.violations}
		}
	} else {
		m.violations = 0
	}
	m.lastCheckAt = now
	m.lastTokens = tokens
	return err
}
