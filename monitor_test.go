package speedlimit

import (
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// captureSink records counters and samples by joined metric name.
type captureSink struct {
	metrics.BlackholeSink
	counters map[string]float32
	samples  map[string][]float32
}

func newCaptureSink() *captureSink {
	return &captureSink{
		counters: make(map[string]float32),
		samples:  make(map[string][]float32),
	}
}

func (s *captureSink) IncrCounterWithLabels(key []string, val float32, _ []metrics.Label) {
	s.counters[strings.Join(key, ".")] += val
}

func (s *captureSink) AddSampleWithLabels(key []string, val float32, _ []metrics.Label) {
	name := strings.Join(key, ".")
	s.samples[name] = append(s.samples[name], val)
}

var monitorEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func slowConfig() Config {
	return Config{
		ItemsPerSecond:     10,
		RefreshRate:        time.Second,
		InitialBucketSize:  1,
		MinPerSecond:       5,
		CheckInterval:      time.Second,
		ViolationThreshold: 3,
	}
}

func TestSlownessMonitorEscalatesAtThreshold(t *testing.T) {
	cfg := slowConfig()
	m := newSlownessMonitor(cfg, cfg.ItemsPerSecond, 10, monitorEpoch, zap.NewNop(), &metrics.BlackholeSink{}, nil)

	// The bucket grows 11 tokens per 1.1s window while the envelope allows
	// (10-5)*1*1.1 = 5.5: every check is a violation.
	for i := 1; i <= 2; i++ {
		now := monitorEpoch.Add(time.Duration(i) * 1100 * time.Millisecond)
		err := m.check(now, 10+float64(11*i))
		require.NoError(t, err, "check %d must not escalate yet", i)
		assert.Equal(t, i, m.violations)
	}

	now := monitorEpoch.Add(3 * 1100 * time.Millisecond)
	err := m.check(now, 43)
	require.Error(t, err)

	tooSlow, ok := err.(*TooSlowError)
	require.True(t, ok)
	assert.Equal(t, 3, tooSlow.Violations)
	assert.Equal(t, 43.0, tooSlow.BucketTokens)
	assert.InDelta(t, 32+5.5, tooSlow.MaxAllowed, 1e-9)
}

func TestSlownessMonitorResetsAfterCleanInterval(t *testing.T) {
	cfg := slowConfig()
	m := newSlownessMonitor(cfg, cfg.ItemsPerSecond, 10, monitorEpoch, zap.NewNop(), &metrics.BlackholeSink{}, nil)

	require.NoError(t, m.check(monitorEpoch.Add(1100*time.Millisecond), 21))
	assert.Equal(t, 1, m.violations)

	// bucket held flat: well inside the envelope
	require.NoError(t, m.check(monitorEpoch.Add(2200*time.Millisecond), 21))
	assert.Equal(t, 0, m.violations)
}

func TestSlownessMonitorNoopWithinInterval(t *testing.T) {
	cfg := slowConfig()
	m := newSlownessMonitor(cfg, cfg.ItemsPerSecond, 10, monitorEpoch, zap.NewNop(), &metrics.BlackholeSink{}, nil)

	require.NoError(t, m.check(monitorEpoch.Add(time.Second), 1e6))
	assert.Equal(t, 0, m.violations)
	assert.Equal(t, monitorEpoch, m.lastCheckAt)
	assert.Equal(t, 10.0, m.lastTokens)
}

func TestSlownessMonitorDisabledWithoutMinimum(t *testing.T) {
	cfg := slowConfig()
	cfg.MinPerSecond = 0
	m := newSlownessMonitor(cfg, cfg.ItemsPerSecond, 10, monitorEpoch, zap.NewNop(), &metrics.BlackholeSink{}, nil)

	require.Equal(t, checkDisabled, m.interval)
	for i := 1; i <= 100; i++ {
		require.NoError(t, m.check(monitorEpoch.Add(time.Duration(i)*24*time.Hour), 1e9))
	}
	assert.Equal(t, 0, m.violations)
}

func TestSlownessMonitorObservability(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := newCaptureSink()

	cfg := slowConfig()
	m := newSlownessMonitor(cfg, cfg.ItemsPerSecond, 10, monitorEpoch, zap.New(core), sink, nil)

	require.NoError(t, m.check(monitorEpoch.Add(1100*time.Millisecond), 21))
	require.NoError(t, m.check(monitorEpoch.Add(2200*time.Millisecond), 32))

	entries := logs.FilterMessage("consumer below minimum rate").All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	assert.Equal(t, 32.0, fields["bucket_tokens"])
	assert.InDelta(t, 21+5.5, fields["max_allowed"].(float64), 1e-9)
	assert.Equal(t, int64(2), fields["consecutive_violations"])

	assert.Equal(t, float32(2), sink.counters["speedlimit.consumer.slow"])
}
