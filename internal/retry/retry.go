package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type RetryableFunc func() error

type Config struct {
	maxAttempts  int
	initialDelay time.Duration
	maxJitter    time.Duration
	log          *zap.Logger
	clock        clockwork.Clock
}

type Option func(*Config)

// MaxAttempts is the total number of attempts including the initial attempt.
func MaxAttempts(maxAttempts int) Option {
	return func(c *Config) {
		c.maxAttempts = maxAttempts
	}
}

// MaxJitter is the maximum amount of time between [0, maxJitter] to add to a delay.
func MaxJitter(maxJitter time.Duration) Option {
	return func(c *Config) {
		c.maxJitter = maxJitter
	}
}

func InitialDelay(initialDelay time.Duration) Option {
	return func(c *Config) {
		c.initialDelay = initialDelay
	}
}

func Logger(log *zap.Logger) Option {
	return func(c *Config) {
		c.log = log
	}
}

// Clock substitutes the timer used between attempts, mainly for tests.
func Clock(clock clockwork.Clock) Option {
	return func(c *Config) {
		c.clock = clock
	}
}

// Do will perform N attempts to execute RetryableFunc, waiting a linearly
// growing delay plus jitter between failures.
func Do(ctx context.Context, retryable RetryableFunc, opts ...Option) error {
	config := &Config{
		maxAttempts:  3,
		initialDelay: 200 * time.Millisecond,
		maxJitter:    100 * time.Millisecond,
		log:          zap.NewNop(),
		clock:        clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(config)
	}

	var err error
	for attempt := 1; attempt <= config.maxAttempts; attempt++ {
		err = retryable()
		if err == nil {
			return nil
		}

		// on the last attempt we return the error right away rather than waiting
		if attempt == config.maxAttempts {
			break
		}

		retryDelay := delayForAttempt(attempt, config.initialDelay, config.maxJitter)
		config.log.Debug("retry failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", retryDelay))

		timer := config.clock.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%v: %w", err.Error(), ctx.Err())
		case <-timer.Chan():
		}
	}

	return err
}

// delayForAttempt calculates the delay to wait after the given failed attempt.
func delayForAttempt(attempt int, initialDelay time.Duration, maxJitter time.Duration) time.Duration {
	delay := time.Duration(attempt) * initialDelay

	var jitter time.Duration
	if maxJitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(maxJitter)))
	}

	return delay + jitter
}
