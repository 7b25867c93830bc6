package speedlimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	defaultRefreshRate        = time.Second
	defaultInitialBucketSize  = 1
	defaultCheckInterval      = 5 * time.Second
	defaultViolationThreshold = 10
)

// Config struct for configuring a Limiter. The zero value of every tunable
// except ItemsPerSecond and MinPerSecond falls back to a default.
type Config struct {
	// ItemsPerSecond is the maximum sustained admission rate, in tokens per
	// second. Zero means unlimited.
	ItemsPerSecond float64 `yaml:"items_per_second"`

	// RefreshRate is the length of one refill tic. Smaller tics track the
	// target rate more closely at the cost of more bookkeeping.
	RefreshRate time.Duration `yaml:"refresh_rate"`

	// InitialBucketSize is a multiplier on one tic's worth of tokens and
	// sets the starting reserve: up to ItemsPerSecond × RefreshRate ×
	// InitialBucketSize tokens admit with no wait right after construction.
	InitialBucketSize float64 `yaml:"initial_bucket_size"`

	// MinPerSecond is the minimum acceptable sustained consumption rate.
	// Zero disables slow-consumer detection.
	MinPerSecond float64 `yaml:"min_per_second"`

	// CheckInterval is the period between slow-consumer checks.
	CheckInterval time.Duration `yaml:"check_interval"`

	// ViolationThreshold is the number of consecutive failed checks before
	// the limiter fails with a TooSlowError.
	ViolationThreshold int `yaml:"violation_threshold"`
}

func (c Config) withDefaults() Config {
	if c.RefreshRate == 0 {
		c.RefreshRate = defaultRefreshRate
	}
	if c.InitialBucketSize == 0 {
		c.InitialBucketSize = defaultInitialBucketSize
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.ViolationThreshold == 0 {
		c.ViolationThreshold = defaultViolationThreshold
	}
	return c
}

// Validate a Config.
func (c *Config) Validate() error {
	var result error
	if c.ItemsPerSecond < 0 {
		result = multierror.Append(result, errors.New("items per second cannot be negative"))
	}
	if c.MinPerSecond < 0 {
		result = multierror.Append(result, errors.New("minimum per second cannot be negative"))
	}
	if c.RefreshRate < 0 {
		result = multierror.Append(result, errors.New("refresh rate cannot be negative"))
	}
	if c.InitialBucketSize < 0 {
		result = multierror.Append(result, errors.New("initial bucket size cannot be negative"))
	}
	if c.CheckInterval < 0 {
		result = multierror.Append(result, errors.New("check interval cannot be negative"))
	}
	if c.ViolationThreshold < 0 {
		result = multierror.Append(result, errors.New("violation threshold cannot be negative"))
	}
	if c.ItemsPerSecond > 0 && c.MinPerSecond > c.ItemsPerSecond {
		result = multierror.Append(result, fmt.Errorf("%w: %v > %v", ErrMinAboveMax, c.MinPerSecond, c.ItemsPerSecond))
	}

	return result
}
