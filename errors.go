package speedlimit

import (
	"errors"
	"fmt"
)

// ErrMinAboveMax is returned by New when the minimum acceptable rate
// exceeds the maximum admission rate.
var ErrMinAboveMax = errors.New("minimum rate cannot exceed maximum rate")

// TooSlowError reports that the consumer failed the slow-consumer check for
// ViolationThreshold consecutive check intervals. It carries the last
// measured bucket size and the largest size the configured minimum rate can
// explain. The limiter that produced it is failed for good.
type TooSlowError struct {
	// BucketTokens is the bucket size observed at the failing check.
	BucketTokens float64

	// MaxAllowed is the largest bucket size a consumer draining at least
	// MinPerSecond could have left behind over the check interval.
	MaxAllowed float64

	// Violations is the number of consecutive failed checks.
	Violations int
}

func (e *TooSlowError) Error() string {
	return fmt.Sprintf("consumer too slow: bucket holds %.2f tokens, expected at most %.2f after %d consecutive checks",
		e.BucketTokens, e.MaxAllowed, e.Violations)
}
