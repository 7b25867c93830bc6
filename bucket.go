package speedlimit

import (
	"math"
	"time"
)

// unlimitedRate stands in for "no limit" when ItemsPerSecond is unset. It is
// large enough that waits never trigger in practice.
const unlimitedRate = 1e10

// tokenBucket accumulates tokens in whole-tic increments: one batch of
// tokensPerTic every refreshRate, never a fraction of a batch early. All
// methods take the caller's notion of now so that the bucket itself performs
// no clock reads.
type tokenBucket struct {
	tokensPerTic float64
	tokens       float64
	refreshRate  time.Duration
	nextFillAt   time.Time
}

func newTokenBucket(perSecond, bucketMultiple float64, refreshRate time.Duration, now time.Time) tokenBucket {
	perTic := perSecond * refreshRate.Seconds()
	return tokenBucket{
		tokensPerTic: perTic,
		tokens:       perTic * bucketMultiple,
		refreshRate:  refreshRate,
		nextFillAt:   now.Add(refreshRate),
	}
}

// fill credits every whole tic that has elapsed up to now and advances the
// next boundary by the same number of tics. Reaching the boundary counts as
// one tic; repeated calls at a fixed now are no-ops after the first.
func (b *tokenBucket) fill(now time.Time) {
	if now.Before(b.nextFillAt) {
		return
	}
	tics := int64(math.Ceil(now.Sub(b.nextFillAt).Seconds() / b.refreshRate.Seconds()))
	if tics < 1 {
		tics = 1
	}
	b.tokens += float64(tics) * b.tokensPerTic
	b.nextFillAt = b.nextFillAt.Add(time.Duration(tics) * b.refreshRate)
}

// waitFor reports how long the caller must sleep before a debit of size can
// be covered, assuming fill(now) already ran. The missing tokens translate
// into whole tics, plus the remaining time to the already-scheduled boundary
// since that boundary brings a batch of its own.
func (b *tokenBucket) waitFor(size float64, now time.Time) time.Duration {
	if size <= 0 || size <= b.tokens {
		return 0
	}
	tics := math.Floor((size - b.tokens) / b.tokensPerTic)
	wait := time.Duration(tics * float64(b.refreshRate))
	if boundary := b.nextFillAt.Sub(now); boundary > 0 {
		wait += boundary
	}
	return wait
}

func (b *tokenBucket) debit(size float64) {
	b.tokens -= size
}
