package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Backoff decides how long to wait before the given retry attempt.
// The second return value is false once no more attempts are allowed.
type Backoff interface {
	Delay(attempt uint) (time.Duration, bool)
}

type Never struct{}

func (Never) Delay(uint) (time.Duration, bool) {
	return 0, false
}

type Jitter func(int64) int64

// Exponential waits Base*2^attempt capped at Max, for at most Attempts retries.
// A nil Jitter picks uniformly from [0, delay).
type Exponential struct {
	Base     time.Duration
	Max      time.Duration
	Attempts uint
	Jitter   Jitter
}

func (e Exponential) Delay(attempt uint) (time.Duration, bool) {
	if attempt >= e.Attempts {
		return 0, false
	}

	ceiling := int64(e.Max)
	if ceiling <= 0 {
		ceiling = math.MaxInt64
	}

	delay, err := doubled(int64(e.Base), attempt)
	if err != nil {
		delay = ceiling
	}
	return time.Duration(e.jitter(clamp(delay, 0, ceiling))), true
}

func (e Exponential) jitter(delay int64) int64 {
	if e.Jitter != nil {
		return e.Jitter(delay)
	}
	if delay <= 0 {
		return 0
	}
	return rand.Int63n(delay)
}

var OverflowError = errors.New("overflow")

func doubled(v int64, times uint) (int64, error) {
	for ; times > 0 && v != 0; times-- {
		if v > math.MaxInt64/2 || v < math.MinInt64/2 {
			return 0, OverflowError
		}
		v *= 2
	}
	return v, nil
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
