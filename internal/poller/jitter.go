package poller

import (
	"math/rand"
	"time"
)

// Jitter samples the random part of the delay between poll cycles.
//
// A fresh value is drawn for every cycle so that requests against the
// upstream service do not settle into a fixed, recognisable rhythm.
type Jitter struct {
	min time.Duration
	max time.Duration
	rnd func(n int64) int64
}

// NewJitter creates a [Jitter] drawing uniformly from [min, max].
//
// rnd must return a value in [0, n); nil selects math/rand. Swapped bounds
// are reordered and negative bounds are clamped to zero.
func NewJitter(min, max time.Duration, rnd func(n int64) int64) *Jitter {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if min > max {
		min, max = max, min
	}
	if rnd == nil {
		rnd = rand.Int63n
	}
	return &Jitter{min: min, max: max, rnd: rnd}
}

// Sample returns a duration in [min, max], both bounds inclusive.
func (j *Jitter) Sample() time.Duration {
	span := int64(j.max - j.min)
	if span <= 0 {
		return j.min
	}
	return j.min + time.Duration(j.rnd(span+1))
}

// Delay returns base plus a freshly sampled jitter.
func (j *Jitter) Delay(base time.Duration) time.Duration {
	return base + j.Sample()
}
