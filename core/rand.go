package core

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource supplies the randomness used for wait windows. Ranking and
// admission never consult it, so a fixed seed makes a whole turn
// reproducible.
type RandSource interface {
	// Float64 returns a pseudo-random number in [0,1).
	Float64() float64
}

// LockedRand is a goroutine-safe RandSource backed by math/rand.
type LockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededRand returns a RandSource that yields the same sequence for the
// same seed.
func NewSeededRand(seed int64) *LockedRand {
	return &LockedRand{rnd: rand.New(rand.NewSource(seed))} // #nosec G404 -- timing jitter only
}

// Float64 implements RandSource.
func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// Between returns a duration uniformly drawn from [lo, hi]. When hi <= lo it
// returns lo.
func Between(src RandSource, lo, hi time.Duration) time.Duration {
	if hi <= lo || src == nil {
		return lo
	}
	return lo + time.Duration(src.Float64()*float64(hi-lo))
}
