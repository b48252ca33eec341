package srand

import (
	"sync/atomic"
	"time"
)

const (
	lcgMultiplier = 0x5DEECE66D
	lcgAddend     = 0xB
)

// LCG is the classical 48 bit linear congruential generator, as a Sampler.
//
// Each sample is the new 48 bit state. Wrapped in a Generator, it produces
// exactly the sequence of the classical generator with the same seed.
//
// This is not a source of entropy: it is used as a deterministic fallback
// when no entropy source is available.
type LCG struct {
	state atomic.Int64
}

// NewLCG returns an LCG seeded with seed, scrambled like the classical generator does.
func NewLCG(seed int64) *LCG {
	lcg := &LCG{}
	lcg.state.Store((seed ^ lcgMultiplier) & windowMask)
	return lcg
}

func (l *LCG) Sample() int64 {
	for {
		old := l.state.Load()
		next := (old*lcgMultiplier + lcgAddend) & windowMask
		if l.state.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Now is used to seed NewTimeSeeded. Mainly used for testing.
var Now = time.Now

// NewTimeSeeded returns a deterministic Generator seeded with the current time.
func NewTimeSeeded() *Generator {
	return New(NewLCG(Now().UnixMilli()))
}
