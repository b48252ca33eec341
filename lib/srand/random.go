// Random number generation on top of an arbitrary source of 64 bit samples.
//
// A Generator turns samples into the values of a classical 48 bit linear
// congruential generator: each call to Next(bits) takes the low 48 bits of a
// sample, and returns the top `bits` of them. All the derived operations -
// Int32n, Float64, Bool, NormFloat64, ... - are computed from Next exactly like
// the classical generator computes them from its internal state.
//
// This means that the same algorithms work unmodified whether the samples are
// coming from a radio tuned on noise, a hardware device, crypto/rand, or the
// classical LCG itself (see NewLCG).
//
// A Generator is also a math/rand.Source64, so it can be used with:
//
//	rng := rand.New(srand.New(sampler))
package srand

import (
	"fmt"
	"math"
	"sync"
)

// Sampler is anything capable of returning 64 bits of entropy at a time.
//
// Sample must be safe for concurrent use, and must never block for long.
type Sampler interface {
	Sample() int64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() int64

func (sf SamplerFunc) Sample() int64 {
	return sf()
}

const (
	windowBits = 48
	windowMask = (int64(1) << windowBits) - 1
)

// Bits computes the value of a generator returning bits random bits out of sample.
//
// The result is the top bits of the low 48 bits of sample, as an unsigned
// value of at most bits significant bits. bits must be in the range [1, 32].
func Bits(sample int64, bits int) uint32 {
	if bits < 1 || bits > 32 {
		panic(fmt.Sprintf("invalid number of bits requested: %d - must be in [1, 32]", bits))
	}
	masked := uint64(sample & windowMask)
	return uint32(masked >> (windowBits - bits))
}

// Generator computes random values using the bits provided by a Sampler.
//
// Generator is safe for concurrent use as long as the Sampler is.
type Generator struct {
	sampler Sampler

	lock         sync.Mutex
	haveGaussian bool
	nextGaussian float64
}

func New(sampler Sampler) *Generator {
	return &Generator{sampler: sampler}
}

// Next returns a value with the specified number of random bits, in [1, 32].
//
// Like the classical next(bits), the value is reinterpreted as an int32: with
// bits == 32 the top bit becomes the sign bit.
func (g *Generator) Next(bits int) int32 {
	return int32(Bits(g.sampler.Sample(), bits))
}

// Int32 returns a uniformly distributed int32, positive or negative.
func (g *Generator) Int32() int32 {
	return g.Next(32)
}

// Int32n returns a uniformly distributed value in [0, bound).
//
// Panics if bound is not positive.
func (g *Generator) Int32n(bound int32) int32 {
	if bound <= 0 {
		panic(fmt.Sprintf("invalid bound %d - must be positive", bound))
	}

	// Power of two: the top bits are the best bits.
	if bound&-bound == bound {
		return int32((int64(bound) * int64(g.Next(31))) >> 31)
	}

	// Reject values from the last, incomplete, interval of size bound.
	// The sum overflows (and becomes negative) exactly in that case.
	for {
		bits := g.Next(31)
		value := bits % bound
		if bits-value+(bound-1) >= 0 {
			return value
		}
	}
}

// Int64 returns a uniformly distributed int64, built from two 32 bit values.
func (g *Generator) Int64() int64 {
	return int64(g.Next(32))<<32 + int64(g.Next(32))
}

func (g *Generator) Bool() bool {
	return g.Next(1) != 0
}

// Float32 returns a value in [0.0, 1.0).
func (g *Generator) Float32() float32 {
	return float32(g.Next(24)) / float32(1<<24)
}

// Float64 returns a value in [0.0, 1.0) with 53 bits of randomness.
func (g *Generator) Float64() float64 {
	return float64(int64(g.Next(26))<<27+int64(g.Next(27))) * (1.0 / (1 << 53))
}

// NormFloat64 returns a normally distributed value with mean 0 and standard deviation 1.
//
// Values are computed in pairs with the polar method; the second value of each
// pair is returned by the following call.
func (g *Generator) NormFloat64() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.haveGaussian {
		g.haveGaussian = false
		return g.nextGaussian
	}

	for {
		v1 := 2*g.Float64() - 1
		v2 := 2*g.Float64() - 1
		s := v1*v1 + v2*v2
		if s >= 1 || s == 0 {
			continue
		}

		multiplier := math.Sqrt(-2 * math.Log(s) / s)
		g.nextGaussian = v2 * multiplier
		g.haveGaussian = true
		return v1 * multiplier
	}
}

// Read fills p with random bytes. It never fails.
//
// Bytes are taken from successive Int32 values, least significant byte first.
func (g *Generator) Read(p []byte) (int, error) {
	for i := 0; i < len(p); {
		rnd := g.Int32()
		for n := 0; n < 4 && i < len(p); n++ {
			p[i] = byte(rnd)
			rnd >>= 8
			i++
		}
	}
	return len(p), nil
}

// Seed is a no-op. It is only provided to implement the math/rand.Source interface.
func (g *Generator) Seed(seed int64) {}

func (g *Generator) Int63() int64 {
	return g.Int64() & math.MaxInt64
}

func (g *Generator) Uint64() uint64 {
	return uint64(g.Int64())
}
