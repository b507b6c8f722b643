// Package stats maintains the running performance statistics of one query
// run: cumulative counters, throughput tracking, and a bounded reservoir
// sample of per-iteration latencies for quantile estimation.
package stats

import (
	"math/rand/v2"
	"sort"
)

// DefaultSampleCapacity bounds the reservoir size. Reservoir sampling keeps
// memory constant while the sample stays statistically representative of an
// arbitrarily long iteration stream.
const DefaultSampleCapacity = 8192

// Reservoir is a fixed-capacity random sample of float64 observations.
// It is not safe for concurrent use.
type Reservoir struct {
	capacity int
	samples  []float64
	seen     uint64
	sorted   bool
	rng      *rand.Rand
}

// NewReservoir creates a reservoir holding at most capacity samples.
// A non-positive capacity falls back to DefaultSampleCapacity.
func NewReservoir(capacity int) *Reservoir {
	if capacity <= 0 {
		capacity = DefaultSampleCapacity
	}
	return &Reservoir{
		capacity: capacity,
		samples:  make([]float64, 0, capacity),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Insert adds an observation, evicting a random existing sample once the
// reservoir is full so that every observation seen so far has equal
// probability of being retained.
func (r *Reservoir) Insert(v float64) {
	r.seen++
	r.sorted = false

	if len(r.samples) < r.capacity {
		r.samples = append(r.samples, v)
		return
	}
	if r.rng.Float64() < float64(r.capacity)/float64(r.seen) {
		r.samples[r.rng.IntN(r.capacity)] = v
	}
}

// Quantile estimates the quantile at level p in [0, 1] by linear
// interpolation between the two nearest ranked samples. An empty reservoir
// yields 0.
func (r *Reservoir) Quantile(p float64) float64 {
	n := len(r.samples)
	if n == 0 {
		return 0
	}
	if !r.sorted {
		sort.Float64s(r.samples)
		r.sorted = true
	}

	if p <= 0 {
		return r.samples[0]
	}
	if p >= 1 {
		return r.samples[n-1]
	}

	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return r.samples[n-1]
	}
	frac := pos - float64(lo)
	return r.samples[lo]*(1-frac) + r.samples[hi]*frac
}

// Len returns the number of retained samples.
func (r *Reservoir) Len() int {
	return len(r.samples)
}

// Seen returns the total number of observations inserted.
func (r *Reservoir) Seen() uint64 {
	return r.seen
}
