// Package sampling implements the randomization primitives used to order
// timeline variables: shuffles, sampling with and without replacement,
// repetition, alternating groups and a few distribution samplers.
//
// Every function takes an explicit *rand.Rand. A run owns exactly one Source
// and threads its generator through every call, so reseeding the Source before
// a run makes the whole run reproducible.
package sampling

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	mrand "math/rand/v2"
)

// Source is a seedable random generator handle.
//
// Source is not safe for concurrent use; a run consumes it from the single
// goroutine that advances the timeline.
type Source struct {
	seed string
	rng  *mrand.Rand
}

// NewSource creates a Source seeded with seed. An empty seed picks a random
// one, which can be read back through Seed for later replay.
func NewSource(seed string) *Source {
	s := &Source{}
	s.Reseed(seed)
	return s
}

// Reseed replaces the generator state and returns the seed in use.
func (s *Source) Reseed(seed string) string {
	if seed == "" {
		seed = randomSeed()
	}
	sum := sha256.Sum256([]byte(seed))
	s.seed = seed
	s.rng = mrand.New(mrand.NewPCG(
		binary.BigEndian.Uint64(sum[:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
	return seed
}

// Seed returns the seed the generator was last initialized with.
func (s *Source) Seed() string {
	return s.seed
}

// Rand returns the underlying generator.
func (s *Source) Rand() *mrand.Rand {
	return s.rng
}

func randomSeed() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("sampling: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
