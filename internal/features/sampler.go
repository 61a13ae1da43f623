package features

import "math/rand/v2"

// Bounds of the collection_id placeholder.
const (
	CollectionIDMin = 3.750866e11
	CollectionIDMax = 8.250428e11
)

// Sampler supplies the feature values that are not measured from the host.
type Sampler interface {
	CollectionID() float64
	Scheduler() float64
}

// RandomSampler draws collection_id uniformly from
// [CollectionIDMin, CollectionIDMax] and scheduler from {0, 1} on every call.
type RandomSampler struct{}

// NewRandomSampler returns a sampler backed by the global math/rand/v2 source.
func NewRandomSampler() RandomSampler {
	return RandomSampler{}
}

// CollectionID draws a fresh collection_id.
func (RandomSampler) CollectionID() float64 {
	return CollectionIDMin + rand.Float64()*(CollectionIDMax-CollectionIDMin)
}

// Scheduler draws 0 or 1 with equal odds.
func (RandomSampler) Scheduler() float64 {
	return float64(rand.IntN(2))
}

// FixedSampler returns the same values every time.
type FixedSampler struct {
	ID    float64
	Sched float64
}

func (s FixedSampler) CollectionID() float64 { return s.ID }

func (s FixedSampler) Scheduler() float64 { return s.Sched }
