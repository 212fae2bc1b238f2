package botzie

import (
	"math/rand"
	"sync"
)

// Random is the uniform source the state machine draws from.
type Random interface {
	Float64() float64
	Intn(n int) int
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) Intn(n int) int   { return rand.Intn(n) }

// NewSeededRandom returns a goroutine-safe source with a fixed seed.
func NewSeededRandom(seed int64) Random {
	return &lockedRandom{rng: rand.New(rand.NewSource(seed))}
}

type lockedRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *lockedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func randomIntBetween(rng Random, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
