package autoplier

import (
	"math/rand"
	"sync"
	"time"
)

var (
	genLock sync.Mutex
	gen     = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// SetSeed seeds both sources of randomness used while
// building and training a model.
//
// The global math/rand source is used by the framework
// for shuffling mini-batches and for anyvec.Rand calls
// made without an explicit generator.
// The package generator is used for weight initialization
// and dropout masks.
func SetSeed(seed int64) {
	rand.Seed(seed)
	genLock.Lock()
	gen = rand.New(rand.NewSource(seed))
	genLock.Unlock()
}

// generator returns the package generator.
//
// The result is not safe for concurrent use, and nothing
// in this package draws from it concurrently.
func generator() *rand.Rand {
	genLock.Lock()
	defer genLock.Unlock()
	return gen
}
