package autoplier

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// NewDense creates a fully-connected layer with zero
// biases and Glorot-uniform weights, i.e. weights drawn
// uniformly from [-l, l) with
//
//     l = sqrt(6 / (in + out))
//
// If gen is nil, the package generator is used.
func NewDense(c anyvec.Creator, in, out int, gen *rand.Rand) *anynet.FC {
	if gen == nil {
		gen = generator()
	}
	res := anynet.NewFCZero(c, in, out)
	limit := math.Sqrt(6 / float64(in+out))
	anyvec.Rand(res.Weights.Vector, anyvec.Uniform, gen)
	res.Weights.Vector.Scale(c.MakeNumeric(2 * limit))
	res.Weights.Vector.AddScalar(c.MakeNumeric(-limit))
	return res
}
