package autoplier

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// A Trainer constructs batches, computes gradients, and
// tallies up costs for an autoencoder made of separate
// encoder and decoder layers.
//
// It behaves like an anyff.Trainer with Average set, but
// it also measures the latent activations of each batch.
type Trainer struct {
	Encoder anynet.Layer
	Decoder anynet.Layer
	Cost    anynet.Cost
	Params  []*anydiff.Var

	// MaxGos specifies the maximum goroutines to use
	// simultaneously for fetching samples.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int

	// After every gradient computation, LastCost is set to
	// the average cost of the batch and LastMagnitude to
	// the sum of the squared latent activations.
	LastCost      float64
	LastMagnitude float64
}

// Fetch produces an *anyff.Batch for the subset of
// samples.
// The s argument must implement anyff.SampleList.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	fetcher := anyff.Trainer{MaxGos: t.MaxGos}
	return fetcher.Fetch(s)
}

// TotalCost computes the average cost for the
// *anyff.Batch and records the latent magnitude.
func (t *Trainer) TotalCost(batch anysgd.Batch) anydiff.Res {
	b := batch.(*anyff.Batch)
	latent := t.Encoder.Apply(b.Inputs, b.Num)
	t.LastMagnitude = squareSum(latent)
	outRes := t.Decoder.Apply(latent, b.Num)
	cost := t.Cost.Cost(b.Outputs, outRes, b.Num)
	total := anydiff.Sum(cost)
	divisor := 1 / float64(cost.Output().Len())
	return anydiff.Scale(total, total.Output().Creator().MakeNumeric(divisor))
}

// Gradient computes the gradient for the batch's cost.
// It also sets t.LastCost and t.LastMagnitude.
//
// The b argument must be an *anyff.Batch.
func (t *Trainer) Gradient(b anysgd.Batch) anydiff.Grad {
	grad, lc := anysgd.CosterGrad(t, b, t.Params)
	t.LastCost = numericFloat(lc)
	return grad
}

// Evaluate computes the average cost of the batch without
// computing gradients.
// It returns the cost and the latent magnitude.
func (t *Trainer) Evaluate(b anysgd.Batch) (cost, magnitude float64) {
	total := t.TotalCost(b)
	return numericFloat(anyvec.Sum(total.Output())), t.LastMagnitude
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}
