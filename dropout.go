package autoplier

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Dropout
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDropout)
}

// A Dropout layer applies inverted dropout.
//
// While training, every input is zeroed with probability
// Rate and the surviving inputs are scaled by 1/(1-Rate),
// so that the expected output equals the input.
// Outside of training, the layer is the identity.
type Dropout struct {
	Training bool

	// The probability of dropping any given input.
	Rate float64

	// Gen is used to sample dropout masks.
	// If it is nil, the package generator is used.
	Gen *rand.Rand
}

// DeserializeDropout deserializes a Dropout.
// The deserialized layer is not in training mode.
func DeserializeDropout(d []byte) (*Dropout, error) {
	var rate serializer.Float64
	if err := serializer.DeserializeAny(d, &rate); err != nil {
		return nil, essentials.AddCtx("deserialize Dropout", err)
	}
	return &Dropout{Rate: float64(rate)}, nil
}

// Apply applies the layer.
func (d *Dropout) Apply(in anydiff.Res, n int) anydiff.Res {
	if !d.Training || d.Rate == 0 {
		return in
	}
	c := in.Output().Creator()
	gen := d.Gen
	if gen == nil {
		gen = generator()
	}
	keepProb := 1 - d.Rate
	mask := c.MakeVector(in.Output().Len())
	anyvec.Rand(mask, anyvec.Uniform, gen)
	anyvec.LessThan(mask, c.MakeNumeric(keepProb))
	mask.Scale(c.MakeNumeric(1 / keepProb))
	return anydiff.Mul(in, anydiff.NewConst(mask))
}

// SetTraining switches the layer between training and
// inference behavior.
func (d *Dropout) SetTraining(training bool) {
	d.Training = training
}

// SerializerType returns the unique ID used to serialize
// a Dropout with the serializer package.
func (d *Dropout) SerializerType() string {
	return "github.com/dmontemayor/autoplier.Dropout"
}

// Serialize serializes the Dropout.
func (d *Dropout) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Float64(d.Rate))
}
