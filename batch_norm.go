package autoplier

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const (
	defaultBNStabilizer = 1e-3
	defaultBNMomentum   = 0.99
)

func init() {
	var b BatchNorm
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBatchNorm)
}

// BatchNorm is a batch normalization layer for packed
// batches of fixed-length vectors.
//
// In training mode, each component is normalized with the
// mean and variance of the batch, and the moving
// statistics are updated as
//
//     moving = Momentum*moving + (1-Momentum)*batchStat
//
// In inference mode, the moving statistics are used.
type BatchNorm struct {
	// InputCount is the number of components to normalize.
	InputCount int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	MovingMean     anyvec.Vector
	MovingVariance anyvec.Vector

	// Momentum controls how quickly the moving statistics
	// follow the batch statistics.
	//
	// If it is 0, a default is used.
	Momentum float64

	// Stabilizer prevents numerical instability by adding a
	// small constant to variances to keep them from being 0.
	//
	// If it is 0, a default is used.
	Stabilizer float64

	Training bool
}

// DeserializeBatchNorm deserializes a BatchNorm.
// The deserialized layer is not in training mode.
func DeserializeBatchNorm(d []byte) (*BatchNorm, error) {
	var s, b, mean, variance *anyvecsave.S
	var momentum, stab serializer.Float64
	err := serializer.DeserializeAny(d, &s, &b, &mean, &variance, &momentum, &stab)
	if err != nil {
		return nil, essentials.AddCtx("deserialize BatchNorm", err)
	}
	return &BatchNorm{
		InputCount:     s.Vector.Len(),
		Scalers:        anydiff.NewVar(s.Vector),
		Biases:         anydiff.NewVar(b.Vector),
		MovingMean:     mean.Vector,
		MovingVariance: variance.Vector,
		Momentum:       float64(momentum),
		Stabilizer:     float64(stab),
	}, nil
}

// NewBatchNorm creates a BatchNorm with an input size.
//
// Scalers and the moving variance start at 1, while biases
// and the moving mean start at 0.
func NewBatchNorm(c anyvec.Creator, inCount int) *BatchNorm {
	return &BatchNorm{
		InputCount:     inCount,
		Scalers:        anydiff.NewVar(anyvec.Ones(c, inCount)),
		Biases:         anydiff.NewVar(c.MakeVector(inCount)),
		MovingMean:     c.MakeVector(inCount),
		MovingVariance: anyvec.Ones(c, inCount),
	}
}

// Apply applies the layer to a batch of inputs.
func (b *BatchNorm) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len() != batch*b.InputCount {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			batch*b.InputCount, in.Output().Len()))
	}
	if !b.Training {
		return b.applyMoving(in)
	}

	c := in.Output().Creator()
	batchScaler := c.MakeNumeric(1 / float64(batch))

	mean := anydiff.Scale(b.sumRows(in, batch), batchScaler)
	centered := anydiff.AddRepeated(in, anydiff.Scale(mean, c.MakeNumeric(-1)))

	return anydiff.Pool(centered, func(centered anydiff.Res) anydiff.Res {
		variance := anydiff.Scale(b.sumRows(anydiff.Square(centered), batch), batchScaler)
		b.updateMoving(mean.Output(), variance.Output())

		variance = anydiff.AddScalar(variance, c.MakeNumeric(b.stabilizer()))
		normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))
		return anydiff.ScaleAddRepeated(
			centered,
			anydiff.Mul(b.Scalers, normalizer),
			b.Biases,
		)
	})
}

// Parameters returns a slice containing the scales and
// biases, in that order.
func (b *BatchNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{b.Scalers, b.Biases}
}

// State returns the moving mean and variance.
//
// The vectors are the layer's own, so writing to them
// changes the layer.
func (b *BatchNorm) State() []anyvec.Vector {
	return []anyvec.Vector{b.MovingMean, b.MovingVariance}
}

// SetTraining switches the layer between batch statistics
// and moving statistics.
func (b *BatchNorm) SetTraining(training bool) {
	b.Training = training
}

// SerializerType returns the unique ID used to serialize
// a BatchNorm with the serializer package.
func (b *BatchNorm) SerializerType() string {
	return "github.com/dmontemayor/autoplier.BatchNorm"
}

// Serialize serializes the layer.
func (b *BatchNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: b.Scalers.Vector},
		&anyvecsave.S{Vector: b.Biases.Vector},
		&anyvecsave.S{Vector: b.MovingMean},
		&anyvecsave.S{Vector: b.MovingVariance},
		serializer.Float64(b.Momentum),
		serializer.Float64(b.Stabilizer),
	)
}

func (b *BatchNorm) applyMoving(in anydiff.Res) anydiff.Res {
	c := in.Output().Creator()
	normalizer := b.MovingVariance.Copy()
	normalizer.AddScalar(c.MakeNumeric(b.stabilizer()))
	anyvec.Pow(normalizer, c.MakeNumeric(-0.5))
	negMean := b.MovingMean.Copy()
	negMean.Scale(c.MakeNumeric(-1))

	scaler := anydiff.Mul(b.Scalers, anydiff.NewConst(normalizer))
	return anydiff.Pool(scaler, func(scaler anydiff.Res) anydiff.Res {
		return anydiff.ScaleAddRepeated(
			in,
			scaler,
			anydiff.Add(b.Biases, anydiff.Mul(anydiff.NewConst(negMean), scaler)),
		)
	})
}

func (b *BatchNorm) sumRows(in anydiff.Res, batch int) anydiff.Res {
	return anydiff.SumRows(&anydiff.Matrix{
		Data: in,
		Rows: batch,
		Cols: b.InputCount,
	})
}

func (b *BatchNorm) updateMoving(mean, variance anyvec.Vector) {
	momentum := b.momentum()
	c := mean.Creator()
	for _, pair := range [][2]anyvec.Vector{
		{b.MovingMean, mean},
		{b.MovingVariance, variance},
	} {
		moving, stat := pair[0], pair[1].Copy()
		moving.Scale(c.MakeNumeric(momentum))
		stat.Scale(c.MakeNumeric(1 - momentum))
		moving.Add(stat)
	}
}

func (b *BatchNorm) momentum() float64 {
	if b.Momentum == 0 {
		return defaultBNMomentum
	}
	return b.Momentum
}

func (b *BatchNorm) stabilizer() float64 {
	if b.Stabilizer == 0 {
		return defaultBNStabilizer
	} else {
		return b.Stabilizer
	}
}
