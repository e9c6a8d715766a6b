package autoplier

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultLeakySlope = 0.3

func init() {
	var p PReLU
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePReLU)
	var l LeakyReLU
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLeakyReLU)
}

// PReLU is a parametric rectified linear unit.
//
// For every component x[i] of an input vector, it computes
//
//     x[i]           if x[i] > 0
//     alpha[i]*x[i]  otherwise
//
// The slopes in alpha are learnable, one per component.
type PReLU struct {
	Alpha *anydiff.Var
}

// DeserializePReLU deserializes a PReLU.
func DeserializePReLU(d []byte) (*PReLU, error) {
	var alpha *anyvecsave.S
	if err := serializer.DeserializeAny(d, &alpha); err != nil {
		return nil, essentials.AddCtx("deserialize PReLU", err)
	}
	return &PReLU{Alpha: anydiff.NewVar(alpha.Vector)}, nil
}

// NewPReLU creates a PReLU for inCount components with
// every slope initialized to alpha.
func NewPReLU(c anyvec.Creator, inCount int, alpha float64) *PReLU {
	vec := c.MakeVector(inCount)
	vec.AddScalar(c.MakeNumeric(alpha))
	return &PReLU{Alpha: anydiff.NewVar(vec)}
}

// Apply applies the activation to a batch.
func (p *PReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	if in.Output().Len() != n*p.Alpha.Vector.Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			n*p.Alpha.Vector.Len(), in.Output().Len()))
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		return anydiff.Add(
			anydiff.ClipPos(in),
			anydiff.ScaleRepeated(clipNeg(in), p.Alpha),
		)
	})
}

// Parameters returns a slice containing the slopes.
func (p *PReLU) Parameters() []*anydiff.Var {
	return []*anydiff.Var{p.Alpha}
}

// SerializerType returns the unique ID used to serialize
// a PReLU with the serializer package.
func (p *PReLU) SerializerType() string {
	return "github.com/dmontemayor/autoplier.PReLU"
}

// Serialize serializes the PReLU.
func (p *PReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(&anyvecsave.S{Vector: p.Alpha.Vector})
}

// LeakyReLU is a rectified linear unit with a fixed slope
// for negative inputs.
//
// If Slope is 0, a default of 0.3 is used.
type LeakyReLU struct {
	Slope float64
}

// DeserializeLeakyReLU deserializes a LeakyReLU.
func DeserializeLeakyReLU(d []byte) (*LeakyReLU, error) {
	var res LeakyReLU
	if err := serializer.DeserializeAny(d, &res.Slope); err != nil {
		return nil, essentials.AddCtx("deserialize LeakyReLU", err)
	}
	return &res, nil
}

// Apply applies the activation function.
func (l *LeakyReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	slope := l.Slope
	if slope == 0 {
		slope = defaultLeakySlope
	}
	c := in.Output().Creator()
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		return anydiff.Add(
			anydiff.ClipPos(in),
			anydiff.Scale(clipNeg(in), c.MakeNumeric(slope)),
		)
	})
}

// SerializerType returns the unique ID used to serialize
// a LeakyReLU with the serializer package.
func (l *LeakyReLU) SerializerType() string {
	return "github.com/dmontemayor/autoplier.LeakyReLU"
}

// Serialize serializes the LeakyReLU.
func (l *LeakyReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(l.Slope)
}

func clipNeg(vec anydiff.Res) anydiff.Res {
	c := vec.Output().Creator()
	return anydiff.Scale(
		anydiff.ClipPos(anydiff.Scale(vec, c.MakeNumeric(-1))),
		c.MakeNumeric(-1),
	)
}
