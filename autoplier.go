// Package autoplier implements the autoPLIER autoencoder
// on top of the anynet neural network framework.
//
// An autoPLIER model is a dense autoencoder whose encoder
// ("ulayer", batch normalization, PReLU, dropout) learns a
// sparse, non-negative latent representation, and whose
// decoder (dense, batch normalization, LeakyReLU, dropout)
// reconstructs the input from it.
// Training, inference, and gradients are delegated to
// anynet, anysgd, and anydiff.
package autoplier

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

var (
	// ErrEncoderNotBuilt is returned by Transform when
	// BuildEncoder has not been called.
	ErrEncoderNotBuilt = errors.New("encoder has not been built")

	// ErrShape indicates that a table did not have the
	// shape a model expects.
	ErrShape = errors.New("shape mismatch")
)

const (
	defaultNumComponents = 100
	defaultDropoutRate   = 0.09
	defaultRegVal        = 1.20e-3
	defaultAlphaInit     = 0.05
	defaultAlphaReg      = 0.01
	defaultLearningRate  = 0.001
)

// Params are the hyper-parameters of a Model.
//
// Except for NumInputs, a zero field means that a default
// is used.
type Params struct {
	// NumInputs is the number of features per sample.
	NumInputs int

	// NumComponents is the number of latent components.
	NumComponents int

	// DropoutRate is the probability of dropping a unit
	// after the encoder and after the decoder.
	DropoutRate float64

	// NoDropout disables both dropout layers, since a zero
	// DropoutRate selects the default.
	NoDropout bool

	// RegVal is the L1 penalty on both dense kernels.
	RegVal float64

	// AlphaInit is the initial value of every PReLU slope,
	// and AlphaReg is the L1 penalty on the slopes.
	AlphaInit float64
	AlphaReg  float64

	// LeakySlope is the negative slope of the decoder
	// activation.
	LeakySlope float64

	// LearningRate is the Adam step size.
	LearningRate float64
}

// DefaultParams returns the default parameters for a
// model with the given input width.
func DefaultParams(numInputs int) Params {
	return Params{NumInputs: numInputs}.withDefaults()
}

func (p Params) withDefaults() Params {
	if p.NumComponents == 0 {
		p.NumComponents = defaultNumComponents
	}
	if p.DropoutRate == 0 && !p.NoDropout {
		p.DropoutRate = defaultDropoutRate
	}
	if p.RegVal == 0 {
		p.RegVal = defaultRegVal
	}
	if p.AlphaInit == 0 {
		p.AlphaInit = defaultAlphaInit
	}
	if p.AlphaReg == 0 {
		p.AlphaReg = defaultAlphaReg
	}
	if p.LeakySlope == 0 {
		p.LeakySlope = defaultLeakySlope
	}
	if p.LearningRate == 0 {
		p.LearningRate = defaultLearningRate
	}
	return p
}

func (p Params) validate() error {
	switch {
	case p.NumInputs <= 0:
		return fmt.Errorf("input count must be positive (got %d)", p.NumInputs)
	case p.NumComponents <= 0:
		return fmt.Errorf("component count must be positive (got %d)", p.NumComponents)
	case p.DropoutRate < 0 || p.DropoutRate >= 1:
		return fmt.Errorf("dropout rate must be in [0, 1) (got %v)", p.DropoutRate)
	case p.NoDropout && p.DropoutRate != 0:
		return fmt.Errorf("dropout rate %v conflicts with NoDropout", p.DropoutRate)
	case p.RegVal < 0 || p.AlphaReg < 0:
		return errors.New("regularization strengths must not be negative")
	case p.LearningRate < 0:
		return fmt.Errorf("learning rate must not be negative (got %v)", p.LearningRate)
	}
	return nil
}

// A Model is an autoPLIER autoencoder.
type Model struct {
	Params  Params
	Encoder anynet.Net
	Decoder anynet.Net

	// Optimizer and Cost are the compiled training setup.
	Optimizer *anysgd.Adam
	Cost      anynet.Cost

	finalEncoder anynet.Net
}

// New builds and compiles a model.
//
// If c is nil, 64-bit vectors are used.
func New(c anyvec.Creator, p Params) (*Model, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return nil, essentials.AddCtx("new model", err)
	}
	if c == nil {
		c = anyvec64.DefaultCreator{}
	}
	gen := generator()
	m := &Model{
		Params: p,
		Encoder: anynet.Net{
			NewDense(c, p.NumInputs, p.NumComponents, gen),
			NewBatchNorm(c, p.NumComponents),
			NewPReLU(c, p.NumComponents, p.AlphaInit),
			&Dropout{Rate: p.DropoutRate},
		},
		Decoder: anynet.Net{
			NewDense(c, p.NumComponents, p.NumInputs, gen),
			NewBatchNorm(c, p.NumInputs),
			&LeakyReLU{Slope: p.LeakySlope},
			&Dropout{Rate: p.DropoutRate},
		},
	}
	m.compile()
	return m, nil
}

// DeserializeModel deserializes a Model.
//
// The encoder of the deserialized model is already built.
func DeserializeModel(d []byte) (*Model, error) {
	var enc, dec anynet.Net
	var params []float64
	var optData []byte
	if err := serializer.DeserializeAny(d, &enc, &dec, &params, &optData); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	if len(params) != 8 {
		return nil, fmt.Errorf("deserialize Model: expected 8 parameters but got %d",
			len(params))
	}
	m := &Model{
		Params: Params{
			NumInputs:     int(params[0]),
			NumComponents: int(params[1]),
			DropoutRate:   params[2],
			NoDropout:     params[2] == 0,
			RegVal:        params[3],
			AlphaInit:     params[4],
			AlphaReg:      params[5],
			LeakySlope:    params[6],
			LearningRate:  params[7],
		},
		Encoder: enc,
		Decoder: dec,
	}
	if m.ULayer() == nil || m.decoderDense() == nil || m.prelu() == nil {
		return nil, errors.New("deserialize Model: unexpected layer structure")
	}
	if err := m.checkShapes(); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	m.compile()
	if err := m.Optimizer.UnmarshalBinary(optData); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	m.BuildEncoder()
	return m, nil
}

// Load reads a model saved with Save.
func Load(path string) (*Model, error) {
	var m *Model
	if err := serializer.LoadAny(path, &m); err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	return m, nil
}

// Save writes the model, including its optimizer state,
// to a file.
func (m *Model) Save(path string) error {
	if err := serializer.SaveAny(path, m); err != nil {
		return essentials.AddCtx("save model", err)
	}
	return nil
}

// ULayer returns the first dense layer of the encoder,
// whose weights map features to latent components.
func (m *Model) ULayer() *anynet.FC {
	if len(m.Encoder) == 0 {
		return nil
	}
	fc, _ := m.Encoder[0].(*anynet.FC)
	return fc
}

// Net returns the full autoencoder, i.e. the encoder
// followed by the decoder.
func (m *Model) Net() anynet.Net {
	return anynet.Net{m.Encoder, m.Decoder}
}

// Parameters returns the learnable parameters of the
// encoder followed by those of the decoder.
func (m *Model) Parameters() []*anydiff.Var {
	return m.Net().Parameters()
}

// SetTraining switches every layer between training and
// inference behavior.
func (m *Model) SetTraining(training bool) {
	setTraining(m.Net(), training)
}

// BuildEncoder binds the trained encoder layers as a
// standalone inference model.
//
// The layers are shared with the autoencoder, not copied.
func (m *Model) BuildEncoder() {
	m.finalEncoder = append(anynet.Net{}, m.Encoder...)
}

// FinalEncoder returns the model bound by BuildEncoder, or
// nil if it has not been built.
func (m *Model) FinalEncoder() anynet.Net {
	return m.finalEncoder
}

// Weights returns copies of every parameter and every
// piece of layer state, e.g. moving statistics.
func (m *Model) Weights() []anyvec.Vector {
	var res []anyvec.Vector
	for _, v := range m.stateVectors() {
		res = append(res, v.Copy())
	}
	return res
}

// SetWeights restores weights returned by Weights.
func (m *Model) SetWeights(weights []anyvec.Vector) error {
	vecs := m.stateVectors()
	if len(vecs) != len(weights) {
		return fmt.Errorf("set weights: expected %d vectors but got %d",
			len(vecs), len(weights))
	}
	for i, v := range vecs {
		if v.Len() != weights[i].Len() {
			return fmt.Errorf("set weights: vector %d: expected length %d but got %d",
				i, v.Len(), weights[i].Len())
		}
	}
	for i, v := range vecs {
		v.Set(weights[i])
	}
	return nil
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/dmontemayor/autoplier.Model"
}

// Serialize serializes the model and its optimizer state.
func (m *Model) Serialize() ([]byte, error) {
	optData, err := m.Optimizer.MarshalBinary()
	if err != nil {
		return nil, essentials.AddCtx("serialize Model", err)
	}
	p := m.Params
	params := []float64{
		float64(p.NumInputs),
		float64(p.NumComponents),
		p.DropoutRate,
		p.RegVal,
		p.AlphaInit,
		p.AlphaReg,
		p.LeakySlope,
		p.LearningRate,
	}
	return serializer.SerializeAny(m.Encoder, m.Decoder, params, optData)
}

func (m *Model) compile() {
	params := m.Parameters()
	m.Optimizer = &anysgd.Adam{Vars: params}
	m.Cost = &L1Reg{
		Terms: []L1Term{
			{
				Penalty: m.Params.RegVal,
				Params:  []*anydiff.Var{m.ULayer().Weights, m.decoderDense().Weights},
			},
			{
				Penalty: m.Params.AlphaReg,
				Params:  []*anydiff.Var{m.prelu().Alpha},
			},
		},
		Wrapped: anynet.MSE{},
	}
}

// checkShapes verifies that the dense layers agree with
// m.Params.
func (m *Model) checkShapes() error {
	n, k := m.Params.NumInputs, m.Params.NumComponents
	u, d := m.ULayer(), m.decoderDense()
	switch {
	case u.InCount != n || u.OutCount != k:
		return fmt.Errorf("%w: encoder is %d->%d but parameters give %d->%d",
			ErrShape, u.InCount, u.OutCount, n, k)
	case d.InCount != k || d.OutCount != n:
		return fmt.Errorf("%w: decoder is %d->%d but parameters give %d->%d",
			ErrShape, d.InCount, d.OutCount, k, n)
	case m.prelu().Alpha.Vector.Len() != k:
		return fmt.Errorf("%w: expected %d PReLU slopes but got %d",
			ErrShape, k, m.prelu().Alpha.Vector.Len())
	}
	return nil
}

func (m *Model) decoderDense() *anynet.FC {
	if len(m.Decoder) == 0 {
		return nil
	}
	fc, _ := m.Decoder[0].(*anynet.FC)
	return fc
}

func (m *Model) prelu() *PReLU {
	for _, l := range m.Encoder {
		if p, ok := l.(*PReLU); ok {
			return p
		}
	}
	return nil
}

func (m *Model) stateVectors() []anyvec.Vector {
	var res []anyvec.Vector
	for _, p := range m.Parameters() {
		res = append(res, p.Vector)
	}
	walkLayers(m.Net(), func(l anynet.Layer) {
		if s, ok := l.(Stateful); ok {
			res = append(res, s.State()...)
		}
	})
	return res
}
