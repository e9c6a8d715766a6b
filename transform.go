package autoplier

import (
	"context"
	"fmt"

	"github.com/dmontemayor/autoplier/frame"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/mat"
)

// predictBatchSize is the number of rows evaluated at once
// during inference.
const predictBatchSize = 32

// Transform maps every row of x to its latent
// representation using the encoder bound by BuildEncoder.
//
// The resulting frame is labeled by index, which must have
// one entry per row of x. Columns are labeled "0" through
// "k-1".
func (m *Model) Transform(x mat.Matrix, index []string) (f *frame.Frame, err error) {
	defer essentials.AddCtxTo("transform", &err)
	if m.finalEncoder == nil {
		return nil, ErrEncoderNotBuilt
	}
	rows, _ := x.Dims()
	if len(index) != rows {
		return nil, fmt.Errorf("%w: %d index labels for %d rows", ErrShape, len(index), rows)
	}
	latent, err := m.predict(m.finalEncoder, x, m.Params.NumComponents)
	if err != nil {
		return nil, err
	}
	return frame.New(latent, index)
}

// FitTransform fits the model, builds the encoder, and
// transforms x.
func (m *Model) FitTransform(ctx context.Context, x mat.Matrix, index []string,
	cfg FitConfig) (*frame.Frame, *History, error) {
	history, err := m.Fit(ctx, x, cfg)
	if err != nil {
		return nil, history, err
	}
	m.BuildEncoder()
	f, err := m.Transform(x, index)
	return f, history, err
}

// Reconstruct runs x through the whole autoencoder in
// inference mode.
func (m *Model) Reconstruct(x mat.Matrix) (res *mat.Dense, err error) {
	defer essentials.AddCtxTo("reconstruct", &err)
	return m.predict(m.Net(), x, m.Params.NumInputs)
}

// predict applies net to x in inference mode, a fixed
// number of rows at a time.
func (m *Model) predict(net anynet.Layer, x mat.Matrix, outCount int) (*mat.Dense, error) {
	rows, err := m.checkWidth(x)
	if err != nil {
		return nil, err
	}
	m.SetTraining(false)
	c := m.creator()
	res := mat.NewDense(rows, outCount, nil)
	for start := 0; start < rows; start += predictBatchSize {
		end := essentials.MinInt(rows, start+predictBatchSize)
		in := anydiff.NewConst(rowsVector(c, x, start, end))
		out := net.Apply(in, end-start)
		data := c.Float64Slice(out.Output().Data())
		for i := start; i < end; i++ {
			res.SetRow(i, data[(i-start)*outCount:(i-start+1)*outCount])
		}
	}
	return res, nil
}

// samples converts the rows of x into autoencoder samples,
// whose inputs and outputs are identical.
func (m *Model) samples(x mat.Matrix) (anyff.SliceSampleList, error) {
	rows, err := m.checkWidth(x)
	if err != nil {
		return nil, err
	}
	c := m.creator()
	res := make(anyff.SliceSampleList, rows)
	for i := range res {
		vec := rowsVector(c, x, i, i+1)
		res[i] = &anyff.Sample{Input: vec, Output: vec}
	}
	return res, nil
}

func (m *Model) checkWidth(x mat.Matrix) (rows int, err error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return 0, fmt.Errorf("%w: no rows", ErrShape)
	}
	if cols != m.Params.NumInputs {
		return 0, fmt.Errorf("%w: expected %d columns but got %d", ErrShape,
			m.Params.NumInputs, cols)
	}
	return rows, nil
}

func (m *Model) creator() anyvec.Creator {
	return m.ULayer().Weights.Vector.Creator()
}

// rowsVector packs rows [start, end) of x into a vector.
func rowsVector(c anyvec.Creator, x mat.Matrix, start, end int) anyvec.Vector {
	_, cols := x.Dims()
	data := make([]float64, 0, (end-start)*cols)
	for i := start; i < end; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, x.At(i, j))
		}
	}
	return c.MakeVectorData(c.MakeNumericList(data))
}
