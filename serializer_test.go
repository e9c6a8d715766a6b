package autoplier

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestPReLUSerialize(t *testing.T) {
	layer := NewPReLU(anyvec64.DefaultCreator{}, 4, 0.05)
	anyvec.Rand(layer.Alpha.Vector, anyvec.Normal, nil)
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *PReLU
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	assertVectorsEqual(t, newLayer.Alpha.Vector, layer.Alpha.Vector)
}

func TestLeakyReLUSerialize(t *testing.T) {
	layer := &LeakyReLU{Slope: 0.17}
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *LeakyReLU
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(layer, newLayer) {
		t.Errorf("expected %v but got %v", layer, newLayer)
	}
}

func TestDropoutSerialize(t *testing.T) {
	layer := &Dropout{Training: true, Rate: 0.335}
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *Dropout
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if newLayer.Training {
		t.Error("deserialized dropout should not be training")
	}
	if newLayer.Rate != layer.Rate {
		t.Errorf("expected rate %f but got %f", layer.Rate, newLayer.Rate)
	}
}

func TestBatchNormSerialize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := NewBatchNorm(c, 3)
	layer.Momentum = 0.9
	for _, v := range []anyvec.Vector{layer.Scalers.Vector, layer.Biases.Vector,
		layer.MovingMean, layer.MovingVariance} {
		anyvec.Rand(v, anyvec.Uniform, nil)
	}
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *BatchNorm
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if newLayer.InputCount != 3 || newLayer.Momentum != 0.9 || newLayer.Stabilizer != 0 {
		t.Errorf("bad fields: %+v", newLayer)
	}
	assertVectorsEqual(t, newLayer.Scalers.Vector, layer.Scalers.Vector)
	assertVectorsEqual(t, newLayer.Biases.Vector, layer.Biases.Vector)
	assertVectorsEqual(t, newLayer.MovingMean, layer.MovingMean)
	assertVectorsEqual(t, newLayer.MovingVariance, layer.MovingVariance)
}

func TestModelSerialize(t *testing.T) {
	SetSeed(7)
	model, err := New(nil, Params{NumInputs: 6, NumComponents: 3, LeakySlope: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	x := randomMatrix(40, 6)
	cfg := DefaultFitConfig()
	cfg.MaxEpochs = 2
	cfg.Verbose = 0
	if _, err := model.Fit(context.Background(), x, cfg); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "model.bin")
	if err := model.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Params != model.Params {
		t.Errorf("expected params %+v but got %+v", model.Params, loaded.Params)
	}
	if loaded.FinalEncoder() == nil {
		t.Error("loaded model should have an encoder")
	}
	expected, actual := model.Weights(), loaded.Weights()
	if len(expected) != len(actual) {
		t.Fatalf("expected %d weight vectors but got %d", len(expected), len(actual))
	}
	for i := range expected {
		assertVectorsEqual(t, actual[i], expected[i])
	}

	expectedOpt, err := model.Optimizer.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	actualOpt, err := loaded.Optimizer.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(expectedOpt, actualOpt) {
		t.Error("optimizer state differs")
	}

	model.BuildEncoder()
	expectedLatent, err := model.Transform(x, rowLabels(40))
	if err != nil {
		t.Fatal(err)
	}
	actualLatent, err := loaded.Transform(x, rowLabels(40))
	if err != nil {
		t.Fatal(err)
	}
	assertMatricesClose(t, actualLatent.Values, expectedLatent.Values, 1e-12)
}

func TestModelSerializeNoDropout(t *testing.T) {
	model, err := New(nil, Params{NumInputs: 4, NumComponents: 2, NoDropout: true})
	if err != nil {
		t.Fatal(err)
	}
	data, err := model.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := DeserializeModel(data)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Params != model.Params {
		t.Errorf("expected params %+v but got %+v", model.Params, loaded.Params)
	}
}

func TestModelDeserializeShape(t *testing.T) {
	for _, mutate := range []func(p *Params){
		func(p *Params) { p.NumInputs++ },
		func(p *Params) { p.NumComponents++ },
	} {
		model, err := New(nil, Params{NumInputs: 4, NumComponents: 2})
		if err != nil {
			t.Fatal(err)
		}
		mutate(&model.Params)
		data, err := model.Serialize()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DeserializeModel(data); !errors.Is(err, ErrShape) {
			t.Errorf("params %+v: expected ErrShape but got %v", model.Params, err)
		}
	}
}

func assertVectorsEqual(t *testing.T, actual, expected anyvec.Vector) {
	t.Helper()
	c := expected.Creator()
	if !reflect.DeepEqual(c.Float64Slice(actual.Data()), c.Float64Slice(expected.Data())) {
		t.Errorf("expected %v but got %v", expected.Data(), actual.Data())
	}
}
