package autoplier

import (
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Trainable is implemented by layers which behave
// differently during training and inference.
type Trainable interface {
	SetTraining(training bool)
}

// Stateful is implemented by layers which carry state
// that is not learned through gradients, such as moving
// statistics.
type Stateful interface {
	State() []anyvec.Vector
}

// walkLayers calls f for every layer in l, descending into
// nested nets.
func walkLayers(l anynet.Layer, f func(l anynet.Layer)) {
	if net, ok := l.(anynet.Net); ok {
		for _, sub := range net {
			walkLayers(sub, f)
		}
		return
	}
	f(l)
}

func setTraining(l anynet.Layer, training bool) {
	walkLayers(l, func(l anynet.Layer) {
		if t, ok := l.(Trainable); ok {
			t.SetTraining(training)
		}
	})
}
