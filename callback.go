package autoplier

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/unixpickle/anyvec"
	"go.uber.org/zap"
)

// Logs maps metric names, such as "loss" and "val_magz",
// to their values for one epoch.
type Logs map[string]float64

// A Callback observes training.
type Callback interface {
	// TrainBegin is called before the first epoch.
	TrainBegin(m *Model)

	// EpochEnd is called after every epoch with the
	// zero-based epoch index.
	// If it returns true, training stops.
	EpochEnd(epoch int, logs Logs) bool

	// TrainEnd is called once training is over, whether or
	// not it finished normally.
	TrainEnd()
}

// LambdaCallback is a Callback made of optional functions.
type LambdaCallback struct {
	OnTrainBegin func(m *Model)
	OnEpochEnd   func(epoch int, logs Logs) bool
	OnTrainEnd   func()
}

// TrainBegin calls l.OnTrainBegin if it is set.
func (l *LambdaCallback) TrainBegin(m *Model) {
	if l.OnTrainBegin != nil {
		l.OnTrainBegin(m)
	}
}

// EpochEnd calls l.OnEpochEnd if it is set.
func (l *LambdaCallback) EpochEnd(epoch int, logs Logs) bool {
	if l.OnEpochEnd != nil {
		return l.OnEpochEnd(epoch, logs)
	}
	return false
}

// TrainEnd calls l.OnTrainEnd if it is set.
func (l *LambdaCallback) TrainEnd() {
	if l.OnTrainEnd != nil {
		l.OnTrainEnd()
	}
}

// History records the logs of every epoch.
type History struct {
	Epochs []int
	Logs   []Logs
}

// TrainBegin resets the history.
func (h *History) TrainBegin(m *Model) {
	h.Epochs = nil
	h.Logs = nil
}

// EpochEnd records the logs.
func (h *History) EpochEnd(epoch int, logs Logs) bool {
	h.Epochs = append(h.Epochs, epoch)
	res := Logs{}
	for k, v := range logs {
		res[k] = v
	}
	h.Logs = append(h.Logs, res)
	return false
}

// TrainEnd does nothing.
func (h *History) TrainEnd() {
}

// Metric returns the per-epoch values of a metric.
// Epochs which lack the metric are skipped.
func (h *History) Metric(name string) []float64 {
	var res []float64
	for _, l := range h.Logs {
		if v, ok := l[name]; ok {
			res = append(res, v)
		}
	}
	return res
}

// EarlyStopping stops training when a monitored metric
// stops improving.
type EarlyStopping struct {
	// Monitor is the metric to watch.
	// If it is empty, "val_loss" is used.
	Monitor string

	// MinDelta is the smallest change that counts as an
	// improvement.
	MinDelta float64

	// Patience is the number of epochs without improvement
	// after which training stops.
	Patience int

	// Mode is "min", "max", or "auto".
	// In "auto" mode, metrics whose names contain "acc" or
	// "auc" are maximized and all others are minimized.
	Mode string

	// Baseline, if non-nil, is a value the metric must beat
	// before the patience counter is reset.
	Baseline *float64

	// RestoreBestWeights restores the weights from the best
	// epoch when training is stopped.
	RestoreBestWeights bool

	// StartFromEpoch is the number of epochs to wait before
	// monitoring begins.
	StartFromEpoch int

	// Logger receives warnings.
	// If it is nil, nothing is logged.
	Logger *zap.Logger

	// StoppedEpoch is the epoch at which training was
	// stopped, or 0 if it never was.
	StoppedEpoch int

	// BestEpoch and Best describe the best epoch so far.
	BestEpoch int
	Best      float64

	model       *Model
	wait        int
	bestWeights []anyvec.Vector
	warned      bool
}

// TrainBegin resets the state of the callback.
func (e *EarlyStopping) TrainBegin(m *Model) {
	e.model = m
	e.wait = 0
	e.StoppedEpoch = 0
	e.BestEpoch = 0
	e.bestWeights = nil
	e.warned = false
	if e.maximize() {
		e.Best = math.Inf(-1)
	} else {
		e.Best = math.Inf(1)
	}
}

// EpochEnd checks the monitored metric.
func (e *EarlyStopping) EpochEnd(epoch int, logs Logs) bool {
	current, ok := logs[e.monitor()]
	if !ok {
		if !e.warned && e.Logger != nil {
			e.Logger.Warn("early stopping conditioned on unavailable metric",
				zap.String("monitor", e.monitor()),
				zap.Strings("available", logNames(logs)))
		}
		e.warned = true
		return false
	}
	if epoch < e.StartFromEpoch {
		return false
	}
	if e.RestoreBestWeights && e.bestWeights == nil {
		e.bestWeights = e.model.Weights()
	}

	e.wait++
	if e.improved(current, e.Best) {
		e.Best = current
		e.BestEpoch = epoch
		if e.RestoreBestWeights {
			e.bestWeights = e.model.Weights()
		}
		if e.Baseline == nil || e.improved(current, *e.Baseline) {
			e.wait = 0
		}
		return false
	}

	if e.wait >= e.Patience && epoch > 0 {
		e.StoppedEpoch = epoch
		if e.RestoreBestWeights && e.bestWeights != nil {
			if err := e.model.SetWeights(e.bestWeights); err != nil {
				panic(err)
			}
			if e.Logger != nil {
				e.Logger.Info("restored weights from best epoch",
					zap.Int("epoch", e.BestEpoch+1))
			}
		}
		return true
	}
	return false
}

// TrainEnd logs the stopping epoch, if any.
func (e *EarlyStopping) TrainEnd() {
	if e.StoppedEpoch > 0 && e.Logger != nil {
		e.Logger.Info("early stopping", zap.Int("epoch", e.StoppedEpoch+1))
	}
	e.model = nil
}

func (e *EarlyStopping) monitor() string {
	if e.Monitor == "" {
		return "val_loss"
	}
	return e.Monitor
}

func (e *EarlyStopping) maximize() bool {
	switch e.Mode {
	case "max":
		return true
	case "min":
		return false
	default:
		name := strings.ToLower(e.monitor())
		return strings.Contains(name, "acc") || strings.Contains(name, "auc")
	}
}

func (e *EarlyStopping) improved(current, reference float64) bool {
	delta := math.Abs(e.MinDelta)
	if e.maximize() {
		return current-delta > reference
	}
	return current+delta < reference
}

func logNames(logs Logs) []string {
	res := lo.Keys(map[string]float64(logs))
	sort.Strings(res)
	return res
}
