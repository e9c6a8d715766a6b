package autoplier

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// FitConfig configures Fit.
type FitConfig struct {
	// BatchSize is the number of samples per mini-batch.
	BatchSize int

	// MaxEpochs is the maximum number of passes over the
	// training rows.
	MaxEpochs int

	// Verbose is 0 for silence, 1 for a progress bar on
	// Progress, and 2 for one log line per epoch on Logger.
	Verbose int

	// ValFrac is the fraction of rows, taken from the end
	// of the input, which are held out for validation.
	// The first floor(n*(1-ValFrac)) rows are trained on.
	ValFrac float64

	// MaxGos limits the goroutines used to fetch batches.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int

	Callbacks []Callback

	// Logger receives per-epoch lines.
	// If it is nil, nothing is logged.
	Logger *zap.Logger

	// Progress receives the progress bar.
	// If it is nil, os.Stderr is used.
	Progress io.Writer
}

// DefaultFitConfig returns the default training setup.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		BatchSize: 50,
		MaxEpochs: 2000,
		Verbose:   2,
		ValFrac:   0.3,
	}
}

func (f *FitConfig) validate() error {
	switch {
	case f.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive (got %d)", f.BatchSize)
	case f.MaxEpochs < 0:
		return fmt.Errorf("epoch count must not be negative (got %d)", f.MaxEpochs)
	case f.Verbose < 0 || f.Verbose > 2:
		return fmt.Errorf("verbosity must be 0, 1, or 2 (got %d)", f.Verbose)
	case f.ValFrac < 0 || f.ValFrac >= 1:
		return fmt.Errorf("validation fraction must be in [0, 1) (got %v)", f.ValFrac)
	case f.MaxGos < 0:
		return fmt.Errorf("goroutine limit must not be negative (got %d)", f.MaxGos)
	}
	return nil
}

func (f *FitConfig) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func (f *FitConfig) progress() io.Writer {
	if f.Progress == nil {
		return os.Stderr
	}
	return f.Progress
}

// Fit trains the autoencoder to reconstruct the rows of x.
//
// Training runs until cfg.MaxEpochs epochs have finished,
// a callback asks to stop, or ctx is done.
// In the last case, the history so far is returned along
// with the context's error.
func (m *Model) Fit(ctx context.Context, x mat.Matrix, cfg FitConfig) (history *History,
	err error) {
	defer essentials.AddCtxTo("fit", &err)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	samples, err := m.samples(x)
	if err != nil {
		return nil, err
	}
	trainSamples, valSamples, err := splitValidation(samples, cfg.ValFrac)
	if err != nil {
		return nil, err
	}

	params := m.Parameters()
	m.Optimizer.Vars = params
	trainer := &Trainer{
		Encoder: m.Encoder,
		Decoder: m.Decoder,
		Cost:    m.Cost,
		Params:  params,
		MaxGos:  cfg.MaxGos,
	}
	evaluator := &Trainer{
		Encoder: m.Encoder,
		Decoder: m.Decoder,
		Cost:    m.Cost,
		MaxGos:  cfg.MaxGos,
	}

	history = &History{}
	callbacks := append([]Callback{history}, cfg.Callbacks...)
	for _, cb := range callbacks {
		cb.TrainBegin(m)
	}
	defer func() {
		m.SetTraining(false)
		for _, cb := range callbacks {
			cb.TrainEnd()
		}
	}()
	if cfg.MaxEpochs == 0 {
		return history, nil
	}

	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { close(done) })
	}
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	reporter := newReporter(&cfg, len(trainSamples))
	var epoch, pending int
	// The loss is weighted by batch size, while magz is a
	// plain mean over batches.
	var loss, magz weightedMean
	var evalErr error

	sgd := &anysgd.SGD{
		Fetcher:     trainer,
		Gradienter:  trainer,
		Transformer: m.Optimizer,
		Samples:     trainSamples,
		Rater:       anysgd.ConstRater(m.Params.LearningRate),
		BatchSize:   cfg.BatchSize,
	}
	sgd.StatusFunc = func(b anysgd.Batch) {
		if pending > 0 {
			loss.Add(trainer.LastCost, pending)
			magz.Add(trainer.LastMagnitude, 1)
			reporter.Add(pending)
		}
		if sgd.NumProcessed > 0 && sgd.NumProcessed%len(trainSamples) == 0 {
			logs := Logs{"loss": loss.Mean(), "magz": magz.Mean()}
			if len(valSamples) > 0 {
				m.SetTraining(false)
				valLoss, valMagz, err := evaluate(evaluator, valSamples, cfg.BatchSize)
				m.SetTraining(true)
				if err != nil {
					evalErr = err
					stop()
					return
				}
				logs["val_loss"] = valLoss
				logs["val_magz"] = valMagz
			}
			reporter.EpochEnd(epoch, logs)
			shouldStop := false
			for _, cb := range callbacks {
				if cb.EpochEnd(epoch, logs) {
					shouldStop = true
				}
			}
			epoch++
			if shouldStop || epoch == cfg.MaxEpochs {
				stop()
				return
			}
			loss, magz = weightedMean{}, weightedMean{}
			reporter.EpochBegin(epoch)
		}
		pending = b.(*anyff.Batch).Num
	}

	m.SetTraining(true)
	reporter.EpochBegin(0)
	if err := sgd.Run(done); err != nil {
		return history, err
	}
	if evalErr != nil {
		return history, evalErr
	}
	return history, ctx.Err()
}

// evaluate computes the sample-weighted mean cost and the
// per-batch mean latent magnitude of the samples.
func evaluate(t *Trainer, samples anyff.SliceSampleList, batchSize int) (cost,
	magnitude float64, err error) {
	var costs, mags weightedMean
	for start := 0; start < len(samples); start += batchSize {
		end := essentials.MinInt(len(samples), start+batchSize)
		batch, err := t.Fetch(samples[start:end])
		if err != nil {
			return 0, 0, essentials.AddCtx("validation", err)
		}
		c, mag := t.Evaluate(batch)
		costs.Add(c, end-start)
		mags.Add(mag, 1)
	}
	return costs.Mean(), mags.Mean(), nil
}

// splitValidation trains on the first floor(n*(1-frac))
// samples and holds out the rest.
//
// If frac is non-zero, both sides must be non-empty.
func splitValidation(s anyff.SliceSampleList, frac float64) (train,
	val anyff.SliceSampleList, err error) {
	if frac == 0 {
		return append(anyff.SliceSampleList{}, s...), nil, nil
	}
	split := int(math.Floor(float64(len(s)) * (1 - frac)))
	if split == 0 || split == len(s) {
		return nil, nil, fmt.Errorf("validation fraction %v of %d rows leaves "+
			"%d training and %d validation rows", frac, len(s), split, len(s)-split)
	}
	return append(anyff.SliceSampleList{}, s[:split]...), s[split:], nil
}

// weightedMean averages per-batch values, weighting each
// by the given count.
type weightedMean struct {
	sum   float64
	count int
}

func (w *weightedMean) Add(value float64, count int) {
	w.sum += value * float64(count)
	w.count += count
}

func (w *weightedMean) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}
