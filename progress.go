package autoplier

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// A reporter displays training progress.
type reporter interface {
	EpochBegin(epoch int)
	Add(samples int)
	EpochEnd(epoch int, logs Logs)
}

func newReporter(cfg *FitConfig, epochSize int) reporter {
	switch cfg.Verbose {
	case 1:
		return &barReporter{w: cfg.progress(), epochs: cfg.MaxEpochs, size: epochSize}
	case 2:
		return &logReporter{logger: cfg.logger(), epochs: cfg.MaxEpochs}
	default:
		return silentReporter{}
	}
}

type silentReporter struct{}

func (silentReporter) EpochBegin(epoch int)          {}
func (silentReporter) Add(samples int)               {}
func (silentReporter) EpochEnd(epoch int, logs Logs) {}

// barReporter draws one progress bar per epoch.
type barReporter struct {
	w      io.Writer
	epochs int
	size   int
	bar    *progressbar.ProgressBar
}

func (b *barReporter) EpochBegin(epoch int) {
	b.bar = progressbar.NewOptions(b.size,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d/%d", epoch+1, b.epochs)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true))
}

func (b *barReporter) Add(samples int) {
	b.bar.Add(samples)
}

func (b *barReporter) EpochEnd(epoch int, logs Logs) {
	b.bar.Finish()
	fmt.Fprintln(b.w, " -", formatLogs(logs))
}

// logReporter writes one structured line per epoch.
type logReporter struct {
	logger *zap.Logger
	epochs int
}

func (l *logReporter) EpochBegin(epoch int) {}
func (l *logReporter) Add(samples int)      {}

func (l *logReporter) EpochEnd(epoch int, logs Logs) {
	fields := []zap.Field{zap.Int("epoch", epoch+1), zap.Int("epochs", l.epochs)}
	for _, name := range logNames(logs) {
		fields = append(fields, zap.Float64(name, logs[name]))
	}
	l.logger.Info("epoch finished", fields...)
}

func formatLogs(logs Logs) string {
	names := logNames(logs)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %.4f", name, logs[name])
	}
	return strings.Join(parts, " - ")
}
