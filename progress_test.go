package autoplier

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFitLogLines(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	model := testModel(t)
	cfg := testFitConfig(3)
	cfg.Verbose = 2
	cfg.Logger = zap.New(core)
	history, err := model.Fit(context.Background(), randomMatrix(20, 5), cfg)
	if err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("epoch finished").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log lines but got %d", len(entries))
	}
	for i, entry := range entries {
		fields := entry.ContextMap()
		if fields["epoch"] != int64(i+1) || fields["epochs"] != int64(3) {
			t.Errorf("line %d: bad epoch fields %v", i, fields)
		}
		for _, name := range []string{"loss", "magz", "val_loss", "val_magz"} {
			if fields[name] != history.Logs[i][name] {
				t.Errorf("line %d: expected %s=%v but got %v", i, name,
					history.Logs[i][name], fields[name])
			}
		}
	}
}

func TestFitProgressBar(t *testing.T) {
	var buf bytes.Buffer
	core, logs := observer.New(zap.InfoLevel)
	model := testModel(t)
	cfg := testFitConfig(2)
	cfg.Verbose = 1
	cfg.Progress = &buf
	cfg.Logger = zap.New(core)
	if _, err := model.Fit(context.Background(), randomMatrix(20, 5), cfg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, s := range []string{"Epoch 1/2", "Epoch 2/2", "loss: ", "val_magz: "} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q: %q", s, out)
		}
	}
	if n := strings.Count(out, " - loss: "); n != 2 {
		t.Errorf("expected 2 summary lines but got %d", n)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log lines: %d", logs.Len())
	}
}

func TestFitSilent(t *testing.T) {
	var buf bytes.Buffer
	core, logs := observer.New(zap.DebugLevel)
	model := testModel(t)
	cfg := testFitConfig(2)
	cfg.Progress = &buf
	cfg.Logger = zap.New(core)
	if _, err := model.Fit(context.Background(), randomMatrix(20, 5), cfg); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 || logs.Len() != 0 {
		t.Errorf("expected no output but got %q and %d log lines", buf.String(), logs.Len())
	}
}
