package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmontemayor/autoplier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, name, text string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.Seed)
	assert.Equal(t, 50, cfg.Fit.BatchSize)
	assert.Equal(t, 2000, cfg.Fit.MaxEpochs)
	assert.Equal(t, 2, cfg.Fit.Verbose)
	assert.Equal(t, 0.3, cfg.Fit.ValFrac)
	assert.Equal(t, time.Duration(0), cfg.Fit.Timeout)
	assert.False(t, cfg.Fit.EarlyStopping.Enable)
	assert.Equal(t, "val_loss", cfg.Fit.EarlyStopping.Monitor)
	assert.Equal(t, "auto", cfg.Fit.EarlyStopping.Mode)
	assert.Equal(t, 100, cfg.Log.MaxSize)

	params := cfg.Model.Params(7)
	model, err := autoplier.New(nil, params)
	require.NoError(t, err)
	assert.Equal(t, autoplier.DefaultParams(7), model.Params)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
seed: 42
model:
  num_components: 16
  no_dropout: true
  learning_rate: 0.01
fit:
  batch_size: 32
  max_epochs: 10
  verbose: 0
  val_frac: 0.1
  max_gos: 2
  timeout: 90s
  early_stopping:
    enable: true
    patience: 3
    restore_best_weights: true
log:
  path: /tmp/autoplier.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(42), *cfg.Seed)
	assert.Equal(t, 16, cfg.Model.NumComponents)
	assert.True(t, cfg.Model.NoDropout)
	assert.Equal(t, 32, cfg.Fit.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Fit.Timeout)
	assert.Equal(t, "/tmp/autoplier.log", cfg.Log.Path)

	params := cfg.Model.Params(5)
	assert.Equal(t, 5, params.NumInputs)
	assert.Equal(t, 0.01, params.LearningRate)
	model, err := autoplier.New(nil, params)
	require.NoError(t, err)
	assert.Zero(t, model.Params.DropoutRate)

	fitCfg := cfg.Fit.FitConfig(zap.NewNop())
	assert.Equal(t, 32, fitCfg.BatchSize)
	assert.Equal(t, 10, fitCfg.MaxEpochs)
	assert.Equal(t, 0, fitCfg.Verbose)
	assert.Equal(t, 0.1, fitCfg.ValFrac)
	assert.Equal(t, 2, fitCfg.MaxGos)
	require.Len(t, fitCfg.Callbacks, 1)
	es, ok := fitCfg.Callbacks[0].(*autoplier.EarlyStopping)
	require.True(t, ok)
	assert.Equal(t, 3, es.Patience)
	assert.Equal(t, "val_loss", es.Monitor)
	assert.True(t, es.RestoreBestWeights)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[fit]
batch_size = 8
timeout = "1m30s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Fit.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Fit.Timeout)
	assert.Empty(t, cfg.Fit.FitConfig(nil).Callbacks)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("AUTOPLIER_SEED", "7")
	t.Setenv("AUTOPLIER_FIT_BATCH_SIZE", "64")
	t.Setenv("AUTOPLIER_FIT_TIMEOUT", "2h")
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(7), *cfg.Seed)
	assert.Equal(t, 64, cfg.Fit.BatchSize)
	assert.Equal(t, 2*time.Hour, cfg.Fit.Timeout)
}

func TestLoadInvalid(t *testing.T) {
	for name, text := range map[string]string{
		"batch.yaml":   "fit:\n  batch_size: 0\n",
		"verbose.yaml": "fit:\n  verbose: 3\n",
		"valfrac.yaml": "fit:\n  val_frac: 1.5\n",
		"dropout.yaml": "model:\n  dropout_rate: 1\n",
		"mode.yaml":    "fit:\n  early_stopping:\n    mode: sideways\n",
		"gos.yaml":     "fit:\n  max_gos: -1\n",
	} {
		_, err := Load(writeConfig(t, name, text))
		assert.Error(t, err, name)
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
