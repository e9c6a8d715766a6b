// Package config loads command-line settings for training
// and applying autoPLIER models.
package config

import (
	"strings"
	"time"

	"github.com/dmontemayor/autoplier"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment variables which override
// file settings, e.g. AUTOPLIER_FIT_BATCH_SIZE.
const EnvPrefix = "AUTOPLIER"

// Config is the complete set of settings.
type Config struct {
	// Seed, if set, seeds every random generator.
	Seed  *int64      `mapstructure:"seed"`
	Model ModelConfig `mapstructure:"model"`
	Fit   FitConfig   `mapstructure:"fit"`
	Log   LogConfig   `mapstructure:"log"`
}

// ModelConfig holds model hyper-parameters.
// Zero values select the model defaults.
type ModelConfig struct {
	NumComponents int     `mapstructure:"num_components" validate:"gte=0"`
	DropoutRate   float64 `mapstructure:"dropout_rate" validate:"gte=0,lt=1"`
	NoDropout     bool    `mapstructure:"no_dropout"`
	RegVal        float64 `mapstructure:"reg_val" validate:"gte=0"`
	AlphaInit     float64 `mapstructure:"alpha_init"`
	AlphaReg      float64 `mapstructure:"alpha_reg" validate:"gte=0"`
	LeakySlope    float64 `mapstructure:"leaky_slope" validate:"gte=0"`
	LearningRate  float64 `mapstructure:"learning_rate" validate:"gte=0"`
}

// FitConfig holds training settings.
type FitConfig struct {
	BatchSize int     `mapstructure:"batch_size" validate:"gt=0"`
	MaxEpochs int     `mapstructure:"max_epochs" validate:"gte=0"`
	Verbose   int     `mapstructure:"verbose" validate:"gte=0,lte=2"`
	ValFrac   float64 `mapstructure:"val_frac" validate:"gte=0,lt=1"`
	MaxGos    int     `mapstructure:"max_gos" validate:"gte=0"`

	// Timeout bounds the duration of training.
	// Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	EarlyStopping EarlyStoppingConfig `mapstructure:"early_stopping"`
}

// EarlyStoppingConfig configures an early stopping
// callback.
type EarlyStoppingConfig struct {
	Enable             bool    `mapstructure:"enable"`
	Monitor            string  `mapstructure:"monitor" validate:"required"`
	MinDelta           float64 `mapstructure:"min_delta" validate:"gte=0"`
	Patience           int     `mapstructure:"patience" validate:"gte=0"`
	Mode               string  `mapstructure:"mode" validate:"oneof=auto min max"`
	RestoreBestWeights bool    `mapstructure:"restore_best_weights"`
	StartFromEpoch     int     `mapstructure:"start_from_epoch" validate:"gte=0"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	fit := autoplier.DefaultFitConfig()
	v.SetDefault("model.num_components", 0)
	v.SetDefault("model.dropout_rate", 0.0)
	v.SetDefault("model.no_dropout", false)
	v.SetDefault("model.reg_val", 0.0)
	v.SetDefault("model.alpha_init", 0.0)
	v.SetDefault("model.alpha_reg", 0.0)
	v.SetDefault("model.leaky_slope", 0.0)
	v.SetDefault("model.learning_rate", 0.0)
	v.SetDefault("fit.batch_size", fit.BatchSize)
	v.SetDefault("fit.max_epochs", fit.MaxEpochs)
	v.SetDefault("fit.verbose", fit.Verbose)
	v.SetDefault("fit.val_frac", fit.ValFrac)
	v.SetDefault("fit.max_gos", fit.MaxGos)
	v.SetDefault("fit.timeout", time.Duration(0))
	v.SetDefault("fit.early_stopping.enable", false)
	v.SetDefault("fit.early_stopping.monitor", "val_loss")
	v.SetDefault("fit.early_stopping.min_delta", 0.0)
	v.SetDefault("fit.early_stopping.patience", 0)
	v.SetDefault("fit.early_stopping.mode", "auto")
	v.SetDefault("fit.early_stopping.restore_best_weights", false)
	v.SetDefault("fit.early_stopping.start_from_epoch", 0)
	v.SetDefault("log.path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 0)
	v.SetDefault("log.max_backups", 0)
}

// Load reads settings from a file, if path is non-empty,
// and from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("seed"); err != nil {
		return nil, errors.WithStack(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Params converts the model settings into model parameters
// for the given input width.
func (c *ModelConfig) Params(numInputs int) autoplier.Params {
	return autoplier.Params{
		NumInputs:     numInputs,
		NumComponents: c.NumComponents,
		DropoutRate:   c.DropoutRate,
		NoDropout:     c.NoDropout,
		RegVal:        c.RegVal,
		AlphaInit:     c.AlphaInit,
		AlphaReg:      c.AlphaReg,
		LeakySlope:    c.LeakySlope,
		LearningRate:  c.LearningRate,
	}
}

// FitConfig converts the training settings.
//
// The logger is used both for per-epoch lines and for
// early stopping messages.
func (c *FitConfig) FitConfig(logger *zap.Logger) autoplier.FitConfig {
	res := autoplier.FitConfig{
		BatchSize: c.BatchSize,
		MaxEpochs: c.MaxEpochs,
		Verbose:   c.Verbose,
		ValFrac:   c.ValFrac,
		MaxGos:    c.MaxGos,
		Logger:    logger,
	}
	if es := c.EarlyStopping; es.Enable {
		res.Callbacks = append(res.Callbacks, &autoplier.EarlyStopping{
			Monitor:            es.Monitor,
			MinDelta:           es.MinDelta,
			Patience:           es.Patience,
			Mode:               es.Mode,
			RestoreBestWeights: es.RestoreBestWeights,
			StartFromEpoch:     es.StartFromEpoch,
			Logger:             logger,
		})
	}
	return res
}
