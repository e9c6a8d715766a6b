package main

import (
	"os"

	"github.com/dmontemayor/autoplier/config"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func addLogFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// newLogger builds the command logger.
// Flags take precedence over the config file.
func newLogger(flagSet *pflag.FlagSet, cfg config.LogConfig, debug bool) *zap.Logger {
	var (
		encoder zapcore.Encoder
		level   zapcore.LevelEnabler
	)
	timeEncoder := zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	if debug {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = timeEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
		level = zap.DebugLevel
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = timeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		level = zap.InfoLevel
	}

	if flagSet.Changed("log-path") {
		cfg.Path, _ = flagSet.GetString("log-path")
	}
	if flagSet.Changed("log-max-size") || cfg.MaxSize == 0 {
		cfg.MaxSize, _ = flagSet.GetInt("log-max-size")
	}
	if flagSet.Changed("log-max-age") {
		cfg.MaxAge, _ = flagSet.GetInt("log-max-age")
	}
	if flagSet.Changed("log-max-backups") {
		cfg.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.Path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}))
	}
	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(writers...), level)
	return zap.New(core)
}
