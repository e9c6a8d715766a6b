package main

import (
	"context"
	"os"

	"github.com/dmontemayor/autoplier"
	"github.com/dmontemayor/autoplier/config"
	"github.com/dmontemayor/autoplier/frame"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

var logger = zap.Must(zap.NewDevelopment())

var rootCommand = &cobra.Command{
	Use:   "autoplier",
	Short: "Train and apply autoPLIER autoencoders.",
}

var fitCommand = &cobra.Command{
	Use:   "fit",
	Short: "Train a model on a CSV table and save it.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := setup(cmd)
		inputPath, _ := cmd.Flags().GetString("input")
		modelPath, _ := cmd.Flags().GetString("model")
		latentPath, _ := cmd.Flags().GetString("latent")
		preview, _ := cmd.Flags().GetInt("preview")

		input := readFrame(inputPath)
		_, cols := input.Dims()
		model, err := autoplier.New(nil, conf.Model.Params(cols))
		if err != nil {
			logger.Fatal("failed to create model", zap.Error(err))
		}

		ctx, cancel := fitContext(conf.Fit.Timeout)
		defer cancel()
		fitConf := conf.Fit.FitConfig(logger)
		fitConf.Progress = os.Stderr
		logger.Info("start training",
			zap.Int("rows", len(input.Index)),
			zap.Int("columns", cols),
			zap.Int("components", model.Params.NumComponents))
		history, err := model.Fit(ctx, input.Values, fitConf)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Warn("training interrupted", zap.Error(err))
		default:
			logger.Fatal("failed to train model", zap.Error(err))
		}
		if len(history.Logs) > 0 {
			last := history.Logs[len(history.Logs)-1]
			logger.Info("training finished", zap.Int("epochs", len(history.Logs)),
				zap.Float64("loss", last["loss"]), zap.Float64("magz", last["magz"]))
		}

		model.BuildEncoder()
		if err := model.Save(modelPath); err != nil {
			logger.Fatal("failed to save model", zap.Error(err))
		}
		logger.Info("saved model", zap.String("path", modelPath))
		if latentPath != "" || preview > 0 {
			writeOutput(transform(model, input), latentPath, preview)
		}
	},
}

var transformCommand = &cobra.Command{
	Use:   "transform",
	Short: "Map a CSV table to latent components.",
	Run: func(cmd *cobra.Command, args []string) {
		setup(cmd)
		inputPath, _ := cmd.Flags().GetString("input")
		modelPath, _ := cmd.Flags().GetString("model")
		outputPath, _ := cmd.Flags().GetString("output")
		preview, _ := cmd.Flags().GetInt("preview")
		model := loadModel(modelPath)
		writeOutput(transform(model, readFrame(inputPath)), outputPath, preview)
	},
}

var reconstructCommand = &cobra.Command{
	Use:   "reconstruct",
	Short: "Run a CSV table through the whole autoencoder.",
	Run: func(cmd *cobra.Command, args []string) {
		setup(cmd)
		inputPath, _ := cmd.Flags().GetString("input")
		modelPath, _ := cmd.Flags().GetString("model")
		outputPath, _ := cmd.Flags().GetString("output")
		preview, _ := cmd.Flags().GetInt("preview")
		model := loadModel(modelPath)
		input := readFrame(inputPath)
		values, err := model.Reconstruct(input.Values)
		if err != nil {
			logger.Fatal("failed to reconstruct", zap.Error(err))
		}
		output, err := frame.NewLabeled(values, input.Index, input.Columns)
		if err != nil {
			logger.Fatal("failed to label reconstruction", zap.Error(err))
		}
		output.IndexName = input.IndexName
		writeOutput(output, outputPath, preview)
	},
}

func init() {
	flags := rootCommand.PersistentFlags()
	addLogFlags(flags)
	flags.Bool("debug", false, "use debug log mode")
	flags.StringP("config", "c", "", "configuration file path")
	flags.Int64("seed", 0, "seed for every random generator")

	fitCommand.Flags().StringP("input", "i", "", "input CSV table")
	fitCommand.Flags().StringP("model", "m", "model.bin", "output model path")
	fitCommand.Flags().String("latent", "", "output CSV table of latent components")
	fitCommand.Flags().Int("preview", 0, "number of latent rows to print")
	essentials.Must(fitCommand.MarkFlagRequired("input"))

	for _, cmd := range []*cobra.Command{transformCommand, reconstructCommand} {
		cmd.Flags().StringP("input", "i", "", "input CSV table")
		cmd.Flags().StringP("model", "m", "model.bin", "model path")
		cmd.Flags().StringP("output", "o", "", "output CSV table")
		cmd.Flags().Int("preview", 0, "number of output rows to print")
		essentials.Must(cmd.MarkFlagRequired("input"))
	}

	rootCommand.AddCommand(fitCommand, transformCommand, reconstructCommand)
}

// setup loads the configuration, builds the logger and
// seeds the random generators.
func setup(cmd *cobra.Command) *config.Config {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	conf, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	debug, _ := flags.GetBool("debug")
	logger = newLogger(flags, conf.Log, debug)
	if configPath != "" {
		logger.Info("load config", zap.String("config", configPath))
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		conf.Seed = &seed
	}
	if conf.Seed != nil {
		logger.Debug("set seed", zap.Int64("seed", *conf.Seed))
		autoplier.SetSeed(*conf.Seed)
	}
	return conf
}

func readFrame(path string) *frame.Frame {
	f, err := frame.ReadCSVFile(path)
	if err != nil {
		logger.Fatal("failed to read table", zap.String("path", path), zap.Error(err))
	}
	return f
}

func loadModel(path string) *autoplier.Model {
	model, err := autoplier.Load(path)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", path), zap.Error(err))
	}
	return model
}

func transform(model *autoplier.Model, input *frame.Frame) *frame.Frame {
	latent, err := model.Transform(input.Values, input.Index)
	if err != nil {
		logger.Fatal("failed to transform", zap.Error(err))
	}
	latent.IndexName = input.IndexName
	return latent
}

func writeOutput(f *frame.Frame, path string, preview int) {
	if path != "" {
		if err := f.WriteCSVFile(path); err != nil {
			logger.Fatal("failed to write table", zap.String("path", path), zap.Error(err))
		}
		logger.Info("wrote table", zap.String("path", path))
	}
	if preview > 0 {
		if err := f.Render(os.Stdout, preview); err != nil {
			logger.Fatal("failed to render table", zap.Error(err))
		}
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		logger.Fatal("failed to execute", zap.Error(err))
	}
}
