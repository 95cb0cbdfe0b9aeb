package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/unixpickle/vidcap/internal/config"
)

// bindConfigFlags registers one flag per configuration
// value, using the current values of c as defaults.
func bindConfigFlags(fs *pflag.FlagSet, c *config.Config) {
	fs.StringVar(&c.Paths.Root, "root-path", c.Paths.Root, "Dataset root directory")
	fs.StringVar(&c.Paths.Models, "model-path", c.Paths.Models, "Directory for checkpoints and run history")
	fs.StringVar(&c.Paths.Meta, "meta-path", c.Paths.Meta, "Video metadata file, relative to the root")
	fs.StringVar(&c.Paths.Frames, "frame-path", c.Paths.Frames, "Frame directory, relative to the root")
	fs.StringVar(&c.Paths.Annotations, "ann-path", c.Paths.Annotations, "Annotation file, relative to the root")
	fs.StringVar(&c.Paths.Vocab, "vocab-path", c.Paths.Vocab, "Vocabulary file, relative to the root")

	fs.StringVar(&c.Model.CNNMethod, "cnn-method", c.Model.CNNMethod, "Encoder type (resnet or plain)")
	fs.IntVar(&c.Model.NumLayers, "num-layers", c.Model.NumLayers, "Number of strided encoder stages")
	fs.IntVar(&c.Model.Filters, "filters", c.Model.Filters, "Filters in the first encoder stage")
	fs.StringVar(&c.Model.RNNMethod, "rnn-method", c.Model.RNNMethod, "Decoder type")
	fs.IntVar(&c.Model.LSTMStacks, "lstm-stacks", c.Model.LSTMStacks, "Number of stacked LSTMs")
	fs.IntVar(&c.Model.LSTMMemory, "lstm-memory", c.Model.LSTMMemory, "LSTM hidden size")
	fs.IntVar(&c.Model.EmbeddingSize, "embedding-size", c.Model.EmbeddingSize, "Clip feature and token embedding size")
	fs.IntVar(&c.Model.MaxSeqLen, "max-seqlen", c.Model.MaxSeqLen, "Maximum caption length in tokens")
	fs.IntVar(&c.Model.ImageSize, "imsize", c.Model.ImageSize, "Frame crop size")
	fs.IntVar(&c.Model.ClipLength, "clip-len", c.Model.ClipLength, "Frames per clip")

	fs.IntVar(&c.Training.StartEpoch, "start-from-ep", c.Training.StartEpoch, "Resume from this epoch's checkpoints")
	fs.IntVar(&c.Training.MaxEpochs, "max-epochs", c.Training.MaxEpochs, "Last epoch to train")
	fs.IntVar(&c.Training.BatchSize, "bs", c.Training.BatchSize, "Batch size")
	fs.IntVar(&c.Training.Workers, "n-cpu", c.Training.Workers, "Sample loading workers")
	fs.Float64Var(&c.Training.LearningRate, "lr", c.Training.LearningRate, "Initial learning rate")
	fs.Float64Var(&c.Training.Momentum, "momentum", c.Training.Momentum, "SGD momentum")
	fs.IntVar(&c.Training.Patience, "patience", c.Training.Patience, "Epochs without improvement before the learning rate is halved")
	fs.IntVar(&c.Training.LogEvery, "log-every", c.Training.LogEvery, "Iterations between progress logs")
	fs.IntVar(&c.Training.Shards, "shards", c.Training.Shards, "Sub-batches per gradient step")
	fs.Int64Var(&c.Training.Seed, "seed", c.Training.Seed, "Random seed (0 uses the clock)")

	fs.StringVar(&c.Data.Source, "source", c.Data.Source, "Dataset layout (segments or captions)")
	fs.StringVar(&c.Data.Mode, "mode", c.Data.Mode, "Dataset split (train, val, or test)")
	fs.BoolVar(&c.Data.TokenLevel, "token-level", c.Data.TokenLevel, "Use word tokens instead of characters")
	fs.IntVar(&c.Data.MinFreq, "min-freq", c.Data.MinFreq, "Minimum token count for the vocabulary")
	fs.StringVar(&c.Data.Decoder, "decoder", c.Data.Decoder, "Frame decoder (auto, native, or ffmpeg)")
	fs.StringVar(&c.Data.Naming, "naming", c.Data.Naming, "Frame file naming (image, plain, or a format)")
	fs.IntVar(&c.Data.MaxAttempts, "max-attempts", c.Data.MaxAttempts, "Clip assembly attempts per sample (0 for unlimited)")
	fs.IntVar(&c.Data.SamplesPerVideo, "samples-per-video", c.Data.SamplesPerVideo, "Segments considered per video (0 for all)")
}

// applyFlags copies every explicitly set configuration
// flag in changed into cfg.
func applyFlags(changed *pflag.FlagSet, cfg *config.Config) error {
	target := pflag.NewFlagSet("config", pflag.ContinueOnError)
	bindConfigFlags(target, cfg)
	var err error
	changed.Visit(func(f *pflag.Flag) {
		if err != nil || target.Lookup(f.Name) == nil {
			return
		}
		if setErr := target.Set(f.Name, f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, setErr)
		}
	})
	return err
}
