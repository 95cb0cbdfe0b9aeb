package main

import (
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"go.uber.org/zap"

	"github.com/unixpickle/vidcap"
	"github.com/unixpickle/vidcap/checkpoint"
	"github.com/unixpickle/vidcap/dataset"
	"github.com/unixpickle/vidcap/frames"
	"github.com/unixpickle/vidcap/internal/config"
	"github.com/unixpickle/vidcap/train"
	"github.com/unixpickle/vidcap/transform"
	"github.com/unixpickle/vidcap/vocab"
)

// device is the creator all parameters are allocated on.
func device() anyvec.Creator {
	return anyvec32.CurrentCreator()
}

func loadVocab(cfg *config.Config, logger *zap.SugaredLogger) (*vocab.Vocab, error) {
	vocabPath := cfg.ResolvePath(cfg.Paths.Vocab)
	corpusPath := cfg.ResolvePath(cfg.Paths.Annotations)
	v, built, err := vocab.LoadOrBuild(vocabPath, corpusPath, cfg.Data.TokenLevel, cfg.Data.MinFreq)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	if built {
		logger.Infow("built vocabulary", "corpus", corpusPath, "path", vocabPath, "tokens", v.Len())
	} else {
		logger.Infow("loaded vocabulary", "path", vocabPath, "tokens", v.Len())
	}
	return v, nil
}

// loadDataset loads the configured dataset.
//
// When training, clips are cropped at a random corner of
// a random window; otherwise they are center cropped.
func loadDataset(cfg *config.Config, logger *zap.SugaredLogger, training bool) (*dataset.Dataset, error) {
	naming, err := cfg.FrameNaming()
	if err != nil {
		return nil, err
	}
	loader, err := frames.NewLoader(cfg.Data.Decoder, naming, logger)
	if err != nil {
		return nil, err
	}
	logger.Infow("selected frame decoder", "decoder", loader.Decoder.Name(), "naming", string(naming))

	size, length := cfg.Model.ImageSize, cfg.Model.ClipLength
	spatial := &transform.Compose{
		Ops: []transform.ImageOp{
			&transform.Scale{Size: size},
			&transform.CornerCrop{Size: size, Corner: transform.Center, Random: training},
		},
	}
	var temporal transform.Temporal = &transform.TemporalCenterCrop{Size: length}
	if training {
		temporal = transform.TemporalCompose{
			&transform.TemporalRandomCrop{Size: length},
			&transform.LoopPadding{Size: length},
		}
	}

	opts := dataset.Options{
		RootPath:        cfg.Paths.Root,
		FramePath:       cfg.Paths.Frames,
		AnnPath:         cfg.Paths.Annotations,
		Frames:          loader,
		SamplesPerVideo: cfg.Data.SamplesPerVideo,
		SampleDuration:  length,
		MaxAttempts:     cfg.Data.MaxAttempts,
		Temporal:        temporal,
		Spatial:         spatial,
		Logger:          logger,
		Seed:            cfg.Training.Seed,
	}
	switch cfg.Data.Source {
	case "captions":
		return dataset.LoadCaptions(&dataset.CaptionsOptions{
			Options:  opts,
			Mode:     cfg.Data.Mode,
			MetaPath: cfg.Paths.Meta,
		})
	default:
		return dataset.Load(&opts)
	}
}

// withSegments drops the videos that Get cannot sample,
// logging each one.
func withSegments(d *dataset.Dataset, logger *zap.SugaredLogger) *dataset.Dataset {
	return d.Filter(func(rec *dataset.VideoRecord) bool {
		if rec.NumSegments(d.SamplesPerVideo) > 0 {
			return true
		}
		logger.Warnw("skipping video without segments", "video", rec.ID,
			"annotated", len(rec.Sentences))
		return false
	})
}

func buildModels(cfg *config.Config, c anyvec.Creator, v *vocab.Vocab) (*vidcap.Encoder,
	*vidcap.Decoder, error) {
	enc, err := vidcap.NewEncoder(c, vidcap.EncoderConfig{
		Method:    cfg.Model.CNNMethod,
		Channels:  3,
		Frames:    cfg.Model.ClipLength,
		Size:      cfg.Model.ImageSize,
		Layers:    cfg.Model.NumLayers,
		Filters:   cfg.Model.Filters,
		EmbedSize: cfg.Model.EmbeddingSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create encoder: %w", err)
	}
	dec, err := vidcap.NewDecoder(c, vidcap.DecoderConfig{
		Method:      cfg.Model.RNNMethod,
		FeatureSize: cfg.Model.EmbeddingSize,
		EmbedSize:   cfg.Model.EmbeddingSize,
		HiddenSize:  cfg.Model.LSTMMemory,
		VocabSize:   v.Len(),
		Stacks:      cfg.Model.LSTMStacks,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create decoder: %w", err)
	}
	return enc, dec, nil
}

func trainConfig(cfg *config.Config) train.Config {
	return train.Config{
		ModelRoot:    cfg.Paths.Models,
		CNNMethod:    cfg.Model.CNNMethod,
		NumLayers:    cfg.Model.NumLayers,
		RNNMethod:    cfg.Model.RNNMethod,
		LSTMStacks:   cfg.Model.LSTMStacks,
		BatchSize:    cfg.Training.BatchSize,
		ImageSize:    cfg.Model.ImageSize,
		ClipLength:   cfg.Model.ClipLength,
		StartEpoch:   cfg.Training.StartEpoch,
		MaxEpochs:    cfg.Training.MaxEpochs,
		LearningRate: cfg.Training.LearningRate,
		Momentum:     cfg.Training.Momentum,
		Patience:     cfg.Training.Patience,
		LogEvery:     cfg.Training.LogEvery,
		Seed:         cfg.Training.Seed,
	}
}

// checkpointLayouts returns the encoder and decoder
// checkpoint layouts for the configuration.
func checkpointLayouts(cfg *config.Config) (enc, dec *checkpoint.Layout) {
	o := &train.Orchestrator{Config: trainConfig(cfg)}
	return o.EncoderLayout(), o.DecoderLayout()
}
