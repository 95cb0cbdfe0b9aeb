package config

import (
	"errors"
	"fmt"

	"github.com/unixpickle/vidcap"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	return c.validateData()
}

func (c *Config) validatePaths() error {
	if c.Paths.Root == "" {
		return errors.New("paths.root_path must be set")
	}
	if c.Paths.Models == "" {
		return errors.New("paths.model_path must be set")
	}
	if c.Paths.Vocab == "" {
		return errors.New("paths.vocab_path must be set")
	}
	return nil
}

func (c *Config) validateModel() error {
	m := c.Model
	switch m.CNNMethod {
	case vidcap.MethodResNet, vidcap.MethodPlain:
	default:
		return fmt.Errorf("model.cnn_method must be %q or %q (got %q)",
			vidcap.MethodResNet, vidcap.MethodPlain, m.CNNMethod)
	}
	if m.RNNMethod != vidcap.MethodLSTM {
		return fmt.Errorf("model.rnn_method must be %q (got %q)", vidcap.MethodLSTM, m.RNNMethod)
	}
	positive := []struct {
		name  string
		value int
	}{
		{"model.num_layers", m.NumLayers},
		{"model.filters", m.Filters},
		{"model.lstm_stacks", m.LSTMStacks},
		{"model.lstm_memory", m.LSTMMemory},
		{"model.embedding_size", m.EmbeddingSize},
		{"model.max_seqlen", m.MaxSeqLen},
		{"model.imsize", m.ImageSize},
		{"model.clip_len", m.ClipLength},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", p.name, p.value)
		}
	}
	size := m.ImageSize
	for i := 0; i < m.NumLayers; i++ {
		size = (size-3)/2 + 1
		if size < 1 {
			return fmt.Errorf("model.imsize %d is too small for %d layers", m.ImageSize, m.NumLayers)
		}
	}
	return nil
}

func (c *Config) validateTraining() error {
	t := c.Training
	if t.StartEpoch < 0 {
		return fmt.Errorf("training.start_from_ep must not be negative (got %d)", t.StartEpoch)
	}
	if t.MaxEpochs <= 0 {
		return fmt.Errorf("training.max_epochs must be positive (got %d)", t.MaxEpochs)
	}
	if t.BatchSize <= 0 {
		return fmt.Errorf("training.bs must be positive (got %d)", t.BatchSize)
	}
	if t.Workers <= 0 {
		return fmt.Errorf("training.n_cpu must be positive (got %d)", t.Workers)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("training.lr must be positive (got %g)", t.LearningRate)
	}
	if t.Momentum < 0 || t.Momentum >= 1 {
		return fmt.Errorf("training.momentum must be in [0, 1) (got %g)", t.Momentum)
	}
	if t.Patience < 0 {
		return fmt.Errorf("training.patience must not be negative (got %d)", t.Patience)
	}
	if t.LogEvery <= 0 {
		return fmt.Errorf("training.log_every must be positive (got %d)", t.LogEvery)
	}
	if t.Shards <= 0 || t.Shards > t.BatchSize {
		return fmt.Errorf("training.shards must be between 1 and bs (got %d)", t.Shards)
	}
	return nil
}

func (c *Config) validateData() error {
	d := c.Data
	switch d.Source {
	case "segments", "captions":
	default:
		return fmt.Errorf("data.source must be \"segments\" or \"captions\" (got %q)", d.Source)
	}
	switch d.Mode {
	case "train", "val", "test":
	default:
		return fmt.Errorf("data.mode must be one of train, val, test (got %q)", d.Mode)
	}
	if d.MinFreq < 1 {
		return fmt.Errorf("data.min_freq must be at least 1 (got %d)", d.MinFreq)
	}
	switch d.Decoder {
	case "auto", "native", "ffmpeg":
	default:
		return fmt.Errorf("data.decoder must be one of auto, native, ffmpeg (got %q)", d.Decoder)
	}
	if _, err := c.FrameNaming(); err != nil {
		return fmt.Errorf("data.naming: %w", err)
	}
	if d.MaxAttempts < 0 {
		return fmt.Errorf("data.max_attempts must not be negative (got %d)", d.MaxAttempts)
	}
	if d.SamplesPerVideo < 0 {
		return fmt.Errorf("data.samples_per_video must not be negative (got %d)", d.SamplesPerVideo)
	}
	return nil
}
