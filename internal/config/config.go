package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/unixpickle/vidcap/frames"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultPath is the config file used when no path is
// given.
const DefaultPath = "vidcap.toml"

// Paths locates the dataset and the model directory.
//
// Meta, Frames, Annotations, and Vocab are relative to
// Root.
type Paths struct {
	Root        string `toml:"root_path"`
	Models      string `toml:"model_path"`
	Meta        string `toml:"meta_path"`
	Frames      string `toml:"frame_path"`
	Annotations string `toml:"ann_path"`
	Vocab       string `toml:"vocab_path"`
}

// Model describes the encoder and decoder architectures.
type Model struct {
	CNNMethod     string `toml:"cnn_method"`
	NumLayers     int    `toml:"num_layers"`
	Filters       int    `toml:"filters"`
	RNNMethod     string `toml:"rnn_method"`
	LSTMStacks    int    `toml:"lstm_stacks"`
	LSTMMemory    int    `toml:"lstm_memory"`
	EmbeddingSize int    `toml:"embedding_size"`
	MaxSeqLen     int    `toml:"max_seqlen"`
	ImageSize     int    `toml:"imsize"`
	ClipLength    int    `toml:"clip_len"`
}

// Training controls the optimization loop.
type Training struct {
	StartEpoch   int     `toml:"start_from_ep"`
	MaxEpochs    int     `toml:"max_epochs"`
	BatchSize    int     `toml:"bs"`
	Workers      int     `toml:"n_cpu"`
	LearningRate float64 `toml:"lr"`
	Momentum     float64 `toml:"momentum"`
	Patience     int     `toml:"patience"`
	LogEvery     int     `toml:"log_every"`
	Shards       int     `toml:"shards"`
	Seed         int64   `toml:"seed"`
}

// Data controls dataset loading and sampling.
type Data struct {
	// Source is "segments" to sample annotated segments
	// of every annotated video, or "captions" to use an id
	// list and metadata file for Mode.
	Source string `toml:"source"`
	Mode   string `toml:"mode"`

	TokenLevel      bool   `toml:"token_level"`
	MinFreq         int    `toml:"min_freq"`
	Decoder         string `toml:"decoder"`
	Naming          string `toml:"naming"`
	MaxAttempts     int    `toml:"max_attempts"`
	SamplesPerVideo int    `toml:"samples_per_video"`
}

// Logging configures the logger.
type Logging struct {
	Verbose bool `toml:"verbose"`
}

// Config is the full vidcap configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Model    Model    `toml:"model"`
	Training Training `toml:"training"`
	Data     Data     `toml:"data"`
	Logging  Logging  `toml:"logging"`
}

// Load reads and validates a configuration file.
//
// A missing file is not an error; the defaults are used
// and exists is false.
func Load(path string) (cfg *Config, exists bool, err error) {
	c := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("read config: %w", err)
		}
	} else {
		exists = true
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, false, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.normalize(); err != nil {
		return nil, false, err
	}
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	return &c, exists, nil
}

// CreateSample writes a commented sample configuration.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// ResolvePath joins a dataset-relative path with the root.
// Absolute paths are returned unchanged.
func (c *Config) ResolvePath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.Root, name)
}

// HistoryPath is the run history database inside the model
// directory.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.Models, "history.db")
}

// FrameNaming returns the naming scheme of frame files.
// An empty name selects the scheme of the data source.
func (c *Config) FrameNaming() (frames.Naming, error) {
	if c.Data.Naming == "" && c.Data.Source == "captions" {
		return frames.PlainNaming, nil
	}
	return frames.ParseNaming(c.Data.Naming)
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.Root, err = expandPath(c.Paths.Root); err != nil {
		return fmt.Errorf("paths.root_path: %w", err)
	}
	if c.Paths.Models, err = expandPath(c.Paths.Models); err != nil {
		return fmt.Errorf("paths.model_path: %w", err)
	}
	c.Model.CNNMethod = strings.ToLower(strings.TrimSpace(c.Model.CNNMethod))
	c.Model.RNNMethod = strings.ToLower(strings.TrimSpace(c.Model.RNNMethod))
	c.Data.Source = strings.ToLower(strings.TrimSpace(c.Data.Source))
	c.Data.Mode = strings.ToLower(strings.TrimSpace(c.Data.Mode))
	c.Data.Decoder = strings.ToLower(strings.TrimSpace(c.Data.Decoder))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}
