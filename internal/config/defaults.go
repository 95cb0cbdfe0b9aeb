package config

const (
	defaultRootPath        = "data/activitynet_captions"
	defaultModelPath       = "models"
	defaultMetaPath        = "videometa_train.json"
	defaultFramePath       = "frames"
	defaultAnnPath         = "train.json"
	defaultVocabPath       = "vocab.json"
	defaultCNNMethod       = "resnet"
	defaultNumLayers       = 5
	defaultFilters         = 16
	defaultRNNMethod       = "lstm"
	defaultLSTMStacks      = 3
	defaultLSTMMemory      = 512
	defaultEmbeddingSize   = 512
	defaultMaxSeqLen       = 30
	defaultImageSize       = 224
	defaultClipLength      = 16
	defaultMaxEpochs       = 20
	defaultBatchSize       = 64
	defaultWorkers         = 8
	defaultLearningRate    = 1e-2
	defaultMomentum        = 0.9
	defaultPatience        = 10
	defaultLogEvery        = 10
	defaultShards          = 1
	defaultSource          = "segments"
	defaultMode            = "train"
	defaultMinFreq         = 1
	defaultDecoder         = "auto"
	defaultNaming          = ""
	defaultMaxAttempts     = 100
	defaultSamplesPerVideo = 0
)

// Default returns a Config populated with the defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:        defaultRootPath,
			Models:      defaultModelPath,
			Meta:        defaultMetaPath,
			Frames:      defaultFramePath,
			Annotations: defaultAnnPath,
			Vocab:       defaultVocabPath,
		},
		Model: Model{
			CNNMethod:     defaultCNNMethod,
			NumLayers:     defaultNumLayers,
			Filters:       defaultFilters,
			RNNMethod:     defaultRNNMethod,
			LSTMStacks:    defaultLSTMStacks,
			LSTMMemory:    defaultLSTMMemory,
			EmbeddingSize: defaultEmbeddingSize,
			MaxSeqLen:     defaultMaxSeqLen,
			ImageSize:     defaultImageSize,
			ClipLength:    defaultClipLength,
		},
		Training: Training{
			MaxEpochs:    defaultMaxEpochs,
			BatchSize:    defaultBatchSize,
			Workers:      defaultWorkers,
			LearningRate: defaultLearningRate,
			Momentum:     defaultMomentum,
			Patience:     defaultPatience,
			LogEvery:     defaultLogEvery,
			Shards:       defaultShards,
		},
		Data: Data{
			Source:          defaultSource,
			Mode:            defaultMode,
			TokenLevel:      true,
			MinFreq:         defaultMinFreq,
			Decoder:         defaultDecoder,
			Naming:          defaultNaming,
			MaxAttempts:     defaultMaxAttempts,
			SamplesPerVideo: defaultSamplesPerVideo,
		},
	}
}
