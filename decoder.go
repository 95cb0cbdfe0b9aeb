package vidcap

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
)

// DecoderConfig describes the shape of a Decoder.
type DecoderConfig struct {
	Method string

	FeatureSize int
	EmbedSize   int
	HiddenSize  int
	VocabSize   int

	// Stacks is the number of stacked LSTMs.
	Stacks int
}

// A Decoder is a recurrent language model conditioned on
// a clip's feature vector.
//
// At every timestep, the input is the feature vector
// concatenated with an embedding of the previous token.
// The output is a log-probability distribution over the
// vocabulary.
type Decoder struct {
	Config DecoderConfig
	Embed  *anynet.FC
	Block  anyrnn.Stack
}

// NewDecoder creates a randomly initialized Decoder.
func NewDecoder(c anyvec.Creator, cfg DecoderConfig) (*Decoder, error) {
	if err := checkMethod("rnn", cfg.Method, MethodLSTM); err != nil {
		return nil, err
	}
	if cfg.Stacks < 1 || cfg.VocabSize < 1 {
		return nil, errors.New("decoder needs at least one stack and one token")
	}
	var block anyrnn.Stack
	inSize := cfg.FeatureSize + cfg.EmbedSize
	for i := 0; i < cfg.Stacks; i++ {
		block = append(block, anyrnn.NewLSTM(c, inSize, cfg.HiddenSize))
		inSize = cfg.HiddenSize
	}
	block = append(block, &anyrnn.LayerBlock{
		Layer: anynet.Net{
			anynet.NewFC(c, cfg.HiddenSize, cfg.VocabSize),
			anynet.LogSoftmax,
		},
	})
	return &Decoder{
		Config: cfg,
		Embed:  anynet.NewFC(c, cfg.VocabSize, cfg.EmbedSize),
		Block:  block,
	}, nil
}

// Parameters returns the learnable parameters of the
// decoder, in a fixed order.
func (d *Decoder) Parameters() []*anydiff.Var {
	res := d.Embed.Parameters()
	for _, b := range d.Block {
		res = append(res, allParameters(b)...)
	}
	return res
}

// Apply runs the decoder on a batch of captions.
//
// The features contain one vector per caption.
// Captions must be sorted by descending length, since
// the features of the present captions at each timestep
// are taken as a prefix of the feature batch.
// Only the first lengths[i] tokens of captions[i] are
// used.
func (d *Decoder) Apply(features anydiff.Res, captions [][]int, lengths []int) anyseq.Seq {
	if features.Output().Len() != len(captions)*d.Config.FeatureSize {
		panic("feature batch does not match caption batch")
	}
	for i := 1; i < len(lengths); i++ {
		if lengths[i] > lengths[i-1] {
			panic("captions must be sorted by descending length")
		}
	}
	c := features.Output().Creator()
	tokens := anyseq.ConstSeqList(c, d.oneHots(c, captions, lengths))
	inputs := anyseq.Map(tokens, func(v anydiff.Res, n int) anydiff.Res {
		feats := anydiff.Slice(features, 0, n*d.Config.FeatureSize)
		return anynet.ConcatMixer{}.Mix(feats, d.Embed.Apply(v, n), n)
	})
	return anyrnn.Map(inputs, d.Block)
}

// Greedy decodes a caption for a single feature vector by
// picking the most likely token at every step.
//
// Decoding begins with the start token and stops when
// the end token is produced or maxLen tokens have been
// emitted.
// The result excludes the start and end tokens.
func (d *Decoder) Greedy(feature anyvec.Vector, start, end, maxLen int) []int {
	c := feature.Creator()
	var res []int
	state := d.Block.Start(1)
	token := start
	for len(res) < maxLen {
		emb := d.Embed.Apply(anydiff.NewConst(d.oneHot(c, token)), 1)
		in := anynet.ConcatMixer{}.Mix(anydiff.NewConst(feature), emb, 1)
		out := d.Block.Step(state, in.Output())
		state = out.State()
		token = anyvec.MaxIndex(out.Output())
		if token == end {
			break
		}
		res = append(res, token)
	}
	return res
}

func (d *Decoder) oneHots(c anyvec.Creator, captions [][]int, lengths []int) [][]anyvec.Vector {
	res := make([][]anyvec.Vector, len(captions))
	for i, caption := range captions {
		for _, token := range caption[:lengths[i]] {
			res[i] = append(res[i], d.oneHot(c, token))
		}
	}
	return res
}

func (d *Decoder) oneHot(c anyvec.Creator, token int) anyvec.Vector {
	data := make([]float64, d.Config.VocabSize)
	data[token] = 1
	return c.MakeVectorData(c.MakeNumericList(data))
}
