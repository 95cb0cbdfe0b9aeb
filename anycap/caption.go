package anycap

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/vidcap"
	"github.com/unixpickle/vidcap/dataset"
	"github.com/unixpickle/vidcap/vocab"
)

// Caption greedily generates a caption for a clip.
func Caption(enc *vidcap.Encoder, dec *vidcap.Decoder, v *vocab.Vocab,
	clip *dataset.Clip, maxLen int) string {
	c := vidcap.Creator(enc)
	fused := vidcap.FuseFrames(clip.Channels, clip.Frames, clip.Height, clip.Width, clip.Data)
	data := make([]float64, len(fused))
	for i, x := range fused {
		data[i] = float64(x)
	}
	in := c.MakeVectorData(c.MakeNumericList(data))
	feature := enc.Apply(anydiff.NewConst(in), 1).Output()
	return v.Decode(dec.Greedy(feature, vocab.StartID, vocab.EndID, maxLen))
}
