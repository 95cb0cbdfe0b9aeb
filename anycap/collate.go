package anycap

import (
	"errors"
	"sort"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/vidcap"
	"github.com/unixpickle/vidcap/dataset"
	"github.com/unixpickle/vidcap/vocab"
)

// A Batch is a collated set of samples.
//
// Rows are sorted by descending caption length.
// Clips, Captions, Lengths, and IDs all use the same row
// order.
type Batch struct {
	// Clips stores the fused clips, one after another.
	Clips anyvec.Vector

	// Captions are padded with vocab.PadID to the length
	// of the longest caption.
	Captions [][]int

	Lengths []int
	IDs     []string
}

// Size returns the number of rows in the batch.
func (b *Batch) Size() int {
	return len(b.Lengths)
}

// A Collator converts samples into batches.
type Collator struct {
	Creator anyvec.Creator
	Vocab   *vocab.Vocab

	// MaxLen, if non-zero, limits the length of encoded
	// captions (including the start and end tokens).
	MaxLen int
}

// Collate builds a batch from samples.
//
// Samples with equal caption lengths keep their relative
// order.
func (c *Collator) Collate(samples []*dataset.Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("collate: empty batch")
	}
	encoded := make([][]int, len(samples))
	for i, s := range samples {
		encoded[i] = c.encode(s.Sentence)
	}
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(encoded[order[i]]) > len(encoded[order[j]])
	})

	maxLen := len(encoded[order[0]])
	clipSize := samples[0].Clip.Size()
	res := &Batch{
		Captions: make([][]int, len(samples)),
		Lengths:  make([]int, len(samples)),
		IDs:      make([]string, len(samples)),
	}
	clipData := make([]float64, 0, clipSize*len(samples))
	for row, idx := range order {
		s := samples[idx]
		if s.Clip.Size() != clipSize {
			return nil, errors.New("collate: clips have different shapes")
		}
		padded := make([]int, maxLen)
		for i := range padded {
			padded[i] = vocab.PadID
		}
		copy(padded, encoded[idx])
		res.Captions[row] = padded
		res.Lengths[row] = len(encoded[idx])
		res.IDs[row] = s.ID

		clip := s.Clip
		fused := vidcap.FuseFrames(clip.Channels, clip.Frames, clip.Height, clip.Width, clip.Data)
		for _, x := range fused {
			clipData = append(clipData, float64(x))
		}
	}
	res.Clips = c.Creator.MakeVectorData(c.Creator.MakeNumericList(clipData))
	return res, nil
}

func (c *Collator) encode(sentence string) []int {
	ids := c.Vocab.Encode(sentence)
	if c.MaxLen > 1 && len(ids) > c.MaxLen {
		ids = append(ids[:c.MaxLen-1], vocab.EndID)
	}
	return ids
}

// ShiftTargets produces the targets for a batch of
// captions by shifting each caption left by one position
// and appending vocab.PadID.
func ShiftTargets(captions [][]int) [][]int {
	res := make([][]int, len(captions))
	for i, caption := range captions {
		if len(caption) == 0 {
			continue
		}
		shifted := make([]int, len(caption))
		copy(shifted, caption[1:])
		shifted[len(shifted)-1] = vocab.PadID
		res[i] = shifted
	}
	return res
}
