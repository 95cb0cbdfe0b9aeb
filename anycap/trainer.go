// Package anycap trains video captioning models on
// batches of clips and captions.
package anycap

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/vidcap"
)

// A Trainer computes gradients for an encoder and decoder
// trained end-to-end.
type Trainer struct {
	Encoder *vidcap.Encoder
	Decoder *vidcap.Decoder

	// Cost is applied to the decoder's output at every
	// timestep.
	// If it is nil, anynet.DotCost is used.
	Cost anynet.Cost

	// Shards splits each batch into this many contiguous
	// sub-batches which are processed one at a time.
	// This bounds the memory used for a single step.
	// If it is 0 or 1, batches are not split.
	Shards int

	// After every gradient computation, LastCost is set to
	// the average cost per timestep.
	// However, if the numeric type is not float32 or
	// float64, then it is never set.
	LastCost float64
}

// Parameters returns the parameters of the encoder
// followed by those of the decoder.
func (t *Trainer) Parameters() []*anydiff.Var {
	return append(t.Encoder.Parameters(), t.Decoder.Parameters()...)
}

// TotalCost computes the summed cost for a batch and the
// number of timesteps it covers.
func (t *Trainer) TotalCost(b *Batch) (anydiff.Res, int) {
	features := t.Encoder.Apply(anydiff.NewConst(b.Clips), b.Size())
	var count int
	cost := anydiff.Pool(features, func(features anydiff.Res) anydiff.Res {
		var res anydiff.Res
		res, count = t.sequenceCost(features, b)
		return res
	})
	return cost, count
}

func (t *Trainer) sequenceCost(features anydiff.Res, b *Batch) (anydiff.Res, int) {
	actual := t.Decoder.Apply(features, b.Captions, b.Lengths)
	desired := t.targetSeq(features.Output().Creator(), b)
	if len(actual.Output()) != len(desired.Output()) {
		panic("mismatching actual and desired sequence shapes")
	}

	costFunc := t.Cost
	if costFunc == nil {
		costFunc = anynet.DotCost{}
	}
	var idx, count int
	allCosts := anyseq.Map(actual, func(a anydiff.Res, n int) anydiff.Res {
		batch := desired.Output()[idx]
		if batch.NumPresent() != n {
			panic("mismatching actual and desired sequence shapes")
		}
		count += n
		idx++
		return costFunc.Cost(anydiff.NewConst(batch.Packed), a, n)
	})
	return anydiff.Sum(anyseq.Sum(allCosts)), count
}

func (t *Trainer) targetSeq(c anyvec.Creator, b *Batch) anyseq.Seq {
	vocabSize := t.Decoder.Config.VocabSize
	targets := ShiftTargets(b.Captions)
	seqs := make([][]anyvec.Vector, len(targets))
	for i, target := range targets {
		for _, token := range target[:b.Lengths[i]] {
			data := make([]float64, vocabSize)
			data[token] = 1
			seqs[i] = append(seqs[i], c.MakeVectorData(c.MakeNumericList(data)))
		}
	}
	return anyseq.ConstSeqList(c, seqs)
}

// Gradient computes the gradient of the average cost per
// timestep for the batch.
// It also sets t.LastCost.
func (t *Trainer) Gradient(b *Batch) anydiff.Grad {
	params := t.Parameters()
	res := anydiff.NewGrad(params...)

	var totalCount int
	var totalCost float64
	for _, shard := range t.shards(b) {
		cost, count := t.TotalCost(shard)
		totalCount += count
		totalCost += floatSum(cost.Output())

		c := cost.Output().Creator()
		upstream := c.MakeVectorData(c.MakeNumericList([]float64{1}))
		cost.Propagate(upstream, res)
	}

	if totalCount > 0 {
		c := params[0].Vector.Creator()
		res.Scale(c.MakeNumeric(1 / float64(totalCount)))
		t.LastCost = totalCost / float64(totalCount)
	}
	return res
}

func (t *Trainer) shards(b *Batch) []*Batch {
	n := t.Shards
	if n <= 1 || b.Size() <= 1 {
		return []*Batch{b}
	}
	if n > b.Size() {
		n = b.Size()
	}
	clipSize := b.Clips.Len() / b.Size()
	var res []*Batch
	for i := 0; i < n; i++ {
		start := i * b.Size() / n
		end := (i + 1) * b.Size() / n
		res = append(res, &Batch{
			Clips:    b.Clips.Slice(start*clipSize, end*clipSize),
			Captions: b.Captions[start:end],
			Lengths:  b.Lengths[start:end],
			IDs:      b.IDs[start:end],
		})
	}
	return res
}

func floatSum(v anyvec.Vector) float64 {
	sum := anyvec.Sum(v)
	switch sum := sum.(type) {
	case float32:
		return float64(sum)
	case float64:
		return sum
	default:
		return 0
	}
}
