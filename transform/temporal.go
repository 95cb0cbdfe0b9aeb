// Package transform implements the temporal and spatial
// transformations that turn an annotated segment into a
// fixed-size clip.
package transform

import "math/rand"

// A Temporal transform maps a list of frame indices to a
// new list of frame indices.
//
// Implementations must not modify the input slice.
type Temporal interface {
	Apply(gen *rand.Rand, indices []int) []int
}

// TemporalCompose applies temporal transforms in order.
type TemporalCompose []Temporal

// Apply applies every transform in order.
func (t TemporalCompose) Apply(gen *rand.Rand, indices []int) []int {
	for _, x := range t {
		indices = x.Apply(gen, indices)
	}
	return indices
}

// LoopPadding repeats the indices from the beginning
// until there are at least Size of them.
type LoopPadding struct {
	Size int
}

// Apply pads the indices.
func (l *LoopPadding) Apply(gen *rand.Rand, indices []int) []int {
	return loopPad(indices, l.Size)
}

// TemporalRandomCrop selects a random window of Size
// consecutive indices, loop padding the window if there
// are not enough indices.
type TemporalRandomCrop struct {
	Size int
}

// Apply crops the indices.
func (t *TemporalRandomCrop) Apply(gen *rand.Rand, indices []int) []int {
	maxStart := len(indices) - t.Size - 1
	if maxStart < 0 {
		maxStart = 0
	}
	start := gen.Intn(maxStart + 1)
	end := start + t.Size
	if end > len(indices) {
		end = len(indices)
	}
	return loopPad(indices[start:end], t.Size)
}

// TemporalCenterCrop selects the middle Size indices,
// loop padding them if there are not enough indices.
type TemporalCenterCrop struct {
	Size int
}

// Apply crops the indices.
func (t *TemporalCenterCrop) Apply(gen *rand.Rand, indices []int) []int {
	start := (len(indices) - t.Size) / 2
	if start < 0 {
		start = 0
	}
	end := start + t.Size
	if end > len(indices) {
		end = len(indices)
	}
	return loopPad(indices[start:end], t.Size)
}

func loopPad(indices []int, size int) []int {
	res := append([]int{}, indices...)
	for i := 0; len(res) < size && len(indices) > 0; i++ {
		res = append(res, res[i])
	}
	return res
}
