package dataset

import (
	"fmt"

	"github.com/unixpickle/vidcap/transform"
)

// A Clip is a stack of frames in (C, T, H, W) order.
type Clip struct {
	Channels int
	Frames   int
	Height   int
	Width    int
	Data     []float32
}

// Size returns the number of values in the clip.
func (c *Clip) Size() int {
	return c.Channels * c.Frames * c.Height * c.Width
}

// StackFrames combines frame tensors into a clip.
//
// It fails if there are no frames, or if the frames do not
// all have the same shape.
func StackFrames(ts []*transform.Tensor) (*Clip, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrClipShape)
	}
	first := ts[0]
	res := &Clip{
		Channels: first.Channels,
		Frames:   len(ts),
		Height:   first.Height,
		Width:    first.Width,
	}
	plane := res.Height * res.Width
	res.Data = make([]float32, res.Size())
	for t, frame := range ts {
		if frame.Channels != res.Channels || frame.Height != res.Height ||
			frame.Width != res.Width {
			return nil, fmt.Errorf("%w: frame %d is %dx%dx%d but frame 0 is %dx%dx%d",
				ErrClipShape, t, frame.Channels, frame.Height, frame.Width,
				res.Channels, res.Height, res.Width)
		}
		for c := 0; c < res.Channels; c++ {
			dst := res.Data[(c*res.Frames+t)*plane : (c*res.Frames+t+1)*plane]
			copy(dst, frame.Data[c*plane:(c+1)*plane])
		}
	}
	return res, nil
}
