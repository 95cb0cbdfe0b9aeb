package vidcap

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
)

// EncoderConfig describes the shape of an Encoder.
type EncoderConfig struct {
	Method string

	// Input clip dimensions.
	Channels int
	Frames   int
	Size     int

	// Layers is the number of strided stages.
	Layers int

	// Filters is the filter count of the first stage.
	// Each subsequent stage doubles it.
	Filters int

	EmbedSize int
}

// An Encoder maps clips to fixed-size feature vectors.
//
// The frames of a clip are fused along the depth of the
// first convolution, so a clip with C channels and T
// frames is fed in as an image of depth C*T.
type Encoder struct {
	Config EncoderConfig
	Net    anynet.Net
}

// NewEncoder creates a randomly initialized Encoder.
func NewEncoder(c anyvec.Creator, cfg EncoderConfig) (*Encoder, error) {
	if err := checkMethod("cnn", cfg.Method, MethodResNet, MethodPlain); err != nil {
		return nil, err
	}
	if cfg.Layers < 1 || cfg.Filters < 1 || cfg.EmbedSize < 1 {
		return nil, errors.New("encoder needs at least one layer, filter, and output")
	}

	width, height, depth := cfg.Size, cfg.Size, cfg.Channels*cfg.Frames
	var net anynet.Net
	filters := cfg.Filters
	for i := 0; i < cfg.Layers; i++ {
		conv := &anyconv.Conv{
			FilterCount:  filters,
			FilterWidth:  3,
			FilterHeight: 3,
			StrideX:      2,
			StrideY:      2,
			InputWidth:   width,
			InputHeight:  height,
			InputDepth:   depth,
		}
		if conv.OutputWidth() < 1 || conv.OutputHeight() < 1 {
			return nil, errors.New("too many encoder layers for the image size")
		}
		conv.InitRand(c)
		net = append(net, conv, anynet.ReLU)
		width, height, depth = conv.OutputWidth(), conv.OutputHeight(), conv.OutputDepth()

		if cfg.Method == MethodResNet {
			net = append(net, residualBlock(c, width, height, depth))
		}
		filters *= 2
	}
	// One window covering the whole feature map.
	pool := &anyconv.MeanPool{
		SpanX:       width,
		SpanY:       height,
		StrideX:     width,
		StrideY:     height,
		InputWidth:  width,
		InputHeight: height,
		InputDepth:  depth,
	}
	net = append(net, pool, anynet.NewFC(c, depth, cfg.EmbedSize))
	return &Encoder{Config: cfg, Net: net}, nil
}

func residualBlock(c anyvec.Creator, width, height, depth int) anynet.Layer {
	pad := &anyconv.Padding{
		InputWidth:    width,
		InputHeight:   height,
		InputDepth:    depth,
		PaddingTop:    1,
		PaddingRight:  1,
		PaddingBottom: 1,
		PaddingLeft:   1,
	}
	conv := &anyconv.Conv{
		FilterCount:  depth,
		FilterWidth:  3,
		FilterHeight: 3,
		StrideX:      1,
		StrideY:      1,
		InputWidth:   width + 2,
		InputHeight:  height + 2,
		InputDepth:   depth,
	}
	conv.InitRand(c)
	return &anyconv.Residual{
		Layer: anynet.Net{pad, conv, anynet.ReLU},
	}
}

// InputSize returns the number of values in one input
// clip.
func (e *Encoder) InputSize() int {
	return e.Config.Channels * e.Config.Frames * e.Config.Size * e.Config.Size
}

// Apply encodes a batch of clips.
//
// Each clip must be laid out in row-major, depth-minor
// order with depth Channels*Frames (see FuseFrames).
func (e *Encoder) Apply(clips anydiff.Res, batch int) anydiff.Res {
	return e.Net.Apply(clips, batch)
}

// Parameters returns the learnable parameters of the
// encoder, in a fixed order.
func (e *Encoder) Parameters() []*anydiff.Var {
	return e.Net.Parameters()
}

// FuseFrames converts a clip from (C, T, H, W) order into
// the row-major, depth-minor layout used by Encoder.
func FuseFrames(channels, frames, height, width int, data []float32) []float32 {
	depth := channels * frames
	res := make([]float32, len(data))
	for c := 0; c < channels; c++ {
		for t := 0; t < frames; t++ {
			plane := data[(c*frames+t)*height*width:]
			d := c*frames + t
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					res[(y*width+x)*depth+d] = plane[y*width+x]
				}
			}
		}
	}
	return res
}
