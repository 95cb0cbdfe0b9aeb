package transform

import (
	"fmt"
	"image"
	"math/rand"
)

// A Tensor is a frame in channel-major (C, H, W) order.
type Tensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// A FrameFunc converts a frame into a tensor.
//
// All frames of a clip are converted by the same FrameFunc,
// so they share the same random crop, flip, etc.
type FrameFunc func(img image.Image) *Tensor

// A Spatial transform creates FrameFuncs.
// Each call to Randomize draws new random parameters.
type Spatial interface {
	Randomize(gen *rand.Rand) FrameFunc
}

// An ImageOp is one randomizable image-to-image step of a
// spatial transformation.
type ImageOp interface {
	Randomize(gen *rand.Rand) func(image.Image) image.Image
}

// Compose runs a list of ImageOps and then converts the
// result to a tensor with values in [0, 1].
//
// If Mean and Std are set, the tensor is normalized per
// channel as (x - mean) / std.
type Compose struct {
	Ops  []ImageOp
	Mean []float32
	Std  []float32
}

// Randomize randomizes every ImageOp.
func (c *Compose) Randomize(gen *rand.Rand) FrameFunc {
	fns := make([]func(image.Image) image.Image, len(c.Ops))
	for i, op := range c.Ops {
		fns[i] = op.Randomize(gen)
	}
	return func(img image.Image) *Tensor {
		for _, f := range fns {
			img = f(img)
		}
		t := ToTensor(img)
		if c.Mean != nil {
			normalize(t, c.Mean, c.Std)
		}
		return t
	}
}

// ToTensor converts an image to a (3, H, W) tensor of RGB
// values between 0 and 1.
func ToTensor(img image.Image) *Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	res := &Tensor{Channels: 3, Height: h, Width: w, Data: make([]float32, 3*w*h)}
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*w + x
			res.Data[idx] = float32(r) / 0xffff
			res.Data[plane+idx] = float32(g) / 0xffff
			res.Data[2*plane+idx] = float32(bl) / 0xffff
		}
	}
	return res
}

func normalize(t *Tensor, mean, std []float32) {
	if len(mean) != t.Channels || len(std) != t.Channels {
		panic(fmt.Sprintf("normalize: expected %d channels", t.Channels))
	}
	plane := t.Width * t.Height
	for c := 0; c < t.Channels; c++ {
		data := t.Data[c*plane : (c+1)*plane]
		for i, x := range data {
			data[i] = (x - mean[c]) / std[c]
		}
	}
}

// A Corner identifies a crop position for CornerCrop.
type Corner int

// These are the crop positions.
const (
	Center Corner = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

// CornerCrop crops a Size x Size square from one of the
// corners or the center of a frame.
//
// If Random is set, the position is drawn each time the op
// is randomized; otherwise Corner is used.
type CornerCrop struct {
	Size   int
	Corner Corner
	Random bool
}

// Randomize selects the crop position.
func (c *CornerCrop) Randomize(gen *rand.Rand) func(image.Image) image.Image {
	corner := c.Corner
	if c.Random {
		corner = Corner(gen.Intn(int(BottomRight) + 1))
	}
	return func(img image.Image) image.Image {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		var x, y int
		switch corner {
		case Center:
			x, y = (w-c.Size)/2, (h-c.Size)/2
		case TopLeft:
		case TopRight:
			x = w - c.Size
		case BottomLeft:
			y = h - c.Size
		case BottomRight:
			x, y = w-c.Size, h-c.Size
		}
		return crop(img, image.Rect(x, y, x+c.Size, y+c.Size).Add(b.Min))
	}
}

// RandomCrop crops a Size x Size square at a uniformly
// random position.
type RandomCrop struct {
	Size int
}

// Randomize selects the crop position as a fraction of
// the free space, so it applies to any frame size.
func (r *RandomCrop) Randomize(gen *rand.Rand) func(image.Image) image.Image {
	fx, fy := gen.Float64(), gen.Float64()
	return func(img image.Image) image.Image {
		b := img.Bounds()
		x := int(fx * float64(b.Dx()-r.Size+1))
		y := int(fy * float64(b.Dy()-r.Size+1))
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		return crop(img, image.Rect(x, y, x+r.Size, y+r.Size).Add(b.Min))
	}
}

// HorizontalFlip mirrors frames with probability Prob.
type HorizontalFlip struct {
	Prob float64
}

// Randomize decides whether or not to flip.
func (h *HorizontalFlip) Randomize(gen *rand.Rand) func(image.Image) image.Image {
	flip := gen.Float64() < h.Prob
	return func(img image.Image) image.Image {
		if !flip {
			return img
		}
		b := img.Bounds()
		res := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				res.Set(b.Dx()-1-x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return res
	}
}

// Scale resizes frames so that the shorter side is Size
// pixels, using nearest-neighbor sampling.
type Scale struct {
	Size int
}

// Randomize returns the (deterministic) scaling function.
func (s *Scale) Randomize(gen *rand.Rand) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w == 0 || h == 0 || (w <= h && w == s.Size) || (h <= w && h == s.Size) {
			return img
		}
		var newW, newH int
		if w < h {
			newW, newH = s.Size, s.Size*h/w
		} else {
			newW, newH = s.Size*w/h, s.Size
		}
		res := image.NewRGBA(image.Rect(0, 0, newW, newH))
		for y := 0; y < newH; y++ {
			srcY := b.Min.Y + y*h/newH
			for x := 0; x < newW; x++ {
				res.Set(x, y, img.At(b.Min.X+x*w/newW, srcY))
			}
		}
		return res
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop extracts a region; regions that extend past the
// image produce frames of a different size, which the
// dataset rejects when stacking.
func crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	res := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			res.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return res
}
