package transform

import (
	"image"
	"image/color"
	"math/rand"
	"reflect"
	"testing"
)

func TestLoopPadding(t *testing.T) {
	in := []int{4, 5, 6}
	actual := (&LoopPadding{Size: 8}).Apply(nil, in)
	expected := []int{4, 5, 6, 4, 5, 6, 4, 5}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
	if !reflect.DeepEqual(in, []int{4, 5, 6}) {
		t.Error("input was modified")
	}
	if res := (&LoopPadding{Size: 2}).Apply(nil, in); len(res) != 3 {
		t.Errorf("unexpected result: %v", res)
	}
	if res := (&LoopPadding{Size: 2}).Apply(nil, nil); len(res) != 0 {
		t.Errorf("unexpected result: %v", res)
	}
}

func TestTemporalRandomCrop(t *testing.T) {
	gen := rand.New(rand.NewSource(1))
	var in []int
	for i := 10; i < 50; i++ {
		in = append(in, i)
	}
	crop := &TemporalRandomCrop{Size: 16}
	for i := 0; i < 100; i++ {
		out := crop.Apply(gen, in)
		if len(out) != 16 {
			t.Fatalf("bad length: %d", len(out))
		}
		for j := 1; j < len(out); j++ {
			if out[j] != out[j-1]+1 {
				t.Fatalf("not consecutive: %v", out)
			}
		}
	}

	short := crop.Apply(gen, []int{1, 2, 3})
	if len(short) != 16 || short[3] != 1 {
		t.Errorf("unexpected padded crop: %v", short)
	}
}

func TestTemporalComposeCenter(t *testing.T) {
	tc := TemporalCompose{&TemporalCenterCrop{Size: 4}, &LoopPadding{Size: 4}}
	actual := tc.Apply(nil, []int{1, 2, 3, 4, 5, 6, 7, 8})
	if !reflect.DeepEqual(actual, []int{3, 4, 5, 6}) {
		t.Errorf("unexpected result: %v", actual)
	}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0xff, A: 0xff})
		}
	}
	return img
}

func TestToTensor(t *testing.T) {
	tensor := ToTensor(testImage(3, 2))
	if tensor.Channels != 3 || tensor.Width != 3 || tensor.Height != 2 {
		t.Fatalf("bad shape: %d %d %d", tensor.Channels, tensor.Height, tensor.Width)
	}
	// Red channel at (x=2, y=1).
	if v := tensor.Data[1*3+2]; v != float32(2*0x101)/0xffff {
		t.Errorf("bad red value: %f", v)
	}
	// Blue plane is all ones.
	for _, v := range tensor.Data[12:] {
		if v != 1 {
			t.Fatalf("bad blue value: %f", v)
		}
	}
}

func TestCornerCrop(t *testing.T) {
	img := testImage(10, 8)
	fn := (&CornerCrop{Size: 4, Corner: BottomRight}).Randomize(nil)
	out := fn(img)
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 4 {
		t.Fatalf("bad size: %v", out.Bounds())
	}
	r, g, _, _ := out.At(out.Bounds().Min.X, out.Bounds().Min.Y).RGBA()
	if r>>8 != 6 || g>>8 != 4 {
		t.Errorf("bad corner pixel: %d %d", r>>8, g>>8)
	}
}

func TestComposeSharesRandomness(t *testing.T) {
	c := &Compose{
		Ops: []ImageOp{
			&CornerCrop{Size: 4, Random: true},
			&HorizontalFlip{Prob: 0.5},
		},
	}
	gen := rand.New(rand.NewSource(3))
	img := testImage(10, 8)
	for i := 0; i < 10; i++ {
		fn := c.Randomize(gen)
		t1 := fn(img)
		t2 := fn(img)
		if !reflect.DeepEqual(t1, t2) {
			t.Fatal("frames of one clip were transformed differently")
		}
	}
}

func TestNormalize(t *testing.T) {
	c := &Compose{
		Mean: []float32{0.5, 0.5, 0.5},
		Std:  []float32{0.5, 0.5, 0.5},
	}
	tensor := c.Randomize(nil)(testImage(2, 2))
	for _, v := range tensor.Data[8:] {
		if v != 1 {
			t.Fatalf("bad normalized value: %f", v)
		}
	}
}

func TestScale(t *testing.T) {
	out := (&Scale{Size: 4}).Randomize(nil)(testImage(16, 8))
	if out.Bounds().Dx() != 8 || out.Bounds().Dy() != 4 {
		t.Errorf("bad size: %v", out.Bounds())
	}
}
