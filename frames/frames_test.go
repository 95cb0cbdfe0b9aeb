package frames

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, path string, shade uint8) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 0xff})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
}

func TestLoadStopsAtMissingFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, ImageNaming.Path(dir, 1), 10)
	writeFrame(t, ImageNaming.Path(dir, 2), 200)

	l := &Loader{Decoder: NativeDecoder{}, Naming: ImageNaming}
	imgs := l.Load(dir, []int{1, 2, 3})
	require.Len(t, imgs, 2)

	r1, _, _, _ := imgs[0].At(0, 0).RGBA()
	r2, _, _, _ := imgs[1].At(0, 0).RGBA()
	require.Less(t, r1, r2, "frames out of order")
}

func TestLoadEmpty(t *testing.T) {
	l := &Loader{Decoder: NativeDecoder{}, Naming: PlainNaming}
	require.Empty(t, l.Load(t.TempDir(), []int{1, 2}))
}

func TestLoadUndecodable(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, PlainNaming.Path(dir, 1), 0)
	require.NoError(t, os.WriteFile(PlainNaming.Path(dir, 2), []byte("not an image"), 0644))

	l := &Loader{Decoder: NativeDecoder{}, Naming: PlainNaming}
	require.Len(t, l.Load(dir, []int{1, 2}), 1)
}

func TestNativeDecoderUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))
	_, err := NativeDecoder{}.Decode(path)
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

type stubDecoder struct {
	calls int
}

func (s *stubDecoder) Name() string {
	return "stub"
}

func (s *stubDecoder) Decode(path string) (image.Image, error) {
	s.calls++
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func TestFallbackDecoder(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jpg")
	writeFrame(t, good, 0)
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0644))

	stub := &stubDecoder{}
	d := &FallbackDecoder{Primary: NativeDecoder{}, Fallback: stub}
	_, err := d.Decode(good)
	require.NoError(t, err)
	require.Equal(t, 0, stub.calls)
	_, err = d.Decode(bad)
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)
}

func TestSelectDecoder(t *testing.T) {
	d, err := SelectDecoder("native")
	require.NoError(t, err)
	require.Equal(t, "native", d.Name())

	d, err = SelectDecoder("auto")
	require.NoError(t, err)
	require.NotNil(t, d)

	_, err = SelectDecoder("accimage")
	require.Error(t, err)
}

func TestNaming(t *testing.T) {
	require.Equal(t, "image_00007.jpg", ImageNaming.Name(7))
	require.Equal(t, "000007.jpg", PlainNaming.Name(7))

	n, err := ParseNaming("plain")
	require.NoError(t, err)
	require.Equal(t, PlainNaming, n)
	n, err = ParseNaming("frame%04d.png")
	require.NoError(t, err)
	require.Equal(t, "frame0003.png", n.Name(3))
	_, err = ParseNaming("frame%s.png")
	require.Error(t, err)
}

func TestLastIndex(t *testing.T) {
	dir := t.TempDir()
	for _, i := range []int{1, 2, 10, 9} {
		writeFrame(t, ImageNaming.Path(dir, i), 0)
	}
	idx, err := LastIndex(dir)
	require.NoError(t, err)
	require.Equal(t, 10, idx)

	_, err = LastIndex(t.TempDir())
	require.Error(t, err)
}
