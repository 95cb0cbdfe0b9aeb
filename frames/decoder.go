package frames

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"os/exec"

	"github.com/h2non/filetype"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/unixpickle/essentials"
)

// ErrUnsupportedFormat is returned by a Decoder that
// cannot handle a file's contents.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// A Decoder reads an image file from disk.
//
// Decoders must be safe to use from multiple Goroutines.
type Decoder interface {
	Name() string
	Decode(path string) (image.Image, error)
}

// SelectDecoder creates a Decoder by name.
//
// Supported names are "native", "ffmpeg", and "auto".
// An "auto" decoder uses the native codecs, and falls back
// to ffmpeg (if it is installed) for formats the native
// codecs cannot handle.
func SelectDecoder(name string) (Decoder, error) {
	switch name {
	case "native":
		return NativeDecoder{}, nil
	case "ffmpeg":
		if !FFmpegAvailable() {
			return nil, errors.New("select decoder: ffmpeg not found")
		}
		return &FFmpegDecoder{}, nil
	case "", "auto":
		if FFmpegAvailable() {
			return &FallbackDecoder{
				Primary:  NativeDecoder{},
				Fallback: &FFmpegDecoder{},
			}, nil
		}
		return NativeDecoder{}, nil
	default:
		return nil, fmt.Errorf("select decoder: unknown decoder %q", name)
	}
}

// FFmpegAvailable checks if an ffmpeg binary is on the
// PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// NativeDecoder decodes JPEG, PNG and GIF frames with the
// image packages from the standard library.
//
// The file contents are sniffed before decoding, so that
// files in other formats fail with ErrUnsupportedFormat.
type NativeDecoder struct{}

// Name returns "native".
func (n NativeDecoder) Name() string {
	return "native"
}

// Decode decodes the image file.
func (n NativeDecoder) Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	kind, _ := filetype.Match(data)
	switch kind.Extension {
	case "jpg", "png", "gif":
	default:
		return nil, fmt.Errorf("decode %s: %w (%s)", path, ErrUnsupportedFormat,
			kind.MIME.Value)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, essentials.AddCtx("decode "+path, err)
	}
	return img, nil
}

// FFmpegDecoder decodes frames by having ffmpeg convert
// them to raw RGB pixels.
// It handles any format that ffmpeg supports.
type FFmpegDecoder struct{}

// Name returns "ffmpeg".
func (f *FFmpegDecoder) Name() string {
	return "ffmpeg"
}

// Decode decodes the image file.
func (f *FFmpegDecoder) Decode(path string) (image.Image, error) {
	width, height, err := probeSize(path)
	if err != nil {
		return nil, essentials.AddCtx("decode "+path, err)
	}
	buf := &bytes.Buffer{}
	err = ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"format":   "rawvideo",
			"pix_fmt":  "rgb24",
			"frames:v": 1,
		}).
		WithOutput(buf).
		Silent(true).
		Run()
	if err != nil {
		return nil, essentials.AddCtx("decode "+path, err)
	}
	return rgbImage(buf, width, height)
}

func probeSize(path string) (width, height int, err error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, 0, err
	}
	var info struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return 0, 0, err
	}
	for _, s := range info.Streams {
		if s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, errors.New("probe: no image stream")
}

func rgbImage(r io.Reader, width, height int) (image.Image, error) {
	pix := make([]byte, width*height*3)
	if _, err := io.ReadFull(r, pix); err != nil {
		return nil, fmt.Errorf("read raw frame: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		copy(img.Pix[i*4:i*4+3], pix[i*3:i*3+3])
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}

// FallbackDecoder tries a primary Decoder and only uses
// the fallback when the primary cannot handle the format.
type FallbackDecoder struct {
	Primary  Decoder
	Fallback Decoder
}

// Name returns a name derived from both decoders.
func (f *FallbackDecoder) Name() string {
	return f.Primary.Name() + "+" + f.Fallback.Name()
}

// Decode decodes the image file.
func (f *FallbackDecoder) Decode(path string) (image.Image, error) {
	img, err := f.Primary.Decode(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		return f.Fallback.Decode(path)
	}
	return img, err
}
