// Package frames loads the decoded frames of videos that
// have been dumped to per-video image directories.
package frames

import (
	"image"
	"os"

	"go.uber.org/zap"
)

// A Loader loads ordered frames from a video's frame
// directory.
type Loader struct {
	Decoder Decoder
	Naming  Naming

	// Logger, if non-nil, receives diagnostics about short
	// clips.
	Logger *zap.SugaredLogger
}

// NewLoader creates a Loader with the named decoder.
func NewLoader(decoder string, naming Naming, logger *zap.SugaredLogger) (*Loader, error) {
	d, err := SelectDecoder(decoder)
	if err != nil {
		return nil, err
	}
	return &Loader{Decoder: d, Naming: naming, Logger: logger}, nil
}

// Load decodes the frames with the given indices, in
// order.
//
// If a frame is missing or cannot be decoded, Load stops
// and returns the frames decoded so far.
// Callers should treat a short result as a reason to try
// different indices, not as an error.
func (l *Loader) Load(dir string, indices []int) []image.Image {
	res := make([]image.Image, 0, len(indices))
	for _, idx := range indices {
		path := l.Naming.Path(dir, idx)
		if _, err := os.Stat(path); err != nil {
			l.logger().Debugw("frame does not exist", "path", path)
			return res
		}
		img, err := l.Decoder.Decode(path)
		if err != nil {
			l.logger().Warnw("frame could not be decoded", "path", path,
				"decoder", l.Decoder.Name(), "error", err)
			return res
		}
		res = append(res, img)
	}
	return res
}

func (l *Loader) logger() *zap.SugaredLogger {
	if l.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return l.Logger
}
