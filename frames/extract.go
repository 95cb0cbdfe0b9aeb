package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	// FPS is the sampling rate for frames.
	// If it is 0, every frame of the video is kept.
	FPS float64

	// Size, if non-zero, scales frames so that their
	// shorter side is Size pixels.
	Size int

	Naming Naming
}

// Extract dumps the frames of a video file into outDir,
// numbering them from 1 with the given naming.
func Extract(ctx context.Context, videoPath, outDir string, opts ExtractOptions) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	naming := opts.Naming
	if naming == "" {
		naming = ImageNaming
	}
	kwargs := ffmpeg.KwArgs{
		"start_number": 1,
		"qscale:v":     2,
	}
	var filters []string
	if opts.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%g", opts.FPS))
	}
	if opts.Size > 0 {
		filters = append(filters, fmt.Sprintf(
			"scale='if(gt(iw,ih),-2,%d)':'if(gt(iw,ih),%d,-2)'", opts.Size, opts.Size))
	}
	if len(filters) > 0 {
		vf := filters[0]
		for _, f := range filters[1:] {
			vf += "," + f
		}
		kwargs["vf"] = vf
	}

	err := ffmpeg.Input(videoPath).
		Output(filepath.Join(outDir, string(naming)), kwargs).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg frame extraction failed: %w", err)
	}
	return nil
}
