package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unixpickle/vidcap/frames"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var fps float64
	var size int

	cmd := &cobra.Command{
		Use:   "extract <video>...",
		Short: "Extract video frames into the frame directory",
		Long: "Dump the frames of each video into <root>/<frame-path>/<id>, where the id\n" +
			"is the video's file name without its extension. Requires ffmpeg.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger, err := ctx.newLogger("")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if !frames.FFmpegAvailable() {
				return fmt.Errorf("extract frames: ffmpeg not found on PATH")
			}
			naming, err := cfg.FrameNaming()
			if err != nil {
				return err
			}
			frameRoot := cfg.ResolvePath(cfg.Paths.Frames)
			for _, video := range args {
				id := videoID(video)
				outDir := filepath.Join(frameRoot, id)
				logger.Infow("extracting frames", "video", video, "dir", outDir)
				err := frames.Extract(cmd.Context(), video, outDir, frames.ExtractOptions{
					FPS:    fps,
					Size:   size,
					Naming: naming,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", video, err)
				}
				last, err := frames.LastIndex(outDir)
				if err != nil {
					return fmt.Errorf("%s: %w", video, err)
				}
				logger.Infow("extracted frames", "video", id, "frames", last)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&fps, "fps", 0, "Frames per second to keep (0 keeps every frame)")
	cmd.Flags().IntVar(&size, "size", 0, "Scale frames so the shorter side has this many pixels")
	return cmd
}

// videoID derives a video id from a file name.
func videoID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
