package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

// VideoMeta is an entry of a metadata file.
type VideoMeta struct {
	VideoID   string  `json:"video_id"`
	Framerate float64 `json:"framerate"`
	NumFrames int     `json:"num_frames"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// CaptionsOptions configures LoadCaptions.
type CaptionsOptions struct {
	Options

	// Mode is "train", "val", or "test".
	Mode string

	// MetaPath is the metadata file, relative to the root.
	MetaPath string
}

// AnnotationFile returns the annotation file name for a
// mode, or "" for the test split, which has none.
func AnnotationFile(mode string) (string, error) {
	switch mode {
	case "train":
		return "train.json", nil
	case "val":
		return "val_1.json", nil
	case "test":
		return "", nil
	default:
		return "", fmt.Errorf("mode must be one of train, val, test (got %q)", mode)
	}
}

// LoadCaptions loads the split of a dataset described by
// an id list (<mode>_ids.json), a metadata file, and an
// annotation file.
//
// Unlike Load, the durations and framerates come from the
// metadata rather than the frame directories, and videos
// without captions are kept so that Video can be used on
// the test split.
func LoadCaptions(opts *CaptionsOptions) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	annFile, err := AnnotationFile(opts.Mode)
	if err != nil {
		return nil, essentials.AddCtx("load captions", err)
	}

	ids, err := readIDs(filepath.Join(opts.RootPath, opts.Mode+"_ids.json"))
	if err != nil {
		return nil, essentials.AddCtx("load captions", err)
	}
	var metas []*VideoMeta
	if err := readJSON(filepath.Join(opts.RootPath, opts.MetaPath), &metas); err != nil {
		return nil, essentials.AddCtx("load captions", err)
	}
	anns := map[string]*Annotation{}
	if annFile != "" {
		anns, err = ReadAnnotations(filepath.Join(opts.RootPath, annFile))
		if err != nil {
			return nil, essentials.AddCtx("load captions", err)
		}
	}

	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var records []*VideoRecord
	for _, meta := range metas {
		id := strings.TrimPrefix(meta.VideoID, "v_")
		if !wanted[id] {
			continue
		}
		fps := meta.Framerate
		rec := &VideoRecord{ID: id, Duration: meta.NumFrames, FPS: fps}
		ann, ok := anns["v_"+id]
		if !ok {
			ann, ok = anns[id]
		}
		if ok {
			ann.FPS = &fps
			if r, ok := NewVideoRecord(id, ann, meta.NumFrames); ok {
				rec = r
			}
		}
		records = append(records, rec)
	}

	frameRoot := filepath.Join(opts.RootPath, opts.FramePath)
	d := New(records, frameRoot, &opts.Options)
	logger.Infow("loaded caption split", "mode", opts.Mode, "ids", len(ids),
		"videos", d.Len())
	return d, nil
}

func readIDs(path string) ([]string, error) {
	var raw []string
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	res := make([]string, len(raw))
	for i, id := range raw {
		res[i] = strings.TrimPrefix(id, "v_")
	}
	return res, nil
}

func readJSON(path string, obj interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}
