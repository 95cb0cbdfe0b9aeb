package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/vidcap/frames"
	"go.uber.org/zap"
)

// A VideoRecord describes the annotated segments of one
// video.
//
// Records are created when a dataset is loaded and are not
// modified afterwards.
type VideoRecord struct {
	ID string

	// Duration is the index of the last frame.
	Duration int

	Sentences  []string
	Timestamps [][2]int
	FPS        float64
}

// A segment is an annotated interval that can be sampled.
type segment struct {
	Sentence  string
	Timestamp [2]int
}

func (s segment) indices() []int {
	res := make([]int, 0, s.Timestamp[1]-s.Timestamp[0])
	for i := s.Timestamp[0]; i < s.Timestamp[1]; i++ {
		res = append(res, i)
	}
	return res
}

// candidates returns the non-empty segments among the
// first limit annotated segments.
// If limit is 0, all segments are considered.
func (v *VideoRecord) candidates(limit int) []segment {
	var res []segment
	for i, sentence := range v.Sentences {
		if limit > 0 && i == limit {
			break
		}
		ts := v.Timestamps[i]
		if ts[0] < ts[1] {
			res = append(res, segment{Sentence: sentence, Timestamp: ts})
		}
	}
	return res
}

// An Annotation is one entry of an annotation file.
// Timestamps are in seconds.
type Annotation struct {
	FPS        *float64     `json:"fps"`
	Duration   float64      `json:"duration"`
	Sentences  []string     `json:"sentences"`
	Timestamps [][2]float64 `json:"timestamps"`
}

// ReadAnnotations reads an annotation file, which is a
// JSON object keyed by video id.
func ReadAnnotations(path string) (map[string]*Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("read annotations", err)
	}
	var res map[string]*Annotation
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("read annotations", err)
	}
	return res, nil
}

// NewVideoRecord converts an annotation into a record.
//
// Timestamps are converted to frame indices and clamped
// to the range [1, lastFrame].
// The ok return value is false for annotations without a
// framerate or without sentences.
func NewVideoRecord(id string, ann *Annotation, lastFrame int) (rec *VideoRecord, ok bool) {
	if ann.FPS == nil || len(ann.Sentences) < 1 {
		return nil, false
	}
	fps := *ann.FPS
	n := len(ann.Sentences)
	if len(ann.Timestamps) < n {
		n = len(ann.Timestamps)
	}
	rec = &VideoRecord{
		ID:         id,
		Duration:   lastFrame,
		Sentences:  make([]string, n),
		Timestamps: make([][2]int, n),
		FPS:        fps,
	}
	for i := 0; i < n; i++ {
		rec.Sentences[i] = strings.TrimSpace(ann.Sentences[i])
		rec.Timestamps[i] = secondsToFrames(ann.Timestamps[i], fps, lastFrame)
	}
	return rec, true
}

func secondsToFrames(ts [2]float64, fps float64, lastFrame int) [2]int {
	start := int(ts[0] * fps)
	end := int(ts[1] * fps)
	if start < 1 {
		start = 1
	}
	if end > lastFrame {
		end = lastFrame
	}
	return [2]int{start, end}
}

// BuildRecords creates a record for every usable
// annotation, in sorted id order.
//
// The duration of each video is found by inspecting its
// directory under frameRoot.
// Videos without frames are skipped with a warning.
func BuildRecords(anns map[string]*Annotation, frameRoot string,
	logger *zap.SugaredLogger) []*VideoRecord {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ids := make([]string, 0, len(anns))
	for id := range anns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var res []*VideoRecord
	for _, id := range ids {
		ann := anns[id]
		if ann.FPS == nil || len(ann.Sentences) < 1 {
			continue
		}
		if len(ann.Sentences) != len(ann.Timestamps) {
			logger.Warnw("sentence and timestamp counts differ",
				"video", id, "sentences", len(ann.Sentences),
				"timestamps", len(ann.Timestamps))
		}
		last, err := frames.LastIndex(filepath.Join(frameRoot, id))
		if err != nil {
			logger.Warnw("skipping video without frames", "video", id, "error", err)
			continue
		}
		if rec, ok := NewVideoRecord(id, ann, last); ok {
			res = append(res, rec)
		}
	}
	return res
}

// NumSegments returns the number of segments Get may
// sample from, considering only the first limit annotated
// segments (or all of them if limit is 0).
func (v *VideoRecord) NumSegments(limit int) int {
	return len(v.candidates(limit))
}
