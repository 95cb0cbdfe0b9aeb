// Package dataset loads annotated video datasets and
// samples fixed-length clips from their action segments.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/unixpickle/vidcap/frames"
	"github.com/unixpickle/vidcap/transform"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the default number of attempts Get
// makes to assemble a clip.
const DefaultMaxAttempts = 100

var (
	// ErrNoSegments indicates that a video has no segment
	// with a start frame before its end frame.
	ErrNoSegments = errors.New("no valid segments")

	// ErrTooManyAttempts indicates that clip assembly failed
	// on every attempt.
	ErrTooManyAttempts = errors.New("too many failed attempts")

	// ErrClipShape indicates that the frames of a clip
	// could not be stacked into the configured shape.
	ErrClipShape = errors.New("bad clip shape")
)

// A NoSegmentsError is returned when a video cannot be
// sampled at all.
// This indicates broken input data and is never retried.
type NoSegmentsError struct {
	ID string
}

func (n *NoSegmentsError) Error() string {
	return "video " + n.ID + ": " + ErrNoSegments.Error()
}

func (n *NoSegmentsError) Is(err error) bool {
	return err == ErrNoSegments
}

// An AttemptsError is returned when Get gives up.
type AttemptsError struct {
	ID       string
	Attempts int
	Last     error
}

func (a *AttemptsError) Error() string {
	return fmt.Sprintf("video %s: %s (%d): %v", a.ID, ErrTooManyAttempts, a.Attempts, a.Last)
}

func (a *AttemptsError) Is(err error) bool {
	return err == ErrTooManyAttempts
}

func (a *AttemptsError) Unwrap() error {
	return a.Last
}

// A Sample is one sampled segment of a video.
type Sample struct {
	ID        string
	Duration  int
	Sentence  string
	Timestamp [2]int
	FPS       float64
	Clip      *Clip
}

// A Dataset produces one randomly chosen segment of a
// video per access.
//
// It is safe to call Get from multiple Goroutines.
type Dataset struct {
	Records []*VideoRecord

	// FrameRoot contains one frame directory per video id.
	FrameRoot string
	Frames    *frames.Loader

	// SamplesPerVideo limits sampling to the first few
	// annotated segments of each video.
	// If it is 0, every segment may be sampled.
	SamplesPerVideo int

	// SampleDuration is the required number of frames per
	// clip.
	SampleDuration int

	// MaxAttempts bounds the number of times Get tries to
	// assemble a clip.
	// If it is 0, Get never gives up.
	MaxAttempts int

	Temporal transform.Temporal
	Spatial  transform.Spatial

	Logger *zap.SugaredLogger

	seedLock sync.Mutex
	seeds    *rand.Rand
}

// Options configures Load.
type Options struct {
	RootPath  string
	FramePath string
	AnnPath   string

	Frames *frames.Loader

	SamplesPerVideo int
	SampleDuration  int
	MaxAttempts     int

	Temporal transform.Temporal
	Spatial  transform.Spatial

	Logger *zap.SugaredLogger

	// Seed seeds the segment selection.
	// If it is 0, the current time is used.
	Seed int64
}

// Load reads an annotation file and creates a Dataset.
//
// Annotations without a framerate or without sentences
// are excluded.
func Load(opts *Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	anns, err := ReadAnnotations(filepath.Join(opts.RootPath, opts.AnnPath))
	if err != nil {
		return nil, err
	}
	frameRoot := filepath.Join(opts.RootPath, opts.FramePath)
	d := New(BuildRecords(anns, frameRoot, logger), frameRoot, opts)
	logger.Infow("loaded dataset", "annotations", len(anns), "videos", d.Len())
	return d, nil
}

// New creates a Dataset from existing records.
func New(records []*VideoRecord, frameRoot string, opts *Options) *Dataset {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dataset{
		Records:         records,
		FrameRoot:       frameRoot,
		Frames:          opts.Frames,
		SamplesPerVideo: opts.SamplesPerVideo,
		SampleDuration:  opts.SampleDuration,
		MaxAttempts:     opts.MaxAttempts,
		Temporal:        opts.Temporal,
		Spatial:         opts.Spatial,
		Logger:          logger,
		seeds:           rand.New(rand.NewSource(seed)),
	}
}

// Filter creates a Dataset with the same settings but
// only the records for which keep returns true.
func (d *Dataset) Filter(keep func(rec *VideoRecord) bool) *Dataset {
	var records []*VideoRecord
	for _, rec := range d.Records {
		if keep(rec) {
			records = append(records, rec)
		}
	}
	return &Dataset{
		Records:         records,
		FrameRoot:       d.FrameRoot,
		Frames:          d.Frames,
		SamplesPerVideo: d.SamplesPerVideo,
		SampleDuration:  d.SampleDuration,
		MaxAttempts:     d.MaxAttempts,
		Temporal:        d.Temporal,
		Spatial:         d.Spatial,
		Logger:          d.Logger,
		seeds:           d.newRand(),
	}
}

// Len returns the number of videos.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Get samples a clip from one of the segments of the
// video at the given index.
//
// Segments are chosen uniformly at random.
// If a clip cannot be assembled (e.g. because of missing
// frames), another segment is chosen, up to d.MaxAttempts
// times.
//
// If the video has no valid segments, a *NoSegmentsError
// is returned immediately.
func (d *Dataset) Get(index int) (*Sample, error) {
	rec := d.Records[index]
	cands := rec.candidates(d.SamplesPerVideo)
	if len(cands) == 0 {
		return nil, &NoSegmentsError{ID: rec.ID}
	}

	gen := d.newRand()
	dir := filepath.Join(d.FrameRoot, rec.ID)

	var lastErr error
	for attempt := 1; d.MaxAttempts <= 0 || attempt <= d.MaxAttempts; attempt++ {
		seg := cands[gen.Intn(len(cands))]
		indices := seg.indices()
		if d.Temporal != nil {
			indices = d.Temporal.Apply(gen, indices)
		}
		clip, err := d.assemble(gen, dir, indices)
		if err == nil {
			return &Sample{
				ID:        rec.ID,
				Duration:  rec.Duration,
				Sentence:  seg.Sentence,
				Timestamp: seg.Timestamp,
				FPS:       rec.FPS,
				Clip:      clip,
			}, nil
		}
		lastErr = err
		d.Logger.Warnw("stack failed or clip is not right size",
			"video", rec.ID, "frames", indices, "attempt", attempt, "error", err)
	}
	return nil, &AttemptsError{ID: rec.ID, Attempts: d.MaxAttempts, Last: lastErr}
}

// Video samples a clip from an entire video, ignoring its
// segments.
// This is useful for videos without annotations.
func (d *Dataset) Video(index int) (*Sample, error) {
	rec := d.Records[index]
	indices := segment{Timestamp: [2]int{1, rec.Duration + 1}}.indices()
	gen := d.newRand()
	if d.Temporal != nil {
		indices = d.Temporal.Apply(gen, indices)
	}
	clip, err := d.assemble(gen, filepath.Join(d.FrameRoot, rec.ID), indices)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", rec.ID, err)
	}
	return &Sample{
		ID:        rec.ID,
		Duration:  rec.Duration,
		Timestamp: [2]int{1, rec.Duration},
		FPS:       rec.FPS,
		Clip:      clip,
	}, nil
}

func (d *Dataset) assemble(gen *rand.Rand, dir string, indices []int) (*Clip, error) {
	imgs := d.Frames.Load(dir, indices)
	frameFunc := transform.ToTensor
	if d.Spatial != nil {
		frameFunc = d.Spatial.Randomize(gen)
	}
	tensors := make([]*transform.Tensor, len(imgs))
	for i, img := range imgs {
		tensors[i] = frameFunc(img)
	}
	clip, err := StackFrames(tensors)
	if err != nil {
		return nil, err
	}
	if clip.Frames != d.SampleDuration {
		return nil, fmt.Errorf("%w: got %d frames but expected %d", ErrClipShape,
			clip.Frames, d.SampleDuration)
	}
	return clip, nil
}

func (d *Dataset) newRand() *rand.Rand {
	d.seedLock.Lock()
	defer d.seedLock.Unlock()
	return rand.New(rand.NewSource(d.seeds.Int63()))
}
