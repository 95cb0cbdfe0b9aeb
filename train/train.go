// Package train runs the epoch loop for a video
// captioning model.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/vidcap"
	"github.com/unixpickle/vidcap/anycap"
	"github.com/unixpickle/vidcap/checkpoint"
	"github.com/unixpickle/vidcap/runlog"
	"go.uber.org/zap"
)

var (
	// ErrNothingToTrain is returned when the maximum epoch
	// has already been reached.
	ErrNothingToTrain = errors.New("already at offset epoch number")

	// ErrLocked is returned when another trainer holds the
	// model directory.
	ErrLocked = errors.New("model directory is locked by another trainer")
)

// LockName is the name of the lock file in the model
// directory.
const LockName = ".vidcap.lock"

// Config controls an Orchestrator.
type Config struct {
	ModelRoot string

	CNNMethod  string
	NumLayers  int
	RNNMethod  string
	LSTMStacks int

	BatchSize  int
	ImageSize  int
	ClipLength int

	// StartEpoch, if non-zero, is the epoch to resume
	// from.
	StartEpoch int
	MaxEpochs  int

	LearningRate float64
	Momentum     float64
	Patience     int

	LogEvery int

	// Seed seeds the per-epoch shuffling.
	// If it is 0, the current time is used.
	Seed int64
}

// A Batcher produces the batches of one epoch.
type Batcher interface {
	NumBatches() int
	Epoch(ctx context.Context, gen *rand.Rand, f func(iter int, b *anycap.Batch) error) error
}

// An Orchestrator trains an encoder and decoder for a
// number of epochs, saving checkpoints along the way.
type Orchestrator struct {
	Config Config

	// Device is the creator every parameter must live on.
	Device anyvec.Creator

	Trainer *anycap.Trainer
	Batches Batcher

	// History, if non-nil, receives a record of the run.
	History *runlog.Log

	Logger *zap.SugaredLogger

	plateau *Plateau
}

// EncoderLayout returns the checkpoint layout of the
// encoder.
func (o *Orchestrator) EncoderLayout() *checkpoint.Layout {
	return o.layout(o.Config.CNNMethod, o.Config.NumLayers)
}

// DecoderLayout returns the checkpoint layout of the
// decoder.
func (o *Orchestrator) DecoderLayout() *checkpoint.Layout {
	return o.layout(o.Config.RNNMethod, o.Config.LSTMStacks)
}

func (o *Orchestrator) layout(method string, param int) *checkpoint.Layout {
	return &checkpoint.Layout{
		ModelRoot:  o.Config.ModelRoot,
		Method:     method,
		Param:      param,
		BatchSize:  o.Config.BatchSize,
		ImageSize:  o.Config.ImageSize,
		ClipLength: o.Config.ClipLength,
	}
}

// Resume loads the checkpoints for o.Config.StartEpoch and
// returns the epoch to start from.
//
// If either checkpoint is missing or cannot be loaded,
// training starts from scratch and 0 is returned.
func (o *Orchestrator) Resume() int {
	offset := o.Config.StartEpoch
	if offset == 0 {
		return 0
	}
	enc, dec := o.EncoderLayout(), o.DecoderLayout()
	if !enc.Exists(offset) || !dec.Exists(offset) {
		o.logger().Warnw("didn't find checkpoints, starting from scratch",
			"epoch", offset, "encoder", enc.Path(offset), "decoder", dec.Path(offset))
		return 0
	}
	encParams := o.Trainer.Encoder.Parameters()
	backup := make([]anyvec.Vector, len(encParams))
	for i, p := range encParams {
		backup[i] = p.Vector.Copy()
	}
	if err := enc.Load(offset, encParams); err != nil {
		o.logger().Warnw("could not load encoder, starting from scratch", "error", err)
		return 0
	}
	if err := dec.Load(offset, o.Trainer.Decoder.Parameters()); err != nil {
		for i, p := range encParams {
			p.Vector.Set(backup[i])
		}
		o.logger().Warnw("could not load decoder, starting from scratch", "error", err)
		return 0
	}
	o.logger().Infow("restarting training", "epoch", offset)
	return offset
}

// Run trains until o.Config.MaxEpochs, or until ctx is
// done.
func (o *Orchestrator) Run(ctx context.Context) error {
	if c := vidcap.Creator(o.Trainer.Encoder); c != o.Device {
		return errors.New("train: encoder parameters are not on the device")
	}
	if c := vidcap.Creator(o.Trainer.Decoder); c != o.Device {
		return errors.New("train: decoder parameters are not on the device")
	}

	start := o.Resume()
	if o.Config.MaxEpochs <= start {
		return fmt.Errorf("train: %w (max epochs %d, offset %d)", ErrNothingToTrain,
			o.Config.MaxEpochs, start)
	}

	unlock, err := o.lock()
	if err != nil {
		return err
	}
	defer unlock()

	var runID string
	if o.History != nil {
		runID, err = o.History.StartRun(ctx, start, o.Config)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
	}

	numParams := vidcap.NumParams(o.Trainer.Encoder) + vidcap.NumParams(o.Trainer.Decoder)
	o.logger().Infow("start training", "params", humanize.Comma(int64(numParams)),
		"start_epoch", start, "max_epochs", o.Config.MaxEpochs, "run", runID)

	o.plateau = NewPlateau(o.Config.LearningRate, o.Config.Patience)
	opt := &Optimizer{
		Transformer: &anysgd.Momentum{Momentum: o.Config.Momentum},
		Rater:       o.plateau,
	}
	seed := o.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	for ep := start; ep < o.Config.MaxEpochs; ep++ {
		epochStart := time.Now()
		loss, err := o.epoch(ctx, opt, ep, rand.New(rand.NewSource(seed+int64(ep))))
		if err != nil {
			return fmt.Errorf("train: epoch %d: %w", ep+1, err)
		}

		if o.plateau.Step(loss) {
			o.logger().Infow("reduced learning rate", "lr", o.plateau.LearningRate)
		}
		o.logger().Infow("epoch done", "epoch", ep+1, "max_epochs", o.Config.MaxEpochs,
			"loss", loss)

		if err := o.save(ep + 1); err != nil {
			return fmt.Errorf("train: %w", err)
		}
		if o.History != nil {
			err := o.History.RecordEpoch(ctx, &runlog.Epoch{
				RunID:        runID,
				Epoch:        ep + 1,
				Loss:         loss,
				LearningRate: o.plateau.LearningRate,
				EncoderPath:  o.EncoderLayout().Path(ep + 1),
				DecoderPath:  o.DecoderLayout().Path(ep + 1),
				Duration:     time.Since(epochStart),
			})
			if err != nil {
				o.logger().Warnw("could not record epoch", "epoch", ep+1, "error", err)
			}
		}
	}
	o.logger().Infow("end training")
	return nil
}

// LearningRate returns the current learning rate, or the
// configured rate if training has not started.
func (o *Orchestrator) LearningRate() float64 {
	if o.plateau == nil {
		return o.Config.LearningRate
	}
	return o.plateau.LearningRate
}

func (o *Orchestrator) epoch(ctx context.Context, opt *Optimizer, ep int,
	gen *rand.Rand) (float64, error) {
	numBatches := o.Batches.NumBatches()
	logEvery := o.Config.LogEvery
	if logEvery < 1 {
		logEvery = 1
	}

	var lastLoss float64
	before := time.Now()
	err := o.Batches.Epoch(ctx, gen, func(it int, b *anycap.Batch) error {
		grad := o.Trainer.Gradient(b)
		opt.Step(grad, float64(ep)+float64(it)/float64(numBatches))
		lastLoss = o.Trainer.LastCost

		if it%logEvery == logEvery-1 {
			after := time.Now()
			o.logger().Infow("iteration",
				"iter", it+1,
				"max_iter", numBatches,
				"loss", lastLoss,
				"sec_per_iter", after.Sub(before).Seconds()/float64(logEvery))
			before = after
		}
		return nil
	})
	return lastLoss, err
}

func (o *Orchestrator) save(epoch int) error {
	enc, dec := o.EncoderLayout(), o.DecoderLayout()
	if err := enc.Save(epoch, o.Trainer.Encoder.Parameters()); err != nil {
		return err
	}
	o.logger().Infow("saved encoder", "path", enc.Path(epoch))
	if err := dec.Save(epoch, o.Trainer.Decoder.Parameters()); err != nil {
		return err
	}
	o.logger().Infow("saved decoder", "path", dec.Path(epoch))
	return nil
}

func (o *Orchestrator) lock() (func(), error) {
	if err := os.MkdirAll(o.Config.ModelRoot, 0755); err != nil {
		return nil, fmt.Errorf("train: create model root: %w", err)
	}
	path := filepath.Join(o.Config.ModelRoot, LockName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("train: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("train: %w: %s", ErrLocked, path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			o.logger().Warnw("failed to release lock", "path", path, "error", err)
		}
	}, nil
}

func (o *Orchestrator) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}
