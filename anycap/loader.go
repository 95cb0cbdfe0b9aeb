package anycap

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/unixpickle/vidcap/dataset"
)

// A SampleSource produces training samples by index.
//
// Get must be safe to call from multiple Goroutines.
type SampleSource interface {
	Len() int
	Get(index int) (*dataset.Sample, error)
}

// A Loader assembles shuffled batches in the background.
type Loader struct {
	Source   SampleSource
	Collator *Collator

	BatchSize int

	// Workers is the number of Goroutines fetching
	// samples.
	// If it is 0, one worker is used.
	Workers int

	// Prefetch is the number of batches that may be built
	// ahead of the consumer.
	// If it is 0, it defaults to twice Workers.
	Prefetch int

	// DropLast drops the final batch if it is not full.
	DropLast bool
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := l.Source.Len() / l.BatchSize
	if !l.DropLast && l.Source.Len()%l.BatchSize != 0 {
		n++
	}
	return n
}

type loadResult struct {
	Batch *Batch
	Err   error
}

// Epoch runs through one shuffled epoch, calling f with
// each batch in order.
//
// Batches are assembled concurrently by l.Workers
// Goroutines.
// The first error, either from assembling a batch or from
// f, stops the epoch and is returned.
func (l *Loader) Epoch(ctx context.Context, gen *rand.Rand, f func(iter int, b *Batch) error) error {
	if l.BatchSize < 1 {
		panic("batch size must be positive")
	}
	perm := gen.Perm(l.Source.Len())
	numBatches := l.NumBatches()

	workers := l.Workers
	if workers < 1 {
		workers = 1
	}
	prefetch := l.Prefetch
	if prefetch < 1 {
		prefetch = workers * 2
	}

	ctx, cancel := context.WithCancel(ctx)

	slots := make([]chan loadResult, numBatches)
	for i := range slots {
		slots[i] = make(chan loadResult, 1)
	}
	jobs := make(chan int)
	tokens := make(chan struct{}, prefetch)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i := 0; i < numBatches; i++ {
			select {
			case tokens <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				start := idx * l.BatchSize
				end := start + l.BatchSize
				if end > len(perm) {
					end = len(perm)
				}
				batch, err := l.build(ctx, perm[start:end])
				slots[idx] <- loadResult{Batch: batch, Err: err}
			}
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for i, slot := range slots {
		if err := ctx.Err(); err != nil {
			return err
		}
		var res loadResult
		select {
		case res = <-slot:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-tokens
		if res.Err != nil {
			return fmt.Errorf("batch %d: %w", i, res.Err)
		}
		if err := f(i, res.Batch); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) build(ctx context.Context, indices []int) (*Batch, error) {
	samples := make([]*dataset.Sample, len(indices))
	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, err := l.Source.Get(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = sample
	}
	return l.Collator.Collate(samples)
}
