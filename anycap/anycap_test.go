package anycap

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/vidcap"
	"github.com/unixpickle/vidcap/dataset"
	"github.com/unixpickle/vidcap/vocab"
)

func testVocab(t *testing.T) *vocab.Vocab {
	path := filepath.Join(t.TempDir(), "corpus.json")
	corpus := `{"v1": {"sentences": ["a dog runs fast", "a cat", "the dog jumps"]}}`
	if err := os.WriteFile(path, []byte(corpus), 0644); err != nil {
		t.Fatal(err)
	}
	v := vocab.New(true, 1)
	if err := v.AddCorpus(path); err != nil {
		t.Fatal(err)
	}
	return v
}

func testSample(id, sentence string, value float32) *dataset.Sample {
	clip := &dataset.Clip{Channels: 1, Frames: 2, Height: 1, Width: 2}
	clip.Data = []float32{value, value, value, value}
	return &dataset.Sample{ID: id, Sentence: sentence, Clip: clip}
}

func TestCollate(t *testing.T) {
	v := testVocab(t)
	col := &Collator{Creator: anyvec32.CurrentCreator(), Vocab: v}
	samples := []*dataset.Sample{
		testSample("short", "a cat", 1),
		testSample("long", "a dog runs fast", 2),
		testSample("tie1", "the dog", 3),
		testSample("mid", "the dog jumps", 4),
		testSample("tie2", "a dog", 5),
	}
	b, err := col.Collate(samples)
	if err != nil {
		t.Fatal(err)
	}

	if b.Size() != len(samples) {
		t.Fatalf("expected %d rows but got %d", len(samples), b.Size())
	}
	expectedIDs := []string{"long", "mid", "short", "tie1", "tie2"}
	if !reflect.DeepEqual(b.IDs, expectedIDs) {
		t.Errorf("expected order %v but got %v", expectedIDs, b.IDs)
	}
	expectedLens := []int{6, 5, 4, 4, 4}
	if !reflect.DeepEqual(b.Lengths, expectedLens) {
		t.Errorf("expected lengths %v but got %v", expectedLens, b.Lengths)
	}
	for i, row := range b.Captions {
		if len(row) != 6 {
			t.Fatalf("row %d has length %d", i, len(row))
		}
		if row[0] != vocab.StartID || row[b.Lengths[i]-1] != vocab.EndID {
			t.Errorf("row %d is not bracketed: %v", i, row)
		}
		for j, id := range row {
			if (j < b.Lengths[i]) == (id == vocab.PadID) {
				t.Errorf("row %d has bad padding: %v", i, row)
				break
			}
		}
	}

	clips := b.Clips.Data().([]float32)
	for row, expected := range []float32{2, 4, 1, 3, 5} {
		for _, x := range clips[row*4 : (row+1)*4] {
			if x != expected {
				t.Fatalf("row %d: clip does not follow caption order", row)
			}
		}
	}
}

func TestCollateMaxLen(t *testing.T) {
	col := &Collator{Creator: anyvec32.CurrentCreator(), Vocab: testVocab(t), MaxLen: 4}
	b, err := col.Collate([]*dataset.Sample{testSample("x", "a dog runs fast", 0)})
	if err != nil {
		t.Fatal(err)
	}
	row := b.Captions[0]
	if len(row) != 4 || b.Lengths[0] != 4 || row[3] != vocab.EndID {
		t.Errorf("bad truncated caption: %v", row)
	}
}

func TestShiftTargets(t *testing.T) {
	in := [][]int{{1, 5, 6, 2}, {1, 7, 2, 0}}
	actual := ShiftTargets(in)
	expected := [][]int{{5, 6, 2, 0}, {7, 2, 0, 0}}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
	if in[0][0] != 1 {
		t.Error("input was modified")
	}
}

type testSource struct {
	samples []*dataset.Sample
	fail    int
}

func (t *testSource) Len() int {
	return len(t.samples)
}

func (t *testSource) Get(i int) (*dataset.Sample, error) {
	if i == t.fail {
		return nil, &dataset.NoSegmentsError{ID: t.samples[i].ID}
	}
	return t.samples[i], nil
}

func testLoader(t *testing.T, n, batchSize int) (*Loader, *testSource) {
	source := &testSource{fail: -1}
	for i := 0; i < n; i++ {
		source.samples = append(source.samples, testSample(string(rune('a'+i)), "a dog", float32(i)))
	}
	return &Loader{
		Source:    source,
		Collator:  &Collator{Creator: anyvec32.CurrentCreator(), Vocab: testVocab(t)},
		BatchSize: batchSize,
		Workers:   3,
	}, source
}

func TestLoaderEpoch(t *testing.T) {
	l, _ := testLoader(t, 10, 3)
	for _, dropLast := range []bool{false, true} {
		l.DropLast = dropLast
		seen := map[string]bool{}
		var iters []int
		err := l.Epoch(context.Background(), rand.New(rand.NewSource(1)),
			func(iter int, b *Batch) error {
				iters = append(iters, iter)
				for _, id := range b.IDs {
					if seen[id] {
						t.Errorf("sample %s repeated", id)
					}
					seen[id] = true
				}
				return nil
			})
		if err != nil {
			t.Fatal(err)
		}
		expectedIters := []int{0, 1, 2, 3}
		expectedSeen := 10
		if dropLast {
			expectedIters = expectedIters[:3]
			expectedSeen = 9
		}
		if !reflect.DeepEqual(iters, expectedIters) {
			t.Errorf("dropLast=%v: bad iterations %v", dropLast, iters)
		}
		if len(seen) != expectedSeen || l.NumBatches() != len(expectedIters) {
			t.Errorf("dropLast=%v: saw %d samples in %d batches", dropLast, len(seen),
				l.NumBatches())
		}
	}
}

func TestLoaderError(t *testing.T) {
	l, source := testLoader(t, 12, 2)
	source.fail = 5
	err := l.Epoch(context.Background(), rand.New(rand.NewSource(2)),
		func(iter int, b *Batch) error {
			return nil
		})
	if !errors.Is(err, dataset.ErrNoSegments) {
		t.Errorf("expected no segments error but got %v", err)
	}

	stop := errors.New("stop")
	l, _ = testLoader(t, 12, 2)
	err = l.Epoch(context.Background(), rand.New(rand.NewSource(2)),
		func(iter int, b *Batch) error {
			return stop
		})
	if err != stop {
		t.Errorf("expected callback error but got %v", err)
	}
}

func TestLoaderCancel(t *testing.T) {
	l, _ := testLoader(t, 20, 2)
	ctx, cancel := context.WithCancel(context.Background())
	err := l.Epoch(ctx, rand.New(rand.NewSource(3)), func(iter int, b *Batch) error {
		if iter == 1 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation but got %v", err)
	}
}

func testTrainer(t *testing.T, v *vocab.Vocab) *Trainer {
	c := anyvec32.CurrentCreator()
	enc, err := vidcap.NewEncoder(c, vidcap.EncoderConfig{
		Method:    vidcap.MethodPlain,
		Channels:  1,
		Frames:    2,
		Size:      4,
		Layers:    1,
		Filters:   2,
		EmbedSize: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	dec, err := vidcap.NewDecoder(c, vidcap.DecoderConfig{
		Method:      vidcap.MethodLSTM,
		FeatureSize: 3,
		EmbedSize:   4,
		HiddenSize:  5,
		VocabSize:   v.Len(),
		Stacks:      1,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Trainer{Encoder: enc, Decoder: dec}
}

func testBatch(t *testing.T, v *vocab.Vocab) *Batch {
	var samples []*dataset.Sample
	for i, sentence := range []string{"a dog", "the dog jumps", "a cat runs"} {
		clip := &dataset.Clip{Channels: 1, Frames: 2, Height: 4, Width: 4}
		clip.Data = make([]float32, clip.Size())
		for j := range clip.Data {
			clip.Data[j] = float32((i+j)%5) / 5
		}
		samples = append(samples, &dataset.Sample{ID: sentence, Sentence: sentence, Clip: clip})
	}
	b, err := (&Collator{Creator: anyvec32.CurrentCreator(), Vocab: v}).Collate(samples)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestTrainerGradient(t *testing.T) {
	v := testVocab(t)
	tr := testTrainer(t, v)
	b := testBatch(t, v)

	grad := tr.Gradient(b)
	if len(grad) != len(tr.Parameters()) {
		t.Fatalf("expected %d gradients but got %d", len(tr.Parameters()), len(grad))
	}
	// An untrained model should be close to uniform.
	uniform := math.Log(float64(v.Len()))
	if tr.LastCost <= 0 || math.Abs(tr.LastCost-uniform) > uniform {
		t.Errorf("unexpected cost %f (uniform cost is %f)", tr.LastCost, uniform)
	}

	single := tr.LastCost
	tr.Shards = 2
	sharded := tr.Gradient(b)
	if math.Abs(tr.LastCost-single) > 1e-4 {
		t.Errorf("sharded cost %f differs from %f", tr.LastCost, single)
	}
	for _, p := range tr.Parameters() {
		expected := grad[p].Data().([]float32)
		actual := sharded[p].Data().([]float32)
		for i, x := range expected {
			if math.Abs(float64(x-actual[i])) > 1e-4 {
				t.Fatalf("sharded gradient differs: %f vs %f", actual[i], x)
			}
		}
	}
}

func TestCaption(t *testing.T) {
	v := testVocab(t)
	tr := testTrainer(t, v)
	sample := &dataset.Clip{Channels: 1, Frames: 2, Height: 4, Width: 4,
		Data: make([]float32, 32)}
	caption := Caption(tr.Encoder, tr.Decoder, v, sample, 3)
	if len(v.Tokenize(caption)) > 3 {
		t.Errorf("caption too long: %q", caption)
	}
}
