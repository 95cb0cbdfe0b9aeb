package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unixpickle/vidcap/dataset"
	"github.com/unixpickle/vidcap/frames"
	"github.com/unixpickle/vidcap/internal/config"
	"github.com/unixpickle/vidcap/runlog"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDataset(t *testing.T, root string) {
	t.Helper()
	ann := `{
	"v_one": {"fps": 1, "duration": 10, "timestamps": [[0, 8]], "sentences": ["a dog runs"]},
	"v_two": {"fps": 1, "duration": 10, "timestamps": [[2, 9]], "sentences": ["a cat sits down"]}
}`
	if err := os.WriteFile(filepath.Join(root, "train.json"), []byte(ann), 0o644); err != nil {
		t.Fatalf("write annotations: %v", err)
	}
	for _, id := range []string{"v_one", "v_two"} {
		dir := filepath.Join(root, "frames", id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create frame dir: %v", err)
		}
		for i := 1; i <= 10; i++ {
			img := image.NewRGBA(image.Rect(0, 0, 8, 6))
			for y := 0; y < 6; y++ {
				for x := 0; x < 8; x++ {
					img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(i * 20), B: uint8(y * 40), A: 0xff})
				}
			}
			f, err := os.Create(frames.ImageNaming.Path(dir, i))
			if err != nil {
				t.Fatalf("create frame: %v", err)
			}
			if err := jpeg.Encode(f, img, nil); err != nil {
				t.Fatalf("encode frame: %v", err)
			}
			f.Close()
		}
	}
}

func smallModelArgs(configPath, root, models string) []string {
	return []string{
		"--config", configPath,
		"--root-path", root,
		"--model-path", models,
		"--decoder", "native",
		"--num-layers", "1",
		"--filters", "2",
		"--lstm-stacks", "1",
		"--lstm-memory", "4",
		"--embedding-size", "4",
		"--imsize", "4",
		"--clip-len", "2",
		"--bs", "2",
		"--n-cpu", "2",
		"--max-epochs", "1",
		"--max-seqlen", "6",
		"--seed", "3",
	}
}

func TestConfigShowAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "vidcap.toml")
	data := "[training]\nbs = 16\nlr = 0.25\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCommand(t, "config", "show", "--config", configPath, "--bs", "8",
		"--token-level=false", "--cnn-method", "plain")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if cfg.Training.BatchSize != 8 {
		t.Fatalf("expected flag to override batch size, got %d", cfg.Training.BatchSize)
	}
	if cfg.Training.LearningRate != 0.25 {
		t.Fatalf("expected learning rate from file, got %g", cfg.Training.LearningRate)
	}
	if cfg.Data.TokenLevel {
		t.Fatal("expected token level to be disabled")
	}
	if cfg.Model.CNNMethod != "plain" {
		t.Fatalf("unexpected cnn method %q", cfg.Model.CNNMethod)
	}
	if cfg.Training.Momentum != config.Default().Training.Momentum {
		t.Fatalf("unexpected momentum %g", cfg.Training.Momentum)
	}
}

func TestInvalidFlag(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "missing.toml")
	_, err := runCommand(t, "config", "show", "--config", configPath, "--mode", "eval")
	if err == nil || !strings.Contains(err.Error(), "data.mode") {
		t.Fatalf("expected mode validation error, got %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidcap.toml")
	if _, err := runCommand(t, "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := runCommand(t, "config", "init", path); err == nil {
		t.Fatal("expected an error for an existing file")
	}
	if _, err := runCommand(t, "config", "init", path, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite failed: %v", err)
	}
	if _, err := runCommand(t, "config", "show", "--config", path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestVocabCommand(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root)
	configPath := filepath.Join(root, "missing.toml")

	out, err := runCommand(t, "vocab", "--config", configPath, "--root-path", root, "--show", "3")
	if err != nil {
		t.Fatalf("vocab failed: %v", err)
	}
	if !strings.Contains(out, "10 tokens (words") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "vocab.json")); err != nil {
		t.Fatalf("vocabulary was not saved: %v", err)
	}
	if !strings.Contains(out, " a ") {
		t.Fatalf("expected most frequent token in output:\n%s", out)
	}
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()
	out, err := runCommand(t, "history", "--config", filepath.Join(dir, "missing.toml"),
		"--model-path", filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No training runs recorded.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTrainCaptionHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a model")
	}
	root := t.TempDir()
	writeDataset(t, root)
	models := filepath.Join(root, "models")
	args := smallModelArgs(filepath.Join(root, "missing.toml"), root, models)

	if _, err := runCommand(t, append([]string{"train"}, args...)...); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	for _, path := range []string{
		filepath.Join(models, "resnet_1", "b002_s004_l002", "ep0001.ckpt"),
		filepath.Join(models, "lstm_1", "b002_s004_l002", "ep0001.ckpt"),
		filepath.Join(models, "train.log"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
	}

	_, err := runCommand(t, append([]string{"train", "--start-from-ep", "1"}, args...)...)
	if err == nil || !strings.Contains(err.Error(), "already at offset epoch number") {
		t.Fatalf("expected nothing to train, got %v", err)
	}

	history, err := runlog.Open(filepath.Join(models, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	runs, err := history.Runs(context.Background())
	history.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %v (%v)", runs, err)
	}

	out, err := runCommand(t, append([]string{"history"}, args...)...)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, shortID(runs[0].ID)) {
		t.Fatalf("run missing from history:\n%s", out)
	}
	out, err = runCommand(t, append([]string{"history", runs[0].ID[:6]}, args...)...)
	if err != nil {
		t.Fatalf("history run failed: %v", err)
	}
	if !strings.Contains(out, "ep0001.ckpt") {
		t.Fatalf("epoch missing from history:\n%s", out)
	}

	out, err = runCommand(t, append([]string{"caption", "--limit", "1"}, args...)...)
	if err != nil {
		t.Fatalf("caption failed: %v", err)
	}
	if !strings.Contains(out, "v_one") || !strings.Contains(out, "a dog runs") {
		t.Fatalf("unexpected captions:\n%s", out)
	}
}

func TestWithSegmentsLogsSkippedVideos(t *testing.T) {
	records := []*dataset.VideoRecord{
		{ID: "v_ok", Duration: 10, FPS: 1, Sentences: []string{"a dog"}, Timestamps: [][2]int{{1, 5}}},
		{ID: "v_empty", Duration: 10, FPS: 1, Sentences: []string{"a cat"}, Timestamps: [][2]int{{4, 4}}},
	}
	data := dataset.New(records, t.TempDir(), &dataset.Options{Seed: 1})

	core, observed := observer.New(zap.WarnLevel)
	filtered := withSegments(data, zap.New(core).Sugar())
	if filtered.Len() != 1 || filtered.Records[0].ID != "v_ok" {
		t.Fatalf("unexpected records after filtering: %d", filtered.Len())
	}
	entries := observed.FilterMessage("skipping video without segments").All()
	if len(entries) != 1 || entries[0].ContextMap()["video"] != "v_empty" {
		t.Fatalf("expected a warning for v_empty, got %v", entries)
	}
}

func TestFindRun(t *testing.T) {
	runs := []*runlog.Run{{ID: "abc123"}, {ID: "abd456"}}
	if run, err := findRun(runs, "abc"); err != nil || run.ID != "abc123" {
		t.Fatalf("unexpected match %v (%v)", run, err)
	}
	if _, err := findRun(runs, "ab"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
	if _, err := findRun(runs, "zzz"); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestVideoID(t *testing.T) {
	if id := videoID("/videos/v_abc.mp4"); id != "v_abc" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}, {"yy", "zz"}},
		[]columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"A", "B", "x", "yy", "zz"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in table:\n%s", want, out)
		}
	}
}
