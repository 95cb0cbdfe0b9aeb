// Package checkpoint saves and restores the parameters of
// sub-models at epoch boundaries.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// ErrMismatch indicates that a checkpoint was saved from a
// model with a different shape.
var ErrMismatch = errors.New("checkpoint does not match model parameters")

// A Layout determines where the checkpoints of one
// sub-model are stored.
type Layout struct {
	ModelRoot string

	// Method and Param name the sub-model, e.g. "resnet"
	// and its layer count.
	Method string
	Param  int

	BatchSize  int
	ImageSize  int
	ClipLength int
}

// Dir returns the directory containing every epoch's
// checkpoint.
func (l *Layout) Dir() string {
	return filepath.Join(
		l.ModelRoot,
		fmt.Sprintf("%s_%d", l.Method, l.Param),
		fmt.Sprintf("b%03d_s%03d_l%03d", l.BatchSize, l.ImageSize, l.ClipLength),
	)
}

// Path returns the checkpoint path for an epoch.
func (l *Layout) Path(epoch int) string {
	return filepath.Join(l.Dir(), fmt.Sprintf("ep%04d.ckpt", epoch))
}

// Exists checks if the checkpoint for an epoch exists.
func (l *Layout) Exists(epoch int) bool {
	info, err := os.Stat(l.Path(epoch))
	return err == nil && !info.IsDir()
}

// Epochs lists the epochs with a saved checkpoint, in
// ascending order.
func (l *Layout) Epochs() ([]int, error) {
	entries, err := os.ReadDir(l.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, essentials.AddCtx("list checkpoints", err)
	}
	var res []int
	for _, entry := range entries {
		var epoch int
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ckpt") {
			continue
		}
		if _, err := fmt.Sscanf(entry.Name(), "ep%d.ckpt", &epoch); err == nil {
			res = append(res, epoch)
		}
	}
	sort.Ints(res)
	return res, nil
}

// Save writes the parameters to the checkpoint for an
// epoch, creating directories as needed.
//
// The file is written to a temporary path and renamed, so
// a crash never leaves a truncated checkpoint behind.
func (l *Layout) Save(epoch int, params []*anydiff.Var) (err error) {
	defer essentials.AddCtxTo("save checkpoint", &err)
	data, err := Marshal(params)
	if err != nil {
		return err
	}
	path := l.Path(epoch)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the checkpoint for an epoch into params.
func (l *Layout) Load(epoch int, params []*anydiff.Var) (err error) {
	defer essentials.AddCtxTo("load checkpoint", &err)
	data, err := os.ReadFile(l.Path(epoch))
	if err != nil {
		return err
	}
	return Unmarshal(data, params)
}

// Marshal encodes an ordered list of parameters.
func Marshal(params []*anydiff.Var) ([]byte, error) {
	objs := make([]interface{}, len(params))
	for i, p := range params {
		objs[i] = &anyvecsave.S{Vector: p.Vector}
	}
	return serializer.SerializeAny(objs...)
}

// Unmarshal decodes parameters produced by Marshal and
// copies them into params.
//
// The number, lengths, and numeric types of the stored
// parameters must match params exactly.
// On failure, params are left unchanged.
func Unmarshal(data []byte, params []*anydiff.Var) error {
	dests := make([]interface{}, len(params))
	for i := range dests {
		dests[i] = new(*anyvecsave.S)
	}
	if err := serializer.DeserializeAny(data, dests...); err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	for i, p := range params {
		vec := (*dests[i].(**anyvecsave.S)).Vector
		if vec.Len() != p.Vector.Len() {
			return fmt.Errorf("%w: parameter %d has length %d but checkpoint has %d",
				ErrMismatch, i, p.Vector.Len(), vec.Len())
		} else if vec.Creator() != p.Vector.Creator() {
			return fmt.Errorf("%w: parameter %d has a different numeric type",
				ErrMismatch, i)
		}
	}
	for i, p := range params {
		p.Vector.Set((*dests[i].(**anyvecsave.S)).Vector)
	}
	return nil
}
