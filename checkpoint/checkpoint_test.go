package checkpoint

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func randomParams(sizes ...int) []*anydiff.Var {
	c := anyvec32.CurrentCreator()
	var res []*anydiff.Var
	for _, size := range sizes {
		v := c.MakeVector(size)
		anyvec.Rand(v, anyvec.Normal, nil)
		res = append(res, anydiff.NewVar(v))
	}
	return res
}

func TestLayoutPath(t *testing.T) {
	l := &Layout{
		ModelRoot:  "/models",
		Method:     "resnet",
		Param:      18,
		BatchSize:  32,
		ImageSize:  112,
		ClipLength: 16,
	}
	expected := filepath.FromSlash("/models/resnet_18/b032_s112_l016/ep0007.ckpt")
	if actual := l.Path(7); actual != expected {
		t.Errorf("expected %s but got %s", expected, actual)
	}
}

func TestSaveLoad(t *testing.T) {
	l := &Layout{ModelRoot: t.TempDir(), Method: "lstm", Param: 2, BatchSize: 4,
		ImageSize: 8, ClipLength: 2}
	params := randomParams(3, 7, 1)
	if l.Exists(1) {
		t.Fatal("checkpoint should not exist yet")
	}
	if err := l.Save(1, params); err != nil {
		t.Fatal(err)
	}
	if !l.Exists(1) {
		t.Fatal("checkpoint should exist")
	}

	loaded := randomParams(3, 7, 1)
	if err := l.Load(1, loaded); err != nil {
		t.Fatal(err)
	}
	for i, p := range params {
		expected := p.Vector.Data()
		actual := loaded[i].Vector.Data()
		if !reflect.DeepEqual(actual, expected) {
			t.Errorf("parameter %d: expected %v but got %v", i, expected, actual)
		}
	}
}

func TestLoadMismatch(t *testing.T) {
	params := randomParams(3, 4)
	data, err := Marshal(params)
	if err != nil {
		t.Fatal(err)
	}

	wrongLen := randomParams(3, 5)
	before := wrongLen[0].Vector.Data()
	if err := Unmarshal(data, wrongLen); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected mismatch but got %v", err)
	}
	if !reflect.DeepEqual(wrongLen[0].Vector.Data(), before) {
		t.Error("parameters were modified by a failed load")
	}

	if err := Unmarshal(data, randomParams(3)); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected mismatch but got %v", err)
	}
}

func TestEpochs(t *testing.T) {
	l := &Layout{ModelRoot: t.TempDir(), Method: "resnet", Param: 1, BatchSize: 2,
		ImageSize: 4, ClipLength: 2}
	if epochs, err := l.Epochs(); err != nil || len(epochs) != 0 {
		t.Fatalf("expected no epochs but got %v (%v)", epochs, err)
	}
	params := randomParams(2)
	for _, epoch := range []int{12, 3, 7} {
		if err := l.Save(epoch, params); err != nil {
			t.Fatal(err)
		}
	}
	epochs, err := l.Epochs()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(epochs, []int{3, 7, 12}) {
		t.Errorf("unexpected epochs: %v", epochs)
	}
}
