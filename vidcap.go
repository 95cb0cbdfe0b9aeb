// Package vidcap provides the video encoder and caption
// decoder networks used for training video captioning
// models.
// Sub-packages implement datasets, batching, training,
// and checkpointing on top of these models.
package vidcap

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Supported encoder and decoder methods.
const (
	MethodResNet = "resnet"
	MethodPlain  = "plain"
	MethodLSTM   = "lstm"
)

// NumParams counts the scalars in a list of parameters.
func NumParams(p anynet.Parameterizer) int {
	var res int
	for _, v := range p.Parameters() {
		res += v.Vector.Len()
	}
	return res
}

// allParameters joins the parameters of all the objects
// that implement anynet.Parameterizer.
func allParameters(objs ...interface{}) []*anydiff.Var {
	var res []*anydiff.Var
	for _, obj := range objs {
		if p, ok := obj.(anynet.Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// Creator returns the creator that parameters of p live
// on, or nil if p has no parameters.
func Creator(p anynet.Parameterizer) anyvec.Creator {
	params := p.Parameters()
	if len(params) == 0 {
		return nil
	}
	return params[0].Vector.Creator()
}

func checkMethod(kind, method string, allowed ...string) error {
	for _, a := range allowed {
		if method == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported %s method: %q", kind, method)
}
