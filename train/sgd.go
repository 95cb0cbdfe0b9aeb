package train

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
)

// An Optimizer applies gradient steps to parameters.
type Optimizer struct {
	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer anysgd.Transformer

	Rater anysgd.Rater
}

// Step transforms the gradient, scales it by the negative
// learning rate, and adds it to the parameters.
//
// The gradient is modified in the process.
func (o *Optimizer) Step(g anydiff.Grad, epoch float64) {
	if o.Transformer != nil {
		g = o.Transformer.Transform(g)
	}
	scaleGradient(g, -o.Rater.Rate(epoch))
	g.AddToVars()
}

func scaleGradient(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}
