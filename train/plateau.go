package train

import (
	"math"

	"github.com/unixpickle/anynet/anysgd"
)

// Plateau is an anysgd.Rater which reduces the learning
// rate when a monitored loss stops improving.
//
// A loss counts as an improvement if it is lower than
// the best loss so far by a relative margin of Threshold.
// After more than Patience epochs without improvement,
// the rate is multiplied by Factor (but never goes below
// MinRate).
type Plateau struct {
	LearningRate float64

	Factor    float64
	Patience  int
	Threshold float64
	MinRate   float64

	best     float64
	badCount int
	started  bool
}

var _ anysgd.Rater = (*Plateau)(nil)

// NewPlateau creates a Plateau with the default factor
// of 0.5 and threshold of 1e-4.
func NewPlateau(rate float64, patience int) *Plateau {
	return &Plateau{
		LearningRate: rate,
		Factor:       0.5,
		Patience:     patience,
		Threshold:    1e-4,
	}
}

// Rate returns the current learning rate.
func (p *Plateau) Rate(epoch float64) float64 {
	return p.LearningRate
}

// Step reports the loss at the end of an epoch.
// It returns true if the learning rate was reduced.
func (p *Plateau) Step(loss float64) bool {
	if !p.started || loss < p.best*(1-p.Threshold) {
		p.started = true
		p.best = loss
		p.badCount = 0
		return false
	}
	p.badCount++
	if p.badCount <= p.Patience {
		return false
	}
	p.badCount = 0
	newRate := math.Max(p.LearningRate*p.Factor, p.MinRate)
	if p.LearningRate-newRate <= 1e-8 {
		return false
	}
	p.LearningRate = newRate
	return true
}
