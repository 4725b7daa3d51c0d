package reps

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoPredictions is returned for an empty classifier result.
	ErrNoPredictions = errors.New("classifier returned no predictions")
	// ErrBadProbability is returned for a probability that is NaN or outside [0, 1].
	ErrBadProbability = errors.New("classifier returned an invalid probability")
)

// Prediction is one class of a classifier result.
type Prediction struct {
	Label       string  `json:"label" yaml:"label"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Top validates a classifier result and returns its most probable class.
// On ties the earlier class wins.
func Top(predictions []Prediction) (Prediction, error) {
	if len(predictions) == 0 {
		return Prediction{}, ErrNoPredictions
	}

	best := -1
	for i, p := range predictions {
		if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
			return Prediction{}, fmt.Errorf("%w: %q=%v", ErrBadProbability, p.Label, p.Probability)
		}
		if best < 0 || p.Probability > predictions[best].Probability {
			best = i
		}
	}

	return predictions[best], nil
}

// Percent rounds a probability to a whole percentage.
func Percent(probability float64) int {
	return int(math.Round(probability * 100))
}
