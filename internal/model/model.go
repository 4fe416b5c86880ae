package model

import (
	"errors"
	"fmt"
)

// Batch is a minibatch of forecasting windows. Inputs[b][c][p] holds pixel p
// of context frame c; Targets[b][h][p] the frame h steps past the context.
type Batch struct {
	Inputs  [][][]float64
	Targets [][][]float64
}

// Forecaster defines the training and inference surface used by the trainer.
type Forecaster interface {
	TrainStep(batch Batch) float64
	Predict(context [][]float64) [][]float64
	State() State
	Restore(State) error
}

// State is the serializable form of a Forecaster.
type State struct {
	Kind    string      `json:"kind"`
	Context int         `json:"context"`
	Horizon int         `json:"horizon"`
	Weights [][]float64 `json:"weights,omitempty"`
	Bias    []float64   `json:"bias,omitempty"`
}

// ErrStateMismatch is returned by Restore when the state was produced by a
// differently shaped model.
var ErrStateMismatch = errors.New("model: state does not match model shape")

// New constructs the forecaster named by kind.
func New(kind string, context, horizon int, lr float64, seed int64) (Forecaster, error) {
	switch kind {
	case KindLinear:
		return NewLinear(context, horizon, lr, seed), nil
	case KindPersistence:
		return NewPersistence(context, horizon), nil
	default:
		return nil, fmt.Errorf("model: unknown kind %q", kind)
	}
}
