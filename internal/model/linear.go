package model

import (
	"math/rand"
)

// KindLinear names the Linear forecaster.
const KindLinear = "linear"

// Linear is a global linear autoregressive forecaster. Each horizon step is
// an affine combination of the context frames, shared across pixels:
//
//	y[h][p] = bias[h] + sum_c weights[h][c] * x[c][p]
type Linear struct {
	context int
	horizon int
	weights [][]float64
	bias    []float64
	lr      float64
}

// NewLinear constructs the model initialised as persistence plus small
// seeded noise.
func NewLinear(context, horizon int, lr float64, seed int64) *Linear {
	if context <= 0 {
		context = 1
	}
	if horizon <= 0 {
		horizon = 1
	}
	if lr <= 0 {
		lr = 0.01
	}
	rng := rand.New(rand.NewSource(seed))
	weights := make([][]float64, horizon)
	for h := range weights {
		weights[h] = make([]float64, context)
		for c := range weights[h] {
			weights[h][c] = (rng.Float64()*2 - 1) * 0.01
		}
		weights[h][context-1] += 1
	}
	return &Linear{
		context: context,
		horizon: horizon,
		weights: weights,
		bias:    make([]float64, horizon),
		lr:      lr,
	}
}

// TrainStep executes one SGD step on mean squared error and returns the
// loss measured before the update. Windows with the wrong number of context
// or target frames are skipped.
func (m *Linear) TrainStep(batch Batch) float64 {
	gradW := make([][]float64, m.horizon)
	for h := range gradW {
		gradW[h] = make([]float64, m.context)
	}
	gradB := make([]float64, m.horizon)

	totalLoss := 0.0
	count := 0
	for i, input := range batch.Inputs {
		if i >= len(batch.Targets) || len(input) != m.context || len(batch.Targets[i]) != m.horizon {
			continue
		}
		pred := m.Predict(input)
		for h, target := range batch.Targets[i] {
			for p, want := range target {
				if p >= len(pred[h]) {
					break
				}
				diff := pred[h][p] - want
				totalLoss += diff * diff
				count++
				g := 2 * diff
				gradB[h] += g
				for c := 0; c < m.context; c++ {
					gradW[h][c] += g * input[c][p]
				}
			}
		}
	}
	if count == 0 {
		return 0
	}

	scale := m.lr / float64(count)
	for h := 0; h < m.horizon; h++ {
		m.bias[h] -= scale * gradB[h]
		for c := 0; c < m.context; c++ {
			m.weights[h][c] -= scale * gradW[h][c]
		}
	}
	return totalLoss / float64(count)
}

func (m *Linear) Predict(context [][]float64) [][]float64 {
	out := make([][]float64, m.horizon)
	if len(context) != m.context {
		return out
	}
	pixels := len(context[0])
	for _, frame := range context {
		if len(frame) < pixels {
			pixels = len(frame)
		}
	}
	for h := 0; h < m.horizon; h++ {
		row := make([]float64, pixels)
		for p := range row {
			sum := m.bias[h]
			for c := 0; c < m.context; c++ {
				sum += m.weights[h][c] * context[c][p]
			}
			row[p] = sum
		}
		out[h] = row
	}
	return out
}

func (m *Linear) State() State {
	weights := make([][]float64, m.horizon)
	for h := range weights {
		weights[h] = append([]float64(nil), m.weights[h]...)
	}
	return State{
		Kind:    KindLinear,
		Context: m.context,
		Horizon: m.horizon,
		Weights: weights,
		Bias:    append([]float64(nil), m.bias...),
	}
}

func (m *Linear) Restore(s State) error {
	if s.Kind != KindLinear || s.Context != m.context || s.Horizon != m.horizon {
		return ErrStateMismatch
	}
	if len(s.Weights) != m.horizon || len(s.Bias) != m.horizon {
		return ErrStateMismatch
	}
	for h := range s.Weights {
		if len(s.Weights[h]) != m.context {
			return ErrStateMismatch
		}
	}
	for h := range m.weights {
		copy(m.weights[h], s.Weights[h])
	}
	copy(m.bias, s.Bias)
	return nil
}
