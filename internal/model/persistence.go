package model

// KindPersistence names the Persistence forecaster.
const KindPersistence = "persistence"

// Persistence forecasts every horizon step as a copy of the last context frame.
type Persistence struct {
	context int
	horizon int
}

// NewPersistence returns the naive last-frame baseline.
func NewPersistence(context, horizon int) *Persistence {
	if context <= 0 {
		context = 1
	}
	if horizon <= 0 {
		horizon = 1
	}
	return &Persistence{context: context, horizon: horizon}
}

// TrainStep reports the mean squared error without updating anything.
func (m *Persistence) TrainStep(batch Batch) float64 {
	return meanSquaredError(m, batch)
}

func (m *Persistence) Predict(context [][]float64) [][]float64 {
	out := make([][]float64, m.horizon)
	if len(context) == 0 {
		return out
	}
	last := context[len(context)-1]
	for h := range out {
		out[h] = append([]float64(nil), last...)
	}
	return out
}

func (m *Persistence) State() State {
	return State{Kind: KindPersistence, Context: m.context, Horizon: m.horizon}
}

func (m *Persistence) Restore(s State) error {
	if s.Kind != KindPersistence || s.Context != m.context || s.Horizon != m.horizon {
		return ErrStateMismatch
	}
	return nil
}

func meanSquaredError(m Forecaster, batch Batch) float64 {
	total := 0.0
	count := 0
	for i, input := range batch.Inputs {
		if i >= len(batch.Targets) {
			break
		}
		pred := m.Predict(input)
		for h, target := range batch.Targets[i] {
			if h >= len(pred) {
				break
			}
			for p, want := range target {
				if p >= len(pred[h]) {
					break
				}
				d := pred[h][p] - want
				total += d * d
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
