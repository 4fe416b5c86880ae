package metrics

import "time"

// Window accumulates throughput, timing and loss across the training steps
// of one log interval.
type Window struct {
	windows  int
	data     time.Duration
	compute  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
}

// Record adds one training step that consumed n windows.
func (w *Window) Record(n int, dataTime, computeTime time.Duration, loss float64) {
	w.windows += n
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	total := w.data + w.compute
	if total > 0 {
		snap.WindowsPerSec = float64(w.windows) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
		snap.MeanLoss = w.lossSum / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	w.windows = 0
	w.data = 0
	w.compute = 0
	w.steps = 0
	w.lossSum = 0
	return snap
}

// Snapshot summarises one log interval. MeanLoss averages the per-step
// training loss over the interval; LastLoss is the final step's.
type Snapshot struct {
	WindowsPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
	MeanLoss      float64
	LastLoss      float64
}

// ErrorStats accumulates absolute and squared forecast errors.
type ErrorStats struct {
	absSum float64
	sqSum  float64
	count  int
}

// Add folds one predicted frame against its target. Extra pixels on either
// side are ignored.
func (e *ErrorStats) Add(pred, target []float64) {
	n := len(pred)
	if len(target) < n {
		n = len(target)
	}
	for i := 0; i < n; i++ {
		d := pred[i] - target[i]
		if d < 0 {
			e.absSum -= d
		} else {
			e.absSum += d
		}
		e.sqSum += d * d
	}
	e.count += n
}

// Count returns the number of pixel errors seen.
func (e *ErrorStats) Count() int { return e.count }

// MAE returns the mean absolute error, or 0 before any Add.
func (e *ErrorStats) MAE() float64 {
	if e.count == 0 {
		return 0
	}
	return e.absSum / float64(e.count)
}

// MSE returns the mean squared error, or 0 before any Add.
func (e *ErrorStats) MSE() float64 {
	if e.count == 0 {
		return 0
	}
	return e.sqSum / float64(e.count)
}
