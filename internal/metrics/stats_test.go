package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, 1.2)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, 0.8)
	snap := w.Snapshot()
	assert.InDelta(t, 2133.3333, snap.WindowsPerSec, 1)
	assert.InDelta(t, 15.0, snap.AvgDataMS, 1e-6)
	require.Zero(t, w.windows, "window was not reset")
	require.Zero(t, w.steps, "window was not reset")
	assert.Equal(t, 0.8, snap.LastLoss)
	assert.InDelta(t, 1.0, snap.MeanLoss, 1e-12)

	empty := w.Snapshot()
	assert.Zero(t, empty.WindowsPerSec)
	assert.Zero(t, empty.MeanLoss)
}

func TestErrorStats(t *testing.T) {
	var e ErrorStats
	assert.Zero(t, e.MAE())
	assert.Zero(t, e.MSE())

	e.Add([]float64{1, 2, 3}, []float64{0, 2, 5})
	e.Add([]float64{1}, []float64{1, 9})
	assert.Equal(t, 4, e.Count())
	assert.InDelta(t, 3.0/4, e.MAE(), 1e-12)
	assert.InDelta(t, 5.0/4, e.MSE(), 1e-12)
}
