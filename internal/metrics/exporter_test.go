package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterObserve(t *testing.T) {
	e := NewExporter()
	e.ObserveTrain(40, Snapshot{LastLoss: 0.25, WindowsPerSec: 12})
	var stats ErrorStats
	stats.Add([]float64{1}, []float64{0.5})
	e.ObserveEval("val", &stats)
	e.CheckpointSaved()
	e.CheckpointSaved()

	assert.Equal(t, 40.0, testutil.ToFloat64(e.step))
	assert.Equal(t, 0.25, testutil.ToFloat64(e.loss))
	assert.Equal(t, 12.0, testutil.ToFloat64(e.throughput))
	assert.Equal(t, 0.5, testutil.ToFloat64(e.mae.WithLabelValues("val")))
	assert.Equal(t, 0.25, testutil.ToFloat64(e.mse.WithLabelValues("val")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.checkpoints))

	count, err := testutil.GatherAndCount(e.Registry(), "zapbench_eval_mae")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExporterServe(t *testing.T) {
	e := NewExporter()
	e.ObserveTrain(3, Snapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, errc, err := e.Serve(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "zapbench_train_step 3"), string(body))

	cancel()
	select {
	case err, ok := <-errc:
		assert.False(t, ok, "unexpected serve error %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestExporterServeReportsFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	select {
	case err, ok := <-NewExporter().serve(ctx, ln):
		require.True(t, ok)
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestExporterRouter(t *testing.T) {
	e := NewExporter()
	router := e.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
