package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes training progress as Prometheus metrics on a private
// registry.
type Exporter struct {
	registry    *prometheus.Registry
	step        prometheus.Gauge
	loss        prometheus.Gauge
	throughput  prometheus.Gauge
	mae         *prometheus.GaugeVec
	mse         *prometheus.GaugeVec
	checkpoints prometheus.Counter
}

// NewExporter creates and registers the training metrics.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zapbench_train_step",
			Help: "Last completed training step",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zapbench_train_loss",
			Help: "Mean squared error of the last training batch",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zapbench_train_windows_per_second",
			Help: "Training windows processed per second over the last log interval",
		}),
		mae: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zapbench_eval_mae",
			Help: "Mean absolute forecast error of the last evaluation",
		}, []string{"split"}),
		mse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zapbench_eval_mse",
			Help: "Mean squared forecast error of the last evaluation",
		}, []string{"split"}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zapbench_checkpoints_saved_total",
			Help: "Checkpoints written by this process",
		}),
	}
	e.registry.MustRegister(e.step, e.loss, e.throughput, e.mae, e.mse, e.checkpoints)
	return e
}

// ObserveTrain records a training log interval ending at step.
func (e *Exporter) ObserveTrain(step int, snap Snapshot) {
	e.step.Set(float64(step))
	e.loss.Set(snap.LastLoss)
	e.throughput.Set(snap.WindowsPerSec)
}

// ObserveEval records evaluation results for split.
func (e *Exporter) ObserveEval(split string, stats *ErrorStats) {
	e.mae.WithLabelValues(split).Set(stats.MAE())
	e.mse.WithLabelValues(split).Set(stats.MSE())
}

// CheckpointSaved counts a written checkpoint.
func (e *Exporter) CheckpointSaved() {
	e.checkpoints.Inc()
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Router routes GET /metrics and GET /health.
func (e *Exporter) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", e.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	return r
}

// Serve exposes Router on addr until ctx is cancelled. It returns the bound
// address and a channel that yields the error the server stopped with, if
// any, and is closed once the server is down.
func (e *Exporter) Serve(ctx context.Context, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	return ln.Addr(), e.serve(ctx, ln), nil
}

func (e *Exporter) serve(ctx context.Context, ln net.Listener) <-chan error {
	srv := &http.Server{Handler: e.Router(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		defer close(errc)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
			errc <- err
		}
	}()
	return errc
}
