package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"zapbench-train/internal/checkpoint"
	"zapbench-train/internal/config"
	"zapbench-train/internal/dataset"
	"zapbench-train/internal/logging"
	"zapbench-train/internal/metrics"
	"zapbench-train/internal/model"
)

// Artifact locations under the workdir.
const (
	CheckpointDir = "checkpoints"
	MetricsFile   = "metrics.jsonl"
	ResultsFile   = "results.json"
)

// ErrDiverged is returned when a training step produces a non-finite loss.
var ErrDiverged = errors.New("trainer: loss diverged")

// Trainer implements launch.Trainer for the video forecasting models.
type Trainer struct {
	Logger *logging.Logger
	// Out receives the final results table; nothing is printed when nil.
	Out          io.Writer
	ProcessIndex int
	ProcessCount int
	// Exporter receives progress metrics; one is created when nil.
	Exporter *metrics.Exporter
}

// New returns a Trainer for process index of count.
func New(logger *logging.Logger, out io.Writer, index, count int) *Trainer {
	return &Trainer{Logger: logger, Out: out, ProcessIndex: index, ProcessCount: count}
}

func (t *Trainer) lead() bool { return t.ProcessIndex == 0 }

// TrainAndEvaluate trains cfg.Model on the recordings in cfg.Data.Roots,
// resuming from the newest checkpoint under workdir, then evaluates it.
func (t *Trainer) TrainAndEvaluate(ctx context.Context, cfg *config.Config, workdir string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("trainer: %w", err)
	}
	if workdir == "" {
		return errors.New("trainer: workdir is empty")
	}
	if t.Exporter == nil {
		t.Exporter = metrics.NewExporter()
	}
	log := t.Logger.With("process_index", t.ProcessIndex)

	recs, err := loadRecordings(ctx, cfg, log)
	if err != nil {
		return err
	}
	trainGroups := dataset.RangeRefs(recs, trainRange, cfg.Data.TrainFraction, cfg.Data.ValFraction, cfg.ContextFrames, cfg.Horizon)
	for i, g := range trainGroups {
		if len(g) == 0 {
			return fmt.Errorf("trainer: recording %s has no training windows (%d frames)", recs[i].Name, len(recs[i].Frames))
		}
	}
	valGroups := dataset.RangeRefs(recs, valRange, cfg.Data.TrainFraction, cfg.Data.ValFraction, cfg.ContextFrames, cfg.Horizon)

	mdl, err := model.New(cfg.Model, cfg.ContextFrames, cfg.Horizon, cfg.LearningRate, cfg.Seed)
	if err != nil {
		return err
	}

	ckpts, err := checkpoint.NewManager(filepath.Join(workdir, CheckpointDir), cfg.MaxCheckpoints)
	if err != nil {
		return err
	}
	start, err := restore(ckpts, mdl)
	if err != nil {
		return err
	}
	if start > 0 {
		log.Info("resumed from checkpoint", "step", start)
	}

	sampler, err := dataset.NewSampler(dataset.SamplerOptions{
		Groups:     trainGroups,
		Seed:       cfg.Seed + int64(start),
		ShardIndex: t.ProcessIndex,
		ShardCount: t.ProcessCount,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		addr, serveErr, err := t.Exporter.Serve(serveCtx, cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("trainer: serve metrics: %w", err)
		}
		log.Info("serving metrics", "addr", addr.String())
		go func() {
			for err := range serveErr {
				log.Error("metrics server stopped", "addr", addr.String(), "error", err)
			}
		}()
	}

	var writer *metrics.Writer
	if t.lead() {
		writer, err = metrics.OpenWriter(filepath.Join(workdir, MetricsFile))
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	var window metrics.Window
	lastSaved := start
	for step := start + 1; step <= cfg.NumSteps; step++ {
		if err := ctx.Err(); err != nil {
			if step-1 > lastSaved {
				if serr := t.save(ckpts, step-1, mdl, log); serr != nil {
					return errors.Join(err, serr)
				}
			}
			return err
		}

		startData := time.Now()
		refs := sampler.Next(cfg.BatchSize)
		batch := dataset.Batch(recs, refs, cfg.ContextFrames, cfg.Horizon)
		dataTime := time.Since(startData)

		startCompute := time.Now()
		loss := mdl.TrainStep(batch)
		computeTime := time.Since(startCompute)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("%w at step %d", ErrDiverged, step)
		}

		window.Record(len(refs), dataTime, computeTime, loss)

		if step%cfg.LogEvery == 0 {
			snap := window.Snapshot()
			log.Info("train",
				"step", step,
				"epoch", sampler.Epoch(),
				"windows_per_sec", snap.WindowsPerSec,
				"data_ms", snap.AvgDataMS,
				"compute_ms", snap.AvgComputeMS,
				"loss", snap.LastLoss,
				"mean_loss", snap.MeanLoss,
			)
			t.Exporter.ObserveTrain(step, snap)
			if err := writeMetrics(writer, step, "train", map[string]float64{
				"loss":            snap.LastLoss,
				"mean_loss":       snap.MeanLoss,
				"windows_per_sec": snap.WindowsPerSec,
			}); err != nil {
				return err
			}
		}

		if step%cfg.EvalEvery == 0 {
			stats, _ := evaluate(mdl, recs, valGroups, cfg)
			if stats.Count() > 0 {
				log.Info("eval", "step", step, "split", "val", "mae", stats.MAE(), "mse", stats.MSE())
				t.Exporter.ObserveEval("val", stats)
				if err := writeMetrics(writer, step, "val", map[string]float64{"mae": stats.MAE(), "mse": stats.MSE()}); err != nil {
					return err
				}
			}
		}

		if step%cfg.CheckpointEvery == 0 || step == cfg.NumSteps {
			if err := t.save(ckpts, step, mdl, log); err != nil {
				return err
			}
			lastSaved = step
		}
	}
	if start >= cfg.NumSteps {
		log.Info("training already complete", "step", start, "num_steps", cfg.NumSteps)
	}

	report := t.finalReport(mdl, recs, cfg, max(start, cfg.NumSteps))
	for _, r := range report.Results {
		if r.Windows > 0 {
			t.Exporter.ObserveEval(r.Split+"/"+r.Model, &r.stats)
		}
	}
	if !t.lead() {
		return nil
	}
	if err := writeReport(filepath.Join(workdir, ResultsFile), report); err != nil {
		return err
	}
	if t.Out != nil {
		return renderReport(t.Out, report)
	}
	return nil
}

func restore(ckpts *checkpoint.Manager, mdl model.Forecaster) (int, error) {
	ckpt, err := ckpts.Latest()
	if errors.Is(err, checkpoint.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := mdl.Restore(ckpt.Model); err != nil {
		return 0, fmt.Errorf("trainer: restore step %d: %w", ckpt.Step, err)
	}
	return ckpt.Step, nil
}

func (t *Trainer) save(ckpts *checkpoint.Manager, step int, mdl model.Forecaster, log *logging.Logger) error {
	if !t.lead() {
		return nil
	}
	if err := ckpts.Save(step, mdl.State()); err != nil {
		return err
	}
	t.Exporter.CheckpointSaved()
	log.Info("checkpoint saved", "step", step)
	return nil
}

func writeMetrics(w *metrics.Writer, step int, split string, values map[string]float64) error {
	if w == nil {
		return nil
	}
	return w.Write(step, split, values)
}

func loadRecordings(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]*dataset.Recording, error) {
	recs := make([]*dataset.Recording, 0, len(cfg.Data.Roots))
	for _, root := range cfg.Data.Roots {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("trainer: data root: %w", err)
		}
		rec, err := dataset.LoadRecording(ctx, root, dataset.LoadOptions{
			Height:     cfg.Data.Height,
			Width:      cfg.Data.Width,
			NumWorkers: cfg.Data.NumWorkers,
		})
		if err != nil {
			return nil, err
		}
		log.Info("recording loaded", "root", root, "frames", len(rec.Frames))
		recs = append(recs, rec)
	}
	return recs, nil
}

func trainRange(s dataset.Splits) dataset.Range { return s.Train }
func valRange(s dataset.Splits) dataset.Range   { return s.Val }
func testRange(s dataset.Splits) dataset.Range  { return s.Test }
