package trainer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"zapbench-train/internal/config"
	"zapbench-train/internal/dataset"
	"zapbench-train/internal/metrics"
	"zapbench-train/internal/model"
)

// Result is one row of the final evaluation.
type Result struct {
	Split   string  `json:"split"`
	Model   string  `json:"model"`
	Windows int     `json:"windows"`
	MAE     float64 `json:"mae"`
	MSE     float64 `json:"mse"`

	stats metrics.ErrorStats
}

// Report is written to results.json once training finishes.
type Report struct {
	Step    int      `json:"step"`
	Results []Result `json:"results"`
}

// evaluate scores mdl on the windows in groups, in order, and returns the
// number of windows scored. A positive cfg.EvalBatches caps the count at
// EvalBatches*BatchSize.
func evaluate(mdl model.Forecaster, recs []*dataset.Recording, groups [][]dataset.WindowRef, cfg *config.Config) (*metrics.ErrorStats, int) {
	limit := -1
	if cfg.EvalBatches > 0 {
		limit = cfg.EvalBatches * cfg.BatchSize
	}
	stats := &metrics.ErrorStats{}
	windows := 0
	for _, group := range groups {
		for _, ref := range group {
			if limit >= 0 && windows >= limit {
				return stats, windows
			}
			batch := dataset.Batch(recs, []dataset.WindowRef{ref}, cfg.ContextFrames, cfg.Horizon)
			pred := mdl.Predict(batch.Inputs[0])
			for h, target := range batch.Targets[0] {
				if h < len(pred) {
					stats.Add(pred[h], target)
				}
			}
			windows++
		}
	}
	return stats, windows
}

func (t *Trainer) finalReport(mdl model.Forecaster, recs []*dataset.Recording, cfg *config.Config, step int) Report {
	baseline := model.NewPersistence(cfg.ContextFrames, cfg.Horizon)
	rows := []struct {
		split string
		pick  func(dataset.Splits) dataset.Range
		name  string
		mdl   model.Forecaster
	}{
		{"val", valRange, cfg.Model, mdl},
		{"test", testRange, cfg.Model, mdl},
		{"test", testRange, model.KindPersistence + " (baseline)", baseline},
	}

	report := Report{Step: step}
	for _, row := range rows {
		groups := dataset.RangeRefs(recs, row.pick, cfg.Data.TrainFraction, cfg.Data.ValFraction, cfg.ContextFrames, cfg.Horizon)
		stats, windows := evaluate(row.mdl, recs, groups, cfg)
		r := Result{Split: row.split, Model: row.name, Windows: windows, stats: *stats}
		if windows > 0 {
			r.MAE = stats.MAE()
			r.MSE = stats.MSE()
		}
		t.Logger.Info("final eval", "split", r.Split, "model", r.Model, "windows", r.Windows, "mae", r.MAE, "mse", r.MSE)
		report.Results = append(report.Results, r)
	}
	return report
}

func writeReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("trainer: marshal results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("trainer: write results: %w", err)
	}
	return nil
}

func renderReport(w io.Writer, report Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Split", "Model", "Windows", "MAE", "MSE")
	for _, r := range report.Results {
		if err := table.Append(
			r.Split,
			r.Model,
			strconv.Itoa(r.Windows),
			fmt.Sprintf("%.6f", r.MAE),
			fmt.Sprintf("%.6f", r.MSE),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
