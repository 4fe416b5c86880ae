// Package prep readies the process for a training run: it checks the
// process topology, creates the working directory and records what is
// about to run.
package prep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"zapbench-train/internal/launch"
	"zapbench-train/internal/logging"
)

// Artifact names written to the workdir by the lead process.
const (
	RunInfoFile = "run.json"
	ConfigFile  = "config.yaml"
)

var backends = map[string]bool{"cpu": true, "gpu": true, "tpu": true}

// ProcessInfo places this process within a multi-process run.
type ProcessInfo struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

// Lead reports whether this process writes shared artifacts.
func (p ProcessInfo) Lead() bool { return p.Index == 0 }

// RunInfo is recorded to run.json at the start of a run.
type RunInfo struct {
	RunID         string      `json:"run_id"`
	StartedAt     time.Time   `json:"started_at"`
	Process       ProcessInfo `json:"process"`
	Coordinator   string      `json:"coordinator,omitempty"`
	Backend       string      `json:"backend"`
	BackendTarget string      `json:"backend_target,omitempty"`
	Host          HostInfo    `json:"host"`
}

// Prep implements launch.Preparer.
type Prep struct {
	Flags  *launch.Flags
	Logger *logging.Logger
	// Probe gathers host facts; ProbeHost when nil.
	Probe func(ctx context.Context) (HostInfo, []error)

	now   func() time.Time
	newID func() string
	run   *RunInfo
}

// New returns a Prep reading flags.
func New(flags *launch.Flags, logger *logging.Logger) *Prep {
	return &Prep{Flags: flags, Logger: logger}
}

// Run returns what Prepare recorded, or nil before it has succeeded.
func (p *Prep) Run() *RunInfo {
	return p.run
}

func (p *Prep) Prepare(ctx context.Context) error {
	f := p.Flags
	if f == nil {
		return errors.New("prep: no flags")
	}
	proc, err := processInfo(f)
	if err != nil {
		return err
	}
	if !backends[f.Backend] {
		return fmt.Errorf("prep: unknown backend %q", f.Backend)
	}
	if err := ensureDir(f.Workdir); err != nil {
		return err
	}

	probe := p.Probe
	if probe == nil {
		probe = ProbeHost
	}
	host, probeErrs := probe(ctx)
	for _, perr := range probeErrs {
		p.Logger.Warn("host probe incomplete", "error", perr)
	}

	now, newID := p.now, p.newID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	info := RunInfo{
		RunID:         newID(),
		StartedAt:     now().UTC(),
		Process:       proc,
		Coordinator:   f.Coordinator,
		Backend:       f.Backend,
		BackendTarget: f.BackendTarget,
		Host:          host,
	}

	p.Logger.Info("process prepared",
		"run_id", info.RunID,
		"process_index", proc.Index,
		"process_count", proc.Count,
		"backend", info.Backend,
		"backend_target", info.BackendTarget,
		"host", host.Hostname,
		"cpus", host.LogicalCPUs,
		"memory_bytes", host.TotalMemoryBytes,
	)

	if proc.Lead() {
		if err := writeJSON(filepath.Join(f.Workdir, RunInfoFile), info); err != nil {
			return err
		}
		if f.Config != nil {
			if err := f.Config.Save(filepath.Join(f.Workdir, ConfigFile)); err != nil {
				return err
			}
		}
	}

	p.run = &info
	return nil
}

func processInfo(f *launch.Flags) (ProcessInfo, error) {
	if f.NumProcesses < 1 {
		return ProcessInfo{}, fmt.Errorf("prep: num processes must be >= 1 (got %d)", f.NumProcesses)
	}
	if f.ProcessID < 0 || f.ProcessID >= f.NumProcesses {
		return ProcessInfo{}, fmt.Errorf("prep: process id %d out of range [0, %d)", f.ProcessID, f.NumProcesses)
	}
	if f.NumProcesses > 1 && f.Coordinator == "" {
		return ProcessInfo{}, errors.New("prep: a coordinator address is required for multi-process runs")
	}
	return ProcessInfo{Index: f.ProcessID, Count: f.NumProcesses}, nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return errors.New("prep: workdir is empty")
	}
	if st, err := os.Stat(dir); err == nil && !st.IsDir() {
		return fmt.Errorf("prep: workdir %s is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prep: create workdir: %w", err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("prep: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("prep: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
