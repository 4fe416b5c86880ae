package launch

import (
	"errors"

	"github.com/spf13/pflag"

	"zapbench-train/internal/config"
)

// Flags is the flag registry of a training run. It is built once at
// startup and passed explicitly to whatever needs it.
type Flags struct {
	ConfigPath    string
	Overrides     []string
	Workdir       string
	Backend       string
	BackendTarget string
	ProcessID     int
	NumProcesses  int
	Coordinator   string
	LogMode       string

	// Config is filled in by Resolve after parsing.
	Config *config.Config
}

// DefineFlags registers the training flags on fs.
func DefineFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "training configuration file (YAML, JSON or TOML); built-in defaults when empty")
	fs.StringArrayVar(&f.Overrides, "set", nil, "override a configuration value, e.g. --set num_steps=100 (repeatable)")
	fs.StringVar(&f.Workdir, "workdir", "", "directory for checkpoints, metrics and run metadata")
	fs.StringVar(&f.Backend, "backend", "cpu", "compute backend: cpu, gpu or tpu")
	fs.StringVar(&f.BackendTarget, "backend-target", "", "address of a remote backend, if any")
	fs.IntVar(&f.ProcessID, "process-id", 0, "index of this process in a multi-process run")
	fs.IntVar(&f.NumProcesses, "num-processes", 1, "number of processes in the run")
	fs.StringVar(&f.Coordinator, "coordinator", "", "host:port of the coordinator for multi-process runs")
	fs.StringVar(&f.LogMode, "log-mode", "dev", "log format: dev or prod")
	return f
}

// Resolve reads the configuration named by the flags into f.Config. Values
// are not validated here; the trainer does that when it runs.
func (f *Flags) Resolve() error {
	if f.Workdir == "" {
		return errors.New("--workdir is required")
	}
	cfg, err := config.Read(f.ConfigPath, f.Overrides)
	if err != nil {
		return err
	}
	f.Config = cfg
	return nil
}
