// Package launch is the entry point of a training run: it validates the
// positional arguments, then hands off to a Preparer and a Trainer.
package launch

import (
	"context"

	"zapbench-train/internal/config"
)

// Preparer performs runtime setup before training starts.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Trainer runs the training and evaluation loop, persisting artifacts
// under workdir.
type Trainer interface {
	TrainAndEvaluate(ctx context.Context, cfg *config.Config, workdir string) error
}

// PreparerFunc adapts a function to Preparer.
type PreparerFunc func(ctx context.Context) error

func (f PreparerFunc) Prepare(ctx context.Context) error { return f(ctx) }

// TrainerFunc adapts a function to Trainer.
type TrainerFunc func(ctx context.Context, cfg *config.Config, workdir string) error

func (f TrainerFunc) TrainAndEvaluate(ctx context.Context, cfg *config.Config, workdir string) error {
	return f(ctx, cfg, workdir)
}

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// Main is the program body. argv includes the program name in its first
// slot, so anything beyond one element is rejected before p or t run.
// Errors from p and t are returned as they are.
func Main(ctx context.Context, argv []string, flags *Flags, p Preparer, t Trainer) error {
	if len(argv) > 1 {
		return &UsageError{Message: "Too many command-line arguments."}
	}

	if err := p.Prepare(ctx); err != nil {
		return err
	}
	return t.TrainAndEvaluate(ctx, flags.Config, flags.Workdir)
}
