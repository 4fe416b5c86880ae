package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zapbench-train/internal/launch"
	"zapbench-train/internal/logging"
	"zapbench-train/internal/prep"
	"zapbench-train/internal/trainer"
)

// collaborators builds the preparation and training routines once flags
// are parsed.
type collaborators func(flags *launch.Flags, logger *logging.Logger, out io.Writer) (launch.Preparer, launch.Trainer)

func defaultCollaborators(flags *launch.Flags, logger *logging.Logger, out io.Writer) (launch.Preparer, launch.Trainer) {
	return prep.New(flags, logger), trainer.New(logger, out, flags.ProcessID, flags.NumProcesses)
}

func newRootCmd(out, errOut io.Writer, build collaborators) *cobra.Command {
	var flags *launch.Flags
	cmd := &cobra.Command{
		Use:   "zapbench-train",
		Short: "Train and evaluate a video forecasting model",
		Long: `zapbench-train trains a forecasting model on recorded frame sequences and
evaluates it against a persistence baseline. Checkpoints, metrics and results
are written under --workdir.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.Resolve()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(flags.LogMode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			p, t := build(flags, logger, out)
			argv := append([]string{cmd.Name()}, args...)
			return launch.Main(cmd.Context(), argv, flags, p, t)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	flags = launch.DefineFlags(cmd.Flags())
	return cmd
}

// run executes the command and maps its error to an exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer, build collaborators) int {
	cmd := newRootCmd(out, errOut, build)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usage *launch.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(errOut, "FATAL Flags parsing error: %s\n", usage.Message)
		fmt.Fprint(errOut, cmd.UsageString())
		return 1
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultCollaborators)
	stop()
	os.Exit(code)
}
