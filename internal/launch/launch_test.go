package launch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapbench-train/internal/config"
)

type recorder struct {
	calls      []string
	gotCfg     *config.Config
	gotWorkdir string
	prepErr    error
	trainErr   error
}

func (r *recorder) Prepare(ctx context.Context) error {
	r.calls = append(r.calls, "prepare")
	return r.prepErr
}

func (r *recorder) TrainAndEvaluate(ctx context.Context, cfg *config.Config, workdir string) error {
	r.calls = append(r.calls, "train")
	r.gotCfg = cfg
	r.gotWorkdir = workdir
	return r.trainErr
}

func testFlags() *Flags {
	cfg := config.Default()
	cfg.Data.Roots = []string{"/data"}
	return &Flags{Workdir: "/tmp/run", Config: cfg}
}

func TestMainProgramNameOnly(t *testing.T) {
	rec := &recorder{}
	flags := testFlags()

	require.NoError(t, Main(context.Background(), []string{"prog"}, flags, rec, rec))

	assert.Equal(t, []string{"prepare", "train"}, rec.calls)
	assert.Same(t, flags.Config, rec.gotCfg)
	assert.Equal(t, flags.Workdir, rec.gotWorkdir)
}

func TestMainEmptyArgv(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, Main(context.Background(), nil, testFlags(), rec, rec))
	assert.Equal(t, []string{"prepare", "train"}, rec.calls)
}

func TestMainTooManyArguments(t *testing.T) {
	rec := &recorder{}

	err := Main(context.Background(), []string{"prog", "extra"}, testFlags(), rec, rec)

	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "Too many command-line arguments.", usage.Error())
	assert.Empty(t, rec.calls)
}

func TestMainPassesCollaboratorErrorsThrough(t *testing.T) {
	prepErr := errors.New("no accelerator")
	rec := &recorder{prepErr: prepErr}
	err := Main(context.Background(), []string{"prog"}, testFlags(), rec, rec)
	assert.Same(t, prepErr, err)
	assert.Equal(t, []string{"prepare"}, rec.calls)

	trainErr := errors.New("diverged")
	rec = &recorder{trainErr: trainErr}
	err = Main(context.Background(), []string{"prog"}, testFlags(), rec, rec)
	assert.Same(t, trainErr, err)
	assert.Equal(t, []string{"prepare", "train"}, rec.calls)
}

func TestMainReadsFlagsAtCallTime(t *testing.T) {
	flags := testFlags()
	replaced := config.Default()
	replaced.Data.Roots = []string{"/other"}

	var seen *config.Config
	var seenDir string
	p := PreparerFunc(func(ctx context.Context) error {
		flags.Config = replaced
		flags.Workdir = "/elsewhere"
		return nil
	})
	tr := TrainerFunc(func(ctx context.Context, cfg *config.Config, workdir string) error {
		seen, seenDir = cfg, workdir
		return nil
	})

	require.NoError(t, Main(context.Background(), []string{"prog"}, flags, p, tr))
	assert.Same(t, replaced, seen)
	assert.Equal(t, "/elsewhere", seenDir)
}
