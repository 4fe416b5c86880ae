package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapbench-train/internal/model"
)

func TestSaveLatestAndPrune(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "checkpoints"), 2)
	require.NoError(t, err)

	_, err = m.Latest()
	require.ErrorIs(t, err, ErrNotFound)

	lin := model.NewLinear(2, 1, 0.1, 1)
	for _, step := range []int{10, 20, 30} {
		require.NoError(t, m.Save(step, lin.State()))
	}

	steps, err := m.Steps()
	require.NoError(t, err)
	assert.Equal(t, []int{20, 30}, steps)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, 30, latest.Step)
	assert.Equal(t, lin.State(), latest.Model)
	assert.False(t, latest.SavedAt.IsZero())

	restored := model.NewLinear(2, 1, 0.1, 5)
	require.NoError(t, restored.Restore(latest.Model))
}

func TestStepsIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 3)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ckpt-123.tmp"), nil, 0o644))
	require.NoError(t, m.Save(1, model.NewPersistence(1, 1).State()))

	steps, err := m.Steps()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, steps)
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckpt-00000005.json"), []byte("{"), 0o644))

	_, err = m.Latest()
	require.ErrorContains(t, err, "decode step 5")

	_, err = m.Load(6)
	require.ErrorIs(t, err, ErrNotFound)
}
