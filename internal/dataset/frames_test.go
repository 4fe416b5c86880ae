package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	features, err := decodeFrame(grayPNG(t, 255, 16), 4, 8)
	require.NoError(t, err)
	require.Len(t, features, 32)
	for _, v := range features {
		assert.InDelta(t, 1.0, v, 1e-9)
	}

	_, err = decodeFrame([]byte("not an image"), 4, 4)
	require.Error(t, err)
}

func TestLoadRecordingDirectoryKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	levels := []uint8{0, 51, 102, 153, 204, 255}
	for i, level := range levels {
		mustWrite(t, filepath.Join(dir, fmt.Sprintf("frame-%06d.png", i)), grayPNG(t, level, 8))
	}

	rec, err := LoadRecording(context.Background(), dir, LoadOptions{Height: 2, Width: 2, NumWorkers: 3})
	require.NoError(t, err)
	require.Equal(t, dir, rec.Name)
	require.Len(t, rec.Frames, len(levels))
	for i, level := range levels {
		require.Len(t, rec.Frames[i], 4)
		assert.InDelta(t, float64(level)/255, rec.Frames[i][0], 1e-6, "frame %d", i)
	}
}

func TestLoadRecordingArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.tar")
	mustArchive(t, path, map[string][]byte{
		"clip/frame-000001.png": grayPNG(t, 255, 4),
		"clip/frame-000000.png": grayPNG(t, 0, 4),
		"clip/README":           []byte("ignored"),
	})

	rec, err := LoadRecording(context.Background(), path, LoadOptions{Height: 1, Width: 1})
	require.NoError(t, err)
	require.Len(t, rec.Frames, 2)
	assert.InDelta(t, 0.0, rec.Frames[0][0], 1e-9)
	assert.InDelta(t, 1.0, rec.Frames[1][0], 1e-9)
}

func TestLoadRecordingArchiveRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.tar")
	mustArchive(t, path, map[string][]byte{
		"a/frame-000000.png": grayPNG(t, 0, 2),
		"b/frame-000000.png": grayPNG(t, 255, 2),
	})

	_, err := LoadRecording(context.Background(), path, LoadOptions{Height: 1, Width: 1})
	require.ErrorIs(t, err, ErrDuplicateFrame)
	require.ErrorContains(t, err, "frame-000000.png")
}

func TestLoadRecordingDirectoryRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "frame-000000.png"), grayPNG(t, 0, 2))
	mustWrite(t, filepath.Join(dir, "nested", "frame-000000.png"), grayPNG(t, 255, 2))

	_, err := LoadRecording(context.Background(), dir, LoadOptions{Height: 1, Width: 1})
	require.ErrorIs(t, err, ErrDuplicateFrame)
}

func TestLoadRecordingErrors(t *testing.T) {
	ctx := context.Background()

	_, err := LoadRecording(ctx, t.TempDir(), LoadOptions{Height: 2, Width: 2})
	require.ErrorIs(t, err, ErrNoFrames)

	_, err = LoadRecording(ctx, t.TempDir(), LoadOptions{Height: 0, Width: 2})
	require.Error(t, err)

	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "frame-000000.png"), []byte("garbage"))
	_, err = LoadRecording(ctx, dir, LoadOptions{Height: 2, Width: 2})
	require.ErrorContains(t, err, "frame-000000.png")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	path := filepath.Join(t.TempDir(), "session.tar")
	mustArchive(t, path, map[string][]byte{"frame-000000.png": grayPNG(t, 0, 2)})
	_, err = LoadRecording(cancelled, path, LoadOptions{Height: 1, Width: 1})
	require.ErrorIs(t, err, context.Canceled)
}
