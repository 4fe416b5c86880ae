package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ArchiveExt marks a recording packed as a single tar of frame images.
const ArchiveExt = ".tar"

// ErrDuplicateFrame indicates a recording holds two frames with the same
// file name.
var ErrDuplicateFrame = errors.New("dataset: duplicate frame")

type rawFrame struct {
	name string
	data []byte
}

// readArchive returns every frame image in the tar at path ordered by name.
// Entries that are not frame images are ignored.
func readArchive(ctx context.Context, path string) ([]rawFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(bufio.NewReader(f))
	seen := make(map[string]struct{})
	var frames []rawFrame
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		if !frameRegexp.MatchString(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w %s in %s", ErrDuplicateFrame, name, path)
		}
		seen[name] = struct{}{}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", name, err)
		}
		frames = append(frames, rawFrame{name: name, data: data})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].name < frames[j].name })
	return frames, nil
}
