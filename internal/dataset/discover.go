package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var frameRegexp = regexp.MustCompile(`^frame-[0-9]{6,}\.(png|jpe?g)$`)

// DiscoverFrames returns paths to frame images beneath root, sorted so that
// lexical order is temporal order. Two frames with the same file name in
// different subdirectories are rejected with ErrDuplicateFrame.
func DiscoverFrames(root string) ([]string, error) {
	entries := make([]string, 0)
	seen := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !frameRegexp.MatchString(d.Name()) {
			return nil
		}
		if prev, dup := seen[d.Name()]; dup {
			return fmt.Errorf("%w %s: %s and %s", ErrDuplicateFrame, d.Name(), prev, path)
		}
		seen[d.Name()] = path
		entries = append(entries, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover frames: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return filepath.Base(entries[i]) < filepath.Base(entries[j])
	})
	return entries, nil
}
