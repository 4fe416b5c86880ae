package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ErrNoFrames is returned when a recording root yields no frame images.
var ErrNoFrames = errors.New("dataset: no frames found")

// Recording is one continuous video, each frame reduced to a flat
// height*width grid of intensities in [0, 1].
type Recording struct {
	Name   string
	Height int
	Width  int
	Frames [][]float64
}

// LoadOptions controls how frames are reduced and decoded.
type LoadOptions struct {
	Height     int
	Width      int
	NumWorkers int
}

// LoadRecording loads the recording at root, which is either a directory of
// frame images or a tar archive of them.
func LoadRecording(ctx context.Context, root string, opts LoadOptions) (*Recording, error) {
	if opts.Height <= 0 || opts.Width <= 0 {
		return nil, fmt.Errorf("dataset: invalid frame size %dx%d", opts.Height, opts.Width)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}

	var sources []func() ([]byte, error)
	var names []string
	if strings.EqualFold(filepath.Ext(root), ArchiveExt) {
		raws, err := readArchive(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, raw := range raws {
			data := raw.data
			sources = append(sources, func() ([]byte, error) { return data, nil })
			names = append(names, raw.name)
		}
	} else {
		paths, err := DiscoverFrames(root)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			p := path
			sources = append(sources, func() ([]byte, error) { return os.ReadFile(p) })
			names = append(names, p)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoFrames, root)
	}

	frames := make([][]float64, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)
	for i := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := sources[i]()
			if err != nil {
				return fmt.Errorf("read frame %s: %w", names[i], err)
			}
			frame, err := decodeFrame(raw, opts.Height, opts.Width)
			if err != nil {
				return fmt.Errorf("decode frame %s: %w", names[i], err)
			}
			frames[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Recording{
		Name:   root,
		Height: opts.Height,
		Width:  opts.Width,
		Frames: frames,
	}, nil
}

// decodeFrame scales the image to width x height with nearest-neighbour
// sampling and returns its gray intensities, row-major.
func decodeFrame(raw []byte, height, width int) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	features := make([]float64, height*width)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width]
		for x, v := range row {
			features[y*width+x] = float64(v) / 255
		}
	}
	return features, nil
}
