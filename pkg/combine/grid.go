package combine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// FitMode decides how an image fills its grid cell
type FitMode int

const (
	// FitCover fills the cell and crops the overflow around the center
	FitCover FitMode = iota
	// FitContain fits inside the cell and leaves the background visible
	FitContain
)

// ParseFitMode accepts "cover" and "contain"
func ParseFitMode(name string) (FitMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cover", "":
		return FitCover, nil
	case "contain", "fit":
		return FitContain, nil
	}
	return FitCover, fmt.Errorf("unknown fit mode %q", name)
}

// GridOptions controls Grid and GridLayout.
// Zero cell dimensions are taken from the largest image.
type GridOptions struct {
	Columns    int
	CellWidth  int
	CellHeight int
	Spacing    int
	Background color.Color
	Fit        FitMode
	// MaxCanvasPixels shrinks cells and spacing uniformly when the canvas
	// would exceed it; zero uses DefaultMaxCanvasPixels
	MaxCanvasPixels int
}

// GridLayout returns the canvas size and the cell rectangles for n images.
// Columns <= 0 selects ceil(sqrt(n)).
func GridLayout(n int, opts GridOptions) (scaler.Size, []image.Rectangle, error) {
	if n <= 0 {
		return scaler.Size{}, nil, ErrNoImages
	}
	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		return scaler.Size{}, nil, fmt.Errorf("%w: cell %dx%d", scaler.ErrInvalidSize, opts.CellWidth, opts.CellHeight)
	}
	if opts.Spacing < 0 {
		return scaler.Size{}, nil, fmt.Errorf("%w: negative spacing %d", scaler.ErrInvalidSize, opts.Spacing)
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(n))))
	}
	cols = min(cols, n)
	rows := (n + cols - 1) / cols

	limit := opts.MaxCanvasPixels
	if limit <= 0 {
		limit = DefaultMaxCanvasPixels
	}
	canvas := gridCanvas(cols, rows, opts)
	if area := canvas.Area(); area > limit {
		scale := math.Sqrt(float64(limit) / float64(area))
		opts.CellWidth = max(1, int(math.Floor(float64(opts.CellWidth)*scale)))
		opts.CellHeight = max(1, int(math.Floor(float64(opts.CellHeight)*scale)))
		opts.Spacing = int(math.Floor(float64(opts.Spacing) * scale))
		canvas = gridCanvas(cols, rows, opts)
	}

	cells := make([]image.Rectangle, n)
	for i := range cells {
		col, row := i%cols, i/cols
		x := col * (opts.CellWidth + opts.Spacing)
		y := row * (opts.CellHeight + opts.Spacing)
		cells[i] = image.Rect(x, y, x+opts.CellWidth, y+opts.CellHeight)
	}
	return canvas, cells, nil
}

func gridCanvas(cols, rows int, opts GridOptions) scaler.Size {
	return scaler.Size{
		Width:  cols*opts.CellWidth + (cols-1)*opts.Spacing,
		Height: rows*opts.CellHeight + (rows-1)*opts.Spacing,
	}
}

// Grid arranges images row by row in equally sized cells
func (c *Combiner) Grid(ctx context.Context, imgs []image.Image, opts GridOptions) (*image.NRGBA, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}

	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		w, h := largest(imgs)
		if opts.CellWidth <= 0 {
			opts.CellWidth = w
		}
		if opts.CellHeight <= 0 {
			opts.CellHeight = h
		}
	}

	canvasSize, cells, err := GridLayout(len(imgs), opts)
	if err != nil {
		return nil, err
	}

	canvas := imaging.New(canvasSize.Width, canvasSize.Height, background(opts.Background))
	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cell := cells[i]
		var resizeType scaler.ResizeType
		if opts.Fit == FitContain {
			resizeType = scaler.Flexible
		} else {
			resizeType = scaler.CenterCrop
		}

		fitted, err := c.scaler.Scale(ctx, img, cell.Dx(), cell.Dy(), resizeType)
		if err != nil {
			return nil, fmt.Errorf("failed to scale image %d: %w", i, err)
		}

		// Center within the cell
		fb := fitted.Bounds()
		pt := image.Pt(cell.Min.X+(cell.Dx()-fb.Dx())/2, cell.Min.Y+(cell.Dy()-fb.Dy())/2)
		draw.Draw(canvas, image.Rectangle{Min: pt, Max: pt.Add(fb.Size())}, fitted, fb.Min, draw.Over)
	}
	return canvas, nil
}

// largest returns the maximum width and height across imgs
func largest(imgs []image.Image) (int, int) {
	w, h := 0, 0
	for _, img := range imgs {
		s := scaler.SizeOf(img)
		w = max(w, s.Width)
		h = max(h, s.Height)
	}
	return w, h
}
