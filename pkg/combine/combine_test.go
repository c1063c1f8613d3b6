package combine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

func solidImage(width, height int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

func TestLayoutHorizontal(t *testing.T) {
	sizes := []scaler.Size{{Width: 100, Height: 50}, {Width: 40, Height: 80}}

	canvas, rects, err := Layout(sizes, StitchOptions{Spacing: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if canvas.Width != 150 || canvas.Height != 80 {
		t.Errorf("Expected canvas 150x80, got %dx%d", canvas.Width, canvas.Height)
	}
	if rects[0] != image.Rect(0, 0, 100, 50) {
		t.Errorf("Unexpected first rect %v", rects[0])
	}
	if rects[1] != image.Rect(110, 0, 150, 80) {
		t.Errorf("Unexpected second rect %v", rects[1])
	}
}

func TestLayoutVerticalCentered(t *testing.T) {
	sizes := []scaler.Size{{Width: 100, Height: 50}, {Width: 40, Height: 80}}

	canvas, rects, err := Layout(sizes, StitchOptions{Orientation: Vertical, Alignment: AlignCenter})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if canvas.Width != 100 || canvas.Height != 130 {
		t.Errorf("Expected canvas 100x130, got %dx%d", canvas.Width, canvas.Height)
	}
	if rects[1] != image.Rect(30, 50, 70, 130) {
		t.Errorf("Unexpected second rect %v", rects[1])
	}
}

func TestLayoutScaleModes(t *testing.T) {
	sizes := []scaler.Size{{Width: 100, Height: 50}, {Width: 40, Height: 100}}

	canvas, rects, err := Layout(sizes, StitchOptions{ScaleMode: ScaleToLargest})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rects[0].Dx() != 200 || rects[0].Dy() != 100 {
		t.Errorf("Expected first image scaled to 200x100, got %v", rects[0])
	}
	if canvas.Width != 240 || canvas.Height != 100 {
		t.Errorf("Expected canvas 240x100, got %dx%d", canvas.Width, canvas.Height)
	}

	canvas, rects, err = Layout(sizes, StitchOptions{ScaleMode: ScaleToSmallest})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rects[1].Dx() != 20 || rects[1].Dy() != 50 {
		t.Errorf("Expected second image scaled to 20x50, got %v", rects[1])
	}
	if canvas.Width != 120 || canvas.Height != 50 {
		t.Errorf("Expected canvas 120x50, got %dx%d", canvas.Width, canvas.Height)
	}
}

func TestLayoutNegativeSpacing(t *testing.T) {
	sizes := []scaler.Size{{Width: 10, Height: 10}, {Width: 10, Height: 10}}

	canvas, rects, err := Layout(sizes, StitchOptions{Spacing: -4})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if canvas.Width != 16 {
		t.Errorf("Expected overlapping canvas width 16, got %d", canvas.Width)
	}
	if rects[1].Min.X != 6 {
		t.Errorf("Expected second image at x=6, got %d", rects[1].Min.X)
	}

	// Overlap larger than an image stops at the previous image's start
	for _, spacing := range []int{-15, -50} {
		canvas, rects, err = Layout(sizes, StitchOptions{Spacing: spacing})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if canvas.Width != 10 || canvas.Height != 10 {
			t.Errorf("spacing %d: expected canvas 10x10, got %dx%d", spacing, canvas.Width, canvas.Height)
		}
		full := image.Rect(0, 0, canvas.Width, canvas.Height)
		for i, r := range rects {
			if !r.In(full) {
				t.Errorf("spacing %d: rect %d %v outside canvas %v", spacing, i, r, full)
			}
		}
		if rects[1].Min.X != 0 {
			t.Errorf("spacing %d: expected second image at x=0, got %d", spacing, rects[1].Min.X)
		}
	}

	// Three images: the third never starts before the second
	three := []scaler.Size{{Width: 10, Height: 10}, {Width: 30, Height: 10}, {Width: 10, Height: 10}}
	_, rects, err = Layout(three, StitchOptions{Spacing: -20})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 1; i < len(rects); i++ {
		if rects[i].Min.X < rects[i-1].Min.X {
			t.Errorf("Expected rect %d %v to start after rect %d %v", i, rects[i], i-1, rects[i-1])
		}
	}
}

func TestLayoutMaxCanvasPixels(t *testing.T) {
	sizes := []scaler.Size{{Width: 1000, Height: 1000}, {Width: 1000, Height: 1000}}

	canvas, rects, err := Layout(sizes, StitchOptions{MaxCanvasPixels: 20000})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if canvas.Area() > 20000 {
		t.Errorf("Expected canvas within 20000 pixels, got %dx%d", canvas.Width, canvas.Height)
	}
	if canvas.Width != 2*canvas.Height {
		t.Errorf("Expected aspect ratio preserved, got %dx%d", canvas.Width, canvas.Height)
	}
	if rects[1].Max.X != canvas.Width {
		t.Errorf("Expected last rect to reach the canvas edge, got %v", rects[1])
	}
}

func TestLayoutErrors(t *testing.T) {
	if _, _, err := Layout(nil, StitchOptions{}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if _, _, err := Layout([]scaler.Size{{Width: 0, Height: 10}}, StitchOptions{}); !errors.Is(err, scaler.ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestStitch(t *testing.T) {
	imgs := []image.Image{solidImage(20, 10, red), solidImage(20, 20, green)}
	opts := StitchOptions{Spacing: 5, Background: blue, Alignment: AlignEnd}

	out, err := New().Stitch(context.Background(), imgs, opts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if out.Bounds().Dx() != 45 || out.Bounds().Dy() != 20 {
		t.Fatalf("Expected 45x20, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if c := out.NRGBAAt(0, 0); c != blue {
		t.Errorf("Expected background above the end-aligned first image, got %v", c)
	}
	if c := out.NRGBAAt(0, 15); c != red {
		t.Errorf("Expected red at bottom left, got %v", c)
	}
	if c := out.NRGBAAt(22, 5); c != blue {
		t.Errorf("Expected background in the gap, got %v", c)
	}
	if c := out.NRGBAAt(30, 5); c != green {
		t.Errorf("Expected green on the right, got %v", c)
	}
}

func TestStitchNoImages(t *testing.T) {
	if _, err := New().Stitch(context.Background(), nil, StitchOptions{}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
}

func TestStitchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Stitch(ctx, []image.Image{solidImage(4, 4, red)}, StitchOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGridLayout(t *testing.T) {
	canvas, cells, err := GridLayout(5, GridOptions{CellWidth: 10, CellHeight: 20, Spacing: 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// ceil(sqrt(5)) = 3 columns, 2 rows
	if canvas.Width != 34 || canvas.Height != 42 {
		t.Errorf("Expected canvas 34x42, got %dx%d", canvas.Width, canvas.Height)
	}
	if cells[4] != image.Rect(12, 22, 22, 42) {
		t.Errorf("Unexpected last cell %v", cells[4])
	}
}

func TestGridLayoutColumnsCapped(t *testing.T) {
	canvas, _, err := GridLayout(2, GridOptions{Columns: 10, CellWidth: 10, CellHeight: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if canvas.Width != 20 || canvas.Height != 10 {
		t.Errorf("Expected 20x10, got %dx%d", canvas.Width, canvas.Height)
	}
}

func TestGridLayoutErrors(t *testing.T) {
	if _, _, err := GridLayout(0, GridOptions{CellWidth: 1, CellHeight: 1}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if _, _, err := GridLayout(3, GridOptions{}); !errors.Is(err, scaler.ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestGridLayoutMaxCanvasPixels(t *testing.T) {
	canvas, cells, err := GridLayout(4, GridOptions{
		Columns:         2,
		CellWidth:       100,
		CellHeight:      100,
		Spacing:         10,
		MaxCanvasPixels: 10000,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 210x210 shrinks by sqrt(10000/44100): cells 47, spacing 4
	if canvas.Width != 98 || canvas.Height != 98 {
		t.Errorf("Expected canvas 98x98, got %dx%d", canvas.Width, canvas.Height)
	}
	if canvas.Area() > 10000 {
		t.Errorf("Expected at most 10000 pixels, got %d", canvas.Area())
	}
	if cells[3] != image.Rect(51, 51, 98, 98) {
		t.Errorf("Unexpected last cell %v", cells[3])
	}
}

func TestGridShrinksToMaxCanvasPixels(t *testing.T) {
	imgs := []image.Image{solidImage(60, 60, red), solidImage(60, 60, blue)}

	out, err := New().Grid(context.Background(), imgs, GridOptions{Columns: 2, MaxCanvasPixels: 1800})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 120x60 shrinks by sqrt(1800/7200) = 0.5
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 30 {
		t.Fatalf("Expected 60x30, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if c := out.NRGBAAt(45, 15); c.B < 250 || c.R > 5 {
		t.Errorf("Expected blue in the second cell, got %v", c)
	}
}

func TestGridCover(t *testing.T) {
	imgs := []image.Image{
		solidImage(40, 20, red),
		solidImage(20, 40, green),
		solidImage(10, 10, blue),
	}

	out, err := New().Grid(context.Background(), imgs, GridOptions{Columns: 2, CellWidth: 16, CellHeight: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 32 {
		t.Fatalf("Expected 32x32, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if c := out.NRGBAAt(1, 1); c.R < 250 || c.G > 5 {
		t.Errorf("Expected red cell corner filled, got %v", c)
	}
	if c := out.NRGBAAt(8, 24); c.B < 250 {
		t.Errorf("Expected blue in the third cell, got %v", c)
	}
	if c := out.NRGBAAt(24, 24); c.A != 0 {
		t.Errorf("Expected empty fourth cell to be transparent, got %v", c)
	}
}

func TestGridContainDefaultsCellSize(t *testing.T) {
	imgs := []image.Image{solidImage(40, 20, red), solidImage(20, 30, green)}

	out, err := New().Grid(context.Background(), imgs, GridOptions{Fit: FitContain, Background: blue})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Cells default to the largest width and height: 40x30
	if out.Bounds().Dx() != 80 || out.Bounds().Dy() != 30 {
		t.Fatalf("Expected 80x30, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if c := out.NRGBAAt(20, 0); c != blue {
		t.Errorf("Expected letterbox background above the first image, got %v", c)
	}
}

func TestOverlay(t *testing.T) {
	base := solidImage(10, 10, blue)
	top := solidImage(4, 4, red)

	out := Overlay(base, top, image.Pt(2, 2), 1)
	if c := out.NRGBAAt(3, 3); c != red {
		t.Errorf("Expected red inside the overlay, got %v", c)
	}
	if c := out.NRGBAAt(0, 0); c != blue {
		t.Errorf("Expected base outside the overlay, got %v", c)
	}
}

func TestParseHelpers(t *testing.T) {
	if o, err := ParseOrientation("v"); err != nil || o != Vertical {
		t.Errorf("Expected vertical, got %v, %v", o, err)
	}
	if m, err := ParseScaleMode("smallest"); err != nil || m != ScaleToSmallest {
		t.Errorf("Expected smallest, got %v, %v", m, err)
	}
	if a, err := ParseAlignment("center"); err != nil || a != AlignCenter {
		t.Errorf("Expected center, got %v, %v", a, err)
	}
	if f, err := ParseFitMode("contain"); err != nil || f != FitContain {
		t.Errorf("Expected contain, got %v, %v", f, err)
	}
	if _, err := ParseOrientation("diagonal"); err == nil {
		t.Error("Expected error for unknown orientation")
	}
}
