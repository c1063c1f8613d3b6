package watermark

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var white = color.NRGBA{255, 255, 255, 255}

// countReddish counts pixels in r whose red clearly dominates
func countReddish(img *image.NRGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.R > 200 && c.G < 100 && c.B < 100 {
				n++
			}
		}
	}
	return n
}

func TestRenderTextSize(t *testing.T) {
	img := RenderText("AB", paint.Black, 2)

	if img.Bounds().Dx() != 28 || img.Bounds().Dy() != 26 {
		t.Errorf("Expected 28x26, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	opaque := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 {
			opaque++
		}
	}
	if opaque == 0 {
		t.Error("Expected some glyph pixels")
	}
}

func TestRenderTextMultiline(t *testing.T) {
	img := RenderText("a\nbbb", paint.Black, 1)
	if img.Bounds().Dx() != 21 || img.Bounds().Dy() != 26 {
		t.Errorf("Expected 21x26, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestApplyTextTopLeft(t *testing.T) {
	base := solidImage(120, 60, white)
	w := Watermark{
		Text:     "HI",
		Color:    paint.Color{R: 255, A: 255},
		Position: TopLeft,
		Margin:   2,
	}

	out, err := Apply(context.Background(), base, w)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if countReddish(out, image.Rect(0, 0, 30, 20)) == 0 {
		t.Error("Expected text in the top-left corner")
	}
	if countReddish(out, image.Rect(60, 30, 120, 60)) != 0 {
		t.Error("Expected no text in the bottom-right area")
	}
	if base.NRGBAAt(5, 5) != white {
		t.Error("Expected base image to be left untouched")
	}
}

func TestApplyTiled(t *testing.T) {
	base := solidImage(120, 80, white)
	w := Watermark{
		Text:     "X",
		Color:    paint.Color{R: 255, A: 255},
		Position: Tiled,
		Spacing:  10,
	}

	out, err := Apply(context.Background(), base, w)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if countReddish(out, image.Rect(0, 0, 60, 40)) == 0 {
		t.Error("Expected tiles in the top-left quadrant")
	}
	if countReddish(out, image.Rect(60, 40, 120, 80)) == 0 {
		t.Error("Expected tiles in the bottom-right quadrant")
	}
}

func TestApplyImageScaled(t *testing.T) {
	base := solidImage(100, 40, white)
	mark := solidImage(10, 10, color.NRGBA{0, 0, 255, 255})

	out, err := Apply(context.Background(), base, Watermark{
		Image:      mark,
		ImageWidth: 0.2,
		Position:   BottomRight,
		Margin:     5,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 20x20 mark placed at (75, 15)
	if c := out.NRGBAAt(80, 20); c.B < 250 || c.R > 5 {
		t.Errorf("Expected blue mark, got %v", c)
	}
	if c := out.NRGBAAt(70, 20); c != white {
		t.Errorf("Expected base left of the mark, got %v", c)
	}
	if c := out.NRGBAAt(80, 37); c != white {
		t.Errorf("Expected margin below the mark, got %v", c)
	}
}

func TestApplyOpacity(t *testing.T) {
	base := solidImage(20, 20, white)
	mark := solidImage(20, 20, color.NRGBA{0, 0, 0, 255})

	out, err := Apply(context.Background(), base, Watermark{Image: mark, Position: Center, Opacity: 0.5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c := out.NRGBAAt(10, 10); c.R < 120 || c.R > 135 {
		t.Errorf("Expected half blend, got %v", c)
	}
}

func TestApplyErrors(t *testing.T) {
	base := solidImage(10, 10, white)

	if _, err := Apply(context.Background(), base, Watermark{}); !errors.Is(err, ErrEmptyMark) {
		t.Errorf("Expected ErrEmptyMark, got %v", err)
	}
	if _, err := Apply(context.Background(), base, Watermark{Text: "x", Opacity: 2}); err == nil {
		t.Error("Expected error for opacity above 1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Apply(ctx, base, Watermark{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPlace(t *testing.T) {
	cases := []struct {
		pos  Position
		want image.Point
	}{
		{TopLeft, image.Pt(4, 4)},
		{TopRight, image.Pt(86, 4)},
		{Center, image.Pt(45, 20)},
		{BottomLeft, image.Pt(4, 36)},
		{BottomRight, image.Pt(86, 36)},
	}
	for _, tc := range cases {
		if got := place(100, 50, 10, 10, tc.pos, 4); got != tc.want {
			t.Errorf("%v: expected %v, got %v", tc.pos, tc.want, got)
		}
	}
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition("Top_Left")
	if err != nil || p != TopLeft {
		t.Errorf("Expected top-left, got %v, %v", p, err)
	}
	if _, err := ParsePosition("somewhere"); err == nil {
		t.Error("Expected error for unknown position")
	}
}
