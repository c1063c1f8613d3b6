// Package watermark stamps text or image marks onto images.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// ErrEmptyMark is returned when a watermark has neither text nor image
var ErrEmptyMark = errors.New("watermark has no text or image")

// Position places the mark on the base image
type Position int

const (
	BottomRight Position = iota
	BottomLeft
	BottomCenter
	TopLeft
	TopCenter
	TopRight
	CenterLeft
	Center
	CenterRight
	Tiled
)

var positionNames = map[string]Position{
	"bottom-right":  BottomRight,
	"bottom-left":   BottomLeft,
	"bottom-center": BottomCenter,
	"top-left":      TopLeft,
	"top-center":    TopCenter,
	"top-right":     TopRight,
	"center-left":   CenterLeft,
	"center":        Center,
	"center-right":  CenterRight,
	"tiled":         Tiled,
}

func (p Position) String() string {
	for name, v := range positionNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// ParsePosition accepts names such as "top-left", "center" or "tiled"
func ParsePosition(name string) (Position, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if p, ok := positionNames[key]; ok {
		return p, nil
	}
	return BottomRight, fmt.Errorf("unknown watermark position %q", name)
}

// Watermark describes a text or image mark. Text wins when both are set.
type Watermark struct {
	Text  string
	Color paint.Color
	// TextScale is an integer glyph magnification; zero means 1
	TextScale int

	Image image.Image
	// ImageWidth is the mark width as a fraction of the base width; zero keeps the mark size
	ImageWidth float64

	Position Position
	Margin   int
	// Opacity in 0..1; zero means fully opaque
	Opacity float64
	// Spacing between tiles when Position is Tiled
	Spacing int
}

// Apply draws the watermark over base and returns a new image
func Apply(ctx context.Context, base image.Image, w Watermark) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.Opacity < 0 || w.Opacity > 1 {
		return nil, fmt.Errorf("opacity %v outside 0..1", w.Opacity)
	}

	mark, err := w.render(base.Bounds().Dx())
	if err != nil {
		return nil, err
	}

	opacity := w.Opacity
	if opacity == 0 {
		opacity = 1
	}

	b := base.Bounds()
	out := imaging.Clone(base)
	if w.Position == Tiled {
		return tile(ctx, out, mark, w.Spacing, opacity)
	}

	pt := place(b.Dx(), b.Dy(), mark.Bounds().Dx(), mark.Bounds().Dy(), w.Position, w.Margin)
	return imaging.Overlay(out, mark, pt, opacity), nil
}

// render produces the mark image for a base of the given width
func (w Watermark) render(baseWidth int) (image.Image, error) {
	if w.Text != "" {
		scale := w.TextScale
		if scale <= 0 {
			scale = 1
		}
		return RenderText(w.Text, w.Color, scale), nil
	}

	if w.Image == nil {
		return nil, ErrEmptyMark
	}
	if w.ImageWidth <= 0 {
		return w.Image, nil
	}
	if w.ImageWidth > 1 {
		return nil, fmt.Errorf("image width fraction %v above 1", w.ImageWidth)
	}
	width := max(1, int(math.Round(float64(baseWidth)*w.ImageWidth)))
	return imaging.Resize(w.Image, width, 0, imaging.Lanczos), nil
}

// RenderText draws text in the 7x13 bitmap face on a transparent background,
// magnified by scale with nearest-neighbour sampling.
func RenderText(text string, c paint.Color, scale int) *image.NRGBA {
	face := basicfont.Face7x13
	lines := strings.Split(text, "\n")

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	lineHeight := face.Metrics().Height.Ceil()
	height := lineHeight * len(lines)

	img := image.NewNRGBA(image.Rect(0, 0, max(1, width), max(1, height)))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*lineHeight+face.Metrics().Ascent.Ceil())
		d.DrawString(line)
	}

	if scale <= 1 {
		return img
	}
	return imaging.Resize(img, img.Bounds().Dx()*scale, img.Bounds().Dy()*scale, imaging.NearestNeighbor)
}

// place returns the top-left corner of a mark of size mw x mh
func place(bw, bh, mw, mh int, p Position, margin int) image.Point {
	left, right := margin, bw-mw-margin
	top, bottom := margin, bh-mh-margin
	cx, cy := (bw-mw)/2, (bh-mh)/2

	switch p {
	case TopLeft:
		return image.Pt(left, top)
	case TopCenter:
		return image.Pt(cx, top)
	case TopRight:
		return image.Pt(right, top)
	case CenterLeft:
		return image.Pt(left, cy)
	case Center:
		return image.Pt(cx, cy)
	case CenterRight:
		return image.Pt(right, cy)
	case BottomLeft:
		return image.Pt(left, bottom)
	case BottomCenter:
		return image.Pt(cx, bottom)
	default:
		return image.Pt(right, bottom)
	}
}

// tile repeats mark across dst in a grid, offsetting every other row by half a step
func tile(ctx context.Context, dst *image.NRGBA, mark image.Image, spacing int, opacity float64) (*image.NRGBA, error) {
	mb := mark.Bounds()
	stepX := mb.Dx() + max(0, spacing)
	stepY := mb.Dy() + max(0, spacing)

	// Fade the mark once, then draw it with plain compositing
	faded := imaging.Overlay(image.NewNRGBA(image.Rect(0, 0, mb.Dx(), mb.Dy())), mark, image.Point{}, opacity)

	b := dst.Bounds()
	for row, y := 0, 0; y < b.Dy(); row, y = row+1, y+stepY {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x0 := 0
		if row%2 == 1 {
			x0 = -stepX / 2
		}
		for x := x0; x < b.Dx(); x += stepX {
			r := image.Rect(x, y, x+mb.Dx(), y+mb.Dy())
			draw.Draw(dst, r, faded, image.Point{}, draw.Over)
		}
	}
	return dst, nil
}
