// Package combine stitches several images into one canvas and lays them out in grids.
package combine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// DefaultMaxCanvasPixels bounds the canvas when options leave MaxCanvasPixels at zero
const DefaultMaxCanvasPixels = 100_000_000

// ErrNoImages is returned when there is nothing to combine
var ErrNoImages = errors.New("no images to combine")

// Orientation is the stitching direction
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation accepts "horizontal"/"h" and "vertical"/"v"
func ParseOrientation(name string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "horizontal", "h", "":
		return Horizontal, nil
	case "vertical", "v":
		return Vertical, nil
	}
	return Horizontal, fmt.Errorf("unknown orientation %q", name)
}

// ScaleMode normalizes the cross-axis dimension of stitched images
type ScaleMode int

const (
	ScaleNone ScaleMode = iota
	ScaleToLargest
	ScaleToSmallest
)

// ParseScaleMode accepts "none", "largest" and "smallest"
func ParseScaleMode(name string) (ScaleMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return ScaleNone, nil
	case "largest", "max":
		return ScaleToLargest, nil
	case "smallest", "min":
		return ScaleToSmallest, nil
	}
	return ScaleNone, fmt.Errorf("unknown scale mode %q", name)
}

// Alignment places images shorter than the canvas on the cross axis
type Alignment int

const (
	AlignStart Alignment = iota
	AlignCenter
	AlignEnd
)

// ParseAlignment accepts "start", "center" and "end"
func ParseAlignment(name string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "start", "top", "left", "":
		return AlignStart, nil
	case "center", "middle":
		return AlignCenter, nil
	case "end", "bottom", "right":
		return AlignEnd, nil
	}
	return AlignStart, fmt.Errorf("unknown alignment %q", name)
}

// StitchOptions controls Stitch and Layout
type StitchOptions struct {
	Orientation Orientation
	// Spacing between images; negative values overlap them
	Spacing         int
	Background      color.Color
	ScaleMode       ScaleMode
	Alignment       Alignment
	MaxCanvasPixels int
}

// Combiner composes images using a scaler for resampling
type Combiner struct {
	scaler *scaler.Scaler
}

// New creates a Combiner with the default scaler
func New() *Combiner {
	return &Combiner{scaler: scaler.New()}
}

// NewWithScaler creates a Combiner that resamples with s
func NewWithScaler(s *scaler.Scaler) *Combiner {
	return &Combiner{scaler: s}
}

// Layout computes the canvas size and the placement of every image.
// Rectangles are in canvas coordinates and already account for scale mode,
// alignment and the canvas pixel guard.
func Layout(sizes []scaler.Size, opts StitchOptions) (scaler.Size, []image.Rectangle, error) {
	if len(sizes) == 0 {
		return scaler.Size{}, nil, ErrNoImages
	}
	for i, s := range sizes {
		if s.Width <= 0 || s.Height <= 0 {
			return scaler.Size{}, nil, fmt.Errorf("%w: image %d is %dx%d", scaler.ErrInvalidSize, i, s.Width, s.Height)
		}
	}

	// Work in (main, cross) coordinates
	main := make([]float64, len(sizes))
	cross := make([]float64, len(sizes))
	for i, s := range sizes {
		if opts.Orientation == Vertical {
			main[i], cross[i] = float64(s.Height), float64(s.Width)
		} else {
			main[i], cross[i] = float64(s.Width), float64(s.Height)
		}
	}

	if opts.ScaleMode != ScaleNone {
		target := cross[0]
		for _, c := range cross[1:] {
			if opts.ScaleMode == ScaleToLargest {
				target = math.Max(target, c)
			} else {
				target = math.Min(target, c)
			}
		}
		for i := range sizes {
			main[i] = main[i] * target / cross[i]
			cross[i] = target
		}
	}

	canvasCross := 0.0
	for _, c := range cross {
		canvasCross = math.Max(canvasCross, c)
	}

	// Overlap never moves an image before the start of the previous one
	starts := make([]float64, len(sizes))
	pos, canvasMain := 0.0, 0.0
	for i := range sizes {
		if i > 0 {
			pos = math.Max(pos, starts[i-1])
		}
		starts[i] = pos
		canvasMain = math.Max(canvasMain, pos+main[i])
		pos += main[i] + float64(opts.Spacing)
	}

	// Uniform shrink when the canvas would be too large
	scale := 1.0
	limit := opts.MaxCanvasPixels
	if limit <= 0 {
		limit = DefaultMaxCanvasPixels
	}
	if area := canvasMain * canvasCross; area > float64(limit) {
		scale = math.Sqrt(float64(limit) / area)
	}

	cm := max(1, int(math.Round(canvasMain*scale)))
	cc := max(1, int(math.Round(canvasCross*scale)))

	rects := make([]image.Rectangle, len(sizes))
	for i := range sizes {
		m0 := int(math.Round(starts[i] * scale))
		mLen := max(1, int(math.Round(main[i]*scale)))
		cLen := max(1, int(math.Round(cross[i]*scale)))

		c0 := 0
		switch opts.Alignment {
		case AlignCenter:
			c0 = (cc - cLen) / 2
		case AlignEnd:
			c0 = cc - cLen
		}

		if opts.Orientation == Vertical {
			rects[i] = image.Rect(c0, m0, c0+cLen, m0+mLen)
		} else {
			rects[i] = image.Rect(m0, c0, m0+mLen, c0+cLen)
		}
	}

	if opts.Orientation == Vertical {
		return scaler.Size{Width: cc, Height: cm}, rects, nil
	}
	return scaler.Size{Width: cm, Height: cc}, rects, nil
}

// Stitch joins images along the orientation into a single canvas
func (c *Combiner) Stitch(ctx context.Context, imgs []image.Image, opts StitchOptions) (*image.NRGBA, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}

	sizes := make([]scaler.Size, len(imgs))
	for i, img := range imgs {
		sizes[i] = scaler.SizeOf(img)
	}

	canvasSize, rects, err := Layout(sizes, opts)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Int("images", len(imgs)).
		Int("width", canvasSize.Width).
		Int("height", canvasSize.Height).
		Str("orientation", opts.Orientation.String()).
		Msg("stitching images")

	canvas := imaging.New(canvasSize.Width, canvasSize.Height, background(opts.Background))
	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.place(canvas, img, rects[i]); err != nil {
			return nil, fmt.Errorf("failed to place image %d: %w", i, err)
		}
	}
	return canvas, nil
}

// place resamples img to r's size when needed and draws it over canvas
func (c *Combiner) place(canvas *image.NRGBA, img image.Image, r image.Rectangle) error {
	size := scaler.Size{Width: r.Dx(), Height: r.Dy()}
	if size != scaler.SizeOf(img) {
		resized, err := c.scaler.Resample(img, size)
		if err != nil {
			return err
		}
		img = resized
	}
	draw.Draw(canvas, r, img, img.Bounds().Min, draw.Over)
	return nil
}

// Overlay draws top over base at pt with opacity in 0..1 and returns a new image
func Overlay(base, top image.Image, pt image.Point, opacity float64) *image.NRGBA {
	return imaging.Overlay(base, top, pt, opacity)
}

func background(c color.Color) color.Color {
	if c == nil {
		return color.Transparent
	}
	return c
}
