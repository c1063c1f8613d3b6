// Package scaler resizes images according to a resize policy and fits encoded
// output into a byte budget.
package scaler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ErrInvalidSize is returned for non-positive or contradictory target dimensions
var ErrInvalidSize = errors.New("invalid target size")

// ResizeType selects how the target box is applied to the source aspect ratio
type ResizeType int

const (
	// Explicit scales to exactly width x height, ignoring aspect ratio
	Explicit ResizeType = iota
	// Flexible fits the image inside width x height preserving aspect ratio
	Flexible
	// CenterCrop covers width x height and crops the overflow around the center
	CenterCrop
	// Fit fits inside width x height and pads the rest with the background color
	Fit
)

func (t ResizeType) String() string {
	switch t {
	case Explicit:
		return "explicit"
	case Flexible:
		return "flexible"
	case CenterCrop:
		return "center-crop"
	case Fit:
		return "fit"
	default:
		return fmt.Sprintf("resize(%d)", int(t))
	}
}

// ParseResizeType maps a name to a ResizeType
func ParseResizeType(name string) (ResizeType, error) {
	switch name {
	case "explicit", "exact", "":
		return Explicit, nil
	case "flexible", "keep-aspect":
		return Flexible, nil
	case "center-crop", "crop", "fill":
		return CenterCrop, nil
	case "fit", "pad":
		return Fit, nil
	default:
		return 0, fmt.Errorf("unknown resize type %q", name)
	}
}

// Algorithm is the resampling kernel
type Algorithm int

const (
	Lanczos Algorithm = iota
	Bilinear
	Bicubic
	Nearest
	Box
	Linear
	Mitchell
)

var algorithmNames = map[string]Algorithm{
	"lanczos":  Lanczos,
	"bilinear": Bilinear,
	"bicubic":  Bicubic,
	"nearest":  Nearest,
	"box":      Box,
	"linear":   Linear,
	"mitchell": Mitchell,
}

// ParseAlgorithm maps a name to an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return Lanczos, nil
	}
	a, ok := algorithmNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown resampling algorithm %q", name)
	}
	return a, nil
}

// Size is a width/height pair in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeOf returns the dimensions of img
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Area returns width * height
func (s Size) Area() int {
	return s.Width * s.Height
}

// Config holds configuration for the scaler
type Config struct {
	Algorithm    Algorithm
	AllowUpscale bool
	Background   color.NRGBA
}

// Scaler resizes images
type Scaler struct {
	config Config
}

// DefaultConfig returns Lanczos resampling with upscaling allowed and a
// transparent background
func DefaultConfig() Config {
	return Config{
		Algorithm:    Lanczos,
		AllowUpscale: true,
		Background:   color.NRGBA{0, 0, 0, 0},
	}
}

// New creates a new Scaler with default configuration
func New() *Scaler {
	return &Scaler{config: DefaultConfig()}
}

// NewWithConfig creates a new Scaler with custom configuration
func NewWithConfig(config Config) *Scaler {
	return &Scaler{config: config}
}

// Scale resizes img to the target box using the resize type.
// A non-positive width or height is derived from the source aspect ratio.
func (s *Scaler) Scale(ctx context.Context, img image.Image, width, height int, resizeType ResizeType) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := SizeOf(img)
	if src.Width == 0 || src.Height == 0 {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidSize)
	}

	target, err := resolveTarget(src, width, height)
	if err != nil {
		return nil, err
	}

	switch resizeType {
	case Explicit:
		if target == src {
			return img, nil
		}
		return s.resample(img, target), nil

	case Flexible:
		fitted := FlexibleSize(src, target)
		if fitted == src || (!s.config.AllowUpscale && fitted.Area() > src.Area()) {
			return img, nil
		}
		return s.resample(img, fitted), nil

	case CenterCrop:
		if target == src {
			return img, nil
		}
		cover := coverSize(src, target)
		return imaging.CropCenter(s.resample(img, cover), target.Width, target.Height), nil

	case Fit:
		fitted := FlexibleSize(src, target)
		if !s.config.AllowUpscale && fitted.Area() > src.Area() {
			fitted = src
		}
		canvas := imaging.New(target.Width, target.Height, s.config.Background)
		return imaging.PasteCenter(canvas, s.resample(img, fitted)), nil

	default:
		return nil, fmt.Errorf("unknown resize type %v", resizeType)
	}
}

// ScaleByFactor multiplies both dimensions by factor, keeping at least 1x1
func (s *Scaler) ScaleByFactor(img image.Image, factor float64) (image.Image, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: factor %v", ErrInvalidSize, factor)
	}

	src := SizeOf(img)
	target := Size{
		Width:  max(1, int(math.Round(float64(src.Width)*factor))),
		Height: max(1, int(math.Round(float64(src.Height)*factor))),
	}
	if target == src {
		return img, nil
	}
	return s.resample(img, target), nil
}

// ScaleByPercent scales by a percentage where 100 keeps the original size
func (s *Scaler) ScaleByPercent(img image.Image, percent float64) (image.Image, error) {
	return s.ScaleByFactor(img, percent/100)
}

// ScaleUntilFits downsizes img until its pixel count is at most maxPixels
func (s *Scaler) ScaleUntilFits(img image.Image, maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		return nil, fmt.Errorf("%w: max pixels %d", ErrInvalidSize, maxPixels)
	}

	src := SizeOf(img)
	if src.Area() <= maxPixels {
		return img, nil
	}

	factor := math.Sqrt(float64(maxPixels) / float64(src.Area()))
	target := Size{
		Width:  max(1, int(float64(src.Width)*factor)),
		Height: max(1, int(float64(src.Height)*factor)),
	}
	// Rounding can leave us a row over budget
	for target.Area() > maxPixels && (target.Width > 1 || target.Height > 1) {
		if target.Width >= target.Height {
			target.Width--
		} else {
			target.Height--
		}
	}
	return s.resample(img, target), nil
}

// Resample resizes img to exactly the given size with the configured algorithm
func (s *Scaler) Resample(img image.Image, size Size) (image.Image, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.Width, size.Height)
	}
	return s.resample(img, size), nil
}

func (s *Scaler) resample(img image.Image, size Size) image.Image {
	switch s.config.Algorithm {
	case Bilinear:
		dst := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	case Nearest:
		dst := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	case Bicubic:
		return imaging.Resize(img, size.Width, size.Height, imaging.CatmullRom)
	case Box:
		return imaging.Resize(img, size.Width, size.Height, imaging.Box)
	case Linear:
		return imaging.Resize(img, size.Width, size.Height, imaging.Linear)
	case Mitchell:
		return imaging.Resize(img, size.Width, size.Height, imaging.MitchellNetravali)
	default:
		return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos)
	}
}

// FlexibleSize fits src inside target preserving aspect ratio.
// The side with the tighter ratio constrains the result.
func FlexibleSize(src, target Size) Size {
	if src.Width <= 0 || src.Height <= 0 {
		return target
	}
	ratio := math.Min(
		float64(target.Width)/float64(src.Width),
		float64(target.Height)/float64(src.Height),
	)
	return Size{
		Width:  max(1, int(math.Round(float64(src.Width)*ratio))),
		Height: max(1, int(math.Round(float64(src.Height)*ratio))),
	}
}

// coverSize scales src so that it covers target on both axes
func coverSize(src, target Size) Size {
	ratio := math.Max(
		float64(target.Width)/float64(src.Width),
		float64(target.Height)/float64(src.Height),
	)
	return Size{
		Width:  max(target.Width, int(math.Ceil(float64(src.Width)*ratio))),
		Height: max(target.Height, int(math.Ceil(float64(src.Height)*ratio))),
	}
}

func resolveTarget(src Size, width, height int) (Size, error) {
	switch {
	case width <= 0 && height <= 0:
		return Size{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	case width <= 0:
		width = max(1, int(math.Round(float64(height)*float64(src.Width)/float64(src.Height))))
	case height <= 0:
		height = max(1, int(math.Round(float64(width)*float64(src.Height)/float64(src.Width))))
	}
	return Size{Width: width, Height: height}, nil
}
