package scaler

import (
	"context"
	"fmt"
	"image"
	"math"
)

// LimitsBehavior decides what happens to an image outside the configured limits
type LimitsBehavior int

const (
	// LimitsSkip leaves the image untouched and reports it as skipped
	LimitsSkip LimitsBehavior = iota
	// LimitsRecode leaves the dimensions alone so the caller only re-encodes
	LimitsRecode
	// LimitsZoom scales the image to the nearest allowed bound
	LimitsZoom
)

// ParseLimitsBehavior maps a name to a LimitsBehavior
func ParseLimitsBehavior(name string) (LimitsBehavior, error) {
	switch name {
	case "skip":
		return LimitsSkip, nil
	case "recode":
		return LimitsRecode, nil
	case "zoom", "":
		return LimitsZoom, nil
	default:
		return 0, fmt.Errorf("unknown limits behavior %q", name)
	}
}

// Limits bounds image dimensions. Zero means unbounded.
type Limits struct {
	MaxWidth  int            `json:"max_width"`
	MaxHeight int            `json:"max_height"`
	MinWidth  int            `json:"min_width"`
	MinHeight int            `json:"min_height"`
	Behavior  LimitsBehavior `json:"behavior"`
}

// Validate checks that the limits are consistent
func (l Limits) Validate() error {
	if l.MaxWidth < 0 || l.MaxHeight < 0 || l.MinWidth < 0 || l.MinHeight < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidSize)
	}
	if l.MaxWidth > 0 && l.MinWidth > l.MaxWidth {
		return fmt.Errorf("%w: min width %d exceeds max width %d", ErrInvalidSize, l.MinWidth, l.MaxWidth)
	}
	if l.MaxHeight > 0 && l.MinHeight > l.MaxHeight {
		return fmt.Errorf("%w: min height %d exceeds max height %d", ErrInvalidSize, l.MinHeight, l.MaxHeight)
	}
	return nil
}

func (l Limits) tooLarge(s Size) bool {
	return (l.MaxWidth > 0 && s.Width > l.MaxWidth) || (l.MaxHeight > 0 && s.Height > l.MaxHeight)
}

func (l Limits) tooSmall(s Size) bool {
	return s.Width < l.MinWidth || s.Height < l.MinHeight
}

// Contains reports whether s satisfies every bound
func (l Limits) Contains(s Size) bool {
	return !l.tooLarge(s) && !l.tooSmall(s)
}

// ScaleWithLimits brings img inside the limits according to limits.Behavior.
// The boolean result is true when the image was skipped.
func (s *Scaler) ScaleWithLimits(ctx context.Context, img image.Image, limits Limits) (image.Image, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := limits.Validate(); err != nil {
		return nil, false, err
	}

	src := SizeOf(img)
	if limits.Contains(src) {
		return img, false, nil
	}

	switch limits.Behavior {
	case LimitsSkip:
		return img, true, nil
	case LimitsRecode:
		return img, false, nil
	case LimitsZoom:
		target := LimitsSize(src, limits)
		if target == src {
			return img, false, nil
		}
		return s.resample(img, target), false, nil
	default:
		return nil, false, fmt.Errorf("unknown limits behavior %v", limits.Behavior)
	}
}

// LimitsSize computes the aspect-preserving size closest to src inside the limits.
// Upper bounds win when both bounds cannot be satisfied at once.
func LimitsSize(src Size, limits Limits) Size {
	if src.Width <= 0 || src.Height <= 0 {
		return src
	}

	factor := 1.0
	if limits.tooSmall(src) {
		if limits.MinWidth > 0 {
			factor = math.Max(factor, float64(limits.MinWidth)/float64(src.Width))
		}
		if limits.MinHeight > 0 {
			factor = math.Max(factor, float64(limits.MinHeight)/float64(src.Height))
		}
	}

	w := float64(src.Width) * factor
	h := float64(src.Height) * factor
	if limits.MaxWidth > 0 && w > float64(limits.MaxWidth) {
		factor *= float64(limits.MaxWidth) / w
		w = float64(src.Width) * factor
		h = float64(src.Height) * factor
	}
	if limits.MaxHeight > 0 && h > float64(limits.MaxHeight) {
		factor *= float64(limits.MaxHeight) / h
	}

	target := Size{
		Width:  max(1, int(math.Round(float64(src.Width)*factor))),
		Height: max(1, int(math.Round(float64(src.Height)*factor))),
	}
	// Rounding must not push us back over a max bound
	if limits.MaxWidth > 0 {
		target.Width = min(target.Width, limits.MaxWidth)
	}
	if limits.MaxHeight > 0 {
		target.Height = min(target.Height, limits.MaxHeight)
	}
	return target
}
