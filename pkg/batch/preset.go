package batch

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// Preset is a resize step applied to every image in a batch: either a
// percentage of the original size or a box the image is fitted into.
// The zero value keeps the original size.
type Preset struct {
	Percent float64
	Width   int
	Height  int
}

// Original keeps images at their size
func Original() Preset { return Preset{} }

// IsOriginal reports whether the preset leaves the size unchanged
func (p Preset) IsOriginal() bool {
	return (p.Percent == 0 || p.Percent == 100) && p.Width == 0 && p.Height == 0
}

// ParsePreset accepts "original", "50%", "512x512", "1024x" (width only),
// "x300" (height only) and "512" (square box).
func ParsePreset(s string) (Preset, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "original", "none", "100%":
		return Original(), nil
	}

	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || v <= 0 {
			return Preset{}, fmt.Errorf("invalid percent preset %q", s)
		}
		return Preset{Percent: v}, nil
	}

	if w, h, ok := strings.Cut(s, "x"); ok {
		width, err := parseDim(w)
		if err != nil {
			return Preset{}, fmt.Errorf("invalid preset %q: %w", s, err)
		}
		height, err := parseDim(h)
		if err != nil {
			return Preset{}, fmt.Errorf("invalid preset %q: %w", s, err)
		}
		if width == 0 && height == 0 {
			return Preset{}, fmt.Errorf("invalid preset %q: no dimension", s)
		}
		return Preset{Width: width, Height: height}, nil
	}

	side, err := strconv.Atoi(s)
	if err != nil || side <= 0 {
		return Preset{}, fmt.Errorf("invalid preset %q", s)
	}
	return Preset{Width: side, Height: side}, nil
}

func parseDim(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("bad dimension %q", s)
	}
	return v, nil
}

func (p Preset) String() string {
	switch {
	case p.IsOriginal():
		return "original"
	case p.Percent > 0:
		return strconv.FormatFloat(p.Percent, 'f', -1, 64) + "%"
	default:
		var w, h string
		if p.Width > 0 {
			w = strconv.Itoa(p.Width)
		}
		if p.Height > 0 {
			h = strconv.Itoa(p.Height)
		}
		return w + "x" + h
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Preset) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Preset) UnmarshalText(text []byte) error {
	parsed, err := ParsePreset(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Apply resizes img according to the preset. Box presets fit the image inside
// the box preserving the aspect ratio; a missing side follows the aspect ratio.
func (p Preset) Apply(ctx context.Context, s *scaler.Scaler, img image.Image) (image.Image, error) {
	switch {
	case p.IsOriginal():
		return img, nil
	case p.Percent > 0:
		return s.ScaleByPercent(img, p.Percent)
	default:
		return s.Scale(ctx, img, p.Width, p.Height, scaler.Flexible)
	}
}
