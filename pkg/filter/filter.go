// Package filter implements the image filter catalog.
//
// Every filter is a small struct holding its typed parameters. Filters are
// created by name through a Provider, decoded from JSON specs of the form
// {"type":"gaussian_blur","sigma":2}, and applied in order by a Chain.
package filter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
)

// ErrUnknownFilter is returned when a filter name is not registered
var ErrUnknownFilter = errors.New("unknown filter")

// ErrInvalidParams is returned when filter parameters are out of range
var ErrInvalidParams = errors.New("invalid filter parameters")

// Filter is a named image transformation
type Filter interface {
	Name() string
	Apply(ctx context.Context, img image.Image) (image.Image, error)
}

// Validator is implemented by filters whose parameters can be out of range
type Validator interface {
	Validate() error
}

// Validate runs f's parameter validation when it has any
func Validate(f Filter) error {
	v, ok := f.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	return nil
}

// Chain applies filters in order
type Chain []Filter

// Names returns the filter names in application order
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return names
}

// Apply runs every filter on the output of the previous one
func (c Chain) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	out := img
	for _, f := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := Validate(f); err != nil {
			return nil, err
		}

		next, err := f.Apply(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("filter %s failed: %w", f.Name(), err)
		}
		out = next
	}
	return out, nil
}

// Preview applies the chain to a copy downsized to fit maxSide
func (c Chain) Preview(ctx context.Context, img image.Image, maxSide int) (image.Image, error) {
	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Linear)
		}
	}
	return c.Apply(ctx, img)
}

// applyGift runs gift filters and returns a new NRGBA image
func applyGift(img image.Image, filters ...gift.Filter) image.Image {
	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// toNRGBA returns an NRGBA copy with origin at 0,0
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
