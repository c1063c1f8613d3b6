package filter

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// Rotate rotates counter-clockwise by Angle degrees, filling uncovered areas with Background
type Rotate struct {
	Angle      float64     `json:"angle"`
	Background paint.Color `json:"background"`
}

func (f *Rotate) Name() string { return "rotate" }

func (f *Rotate) Apply(_ context.Context, img image.Image) (image.Image, error) {
	switch f.Angle {
	case 0, 360, -360:
		return img, nil
	case 90, -270:
		return imaging.Rotate90(img), nil
	case 180, -180:
		return imaging.Rotate180(img), nil
	case 270, -90:
		return imaging.Rotate270(img), nil
	}
	return imaging.Rotate(img, f.Angle, f.Background), nil
}

// FlipHorizontal mirrors left to right
type FlipHorizontal struct{}

func (f *FlipHorizontal) Name() string { return "flip_horizontal" }

func (f *FlipHorizontal) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.FlipH(img), nil
}

// FlipVertical mirrors top to bottom
type FlipVertical struct{}

func (f *FlipVertical) Name() string { return "flip_vertical" }

func (f *FlipVertical) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.FlipV(img), nil
}

// Crop keeps a rectangle given in coordinates normalized to [0,1]
type Crop struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

func (f *Crop) Name() string { return "crop" }

func (f *Crop) String() string {
	return fmt.Sprintf("crop(x=%.2f,y=%.2f,w=%.2f,h=%.2f)", f.X, f.Y, f.Width, f.Height)
}

func (f *Crop) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return invalid("crop width and height must be positive")
	}
	if f.X < 0 || f.Y < 0 || f.X+f.Width > 1.0001 || f.Y+f.Height > 1.0001 {
		return invalid("%s lies outside the image", f.String())
	}
	return nil
}

func (f *Crop) Apply(_ context.Context, img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	// Convert normalized box to pixel coordinates
	x0 := bounds.Min.X + int(paint.Clamp(f.X, 0, 1)*fw+0.5)
	y0 := bounds.Min.Y + int(paint.Clamp(f.Y, 0, 1)*fh+0.5)
	x1 := bounds.Min.X + int(paint.Clamp(f.X+f.Width, 0, 1)*fw+0.5)
	y1 := bounds.Min.Y + int(paint.Clamp(f.Y+f.Height, 0, 1)*fh+0.5)

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, invalid("%s selects no pixels of a %dx%d image", f.String(), bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, rect), nil
}
