package filter

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// Brightness shifts brightness by Amount percent (-100..100)
type Brightness struct {
	Amount float64 `json:"amount"`
}

func (f *Brightness) Name() string { return "brightness" }

func (f *Brightness) Validate() error {
	if f.Amount < -100 || f.Amount > 100 {
		return invalid("amount %v outside -100..100", f.Amount)
	}
	return nil
}

func (f *Brightness) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustBrightness(img, f.Amount), nil
}

// Contrast changes contrast by Amount percent (-100..100)
type Contrast struct {
	Amount float64 `json:"amount"`
}

func (f *Contrast) Name() string { return "contrast" }

func (f *Contrast) Validate() error {
	if f.Amount < -100 || f.Amount > 100 {
		return invalid("amount %v outside -100..100", f.Amount)
	}
	return nil
}

func (f *Contrast) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, f.Amount), nil
}

// Gamma applies gamma correction; 1 is a no-op
type Gamma struct {
	Gamma float64 `json:"gamma"`
}

func (f *Gamma) Name() string { return "gamma" }

func (f *Gamma) Validate() error {
	if f.Gamma <= 0 {
		return invalid("gamma must be positive, got %v", f.Gamma)
	}
	return nil
}

func (f *Gamma) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustGamma(img, f.Gamma), nil
}

// Saturation changes saturation by Amount percent (-100..500)
type Saturation struct {
	Amount float64 `json:"amount"`
}

func (f *Saturation) Name() string { return "saturation" }

func (f *Saturation) Validate() error {
	if f.Amount < -100 || f.Amount > 500 {
		return invalid("amount %v outside -100..500", f.Amount)
	}
	return nil
}

func (f *Saturation) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustSaturation(img, f.Amount), nil
}

// Hue rotates hue by Shift degrees
type Hue struct {
	Shift float64 `json:"shift"`
}

func (f *Hue) Name() string { return "hue" }

func (f *Hue) Validate() error {
	if f.Shift < -180 || f.Shift > 180 {
		return invalid("shift %v outside -180..180", f.Shift)
	}
	return nil
}

func (f *Hue) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Hue(float32(f.Shift))), nil
}

// Exposure scales linear intensity by 2^EV
type Exposure struct {
	EV float64 `json:"ev"`
}

func (f *Exposure) Name() string { return "exposure" }

func (f *Exposure) Validate() error {
	if f.EV < -10 || f.EV > 10 {
		return invalid("ev %v outside -10..10", f.EV)
	}
	return nil
}

func (f *Exposure) Apply(_ context.Context, img image.Image) (image.Image, error) {
	k := math.Pow(2, f.EV)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: paint.ClampByte(float64(c.R) * k),
			G: paint.ClampByte(float64(c.G) * k),
			B: paint.ClampByte(float64(c.B) * k),
			A: c.A,
		}
	}), nil
}

// Grayscale removes color
type Grayscale struct{}

func (f *Grayscale) Name() string { return "grayscale" }

func (f *Grayscale) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

// Invert produces the negative image
type Invert struct{}

func (f *Invert) Name() string { return "invert" }

func (f *Invert) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.Invert(img), nil
}

// Sepia tones the image; Percentage 0..100
type Sepia struct {
	Percentage float64 `json:"percentage"`
}

func (f *Sepia) Name() string { return "sepia" }

func (f *Sepia) Validate() error {
	if f.Percentage < 0 || f.Percentage > 100 {
		return invalid("percentage %v outside 0..100", f.Percentage)
	}
	return nil
}

func (f *Sepia) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Sepia(float32(f.Percentage))), nil
}

// ColorBalance shifts each channel by a percentage (-100..500)
type ColorBalance struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

func (f *ColorBalance) Name() string { return "color_balance" }

func (f *ColorBalance) Validate() error {
	for _, v := range []float64{f.Red, f.Green, f.Blue} {
		if v < -100 || v > 500 {
			return invalid("channel percentage %v outside -100..500", v)
		}
	}
	return nil
}

func (f *ColorBalance) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.ColorBalance(float32(f.Red), float32(f.Green), float32(f.Blue))), nil
}

// Colorize tints the image towards a hue
type Colorize struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Percentage float64 `json:"percentage"`
}

func (f *Colorize) Name() string { return "colorize" }

func (f *Colorize) Validate() error {
	if f.Hue < 0 || f.Hue > 360 {
		return invalid("hue %v outside 0..360", f.Hue)
	}
	if f.Saturation < 0 || f.Saturation > 100 || f.Percentage < 0 || f.Percentage > 100 {
		return invalid("saturation and percentage must be within 0..100")
	}
	return nil
}

func (f *Colorize) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Colorize(float32(f.Hue), float32(f.Saturation), float32(f.Percentage))), nil
}

// SigmoidalContrast applies a sigmoid contrast curve
type SigmoidalContrast struct {
	Midpoint float64 `json:"midpoint"`
	Factor   float64 `json:"factor"`
}

func (f *SigmoidalContrast) Name() string { return "sigmoidal_contrast" }

func (f *SigmoidalContrast) Validate() error {
	if f.Midpoint < 0 || f.Midpoint > 1 {
		return invalid("midpoint %v outside 0..1", f.Midpoint)
	}
	if f.Factor < -10 || f.Factor > 10 {
		return invalid("factor %v outside -10..10", f.Factor)
	}
	return nil
}

func (f *SigmoidalContrast) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustSigmoid(img, f.Midpoint, f.Factor), nil
}

// Threshold turns pixels black or white around a luminance percentage
type Threshold struct {
	Percentage float64 `json:"percentage"`
}

func (f *Threshold) Name() string { return "threshold" }

func (f *Threshold) Validate() error {
	if f.Percentage < 0 || f.Percentage > 100 {
		return invalid("percentage %v outside 0..100", f.Percentage)
	}
	return nil
}

func (f *Threshold) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Threshold(float32(f.Percentage))), nil
}

// Posterize reduces each channel to Levels values
type Posterize struct {
	Levels int `json:"levels"`
}

func (f *Posterize) Name() string { return "posterize" }

func (f *Posterize) Validate() error {
	if f.Levels < 2 || f.Levels > 256 {
		return invalid("levels %d outside 2..256", f.Levels)
	}
	return nil
}

func (f *Posterize) Apply(_ context.Context, img image.Image) (image.Image, error) {
	step := 255.0 / float64(f.Levels-1)
	q := func(v uint8) uint8 {
		return paint.ClampByte(math.Round(float64(v)/step) * step)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: q(c.R), G: q(c.G), B: q(c.B), A: c.A}
	}), nil
}

// Solarize inverts channels above Threshold (0..255)
type Solarize struct {
	Threshold int `json:"threshold"`
}

func (f *Solarize) Name() string { return "solarize" }

func (f *Solarize) Validate() error {
	if f.Threshold < 0 || f.Threshold > 255 {
		return invalid("threshold %d outside 0..255", f.Threshold)
	}
	return nil
}

func (f *Solarize) Apply(_ context.Context, img image.Image) (image.Image, error) {
	t := uint8(f.Threshold)
	s := func(v uint8) uint8 {
		if v > t {
			return 255 - v
		}
		return v
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: s(c.R), G: s(c.G), B: s(c.B), A: c.A}
	}), nil
}

// Vibrance boosts saturation of muted colors more than saturated ones
type Vibrance struct {
	Amount float64 `json:"amount"`
}

func (f *Vibrance) Name() string { return "vibrance" }

func (f *Vibrance) Validate() error {
	if f.Amount < -1 || f.Amount > 1 {
		return invalid("amount %v outside -1..1", f.Amount)
	}
	return nil
}

func (f *Vibrance) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		mx := math.Max(r, math.Max(g, b))
		avg := (r + g + b) / 3
		amt := (mx - avg) / 255 * -3 * f.Amount
		if mx != r {
			r += (mx - r) * amt
		}
		if mx != g {
			g += (mx - g) * amt
		}
		if mx != b {
			b += (mx - b) * amt
		}
		return color.NRGBA{R: paint.ClampByte(r), G: paint.ClampByte(g), B: paint.ClampByte(b), A: c.A}
	}), nil
}

// Tint blends every pixel towards Color by Percentage
type Tint struct {
	Color      paint.Color `json:"color"`
	Percentage float64     `json:"percentage"`
}

func (f *Tint) Name() string { return "tint" }

func (f *Tint) Validate() error {
	if f.Percentage < 0 || f.Percentage > 100 {
		return invalid("percentage %v outside 0..100", f.Percentage)
	}
	return nil
}

func (f *Tint) Apply(_ context.Context, img image.Image) (image.Image, error) {
	target := f.Color.NRGBA()
	t := f.Percentage / 100
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		out := paint.Lerp(c, target, t)
		out.A = c.A
		return out
	}), nil
}

// Opacity multiplies alpha by Alpha (0..1)
type Opacity struct {
	Alpha float64 `json:"alpha"`
}

func (f *Opacity) Name() string { return "opacity" }

func (f *Opacity) Validate() error {
	if f.Alpha < 0 || f.Alpha > 1 {
		return invalid("alpha %v outside 0..1", f.Alpha)
	}
	return nil
}

func (f *Opacity) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = paint.ClampByte(float64(c.A) * f.Alpha)
		return c
	}), nil
}

// ColorMatrix applies a 4x5 row-major matrix to RGBA, with the fifth column as offset in 0..1 units
type ColorMatrix struct {
	Matrix [20]float64 `json:"matrix"`
}

// IdentityColorMatrix leaves colors unchanged
var IdentityColorMatrix = [20]float64{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

func (f *ColorMatrix) Name() string { return "color_matrix" }

func (f *ColorMatrix) Apply(_ context.Context, img image.Image) (image.Image, error) {
	m := f.Matrix
	fn := func(r, g, b, a float32) (float32, float32, float32, float32) {
		row := func(i int) float32 {
			return float32(m[i])*r + float32(m[i+1])*g + float32(m[i+2])*b + float32(m[i+3])*a + float32(m[i+4])
		}
		return row(0), row(5), row(10), row(15)
	}
	return applyGift(img, gift.ColorFunc(fn)), nil
}
