// Package compare measures and visualizes the difference between two images.
package compare

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when either input has no pixels
var ErrEmptyImage = errors.New("empty image")

// Stats summarizes a per-pixel comparison over the RGB channels
type Stats struct {
	MSE             float64 `json:"mse"`
	PSNR            float64 `json:"psnr"`
	MaxDelta        uint8   `json:"max_delta"`
	DifferentPixels int     `json:"different_pixels"`
	TotalPixels     int     `json:"total_pixels"`
}

// Identical reports whether no pixel differs
func (s Stats) Identical() bool {
	return s.DifferentPixels == 0
}

// Similarity returns the share of equal pixels in 0..1
func (s Stats) Similarity() float64 {
	if s.TotalPixels == 0 {
		return 1
	}
	return 1 - float64(s.DifferentPixels)/float64(s.TotalPixels)
}

// Diff returns the absolute difference image of a and b along with its
// statistics. b is resampled to a's size when they differ.
func Diff(a, b image.Image) (*image.NRGBA, Stats, error) {
	ab := a.Bounds()
	if ab.Empty() || b.Bounds().Empty() {
		return nil, Stats{}, fmt.Errorf("%w: cannot compare %v with %v", ErrEmptyImage, ab.Size(), b.Bounds().Size())
	}

	na := toNRGBA(a)
	var nb *image.NRGBA
	if b.Bounds().Size() != ab.Size() {
		nb = imaging.Resize(b, ab.Dx(), ab.Dy(), imaging.Lanczos)
	} else {
		nb = toNRGBA(b)
	}

	w, h := ab.Dx(), ab.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	stats := Stats{TotalPixels: w * h}
	var sum float64

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := na.PixOffset(x, y)
			j := nb.PixOffset(x, y)
			differs := false
			for ch := 0; ch < 3; ch++ {
				d := absDiff(na.Pix[i+ch], nb.Pix[j+ch])
				out.Pix[i+ch] = d
				sum += float64(d) * float64(d)
				if d > stats.MaxDelta {
					stats.MaxDelta = d
				}
				if d != 0 {
					differs = true
				}
			}
			out.Pix[i+3] = 255
			if differs {
				stats.DifferentPixels++
			}
		}
	}

	stats.MSE = sum / float64(w*h*3)
	if stats.MSE == 0 {
		stats.PSNR = math.Inf(1)
	} else {
		stats.PSNR = 10 * math.Log10(255*255/stats.MSE)
	}
	return out, stats, nil
}

// SideBySide builds a slider frame: columns left of split*width come from a,
// the rest from b. b is resampled to a's size when they differ.
func SideBySide(a, b image.Image, split float64) (*image.NRGBA, error) {
	if split < 0 || split > 1 {
		return nil, fmt.Errorf("split %v outside 0..1", split)
	}

	ab := a.Bounds()
	if ab.Empty() || b.Bounds().Empty() {
		return nil, fmt.Errorf("%w: cannot compare %v with %v", ErrEmptyImage, ab.Size(), b.Bounds().Size())
	}
	out := toNRGBA(a)
	if b.Bounds().Size() != ab.Size() {
		b = imaging.Resize(b, ab.Dx(), ab.Dy(), imaging.Lanczos)
	}

	cut := int(math.Round(float64(ab.Dx()) * split))
	r := image.Rect(cut, 0, ab.Dx(), ab.Dy())
	draw.Draw(out, r, b, b.Bounds().Min.Add(image.Pt(cut, 0)), draw.Src)
	return out, nil
}

// Highlight paints pixels whose largest channel delta exceeds threshold over a
// dimmed copy of a, making the changed regions easy to spot.
func Highlight(a image.Image, diff *image.NRGBA, threshold uint8, mark color.NRGBA) *image.NRGBA {
	out := imaging.AdjustBrightness(a, -50)
	b := diff.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := diff.NRGBAAt(x, y)
			if max(c.R, c.G, c.B) > threshold {
				out.SetNRGBA(x-b.Min.X, y-b.Min.Y, mark)
			}
		}
	}
	return out
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
