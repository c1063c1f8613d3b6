package filter

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// BayerDither applies ordered dithering with a 2x2, 4x4 or 8x8 Bayer matrix,
// quantizing each channel (or luminance when Gray is set) to Levels values.
type BayerDither struct {
	MatrixSize int  `json:"matrix_size"`
	Levels     int  `json:"levels"`
	Gray       bool `json:"gray"`
}

func (f *BayerDither) Name() string { return "bayer_dither" }

func (f *BayerDither) Validate() error {
	switch f.MatrixSize {
	case 2, 4, 8:
	default:
		return invalid("matrix size must be 2, 4 or 8, got %d", f.MatrixSize)
	}
	if f.Levels < 2 || f.Levels > 256 {
		return invalid("levels %d outside 2..256", f.Levels)
	}
	return nil
}

func (f *BayerDither) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	m := bayerMatrix(f.MatrixSize)
	n := f.MatrixSize
	cells := float64(n * n)
	step := 255.0 / float64(f.Levels-1)

	dst := toNRGBA(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	quantize := func(v float64, bias float64) uint8 {
		return paint.ClampByte(float64(int((v+bias*step)/step)) * step)
	}

	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			// Threshold in [-0.5, 0.5)
			bias := (float64(m[y%n][x%n])+0.5)/cells - 0.5
			i := y*dst.Stride + x*4
			if f.Gray {
				c := color.NRGBA{dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3]}
				v := quantize(paint.Luminance(c), bias+0.5)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = v, v, v
				continue
			}
			for ch := 0; ch < 3; ch++ {
				dst.Pix[i+ch] = quantize(float64(dst.Pix[i+ch]), bias+0.5)
			}
		}
	}
	return dst, nil
}

// bayerMatrix builds the recursive Bayer index matrix of size n (a power of two)
func bayerMatrix(n int) [][]int {
	m := [][]int{{0}}
	for size := 1; size < n; size *= 2 {
		next := make([][]int, size*2)
		for i := range next {
			next[i] = make([]int, size*2)
		}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				v := 4 * m[y][x]
				next[y][x] = v
				next[y][x+size] = v + 2
				next[y+size][x] = v + 3
				next[y+size][x+size] = v + 1
			}
		}
		m = next
	}
	return m
}

// FloydSteinberg applies error-diffusion dithering to a uniform palette of
// Levels values per channel, or a gray ramp when Gray is set.
type FloydSteinberg struct {
	Levels int  `json:"levels"`
	Gray   bool `json:"gray"`
}

func (f *FloydSteinberg) Name() string { return "floyd_steinberg" }

func (f *FloydSteinberg) Validate() error {
	max := 6
	if f.Gray {
		max = 256
	}
	if f.Levels < 2 || f.Levels > max {
		return invalid("levels %d outside 2..%d", f.Levels, max)
	}
	return nil
}

func (f *FloydSteinberg) Apply(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	pal := uniformPalette(f.Levels, f.Gray)
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return toNRGBA(dst), nil
}

func uniformPalette(levels int, gray bool) color.Palette {
	step := 255.0 / float64(levels-1)
	var pal color.Palette
	if gray {
		for i := 0; i < levels; i++ {
			v := paint.ClampByte(float64(i) * step)
			pal = append(pal, color.NRGBA{v, v, v, 255})
		}
		return pal
	}
	for r := 0; r < levels; r++ {
		for g := 0; g < levels; g++ {
			for bl := 0; bl < levels; bl++ {
				pal = append(pal, color.NRGBA{
					paint.ClampByte(float64(r) * step),
					paint.ClampByte(float64(g) * step),
					paint.ClampByte(float64(bl) * step),
					255,
				})
			}
		}
	}
	return pal
}

// Halftone renders black dots on white whose area follows the darkness of
// each CellSize x CellSize block.
type Halftone struct {
	CellSize int `json:"cell_size"`
}

func (f *Halftone) Name() string { return "halftone" }

func (f *Halftone) Validate() error {
	if f.CellSize < 2 {
		return invalid("cell size must be at least 2, got %d", f.CellSize)
	}
	return nil
}

func (f *Halftone) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	cell := f.CellSize
	for cy := 0; cy < h; cy += cell {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for cx := 0; cx < w; cx += cell {
			block := image.Rect(cx, cy, cx+cell, cy+cell).Intersect(src.Bounds())

			var sum float64
			for y := block.Min.Y; y < block.Max.Y; y++ {
				for x := block.Min.X; x < block.Max.X; x++ {
					sum += paint.Luminance(src.NRGBAAt(x, y))
				}
			}
			darkness := 1 - sum/float64(block.Dx()*block.Dy())/255
			if darkness < 0.5/255 {
				continue
			}

			// Dot area proportional to darkness
			radius := float64(cell) / 2 * math.Sqrt(2*darkness)
			mx := float64(block.Min.X) + float64(cell)/2
			my := float64(block.Min.Y) + float64(cell)/2
			for y := block.Min.Y; y < block.Max.Y; y++ {
				for x := block.Min.X; x < block.Max.X; x++ {
					if math.Hypot(float64(x)+0.5-mx, float64(y)+0.5-my) <= radius {
						dst.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
					}
				}
			}
		}
	}
	return dst, nil
}
