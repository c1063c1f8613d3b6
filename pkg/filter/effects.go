package filter

import (
	"context"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
)

// GaussianBlur blurs with the given Sigma
type GaussianBlur struct {
	Sigma float64 `json:"sigma"`
}

func (f *GaussianBlur) Name() string { return "gaussian_blur" }

func (f *GaussianBlur) Validate() error {
	if f.Sigma < 0 {
		return invalid("sigma must not be negative, got %v", f.Sigma)
	}
	return nil
}

func (f *GaussianBlur) Apply(_ context.Context, img image.Image) (image.Image, error) {
	if f.Sigma == 0 {
		return img, nil
	}
	return imaging.Blur(img, f.Sigma), nil
}

// BoxBlur averages a square neighbourhood of the given Radius
type BoxBlur struct {
	Radius float64 `json:"radius"`
}

func (f *BoxBlur) Name() string { return "box_blur" }

func (f *BoxBlur) Validate() error {
	if f.Radius < 0 {
		return invalid("radius must not be negative, got %v", f.Radius)
	}
	return nil
}

func (f *BoxBlur) Apply(_ context.Context, img image.Image) (image.Image, error) {
	if f.Radius == 0 {
		return img, nil
	}
	return blur.Box(img, f.Radius), nil
}

// Sharpen sharpens with the given Sigma
type Sharpen struct {
	Sigma float64 `json:"sigma"`
}

func (f *Sharpen) Name() string { return "sharpen" }

func (f *Sharpen) Validate() error {
	if f.Sigma <= 0 {
		return invalid("sigma must be positive, got %v", f.Sigma)
	}
	return nil
}

func (f *Sharpen) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, f.Sigma), nil
}

// UnsharpMask sharpens by subtracting a blurred copy
type UnsharpMask struct {
	Sigma     float64 `json:"sigma"`
	Amount    float64 `json:"amount"`
	Threshold float64 `json:"threshold"`
}

func (f *UnsharpMask) Name() string { return "unsharp_mask" }

func (f *UnsharpMask) Validate() error {
	if f.Sigma <= 0 || f.Amount < 0 || f.Threshold < 0 {
		return invalid("sigma must be positive and amount/threshold not negative")
	}
	return nil
}

func (f *UnsharpMask) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.UnsharpMask(float32(f.Sigma), float32(f.Amount), float32(f.Threshold))), nil
}

// Median replaces each pixel with the median of a Size x Size window
type Median struct {
	Size int  `json:"size"`
	Disk bool `json:"disk"`
}

func (f *Median) Name() string { return "median" }

func (f *Median) Validate() error { return validateKernelSize(f.Size) }

func (f *Median) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Median(f.Size, f.Disk)), nil
}

// Minimum replaces each pixel with the darkest of its window
type Minimum struct {
	Size int  `json:"size"`
	Disk bool `json:"disk"`
}

func (f *Minimum) Name() string { return "minimum" }

func (f *Minimum) Validate() error { return validateKernelSize(f.Size) }

func (f *Minimum) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Minimum(f.Size, f.Disk)), nil
}

// Maximum replaces each pixel with the brightest of its window
type Maximum struct {
	Size int  `json:"size"`
	Disk bool `json:"disk"`
}

func (f *Maximum) Name() string { return "maximum" }

func (f *Maximum) Validate() error { return validateKernelSize(f.Size) }

func (f *Maximum) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Maximum(f.Size, f.Disk)), nil
}

// Pixelate groups pixels into Size x Size blocks
type Pixelate struct {
	Size int `json:"size"`
}

func (f *Pixelate) Name() string { return "pixelate" }

func (f *Pixelate) Validate() error {
	if f.Size < 1 {
		return invalid("size must be at least 1, got %d", f.Size)
	}
	return nil
}

func (f *Pixelate) Apply(_ context.Context, img image.Image) (image.Image, error) {
	if f.Size == 1 {
		return img, nil
	}
	return applyGift(img, gift.Pixelate(f.Size)), nil
}

// Emboss gives a raised relief look
type Emboss struct{}

func (f *Emboss) Name() string { return "emboss" }

func (f *Emboss) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return effect.Emboss(img), nil
}

// Sobel highlights gradients with the Sobel operator
type Sobel struct{}

func (f *Sobel) Name() string { return "sobel" }

func (f *Sobel) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return effect.Sobel(img), nil
}

// EdgeDetect outlines edges with a Laplacian of the given Radius
type EdgeDetect struct {
	Radius float64 `json:"radius"`
}

func (f *EdgeDetect) Name() string { return "edge_detect" }

func (f *EdgeDetect) Validate() error {
	if f.Radius <= 0 {
		return invalid("radius must be positive, got %v", f.Radius)
	}
	return nil
}

func (f *EdgeDetect) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return effect.EdgeDetection(img, f.Radius), nil
}

// Dilate grows bright regions
type Dilate struct {
	Radius float64 `json:"radius"`
}

func (f *Dilate) Name() string { return "dilate" }

func (f *Dilate) Validate() error {
	if f.Radius <= 0 {
		return invalid("radius must be positive, got %v", f.Radius)
	}
	return nil
}

func (f *Dilate) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return effect.Dilate(img, f.Radius), nil
}

// Erode shrinks bright regions
type Erode struct {
	Radius float64 `json:"radius"`
}

func (f *Erode) Name() string { return "erode" }

func (f *Erode) Validate() error {
	if f.Radius <= 0 {
		return invalid("radius must be positive, got %v", f.Radius)
	}
	return nil
}

func (f *Erode) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return effect.Erode(img, f.Radius), nil
}

// Convolution applies a square kernel given in row-major order
type Convolution struct {
	Kernel    []float32 `json:"kernel"`
	Normalize bool      `json:"normalize"`
	Alpha     bool      `json:"alpha"`
	Abs       bool      `json:"abs"`
	Delta     float32   `json:"delta"`
}

func (f *Convolution) Name() string { return "convolution" }

func (f *Convolution) Validate() error {
	n := len(f.Kernel)
	side := int(math.Sqrt(float64(n)))
	if n == 0 || side*side != n || side%2 == 0 {
		return invalid("kernel must be an odd square, got %d values", n)
	}
	return nil
}

func (f *Convolution) Apply(_ context.Context, img image.Image) (image.Image, error) {
	return applyGift(img, gift.Convolution(f.Kernel, f.Normalize, f.Alpha, f.Abs, f.Delta)), nil
}

// Vignette darkens the corners. Strength is 0..1, Radius is the
// normalized distance from the center where darkening starts.
type Vignette struct {
	Strength float64 `json:"strength"`
	Radius   float64 `json:"radius"`
}

func (f *Vignette) Name() string { return "vignette" }

func (f *Vignette) Validate() error {
	if f.Strength < 0 || f.Strength > 1 {
		return invalid("strength %v outside 0..1", f.Strength)
	}
	if f.Radius < 0 || f.Radius > 1 {
		return invalid("radius %v outside 0..1", f.Radius)
	}
	return nil
}

func (f *Vignette) Apply(ctx context.Context, img image.Image) (image.Image, error) {
	dst := toNRGBA(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / maxDist
			if d <= f.Radius {
				continue
			}
			t := (d - f.Radius) / (1 - f.Radius + 1e-9)
			k := 1 - f.Strength*smoothstep(t)
			i := y*dst.Stride + x*4
			dst.Pix[i+0] = uint8(float64(dst.Pix[i+0]) * k)
			dst.Pix[i+1] = uint8(float64(dst.Pix[i+1]) * k)
			dst.Pix[i+2] = uint8(float64(dst.Pix[i+2]) * k)
		}
	}
	return dst, nil
}

func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func validateKernelSize(size int) error {
	if size < 1 || size%2 == 0 {
		return invalid("kernel size must be a positive odd number, got %d", size)
	}
	return nil
}
