package scaler

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

// areaCompressor produces area*quality/100 bytes so the search is deterministic
type areaCompressor struct {
	calls int
}

func (c *areaCompressor) Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error) {
	c.calls++
	b := img.Bounds()
	return make([]byte, b.Dx()*b.Dy()*quality/100), nil
}

// fixedCompressor always produces the same number of bytes
type fixedCompressor struct {
	size int
}

func (c fixedCompressor) Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error) {
	return make([]byte, c.size), nil
}

type failingCompressor struct{}

func (failingCompressor) Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error) {
	return nil, errors.New("encoder exploded")
}

func TestScaleByMaxBytesQualityOnly(t *testing.T) {
	comp := &areaCompressor{}
	bs := NewBytesScaler(comp, New())
	img := createTestImage(100, 100)

	res, err := bs.ScaleByMaxBytes(context.Background(), img, imagetype.JPEG, 5000)
	if err != nil {
		t.Fatalf("ScaleByMaxBytes failed: %v", err)
	}

	if res.Quality != 50 {
		t.Errorf("Expected quality 50, got %d", res.Quality)
	}
	if res.Width != 100 || res.Height != 100 {
		t.Errorf("Expected dimensions to be kept, got %dx%d", res.Width, res.Height)
	}
	if len(res.Data) > 5000 {
		t.Errorf("Output %d exceeds budget", len(res.Data))
	}
	// Bisection over 5..100 needs at most 7 encodes
	if res.Attempts > 7 || comp.calls != res.Attempts {
		t.Errorf("Unexpected attempt count %d (calls %d)", res.Attempts, comp.calls)
	}
}

func TestScaleByMaxBytesDownscales(t *testing.T) {
	bs := NewBytesScaler(&areaCompressor{}, New())
	img := createTestImage(100, 100)

	res, err := bs.ScaleByMaxBytes(context.Background(), img, imagetype.WebPLossy, 100)
	if err != nil {
		t.Fatalf("ScaleByMaxBytes failed: %v", err)
	}

	if len(res.Data) > 100 {
		t.Errorf("Output %d exceeds budget", len(res.Data))
	}
	if res.Width >= 100 || res.Height >= 100 {
		t.Errorf("Expected downscaled output, got %dx%d", res.Width, res.Height)
	}
	if res.Quality < DefaultBytesConfig().MinQuality {
		t.Errorf("Quality %d below minimum", res.Quality)
	}
	// The chosen quality must be the highest that fits at the final size
	if next := res.Width * res.Height * (res.Quality + 1) / 100; next <= 100 && res.Quality < 100 {
		t.Errorf("Quality %d is not maximal, %d also fits", res.Quality, res.Quality+1)
	}
	if SizeOf(res.Image) != (Size{res.Width, res.Height}) {
		t.Errorf("Result image size %v does not match %dx%d", SizeOf(res.Image), res.Width, res.Height)
	}
}

func TestScaleByMaxBytesWithoutQualityKnob(t *testing.T) {
	bs := NewBytesScaler(&areaCompressor{}, New())

	res, err := bs.ScaleByMaxBytes(context.Background(), createTestImage(100, 100), imagetype.PNG, 2500)
	if err != nil {
		t.Fatalf("ScaleByMaxBytes failed: %v", err)
	}
	if res.Width*res.Height > 2500 {
		t.Errorf("Expected at most 2500 pixels, got %dx%d", res.Width, res.Height)
	}
	if res.Quality != 0 {
		t.Errorf("Expected quality 0 for PNG, got %d", res.Quality)
	}
}

func TestScaleByMaxBytesCannotFit(t *testing.T) {
	bs := NewBytesScaler(fixedCompressor{size: 1000}, New())

	_, err := bs.ScaleByMaxBytes(context.Background(), createTestImage(20, 20), imagetype.JPEG, 10)
	if !errors.Is(err, ErrCannotFit) {
		t.Errorf("Expected ErrCannotFit, got %v", err)
	}
}

// sizeRecorder remembers the dimensions of every image it encodes
type sizeRecorder struct {
	sizes []Size
}

func (c *sizeRecorder) Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error) {
	c.sizes = append(c.sizes, SizeOf(img))
	return make([]byte, 1000), nil
}

func TestScaleByMaxBytesStopsAfterLastRound(t *testing.T) {
	comp := &sizeRecorder{}
	config := DefaultBytesConfig()
	config.ScaleStep = 0.5
	config.MaxDownscaleSteps = 2
	bs := NewBytesScalerWithConfig(comp, New(), config)

	_, err := bs.ScaleByMaxBytes(context.Background(), createTestImage(100, 100), imagetype.PNG, 10)
	if !errors.Is(err, ErrCannotFit) {
		t.Fatalf("Expected ErrCannotFit, got %v", err)
	}

	want := []Size{{100, 100}, {50, 50}, {25, 25}}
	if len(comp.sizes) != len(want) {
		t.Fatalf("Expected %d encodes, got %v", len(want), comp.sizes)
	}
	for i := range want {
		if comp.sizes[i] != want[i] {
			t.Errorf("Round %d: expected %v, got %v", i, want[i], comp.sizes[i])
		}
	}

	// The error reports the last size that was encoded, not one past it
	if !strings.Contains(err.Error(), "smallest tried 25x25") {
		t.Errorf("Expected the last tried size in %q", err)
	}
}

func TestScaleByMaxBytesErrors(t *testing.T) {
	img := createTestImage(20, 20)

	if _, err := NewBytesScaler(&areaCompressor{}, nil).ScaleByMaxBytes(context.Background(), img, imagetype.JPEG, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}

	if _, err := NewBytesScaler(failingCompressor{}, nil).ScaleByMaxBytes(context.Background(), img, imagetype.JPEG, 100); err == nil {
		t.Error("Expected compressor error to propagate")
	}

	bad := DefaultBytesConfig()
	bad.ScaleStep = 1.5
	if _, err := NewBytesScalerWithConfig(&areaCompressor{}, nil, bad).ScaleByMaxBytes(context.Background(), img, imagetype.JPEG, 100); err == nil {
		t.Error("Expected config validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBytesScaler(&areaCompressor{}, nil).ScaleByMaxBytes(ctx, img, imagetype.JPEG, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScaleByMaxBytesRealEncoder(t *testing.T) {
	bs := NewBytesScaler(codec.NewEncoder(), New())
	img := createTestImage(320, 240)

	res, err := bs.ScaleByMaxBytes(context.Background(), img, imagetype.JPEG, 4000)
	if err != nil {
		t.Fatalf("ScaleByMaxBytes failed: %v", err)
	}
	if len(res.Data) > 4000 {
		t.Errorf("Output %d exceeds budget", len(res.Data))
	}

	decoded, err := codec.DecodeBytes(res.Data)
	if err != nil {
		t.Fatalf("Result is not decodable: %v", err)
	}
	if decoded.Bounds().Dx() != res.Width {
		t.Errorf("Decoded width %d does not match %d", decoded.Bounds().Dx(), res.Width)
	}
}
