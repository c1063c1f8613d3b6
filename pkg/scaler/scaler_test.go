package scaler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

// createTestImage creates a simple test image with a bright subject in the center
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.config.Algorithm != Lanczos {
		t.Errorf("Expected Lanczos by default, got %v", s.config.Algorithm)
	}
	if !s.config.AllowUpscale {
		t.Error("Expected AllowUpscale to be true by default")
	}
}

func TestScaleResizeTypes(t *testing.T) {
	s := New()
	img := createTestImage(400, 300)
	ctx := context.Background()

	tests := []struct {
		name       string
		resizeType ResizeType
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{"explicit", Explicit, 200, 100, 200, 100},
		{"explicit derived height", Explicit, 200, 0, 200, 150},
		{"explicit derived width", Explicit, 0, 150, 200, 150},
		{"flexible", Flexible, 200, 200, 200, 150},
		{"flexible tall box", Flexible, 100, 400, 100, 75},
		{"center crop", CenterCrop, 200, 200, 200, 200},
		{"fit", Fit, 200, 200, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Scale(ctx, img, tt.width, tt.height, tt.resizeType)
			if err != nil {
				t.Fatalf("Scale failed: %v", err)
			}
			b := out.Bounds()
			if b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, b.Dx(), b.Dy())
			}
		})
	}
}

func TestScaleFitPadsWithBackground(t *testing.T) {
	s := NewWithConfig(Config{
		Algorithm:    Lanczos,
		AllowUpscale: true,
		Background:   color.NRGBA{255, 0, 0, 255},
	})

	out, err := s.Scale(context.Background(), createTestImage(400, 200), 200, 200, Fit)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}

	// 400x200 fits as 200x100, leaving 50px bands top and bottom
	r, g, b, _ := out.At(100, 10).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("Expected red padding, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestScaleFlexibleNoUpscale(t *testing.T) {
	s := NewWithConfig(Config{Algorithm: Lanczos, AllowUpscale: false})
	img := createTestImage(100, 50)

	out, err := s.Scale(context.Background(), img, 1000, 1000, Flexible)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}
	if out != img {
		t.Error("Expected the source image to be returned when upscaling is disabled")
	}
}

func TestScaleInvalidSize(t *testing.T) {
	s := New()
	_, err := s.Scale(context.Background(), createTestImage(10, 10), 0, 0, Explicit)
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestScaleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Scale(ctx, createTestImage(10, 10), 5, 5, Explicit); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScaleAlgorithms(t *testing.T) {
	img := createTestImage(64, 64)
	for name, algo := range algorithmNames {
		s := NewWithConfig(Config{Algorithm: algo, AllowUpscale: true})
		out, err := s.Scale(context.Background(), img, 32, 16, Explicit)
		if err != nil {
			t.Fatalf("%s: Scale failed: %v", name, err)
		}
		if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 16 {
			t.Errorf("%s: expected 32x16, got %v", name, out.Bounds())
		}
	}
}

func TestScaleByFactor(t *testing.T) {
	s := New()
	img := createTestImage(100, 60)

	out, err := s.ScaleByPercent(img, 50)
	if err != nil {
		t.Fatalf("ScaleByPercent failed: %v", err)
	}
	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 30 {
		t.Errorf("Expected 50x30, got %v", out.Bounds())
	}

	tiny, err := s.ScaleByFactor(img, 0.001)
	if err != nil {
		t.Fatalf("ScaleByFactor failed: %v", err)
	}
	if tiny.Bounds().Dx() < 1 || tiny.Bounds().Dy() < 1 {
		t.Errorf("Expected at least 1x1, got %v", tiny.Bounds())
	}

	if _, err := s.ScaleByFactor(img, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestScaleUntilFits(t *testing.T) {
	s := New()
	img := createTestImage(300, 200)

	out, err := s.ScaleUntilFits(img, 10000)
	if err != nil {
		t.Fatalf("ScaleUntilFits failed: %v", err)
	}
	if SizeOf(out).Area() > 10000 {
		t.Errorf("Expected at most 10000 pixels, got %d", SizeOf(out).Area())
	}

	same, err := s.ScaleUntilFits(img, 60000)
	if err != nil {
		t.Fatalf("ScaleUntilFits failed: %v", err)
	}
	if same != img {
		t.Error("Expected unchanged image when already within budget")
	}
}

func TestFlexibleSize(t *testing.T) {
	tests := []struct {
		src, target, want Size
	}{
		{Size{400, 300}, Size{200, 200}, Size{200, 150}},
		{Size{300, 400}, Size{200, 200}, Size{150, 200}},
		{Size{100, 100}, Size{300, 200}, Size{200, 200}},
		{Size{1000, 1}, Size{10, 10}, Size{10, 1}},
	}

	for _, tt := range tests {
		if got := FlexibleSize(tt.src, tt.target); got != tt.want {
			t.Errorf("FlexibleSize(%v, %v) = %v, want %v", tt.src, tt.target, got, tt.want)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if rt, err := ParseResizeType("center-crop"); err != nil || rt != CenterCrop {
		t.Errorf("ParseResizeType(center-crop) = %v, %v", rt, err)
	}
	if _, err := ParseResizeType("stretchy"); err == nil {
		t.Error("Expected error for unknown resize type")
	}
	if a, err := ParseAlgorithm("bicubic"); err != nil || a != Bicubic {
		t.Errorf("ParseAlgorithm(bicubic) = %v, %v", a, err)
	}
}
