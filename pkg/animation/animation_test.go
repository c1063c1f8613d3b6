package animation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

var testPalette = color.Palette{
	color.NRGBA{0, 0, 0, 255},
	color.NRGBA{255, 0, 0, 255},
	color.NRGBA{0, 255, 0, 255},
	color.NRGBA{0, 0, 255, 255},
}

func solidFrame(width, height int, c color.NRGBA, delay time.Duration) Frame {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return Frame{Image: img, Delay: delay}
}

func TestAssembleAndSplit(t *testing.T) {
	frames := []Frame{
		solidFrame(16, 8, color.NRGBA{255, 0, 0, 255}, 50*time.Millisecond),
		solidFrame(16, 8, color.NRGBA{0, 255, 0, 255}, 200*time.Millisecond),
		solidFrame(16, 8, color.NRGBA{0, 0, 255, 255}, 0),
	}

	data, err := Assemble(context.Background(), frames, AssembleOptions{LoopCount: 3, Palette: testPalette})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out, loop, err := Split(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if loop != 3 {
		t.Errorf("Expected loop count 3, got %d", loop)
	}
	if len(out) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(out))
	}

	wantDelays := []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, DefaultDelay}
	wantColors := []color.NRGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	for i, f := range out {
		if f.Delay != wantDelays[i] {
			t.Errorf("Frame %d: expected delay %v, got %v", i, wantDelays[i], f.Delay)
		}
		if f.Image.Bounds().Dx() != 16 || f.Image.Bounds().Dy() != 8 {
			t.Errorf("Frame %d: expected 16x8, got %v", i, f.Image.Bounds())
		}
		if c := f.Image.NRGBAAt(3, 3); c != wantColors[i] {
			t.Errorf("Frame %d: expected %v, got %v", i, wantColors[i], c)
		}
	}
}

func TestAssembleLoopCount(t *testing.T) {
	frames := []Frame{
		solidFrame(4, 4, color.NRGBA{255, 0, 0, 255}, 0),
		solidFrame(4, 4, color.NRGBA{0, 0, 255, 255}, 0),
	}

	// The value is written unchanged into the NETSCAPE2.0 extension, where
	// n repeats follow the first play
	for _, loop := range []int{0, -1, 1, 5} {
		data, err := Assemble(context.Background(), frames, AssembleOptions{LoopCount: loop, Palette: testPalette})
		if err != nil {
			t.Fatalf("loop %d: unexpected error: %v", loop, err)
		}
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("loop %d: decode failed: %v", loop, err)
		}
		if g.LoopCount != loop {
			t.Errorf("Expected loop count %d, got %d", loop, g.LoopCount)
		}
	}
}

func TestAssembleDefaultPaletteDither(t *testing.T) {
	frames := []Frame{solidFrame(8, 8, color.NRGBA{250, 10, 10, 255}, 0)}

	data, err := Assemble(context.Background(), frames, AssembleOptions{Dither: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out, _, err := Split(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c := out[0].Image.NRGBAAt(4, 4); c.R < 150 || c.G > 100 || c.B > 100 {
		t.Errorf("Expected a reddish pixel, got %v", c)
	}
}

func TestSplitDisposal(t *testing.T) {
	full := image.NewPaletted(image.Rect(0, 0, 10, 10), testPalette)
	for i := range full.Pix {
		full.Pix[i] = 1 // red
	}
	patch := image.NewPaletted(image.Rect(2, 2, 5, 5), testPalette)
	for i := range patch.Pix {
		patch.Pix[i] = 3 // blue
	}
	last := image.NewPaletted(image.Rect(0, 0, 1, 1), testPalette)
	last.Pix[0] = 2 // green

	g := &gif.GIF{
		Image:    []*image.Paletted{full, patch, last},
		Delay:    []int{10, 10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone},
		Config:   image.Config{ColorModel: testPalette, Width: 10, Height: 10},
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("Failed to encode gif: %v", err)
	}

	frames, _, err := Split(&buf)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}

	// The patch is composited over the first frame
	if c := frames[1].Image.NRGBAAt(3, 3); c != blue {
		t.Errorf("Expected blue patch, got %v", c)
	}
	if c := frames[1].Image.NRGBAAt(8, 8); c != red {
		t.Errorf("Expected red outside the patch, got %v", c)
	}

	// DisposalPrevious restores the canvas before the third frame
	if c := frames[2].Image.NRGBAAt(3, 3); c != red {
		t.Errorf("Expected patch to be disposed, got %v", c)
	}
	if c := frames[2].Image.NRGBAAt(0, 0); c != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Expected green corner, got %v", c)
	}
}

func TestSplitGarbage(t *testing.T) {
	if _, _, err := Split(bytes.NewReader([]byte("GIF89a nope"))); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestAssembleErrors(t *testing.T) {
	if _, err := Assemble(context.Background(), nil, AssembleOptions{}); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Expected ErrNoFrames, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames := []Frame{solidFrame(4, 4, color.NRGBA{255, 0, 0, 255}, 0)}
	if _, err := Assemble(ctx, frames, AssembleOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResize(t *testing.T) {
	frames := []Frame{
		solidFrame(40, 20, color.NRGBA{255, 0, 0, 255}, 30*time.Millisecond),
		solidFrame(40, 20, color.NRGBA{0, 255, 0, 255}, 40*time.Millisecond),
	}

	out, err := Resize(context.Background(), scaler.New(), frames, 20, 0, scaler.Explicit)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i, f := range out {
		if f.Image.Bounds().Dx() != 20 || f.Image.Bounds().Dy() != 10 {
			t.Errorf("Frame %d: expected 20x10, got %v", i, f.Image.Bounds())
		}
		if f.Delay != frames[i].Delay {
			t.Errorf("Frame %d: expected delay kept", i)
		}
	}
	if Duration(out) != 70*time.Millisecond {
		t.Errorf("Expected total 70ms, got %v", Duration(out))
	}
}
