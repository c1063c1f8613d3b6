// Package animation splits animated GIFs into full frames and assembles frames back into GIFs.
package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// DefaultDelay is used for frames without a delay
const DefaultDelay = 100 * time.Millisecond

// ErrNoFrames is returned when an animation has no frames
var ErrNoFrames = errors.New("animation has no frames")

// Frame is one fully composited animation frame
type Frame struct {
	Image *image.NRGBA
	Delay time.Duration
}

// Split decodes a GIF and returns every frame composited onto the logical
// screen, honoring each frame's disposal method, along with the loop count.
func Split(r io.Reader) ([]Frame, int, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, 0, ErrNoFrames
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	canvas := image.NewNRGBA(bounds)
	frames := make([]Frame, 0, len(g.Image))

	for i, src := range g.Image {
		var previous *image.NRGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)

		delay := DefaultDelay
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		frames = append(frames, Frame{Image: cloneNRGBA(canvas), Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames, g.LoopCount, nil
}

// AssembleOptions controls GIF encoding
type AssembleOptions struct {
	// LoopCount 0 loops forever and -1 plays once. n > 0 repeats the
	// animation n times after the first play, n+1 plays in total.
	LoopCount int
	// Palette defaults to Plan9
	Palette color.Palette
	// Dither enables Floyd-Steinberg error diffusion while quantizing
	Dither bool
}

// Assemble encodes frames as an animated GIF. Frames smaller than the first
// are drawn at the top-left of the screen.
func Assemble(ctx context.Context, frames []Frame, opts AssembleOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	pal := opts.Palette
	if len(pal) == 0 {
		pal = palette.Plan9
	}
	if len(pal) > 256 {
		return nil, fmt.Errorf("palette has %d colors, gif allows 256", len(pal))
	}

	first := frames[0].Image.Bounds()
	g := &gif.GIF{
		LoopCount: opts.LoopCount,
		Config: image.Config{
			ColorModel: pal,
			Width:      first.Dx(),
			Height:     first.Dy(),
		},
	}

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Image == nil {
			return nil, fmt.Errorf("frame %d has no image", i)
		}

		b := f.Image.Bounds()
		dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
		if opts.Dither {
			draw.FloydSteinberg.Draw(dst, dst.Bounds(), f.Image, b.Min)
		} else {
			draw.Draw(dst, dst.Bounds(), f.Image, b.Min, draw.Src)
		}

		delay := f.Delay
		if delay <= 0 {
			delay = DefaultDelay
		}

		g.Image = append(g.Image, dst)
		g.Delay = append(g.Delay, int(delay/(10*time.Millisecond)))
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("failed to encode gif: %w", err)
	}

	log.Ctx(ctx).Debug().
		Int("frames", len(frames)).
		Int("bytes", buf.Len()).
		Msg("assembled gif")

	return buf.Bytes(), nil
}

// Resize scales every frame with s, keeping delays
func Resize(ctx context.Context, s *scaler.Scaler, frames []Frame, width, height int, resizeType scaler.ResizeType) ([]Frame, error) {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		img, err := s.Scale(ctx, f.Image, width, height, resizeType)
		if err != nil {
			return nil, fmt.Errorf("failed to scale frame %d: %w", i, err)
		}
		out[i] = Frame{Image: toNRGBA(img), Delay: f.Delay}
	}
	return out, nil
}

// Duration returns the total play time of one loop
func Duration(frames []Frame) time.Duration {
	var total time.Duration
	for _, f := range frames {
		total += f.Delay
	}
	return total
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
