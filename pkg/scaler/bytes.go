package scaler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

// ErrCannotFit is returned when no quality and no size down to 1x1 fits the byte budget
var ErrCannotFit = errors.New("image cannot fit the byte budget")

// BytesConfig tunes the byte-budget search
type BytesConfig struct {
	// MinQuality is the lowest quality the bisection may choose
	MinQuality int
	// MaxQuality is the highest quality the bisection may choose
	MaxQuality int
	// ScaleStep is the linear factor applied to both sides per downscale round
	ScaleStep float64
	// MaxDownscaleSteps bounds the number of downscale rounds
	MaxDownscaleSteps int
}

// DefaultBytesConfig returns the default search parameters
func DefaultBytesConfig() BytesConfig {
	return BytesConfig{
		MinQuality:        5,
		MaxQuality:        100,
		ScaleStep:         0.9,
		MaxDownscaleSteps: 40,
	}
}

// Validate checks the search parameters
func (c BytesConfig) Validate() error {
	if c.MinQuality < 1 || c.MaxQuality > 100 || c.MinQuality > c.MaxQuality {
		return fmt.Errorf("quality range %d..%d must lie within 1..100", c.MinQuality, c.MaxQuality)
	}
	if c.ScaleStep <= 0 || c.ScaleStep >= 1 {
		return fmt.Errorf("scale step must be in (0, 1), got %v", c.ScaleStep)
	}
	if c.MaxDownscaleSteps < 0 {
		return fmt.Errorf("max downscale steps must not be negative")
	}
	return nil
}

// BytesResult is the outcome of a byte-budget search
type BytesResult struct {
	Data     []byte
	Image    image.Image
	Format   imagetype.Format
	Quality  int
	Width    int
	Height   int
	Attempts int
}

// BytesScaler fits encoded output into a byte budget by bisecting over the
// encoder quality and downscaling when no quality fits.
type BytesScaler struct {
	compressor codec.Compressor
	scaler     *Scaler
	config     BytesConfig
}

// NewBytesScaler creates a BytesScaler with default configuration
func NewBytesScaler(compressor codec.Compressor, scaler *Scaler) *BytesScaler {
	return NewBytesScalerWithConfig(compressor, scaler, DefaultBytesConfig())
}

// NewBytesScalerWithConfig creates a BytesScaler with custom configuration
func NewBytesScalerWithConfig(compressor codec.Compressor, scaler *Scaler, config BytesConfig) *BytesScaler {
	if scaler == nil {
		scaler = New()
	}
	return &BytesScaler{
		compressor: compressor,
		scaler:     scaler,
		config:     config,
	}
}

// ScaleByMaxBytes encodes img in format so that the output is at most maxBytes.
// The returned quality is the highest one that fits at the returned dimensions,
// and the dimensions never exceed the source dimensions.
func (b *BytesScaler) ScaleByMaxBytes(ctx context.Context, img image.Image, format imagetype.Format, maxBytes int) (BytesResult, error) {
	if maxBytes <= 0 {
		return BytesResult{}, fmt.Errorf("%w: max bytes %d", ErrInvalidSize, maxBytes)
	}
	if err := b.config.Validate(); err != nil {
		return BytesResult{}, err
	}

	src := SizeOf(img)
	if src.Width == 0 || src.Height == 0 {
		return BytesResult{}, fmt.Errorf("%w: empty source image", ErrInvalidSize)
	}

	current := img
	size := src
	attempts := 0

	for step := 0; step <= b.config.MaxDownscaleSteps; step++ {
		if err := ctx.Err(); err != nil {
			return BytesResult{}, err
		}

		data, quality, ok, err := b.fitQuality(ctx, current, format, maxBytes, &attempts)
		if err != nil {
			return BytesResult{}, err
		}
		if ok {
			log.Ctx(ctx).Debug().
				Int("quality", quality).
				Int("width", size.Width).
				Int("height", size.Height).
				Int("bytes", len(data)).
				Int("attempts", attempts).
				Msg("byte budget satisfied")
			return BytesResult{
				Data:     data,
				Image:    current,
				Format:   format,
				Quality:  quality,
				Width:    size.Width,
				Height:   size.Height,
				Attempts: attempts,
			}, nil
		}

		if step == b.config.MaxDownscaleSteps {
			break
		}
		next := Size{
			Width:  max(1, int(math.Floor(float64(size.Width)*b.config.ScaleStep))),
			Height: max(1, int(math.Floor(float64(size.Height)*b.config.ScaleStep))),
		}
		if next == size {
			break
		}
		size = next
		// Always resample from the source so blur does not compound
		current = b.scaler.resample(img, size)
	}

	return BytesResult{}, fmt.Errorf("%w: %d bytes as %v, smallest tried %dx%d after %d attempts",
		ErrCannotFit, maxBytes, format, size.Width, size.Height, attempts)
}

// fitQuality bisects over quality for a fixed image and reports the highest
// fitting quality. Formats without a quality knob are encoded once.
func (b *BytesScaler) fitQuality(ctx context.Context, img image.Image, format imagetype.Format, maxBytes int, attempts *int) ([]byte, int, bool, error) {
	if !format.CanChangeQuality() {
		*attempts++
		data, err := b.compressor.Compress(ctx, img, format, b.config.MaxQuality)
		if err != nil {
			return nil, 0, false, fmt.Errorf("failed to compress: %w", err)
		}
		return data, 0, len(data) <= maxBytes, nil
	}

	lo, hi := b.config.MinQuality, b.config.MaxQuality
	var best []byte
	bestQuality := 0

	for lo <= hi {
		mid := lo + (hi-lo)/2
		*attempts++
		data, err := b.compressor.Compress(ctx, img, format, mid)
		if err != nil {
			return nil, 0, false, fmt.Errorf("failed to compress at quality %d: %w", mid, err)
		}

		log.Ctx(ctx).Debug().
			Int("quality", mid).
			Int("bytes", len(data)).
			Int("max_bytes", maxBytes).
			Msg("bisection step")

		if len(data) <= maxBytes {
			best, bestQuality = data, mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	return best, bestQuality, best != nil, nil
}
