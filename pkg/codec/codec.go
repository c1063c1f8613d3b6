// Package codec decodes and encodes images in every format the toolbox supports.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

// DefaultQuality is used when Options.Quality is zero
const DefaultQuality = 90

// DefaultMaxPixels is the decode limit used when nothing else is configured
const DefaultMaxPixels = 100_000_000

var (
	// ErrUnsupportedFormat is returned when an image cannot be decoded or encoded
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned when an image header declares more pixels than allowed
	ErrTooLarge = errors.New("image too large")
)

// Options controls encoding
type Options struct {
	Format  imagetype.Format
	Quality int
}

func (o Options) quality() int {
	if o.Quality == 0 {
		return DefaultQuality
	}
	return imagetype.ClampQuality(o.Quality)
}

// Compressor encodes an image at a given quality. It is the capability the
// byte-budget scaler searches against.
type Compressor interface {
	Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error)
}

// Encoder is the default Compressor backed by imaging, chai2010/webp and x/image
type Encoder struct{}

// NewEncoder creates a new encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Compress implements Compressor
func (e *Encoder) Compress(ctx context.Context, img image.Image, format imagetype.Format, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, Options{Format: format, Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an image from r, applying EXIF orientation when present
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an image from byte data with WebP fallback
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrUnsupportedFormat)
	}

	// imaging handles the registered decoders and EXIF orientation
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, ErrUnsupportedFormat
}

// DecodeBytesLimit decodes data after checking that its header declares at
// most maxPixels pixels. maxPixels <= 0 disables the check.
func DecodeBytesLimit(data []byte, maxPixels int) (image.Image, error) {
	if err := CheckPixels(data, maxPixels); err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// CheckPixels reads only the image header and fails with ErrTooLarge when
// width*height exceeds maxPixels. maxPixels <= 0 disables the check.
func CheckPixels(data []byte, maxPixels int) error {
	if maxPixels <= 0 {
		return nil
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return err
	}
	if area := int64(cfg.Width) * int64(cfg.Height); area > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// decodeConfig reads the dimensions with the registered decoders and falls
// back to chai2010/webp
func decodeConfig(data []byte) (image.Config, error) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg, nil
	}
	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg, nil
	}
	return image.Config{}, fmt.Errorf("%w: unreadable image header", ErrUnsupportedFormat)
}

// Open loads an image from a file path
func Open(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Encode writes img to w in opts.Format
func Encode(w io.Writer, img image.Image, opts Options) error {
	switch opts.Format {
	case imagetype.JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.quality()))
	case imagetype.PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case imagetype.WebPLossy:
		return webp.Encode(w, img, &webp.Options{Quality: float32(opts.quality())})
	case imagetype.WebPLossless:
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	case imagetype.GIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	case imagetype.BMP:
		return bmp.Encode(w, img)
	case imagetype.TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, opts.Format)
	}
}

// EncodeBytes encodes img into a byte slice
func EncodeBytes(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes img to path. The format follows the extension; quality applies to lossy formats.
func Save(img image.Image, path string, quality int) error {
	format, err := imagetype.FromFilename(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, img, Options{Format: format, Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
