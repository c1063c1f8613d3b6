// Package imagetoolbox provides image transformation: filters, resizing,
// byte-budget compression, stitching, watermarking and batch processing.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		imagetoolbox "github.com/menta2k/image-toolbox"
//		"github.com/menta2k/image-toolbox/pkg/imagetype"
//	)
//
//	func main() {
//		tb := imagetoolbox.New()
//
//		img, err := tb.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Fit the photo into 200 KB of WebP
//		res, err := tb.CompressToBytes(context.Background(), img, imagetype.WebPLossy, 200*1024)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("quality %d at %dx%d", res.Quality, res.Width, res.Height)
//	}
//
// The package is a thin layer over its components:
//
//  1. Codec (pkg/codec): decoding, encoding and the Compressor capability
//  2. Scaler (pkg/scaler): resize types, limits and the byte-budget search
//  3. Filter (pkg/filter): the filter catalog and JSON filter chains
//  4. Combine (pkg/combine): stitching and grids
//  5. Batch (pkg/batch): presets and concurrent processing
package imagetoolbox

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/menta2k/image-toolbox/pkg/batch"
	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/combine"
	"github.com/menta2k/image-toolbox/pkg/filter"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// Version of the image toolbox library
const Version = "1.0.0"

// Config holds the settings shared by the toolbox components
type Config struct {
	Scaler scaler.Config
	Bytes  scaler.BytesConfig
	// Workers bounds batch concurrency; zero uses the number of CPUs
	Workers int
	// MinImageSize is the smallest side ValidateImage accepts
	MinImageSize int
	// MaxPixels bounds the inputs Batch and ProcessImageFile decode
	MaxPixels int
}

// DefaultConfig returns the default toolbox configuration
func DefaultConfig() Config {
	return Config{
		Scaler:       scaler.DefaultConfig(),
		Bytes:        scaler.DefaultBytesConfig(),
		MinImageSize: 1,
		MaxPixels:    codec.DefaultMaxPixels,
	}
}

// Toolbox provides a high-level interface over the toolbox components
type Toolbox struct {
	config    Config
	scaler    *scaler.Scaler
	bytes     *scaler.BytesScaler
	filters   *filter.Provider
	combiner  *combine.Combiner
	processor *batch.Processor
}

// New creates a new Toolbox with default configuration
func New() *Toolbox {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Toolbox with custom configuration
func NewWithConfig(config Config) *Toolbox {
	compressor := codec.NewEncoder()
	s := scaler.NewWithConfig(config.Scaler)

	return &Toolbox{
		config:   config,
		scaler:   s,
		bytes:    scaler.NewBytesScalerWithConfig(compressor, s, config.Bytes),
		filters:  filter.NewProvider(),
		combiner: combine.NewWithScaler(s),
		processor: batch.NewWithConfig(batch.Config{
			Workers:   config.Workers,
			Scaler:    config.Scaler,
			Bytes:     config.Bytes,
			MaxPixels: config.MaxPixels,
		}, compressor),
	}
}

// LoadImage loads an image from file
func (tb *Toolbox) LoadImage(path string) (image.Image, error) {
	return codec.Open(path)
}

// LoadImageFromReader loads an image from an io.Reader
func (tb *Toolbox) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	return codec.Decode(reader)
}

// SaveImage saves an image to file in the format implied by the extension
func (tb *Toolbox) SaveImage(img image.Image, path string, quality int) error {
	return codec.Save(img, path, quality)
}

// GetImageInfo returns basic information about an image
func (tb *Toolbox) GetImageInfo(img image.Image) codec.Info {
	return codec.GetInfo(img)
}

// ValidateImage checks if an image meets the minimum size
func (tb *Toolbox) ValidateImage(img image.Image) error {
	return codec.Validate(img, tb.config.MinImageSize)
}

// Resize scales img into the width x height box using resizeType
func (tb *Toolbox) Resize(ctx context.Context, img image.Image, width, height int, resizeType scaler.ResizeType) (image.Image, error) {
	return tb.scaler.Scale(ctx, img, width, height, resizeType)
}

// CompressToBytes encodes img in format within maxBytes at the highest quality that fits
func (tb *Toolbox) CompressToBytes(ctx context.Context, img image.Image, format imagetype.Format, maxBytes int) (scaler.BytesResult, error) {
	return tb.bytes.ScaleByMaxBytes(ctx, img, format, maxBytes)
}

// FilterNames lists the filter catalog
func (tb *Toolbox) FilterNames() []string {
	return tb.filters.Names()
}

// ApplyFilters runs a JSON filter chain such as [{"type":"sepia"}] on img
func (tb *Toolbox) ApplyFilters(ctx context.Context, img image.Image, chain []byte) (image.Image, error) {
	filters, err := tb.filters.ParseChain(chain)
	if err != nil {
		return nil, err
	}
	return filters.Apply(ctx, img)
}

// Stitch joins images along one axis
func (tb *Toolbox) Stitch(ctx context.Context, imgs []image.Image, opts combine.StitchOptions) (*image.NRGBA, error) {
	return tb.combiner.Stitch(ctx, imgs, opts)
}

// Grid arranges images in a grid
func (tb *Toolbox) Grid(ctx context.Context, imgs []image.Image, opts combine.GridOptions) (*image.NRGBA, error) {
	return tb.combiner.Grid(ctx, imgs, opts)
}

// Batch runs jobs concurrently, keeping their order
func (tb *Toolbox) Batch(ctx context.Context, jobs []batch.Job) ([]batch.SaveTarget, error) {
	return tb.processor.Run(ctx, jobs)
}

// ProcessImageFile is a convenience function that loads, resizes with preset and
// writes an image into outputDir in format
func (tb *Toolbox) ProcessImageFile(ctx context.Context, inputPath, outputDir string, preset batch.Preset, format imagetype.Format) (string, error) {
	target, err := tb.processor.Process(ctx, batch.Job{Path: inputPath, Preset: preset, Format: format})
	if err != nil {
		return "", fmt.Errorf("failed to process %s: %w", inputPath, err)
	}

	paths, err := batch.Writer{Dir: outputDir, Overwrite: true}.Write(ctx, []batch.SaveTarget{target})
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%s was skipped", inputPath)
	}
	return paths[0], nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
