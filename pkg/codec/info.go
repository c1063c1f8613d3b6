package codec

import (
	"fmt"
	"image"

	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

// Info contains basic image metadata
type Info struct {
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	AspectRatio float64          `json:"aspect_ratio"`
	Area        int              `json:"area"`
	Format      imagetype.Format `json:"format"`
	SizeBytes   int64            `json:"size_bytes"`
}

// GetInfo returns information about a decoded image
func GetInfo(img image.Image) Info {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := Info{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// Stat reads dimensions and format from encoded data without a full decode
func Stat(data []byte) (Info, error) {
	format, err := imagetype.Detect(data)
	if err != nil {
		return Info{}, err
	}

	cfg, err := decodeConfig(data)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Area:      cfg.Width * cfg.Height,
		Format:    format,
		SizeBytes: int64(len(data)),
	}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return info, nil
}

// Validate checks that an image is at least minSize pixels on each side
func Validate(img image.Image, minSize int) error {
	bounds := img.Bounds()
	if bounds.Dx() < minSize || bounds.Dy() < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), minSize)
	}
	return nil
}
