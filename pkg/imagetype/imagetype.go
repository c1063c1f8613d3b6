// Package imagetype describes the output formats the toolbox can read and write.
package imagetype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnknownFormat is returned when a name, extension or byte stream does not map to a Format
var ErrUnknownFormat = errors.New("unknown image format")

// Format identifies an encoded image format
type Format int

const (
	JPEG Format = iota
	PNG
	WebPLossy
	WebPLossless
	GIF
	BMP
	TIFF
)

// All returns every supported format
func All() []Format {
	return []Format{JPEG, PNG, WebPLossy, WebPLossless, GIF, BMP, TIFF}
}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case WebPLossy:
		return "webp"
	case WebPLossless:
		return "webp-lossless"
	case GIF:
		return "gif"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return "jpg"
	case WebPLossy, WebPLossless:
		return "webp"
	default:
		return f.String()
	}
}

// MimeType returns the IANA media type of the format
func (f Format) MimeType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case WebPLossy, WebPLossless:
		return "image/webp"
	case GIF:
		return "image/gif"
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// CanChangeQuality reports whether the encoder exposes a quality knob
func (f Format) CanChangeQuality() bool {
	return f == JPEG || f == WebPLossy
}

// SupportsAlpha reports whether the format keeps an alpha channel
func (f Format) SupportsAlpha() bool {
	switch f {
	case PNG, WebPLossy, WebPLossless, GIF, TIFF:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat maps a format name or file extension to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp", "webp-lossy":
		return WebPLossy, nil
	case "webp-lossless", "webpll":
		return WebPLossless, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FromFilename derives the format from a file extension
func FromFilename(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// FromMimeType maps a media type to a Format. WebP maps to the lossy variant;
// use Detect to tell lossless WebP apart.
func FromMimeType(mime string) (Format, error) {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return JPEG, nil
	case "image/png":
		return PNG, nil
	case "image/webp":
		return WebPLossy, nil
	case "image/gif":
		return GIF, nil
	case "image/bmp", "image/x-ms-bmp":
		return BMP, nil
	case "image/tiff":
		return TIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, mime)
	}
}

// Detect sniffs the encoded bytes and returns their format.
// WebP streams are told apart by their bitstream chunk.
func Detect(data []byte) (Format, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty data", ErrUnknownFormat)
	}
	f, err := FromMimeType(mimetype.Detect(data).String())
	if err != nil {
		return 0, err
	}
	if f == WebPLossy && webpLossless(data) {
		return WebPLossless, nil
	}
	return f, nil
}

// webpLossless walks the RIFF chunks after the "WEBP" tag until it finds
// the VP8 (lossy) or VP8L (lossless) bitstream
func webpLossless(data []byte) bool {
	for off := 12; off+8 <= len(data); {
		switch string(data[off : off+4]) {
		case "VP8L":
			return true
		case "VP8 ":
			return false
		}
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if uint64(size) > uint64(len(data)) {
			return false
		}
		off += 8 + int(size) + int(size&1)
	}
	return false
}

// ClampQuality bounds an encoder quality to 1..100
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
