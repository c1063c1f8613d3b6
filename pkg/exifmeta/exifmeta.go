// Package exifmeta reads EXIF metadata and applies or removes its effects.
package exifmeta

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

// ErrNoExif is returned when the stream carries no EXIF block
var ErrNoExif = errors.New("no exif metadata")

// Metadata holds the decoded EXIF block
type Metadata struct {
	// Tags maps every field name to its printable value
	Tags map[string]string

	x *exif.Exif
}

// Read decodes EXIF metadata from r
func Read(r io.Reader) (*Metadata, error) {
	x, err := exif.Decode(r)
	// Non-critical errors still leave usable tags
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("%w: %v", ErrNoExif, err)
	}

	m := &Metadata{Tags: make(map[string]string), x: x}
	if err := x.Walk(m); err != nil {
		return nil, fmt.Errorf("failed to walk exif tags: %w", err)
	}
	return m, nil
}

// ReadBytes decodes EXIF metadata from an encoded image
func ReadBytes(data []byte) (*Metadata, error) {
	return Read(bytes.NewReader(data))
}

// Walk implements exif.Walker
func (m *Metadata) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			m.Tags[string(name)] = strings.TrimRight(s, "\x00 ")
			return nil
		}
	}
	m.Tags[string(name)] = tag.String()
	return nil
}

// Names returns the tag names present, sorted
func (m *Metadata) Names() []string {
	names := make([]string, 0, len(m.Tags))
	for name := range m.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Orientation returns the EXIF orientation 1..8, defaulting to 1
func (m *Metadata) Orientation() int {
	tag, err := m.x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	ori, err := tag.Int(0)
	if err != nil || ori < 1 || ori > 8 {
		return 1
	}
	return ori
}

// DateTime returns the capture time
func (m *Metadata) DateTime() (time.Time, error) {
	return m.x.DateTime()
}

// LatLong returns the GPS position in decimal degrees
func (m *Metadata) LatLong() (float64, float64, error) {
	return m.x.LatLong()
}

// CameraModel returns "Make Model" with whichever parts are present
func (m *Metadata) CameraModel() string {
	var parts []string
	for _, name := range []exif.FieldName{exif.Make, exif.Model} {
		tag, err := m.x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if s = strings.TrimRight(s, "\x00 "); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Orient applies an EXIF orientation to an image decoded without auto-orientation
func Orient(img image.Image, orientation int) (image.Image, error) {
	switch orientation {
	case 1:
		return img, nil
	case 2:
		return imaging.FlipH(img), nil
	case 3:
		return imaging.Rotate180(img), nil
	case 4:
		return imaging.FlipV(img), nil
	case 5:
		return imaging.Transpose(img), nil
	case 6:
		return imaging.Rotate270(img), nil
	case 7:
		return imaging.Transverse(img), nil
	case 8:
		return imaging.Rotate90(img), nil
	}
	return nil, fmt.Errorf("invalid exif orientation %d", orientation)
}

// Strip re-encodes data in its own format. The orientation is baked into the
// pixels and every metadata block is dropped.
func Strip(data []byte, quality int) ([]byte, error) {
	format, err := imagetype.Detect(data)
	if err != nil {
		return nil, err
	}

	img, err := codec.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := codec.EncodeBytes(img, codec.Options{Format: format, Quality: quality})
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode image: %w", err)
	}
	return out, nil
}
