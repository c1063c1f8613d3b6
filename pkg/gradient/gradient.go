// Package gradient renders linear, radial and sweep color gradients.
package gradient

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// ErrTooFewStops is returned when a gradient has fewer than two stops
var ErrTooFewStops = errors.New("gradient needs at least two stops")

// Type selects the gradient geometry
type Type int

const (
	Linear Type = iota
	Radial
	Sweep
)

func (t Type) String() string {
	switch t {
	case Radial:
		return "radial"
	case Sweep:
		return "sweep"
	default:
		return "linear"
	}
}

// ParseType accepts "linear", "radial" and "sweep"
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "":
		return Linear, nil
	case "radial":
		return Radial, nil
	case "sweep", "conic":
		return Sweep, nil
	}
	return Linear, fmt.Errorf("unknown gradient type %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Stop is a color at a position in 0..1 along the gradient
type Stop struct {
	Offset float64     `json:"offset" yaml:"offset"`
	Color  paint.Color `json:"color" yaml:"color"`
}

// Point is a position normalized to the image size
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Gradient describes a color ramp and its geometry
type Gradient struct {
	Type Type `json:"type" yaml:"type"`
	// Angle in degrees: the direction of a linear gradient, clockwise from
	// left-to-right, or the start of a sweep
	Angle float64 `json:"angle" yaml:"angle"`
	// Center of radial and sweep gradients; zero means the image center
	Center *Point `json:"center,omitempty" yaml:"center,omitempty"`
	// Radius of a radial gradient relative to the farthest corner; zero means 1
	Radius float64 `json:"radius" yaml:"radius"`
	Stops  []Stop  `json:"stops" yaml:"stops"`
}

// Validate checks stops and geometry
func (g Gradient) Validate() error {
	if len(g.Stops) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewStops, len(g.Stops))
	}
	for _, s := range g.Stops {
		if s.Offset < 0 || s.Offset > 1 {
			return fmt.Errorf("stop offset %v outside 0..1", s.Offset)
		}
	}
	if g.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %v", g.Radius)
	}
	return nil
}

// Render draws the gradient into a new width x height image
func (g Gradient) Render(ctx context.Context, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid gradient size %dx%d", width, height)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	stops := append([]Stop(nil), g.Stops...)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Offset < stops[j].Offset })

	param := g.parameter(width, height)
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < width; x++ {
			c := colorAt(stops, param(float64(x)+0.5, float64(y)+0.5))
			i := dst.PixOffset(x, y)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return dst, nil
}

// parameter returns the function mapping a pixel center to t in 0..1
func (g Gradient) parameter(width, height int) func(x, y float64) float64 {
	w, h := float64(width), float64(height)
	cx, cy := w/2, h/2
	if g.Center != nil {
		cx, cy = g.Center.X*w, g.Center.Y*h
	}
	rad := g.Angle * math.Pi / 180

	switch g.Type {
	case Radial:
		// Distance to the farthest corner
		far := 0.0
		for _, p := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
			far = math.Max(far, math.Hypot(p[0]-cx, p[1]-cy))
		}
		radius := g.Radius
		if radius == 0 {
			radius = 1
		}
		far *= radius
		return func(x, y float64) float64 {
			return math.Hypot(x-cx, y-cy) / far
		}

	case Sweep:
		return func(x, y float64) float64 {
			a := math.Atan2(y-cy, x-cx) - rad
			a = math.Mod(a, 2*math.Pi)
			if a < 0 {
				a += 2 * math.Pi
			}
			return a / (2 * math.Pi)
		}

	default:
		dx, dy := math.Cos(rad), math.Sin(rad)
		// Project the corners to find the extent along the direction
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
			d := p[0]*dx + p[1]*dy
			lo, hi = math.Min(lo, d), math.Max(hi, d)
		}
		span := hi - lo
		return func(x, y float64) float64 {
			return (x*dx + y*dy - lo) / span
		}
	}
}

// colorAt interpolates sorted stops at t
func colorAt(stops []Stop, t float64) color.NRGBA {
	first, last := stops[0], stops[len(stops)-1]
	if t <= first.Offset {
		return first.Color.NRGBA()
	}
	if t >= last.Offset {
		return last.Color.NRGBA()
	}
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		if t > b.Offset {
			continue
		}
		span := b.Offset - a.Offset
		if span <= 0 {
			return b.Color.NRGBA()
		}
		return paint.Lerp(a.Color.NRGBA(), b.Color.NRGBA(), (t-a.Offset)/span)
	}
	return last.Color.NRGBA()
}

// TwoColor is a convenience for the common start/end gradient
func TwoColor(t Type, from, to paint.Color) Gradient {
	return Gradient{
		Type:  t,
		Stops: []Stop{{Offset: 0, Color: from}, {Offset: 1, Color: to}},
	}
}
