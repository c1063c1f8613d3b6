package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/menta2k/image-toolbox/pkg/paint"
)

// Constructor returns a filter holding its default parameters
type Constructor func() Filter

// Provider creates filters by name
type Provider struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewProvider returns a provider with the full built-in catalog registered
func NewProvider() *Provider {
	p := &Provider{constructors: make(map[string]Constructor)}
	for _, c := range catalog() {
		p.Register(c)
	}
	return p
}

// Register adds or replaces a constructor under the name of the filter it builds
func (p *Provider) Register(c Constructor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.constructors[c().Name()] = c
}

// Names returns all registered filter names, sorted
func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.constructors))
	for name := range p.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the default parameters of every registered filter
func (p *Provider) Defaults() map[string]Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]Filter, len(p.constructors))
	for name, c := range p.constructors {
		out[name] = c()
	}
	return out
}

// New builds the named filter. Params, when given, is a JSON object whose
// fields override the defaults. The result is validated.
func (p *Provider) New(name string, params json.RawMessage) (Filter, error) {
	p.mu.RLock()
	c, ok := p.constructors[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}

	f := c()
	if len(bytes.TrimSpace(params)) > 0 && !bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		if err := json.Unmarshal(params, f); err != nil {
			return nil, fmt.Errorf("failed to decode %s parameters: %w", name, err)
		}
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Build creates a chain from specs in order
func (p *Provider) Build(specs []Spec) (Chain, error) {
	chain := make(Chain, 0, len(specs))
	for i, s := range specs {
		f, err := p.New(s.Type, s.Params)
		if err != nil {
			return nil, fmt.Errorf("filter #%d: %w", i, err)
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// ParseChain decodes a JSON array of specs and builds the chain
func (p *Provider) ParseChain(data []byte) (Chain, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
	}
	return p.Build(specs)
}

// Spec is the serialized form of a filter: {"type":"gaussian_blur","sigma":2}
type Spec struct {
	Type   string
	Params json.RawMessage
}

// SpecOf captures f's name and current parameters
func SpecOf(f Filter) (Spec, error) {
	params, err := json.Marshal(f)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to marshal %s: %w", f.Name(), err)
	}
	return Spec{Type: f.Name(), Params: params}, nil
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("failed to unmarshal filter spec: %w", err)
	}
	if head.Type == "" {
		return fmt.Errorf("filter spec is missing \"type\"")
	}

	s.Type = head.Type
	s.Params = append(json.RawMessage(nil), data...)
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(s.Params) > 0 {
		if err := json.Unmarshal(s.Params, &fields); err != nil {
			return nil, fmt.Errorf("failed to marshal %s parameters: %w", s.Type, err)
		}
	}
	typ, err := json.Marshal(s.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

func catalog() []Constructor {
	return []Constructor{
		// Color adjustments
		func() Filter { return &Brightness{} },
		func() Filter { return &Contrast{} },
		func() Filter { return &Gamma{Gamma: 1} },
		func() Filter { return &Saturation{} },
		func() Filter { return &Hue{} },
		func() Filter { return &Exposure{} },
		func() Filter { return &Grayscale{} },
		func() Filter { return &Invert{} },
		func() Filter { return &Sepia{Percentage: 100} },
		func() Filter { return &ColorBalance{} },
		func() Filter { return &Colorize{Hue: 200, Saturation: 50, Percentage: 50} },
		func() Filter { return &SigmoidalContrast{Midpoint: 0.5, Factor: 3} },
		func() Filter { return &Threshold{Percentage: 50} },
		func() Filter { return &Posterize{Levels: 4} },
		func() Filter { return &Solarize{Threshold: 128} },
		func() Filter { return &Vibrance{Amount: 0.5} },
		func() Filter { return &Tint{Color: paint.Color{R: 255, G: 160, B: 60, A: 255}, Percentage: 25} },
		func() Filter { return &Opacity{Alpha: 1} },
		func() Filter { return &ColorMatrix{Matrix: IdentityColorMatrix} },

		// Blur, sharpen and neighbourhood
		func() Filter { return &GaussianBlur{Sigma: 2} },
		func() Filter { return &BoxBlur{Radius: 3} },
		func() Filter { return &Sharpen{Sigma: 1} },
		func() Filter { return &UnsharpMask{Sigma: 1, Amount: 1, Threshold: 0} },
		func() Filter { return &Median{Size: 3} },
		func() Filter { return &Minimum{Size: 3} },
		func() Filter { return &Maximum{Size: 3} },
		func() Filter { return &Pixelate{Size: 8} },
		func() Filter { return &Emboss{} },
		func() Filter { return &Sobel{} },
		func() Filter { return &EdgeDetect{Radius: 1} },
		func() Filter { return &Dilate{Radius: 1} },
		func() Filter { return &Erode{Radius: 1} },
		func() Filter {
			return &Convolution{Kernel: []float32{0, 0, 0, 0, 1, 0, 0, 0, 0}}
		},
		func() Filter { return &Vignette{Strength: 0.6, Radius: 0.4} },

		// Geometry
		func() Filter { return &Rotate{Angle: 90, Background: paint.Transparent} },
		func() Filter { return &FlipHorizontal{} },
		func() Filter { return &FlipVertical{} },
		func() Filter { return &Crop{X: 0, Y: 0, Width: 1, Height: 1} },

		// Dithering
		func() Filter { return &BayerDither{MatrixSize: 4, Levels: 2} },
		func() Filter { return &FloydSteinberg{Levels: 2, Gray: true} },
		func() Filter { return &Halftone{CellSize: 6} },
	}
}
