package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-toolbox/pkg/batch"
	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/paint"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// Config holds the application configuration
type Config struct {
	Codec   CodecConfig    `json:"codec" toml:"codec" yaml:"codec"`
	Scaler  ScalerConfig   `json:"scaler" toml:"scaler" yaml:"scaler"`
	Batch   BatchConfig    `json:"batch" toml:"batch" yaml:"batch"`
	Server  ServerConfig   `json:"server" toml:"server" yaml:"server"`
	Presets []PresetConfig `json:"presets" toml:"presets" yaml:"presets"`
}

// CodecConfig holds encoding defaults
type CodecConfig struct {
	DefaultFormat  string `json:"default_format" toml:"default_format" yaml:"default_format"`
	DefaultQuality int    `json:"default_quality" toml:"default_quality" yaml:"default_quality"`
	WebPLossless   bool   `json:"webp_lossless" toml:"webp_lossless" yaml:"webp_lossless"`
	// MaxPixels rejects inputs whose header declares more pixels; 0 disables the check
	MaxPixels int `json:"max_pixels" toml:"max_pixels" yaml:"max_pixels"`
}

// ScalerConfig holds resampling and byte-budget search settings
type ScalerConfig struct {
	Algorithm         string  `json:"algorithm" toml:"algorithm" yaml:"algorithm"`
	AllowUpscale      bool    `json:"allow_upscale" toml:"allow_upscale" yaml:"allow_upscale"`
	Background        string  `json:"background" toml:"background" yaml:"background"`
	MinQuality        int     `json:"min_quality" toml:"min_quality" yaml:"min_quality"`
	MaxQuality        int     `json:"max_quality" toml:"max_quality" yaml:"max_quality"`
	ScaleStep         float64 `json:"scale_step" toml:"scale_step" yaml:"scale_step"`
	MaxDownscaleSteps int     `json:"max_downscale_steps" toml:"max_downscale_steps" yaml:"max_downscale_steps"`
	// WorkingPixels shrinks decoded inputs above this many pixels before processing; 0 disables it
	WorkingPixels int `json:"working_pixels" toml:"working_pixels" yaml:"working_pixels"`
}

// BatchConfig holds configuration for batch processing
type BatchConfig struct {
	Workers   int    `json:"workers" toml:"workers" yaml:"workers"`
	OutputDir string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`
	Prefix    string `json:"prefix" toml:"prefix" yaml:"prefix"`
	Suffix    string `json:"suffix" toml:"suffix" yaml:"suffix"`
	Overwrite bool   `json:"overwrite" toml:"overwrite" yaml:"overwrite"`
}

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr        string `json:"addr" toml:"addr" yaml:"addr"`
	BodyLimitMB int    `json:"body_limit_mb" toml:"body_limit_mb" yaml:"body_limit_mb"`
}

// PresetConfig names a preset such as "50%" or "512x512"
type PresetConfig struct {
	Name  string `json:"name" toml:"name" yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// Default returns a configuration with default values
func Default() *Config {
	bytesCfg := scaler.DefaultBytesConfig()
	return &Config{
		Codec: CodecConfig{
			DefaultFormat:  "jpg",
			DefaultQuality: 90,
			MaxPixels:      codec.DefaultMaxPixels,
		},
		Scaler: ScalerConfig{
			Algorithm:         "lanczos",
			AllowUpscale:      true,
			Background:        "#00000000",
			MinQuality:        bytesCfg.MinQuality,
			MaxQuality:        bytesCfg.MaxQuality,
			ScaleStep:         bytesCfg.ScaleStep,
			MaxDownscaleSteps: bytesCfg.MaxDownscaleSteps,
			WorkingPixels:     40_000_000,
		},
		Batch: BatchConfig{
			Workers:   0,
			OutputDir: "./output",
			Prefix:    "",
			Suffix:    "_edited",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 32,
		},
		Presets: []PresetConfig{
			{Name: "half", Value: "50%"},
			{Name: "sticker", Value: "512x512"},
			{Name: "avatar", Value: "256x256"},
		},
	}
}

// LoadFromFile loads configuration from a JSON, TOML or YAML file, chosen by
// extension. Fields missing from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	// Lists replace rather than merge
	config.Presets = nil

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Presets == nil {
		config.Presets = Default().Presets
	}
	return config, nil
}

// LoadOptional loads filename if it exists and returns defaults otherwise
func LoadOptional(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	config, err := LoadFromFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration in the format implied by the extension
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := imagetype.ParseFormat(c.Codec.DefaultFormat); err != nil {
		return fmt.Errorf("codec.default_format: %w", err)
	}

	if c.Codec.DefaultQuality < 1 || c.Codec.DefaultQuality > 100 {
		return fmt.Errorf("codec.default_quality must be between 1 and 100")
	}

	if c.Codec.MaxPixels < 0 {
		return fmt.Errorf("codec.max_pixels cannot be negative")
	}

	if c.Scaler.WorkingPixels < 0 {
		return fmt.Errorf("scaler.working_pixels cannot be negative")
	}

	if c.Codec.MaxPixels > 0 && c.Scaler.WorkingPixels > c.Codec.MaxPixels {
		return fmt.Errorf("scaler.working_pixels %d exceeds codec.max_pixels %d", c.Scaler.WorkingPixels, c.Codec.MaxPixels)
	}

	if _, err := scaler.ParseAlgorithm(c.Scaler.Algorithm); err != nil {
		return fmt.Errorf("scaler.algorithm: %w", err)
	}

	if _, err := paint.ParseColor(c.Scaler.Background); err != nil {
		return fmt.Errorf("scaler.background: %w", err)
	}

	if err := c.Scaler.BytesConfig().Validate(); err != nil {
		return fmt.Errorf("scaler: %w", err)
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers cannot be negative")
	}

	if c.Server.BodyLimitMB < 1 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}

	seen := make(map[string]bool)
	for _, p := range c.Presets {
		if p.Name == "" {
			return fmt.Errorf("presets: name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("presets: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if _, err := batch.ParsePreset(p.Value); err != nil {
			return fmt.Errorf("presets.%s: %w", p.Name, err)
		}
	}

	return nil
}

// DefaultFormat returns the parsed default output format, honoring webp_lossless
func (c *Config) DefaultFormat() imagetype.Format {
	f, err := imagetype.ParseFormat(c.Codec.DefaultFormat)
	if err != nil {
		return imagetype.JPEG
	}
	if f == imagetype.WebPLossy && c.Codec.WebPLossless {
		return imagetype.WebPLossless
	}
	return f
}

// Preset resolves a preset by name, falling back to parsing name itself
func (c *Config) Preset(name string) (batch.Preset, error) {
	for _, p := range c.Presets {
		if strings.EqualFold(p.Name, name) {
			return batch.ParsePreset(p.Value)
		}
	}
	return batch.ParsePreset(name)
}

// Options converts the section into scaler settings
func (s ScalerConfig) Options() scaler.Config {
	algo, err := scaler.ParseAlgorithm(s.Algorithm)
	if err != nil {
		algo = scaler.Lanczos
	}
	bg, err := paint.ParseColor(s.Background)
	if err != nil {
		bg = paint.Transparent
	}
	return scaler.Config{
		Algorithm:    algo,
		AllowUpscale: s.AllowUpscale,
		Background:   bg.NRGBA(),
	}
}

// BytesConfig converts the section into byte-budget search settings
func (s ScalerConfig) BytesConfig() scaler.BytesConfig {
	return scaler.BytesConfig{
		MinQuality:        s.MinQuality,
		MaxQuality:        s.MaxQuality,
		ScaleStep:         s.ScaleStep,
		MaxDownscaleSteps: s.MaxDownscaleSteps,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "imagetoolbox", "config.yaml")
}
