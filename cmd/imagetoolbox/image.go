package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/compare"
	"github.com/menta2k/image-toolbox/pkg/exifmeta"
	"github.com/menta2k/image-toolbox/pkg/filter"
	"github.com/menta2k/image-toolbox/pkg/gradient"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/paint"
	"github.com/menta2k/image-toolbox/pkg/scaler"
	"github.com/menta2k/image-toolbox/pkg/watermark"
)

type compressCmd struct {
	Input    string `arg:"" help:"Source image" type:"existingfile"`
	Output   string `help:"Output path" short:"o" type:"path"`
	Format   string `help:"Output format (jpg, png, webp, webp-lossless, gif, bmp, tiff)" short:"f"`
	Quality  int    `help:"Encoder quality for jpg and webp; 0 uses the configured default" short:"q"`
	MaxBytes int    `help:"Largest allowed output size in bytes; enables the quality and size search" name:"max-bytes"`
}

func (cmd *compressCmd) Run(app *appContext) error {
	format, err := resolveFormat(app.cfg, cmd.Format, cmd.Output)
	if err != nil {
		return err
	}
	img, err := codec.Open(cmd.Input)
	if err != nil {
		return err
	}

	var data []byte
	if cmd.MaxBytes > 0 {
		compressor := codec.NewEncoder()
		s := scaler.NewWithConfig(app.cfg.Scaler.Options())
		bs := scaler.NewBytesScalerWithConfig(compressor, s, app.cfg.Scaler.BytesConfig())
		res, err := bs.ScaleByMaxBytes(app.ctx, img, format, cmd.MaxBytes)
		if err != nil {
			return err
		}
		log.Ctx(app.ctx).Info().
			Int("quality", res.Quality).
			Int("width", res.Width).
			Int("height", res.Height).
			Int("attempts", res.Attempts).
			Msg("fitted byte budget")
		data = res.Data
	} else {
		quality := cmd.Quality
		if quality == 0 {
			quality = app.cfg.Codec.DefaultQuality
		}
		if data, err = codec.EncodeBytes(img, codec.Options{Format: format, Quality: quality}); err != nil {
			return err
		}
	}

	return writeOutput(app, outputPath(cmd.Input, cmd.Output, "_compressed", format), data)
}

type resizeCmd struct {
	Input   string `arg:"" help:"Source image" type:"existingfile"`
	Output  string `help:"Output path" short:"o" type:"path"`
	Width   int    `help:"Target width; 0 follows the aspect ratio" short:"W"`
	Height  int    `help:"Target height; 0 follows the aspect ratio" short:"H"`
	Mode    string `help:"explicit, flexible, center-crop or fit" default:"flexible" enum:"explicit,flexible,center-crop,fit"`
	Preset  string `help:"Named preset from the configuration or a literal such as 50% or 512x512" short:"p"`
	Format  string `help:"Output format" short:"f"`
	Quality int    `help:"Encoder quality" short:"q"`
}

func (cmd *resizeCmd) Run(app *appContext) error {
	format, err := resolveFormat(app.cfg, cmd.Format, cmd.Output)
	if err != nil {
		return err
	}
	img, err := codec.Open(cmd.Input)
	if err != nil {
		return err
	}
	s := scaler.NewWithConfig(app.cfg.Scaler.Options())

	if cmd.Preset != "" {
		preset, err := app.cfg.Preset(cmd.Preset)
		if err != nil {
			return err
		}
		if img, err = preset.Apply(app.ctx, s, img); err != nil {
			return err
		}
	} else {
		mode, err := scaler.ParseResizeType(cmd.Mode)
		if err != nil {
			return err
		}
		if img, err = s.Scale(app.ctx, img, cmd.Width, cmd.Height, mode); err != nil {
			return err
		}
	}

	data, err := codec.EncodeBytes(img, codec.Options{Format: format, Quality: quality(app, cmd.Quality)})
	if err != nil {
		return err
	}
	return writeOutput(app, outputPath(cmd.Input, cmd.Output, "_resized", format), data)
}

type filterCmd struct {
	Input   string `arg:"" optional:"" help:"Source image" type:"existingfile"`
	Output  string `help:"Output path" short:"o" type:"path"`
	Filters string `help:"JSON array of filters, e.g. [{\"type\":\"sepia\"}]; prefix with @ to read a file" short:"F"`
	List    bool   `help:"List available filters with their default parameters"`
	Format  string `help:"Output format" short:"f"`
	Quality int    `help:"Encoder quality" short:"q"`
}

func (cmd *filterCmd) Run(app *appContext) error {
	provider := filter.NewProvider()

	if cmd.List {
		defaults := provider.Defaults()
		for _, name := range provider.Names() {
			spec, err := filter.SpecOf(defaults[name])
			if err != nil {
				return err
			}
			line, err := json.Marshal(spec)
			if err != nil {
				return err
			}
			fmt.Println(string(line))
		}
		return nil
	}

	if cmd.Input == "" || cmd.Filters == "" {
		return errors.New("an input image and --filters are required")
	}

	raw := []byte(cmd.Filters)
	if path, ok := strings.CutPrefix(cmd.Filters, "@"); ok {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read filters: %w", err)
		}
	}
	chain, err := provider.ParseChain(raw)
	if err != nil {
		return err
	}

	format, err := resolveFormat(app.cfg, cmd.Format, cmd.Output)
	if err != nil {
		return err
	}
	img, err := codec.Open(cmd.Input)
	if err != nil {
		return err
	}

	log.Ctx(app.ctx).Debug().Strs("filters", chain.Names()).Msg("applying filters")
	out, err := chain.Apply(app.ctx, img)
	if err != nil {
		return err
	}

	data, err := codec.EncodeBytes(out, codec.Options{Format: format, Quality: quality(app, cmd.Quality)})
	if err != nil {
		return err
	}
	return writeOutput(app, outputPath(cmd.Input, cmd.Output, "_filtered", format), data)
}

type exifCmd struct {
	Input   string `arg:"" help:"Source image" type:"existingfile"`
	Strip   bool   `help:"Write a copy without metadata, with the orientation baked into the pixels"`
	Output  string `help:"Output path for --strip" short:"o" type:"path"`
	Quality int    `help:"Encoder quality for --strip" short:"q"`
}

func (cmd *exifCmd) Run(app *appContext) error {
	data, err := os.ReadFile(cmd.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.Input, err)
	}

	if cmd.Strip {
		stripped, err := exifmeta.Strip(data, quality(app, cmd.Quality))
		if err != nil {
			return err
		}
		return writeOutput(app, outputPath(cmd.Input, cmd.Output, "_stripped", detectFormat(app, data)), stripped)
	}

	meta, err := exifmeta.ReadBytes(data)
	if errors.Is(err, exifmeta.ErrNoExif) {
		log.Ctx(app.ctx).Info().Str("path", cmd.Input).Msg("no exif metadata")
		return nil
	}
	if err != nil {
		return err
	}

	report := struct {
		Camera      string            `json:"camera,omitempty"`
		Orientation int               `json:"orientation"`
		Taken       string            `json:"taken,omitempty"`
		Latitude    *float64          `json:"latitude,omitempty"`
		Longitude   *float64          `json:"longitude,omitempty"`
		Tags        map[string]string `json:"tags"`
	}{
		Camera:      meta.CameraModel(),
		Orientation: meta.Orientation(),
		Tags:        meta.Tags,
	}
	if t, err := meta.DateTime(); err == nil {
		report.Taken = t.Format("2006-01-02T15:04:05")
	}
	if lat, long, err := meta.LatLong(); err == nil {
		report.Latitude, report.Longitude = &lat, &long
	}
	return printJSON(report)
}

type gradientCmd struct {
	Output string   `arg:"" help:"Output path" type:"path"`
	Width  int      `help:"Image width" default:"1024" short:"W"`
	Height int      `help:"Image height" default:"768" short:"H"`
	Type   string   `help:"linear, radial or sweep" default:"linear" enum:"linear,radial,sweep"`
	Angle  float64  `help:"Direction of a linear gradient or start of a sweep, in degrees"`
	Radius float64  `help:"Radius of a radial gradient relative to the farthest corner"`
	Colors []string `help:"Colors spread evenly from start to end" default:"#000000,#ffffff"`
	Spec   string   `help:"JSON gradient definition; overrides the other flags; prefix with @ to read a file"`
}

func (cmd *gradientCmd) Run(app *appContext) error {
	g, err := cmd.gradient()
	if err != nil {
		return err
	}
	img, err := g.Render(app.ctx, cmd.Width, cmd.Height)
	if err != nil {
		return err
	}

	format, err := resolveFormat(app.cfg, "", cmd.Output)
	if err != nil {
		return err
	}
	data, err := codec.EncodeBytes(img, codec.Options{Format: format, Quality: app.cfg.Codec.DefaultQuality})
	if err != nil {
		return err
	}
	return writeOutput(app, cmd.Output, data)
}

func (cmd *gradientCmd) gradient() (gradient.Gradient, error) {
	if cmd.Spec != "" {
		raw := []byte(cmd.Spec)
		if path, ok := strings.CutPrefix(cmd.Spec, "@"); ok {
			var err error
			if raw, err = os.ReadFile(path); err != nil {
				return gradient.Gradient{}, fmt.Errorf("failed to read gradient: %w", err)
			}
		}
		var g gradient.Gradient
		if err := json.Unmarshal(raw, &g); err != nil {
			return gradient.Gradient{}, fmt.Errorf("failed to unmarshal gradient: %w", err)
		}
		return g, nil
	}

	t, err := gradient.ParseType(cmd.Type)
	if err != nil {
		return gradient.Gradient{}, err
	}
	g := gradient.Gradient{Type: t, Angle: cmd.Angle, Radius: cmd.Radius}
	for i, s := range cmd.Colors {
		c, err := paint.ParseColor(s)
		if err != nil {
			return gradient.Gradient{}, err
		}
		offset := 0.0
		if len(cmd.Colors) > 1 {
			offset = float64(i) / float64(len(cmd.Colors)-1)
		}
		g.Stops = append(g.Stops, gradient.Stop{Offset: offset, Color: c})
	}
	return g, nil
}

type watermarkCmd struct {
	Input     string  `arg:"" help:"Source image" type:"existingfile"`
	Output    string  `help:"Output path" short:"o" type:"path"`
	Text      string  `help:"Text to stamp" short:"t"`
	Mark      string  `help:"Image to stamp when no text is given" type:"existingfile"`
	MarkWidth float64 `help:"Mark width as a fraction of the image width" name:"mark-width"`
	Position  string  `help:"top-left, top-center, top-right, center-left, center, center-right, bottom-left, bottom-center, bottom-right or tiled" default:"bottom-right"`
	Margin    int     `help:"Distance from the edges in pixels" default:"16"`
	Opacity   float64 `help:"Opacity in 0..1" default:"0.5"`
	Color     string  `help:"Text color" default:"#ffffff"`
	Scale     int     `help:"Text magnification" default:"2"`
	Spacing   int     `help:"Gap between tiles" default:"48"`
	Format    string  `help:"Output format" short:"f"`
	Quality   int     `help:"Encoder quality" short:"q"`
}

func (cmd *watermarkCmd) Run(app *appContext) error {
	pos, err := watermark.ParsePosition(cmd.Position)
	if err != nil {
		return err
	}
	c, err := paint.ParseColor(cmd.Color)
	if err != nil {
		return err
	}
	w := watermark.Watermark{
		Text:       cmd.Text,
		Color:      c,
		TextScale:  cmd.Scale,
		ImageWidth: cmd.MarkWidth,
		Position:   pos,
		Margin:     cmd.Margin,
		Opacity:    cmd.Opacity,
		Spacing:    cmd.Spacing,
	}
	if cmd.Text == "" && cmd.Mark != "" {
		if w.Image, err = codec.Open(cmd.Mark); err != nil {
			return err
		}
	}

	format, err := resolveFormat(app.cfg, cmd.Format, cmd.Output)
	if err != nil {
		return err
	}
	img, err := codec.Open(cmd.Input)
	if err != nil {
		return err
	}
	out, err := watermark.Apply(app.ctx, img, w)
	if err != nil {
		return err
	}

	data, err := codec.EncodeBytes(out, codec.Options{Format: format, Quality: quality(app, cmd.Quality)})
	if err != nil {
		return err
	}
	return writeOutput(app, outputPath(cmd.Input, cmd.Output, "_watermarked", format), data)
}

type compareCmd struct {
	First     string  `arg:"" help:"Reference image" type:"existingfile"`
	Second    string  `arg:"" help:"Image to compare" type:"existingfile"`
	Diff      string  `help:"Write the difference image here" type:"path"`
	Highlight string  `help:"Write the reference with changed pixels marked here" type:"path"`
	Slider    string  `help:"Write a side by side slider frame here" type:"path"`
	Split     float64 `help:"Slider position in 0..1" default:"0.5"`
	Threshold uint8   `help:"Smallest channel delta that counts as changed for --highlight" default:"16"`
	Mark      string  `help:"Highlight color" default:"#ff00ff"`
}

func (cmd *compareCmd) Run(app *appContext) error {
	a, err := codec.Open(cmd.First)
	if err != nil {
		return err
	}
	b, err := codec.Open(cmd.Second)
	if err != nil {
		return err
	}

	diff, stats, err := compare.Diff(a, b)
	if err != nil {
		return err
	}

	if cmd.Diff != "" {
		if err := codec.Save(diff, cmd.Diff, app.cfg.Codec.DefaultQuality); err != nil {
			return err
		}
	}
	if cmd.Highlight != "" {
		mark, err := paint.ParseColor(cmd.Mark)
		if err != nil {
			return err
		}
		out := compare.Highlight(a, diff, cmd.Threshold, mark.NRGBA())
		if err := codec.Save(out, cmd.Highlight, app.cfg.Codec.DefaultQuality); err != nil {
			return err
		}
	}
	if cmd.Slider != "" {
		out, err := compare.SideBySide(a, b, cmd.Split)
		if err != nil {
			return err
		}
		if err := codec.Save(out, cmd.Slider, app.cfg.Codec.DefaultQuality); err != nil {
			return err
		}
	}

	report := struct {
		MSE             float64  `json:"mse"`
		PSNR            *float64 `json:"psnr"`
		MaxDelta        uint8    `json:"max_delta"`
		DifferentPixels int      `json:"different_pixels"`
		TotalPixels     int      `json:"total_pixels"`
		Similarity      float64  `json:"similarity"`
		Identical       bool     `json:"identical"`
	}{
		MSE:             stats.MSE,
		MaxDelta:        stats.MaxDelta,
		DifferentPixels: stats.DifferentPixels,
		TotalPixels:     stats.TotalPixels,
		Similarity:      stats.Similarity(),
		Identical:       stats.Identical(),
	}
	// JSON has no infinity; identical images report a null PSNR
	if !math.IsInf(stats.PSNR, 0) {
		report.PSNR = &stats.PSNR
	}
	return printJSON(report)
}

func quality(app *appContext, q int) int {
	if q == 0 {
		return app.cfg.Codec.DefaultQuality
	}
	return q
}

func detectFormat(app *appContext, data []byte) imagetype.Format {
	if info, err := codec.Stat(data); err == nil {
		return info.Format
	}
	return app.cfg.DefaultFormat()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
