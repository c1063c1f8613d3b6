package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/animation"
	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/combine"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/paint"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

func openAll(paths []string) ([]image.Image, error) {
	imgs := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := codec.Open(p)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

func encodeTo(app *appContext, img image.Image, output string) error {
	format, err := resolveFormat(app.cfg, "", output)
	if err != nil {
		return err
	}
	data, err := codec.EncodeBytes(img, codec.Options{Format: format, Quality: app.cfg.Codec.DefaultQuality})
	if err != nil {
		return err
	}
	return writeOutput(app, output, data)
}

type stitchCmd struct {
	Inputs      []string `arg:"" help:"Images in order" type:"existingfile"`
	Output      string   `help:"Output path" short:"o" required:"" type:"path"`
	Orientation string   `help:"horizontal or vertical" default:"horizontal" enum:"horizontal,vertical"`
	Spacing     int      `help:"Gap between images; negative values overlap them"`
	Background  string   `help:"Canvas color" default:"#00000000"`
	ScaleMode   string   `help:"none, largest or smallest" default:"none" enum:"none,largest,smallest" name:"scale"`
	Align       string   `help:"start, center or end" default:"center" enum:"start,center,end"`
	MaxPixels   int      `help:"Largest canvas area before everything is shrunk" name:"max-pixels"`
}

func (cmd *stitchCmd) Run(app *appContext) error {
	orientation, err := combine.ParseOrientation(cmd.Orientation)
	if err != nil {
		return err
	}
	mode, err := combine.ParseScaleMode(cmd.ScaleMode)
	if err != nil {
		return err
	}
	align, err := combine.ParseAlignment(cmd.Align)
	if err != nil {
		return err
	}
	bg, err := paint.ParseColor(cmd.Background)
	if err != nil {
		return err
	}

	imgs, err := openAll(cmd.Inputs)
	if err != nil {
		return err
	}

	c := combine.NewWithScaler(scaler.NewWithConfig(app.cfg.Scaler.Options()))
	out, err := c.Stitch(app.ctx, imgs, combine.StitchOptions{
		Orientation:     orientation,
		Spacing:         cmd.Spacing,
		Background:      bg,
		ScaleMode:       mode,
		Alignment:       align,
		MaxCanvasPixels: cmd.MaxPixels,
	})
	if err != nil {
		return err
	}
	return encodeTo(app, out, cmd.Output)
}

type gridCmd struct {
	Inputs     []string `arg:"" help:"Images in row-major order" type:"existingfile"`
	Output     string   `help:"Output path" short:"o" required:"" type:"path"`
	Columns    int      `help:"Number of columns; 0 picks a square-ish layout" short:"c"`
	CellWidth  int      `help:"Cell width; 0 uses the widest image" name:"cell-width"`
	CellHeight int      `help:"Cell height; 0 uses the tallest image" name:"cell-height"`
	Spacing    int      `help:"Gap between cells"`
	Background string   `help:"Canvas color" default:"#00000000"`
	Fit        string   `help:"cover or contain" default:"cover" enum:"cover,contain"`
	MaxPixels  int      `help:"Largest canvas area before the cells are shrunk" name:"max-pixels"`
}

func (cmd *gridCmd) Run(app *appContext) error {
	fit, err := combine.ParseFitMode(cmd.Fit)
	if err != nil {
		return err
	}
	bg, err := paint.ParseColor(cmd.Background)
	if err != nil {
		return err
	}

	imgs, err := openAll(cmd.Inputs)
	if err != nil {
		return err
	}

	c := combine.NewWithScaler(scaler.NewWithConfig(app.cfg.Scaler.Options()))
	out, err := c.Grid(app.ctx, imgs, combine.GridOptions{
		Columns:         cmd.Columns,
		CellWidth:       cmd.CellWidth,
		CellHeight:      cmd.CellHeight,
		Spacing:         cmd.Spacing,
		Background:      bg,
		Fit:             fit,
		MaxCanvasPixels: cmd.MaxPixels,
	})
	if err != nil {
		return err
	}
	return encodeTo(app, out, cmd.Output)
}

type gifSplitCmd struct {
	Input  string `arg:"" help:"Animated GIF" type:"existingfile"`
	OutDir string `help:"Directory for the frames" short:"d" default:"frames" type:"path"`
	Format string `help:"Frame format" default:"png" short:"f"`
}

func (cmd *gifSplitCmd) Run(app *appContext) error {
	format, err := imagetype.ParseFormat(cmd.Format)
	if err != nil {
		return err
	}

	f, err := os.Open(cmd.Input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cmd.Input, err)
	}
	defer f.Close()

	frames, loops, err := animation.Split(f)
	if err != nil {
		return err
	}
	log.Ctx(app.ctx).Info().
		Int("frames", len(frames)).
		Int("loop_count", loops).
		Dur("duration", animation.Duration(frames)).
		Msg("decoded animation")

	for i, frame := range frames {
		if err := app.ctx.Err(); err != nil {
			return err
		}
		data, err := codec.EncodeBytes(frame.Image, codec.Options{Format: format, Quality: app.cfg.Codec.DefaultQuality})
		if err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
		name := fmt.Sprintf("frame_%03d.%s", i, format.Extension())
		if err := writeOutput(app, filepath.Join(cmd.OutDir, name), data); err != nil {
			return err
		}
	}
	return nil
}

type gifMakeCmd struct {
	Inputs []string      `arg:"" help:"Frames in order" type:"existingfile"`
	Output string        `help:"Output path" short:"o" required:"" type:"path"`
	Delay  time.Duration `help:"Delay between frames" default:"100ms"`
	Loop   int           `help:"0 loops forever, -1 plays once, n plays n+1 times"`
	Width  int           `help:"Resize frames to this width" short:"W"`
	Height int           `help:"Resize frames to this height" short:"H"`
	Dither bool          `help:"Diffuse quantization error when reducing colors"`
}

func (cmd *gifMakeCmd) Run(app *appContext) error {
	imgs, err := openAll(cmd.Inputs)
	if err != nil {
		return err
	}

	frames := make([]animation.Frame, len(imgs))
	for i, img := range imgs {
		frames[i] = animation.Frame{Image: imaging.Clone(img), Delay: cmd.Delay}
	}

	if cmd.Width > 0 || cmd.Height > 0 {
		s := scaler.NewWithConfig(app.cfg.Scaler.Options())
		if frames, err = animation.Resize(app.ctx, s, frames, cmd.Width, cmd.Height, scaler.Flexible); err != nil {
			return err
		}
	}

	data, err := animation.Assemble(app.ctx, frames, animation.AssembleOptions{
		LoopCount: cmd.Loop,
		Dither:    cmd.Dither,
	})
	if err != nil {
		return err
	}
	return writeOutput(app, cmd.Output, data)
}
