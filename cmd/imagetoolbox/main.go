package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/internal/config"
	"github.com/menta2k/image-toolbox/internal/utils"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

type cliArgs struct {
	Config  string `help:"Configuration file (json, toml or yaml)" default:"${config_path}" type:"path"`
	Verbose bool   `help:"Enable verbose logging" short:"v"`
	LogJSON bool   `help:"Write logs as JSON instead of the console format" name:"log-json"`

	Compress  compressCmd  `cmd:"" help:"Re-encode an image, optionally fitting a byte budget"`
	Resize    resizeCmd    `cmd:"" help:"Resize an image to a box or a preset"`
	Filter    filterCmd    `cmd:"" help:"Apply a chain of filters"`
	Stitch    stitchCmd    `cmd:"" help:"Join images side by side or top to bottom"`
	Grid      gridCmd      `cmd:"" help:"Arrange images in a grid"`
	Exif      exifCmd      `cmd:"" help:"Show or strip EXIF metadata"`
	Gradient  gradientCmd  `cmd:"" help:"Render a gradient image"`
	Watermark watermarkCmd `cmd:"" help:"Stamp text or an image onto an image"`
	Compare   compareCmd   `cmd:"" help:"Compare two images"`
	GifSplit  gifSplitCmd  `cmd:"" name:"gif-split" help:"Extract the frames of an animated GIF"`
	GifMake   gifMakeCmd   `cmd:"" name:"gif-make" help:"Assemble images into an animated GIF"`
	Batch     batchCmd     `cmd:"" help:"Process many images with the same settings"`
	Serve     serveCmd     `cmd:"" help:"Serve the toolbox over HTTP"`
	Init      initCmd      `cmd:"" name:"config-init" help:"Write the default configuration file"`
	Version   versionCmd   `cmd:"" help:"Print the version"`
}

// appContext is bound to every command's Run method
type appContext struct {
	ctx        context.Context
	cfg        *config.Config
	configPath string
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("imagetoolbox"),
		kong.Description("Image transformation toolkit"),
		kong.UsageOnError(),
		kong.Vars{"config_path": config.GetConfigPath()},
	)

	setupLogging(args.Verbose, args.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = log.Logger.WithContext(ctx)

	cfg, err := config.LoadOptional(args.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", args.Config, err)
	}

	return cliCtx.Run(&appContext{ctx: ctx, cfg: cfg, configPath: args.Config})
}

func setupLogging(verbose, jsonOutput bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	} else {
		log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	}
	zerolog.DefaultContextLogger = &log.Logger
}

type versionCmd struct{}

func (cmd *versionCmd) Run() error {
	fmt.Println(version)
	return nil
}

type initCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (cmd *initCmd) Run(app *appContext) error {
	if utils.FileExists(app.configPath) && !cmd.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", app.configPath)
	}
	if err := config.Default().SaveToFile(app.configPath); err != nil {
		return err
	}
	log.Ctx(app.ctx).Info().Str("path", app.configPath).Msg("configuration written")
	return nil
}

// resolveFormat parses name, falling back to the output extension and then the configured default
func resolveFormat(cfg *config.Config, name, output string) (imagetype.Format, error) {
	if name != "" {
		f, err := imagetype.ParseFormat(name)
		if err != nil {
			return 0, err
		}
		if f == imagetype.WebPLossy && cfg.Codec.WebPLossless {
			return imagetype.WebPLossless, nil
		}
		return f, nil
	}
	if output != "" {
		if f, err := imagetype.FromFilename(output); err == nil {
			return f, nil
		}
	}
	return cfg.DefaultFormat(), nil
}

// outputPath returns output when set, otherwise a sibling of input named with suffix
func outputPath(input, output, suffix string, format imagetype.Format) string {
	if output != "" {
		return output
	}
	name := utils.GenerateOutputFilename(input, "", suffix, format.Extension())
	return filepath.Join(filepath.Dir(input), name)
}

func writeOutput(app *appContext, path string, data []byte) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Ctx(app.ctx).Info().
		Str("path", path).
		Str("size", utils.FormatFileSize(int64(len(data)))).
		Msg("saved")
	return nil
}
