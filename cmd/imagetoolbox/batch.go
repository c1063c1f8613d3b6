package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/internal/server"
	"github.com/menta2k/image-toolbox/pkg/batch"
	"github.com/menta2k/image-toolbox/pkg/filter"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

type batchCmd struct {
	Inputs     []string `arg:"" help:"Images or directories" type:"path"`
	OutDir     string   `help:"Output directory; defaults to the configured one" short:"d" type:"path"`
	Preset     string   `help:"Named preset or a literal such as 50% or 512x512" short:"p"`
	Filters    string   `help:"JSON array of filters; prefix with @ to read a file" short:"F"`
	Format     string   `help:"Output format; defaults to the configured one" short:"f"`
	KeepFormat bool     `help:"Keep each image's own format" name:"keep-format"`
	Quality    int      `help:"Encoder quality" short:"q"`
	MaxBytes   int      `help:"Largest allowed output size per image in bytes" name:"max-bytes"`
	Workers    int      `help:"Concurrent workers; defaults to the configured count"`
	Prefix     string   `help:"Output file name prefix; defaults to the configured one"`
	Suffix     string   `help:"Output file name suffix; defaults to the configured one"`
	Overwrite  bool     `help:"Replace existing files"`

	MaxWidth  int    `help:"Upper width bound" name:"max-width"`
	MaxHeight int    `help:"Upper height bound" name:"max-height"`
	MinWidth  int    `help:"Lower width bound" name:"min-width"`
	MinHeight int    `help:"Lower height bound" name:"min-height"`
	Limits    string `help:"What to do with images outside the bounds: skip, recode or zoom" default:"zoom" enum:"skip,recode,zoom"`
}

func (cmd *batchCmd) Run(app *appContext) error {
	cfg := app.cfg

	template := batch.Job{
		KeepFormat: cmd.KeepFormat,
		Quality:    quality(app, cmd.Quality),
		MaxBytes:   cmd.MaxBytes,
	}

	var err error
	if template.Format, err = resolveFormat(cfg, cmd.Format, ""); err != nil {
		return err
	}
	if template.Preset, err = cfg.Preset(cmd.Preset); err != nil {
		return err
	}
	if cmd.Filters != "" {
		raw := []byte(cmd.Filters)
		if path, ok := strings.CutPrefix(cmd.Filters, "@"); ok {
			if raw, err = os.ReadFile(path); err != nil {
				return fmt.Errorf("failed to read filters: %w", err)
			}
		}
		if template.Filters, err = filter.NewProvider().ParseChain(raw); err != nil {
			return err
		}
	}
	if cmd.MaxWidth > 0 || cmd.MaxHeight > 0 || cmd.MinWidth > 0 || cmd.MinHeight > 0 {
		behavior, err := scaler.ParseLimitsBehavior(cmd.Limits)
		if err != nil {
			return err
		}
		template.Limits = &scaler.Limits{
			MaxWidth:  cmd.MaxWidth,
			MaxHeight: cmd.MaxHeight,
			MinWidth:  cmd.MinWidth,
			MinHeight: cmd.MinHeight,
			Behavior:  behavior,
		}
	}

	jobs, err := batch.JobsFromPaths(cmd.Inputs, template)
	if err != nil {
		return err
	}

	workers := cfg.Batch.Workers
	if cmd.Workers > 0 {
		workers = cmd.Workers
	}
	processor := batch.NewWithConfig(batch.Config{
		Workers:       workers,
		Scaler:        cfg.Scaler.Options(),
		Bytes:         cfg.Scaler.BytesConfig(),
		MaxPixels:     cfg.Codec.MaxPixels,
		WorkingPixels: cfg.Scaler.WorkingPixels,
	}, nil)

	log.Ctx(app.ctx).Info().
		Int("images", len(jobs)).
		Str("preset", template.Preset.String()).
		Strs("filters", template.Filters.Names()).
		Msg("processing batch")

	targets, runErr := processor.Run(app.ctx, jobs)

	writer := batch.Writer{
		Dir:       cfg.Batch.OutputDir,
		Prefix:    cfg.Batch.Prefix,
		Suffix:    cfg.Batch.Suffix,
		Overwrite: cfg.Batch.Overwrite || cmd.Overwrite,
	}
	if cmd.OutDir != "" {
		writer.Dir = cmd.OutDir
	}
	if cmd.Prefix != "" {
		writer.Prefix = cmd.Prefix
	}
	if cmd.Suffix != "" {
		writer.Suffix = cmd.Suffix
	}

	// Write whatever succeeded before reporting failures
	paths, writeErr := writer.Write(app.ctx, targets)
	log.Ctx(app.ctx).Info().
		Int("written", len(paths)).
		Int("total", len(jobs)).
		Msg("batch complete")

	if runErr != nil {
		return runErr
	}
	return writeErr
}

type serveCmd struct {
	Addr string `help:"Listen address; defaults to the configured one"`
}

func (cmd *serveCmd) Run(app *appContext) error {
	cfg := *app.cfg
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}

	srv := server.New(server.Options{
		Config: &cfg,
		OnReady: func(addr string) {
			log.Ctx(app.ctx).Info().Msgf("Server started at %s", addr)
		},
	})
	return srv.Run(app.ctx)
}
