// Package batch runs the same resize, filter and encode pipeline over many
// images with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/menta2k/image-toolbox/internal/utils"
	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/filter"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// ErrNoSource is returned for a job with neither data nor a path
var ErrNoSource = errors.New("job has no source")

// Job describes one image to process
type Job struct {
	// Name is the original file name used to derive the output name
	Name string
	// Path is read when Data is empty
	Path string
	Data []byte

	Preset  Preset
	Filters filter.Chain
	Limits  *scaler.Limits

	Format imagetype.Format
	// KeepFormat encodes in the detected source format instead of Format
	KeepFormat bool
	Quality    int
	// MaxBytes enables the byte-budget search when positive
	MaxBytes int
}

func (j Job) originalName() string {
	if j.Name != "" {
		return j.Name
	}
	if j.Path != "" {
		return filepath.Base(j.Path)
	}
	return "image"
}

// SaveTarget is an encoded result ready to be written
type SaveTarget struct {
	Filename     string           `json:"filename"`
	OriginalName string           `json:"original_name"`
	Format       imagetype.Format `json:"format"`
	Data         []byte           `json:"-"`
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	Quality      int              `json:"quality,omitempty"`
	// Skipped is set when the source fell outside the limits and was dropped
	Skipped bool `json:"skipped,omitempty"`
}

// OutputName returns "<prefix><original name><suffix>.<ext>"
func (t SaveTarget) OutputName(prefix, suffix string) string {
	return utils.GenerateOutputFilename(t.OriginalName, prefix, suffix, t.Format.Extension())
}

// Config holds configuration for the batch processor
type Config struct {
	// Workers bounds concurrency; zero uses the number of CPUs
	Workers int
	Scaler  scaler.Config
	Bytes   scaler.BytesConfig
	// MaxPixels fails jobs whose header declares more pixels; zero disables the check
	MaxPixels int
	// WorkingPixels shrinks decoded images above this many pixels; zero disables it
	WorkingPixels int
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		Scaler:    scaler.DefaultConfig(),
		Bytes:     scaler.DefaultBytesConfig(),
		MaxPixels: codec.DefaultMaxPixels,
	}
}

// Processor runs jobs through decode, limits, preset, filters and encode
type Processor struct {
	config     Config
	compressor codec.Compressor
	scaler     *scaler.Scaler
	bytes      *scaler.BytesScaler
}

// New creates a processor with default configuration
func New() *Processor {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates a processor. A nil compressor uses codec.NewEncoder.
func NewWithConfig(config Config, compressor codec.Compressor) *Processor {
	if compressor == nil {
		compressor = codec.NewEncoder()
	}
	s := scaler.NewWithConfig(config.Scaler)
	return &Processor{
		config:     config,
		compressor: compressor,
		scaler:     s,
		bytes:      scaler.NewBytesScalerWithConfig(compressor, s, config.Bytes),
	}
}

func (p *Processor) workers() int {
	if p.config.Workers > 0 {
		return p.config.Workers
	}
	return runtime.NumCPU()
}

// Run processes jobs concurrently. Results keep the order of jobs; a failed
// job leaves a zero SaveTarget in its slot and its error joins the returned one.
func (p *Processor) Run(ctx context.Context, jobs []Job) ([]SaveTarget, error) {
	if len(jobs) == 0 {
		log.Ctx(ctx).Warn().Msg("no jobs to run")
		return nil, nil
	}

	results := make([]SaveTarget, len(jobs))
	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(p.workers())

	for i, job := range jobs {
		pooler.Go(func(ctx context.Context) error {
			target, err := p.Process(ctx, job)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("name", job.originalName()).
					Msg("failed to process image")
				return fmt.Errorf("%s: %w", job.originalName(), err)
			}
			results[i] = target
			log.Ctx(ctx).Debug().
				Str("name", target.OriginalName).
				Str("format", target.Format.String()).
				Int("bytes", len(target.Data)).
				Bool("skipped", target.Skipped).
				Msg("processed image")
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("batch finished with errors")
		return results, err
	}

	return results, nil
}

// Process runs a single job
func (p *Processor) Process(ctx context.Context, job Job) (SaveTarget, error) {
	if err := ctx.Err(); err != nil {
		return SaveTarget{}, err
	}

	data := job.Data
	if len(data) == 0 {
		if job.Path == "" {
			return SaveTarget{}, ErrNoSource
		}
		var err error
		data, err = os.ReadFile(job.Path)
		if err != nil {
			return SaveTarget{}, fmt.Errorf("failed to read %s: %w", job.Path, err)
		}
	}

	srcFormat, err := imagetype.Detect(data)
	if err != nil {
		if srcFormat, err = imagetype.FromFilename(job.originalName()); err != nil {
			return SaveTarget{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedFormat, job.originalName())
		}
	}

	img, err := codec.DecodeBytesLimit(data, p.config.MaxPixels)
	if err != nil {
		return SaveTarget{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if p.config.WorkingPixels > 0 {
		if img, err = p.scaler.ScaleUntilFits(img, p.config.WorkingPixels); err != nil {
			return SaveTarget{}, err
		}
	}

	format := job.Format
	if job.KeepFormat {
		format = srcFormat
	}
	target := SaveTarget{OriginalName: job.originalName(), Format: format}

	if job.Limits != nil {
		limited, skipped, err := p.scaler.ScaleWithLimits(ctx, img, *job.Limits)
		if err != nil {
			return SaveTarget{}, fmt.Errorf("failed to apply limits: %w", err)
		}
		if skipped {
			size := scaler.SizeOf(img)
			target.Format = srcFormat
			target.Data = data
			target.Width, target.Height = size.Width, size.Height
			target.Skipped = true
			target.Filename = target.OutputName("", "")
			return target, nil
		}
		img = limited
	}

	if img, err = job.Preset.Apply(ctx, p.scaler, img); err != nil {
		return SaveTarget{}, fmt.Errorf("failed to apply preset %s: %w", job.Preset, err)
	}

	if img, err = job.Filters.Apply(ctx, img); err != nil {
		return SaveTarget{}, err
	}

	if job.MaxBytes > 0 {
		res, err := p.bytes.ScaleByMaxBytes(ctx, img, format, job.MaxBytes)
		if err != nil {
			return SaveTarget{}, err
		}
		target.Data = res.Data
		target.Width, target.Height = res.Width, res.Height
		if format.CanChangeQuality() {
			target.Quality = res.Quality
		}
	} else {
		quality := job.Quality
		if quality == 0 {
			quality = codec.DefaultQuality
		}
		encoded, err := p.compressor.Compress(ctx, img, format, quality)
		if err != nil {
			return SaveTarget{}, fmt.Errorf("failed to encode %s: %w", format, err)
		}
		size := scaler.SizeOf(img)
		target.Data = encoded
		target.Width, target.Height = size.Width, size.Height
		if format.CanChangeQuality() {
			target.Quality = imagetype.ClampQuality(quality)
		}
	}

	target.Filename = target.OutputName("", "")
	return target, nil
}

// JobsFromPaths expands files and directories into jobs built from template
func JobsFromPaths(paths []string, template Job) ([]Job, error) {
	files, err := utils.ExpandImagePaths(paths)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(files))
	for _, f := range files {
		job := template
		job.Path = f
		job.Name = filepath.Base(f)
		job.Data = nil
		jobs = append(jobs, job)
	}
	return jobs, nil
}
