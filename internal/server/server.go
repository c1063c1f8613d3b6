// Package server exposes the toolbox operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/internal/config"
	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/combine"
	"github.com/menta2k/image-toolbox/pkg/filter"
	"github.com/menta2k/image-toolbox/pkg/imagetype"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

// Options configures the HTTP server
type Options struct {
	Config  *config.Config
	OnReady func(addr string)
}

// Server serves compress, resize, filter and info endpoints
type Server struct {
	config     *config.Config
	onReady    func(addr string)
	app        *fiber.App
	filters    *filter.Provider
	scaler     *scaler.Scaler
	bytes      *scaler.BytesScaler
	compressor codec.Compressor
}

// New creates a server with routes registered
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	compressor := codec.NewEncoder()
	s := scaler.NewWithConfig(cfg.Scaler.Options())
	srv := &Server{
		config:     cfg,
		onReady:    opts.OnReady,
		filters:    filter.NewProvider(),
		scaler:     s,
		bytes:      scaler.NewBytesScalerWithConfig(compressor, s, cfg.Scaler.BytesConfig()),
		compressor: compressor,
	}

	srv.app = fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          srv.handleError,
	})
	srv.routes()
	return srv
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/v1")
	v1.Get("/filters", s.listFilters)
	v1.Post("/info", s.info)
	v1.Post("/compress", s.compress)
	v1.Post("/resize", s.resize)
	v1.Post("/filter", s.filter)
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if s.onReady != nil {
			s.onReady(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to shutdown server")
		}
	}()

	listener, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := s.app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code, message := errorStatus(err)
	event := log.Ctx(c.UserContext()).Warn()
	if code >= http.StatusInternalServerError {
		event = log.Ctx(c.UserContext()).Error()
	}
	event.Err(err).
		Str("path", c.Path()).
		Str("method", c.Method()).
		Int("status", code).
		Msg("request failed")
	return c.Status(code).JSON(fiber.Map{"error": message})
}

// errorStatus maps an error to an HTTP status and a client-facing message
func errorStatus(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.Is(err, scaler.ErrCannotFit):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, scaler.ErrInvalidSize),
		errors.Is(err, filter.ErrUnknownFilter),
		errors.Is(err, filter.ErrInvalidParams),
		errors.Is(err, imagetype.ErrUnknownFormat),
		errors.Is(err, codec.ErrUnsupportedFormat),
		errors.Is(err, codec.ErrTooLarge),
		errors.Is(err, combine.ErrNoImages):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func badRequest(err error) error {
	return fiber.NewError(http.StatusBadRequest, err.Error())
}

// readImage takes the "image" form file of a multipart request or the raw body
// otherwise. Headers above codec.max_pixels are rejected before decoding and
// decoded images above scaler.working_pixels are shrunk.
func (s *Server) readImage(c *fiber.Ctx) ([]byte, image.Image, error) {
	var data []byte
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return nil, nil, fmt.Errorf("failed to read upload: %w", err)
		}
	} else {
		data = c.Body()
	}

	if len(data) == 0 {
		return nil, nil, fiber.NewError(http.StatusBadRequest, "missing image")
	}

	img, err := codec.DecodeBytesLimit(data, s.config.Codec.MaxPixels)
	if err != nil {
		return nil, nil, err
	}
	if limit := s.config.Scaler.WorkingPixels; limit > 0 {
		if img, err = s.scaler.ScaleUntilFits(img, limit); err != nil {
			return nil, nil, err
		}
	}
	return data, img, nil
}

// outputFormat reads the "format" query, defaulting to the source format and then the configured one
func (s *Server) outputFormat(c *fiber.Ctx, source []byte) (imagetype.Format, error) {
	if name := c.Query("format"); name != "" {
		return imagetype.ParseFormat(name)
	}
	if f, err := imagetype.Detect(source); err == nil {
		return f, nil
	}
	return s.config.DefaultFormat(), nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, fmt.Sprintf("invalid %s %q", key, raw))
	}
	return v, nil
}

func (s *Server) send(c *fiber.Ctx, img image.Image, format imagetype.Format, quality int) error {
	data, err := s.compressor.Compress(c.UserContext(), img, format, quality)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return sendEncoded(c, data, format, scaler.SizeOf(img), quality)
}

func sendEncoded(c *fiber.Ctx, data []byte, format imagetype.Format, size scaler.Size, quality int) error {
	c.Set(fiber.HeaderContentType, format.MimeType())
	c.Set("X-Image-Width", strconv.Itoa(size.Width))
	c.Set("X-Image-Height", strconv.Itoa(size.Height))
	if format.CanChangeQuality() {
		c.Set("X-Image-Quality", strconv.Itoa(quality))
	}
	return c.Send(data)
}
