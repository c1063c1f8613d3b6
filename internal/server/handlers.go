package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/pkg/codec"
	"github.com/menta2k/image-toolbox/pkg/scaler"
)

func (s *Server) listFilters(c *fiber.Ctx) error {
	var response struct {
		Filters []string `json:"filters"`
	}
	response.Filters = s.filters.Names()
	return c.JSON(response)
}

func (s *Server) info(c *fiber.Ctx) error {
	data, _, err := s.readImage(c)
	if err != nil {
		return err
	}
	info, err := codec.Stat(data)
	if err != nil {
		return err
	}
	return c.JSON(info)
}

// compress encodes the upload at the requested quality, or searches for the
// highest quality and size that fit max_bytes when it is set
func (s *Server) compress(c *fiber.Ctx) error {
	data, img, err := s.readImage(c)
	if err != nil {
		return err
	}
	format, err := s.outputFormat(c, data)
	if err != nil {
		return err
	}
	maxBytes, err := queryInt(c, "max_bytes", 0)
	if err != nil {
		return err
	}
	quality, err := queryInt(c, "quality", s.config.Codec.DefaultQuality)
	if err != nil {
		return err
	}

	if maxBytes == 0 {
		return s.send(c, img, format, quality)
	}

	res, err := s.bytes.ScaleByMaxBytes(c.UserContext(), img, format, maxBytes)
	if err != nil {
		return err
	}
	log.Ctx(c.UserContext()).Debug().
		Int("max_bytes", maxBytes).
		Int("bytes", len(res.Data)).
		Int("quality", res.Quality).
		Int("attempts", res.Attempts).
		Msg("compressed")
	return sendEncoded(c, res.Data, format, scaler.Size{Width: res.Width, Height: res.Height}, res.Quality)
}

func (s *Server) resize(c *fiber.Ctx) error {
	data, img, err := s.readImage(c)
	if err != nil {
		return err
	}
	format, err := s.outputFormat(c, data)
	if err != nil {
		return err
	}
	mode, err := scaler.ParseResizeType(c.Query("mode", "flexible"))
	if err != nil {
		return badRequest(err)
	}
	width, err := queryInt(c, "w", 0)
	if err != nil {
		return err
	}
	height, err := queryInt(c, "h", 0)
	if err != nil {
		return err
	}

	out, err := s.scaler.Scale(c.UserContext(), img, width, height, mode)
	if err != nil {
		return err
	}
	return s.send(c, out, format, s.config.Codec.DefaultQuality)
}

// filter applies the "filters" form field, a JSON array of filter specs, to the upload
func (s *Server) filter(c *fiber.Ctx) error {
	raw := c.FormValue("filters")
	if raw == "" {
		return fiber.NewError(http.StatusBadRequest, "missing filters")
	}
	chain, err := s.filters.ParseChain([]byte(raw))
	if err != nil {
		return badRequest(err)
	}

	data, img, err := s.readImage(c)
	if err != nil {
		return err
	}
	format, err := s.outputFormat(c, data)
	if err != nil {
		return err
	}

	out, err := chain.Apply(c.UserContext(), img)
	if err != nil {
		return err
	}
	return s.send(c, out, format, s.config.Codec.DefaultQuality)
}
