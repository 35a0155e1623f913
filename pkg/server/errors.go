package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/relay"
)

// ErrorBody is the JSON shape of every rejected request.
type ErrorBody struct {
	Error    string `json:"error"`
	Fallback string `json:"fallback,omitempty"`
}

// StatusFor maps a relay error onto an HTTP status code.
func StatusFor(e *relay.Error) int {
	switch e.Kind {
	case relay.PayloadInvalid:
		return fiber.StatusBadRequest
	case relay.PayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case relay.CredentialMissing:
		return fiber.StatusServiceUnavailable
	case relay.UpstreamTimeout:
		return fiber.StatusRequestTimeout
	case relay.EmptyResult:
		if e.Stage == relay.StageTranscribe || e.Stage == relay.StageInput {
			return fiber.StatusBadRequest
		}
		return fiber.StatusServiceUnavailable
	case relay.UpstreamRejected:
		switch {
		case e.RateLimited:
			return fiber.StatusTooManyRequests
		case e.Stage == relay.StageTranscribe:
			return fiber.StatusInternalServerError
		}
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var re *relay.Error
	if errors.As(err, &re) {
		code := StatusFor(re)
		s.logger.Warn("request rejected",
			"path", c.Path(),
			"status", code,
			"kind", re.Kind,
			"stage", re.Stage,
			"error", err,
		)
		return c.Status(code).JSON(ErrorBody{Error: re.Message, Fallback: re.Fallback})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorBody{Error: fe.Message})
	}

	s.logger.Error("unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorBody{
		Error:    "Internal server error",
		Fallback: fallback.Text(fallback.GeneralError),
	})
}

func invalidBody(err error) error {
	return &relay.Error{
		Kind:     relay.PayloadInvalid,
		Stage:    relay.StageInput,
		Message:  "Invalid request body",
		Fallback: "Please send a JSON body",
		Err:      err,
	}
}
