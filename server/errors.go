package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/types"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

// statusFor maps the error taxonomy onto HTTP statuses. Anything left over
// is a failed transcription and reported as a bad gateway.
func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, workers.ErrBacklogFull):
		return fiber.StatusTooManyRequests
	case errors.Is(err, workers.ErrStopped):
		return fiber.StatusServiceUnavailable
	case model.IsConfiguration(err), errors.Is(err, workers.ErrSessionFailed):
		return fiber.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Warn("request failed", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(types.ErrorResponse{OK: false, Error: err.Error()})
}
