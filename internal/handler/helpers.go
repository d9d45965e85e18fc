package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/middleware"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendServiceError maps manager error kinds to HTTP statuses. Storage and
// renderer failures are logged and answered with a generic message.
func sendServiceError(c *fiber.Ctx, base zerolog.Logger, err error, fallback string) error {
	message := fallback
	var fields []string
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Describe()
		fields = svcErr.Fields
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return utils.SendFieldError(c, fiber.StatusBadRequest, message, fields)
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, message)
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, message)
	case errors.Is(err, service.ErrCapacity):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, message)
	case errors.Is(err, service.ErrRenderer):
		requestLogger(base, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusBadGateway, "document renderer unavailable")
	default:
		requestLogger(base, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
