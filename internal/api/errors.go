package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
)

// statusFor maps an error kind to the HTTP status of a non-streaming response.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindSessionNotFound:
		return http.StatusNotFound
	case domain.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTranscriptionFailure, domain.KindGenerationFailure, domain.KindSynthesisFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse with the status its kind maps to.
func (h *Handler) fail(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if kind == "" {
		kind = "internal_error"
	}

	fields := []zap.Field{
		zap.String("path", c.Path()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Warn("Request rejected", fields...)
	}

	return c.JSON(status, ErrorResponse{
		Error:   string(kind),
		Message: domain.MessageOf(err),
	})
}

// HTTPErrorHandler renders echo's own errors (unknown route, body limit,
// rate limit, auth) in the same ErrorResponse shape.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			logger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}

		code := strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorResponse{Error: code, Message: message})
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
