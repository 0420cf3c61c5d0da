package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
)

// streamEvents writes events as server-sent events, flushing each one.
// Every event is framed as "event: <type>" followed by "data: <json>" so
// clients can dispatch on either. The status is 200 once the first byte is
// out; failures after that arrive as an error event, including the request
// deadline firing before the producer finished.
func (h *Handler) streamEvents(c echo.Context, events <-chan domain.Event) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	terminated := false
	for ev := range events {
		if err := h.writeEvent(res, ev); err != nil {
			// The client is gone; returning cancels the request context,
			// which stops generation.
			h.logger.Info("Stream client disconnected", zap.Error(err))
			return nil
		}
		terminated = terminated || ev.Terminal()
	}

	// The producer stops without a terminal event once the context is done.
	ctx := c.Request().Context()
	if !terminated && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		h.logger.Warn("Stream deadline exceeded", zap.String("path", c.Path()))
		timeout := domain.NewError(domain.KindGenerationFailure, "request timed out", ctx.Err())
		if err := h.writeEvent(res, domain.ErrorEvent(timeout)); err != nil {
			h.logger.Info("Timeout event not delivered", zap.Error(err))
		}
	}
	return nil
}

func (h *Handler) writeEvent(res *echo.Response, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return nil
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
