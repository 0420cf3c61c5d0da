package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/lingua/domain/entities"
)

const probeTimeout = 5 * time.Second

type prober interface {
	Ready(ctx context.Context) error
	Name() string
}

func (h *Handler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Message: "Local Language Learning Assistant API",
		Version: "0.1.0",
		Health:  "/api/health",
		Listen:  "/api/conversation/listen",
	})
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "Language Learning Assistant API is running",
	})
}

// models probes the three runtimes concurrently.
func (h *Handler) models(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	probes := []struct {
		key string
		p   prober
	}{
		{"stt", h.STT},
		{"llm", h.LLM},
		{"tts", h.TTS},
	}
	states := make([]string, len(probes))

	var g errgroup.Group
	for i, probe := range probes {
		i, probe := i, probe
		g.Go(func() error {
			states[i] = "not_loaded"
			if probe.p == nil {
				return nil
			}
			if err := probe.p.Ready(ctx); err != nil {
				h.logger.Warn("Model not ready",
					zap.String("model", probe.key),
					zap.String("provider", probe.p.Name()),
					zap.Error(err))
				return nil
			}
			states[i] = "loaded"
			return nil
		})
	}
	g.Wait()

	resp := ModelsResponse{
		Status:    "ok",
		Models:    make(map[string]string, len(probes)),
		Providers: make(map[string]string, len(probes)),
	}
	for i, probe := range probes {
		resp.Models[probe.key] = states[i]
		if probe.p != nil {
			resp.Providers[probe.key] = probe.p.Name()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) languages(c echo.Context) error {
	languages := make(map[string]LanguageInfo, len(h.Languages))
	for _, code := range h.Languages {
		voices := entities.VoicesFor(code)
		if voices == nil {
			voices = []string{}
		}
		languages[code] = LanguageInfo{
			Name:      entities.LanguageName(code),
			TTSVoices: voices,
		}
	}
	return c.JSON(http.StatusOK, LanguagesResponse{Languages: languages, Count: len(languages)})
}

func (h *Handler) scenarios(c echo.Context) error {
	scenarios := make(map[string]string)
	for _, s := range entities.Scenarios() {
		scenarios[s.Name] = s.Description
	}
	return c.JSON(http.StatusOK, ScenariosResponse{Scenarios: scenarios, Count: len(scenarios)})
}
