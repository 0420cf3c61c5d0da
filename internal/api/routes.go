package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/lingua/internal/logging"
)

// multipart framing on top of the audio payload
const bodyLimitSlack = 1 << 20

// ServerOptions tune the middleware stack
type ServerOptions struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RequestTimeout time.Duration
	MaxUploadBytes int64
	StaticDir      string
}

// NewServer creates an echo instance with the middleware stack and routes.
func NewServer(h *Handler, opts ServerOptions, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler(logger)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logging.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
	}))
	if opts.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", opts.MaxUploadBytes+bodyLimitSlack)))
	}
	if opts.RateLimitRPS > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimitRPS))))
	}
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: opts.RequestTimeout,
			// The listening socket outlives any single request.
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Path(), "/listen")
			},
		}))
	}

	InitRoutes(e, h)

	if opts.StaticDir != "" {
		e.Static("/", opts.StaticDir)
	}
	return e
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.GET("", h.root)

	health := api.Group("/health")
	health.GET("", h.health)
	health.GET("/models", h.models)
	health.GET("/languages", h.languages)
	health.GET("/scenarios", h.scenarios)

	conversation := api.Group("/conversation")
	if h.Auth != nil {
		api.POST("/auth/token", h.issueToken)
		conversation.Use(h.Auth.Middleware())
	}
	conversation.POST("/text", h.textConversation)
	conversation.POST("/text-stream", h.textConversationStream)
	conversation.POST("/transcribe", h.transcribe)
	conversation.POST("/synthesize", h.synthesize)
	conversation.POST("/speak", h.speak)
	conversation.POST("/speak-stream", h.speakStream)
	conversation.GET("/session/:id", h.getSession)
	conversation.DELETE("/session/:id", h.deleteSession)
	conversation.GET("/voices", h.voices)
	if h.Hub != nil {
		conversation.GET("/listen", h.listen)
	}
}
