package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/auth"
	"github.com/satriahrh/lingua/internal/websocket"
	"github.com/satriahrh/lingua/usecase"
)

// Deps are the services the HTTP layer relays to.
type Deps struct {
	Conversation *usecase.ConversationService
	Speech       *usecase.SpeechService
	Voice        *usecase.VoiceService
	Sessions     repositories.SessionRepository

	STT repositories.SpeechToText
	LLM repositories.LanguageModel
	TTS repositories.TextToSpeech

	// Languages listed by /api/health/languages.
	Languages []string
	// MaxUploadBytes caps multipart audio reads.
	MaxUploadBytes int64

	// Auth is nil when the API is open.
	Auth *auth.Manager
	Hub  *websocket.Hub
}

// Handler serves the conversation API
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{Deps: deps, logger: logger}
}

func (h *Handler) textConversation(c echo.Context) error {
	req, err := h.bindTextRequest(c)
	if err != nil {
		return h.fail(c, err)
	}

	reply, err := h.Conversation.Respond(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ConversationResponse{
		Response:  reply.Text,
		Language:  reply.Language,
		SessionID: reply.SessionID,
	})
}

func (h *Handler) textConversationStream(c echo.Context) error {
	req, err := h.bindTextRequest(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.streamEvents(c, h.Conversation.Stream(c.Request().Context(), req))
}

// bindTextRequest validates everything that can be checked before a stream
// is opened, so malformed requests still get a 400.
func (h *Handler) bindTextRequest(c echo.Context) (usecase.TextRequest, error) {
	var body TextConversationRequest
	if err := c.Bind(&body); err != nil {
		return usecase.TextRequest{}, domain.InvalidRequest("invalid request body: %v", err)
	}
	if strings.TrimSpace(body.Message) == "" {
		return usecase.TextRequest{}, domain.InvalidRequest("message cannot be empty")
	}
	settings, err := usecase.ParseTurnSettings(body.Language, body.Difficulty, body.Scenario, body.TeachingIntensity)
	if err != nil {
		return usecase.TextRequest{}, err
	}
	for i, turn := range body.History {
		if !turn.Role.Valid() {
			return usecase.TextRequest{}, domain.InvalidRequest("history[%d]: unknown role %q", i, turn.Role)
		}
	}
	return usecase.TextRequest{
		Message:   body.Message,
		Settings:  settings,
		SessionID: body.SessionID,
		History:   body.History,
	}, nil
}

func (h *Handler) transcribe(c echo.Context) error {
	data, cfg, err := h.readAudio(c)
	if err != nil {
		return h.fail(c, err)
	}
	cfg.Language = c.FormValue("language")

	result, err := h.Speech.Transcribe(c.Request().Context(), data, cfg)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TranscriptionResponse{
		Text:                result.Text,
		Language:            result.Language,
		DetectedLanguage:    result.Language,
		LanguageProbability: result.LanguageProbability,
		Segments:            result.Segments,
		Duration:            result.Duration,
	})
}

func (h *Handler) synthesize(c echo.Context) error {
	req := usecase.SynthesisRequest{
		Text:                c.FormValue("text"),
		Language:            c.FormValue("language"),
		Voice:               c.FormValue("voice"),
		VoiceStyle:          c.FormValue("voice_style"),
		ExplanationLanguage: c.FormValue("explanation_language"),
		ExplanationVoice:    c.FormValue("explanation_voice"),
	}
	var err error
	if req.SpeechRate, err = parseFloat(c.FormValue("speech_rate"), "speech_rate"); err != nil {
		return h.fail(c, err)
	}
	if req.Difficulty, err = entities.ParseDifficulty(c.FormValue("difficulty")); err != nil {
		return h.fail(c, domain.InvalidRequest("%v", err))
	}
	if req.Intensity, err = entities.ParseTeachingIntensity(c.FormValue("teaching_intensity")); err != nil {
		return h.fail(c, domain.InvalidRequest("%v", err))
	}

	speech, err := h.Speech.Synthesize(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=speech.wav")
	return c.Blob(http.StatusOK, speech.ContentType, speech.Audio)
}

func (h *Handler) speak(c echo.Context) error {
	req, err := h.bindVoiceRequest(c)
	if err != nil {
		return h.fail(c, err)
	}

	reply, err := h.Voice.Respond(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}

	completion := reply.Completion()
	resp := ConversationResponse{
		Response:         completion.FullResponse,
		Language:         completion.Language,
		SessionID:        completion.SessionID,
		DetectedLanguage: completion.DetectedLanguage,
		TranscribedText:  completion.TranscribedText,
		TimingsMs:        completion.TimingsMs,
	}
	if a := completion.Audio; a != nil {
		resp.Audio = &AudioResponse{
			ContentType:     a.ContentType,
			SampleRate:      a.SampleRate,
			Voice:           a.Voice,
			DurationSeconds: a.DurationSeconds,
			Data:            a.Data,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) speakStream(c echo.Context) error {
	req, err := h.bindVoiceRequest(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.streamEvents(c, h.Voice.Stream(c.Request().Context(), req))
}

func (h *Handler) bindVoiceRequest(c echo.Context) (usecase.VoiceRequest, error) {
	data, cfg, err := h.readAudio(c)
	if err != nil {
		return usecase.VoiceRequest{}, err
	}
	cfg.Language = c.FormValue("input_language")

	settings, err := usecase.ParseTurnSettings(
		c.FormValue("language"), c.FormValue("difficulty"),
		c.FormValue("scenario"), c.FormValue("teaching_intensity"))
	if err != nil {
		return usecase.VoiceRequest{}, err
	}

	synthesize := true
	if v := c.FormValue("synthesize"); v != "" {
		if synthesize, err = strconv.ParseBool(v); err != nil {
			return usecase.VoiceRequest{}, domain.InvalidRequest("synthesize must be a boolean, got %q", v)
		}
	}
	rate, err := parseFloat(c.FormValue("speech_rate"), "speech_rate")
	if err != nil {
		return usecase.VoiceRequest{}, err
	}

	return usecase.VoiceRequest{
		Audio:       data,
		AudioConfig: cfg,
		Settings:    settings,
		SessionID:   c.FormValue("session_id"),
		Synthesize:  synthesize,
		Voice:       c.FormValue("voice"),
		SpeechRate:  rate,
	}, nil
}

// readAudio reads the multipart "audio" file, capped at MaxUploadBytes.
func (h *Handler) readAudio(c echo.Context) ([]byte, repositories.AudioConfig, error) {
	header, err := c.FormFile("audio")
	if err != nil {
		return nil, repositories.AudioConfig{}, domain.InvalidRequest("audio file is required")
	}
	if h.MaxUploadBytes > 0 && header.Size > h.MaxUploadBytes {
		return nil, repositories.AudioConfig{}, domain.InvalidRequest("audio upload too large: %d bytes (max %d)", header.Size, h.MaxUploadBytes)
	}

	f, err := header.Open()
	if err != nil {
		return nil, repositories.AudioConfig{}, domain.InvalidRequest("cannot read audio upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, repositories.AudioConfig{}, domain.InvalidRequest("cannot read audio upload: %v", err)
	}
	return data, repositories.AudioConfig{
		ContentType: header.Header.Get(echo.HeaderContentType),
		Filename:    header.Filename,
	}, nil
}

func (h *Handler) getSession(c echo.Context) error {
	id := c.Param("id")
	if err := entities.ValidateSessionID(id); err != nil {
		return h.fail(c, domain.InvalidRequest("%v", err))
	}

	session, err := h.Sessions.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	messages := session.Turns
	if messages == nil {
		messages = []entities.Turn{}
	}
	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: session.ID,
		Messages:  messages,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) deleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := entities.ValidateSessionID(id); err != nil {
		return h.fail(c, domain.InvalidRequest("%v", err))
	}
	if err := h.Sessions.Clear(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}

	h.logger.Info("Session cleared", zap.String("session_id", id))
	return c.JSON(http.StatusOK, SessionClearedResponse{Status: "cleared", SessionID: id})
}

func (h *Handler) voices(c echo.Context) error {
	return c.JSON(http.StatusOK, VoicesResponse{Voices: entities.Voices()})
}

func (h *Handler) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidRequest("invalid request body: %v", err))
	}

	token, expiresAt, err := h.Auth.Exchange(req.AccessKey)
	if err != nil {
		h.logger.Warn("Access token exchange refused", zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) listen(c echo.Context) error {
	return websocket.HandleWebSocket(h.Hub, c)
}

func parseFloat(v, field string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, domain.InvalidRequest("%s must be a number, got %q", field, v)
	}
	return f, nil
}
