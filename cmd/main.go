package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/llm"
	"github.com/satriahrh/lingua/adapters/memory"
	"github.com/satriahrh/lingua/adapters/mongo"
	"github.com/satriahrh/lingua/adapters/postgres"
	"github.com/satriahrh/lingua/adapters/redis"
	"github.com/satriahrh/lingua/adapters/stt"
	"github.com/satriahrh/lingua/adapters/tts"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/api"
	"github.com/satriahrh/lingua/internal/auth"
	"github.com/satriahrh/lingua/internal/config"
	"github.com/satriahrh/lingua/internal/listening"
	"github.com/satriahrh/lingua/internal/logging"
	"github.com/satriahrh/lingua/internal/pipeline"
	"github.com/satriahrh/lingua/internal/scheduler"
	"github.com/satriahrh/lingua/internal/websocket"
	"github.com/satriahrh/lingua/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize adapters
	sessions, closeSessions, err := newSessionRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.String("store", string(cfg.SessionStore)), zap.Error(err))
	}
	defer closeSessions()

	languageModel, err := llm.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create language model", zap.Error(err))
	}
	speechToText, err := stt.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create speech-to-text", zap.Error(err))
	}
	textToSpeech, err := tts.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create text-to-speech", zap.Error(err))
	}

	// Initialize usecase services
	conversationService := usecase.NewConversationService(languageModel, sessions, usecase.ConversationConfig{
		ContextLength: cfg.MaxContextLength,
		Generation: repositories.GenerationOptions{
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			TopP:        cfg.LLMTopP,
		},
	}, logger)
	speechService := usecase.NewSpeechService(speechToText, textToSpeech, usecase.SpeechConfig{
		MaxAudioDuration: cfg.MaxAudioDuration(),
		MaxUploadBytes:   cfg.MaxUploadBytes,
	}, logger)
	voiceService := usecase.NewVoiceService(conversationService, speechService, pipeline.NewRunner(logger), logger)

	// Background jobs
	sweeper := scheduler.New(sessions, logger)
	if err := sweeper.Start(cfg.SessionCleanupSchedule); err != nil {
		logger.Fatal("Invalid SESSION_CLEANUP_SCHEDULE", zap.Error(err))
	}
	defer sweeper.Stop()

	// Initialize WebSocket hub with the voice pipeline
	// Recordings may not outgrow what the pipeline accepts.
	hub := websocket.NewHub(voiceService, listening.Config{MaxDuration: cfg.MaxAudioDuration()}, logger)
	go hub.Run(ctx)

	var authManager *auth.Manager
	if cfg.AuthEnabled() {
		authManager = auth.NewManager(cfg.AuthSecret, cfg.AuthAccessKey, cfg.AuthTokenTTL)
	}

	handler := api.NewHandler(api.Deps{
		Conversation:   conversationService,
		Speech:         speechService,
		Voice:          voiceService,
		Sessions:       sessions,
		STT:            speechToText,
		LLM:            languageModel,
		TTS:            textToSpeech,
		Languages:      cfg.SupportedLanguages,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Auth:           authManager,
		Hub:            hub,
	}, logger)
	e := api.NewServer(handler, api.ServerOptions{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
		StaticDir:      cfg.StaticDir,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", cfg.Addr()),
		zap.String("llm", languageModel.Name()),
		zap.String("stt", speechToText.Name()),
		zap.String("tts", textToSpeech.Name()),
		zap.String("session_store", string(cfg.SessionStore)),
		zap.Bool("auth", cfg.AuthEnabled()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newSessionRepository opens the store selected by SESSION_STORE. The
// returned func releases its connections.
func newSessionRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SessionRepository, func(), error) {
	opts := repositories.SessionOptions{
		TTL:          cfg.SessionTTL,
		HistoryLimit: cfg.SessionHistoryLimit,
	}
	logger = logger.With(zap.String("component", "sessions"))

	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		return memory.NewSessionRepository(opts, logger), func() {}, nil

	case config.SessionStoreRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewSessionRepository(client, opts, logger), func() { client.Close() }, nil

	case config.SessionStoreMongo:
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewSessionRepository(client.Database, opts, logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Close(context.Background())
			return nil, nil, err
		}
		return repo, func() { client.Close(context.Background()) }, nil

	case config.SessionStorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewSessionRepository(pool, opts, logger), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
