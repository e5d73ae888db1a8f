package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/adapters"
	"github.com/kaiwa-labs/kaiwa-server/adapters/llm"
	"github.com/kaiwa-labs/kaiwa-server/adapters/stt"
	"github.com/kaiwa-labs/kaiwa-server/adapters/tts"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
	"github.com/kaiwa-labs/kaiwa-server/internal/api"
	"github.com/kaiwa-labs/kaiwa-server/internal/auth"
	"github.com/kaiwa-labs/kaiwa-server/internal/config"
	"github.com/kaiwa-labs/kaiwa-server/internal/websocket"
	"github.com/kaiwa-labs/kaiwa-server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)
	auth.Configure(cfg.JWTSecret)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Collaborator adapters
	var (
		recognizer  repositories.SpeechRecognizer
		model       repositories.DialogueModel
		synthesizer repositories.SpeechSynthesizer
	)
	if cfg.UseMockCollaborators {
		logger.Info("Using mock collaborators")
		recognizer = stt.NewScriptedRecognizer(logger)
		model = llm.NewMockDialogueModel(logger)
	} else {
		recognizer = stt.NewGoogleSpeechRecognizer(logger)

		geminiModel, err := llm.NewGeminiDialogueModel(llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini dialogue model", zap.Error(err))
		}
		model = geminiModel

		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Warn("Speech synthesis disabled", zap.Error(err))
		} else {
			synthesizer = elevenLabs
		}
	}

	registry := usecase.NewSessionRegistry(usecase.SessionDeps{
		Recognizer:  recognizer,
		Model:       model,
		Synthesizer: synthesizer,
		Audio: repositories.AudioConfig{
			SampleRate: cfg.SampleRate,
			Encoding:   "LINEAR16",
			Language:   cfg.Language,
		},
		SilenceWindow: cfg.SilenceWindow,
		Logger:        logger,
	}, logger)

	agentRepo := adapters.NewMemoryAgentRepositoryWithSeed()

	// Initialize WebSocket hub
	hub := websocket.NewHub(registry, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, agentRepo, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
