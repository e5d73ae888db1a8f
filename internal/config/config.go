package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port      string
	JWTSecret string

	// Recognition defaults for incoming audio: mono PCM16.
	SampleRate int
	Language   string

	// SilenceWindow is how long the session waits after the last final
	// phrase before treating the accumulated text as a complete turn.
	SilenceWindow time.Duration

	GeminiAPIKey string
	GeminiModel  string

	UseMockCollaborators bool
}

// Load reads .env (when present) and assembles the configuration. Missing
// optional values fall back to defaults.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		SampleRate:           getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		Language:             getEnv("RECOGNITION_LANGUAGE", "ja-JP"),
		SilenceWindow:        time.Duration(getEnvInt("SILENCE_WINDOW_MS", 2500)) * time.Millisecond,
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		UseMockCollaborators: getEnvBool("USE_MOCK_COLLABORATORS", false),
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, using insecure development secret")
		cfg.JWTSecret = "kaiwa-development-secret"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
