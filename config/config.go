package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port            int
	AllowedOrigins  []string
	MaxSessions     int
	SessionTimeout  time.Duration
	KeepAlivePeriod time.Duration
	MaxBufferSize   int // Maximum audio buffer size in bytes per session
	HistoryMaxTurns int // Conversation turns kept as LLM context per session

	RedisURL      string
	RedisPassword string

	// Stage backends. Missing keys never fail startup: generation and
	// synthesis degrade to local fallbacks, transcription reports a
	// per-turn error.
	StageTimeout time.Duration

	STTAPIKey  string
	STTBaseURL string
	STTModel   string

	LLMProvider  string // "openrouter" or "gemini"
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	GeminiAPIKey string
	GeminiModel  string
	SystemPrompt string

	TTSAPIKey  string
	TTSBaseURL string
	TTSModel   string
	TTSVoice   string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		AllowedOrigins:  []string{"*"},
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
		MaxBufferSize:   5 * 1024 * 1024, // 5MB default
		HistoryMaxTurns: 40,
		RedisURL:        "localhost:6379",
		StageTimeout:    30 * time.Second,
		LLMProvider:     "openrouter",
		LLMBaseURL:      "https://openrouter.ai/api/v1",
		LLMModel:        "openrouter/auto",
		GeminiModel:     "gemini-2.0-flash",
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	// Optional: MAX_BUFFER_SIZE (in bytes)
	if bufferSize := os.Getenv("MAX_BUFFER_SIZE"); bufferSize != "" {
		b, err := strconv.Atoi(bufferSize)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BUFFER_SIZE: %w", err)
		}
		config.MaxBufferSize = b
	}

	// Optional: HISTORY_MAX_TURNS
	if turns := os.Getenv("HISTORY_MAX_TURNS"); turns != "" {
		h, err := strconv.Atoi(turns)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_MAX_TURNS: %w", err)
		}
		config.HistoryMaxTurns = h
	}

	// Optional: STAGE_TIMEOUT (in seconds)
	if timeout := os.Getenv("STAGE_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid STAGE_TIMEOUT: %w", err)
		}
		config.StageTimeout = time.Duration(t) * time.Second
	}

	// Optional: REDIS_URL / REDIS_PASSWORD
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: STT backend (OpenAI-compatible whisper endpoint)
	config.STTAPIKey = os.Getenv("STT_API_KEY")
	config.STTBaseURL = os.Getenv("STT_BASE_URL")
	config.STTModel = os.Getenv("STT_MODEL")

	// Optional: LLM_PROVIDER ("openrouter" or "gemini")
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		switch provider {
		case "openrouter", "gemini":
			config.LLMProvider = provider
		default:
			return nil, fmt.Errorf("invalid LLM_PROVIDER: must be 'openrouter' or 'gemini'")
		}
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		config.LLMAPIKey = key
	}
	if base := os.Getenv("OPENROUTER_BASE_URL"); base != "" {
		config.LLMBaseURL = base
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		config.LLMModel = model
	}
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}
	config.SystemPrompt = os.Getenv("SYSTEM_PROMPT")

	// Optional: TTS backend
	config.TTSAPIKey = os.Getenv("TTS_API_KEY")
	config.TTSBaseURL = os.Getenv("TTS_BASE_URL")
	config.TTSModel = os.Getenv("TTS_MODEL")
	config.TTSVoice = os.Getenv("TTS_VOICE")

	return config, nil
}
