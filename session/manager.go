package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cairn-audio/config"
	"cairn-audio/stage"
)

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	stages   stage.Set
	log      zerolog.Logger
}

// NewManager creates a session manager. Stage backends are chosen from
// config; Redis is probed once and skipped when unavailable.
func NewManager(cfg *config.Config, log zerolog.Logger) (*Manager, error) {
	stages, err := buildStages(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewManagerWithStages(cfg, stages, log), nil
}

// NewManagerWithStages creates a manager around explicit stage backends.
// Tests inject fakes through this.
func NewManagerWithStages(cfg *config.Config, stages stage.Set, log zerolog.Logger) *Manager {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	// Test Redis connection; run without it when unreachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, session bookkeeping disabled")
		redisClient = nil
	}

	return &Manager{
		sessions: make(map[string]*ClientSession),
		redis:    redisClient,
		config:   cfg,
		stages:   stages,
		log:      log,
	}
}

// buildStages picks one backend per stage from config. Missing credentials
// select the degraded local backends rather than failing startup.
func buildStages(cfg *config.Config, log zerolog.Logger) (stage.Set, error) {
	var stages stage.Set

	if cfg.STTAPIKey != "" {
		stages.Transcriber = stage.NewWhisperTranscriber(cfg.STTAPIKey, cfg.STTBaseURL, cfg.STTModel)
	} else {
		log.Warn().Msg("STT_API_KEY missing; speech turns will report stt errors")
		stages.Transcriber = stage.NewNoTranscriber()
	}

	switch {
	case cfg.LLMProvider == "gemini" && cfg.GeminiAPIKey != "":
		gen, err := stage.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SystemPrompt)
		if err != nil {
			return stage.Set{}, fmt.Errorf("gemini generator: %w", err)
		}
		stages.Generator = gen
	case cfg.LLMProvider == "openrouter" && cfg.LLMAPIKey != "":
		stages.Generator = stage.NewChatGenerator(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.SystemPrompt)
	default:
		log.Warn().Str("provider", cfg.LLMProvider).Msg("no LLM credentials; replies fall back to echo")
		stages.Generator = stage.EchoGenerator{}
	}

	if cfg.TTSAPIKey != "" {
		stages.Synthesizer = stage.NewSpeechSynthesizer(cfg.TTSAPIKey, cfg.TTSBaseURL, cfg.TTSModel, cfg.TTSVoice)
	} else {
		log.Warn().Msg("TTS_API_KEY missing; replies carry placeholder audio")
		stages.Synthesizer = stage.PlaceholderSynthesizer{}
	}

	return stages, nil
}

// CreateSession creates a new client session for an upgraded connection.
func (sm *Manager) CreateSession(ctx context.Context, conn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, fmt.Errorf("maximum sessions reached")
	}

	sessionID := uuid.New().String()

	buffer := NewBuffer(sm.config.MaxBufferSize)
	history := NewHistory(sm.config.HistoryMaxTurns)
	coordinator := NewCoordinator(sm.stages, sm.config.StageTimeout, sm.log.With().Str("session", shortID(sessionID)).Logger())
	session := NewClientSession(sessionID, conn, buffer, history, coordinator, sm.config.KeepAlivePeriod, sm.log)

	sm.storeSession(ctx, sessionID, session)
	return session, nil
}

// storeSession saves a session to memory and Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, session *ClientSession) {
	sm.sessions[sessionID] = session

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity.Format(time.RFC3339),
			"status":        "active",
		})
		sm.redis.SAdd(ctx, "active_sessions", sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil
	}

	session.Close()
	delete(sm.sessions, sessionID)

	if sm.redis != nil {
		sm.redis.Del(ctx, "session:"+sessionID)
		sm.redis.SRem(ctx, "active_sessions", sessionID)
	}

	return nil
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions that have been inactive
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, session := range sm.sessions {
		if now.Sub(session.lastActivity()) > sm.config.SessionTimeout {
			session.Close()
			delete(sm.sessions, id)

			if sm.redis != nil {
				sm.redis.Del(ctx, "session:"+id)
				sm.redis.SRem(ctx, "active_sessions", id)
			}
		}
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, session := range sm.sessions {
		session.Close()
		delete(sm.sessions, id)
	}

	if sm.redis != nil {
		sm.redis.Close()
	}
}
