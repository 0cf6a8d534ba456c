package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"chart-insights/pkg/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 128
	MaxMaxTokens   = 2000
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Settings are the per-session knobs of an analysis.
type Settings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// SettingsUpdate carries the fields a caller wants to change; nil fields
// keep their current value.
type SettingsUpdate struct {
	Model       *string
	Temperature *float64
	MaxTokens   *int
}

func (u SettingsUpdate) apply(s Settings) Settings {
	if u.Model != nil {
		s.Model = strings.TrimSpace(*u.Model)
	}
	if u.Temperature != nil {
		s.Temperature = *u.Temperature
	}
	if u.MaxTokens != nil {
		s.MaxTokens = *u.MaxTokens
	}
	return s
}

type Session struct {
	ID        string
	Settings  Settings
	APIKeys   map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// APIKey is the key typed in for provider, or "". Safe on a nil session.
func (s *Session) APIKey(provider string) string {
	if s == nil {
		return ""
	}
	return s.APIKeys[provider]
}

// KeyProviders lists the providers the session holds a key for.
func (s *Session) KeyProviders() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.APIKeys))
	for name := range s.APIKeys {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Session) clone() *Session {
	c := *s
	c.APIKeys = make(map[string]string, len(s.APIKeys))
	for k, v := range s.APIKeys {
		c.APIKeys[k] = v
	}
	return &c
}

// SessionService keeps sessions in memory and issues signed tokens that
// reference them. Typed-in keys never leave the server.
type SessionService struct {
	jwtManager    *auth.JWTManager
	defaults      Settings
	allowedModels []string
	knownProvider func(string) bool
	logger        *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewSessionService(jwtManager *auth.JWTManager, defaults Settings, allowedModels []string, knownProvider func(string) bool, logger *zap.Logger) *SessionService {
	s := &SessionService{
		jwtManager:    jwtManager,
		defaults:      defaults,
		allowedModels: allowedModels,
		knownProvider: knownProvider,
		logger:        logger,
		sessions:      make(map[string]*Session),
		done:          make(chan struct{}),
	}

	interval := jwtManager.GetTokenDuration()
	if interval > time.Minute || interval <= 0 {
		interval = time.Minute
	}
	s.wg.Add(1)
	go s.janitor(interval)
	return s
}

// Defaults is the session used for requests without a token.
func (s *SessionService) Defaults() *Session {
	return &Session{Settings: s.defaults, APIKeys: map[string]string{}}
}

// AllowedModels are the models a session may pick.
func (s *SessionService) AllowedModels() []string {
	return s.allowedModels
}

// ValidateSettings checks ranges and the session's model list.
func (s *SessionService) ValidateSettings(st Settings) error {
	return ValidateSettings(st, s.allowedModels)
}

// ValidateSettings checks ranges and, when allowedModels is not empty, that
// the model is one of them.
func ValidateSettings(st Settings, allowedModels []string) error {
	if st.Temperature < MinTemperature || st.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.1f and %.1f", ErrInvalidSettings, MinTemperature, MaxTemperature)
	}
	if st.MaxTokens < MinMaxTokens || st.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: max_tokens must be between %d and %d", ErrInvalidSettings, MinMaxTokens, MaxMaxTokens)
	}
	if st.Model != "" && len(allowedModels) > 0 && !slices.Contains(allowedModels, st.Model) {
		return fmt.Errorf("%w: model %q is not allowed", ErrInvalidSettings, st.Model)
	}
	return nil
}

// Create stores a new session and returns it with its token.
func (s *SessionService) Create(update SettingsUpdate, apiKeys map[string]string) (*Session, string, error) {
	settings := update.apply(s.defaults)
	if err := s.ValidateSettings(settings); err != nil {
		return nil, "", err
	}

	keys := make(map[string]string, len(apiKeys))
	for provider, key := range apiKeys {
		provider = strings.ToLower(strings.TrimSpace(provider))
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if s.knownProvider != nil && !s.knownProvider(provider) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
		}
		keys[provider] = key
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Settings:  settings,
		APIKeys:   keys,
		CreatedAt: now,
		ExpiresAt: now.Add(s.jwtManager.GetTokenDuration()),
	}

	token, err := s.jwtManager.GenerateToken(session.ID)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("Session created",
		zap.String("session_id", session.ID),
		zap.Strings("key_providers", session.KeyProviders()),
	)
	return session.clone(), token, nil
}

// Get returns a copy of the session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return session.clone(), nil
}

func (s *SessionService) UpdateSettings(id string, update SettingsUpdate) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	settings := update.apply(session.Settings)
	if err := s.ValidateSettings(settings); err != nil {
		return nil, err
	}
	session.Settings = settings
	return session.clone(), nil
}

// Len is the number of stored sessions, expired ones included until the
// janitor runs.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) janitor(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *SessionService) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("Expired sessions evicted", zap.Int("count", evicted))
	}
}

// Close stops the janitor.
func (s *SessionService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
