package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/menta2k/smodf-client/internal/errors"
)

// DefaultMarkerKey names the session marker
const DefaultMarkerKey = "usuario_smodf1"

// Marker is the session-marker contract: presence means authenticated
type Marker interface {
	Present() bool
	Token() (string, bool)
	Set(token string) error
	Clear() error
}

// MarkerStore keeps the marker in memory, optionally mirrored to a JSON
// file so a CLI session survives restarts. A zero TTL never expires.
type MarkerStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	key   string
	ttl   time.Duration
	path  string
	now   func() time.Time
}

// MarkerOption configures a MarkerStore
type MarkerOption func(*MarkerStore)

// WithMarkerKey overrides DefaultMarkerKey
func WithMarkerKey(key string) MarkerOption {
	return func(s *MarkerStore) { s.key = key }
}

// WithMarkerTTL expires the marker after ttl
func WithMarkerTTL(ttl time.Duration) MarkerOption {
	return func(s *MarkerStore) { s.ttl = ttl }
}

// WithMarkerFile mirrors the marker to path
func WithMarkerFile(path string) MarkerOption {
	return func(s *MarkerStore) { s.path = path }
}

type markerFile struct {
	Key       string    `json:"key"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewMarkerStore creates a store and loads a mirrored marker if one exists
func NewMarkerStore(opts ...MarkerOption) (*MarkerStore, error) {
	s := &MarkerStore{key: DefaultMarkerKey, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.New(cache.NoExpiration, 0)
	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Key returns the marker key
func (s *MarkerStore) Key() string { return s.key }

// Present reports whether a marker is held
func (s *MarkerStore) Present() bool {
	_, ok := s.Token()
	return ok
}

// Token returns the marker value
func (s *MarkerStore) Token() (string, bool) {
	v, ok := s.cache.Get(s.key)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// Set stores token; an empty token clears the marker
func (s *MarkerStore) Set(token string) error {
	if token == "" {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := cache.NoExpiration
	var expires time.Time
	if s.ttl > 0 {
		ttl = s.ttl
		expires = s.now().Add(s.ttl)
	}
	s.cache.Set(s.key, token, ttl)
	return s.persist(&markerFile{Key: s.key, Token: token, ExpiresAt: expires})
}

// Clear removes the marker; clearing an absent marker is not an error
func (s *MarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(s.key)
	return s.persist(nil)
}

func (s *MarkerStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(err).Component("session").Category(errors.CategoryConfiguration).
			Context("path", s.path).Build()
	}
	var mf markerFile
	if err := json.Unmarshal(data, &mf); err != nil {
		// unreadable mirror: treat as logged out
		return nil
	}
	if mf.Key != s.key || mf.Token == "" {
		return nil
	}
	ttl := cache.NoExpiration
	if !mf.ExpiresAt.IsZero() {
		ttl = mf.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}
	s.cache.Set(s.key, mf.Token, ttl)
	return nil
}

func (s *MarkerStore) persist(mf *markerFile) error {
	if s.path == "" {
		return nil
	}
	if mf == nil {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.New(err).Component("session").Category(errors.CategoryConfiguration).Build()
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.New(err).Component("session").Category(errors.CategoryConfiguration).Build()
	}
	data, err := json.Marshal(mf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.New(err).Component("session").Category(errors.CategoryConfiguration).
			Context("path", s.path).Build()
	}
	return nil
}
