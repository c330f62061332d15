package config

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// DefaultModel matches the product default; overridable per install via
// SetModel.
const DefaultModel = "anthropic/claude-3.5-sonnet"

// ErrNoAPIKey is returned before any network activity when no credential
// is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Store is the configuration collaborator: a plain key/value view of the
// credential and model identifier. It is injected into the session and the
// UI; core logic never reads ambient global state.
type Store interface {
	APIKey() string
	SetAPIKey(key string) error
	ClearAPIKey() error
	Model() string
	SetModel(id string) error
}

// settingsBackend is the durable side of a DBStore. Implemented by db.DB.
type settingsBackend interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

const (
	keyAPIKey = "api-key"
	keyModel  = "model"
)

// DBStore persists settings in the sqlite settings table. The
// OPENROUTER_API_KEY environment variable takes precedence over the stored
// credential so a key never has to touch disk.
type DBStore struct {
	backend settingsBackend
}

func NewDBStore(backend settingsBackend) *DBStore {
	return &DBStore{backend: backend}
}

func (s *DBStore) APIKey() string {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return key
	}
	val, ok, err := s.backend.GetSetting(keyAPIKey)
	if err != nil || !ok {
		return ""
	}
	return val
}

func (s *DBStore) SetAPIKey(key string) error {
	return s.backend.SetSetting(keyAPIKey, key)
}

func (s *DBStore) ClearAPIKey() error {
	return s.backend.DeleteSetting(keyAPIKey)
}

func (s *DBStore) Model() string {
	val, ok, err := s.backend.GetSetting(keyModel)
	if err != nil || !ok || val == "" {
		return DefaultModel
	}
	return val
}

func (s *DBStore) SetModel(id string) error {
	return s.backend.SetSetting(keyModel, id)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu     sync.Mutex
	apiKey string
	model  string
}

func NewMemStore(apiKey string) *MemStore {
	return &MemStore{apiKey: apiKey}
}

func (s *MemStore) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

func (s *MemStore) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	return nil
}

func (s *MemStore) ClearAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = ""
	return nil
}

func (s *MemStore) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == "" {
		return DefaultModel
	}
	return s.model
}

func (s *MemStore) SetModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = id
	return nil
}

var (
	_ Store = (*DBStore)(nil)
	_ Store = (*MemStore)(nil)
)
