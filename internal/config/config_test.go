package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	values map[string]string
	err    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{values: map[string]string{}}
}

func (b *fakeBackend) GetSetting(key string) (string, bool, error) {
	if b.err != nil {
		return "", false, b.err
	}
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *fakeBackend) SetSetting(key, value string) error {
	if b.err != nil {
		return b.err
	}
	b.values[key] = value
	return nil
}

func (b *fakeBackend) DeleteSetting(key string) error {
	if b.err != nil {
		return b.err
	}
	delete(b.values, key)
	return nil
}

func TestDBStoreAPIKeyLifecycle(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	s := NewDBStore(newFakeBackend())

	require.Empty(t, s.APIKey())
	require.NoError(t, s.SetAPIKey("sk-stored"))
	require.Equal(t, "sk-stored", s.APIKey())
	require.NoError(t, s.ClearAPIKey())
	require.Empty(t, s.APIKey())
}

func TestDBStoreEnvOverridesStoredKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-env")
	s := NewDBStore(newFakeBackend())
	require.NoError(t, s.SetAPIKey("sk-stored"))

	require.Equal(t, "sk-env", s.APIKey())
}

func TestDBStoreModelDefault(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	backend := newFakeBackend()
	s := NewDBStore(backend)

	require.Equal(t, DefaultModel, s.Model())
	require.NoError(t, s.SetModel("openai/gpt-4o"))
	require.Equal(t, "openai/gpt-4o", s.Model())

	// An unreadable backend falls back to the default rather than failing.
	backend.err = errors.New("backend unavailable")
	require.Equal(t, DefaultModel, s.Model())
	require.Empty(t, s.APIKey())
}
