package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hopper/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "hopper.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func fixtureThreads() []models.Thread {
	base := time.UnixMilli(1_700_000_000_000)
	return []models.Thread{
		{
			ID:        "thread-b",
			CreatedAt: base.Add(time.Hour),
			UpdatedAt: base.Add(2 * time.Hour),
			Messages: []models.Message{
				{
					ID:          "msg-b1",
					UserMessage: "make a voronoi mesh",
					AIResponse:  "using System;",
					State:       models.StateLoaded,
					TimeTaken:   2300 * time.Millisecond,
					Usage: &models.Usage{
						PromptTokens:     100,
						CompletionTokens: 250,
						TotalTokens:      350,
						Cost:             0.0123,
					},
				},
				{
					ID:          "msg-b2",
					UserMessage: "now rotate it",
					AIResponse:  "partial out",
					State:       models.StateInterrupted,
					TimeTaken:   400 * time.Millisecond,
				},
			},
		},
		{
			ID:        "thread-a",
			CreatedAt: base,
			UpdatedAt: base,
			Messages: []models.Message{
				{
					ID:          "msg-a1",
					UserMessage: "loft two curves",
					State:       models.StateFailed,
				},
			},
		},
	}
}

func TestReplaceAndLoadRoundTrip(t *testing.T) {
	d := openTestDB(t)
	want := fixtureThreads()

	require.NoError(t, d.ReplaceThreads(want))

	got, err := d.LoadThreads()
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Most-recently-updated first.
	require.Equal(t, "thread-b", got[0].ID)
	require.Equal(t, "thread-a", got[1].ID)

	require.Equal(t, want[0].CreatedAt.UnixMilli(), got[0].CreatedAt.UnixMilli())
	require.Equal(t, want[0].UpdatedAt.UnixMilli(), got[0].UpdatedAt.UnixMilli())

	require.Len(t, got[0].Messages, 2)
	m := got[0].Messages[0]
	require.Equal(t, "msg-b1", m.ID)
	require.Equal(t, "make a voronoi mesh", m.UserMessage)
	require.Equal(t, "using System;", m.AIResponse)
	require.Equal(t, models.StateLoaded, m.State)
	require.Equal(t, 2300*time.Millisecond, m.TimeTaken)
	require.NotNil(t, m.Usage)
	require.Equal(t, int64(350), m.Usage.TotalTokens)
	require.InDelta(t, 0.0123, m.Usage.Cost, 1e-9)

	interrupted := got[0].Messages[1]
	require.Equal(t, models.StateInterrupted, interrupted.State)
	require.Equal(t, "partial out", interrupted.AIResponse)
	require.Nil(t, interrupted.Usage)

	failed := got[1].Messages[0]
	require.Equal(t, models.StateFailed, failed.State)
	require.Empty(t, failed.AIResponse)
}

func TestReplaceThreadsIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	threads := fixtureThreads()

	require.NoError(t, d.ReplaceThreads(threads))
	first, err := d.LoadThreads()
	require.NoError(t, err)

	require.NoError(t, d.ReplaceThreads(threads))
	second, err := d.LoadThreads()
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestReplaceThreadsDropsRemovedState(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.ReplaceThreads(fixtureThreads()))

	require.NoError(t, d.ReplaceThreads(nil))
	got, err := d.LoadThreads()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoadThreadsEmptyDatabase(t *testing.T) {
	d := openTestDB(t)
	got, err := d.LoadThreads()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSettingsRoundTrip(t *testing.T) {
	d := openTestDB(t)

	_, ok, err := d.GetSetting("api-key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, d.SetSetting("api-key", "sk-one"))
	val, ok, err := d.GetSetting("api-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-one", val)

	// Upsert on conflict.
	require.NoError(t, d.SetSetting("api-key", "sk-two"))
	val, _, err = d.GetSetting("api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-two", val)

	require.NoError(t, d.DeleteSetting("api-key"))
	_, ok, err = d.GetSetting("api-key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenIsIdempotentOnSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hopper.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.ReplaceThreads(fixtureThreads()))
	require.NoError(t, d.Close())

	// Reopening an existing database keeps its contents.
	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()

	got, err := d.LoadThreads()
	require.NoError(t, err)
	require.Len(t, got, 2)
}
