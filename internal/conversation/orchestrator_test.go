package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"hopper/internal/config"
	"hopper/internal/models"
	"hopper/internal/session"
)

type fakeGenerator struct {
	startFn func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error)
	calls   int
	stopped bool
}

func (f *fakeGenerator) Start(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
	f.calls++
	return f.startFn(ctx, prompt, prior, onDelta)
}

func (f *fakeGenerator) Stop() { f.stopped = true }

func newTestOrchestrator(gen *fakeGenerator, apiKey string) (*Orchestrator, *Store) {
	store := NewStore()
	o := NewOrchestrator(store, gen, config.NewMemStore(apiKey))

	clock := baseTime
	o.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return o, store
}

func TestSubmitWithoutCredential(t *testing.T) {
	gen := &fakeGenerator{}
	o, store := newTestOrchestrator(gen, "")

	res, err := o.Submit(context.Background(), "make a box", true, nil)
	require.ErrorIs(t, err, config.ErrNoAPIKey)
	require.Nil(t, res)

	// Nothing was created and no request went out.
	require.Zero(t, store.Len())
	require.Zero(t, gen.calls)
	require.Empty(t, o.ActiveThreadID())
}

func TestSubmitCreatesThreadAndCommitsLoaded(t *testing.T) {
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			require.Empty(t, prior)
			onDelta("using ")
			onDelta("System;")
			return &session.Outcome{
				Text:    "using System;",
				Usage:   models.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7, Cost: 0.001},
				Elapsed: 1500 * time.Millisecond,
			}, nil
		},
	}
	o, store := newTestOrchestrator(gen, "sk-test")

	var deltas []string
	res, err := o.Submit(context.Background(), "make a box", true, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	require.Equal(t, models.StateLoaded, res.State)
	require.NoError(t, res.Err)
	require.Equal(t, []string{"using ", "System;"}, deltas)

	require.Equal(t, res.ThreadID, o.ActiveThreadID())
	thread, ok := store.Get(res.ThreadID)
	require.True(t, ok)
	require.Len(t, thread.Messages, 1)

	msg := thread.Messages[0]
	require.Equal(t, res.MessageID, msg.ID)
	require.Equal(t, "make a box", msg.UserMessage)
	require.Equal(t, "using System;", msg.AIResponse)
	require.Equal(t, models.StateLoaded, msg.State)
	require.Equal(t, 1500*time.Millisecond, msg.TimeTaken)
	require.NotNil(t, msg.Usage)
	require.Equal(t, int64(7), msg.Usage.TotalTokens)
}

func TestSubmitContinuesActiveThreadWithPriorContext(t *testing.T) {
	var gotPrior []models.ChatMessage
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			gotPrior = prior
			return &session.Outcome{Text: "next answer"}, nil
		},
	}
	o, store := newTestOrchestrator(gen, "sk-test")

	store.Replace([]models.Thread{{
		ID:        "t1",
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
		Messages: []models.Message{
			{ID: "m1", UserMessage: "q1", AIResponse: "a1", State: models.StateLoaded},
			{ID: "m2", UserMessage: "q2", AIResponse: "partial", State: models.StateInterrupted},
		},
	}})
	require.NoError(t, o.SelectThread("t1"))

	res, err := o.Submit(context.Background(), "q3", true, nil)
	require.NoError(t, err)
	require.Equal(t, "t1", res.ThreadID)

	// Only the completed turn is replayed; the interrupted one stays out.
	require.Equal(t, []models.ChatMessage{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
	}, gotPrior)

	thread, _ := store.Get("t1")
	require.Len(t, thread.Messages, 3)
}

func TestSubmitNewThreadIgnoresPriorContext(t *testing.T) {
	var gotPrior []models.ChatMessage
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			gotPrior = prior
			return &session.Outcome{Text: "fresh"}, nil
		},
	}
	o, store := newTestOrchestrator(gen, "sk-test")

	store.Replace([]models.Thread{{
		ID:        "t1",
		UpdatedAt: baseTime,
		Messages: []models.Message{
			{ID: "m1", UserMessage: "q1", AIResponse: "a1", State: models.StateLoaded},
		},
	}})
	require.NoError(t, o.SelectThread("t1"))

	res, err := o.Submit(context.Background(), "unrelated", false, nil)
	require.NoError(t, err)
	require.NotEqual(t, "t1", res.ThreadID)
	require.Empty(t, gotPrior)
	require.Equal(t, res.ThreadID, o.ActiveThreadID())
	require.Equal(t, 2, store.Len())
}

func TestSubmitCancellationKeepsPartialText(t *testing.T) {
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			onDelta("partial ans")
			return &session.Outcome{Text: "partial ans", Elapsed: 700 * time.Millisecond}, context.Canceled
		},
	}
	o, store := newTestOrchestrator(gen, "sk-test")

	res, err := o.Submit(context.Background(), "make a box", true, nil)
	require.NoError(t, err)
	require.Equal(t, models.StateInterrupted, res.State)
	require.NoError(t, res.Err)

	thread, _ := store.Get(res.ThreadID)
	msg := thread.Messages[0]
	require.Equal(t, models.StateInterrupted, msg.State)
	require.Equal(t, "partial ans", msg.AIResponse)
	require.Equal(t, 700*time.Millisecond, msg.TimeTaken)
	require.Nil(t, msg.Usage)
}

func TestSubmitFailureDiscardsPartialText(t *testing.T) {
	genErr := errors.New("upstream unavailable")
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			onDelta("half a resp")
			return nil, genErr
		},
	}
	o, store := newTestOrchestrator(gen, "sk-test")

	res, err := o.Submit(context.Background(), "make a box", true, nil)
	require.NoError(t, err)
	require.Equal(t, models.StateFailed, res.State)
	require.ErrorIs(t, res.Err, genErr)

	thread, _ := store.Get(res.ThreadID)
	msg := thread.Messages[0]
	require.Equal(t, models.StateFailed, msg.State)
	require.Empty(t, msg.AIResponse)
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{
		startFn: func(ctx context.Context, prompt string, prior []models.ChatMessage, onDelta func(string)) (*session.Outcome, error) {
			<-release
			return &session.Outcome{Text: "done"}, nil
		},
	}
	o, _ := newTestOrchestrator(gen, "sk-test")

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), "first", true, nil)
		done <- err
	}()

	require.Eventually(t, o.InFlight, time.Second, time.Millisecond)

	_, err := o.Submit(context.Background(), "second", true, nil)
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	require.False(t, o.InFlight())
}

func TestDeleteThreadRepointsActive(t *testing.T) {
	gen := &fakeGenerator{}
	o, store := newTestOrchestrator(gen, "sk-test")

	store.Replace([]models.Thread{
		{ID: "newer", UpdatedAt: baseTime.Add(time.Hour)},
		{ID: "older", UpdatedAt: baseTime},
	})
	require.NoError(t, o.SelectThread("newer"))

	require.NoError(t, o.DeleteThread("newer"))
	require.Equal(t, "older", o.ActiveThreadID())

	require.NoError(t, o.DeleteThread("older"))
	require.Empty(t, o.ActiveThreadID())

	require.ErrorIs(t, o.DeleteThread("older"), ErrNotFound)
}

func TestStopDelegatesToGenerator(t *testing.T) {
	gen := &fakeGenerator{}
	o, _ := newTestOrchestrator(gen, "sk-test")
	o.Stop()
	require.True(t, gen.stopped)
}
