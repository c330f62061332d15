package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadingStateRoundTrip(t *testing.T) {
	for _, s := range []LoadingState{StateLoading, StateLoaded, StateInterrupted, StateFailed} {
		parsed, err := ParseLoadingState(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	_, err := ParseLoadingState("BOGUS")
	require.Error(t, err)
}

func TestTerminal(t *testing.T) {
	require.False(t, StateLoading.Terminal())
	require.True(t, StateLoaded.Terminal())
	require.True(t, StateInterrupted.Terminal())
	require.True(t, StateFailed.Terminal())
}

func TestThreadCloneIsDeep(t *testing.T) {
	original := Thread{
		ID: "t1",
		Messages: []Message{
			{ID: "m1", AIResponse: "answer", State: StateLoaded, Usage: &Usage{TotalTokens: 10}},
		},
	}

	clone := original.Clone()
	clone.Messages[0].AIResponse = "changed"
	clone.Messages[0].Usage.TotalTokens = 99
	clone.Messages = append(clone.Messages, Message{ID: "m2"})

	require.Equal(t, "answer", original.Messages[0].AIResponse)
	require.Equal(t, int64(10), original.Messages[0].Usage.TotalTokens)
	require.Len(t, original.Messages, 1)
}
