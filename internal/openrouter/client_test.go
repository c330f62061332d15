package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"hopper/internal/models"
)

func streamResponse(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, line := range lines {
		fmt.Fprintf(w, "%s\n", line)
	}
}

func TestStreamChatCompletionRequestShape(t *testing.T) {
	var gotBody ChatRequest
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		streamResponse(w,
			`data: {"choices":[{"delta":{"content":"ok"}}]}`,
			`data: [DONE]`,
		)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	req := ChatRequest{
		Model: "anthropic/claude-3.5-sonnet",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "instructions"},
			{Role: models.RoleUser, Content: "make a box"},
		},
	}

	var buf string
	_, err := client.StreamChatCompletion(context.Background(), "sk-test", req, func(delta string) {
		buf += delta
	})
	require.NoError(t, err)
	require.Equal(t, "ok", buf)

	require.Equal(t, "Bearer sk-test", gotHeaders.Get("Authorization"))
	require.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	require.NotEmpty(t, gotHeaders.Get("HTTP-Referer"))
	require.Equal(t, "Hopper", gotHeaders.Get("X-Title"))

	require.True(t, gotBody.Stream)
	require.Equal(t, "anthropic/claude-3.5-sonnet", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	require.Equal(t, models.RoleSystem, gotBody.Messages[0].Role)
	require.Equal(t, models.RoleUser, gotBody.Messages[1].Role)
}

func TestStreamChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.StreamChatCompletion(context.Background(), "bad", ChatRequest{}, func(string) {})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid key", apiErr.Message)
	require.Equal(t, "invalid key", apiErr.Error())
}

func TestStreamChatCompletionAPIErrorNoEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.StreamChatCompletion(context.Background(), "k", ChatRequest{}, func(string) {})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "HTTP error, status 500", apiErr.Error())
}

func TestStreamChatCompletionCancelledMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(WithBaseURL(srv.URL))
	var buf string
	_, err := client.StreamChatCompletion(ctx, "k", ChatRequest{}, func(delta string) {
		buf += delta
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "partial", buf)
}
