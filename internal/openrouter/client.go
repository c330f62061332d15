package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"hopper/internal/models"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// APIError is a non-2xx response from the provider, carrying the
// human-readable message from the error envelope when one was parseable.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error, status %d", e.Status)
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
// It owns the wire protocol only; credentials and message assembly belong
// to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		referer:    "https://github.com/hopper-cli/hopper", // Placeholder
		title:      "Hopper",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChatCompletion issues the streaming completion request and decodes
// the response through DecodeStream. No timeout is applied; a hung request
// stays open until ctx is cancelled.
func (c *Client) StreamChatCompletion(
	ctx context.Context,
	apiKey string,
	req ChatRequest,
	onDelta func(string),
) (models.Usage, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return models.Usage{}, errors.Wrap(err, "encoding request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.Usage{}, errors.Wrap(err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("dispatching completion request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Usage{}, ctxErr
		}
		return models.Usage{}, errors.Wrap(err, "sending request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Message = envelope.Error.Message
		}
		return models.Usage{}, apiErr
	}

	return DecodeStream(ctx, resp.Body, onDelta)
}
