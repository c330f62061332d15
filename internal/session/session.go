package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"hopper/internal/config"
	"hopper/internal/models"
	"hopper/internal/openrouter"
)

// SystemPrompt is the fixed instruction sent as the first message of every
// request.
const SystemPrompt = `You are an expert in Rhino/Grasshopper C# scripting. Generate C# code for the Grasshopper C# component that:
1. Uses the Grasshopper SDK types (GH_Structure, IGH_Goo, etc.)
2. Follows Grasshopper C# component patterns
3. Includes proper input/output parameter handling
4. Uses efficient algorithms for geometry operations
5. Includes error handling

The code should be ready to paste directly into a Grasshopper C# component.

The code you output needs to be in this style:

` + "```csharp" + `
// Grasshopper Script Instance
using System;
using System.Linq;
using System.Collections;
using System.Collections.Generic;
using System.Drawing;

using Rhino;
using Rhino.Geometry;

using Grasshopper;
using Grasshopper.Kernel;
using Grasshopper.Kernel.Data;
using Grasshopper.Kernel.Types;

public class Script_Instance : GH_ScriptInstance
{
    private void RunScript(object x, object y, ref object a)
    {
        a = null;
    }
}
` + "```" + `

Only output the C# code, no explanations.`

// Outcome is the terminal result of one generation. On interruption Text
// holds whatever had accumulated; Elapsed is measured from dispatch to the
// terminal state.
type Outcome struct {
	Text    string
	Usage   models.Usage
	Elapsed time.Duration
}

// Session owns one abortable completion request at a time. Starting a new
// generation cancels any active one before the new request is dispatched;
// Stop aborts cooperatively (the cancellation is observed at the next
// stream read).
type Session struct {
	client   *openrouter.Client
	settings config.Store

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func New(client *openrouter.Client, settings config.Store) *Session {
	return &Session{client: client, settings: settings}
}

// Active reports whether a generation is currently in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop aborts the in-flight request, if any. The partial response already
// accumulated is preserved and returned by the pending Start call.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Start runs one streaming completion for prompt plus prior context,
// forwarding each delta to onDelta in arrival order.
//
// Outcomes:
//   - success: (*Outcome, nil) with text, usage and elapsed populated;
//   - cancellation: (*Outcome, err) where errors.Is(err, context.Canceled)
//     holds and the outcome retains the partial text and elapsed time;
//   - any other failure: (nil, err); elapsed is undefined for failures.
//
// A missing credential fails fast with config.ErrNoAPIKey before any
// network activity.
func (s *Session) Start(
	ctx context.Context,
	prompt string,
	prior []models.ChatMessage,
	onDelta func(string),
) (*Outcome, error) {
	apiKey := s.settings.APIKey()
	if apiKey == "" {
		return nil, config.ErrNoAPIKey
	}

	reqCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		// Single-flight: supersede the previous generation before
		// dispatching the new request.
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		// A racing Start may already have installed its own cancel func.
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	messages := make([]models.ChatMessage, 0, len(prior)+2)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: SystemPrompt})
	messages = append(messages, prior...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: prompt})

	req := openrouter.ChatRequest{
		Model:    s.settings.Model(),
		Messages: messages,
	}

	var buf strings.Builder
	start := time.Now()

	usage, err := s.client.StreamChatCompletion(reqCtx, apiKey, req, func(delta string) {
		buf.WriteString(delta)
		onDelta(delta)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Dur("elapsed", elapsed).Int("partial_len", buf.Len()).Msg("generation interrupted")
			return &Outcome{Text: buf.String(), Elapsed: elapsed}, err
		}
		log.Error().Err(err).Msg("generation failed")
		return nil, err
	}

	log.Info().
		Dur("elapsed", elapsed).
		Int64("prompt_tokens", usage.PromptTokens).
		Int64("completion_tokens", usage.CompletionTokens).
		Msg("generation complete")

	return &Outcome{Text: buf.String(), Usage: usage, Elapsed: elapsed}, nil
}
