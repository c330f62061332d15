package openrouter

import "hopper/internal/models"

// ChatRequest is the JSON body of POST /chat/completions. Streaming is
// always requested; the non-streaming variant is not used anywhere.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// streamChunk is one `data:` event payload. Providers only populate the
// fields relevant to the chunk: most carry a delta, the last one usually
// carries usage.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

// usagePayload mirrors OpenRouter's usage accounting block, including the
// cost field that plain OpenAI responses do not have.
type usagePayload struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

func (u *usagePayload) toModel() models.Usage {
	if u == nil {
		return models.Usage{}
	}
	return models.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Cost:             u.Cost,
	}
}

// errorEnvelope is the JSON body of a non-2xx response.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
