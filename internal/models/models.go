package models

import (
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LoadingState is the lifecycle state of a single generation turn.
type LoadingState int

const (
	StateLoading     LoadingState = iota // generation in flight, response accumulating
	StateLoaded                          // finished successfully, response finalized
	StateInterrupted                     // user-cancelled, partial response retained
	StateFailed                          // transport or envelope error, response discarded
)

func (s LoadingState) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateLoaded:
		return "LOADED"
	case StateInterrupted:
		return "INTERRUPTED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("LoadingState(%d)", int(s))
	}
}

// Terminal reports whether the state is final. Terminal messages are never
// mutated again; a retry is a brand-new message.
func (s LoadingState) Terminal() bool {
	return s != StateLoading
}

func ParseLoadingState(s string) (LoadingState, error) {
	switch s {
	case "LOADING":
		return StateLoading, nil
	case "LOADED":
		return StateLoaded, nil
	case "INTERRUPTED":
		return StateInterrupted, nil
	case "FAILED":
		return StateFailed, nil
	default:
		return StateFailed, fmt.Errorf("unknown loading state %q", s)
	}
}

// Usage is the token/cost summary attached to a message on successful
// completion. Cost is in USD as reported by the provider.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Cost             float64
}

// Message is one user prompt paired with its generated response and
// lifecycle state. TimeTaken is set for StateLoaded and StateInterrupted;
// Usage only for StateLoaded.
type Message struct {
	ID          string
	UserMessage string
	AIResponse  string
	State       LoadingState
	TimeTaken   time.Duration
	Usage       *Usage
}

// Thread is a persisted conversation: an ordered sequence of messages.
type Thread struct {
	ID        string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so that store snapshots stay immutable.
func (t Thread) Clone() Thread {
	out := t
	out.Messages = make([]Message, len(t.Messages))
	copy(out.Messages, t.Messages)
	for i := range out.Messages {
		if u := out.Messages[i].Usage; u != nil {
			cp := *u
			out.Messages[i].Usage = &cp
		}
	}
	return out
}

// ChatMessage is one turn in the wire-format message list sent to the
// provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIModel struct {
	ID          string
	Name        string
	Provider    string
	Description string
}
