package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"hopper/internal/config"
	"hopper/internal/conversation"
	"hopper/internal/models"
)

const (
	ModalWidth       = 60
	ThreadPageSize   = 10
	PromptPreviewMax = 500
)

// AvailableModels is the curated model list shown in the selector. Any
// model id stored in settings that is not listed here still works; it just
// renders without a friendly name.
var AvailableModels = []models.AIModel{
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", Description: "Strong general coding model"},
	{ID: "anthropic/claude-3.5-haiku", Name: "Claude 3.5 Haiku", Provider: "Anthropic", Description: "Fast, lower-cost model"},
	{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Description: "General purpose multimodal model"},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI", Description: "Small fast model"},
	{ID: "google/gemini-flash-1.5", Name: "Gemini Flash 1.5", Provider: "Google", Description: "Fast multimodal model"},
	{ID: "deepseek/deepseek-chat", Name: "DeepSeek Chat", Provider: "DeepSeek", Description: "Code-capable chat model"},
	{ID: "meta-llama/llama-3.1-70b-instruct", Name: "Llama 3.1 70B", Provider: "Meta", Description: "Open-weights instruct model"},
	{ID: "mistralai/mistral-large", Name: "Mistral Large", Provider: "Mistral", Description: "Flagship Mistral model"},
}

// StreamDeltaMsg carries one incremental text delta from the in-flight
// generation to the render loop.
type StreamDeltaMsg struct {
	Delta string
}

// GenerationDoneMsg reports the terminal state of a submission. Err is set
// for pre-flight rejections (no credential, busy); generation failures
// arrive inside Result.
type GenerationDoneMsg struct {
	Result *conversation.SubmitResult
	Err    error
}

type ErrMsg error

type Model struct {
	Viewport  viewport.Model
	Messages  []string
	TextInput textarea.Model
	Spinner   spinner.Model
	Renderer  *glamour.TermRenderer

	Orchestrator *conversation.Orchestrator
	Store        *conversation.Store
	Settings     config.Store

	Program *tea.Program

	Err          error
	Loading      bool
	StreamBuf    string
	WindowWidth  int
	WindowHeight int

	// Thread bar modal
	ThreadsOpen       bool
	ThreadSelectedIdx int
	ThreadPage        int

	// Model selector modal
	ModelSelectorOpen  bool
	SelectedModelIndex int
	ModelViewport      viewport.Model
	CurrentModel       models.AIModel

	// Settings modal (API key entry)
	SettingsOpen bool
	KeyInput     textinput.Model
	SettingsNote string

	ShortcutsOpen bool
}
