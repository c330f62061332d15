package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hopper/internal/config"
	"hopper/internal/conversation"
)

func InitialModel(orchestrator *conversation.Orchestrator, store *conversation.Store, settings config.Store) Model {
	ti := textarea.New()
	ti.Placeholder = "Describe the component to generate..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4"))

	ki := textinput.New()
	ki.Placeholder = "sk-or-..."
	ki.EchoMode = textinput.EchoPassword
	ki.CharLimit = 0

	vp := viewport.New(60, 15)
	mvp := viewport.New(ModalWidth-4, 15)

	m := Model{
		TextInput:     ti,
		Viewport:      vp,
		ModelViewport: mvp,
		Spinner:       sp,
		KeyInput:      ki,
		Orchestrator:  orchestrator,
		Store:         store,
		Settings:      settings,
		Messages:      []string{},
	}

	currentID := settings.Model()
	if mdl, idx, ok := FindModelByID(currentID); ok {
		m.CurrentModel = mdl
		m.SelectedModelIndex = idx
	} else {
		m.CurrentModel.ID = currentID
		m.CurrentModel.Name = currentID
	}

	m.SyncActiveFromStore()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
	)
}

func NewProgram(orchestrator *conversation.Orchestrator, store *conversation.Store, settings config.Store) *tea.Program {
	m := InitialModel(orchestrator, store, settings)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.Program = p
	return p
}
