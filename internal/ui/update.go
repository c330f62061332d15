package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"hopper/internal/config"
	"hopper/internal/styles"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.RefreshTranscript()
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if m.ThreadsOpen {
			return m.updateThreadBar(msg)
		}
		if m.ModelSelectorOpen {
			return m.updateModelSelector(msg)
		}
		if m.SettingsOpen {
			return m.updateSettings(msg)
		}
		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "ctrl+s":
				m.ShortcutsOpen = false
				return m, nil
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEsc:
			if m.Loading {
				// Cooperative stop; the pending submit command reports
				// the INTERRUPTED state when it unwinds.
				m.Orchestrator.Stop()
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			if m.Loading {
				return m, nil
			}
			m.Orchestrator.NewThread()
			m.Err = nil
			m.RefreshTranscript()
			m.UpdateViewport()
			return m, nil

		case tea.KeyCtrlB:
			m.ModelSelectorOpen = true
			m.ThreadsOpen = false
			m.ShortcutsOpen = false
			m.UpdateModelSelectorContent()
			m.SyncModelViewportScroll()
			return m, nil

		case tea.KeyCtrlH:
			m.ThreadsOpen = true
			m.ModelSelectorOpen = false
			m.ShortcutsOpen = false
			m.ThreadSelectedIdx = 0
			m.ThreadPage = 0
			return m, nil

		case tea.KeyCtrlE:
			m.SettingsOpen = true
			m.SettingsNote = ""
			m.KeyInput.SetValue("")
			m.KeyInput.Focus()
			return m, nil

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			return m, nil

		case tea.KeyEnter:
			if m.Loading {
				return m, nil
			}
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				return m, nil
			}

			m.TextInput.Reset()
			m.updateInputLayout()
			m.Err = nil
			m.Loading = true
			m.StreamBuf = ""

			return m, tea.Batch(m.submitCmd(input), m.Spinner.Tick)
		}

	case StreamDeltaMsg:
		m.StreamBuf += msg.Delta
		// The LOADING turn's prompt lives in the store, not in m.Messages,
		// until the turn commits; rebuild so it shows while streaming.
		m.RefreshTranscript()
		m.UpdateViewport()
		return m, nil

	case GenerationDoneMsg:
		m.Loading = false
		m.StreamBuf = ""
		if msg.Err != nil {
			if errors.Is(msg.Err, config.ErrNoAPIKey) {
				m.Err = fmt.Errorf("no API key configured, press Ctrl+E to set one")
			} else {
				m.Err = msg.Err
			}
		} else if msg.Result != nil && msg.Result.Err != nil {
			m.Err = msg.Result.Err
		}
		m.RefreshTranscript()
		m.UpdateViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		m.ModelViewport.Width = styles.ContentWidth
		m.ModelViewport.Height = msg.Height - 15
		if m.ModelViewport.Height > 20 {
			m.ModelViewport.Height = 20
		}
		if m.ModelViewport.Height < 5 {
			m.ModelViewport.Height = 5
		}

		chatWidth := msg.Width - 2
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.RefreshTranscript()
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateThreadBar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	threads := m.Store.Snapshot()
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.ThreadsOpen = false
		return m, nil
	case "up", "k":
		if m.pageThreadCount() == 0 {
			return m, nil
		}
		m.ThreadSelectedIdx--
		if m.ThreadSelectedIdx < 0 {
			m.ThreadSelectedIdx = m.pageThreadCount() - 1
		}
		return m, nil
	case "down", "j":
		if m.pageThreadCount() == 0 {
			return m, nil
		}
		m.ThreadSelectedIdx++
		if m.ThreadSelectedIdx >= m.pageThreadCount() {
			m.ThreadSelectedIdx = 0
		}
		return m, nil
	case "left", "h":
		if m.ThreadPage > 0 {
			m.ThreadPage--
			m.ThreadSelectedIdx = 0
		}
		return m, nil
	case "right", "l":
		totalPages := (len(threads) + ThreadPageSize - 1) / ThreadPageSize
		if m.ThreadPage < totalPages-1 {
			m.ThreadPage++
			m.ThreadSelectedIdx = 0
		}
		return m, nil
	case "enter":
		if id, ok := m.selectedThreadID(); ok {
			_ = m.Orchestrator.SelectThread(id)
			m.ThreadsOpen = false
			m.RefreshTranscript()
			m.UpdateViewport()
		}
		return m, nil
	case "d", "x":
		if m.Loading {
			return m, nil
		}
		if id, ok := m.selectedThreadID(); ok {
			_ = m.Orchestrator.DeleteThread(id)
			if m.ThreadSelectedIdx > 0 {
				m.ThreadSelectedIdx--
			}
			m.RefreshTranscript()
			m.UpdateViewport()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateModelSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+b":
		m.ModelSelectorOpen = false
		return m, nil
	case "up", "k":
		m.SelectedModelIndex--
		if m.SelectedModelIndex < 0 {
			m.SelectedModelIndex = len(AvailableModels) - 1
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
		return m, nil
	case "down", "j":
		m.SelectedModelIndex++
		if m.SelectedModelIndex >= len(AvailableModels) {
			m.SelectedModelIndex = 0
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
		return m, nil
	case "enter":
		m.CurrentModel = AvailableModels[m.SelectedModelIndex]
		if err := m.Settings.SetModel(m.CurrentModel.ID); err != nil {
			m.Err = err
		}
		m.ModelSelectorOpen = false
		return m, nil
	}
	return m, nil
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.SettingsOpen = false
		m.KeyInput.Blur()
		return m, nil
	case "enter":
		key := strings.TrimSpace(m.KeyInput.Value())
		if key == "" {
			m.SettingsNote = "nothing saved"
			return m, nil
		}
		if err := m.Settings.SetAPIKey(key); err != nil {
			m.SettingsNote = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m.KeyInput.SetValue("")
		m.SettingsNote = "API key saved"
		return m, nil
	case "ctrl+d":
		if err := m.Settings.ClearAPIKey(); err != nil {
			m.SettingsNote = fmt.Sprintf("clear failed: %v", err)
			return m, nil
		}
		m.SettingsNote = "API key cleared"
		return m, nil
	}

	var cmd tea.Cmd
	m.KeyInput, cmd = m.KeyInput.Update(msg)
	return m, cmd
}

func (m *Model) pageThreadCount() int {
	threads := m.Store.Snapshot()
	start := m.ThreadPage * ThreadPageSize
	if start >= len(threads) {
		return 0
	}
	n := len(threads) - start
	if n > ThreadPageSize {
		n = ThreadPageSize
	}
	return n
}

func (m *Model) selectedThreadID() (string, bool) {
	threads := m.Store.Snapshot()
	idx := m.ThreadPage*ThreadPageSize + m.ThreadSelectedIdx
	if idx < 0 || idx >= len(threads) {
		return "", false
	}
	return threads[idx].ID, true
}

// submitCmd runs one full turn in a background command. Deltas are pushed
// through Program.Send so the transcript updates as text arrives; Enter
// always continues the active thread when one exists.
func (m *Model) submitCmd(input string) tea.Cmd {
	return func() tea.Msg {
		onDelta := func(delta string) {
			if m.Program != nil {
				m.Program.Send(StreamDeltaMsg{Delta: delta})
			}
		}
		res, err := m.Orchestrator.Submit(context.Background(), input, true, onDelta)
		return GenerationDoneMsg{Result: res, Err: err}
	}
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}
