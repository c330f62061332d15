package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hopper/internal/styles"
)

func (m *Model) UpdateModelSelectorContent() {
	var items []string
	var lastProvider string
	for i, mdl := range AvailableModels {
		if mdl.Provider != lastProvider {
			if lastProvider != "" {
				items = append(items, "")
			}
			providerColor := "#545454"
			if c, ok := styles.ProviderColors[mdl.Provider]; ok {
				providerColor = c
			}
			header := styles.ModalHeaderStyle.
				Foreground(lipgloss.Color(providerColor)).
				Render(mdl.Provider)
			items = append(items, header)
			lastProvider = mdl.Provider
		}

		isSelected := i == m.SelectedModelIndex
		isCurrent := m.CurrentModel.ID == mdl.ID

		displayName := mdl.Name
		if isCurrent {
			displayName = "● " + displayName
		} else {
			displayName = "  " + displayName
		}

		var styledItem string
		if isSelected {
			styledItem = styles.ModalSelectedStyle.
				Width(styles.ContentWidth).
				Render(displayName)
		} else {
			style := styles.ModalItemStyle.Width(styles.ContentWidth)
			if isCurrent {
				style = style.Foreground(styles.CurrentTheme.Secondary)
			} else {
				style = style.Foreground(styles.CurrentTheme.TextPrimary)
			}
			styledItem = style.Render(displayName)
		}

		items = append(items, styledItem)
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	m.ModelViewport.SetContent(listContent)
}

func (m *Model) RenderModelSelector() string {
	title := styles.ModalTitleStyle.Render("Select Model")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.ModelViewport.View())

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: select • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderThreadBar() string {
	threads := m.Store.Snapshot()
	totalPages := (len(threads) + ThreadPageSize - 1) / ThreadPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Threads (%d) - Page %d/%d", len(threads), m.ThreadPage+1, totalPages))

	var body string
	if len(threads) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No threads yet"))
	} else {
		start := m.ThreadPage * ThreadPageSize
		end := start + ThreadPageSize
		if end > len(threads) {
			end = len(threads)
		}
		activeID := m.Orchestrator.ActiveThreadID()

		items := make([]string, 0, end-start)
		for i, t := range threads[start:end] {
			isSelected := i == m.ThreadSelectedIdx
			cursor := "  "
			if isSelected {
				cursor = "> "
			}
			marker := " "
			if t.ID == activeID {
				marker = "●"
			}
			timeStr := RelativeTime(t.UpdatedAt)
			prompt := ThreadPreview(t)
			availableWidth := styles.ContentWidth - 2 - len(cursor) - 2 - 1 - len(timeStr)
			prompt = TruncateRunes(prompt, availableWidth)

			itemContent := fmt.Sprintf("%s%s %s %s", cursor, marker, prompt, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if isSelected {
				items = append(items, styles.ModalSelectedStyle.Render(itemContent))
			} else {
				items = append(items, styles.ModalItemStyle.Render(itemContent))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • ←/→: page • Enter: open • d: delete • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderSettingsModal() string {
	title := styles.ModalTitleStyle.Render("Settings")

	status := "not set"
	if m.Settings.APIKey() != "" {
		status = "configured"
	}
	statusLine := styles.ModalItemStyle.Render(fmt.Sprintf("OpenRouter API key: %s", status))
	inputLine := styles.ModalItemStyle.Render(m.KeyInput.View())

	parts := []string{title, statusLine, "", inputLine}
	if m.SettingsNote != "" {
		parts = append(parts, "", styles.ModalItemStyle.Foreground(styles.CurrentTheme.Success).Render(m.SettingsNote))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Enter: save • Ctrl+D: clear stored key • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit"},
		{"Esc", "Stop generation / quit"},
		{"Ctrl+N", "New Thread"},
		{"Ctrl+H", "Browse Threads"},
		{"Ctrl+B", "Select Model"},
		{"Ctrl+E", "Settings (API key)"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"Ctrl+J", "Insert Newline"},
	}

	var items []string
	keyStyle := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Warning).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.TextPrimary)

	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, listContent)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderBottomBar() string {
	keyState := "no key"
	keyColor := styles.CurrentTheme.Error
	if m.Settings.APIKey() != "" {
		keyState = "key ok"
		keyColor = styles.CurrentTheme.Success
	}
	key := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(keyColor).
		Padding(0, 1).
		Render(keyState)

	modelName := TruncateRunes(m.CurrentModel.Name, 25)
	model := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Secondary).
		Render(modelName)

	threadCount := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.TextSecondary).
		Render(fmt.Sprintf("%d threads", m.Store.Len()))

	var state string
	if m.Loading {
		state = lipgloss.NewStyle().
			Foreground(styles.CurrentTheme.Warning).
			Render("generating (Esc to stop)")
	} else if m.Err != nil {
		state = lipgloss.NewStyle().
			Foreground(styles.CurrentTheme.Error).
			Render(TruncateRunes(m.Err.Error(), 60))
	}

	help := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.TextMuted).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, key, "  ", model, "  ", threadCount)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, state, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.CurrentTheme.Border).
		Padding(0, 1).
		Render(bar)
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭─────────────────────────────────────────────────────╮
 │                                                     │
 │   ██╗  ██╗ ██████╗ ██████╗ ██████╗ ███████╗██████╗  │
 │   ██║  ██║██╔═══██╗██╔══██╗██╔══██╗██╔════╝██╔══██╗ │
 │   ███████║██║   ██║██████╔╝██████╔╝█████╗  ██████╔╝ │
 │   ██╔══██║██║   ██║██╔═══╝ ██╔═══╝ ██╔══╝  ██╔══██╗ │
 │   ██║  ██║╚██████╔╝██║     ██║     ███████╗██║  ██║ │
 │   ╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚═╝     ╚══════╝╚═╝  ╚═╝ │
 │                                                     │
 ╰─────────────────────────────────────────────────────╯
`
	subtitle := "Describe a Grasshopper component and press Enter."

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Italic(true).Render(subtitle)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	if len(m.Messages) == 0 && !m.Loading {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}

	content := strings.Join(m.Messages, "\n\n")
	if m.Loading {
		var loadingParts []string
		loadingParts = append(loadingParts, styles.AiLabelStyle.Render("HOPPER"))

		// Streamed text is shown raw while in flight; markdown rendering
		// happens once the turn commits.
		if m.StreamBuf != "" {
			loadingParts = append(loadingParts, styles.AiMsgStyle.Render(m.StreamBuf))
		}

		loadingParts = append(loadingParts, fmt.Sprintf("%s Generating...", m.Spinner.View()))

		loadingMsg := strings.Join(loadingParts, "\n")
		if len(m.Messages) > 0 {
			content = content + "\n\n" + loadingMsg
		} else {
			content = loadingMsg
		}
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("HOPPER"),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch {
	case m.ThreadsOpen:
		modal = m.RenderThreadBar()
	case m.ModelSelectorOpen:
		modal = m.RenderModelSelector()
	case m.SettingsOpen:
		modal = m.RenderSettingsModal()
	case m.ShortcutsOpen:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}

	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
