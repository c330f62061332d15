package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"hopper/internal/models"
	"hopper/internal/styles"
)

func FindModelByID(id string) (models.AIModel, int, bool) {
	for i, mdl := range AvailableModels {
		if mdl.ID == id {
			return mdl, i, true
		}
	}
	return models.AIModel{}, 0, false
}

// SyncActiveFromStore points the selection at the most recent thread when
// nothing is selected yet, e.g. right after the durable load.
func (m *Model) SyncActiveFromStore() {
	if m.Orchestrator.ActiveThreadID() != "" {
		return
	}
	snapshot := m.Store.Snapshot()
	if len(snapshot) > 0 {
		_ = m.Orchestrator.SelectThread(snapshot[0].ID)
	}
	m.RefreshTranscript()
}

// RefreshTranscript rebuilds the rendered message list from the active
// thread's current snapshot.
func (m *Model) RefreshTranscript() {
	m.Messages = nil

	t, ok := m.Store.Get(m.Orchestrator.ActiveThreadID())
	if !ok {
		return
	}

	for i, msg := range t.Messages {
		m.Messages = append(m.Messages, FormatUserMessage(msg.UserMessage, m.Viewport.Width, i == 0))

		switch msg.State {
		case models.StateLoading:
			// The live streaming area renders this turn.
		case models.StateLoaded:
			body := m.renderMarkdown(msg.AIResponse)
			meta := styles.ElapsedStyle.Render(formatTurnMeta(msg))
			m.Messages = append(m.Messages, FormatAIMessage(body)+"\n"+meta)
		case models.StateInterrupted:
			body := m.renderMarkdown(msg.AIResponse)
			label := styles.InterruptedStyle.Render("■ interrupted")
			m.Messages = append(m.Messages, FormatAIMessage(body)+"\n"+label)
		case models.StateFailed:
			m.Messages = append(m.Messages, styles.ErrorStyle.Render("✗ generation failed"))
		}
	}
}

func (m *Model) renderMarkdown(content string) string {
	if m.Renderer == nil {
		return content
	}
	rendered, err := m.Renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func formatTurnMeta(msg models.Message) string {
	parts := []string{fmt.Sprintf("%.1fs", msg.TimeTaken.Seconds())}
	if u := msg.Usage; u != nil && u.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tok", u.TotalTokens))
		if u.Cost > 0 {
			parts = append(parts, fmt.Sprintf("$%.4f", u.Cost))
		}
	}
	return strings.Join(parts, " · ")
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	msg := styles.UserMsgStyle.Width(width - 4).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAIMessage(content string) string {
	label := styles.AiLabelStyle.Render("HOPPER")
	msg := styles.AiMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

func PromptPreview(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > PromptPreviewMax {
		return string(r[:PromptPreviewMax])
	}
	return s
}

// ThreadPreview returns the first user prompt of a thread, for listings.
func ThreadPreview(t models.Thread) string {
	if len(t.Messages) == 0 {
		return "(empty thread)"
	}
	p := PromptPreview(t.Messages[0].UserMessage)
	if p == "" {
		return "(no prompt)"
	}
	return p
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if d < 24*time.Hour {
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hr ago"
		}
		return fmt.Sprintf("%d hrs ago", hrs)
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	weeks := days / 7
	if weeks == 1 {
		return "1 week ago"
	}
	return fmt.Sprintf("%d weeks ago", weeks)
}

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 1
	}
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

func (m *Model) SyncModelViewportScroll() {
	const itemHeight = 1
	const headerHeight = 1

	var currentY int
	var lastProvider string
	for i, mdl := range AvailableModels {
		itemStartY := currentY

		if mdl.Provider != lastProvider {
			if lastProvider != "" {
				currentY++
				itemStartY++
			}
			itemStartY = currentY
			currentY += headerHeight
			lastProvider = mdl.Provider
		} else {
			itemStartY = currentY
		}

		if i == m.SelectedModelIndex {
			if currentY+itemHeight > m.ModelViewport.YOffset+m.ModelViewport.Height {
				m.ModelViewport.SetYOffset(currentY + itemHeight - m.ModelViewport.Height)
			}
			if itemStartY < m.ModelViewport.YOffset {
				m.ModelViewport.SetYOffset(itemStartY)
			}
			break
		}
		currentY += itemHeight
	}
}
