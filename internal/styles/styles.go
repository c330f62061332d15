package styles

import "github.com/charmbracelet/lipgloss"

var (
	ContentWidth = 54
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#80CBC4")).
			Padding(0, 1)

	UserLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#90CAF9")).
			Bold(true).
			Padding(0, 1).
			MarginRight(1)

	UserMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E0E0E0"}).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#90CAF9"))

	AiLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#80CBC4")).
			Bold(true).
			Padding(0, 1).
			MarginRight(1)

	AiMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E0E0E0"}).
			PaddingTop(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#80CBC4"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF9A9A")).
			Bold(true)

	InterruptedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFCC80")).
				Bold(true)

	ElapsedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#545454")).
			Italic(true)

	InputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#80CBC4")).
			Padding(0, 1)

	WelcomeArtStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Bold(true)

	WelcomeSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#545454")).
				Italic(true)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#80CBC4")).
			Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#80CBC4")).
			Width(ContentWidth).
			MarginBottom(1)

	ModalItemStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Width(ContentWidth)

	ModalHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				PaddingLeft(1).
				Width(ContentWidth)

	ModalSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Width(ContentWidth).
				Background(lipgloss.Color("#3E5C5A")).
				Foreground(lipgloss.Color("#FFFFFF"))

	HintColor = lipgloss.Color("#545454")
)

var ProviderColors = map[string]string{
	"Anthropic": "#CE93D8",
	"OpenAI":    "#A5D6A7",
	"Google":    "#90CAF9",
	"DeepSeek":  "#80CBC4",
	"Meta":      "#81D4FA",
	"Mistral":   "#FFCC80",
}
