package cli

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/loganmanery/vaultkeeper/internal/session"
)

// clearSequence resets the terminal, scrollback included on most emulators
const clearSequence = "\033c"

var writeClipboard = clipboard.WriteAll

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	secretStyle = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var _ session.Screen = (*termScreen)(nil)

// termScreen shows credentials on the console and wipes the terminal on Clear
type termScreen struct {
	con *Console
}

func (s *termScreen) Show(text string) {
	s.con.Println(boxStyle.Render(text))
}

func (s *termScreen) Clear() {
	s.con.Printf("%s", clearSequence)
}
