package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/arin/cuecard/internal/session"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	aiStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	messageWrap = 72
)

// TranscriptPanel renders the last n messages of s inside a bordered box.
// n <= 0 shows every message.
func TranscriptPanel(s session.Session, n int) string {
	msgs := s.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Transcript") + " " + dimStyle.Render(shortID(s.ID)))
	for _, m := range msgs {
		b.WriteString("\n")
		b.WriteString(SenderLabel(m.Sender))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(m.Timestamp.Local().Format("15:04:05")))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(messageWrap).Render(m.Content))
	}
	return panelStyle.Render(b.String())
}

// SessionList renders one line per session, newest first as given.
func SessionList(sessions []session.Session) string {
	if len(sessions) == 0 {
		return dimStyle.Render("No saved sessions.")
	}
	var lines []string
	for _, s := range sessions {
		lines = append(lines, fmt.Sprintf("%s  %s  %s  %s",
			idStyle.Render(shortID(s.ID)),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			dimStyle.Render(fmt.Sprintf("%3d msgs", len(s.Messages))),
			s.Preview(50),
		))
	}
	return strings.Join(lines, "\n")
}

// SessionHeader is the title block above a full session dump.
func SessionHeader(s session.Session) string {
	return panelStyle.Render(fmt.Sprintf("%s %s\n%s",
		titleStyle.Render("Session"),
		s.ID,
		dimStyle.Render(fmt.Sprintf("started %s · updated %s · %d messages",
			s.CreatedAt.Local().Format(time.DateTime),
			s.LastUpdatedAt.Local().Format(time.DateTime),
			len(s.Messages))),
	))
}

// SenderLabel is the coloured label for a message author.
func SenderLabel(s session.Sender) string {
	if s == session.SenderUser {
		return userStyle.Render("You")
	}
	return aiStyle.Render("AI")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
