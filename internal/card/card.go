// Package card renders the profile ID card of the signed-in user.
package card

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gameshelf/internal/auth"
	"gameshelf/internal/config"
)

// Title is the heading printed at the top of every card.
const Title = "Student ID Card"

const labelWidth = 13

// Card holds what a profile card shows.
type Card struct {
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	OwnerID       string `json:"owner_id"`
	StudentNumber string `json:"student_number,omitempty"`
	Major         string `json:"major,omitempty"`
	University    string `json:"university,omitempty"`
}

// Row is one labelled line of the card.
type Row struct {
	Label string
	Value string
}

// FromSession combines the session profile with the configured card fields.
func FromSession(s *auth.Session, cfg config.CardConfig) Card {
	return Card{
		Name:          s.Profile.Name,
		AvatarURL:     s.Profile.AvatarURL,
		OwnerID:       s.OwnerID,
		StudentNumber: strings.TrimSpace(cfg.StudentNumber),
		Major:         strings.TrimSpace(cfg.Major),
		University:    strings.TrimSpace(cfg.University),
	}
}

// Rows returns the labelled lines in display order. Empty fields are left out.
func (c Card) Rows() []Row {
	all := []Row{
		{"Name:", c.Name},
		{"Student No.:", c.StudentNumber},
		{"Major:", c.Major},
		{"University:", c.University},
		{"Avatar:", c.AvatarURL},
	}
	rows := make([]Row, 0, len(all))
	for _, r := range all {
		if r.Value != "" {
			rows = append(rows, r)
		}
	}
	return rows
}

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(1, 2)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(labelWidth)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// Render draws the card. width is the inner width; zero sizes it to fit.
func Render(c Card, width int) string {
	lines := []string{titleStyle.Render(Title), ""}
	for _, r := range c.Rows() {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.Label),
			valueStyle.Render(r.Value),
		))
	}
	lines = append(lines, "", footerStyle.Render("ID "+c.OwnerID))

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	frame := frameStyle
	if width > 0 {
		frame = frame.Width(width)
	}
	return frame.Render(body)
}
