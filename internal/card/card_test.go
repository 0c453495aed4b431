package card

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"gameshelf/internal/auth"
	"gameshelf/internal/config"
)

func testSession() *auth.Session {
	return &auth.Session{
		OwnerID: "3b0c2f4e-0000-5000-8000-000000000001",
		Profile: auth.Profile{Name: "Alan", AvatarURL: "https://example.com/alan.png"},
	}
}

func TestFromSession(t *testing.T) {
	c := FromSession(testSession(), config.CardConfig{
		StudentNumber: " 23010048 ",
		Major:         "Informatics",
		University:    "STMIK",
	})

	if c.Name != "Alan" || c.OwnerID != testSession().OwnerID {
		t.Errorf("card = %+v", c)
	}
	if c.StudentNumber != "23010048" {
		t.Errorf("student number should be trimmed, got %q", c.StudentNumber)
	}
}

func TestRowsSkipEmptyFields(t *testing.T) {
	c := FromSession(testSession(), config.CardConfig{Major: "Informatics"})

	var labels []string
	for _, r := range c.Rows() {
		labels = append(labels, r.Label)
	}
	got := strings.Join(labels, ",")
	if got != "Name:,Major:,Avatar:" {
		t.Errorf("labels = %s", got)
	}
}

func TestRender(t *testing.T) {
	c := FromSession(testSession(), config.CardConfig{
		StudentNumber: "23010048",
		Major:         "Informatics",
		University:    "STMIK",
	})

	out := Render(c, 0)
	for _, want := range []string{Title, "Name:", "Alan", "Student No.:", "23010048", "Informatics", "STMIK", "ID " + c.OwnerID} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in card:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "╭") {
		t.Error("expected a rounded border")
	}
}

func TestRenderFixedWidth(t *testing.T) {
	out := Render(FromSession(testSession(), config.CardConfig{}), 60)

	lines := strings.Split(out, "\n")
	want := lipgloss.Width(lines[0])
	if want < 60 {
		t.Fatalf("card width = %d, want at least 60", want)
	}
	for _, line := range lines {
		if w := lipgloss.Width(line); w != want {
			t.Fatalf("line width = %d, want %d: %q", w, want, line)
		}
	}
}
