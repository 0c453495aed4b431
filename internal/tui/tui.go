// Package tui provides the terminal interface for browsing a game collection.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gameshelf/backend"
	"gameshelf/internal/state"
	"gameshelf/internal/storage"
	"gameshelf/internal/views"
)

// Collection is the part of state.GameState the interface drives.
type Collection interface {
	View() state.GameView
	Observe(fn func(state.GameView)) func()
	SetSearch(text string)
	SetCategory(category string)
	BeginAdd()
	BeginEdit(game backend.Game)
	Save(ctx context.Context, game backend.Game) (string, error)
	Delete(ctx context.Context, id string) error
	ClearError()
}

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeForm
	ModeHelp
	ModeConfirmDelete
)

// form fields, in tab order
const (
	fieldTitle = iota
	fieldGenre
	fieldStatus
	fieldRating
	fieldCover
	fieldNotes
	fieldCount
)

// Options configures the browser.
type Options struct {
	// ProfileName is shown in the header.
	ProfileName string
	// Uploader stores the cover image picked in the form. Nil hides the field.
	Uploader storage.Uploader
	// OnSignOut runs when the user presses S. The browser quits afterwards.
	OnSignOut func() error
}

// Model represents the TUI state
type Model struct {
	games    Collection
	opts     Options
	ctx      context.Context
	observer *ChannelObserver
	stop     func()

	view   state.GameView
	cursor int

	mode   Mode
	search textinput.Model

	// form state
	editing *backend.Game
	focus   int
	title   textinput.Model
	cover   textinput.Model
	notes   textinput.Model
	genre   int
	status  int
	rating  int

	notice    string
	signedOut bool

	width  int
	height int

	headerStyle    lipgloss.Style
	chipStyle      lipgloss.Style
	activeChip     lipgloss.Style
	selectedStyle  lipgloss.Style
	dimStyle       lipgloss.Style
	errorStyle     lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
}

// savedMsg reports the outcome of a form submission
type savedMsg struct {
	err       error
	uploadErr error
}

type deletedMsg struct {
	err error
}

type signedOutMsg struct {
	err error
}

// New creates a browser over games.
func New(games Collection, opts Options) *Model {
	search := textinput.New()
	search.Placeholder = "Search titles..."
	search.CharLimit = 128

	newInput := func(placeholder string, limit int) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = limit
		return ti
	}

	return &Model{
		games:    games,
		opts:     opts,
		ctx:      context.Background(),
		observer: NewChannelObserver(),
		view:     games.View(),
		search:   search,
		title:    newInput("Title", 256),
		cover:    newInput("Path to a cover image (optional)", 1024),
		notes:    newInput("Notes", 1024),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		chipStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1),
		activeChip: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
}

// Init starts listening for state changes
func (m *Model) Init() tea.Cmd {
	m.stop = m.games.Observe(m.observer.OnView)
	// a change between New and Observe would otherwise be missed
	m.observer.OnView(m.games.View())
	return m.observer.waitForView()
}

// SignedOut reports whether the session ended through the sign-out key.
func (m *Model) SignedOut() bool {
	return m.signedOut
}

// Close stops listening for state changes. The browser calls it when it
// quits; callers call it after the program ends for any other reason.
func (m *Model) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.observer.Close()
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

func (m *Model) selected() (backend.Game, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Games) {
		return backend.Game{}, false
	}
	return m.view.Games[m.cursor], true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m.view = msg.view
		if m.cursor >= len(m.view.Games) {
			m.cursor = max(len(m.view.Games)-1, 0)
		}
		return m, m.observer.waitForView()

	case savedMsg:
		m.notice = ""
		if msg.uploadErr != nil {
			// the suggestion does not fit the status bar
			m.notice, _, _ = strings.Cut(msg.uploadErr.Error(), "\n")
		}
		if msg.err == nil {
			m.mode = ModeNormal
		}
		return m, nil

	case deletedMsg:
		m.mode = ModeNormal
		return m, nil

	case signedOutMsg:
		if msg.err != nil {
			m.notice = "sign out failed: " + msg.err.Error()
			return m, nil
		}
		m.signedOut = true
		return m.quit()

	case tea.KeyMsg:
		switch m.mode {
		case ModeSearch:
			return m.handleSearchMode(msg)
		case ModeForm:
			return m.handleFormMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.view.Games)-1 {
			m.cursor++
		}

	case "left", "h":
		m.games.SetCategory(m.shiftCategory(-1))
		m.view = m.games.View()

	case "right", "l":
		m.games.SetCategory(m.shiftCategory(1))
		m.view = m.games.View()

	case "/":
		m.mode = ModeSearch
		m.search.SetValue(m.view.Search)
		m.search.CursorEnd()
		m.search.Focus()
		return m, textinput.Blink

	case "a":
		m.games.BeginAdd()
		m.openForm(nil)
		return m, textinput.Blink

	case "e", "enter":
		if g, ok := m.selected(); ok {
			m.games.BeginEdit(g)
			m.openForm(&g)
			return m, textinput.Blink
		}

	case "d":
		if _, ok := m.selected(); ok {
			m.mode = ModeConfirmDelete
		}

	case "x":
		m.notice = ""
		m.games.ClearError()

	case "S":
		if m.opts.OnSignOut != nil {
			signOut := m.opts.OnSignOut
			return m, func() tea.Msg { return signedOutMsg{err: signOut()} }
		}

	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

// shiftCategory returns the selector value step positions away from the
// current one, wrapping around.
func (m *Model) shiftCategory(step int) string {
	opts := views.CategoryOptions()
	idx := 0
	for i, c := range opts {
		if c == m.view.Category {
			idx = i
			break
		}
	}
	idx = (idx + step + len(opts)) % len(opts)
	return opts[idx]
}

func (m *Model) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.search.Blur()
		m.mode = ModeNormal
		return m, nil
	case tea.KeyEsc:
		m.search.Reset()
		m.search.Blur()
		m.games.SetSearch("")
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.games.SetSearch(v)
	}
	return m, cmd
}

func (m *Model) openForm(g *backend.Game) {
	m.mode = ModeForm
	m.editing = g
	m.focus = fieldTitle
	m.notice = ""

	base := backend.Game{}.WithDefaults()
	if g != nil {
		base = *g
	}
	m.title.SetValue(base.Title)
	m.notes.SetValue(base.Notes)
	m.cover.Reset()
	m.genre = indexOf(backend.Genres, base.Genre)
	m.status = indexOf(backend.Statuses, base.Status)
	m.rating = base.Rating
	m.focusField()
}

func indexOf(opts []string, v string) int {
	for i, o := range opts {
		if strings.EqualFold(o, v) {
			return i
		}
	}
	return 0
}

func (m *Model) focusField() {
	m.title.Blur()
	m.cover.Blur()
	m.notes.Blur()
	switch m.focus {
	case fieldTitle:
		m.title.Focus()
	case fieldCover:
		m.cover.Focus()
	case fieldNotes:
		m.notes.Focus()
	}
}

func (m *Model) nextField(step int) {
	for {
		m.focus = (m.focus + step + fieldCount) % fieldCount
		if m.focus != fieldCover || m.opts.Uploader != nil {
			break
		}
	}
	m.focusField()
}

func (m *Model) handleFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.games.BeginAdd()
		return m, nil
	case tea.KeyEnter:
		return m, m.submitForm()
	case tea.KeyTab, tea.KeyDown:
		m.nextField(1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.nextField(-1)
		return m, nil
	case tea.KeyLeft, tea.KeyRight:
		step := 1
		if msg.Type == tea.KeyLeft {
			step = -1
		}
		switch m.focus {
		case fieldGenre:
			m.genre = (m.genre + step + len(backend.Genres)) % len(backend.Genres)
			return m, nil
		case fieldStatus:
			m.status = (m.status + step + len(backend.Statuses)) % len(backend.Statuses)
			return m, nil
		case fieldRating:
			m.rating = min(max(m.rating+step, 0), backend.MaxRating)
			return m, nil
		}
	case tea.KeyRunes:
		if m.focus == fieldRating && len(msg.Runes) == 1 {
			if n, err := strconv.Atoi(string(msg.Runes)); err == nil && n <= backend.MaxRating {
				m.rating = n
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldCover:
		m.cover, cmd = m.cover.Update(msg)
	case fieldNotes:
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

// submitForm uploads the cover, if any, then saves. A failed upload keeps
// the previous image URL and the save still goes ahead.
func (m *Model) submitForm() tea.Cmd {
	game := backend.Game{}.WithDefaults()
	if m.editing != nil {
		game = *m.editing
	}
	game.Title = strings.TrimSpace(m.title.Value())
	game.Genre = backend.Genres[m.genre]
	game.Status = backend.Statuses[m.status]
	game.Rating = m.rating
	game.Notes = strings.TrimSpace(m.notes.Value())

	coverPath := strings.TrimSpace(m.cover.Value())
	up := m.opts.Uploader
	games := m.games
	ctx := m.ctx

	return func() tea.Msg {
		var uploadErr error
		if up != nil && coverPath != "" {
			game.ImageURL, uploadErr = storage.UploadOrKeep(ctx, up, coverPath, game.ImageURL)
		}
		_, err := games.Save(ctx, game)
		return savedMsg{err: err, uploadErr: uploadErr}
	}
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		g, ok := m.selected()
		if !ok {
			m.mode = ModeNormal
			return m, nil
		}
		games := m.games
		ctx := m.ctx
		return m, func() tea.Msg { return deletedMsg{err: games.Delete(ctx, g.ID)} }
	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeForm:
		return m.centerDialog(m.renderForm())
	case ModeHelp:
		return m.centerDialog(m.dialogStyle.Render(helpText))
	case ModeConfirmDelete:
		title := ""
		if g, ok := m.selected(); ok {
			title = g.Title
		}
		return m.centerDialog(m.dialogStyle.Render(
			fmt.Sprintf("Delete %q?\n\n", title) + m.helpStyle.Render("y: yes  n: no"),
		))
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderChips())
	b.WriteString("\n")
	if m.mode == ModeSearch {
		b.WriteString(m.search.View())
	} else if m.view.Search != "" {
		b.WriteString(m.dimStyle.Render("Search: " + m.view.Search))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderList(m.height - 7))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderHeader() string {
	name := m.opts.ProfileName
	if name == "" {
		name = "My Games"
	} else {
		name += "'s games"
	}
	return m.headerStyle.Render(name) + m.dimStyle.Render(fmt.Sprintf("  %d of %d", len(m.view.Games), m.view.Total))
}

func (m *Model) renderChips() string {
	opts := views.CategoryOptions()
	chips := make([]string, 0, len(opts))
	for _, c := range opts {
		if c == m.view.Category {
			chips = append(chips, m.activeChip.Render(c))
		} else {
			chips = append(chips, m.chipStyle.Render(c))
		}
	}
	return lipgloss.NewStyle().Width(m.width).Render(strings.Join(chips, ""))
}

func (m *Model) renderList(rows int) string {
	if m.view.Loading {
		return m.dimStyle.Render("Loading...") + "\n"
	}
	if len(m.view.Games) == 0 {
		if m.view.Total == 0 {
			return "No games yet. Press a to add one.\n"
		}
		return "No games match the current filter.\n"
	}

	start := 0
	if rows > 0 && m.cursor >= rows {
		start = m.cursor - rows + 1
	}

	var b strings.Builder
	for i := start; i < len(m.view.Games); i++ {
		if rows > 0 && i-start >= rows {
			break
		}
		g := m.view.Games[i]
		cursor := " "
		title := g.Title
		if i == m.cursor {
			cursor = ">"
			title = m.selectedStyle.Render(title)
		}
		meta := m.dimStyle.Render(fmt.Sprintf("%s · %s", g.Genre, g.Status))
		b.WriteString(fmt.Sprintf("%s %s %s  %s\n", cursor, views.FormatRating(g.Rating), title, meta))
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	left := ""
	switch {
	case m.view.ErrorMessage != "":
		left = m.errorStyle.Render(m.view.ErrorMessage)
	case m.notice != "":
		left = m.errorStyle.Render(m.notice)
	}

	right := "q:quit  ?:help"
	padding := m.width - lipgloss.Width(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderForm() string {
	heading := "Add Game"
	if m.editing != nil {
		heading = "Edit: " + m.editing.Title
	}

	label := func(field int, name string) string {
		if m.focus == field {
			return m.selectedStyle.Render("> " + name)
		}
		return "  " + name
	}

	var b strings.Builder
	b.WriteString(heading + "\n\n")
	b.WriteString(label(fieldTitle, "Title   ") + " " + m.title.View() + "\n")
	b.WriteString(label(fieldGenre, "Genre   ") + " < " + backend.Genres[m.genre] + " >\n")
	b.WriteString(label(fieldStatus, "Status  ") + " < " + backend.Statuses[m.status] + " >\n")
	b.WriteString(label(fieldRating, "Rating  ") + " " + views.FormatRating(m.rating) + "\n")
	if m.opts.Uploader != nil {
		b.WriteString(label(fieldCover, "Cover   ") + " " + m.cover.View() + "\n")
	}
	b.WriteString(label(fieldNotes, "Notes   ") + " " + m.notes.View() + "\n")
	if m.view.ErrorMessage != "" {
		b.WriteString("\n" + m.errorStyle.Render(m.view.ErrorMessage) + "\n")
	}
	b.WriteString("\n" + m.helpStyle.Render("Tab: next field  ←/→: change  Enter: save  Esc: cancel"))
	return m.dialogStyle.Render(b.String())
}

const helpText = `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up
  h/l    Previous/next category

Actions:
  a      Add a game
  e      Edit selected game
  d      Delete game (with confirm)
  /      Search titles
  x      Dismiss the error message
  S      Sign out

General:
  ?      Show this help
  q      Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
