// Package tui is the terminal view of a running pipeline: a header with
// step and progress, one row per news source, and key help.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"novapress/internal/display"
	"novapress/internal/pipeline"
)

type screen int

const (
	screenWatch screen = iota
	screenHome
)

// stateMsg carries a published pipeline state into the update loop.
type stateMsg struct {
	state pipeline.State
}

// monitorDoneMsg is sent when the update channel closes.
type monitorDoneMsg struct{}

// fault records a recovered panic. It is shared by pointer so View, which
// works on a copy of the model, can report into later Updates.
type fault struct {
	reason string
}

// Model is the bubbletea model of the pipeline watch.
type Model struct {
	updates <-chan pipeline.State
	state   pipeline.State
	screen  screen
	done    bool
	keys    KeyMap
	help    help.Model
	bar     progress.Model
	width   int
	now     func() time.Time
	updated time.Time
	fault   *fault

	// beforeRender runs at the start of every watch render.
	beforeRender func(pipeline.State)
}

// New returns a Model reading states from updates.
func New(updates <-chan pipeline.State) Model {
	return Model{
		updates: updates,
		keys:    DefaultKeyMap,
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		now:     time.Now,
		fault:   &fault{},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForState(m.updates)
}

func waitForState(ch <-chan pipeline.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return monitorDoneMsg{}
		}
		return stateMsg{state: s}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			m.fault.reason = fmt.Sprint(r)
			model, cmd = m, nil
		}
	}()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil
	case stateMsg:
		m.state = msg.state
		m.updated = m.now()
		return m, waitForState(m.updates)
	case monitorDoneMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case m.fault.reason != "" && key.Matches(msg, m.keys.Retry):
		m.fault.reason = ""
		return m, nil
	case key.Matches(msg, m.keys.Home):
		m.fault.reason = ""
		m.screen = screenHome
		return m, nil
	case m.fault.reason != "":
		return m, nil
	case key.Matches(msg, m.keys.Watch):
		m.screen = screenWatch
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

// View implements tea.Model. A panic while rendering is turned into the
// recovery screen.
func (m Model) View() (out string) {
	if m.fault.reason != "" {
		return m.recoveryView()
	}
	defer func() {
		if r := recover(); r != nil {
			m.fault.reason = fmt.Sprint(r)
			out = m.recoveryView()
		}
	}()
	if m.screen == screenHome {
		return m.homeView()
	}
	return m.watchView()
}

func (m Model) recoveryView() string {
	body := strings.Join([]string{
		errorStyle.Render("L'affichage a rencontré une erreur."),
		"",
		dimStyle.Render(m.fault.reason),
		"",
		"r : réessayer    h : accueil    q : quitter",
	}, "\n")
	return recoveryStyle.Render(body) + "\n"
}

func (m Model) watchView() string {
	if m.beforeRender != nil {
		m.beforeRender(m.state)
	}
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.sourcesPanel())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) header() string {
	s := m.state
	conn := offlineStyle.Render("○ déconnecté")
	if s.Connected {
		conn = onlineStyle.Render("● connecté")
	}
	if m.done {
		conn = offlineStyle.Render("■ suivi terminé")
	}
	lines := []string{titleStyle.Render("NovaPress · Pipeline") + "  " + conn}

	var status string
	switch {
	case s.Stopping:
		status = warnStyle.Render("Arrêt en cours…")
	case s.IsRunning:
		status = "En cours"
	case s.Cancelled:
		status = warnStyle.Render("Annulé")
	case s.Error != "":
		status = errorStyle.Render("Échec")
	default:
		status = "Inactif"
	}
	if s.Step != "" {
		status += " · " + display.Step(s.Step)
	}
	if s.Mode != "" {
		status += " · " + display.Mode(s.Mode)
	}
	lines = append(lines, status)
	lines = append(lines, m.bar.ViewAs(s.Progress/100)+fmt.Sprintf(" %.0f%%", s.Progress))

	if s.Message != "" {
		lines = append(lines, s.Message)
	}
	if s.Error != "" {
		lines = append(lines, errorStyle.Render("Erreur : "+s.Error))
	}
	if r := s.LastResult; r != nil && !s.IsRunning {
		lines = append(lines, fmt.Sprintf("Dernier résultat : %d articles, %d synthèses",
			r.ArticlesScraped, r.SynthesesCreated))
	}
	if !m.updated.IsZero() {
		lines = append(lines, dimStyle.Render("Mis à jour "+display.RelTime(m.updated, m.now())))
	}
	return strings.Join(lines, "\n")
}

func (m Model) sourcesPanel() string {
	names := m.state.SourceNames()
	if len(names) == 0 {
		return panelStyle.Render(dimStyle.Render("Aucune source signalée pour l'instant"))
	}
	rows := make([]string, 0, len(names)+1)
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render("Sources"))
	for _, name := range names {
		src := m.state.Sources[name]
		row := fmt.Sprintf("%s %-24s %s", display.SourceGlyph(string(src.Status)), name, display.SourceStatus(string(src.Status)))
		if src.Articles > 0 {
			row += fmt.Sprintf(" · %d articles", src.Articles)
		}
		if src.Status.Failed() {
			if src.Error != "" {
				row += " · " + src.Error
			}
			row = errorStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) homeView() string {
	counts := m.state.Counts()
	var b strings.Builder
	b.WriteString(titleStyle.Render("NovaPress · Accueil"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Sources suivies : %d\n", len(m.state.Sources))
	for _, st := range pipeline.SourceStatuses {
		if n := counts[st]; n > 0 {
			fmt.Fprintf(&b, "  %s : %d\n", display.SourceStatusWithGlyph(string(st)), n)
		}
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}
