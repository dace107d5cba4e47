package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"novapress/internal/pipeline"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func runningState() pipeline.State {
	return pipeline.State{
		Connected: true,
		IsRunning: true,
		Step:      "scraping",
		Mode:      "SCRAPE",
		Progress:  40,
		Sources: map[string]pipeline.SourceState{
			"AFP":      {Status: pipeline.SourceSuccess, Articles: 7},
			"Le Monde": {Status: pipeline.SourceError, Error: "HTTP 503"},
			"Reuters":  {Status: pipeline.SourceScraping},
		},
	}
}

func TestView_SourcePanel(t *testing.T) {
	m := update(t, New(nil), stateMsg{state: runningState()})
	out := m.View()
	for _, want := range []string{
		"● connecté",
		"En cours · Collecte · Collecte des sources",
		"40%",
		"AFP",
		"7 articles",
		"✗ Le Monde",
		"HTTP 503",
		"◐ Reuters",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in view:\n%s", want, out)
		}
	}
}

func TestUpdate_StateWaitsForNext(t *testing.T) {
	ch := make(chan pipeline.State, 1)
	m := New(ch)
	_, cmd := m.Update(stateMsg{state: runningState()})
	if cmd == nil {
		t.Fatal("expected a command waiting for the next state")
	}
	ch <- pipeline.State{Step: "clustering"}
	msg := cmd()
	sm, ok := msg.(stateMsg)
	if !ok || sm.state.Step != "clustering" {
		t.Errorf("cmd() = %#v", msg)
	}
	close(ch)
	if _, ok := cmd().(monitorDoneMsg); !ok {
		t.Error("closed channel should yield monitorDoneMsg")
	}
}

func TestView_RenderPanicShowsRecovery(t *testing.T) {
	m := New(nil)
	m.beforeRender = func(pipeline.State) { panic("boom") }
	m = update(t, m, stateMsg{state: runningState()})

	out := m.View()
	if !strings.Contains(out, "L'affichage a rencontré une erreur.") || !strings.Contains(out, "boom") {
		t.Fatalf("expected recovery screen:\n%s", out)
	}

	// Keys other than r/h/q are ignored on the recovery screen.
	m = update(t, m, keyMsg("w"))
	if !strings.Contains(m.View(), "réessayer") {
		t.Error("recovery screen dismissed by an unrelated key")
	}

	m = update(t, m, keyMsg("h"))
	out = m.View()
	if !strings.Contains(out, "NovaPress · Accueil") {
		t.Fatalf("h should open the home screen:\n%s", out)
	}
	if !strings.Contains(out, "Sources suivies : 3") {
		t.Errorf("home screen lacks counts:\n%s", out)
	}
}

func TestRecovery_RetryRendersAgain(t *testing.T) {
	m := New(nil)
	fail := true
	m.beforeRender = func(pipeline.State) {
		if fail {
			panic("transient")
		}
	}
	m = update(t, m, stateMsg{state: runningState()})
	if !strings.Contains(m.View(), "transient") {
		t.Fatal("expected recovery screen")
	}
	fail = false
	m = update(t, m, keyMsg("r"))
	if out := m.View(); !strings.Contains(out, "NovaPress · Pipeline") {
		t.Errorf("retry should render the watch view:\n%s", out)
	}
}

func TestView_Lifecycle(t *testing.T) {
	m := update(t, New(nil), stateMsg{state: pipeline.State{Error: "LLM indisponible"}})
	if out := m.View(); !strings.Contains(out, "Échec") || !strings.Contains(out, "LLM indisponible") {
		t.Errorf("error state not shown:\n%s", out)
	}
	m = update(t, m, monitorDoneMsg{})
	if !strings.Contains(m.View(), "suivi terminé") {
		t.Error("closed monitor not shown")
	}
	if !strings.Contains(m.View(), "Aucune source") {
		t.Error("empty source panel placeholder missing")
	}
}

func TestUpdate_Quit(t *testing.T) {
	_, cmd := New(nil).Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
