package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, raw string) Message {
	t.Helper()
	m, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage(%s): %v", raw, err)
	}
	return m
}

func TestApply_StateSnapshotReplaces(t *testing.T) {
	prev := State{
		Connected: true,
		Error:     "old failure",
		Sources:   map[string]SourceState{"stale": {Status: SourceError}},
	}
	next := prev.Apply(decode(t, `{
		"type": "state",
		"is_running": true,
		"current_step": "scraping",
		"progress": 42,
		"mode": "SCRAPE",
		"started_at": "2025-03-01T10:00:00Z",
		"sources": {"Le Monde": {"status": "success", "articles": 12}}
	}`))

	if !next.Connected {
		t.Error("snapshot dropped the connection flag")
	}
	if !next.IsRunning || next.Step != "scraping" || next.Progress != 42 || next.Mode != "SCRAPE" {
		t.Errorf("snapshot = %+v", next)
	}
	if next.Error != "" {
		t.Errorf("Error = %q, want cleared", next.Error)
	}
	want := map[string]SourceState{"Le Monde": {Status: SourceSuccess, Articles: 12}}
	if diff := cmp.Diff(want, next.Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if next.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestApply_SourceUpdatePreservesOthers(t *testing.T) {
	prev := State{Sources: map[string]SourceState{
		"Le Monde":   {Status: SourceSuccess, Articles: 12},
		"Libération": {Status: SourceScraping},
	}}
	next := prev.Apply(decode(t, `{"type": "source_update", "source": "Libération", "status": "error", "error": "HTTP 503"}`))

	want := map[string]SourceState{
		"Le Monde":   {Status: SourceSuccess, Articles: 12},
		"Libération": {Status: SourceError, Error: "HTTP 503"},
	}
	if diff := cmp.Diff(want, next.Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if prev.Sources["Libération"].Status != SourceScraping {
		t.Error("Apply mutated the previous state's sources")
	}
}

func TestApply_SourceUpdateAddsUnknownSource(t *testing.T) {
	next := State{}.Apply(decode(t, `{"type": "source_update", "source": "AFP", "status": "scraping"}`))
	if got := next.Sources["AFP"].Status; got != SourceScraping {
		t.Errorf("status = %q, want scraping", got)
	}
}

func TestApply_SourceUpdateClearsErrorOnRecovery(t *testing.T) {
	prev := State{Sources: map[string]SourceState{"AFP": {Status: SourceTimeout, Error: "slow"}}}
	next := prev.Apply(decode(t, `{"type": "source_update", "source": "AFP", "status": "success", "articles": 3}`))
	if diff := cmp.Diff(SourceState{Status: SourceSuccess, Articles: 3}, next.Sources["AFP"]); diff != "" {
		t.Errorf("source (-want +got):\n%s", diff)
	}
}

func TestApply_Lifecycle(t *testing.T) {
	s := State{}
	s = s.Apply(decode(t, `{"type": "progress", "step": "clustering", "progress": 60, "message": "Regroupement"}`))
	if !s.IsRunning || s.Step != "clustering" || s.Progress != 60 {
		t.Fatalf("after progress: %+v", s)
	}
	s = s.Apply(decode(t, `{"type": "status", "status": "stopping"}`))
	if !s.Stopping || !s.IsRunning {
		t.Fatalf("after stopping: %+v", s)
	}
	s = s.Apply(decode(t, `{"type": "status", "status": "cancelled"}`))
	if s.IsRunning || s.Stopping || !s.Cancelled {
		t.Fatalf("after cancelled: %+v", s)
	}
	s = s.Apply(decode(t, `{"type": "progress", "progress": 5}`))
	s = s.Apply(decode(t, `{"type": "completed", "result": {"status": "success", "syntheses_created": 4}}`))
	if s.IsRunning || s.Progress != 100 || s.LastResult == nil || s.LastResult.SynthesesCreated != 4 {
		t.Fatalf("after completed: %+v", s)
	}
	s = s.Apply(decode(t, `{"type": "progress", "progress": 10}`))
	s = s.Apply(decode(t, `{"type": "error", "message": "LLM indisponible"}`))
	if s.IsRunning || s.Error != "LLM indisponible" {
		t.Fatalf("after error: %+v", s)
	}
}

func TestApply_ProgressIsClamped(t *testing.T) {
	s := State{}.Apply(decode(t, `{"type": "progress", "progress": 140}`))
	if s.Progress != 100 {
		t.Errorf("Progress = %v, want 100", s.Progress)
	}
}

func TestDecodeMessage_DataEnvelope(t *testing.T) {
	m := decode(t, `{"type": "source_update", "data": {"source": "AFP", "status": "empty"}}`)
	if m.Source != "AFP" || m.Status != "empty" {
		t.Errorf("message = %+v", m)
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       `{oops`,
		"no type":        `{"progress": 3}`,
		"bad status":     `{"type": "source_update", "source": "AFP", "status": "exploded"}`,
		"no source":      `{"type": "source_update", "status": "success"}`,
		"no progress":    `{"type": "progress"}`,
		"unknown status": `{"type": "status", "status": "paused"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApply_UnknownTypeIsNoop(t *testing.T) {
	prev := State{Step: "x", Progress: 10}
	m := decode(t, `{"type": "heartbeat"}`)
	if m.Known() {
		t.Fatal("heartbeat should be unknown")
	}
	if diff := cmp.Diff(prev, prev.Apply(m)); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
}

func TestCountsAndNames(t *testing.T) {
	s := State{Sources: map[string]SourceState{
		"b": {Status: SourceError},
		"a": {Status: SourceSuccess},
		"c": {Status: SourceSuccess},
	}}
	if diff := cmp.Diff([]string{"a", "b", "c"}, s.SourceNames()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	counts := s.Counts()
	if counts[SourceSuccess] != 2 || counts[SourceError] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
