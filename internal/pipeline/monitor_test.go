package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type countingObserver struct {
	mu         sync.Mutex
	reconnects int
	messages   map[string]int
}

func (o *countingObserver) Reconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconnects++
}

func (o *countingObserver) Message(msgType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.messages == nil {
		o.messages = map[string]int{}
	}
	o.messages[msgType]++
}

// newSocketServer serves each connection the frames of script[n] (the last
// script repeats) and then closes it.
func newSocketServer(t *testing.T, script ...[]string) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := int(conns.Add(1)) - 1
		frames := script[min(n, len(script)-1)]
		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(20 * time.Millisecond)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), &conns
}

func TestNewMonitor_URL(t *testing.T) {
	m, err := NewMonitor("ws://localhost:5000/")
	if err != nil {
		t.Fatal(err)
	}
	if m.URL() != "ws://localhost:5000/ws/pipeline" {
		t.Errorf("URL = %q", m.URL())
	}
	for _, bad := range []string{"http://localhost:5000", "ws://", "::"} {
		if _, err := NewMonitor(bad); err == nil {
			t.Errorf("NewMonitor(%q): expected error", bad)
		}
	}
}

func TestMonitor_AppliesMessages(t *testing.T) {
	base, _ := newSocketServer(t, []string{
		`{"type": "state", "is_running": true, "sources": {"AFP": {"status": "pending"}, "Le Monde": {"status": "success"}}}`,
		`not json`,
		`{"type": "heartbeat"}`,
		`{"type": "source_update", "source": "AFP", "status": "error", "error": "HTTP 500"}`,
	}, nil)

	obs := &countingObserver{}
	m, err := NewMonitor(base, WithReconnectDelay(time.Hour), WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan State, 32)
	m.OnState(func(s State) { got <- s })
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s.Sources["AFP"].Status != SourceError {
				continue
			}
			if s.Sources["Le Monde"].Status != SourceSuccess {
				t.Errorf("Le Monde = %+v, want preserved success", s.Sources["Le Monde"])
			}
			if s.Sources["AFP"].Error != "HTTP 500" {
				t.Errorf("AFP error = %q", s.Sources["AFP"].Error)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run = %v, want nil", err)
			}
			obs.mu.Lock()
			defer obs.mu.Unlock()
			if obs.messages["malformed"] != 1 || obs.messages["unknown"] != 1 || obs.messages[TypeSourceUpdate] != 1 {
				t.Errorf("observed messages = %v", obs.messages)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for source_update")
		}
	}
}

func TestMonitor_ReconnectsAfterFixedDelay(t *testing.T) {
	base, conns := newSocketServer(t, []string{`{"type": "progress", "progress": 10}`})
	obs := &countingObserver{}
	m, err := NewMonitor(base, WithReconnectDelay(10*time.Millisecond), WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for conns.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want >= 3", conns.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.reconnects < 2 {
		t.Errorf("reconnects = %d, want >= 2", obs.reconnects)
	}
}

func TestMonitor_NoPublishAfterCancel(t *testing.T) {
	m, err := NewMonitor("ws://127.0.0.1:1", WithReconnectDelay(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var published atomic.Int32
	m.OnState(func(State) { published.Add(1) })
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	m.update(ctx, func(s State) State {
		s.IsRunning = true
		return s
	})
	if published.Load() != 0 {
		t.Errorf("published %d states after cancel", published.Load())
	}
	if m.State().IsRunning {
		t.Error("state changed after cancel")
	}
}

func TestMonitor_UpdatesDropsOldest(t *testing.T) {
	m, err := NewMonitor("ws://localhost:5000")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := range updatesBuffer + 5 {
		p := float64(i)
		m.update(ctx, func(s State) State {
			s.Progress = p
			return s
		})
	}
	var last State
	for len(m.Updates()) > 0 {
		last = <-m.Updates()
	}
	if last.Progress != float64(updatesBuffer+4) {
		t.Errorf("last progress = %v, want %d", last.Progress, updatesBuffer+4)
	}
}
