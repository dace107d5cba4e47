package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"novapress/internal/api"
	"novapress/internal/display"
)

const goodKey = "s3cret"

type fakeBackend struct {
	calls atomic.Int32
	down  atomic.Bool
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	if b.down.Load() {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail": "upstream down"}`))
		return
	}
	if r.Header.Get(api.AdminKeyHeader) != goodKey {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Invalid admin key"}`))
		return
	}
	switch r.URL.Path {
	case "/api/admin/status":
		w.Write([]byte(`{"is_running": true, "current_step": "scraping", "progress": 30}`))
	case "/api/admin/stats":
		w.Write([]byte(`{"total_articles": 120, "total_syntheses": 8}`))
	case "/api/admin/sources":
		w.Write([]byte(`{"sources": [{"name": "AFP", "enabled": true}]}`))
	case "/api/admin/pipeline/start":
		w.Write([]byte(`{"success": true}`))
	case "/api/admin/pipeline/stop":
		w.Write([]byte(`{"success": true, "message": "Arrêt en cours"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestConsole(t *testing.T, key string) (*Console, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{}
	server := httptest.NewServer(b)
	t.Cleanup(server.Close)
	client, err := api.New(server.URL, api.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return New(client, key, nil), b
}

func TestAuthenticate_LoadsPanels(t *testing.T) {
	c, b := newTestConsole(t, goodKey)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	p := c.Panels()
	if p == nil {
		t.Fatal("Panels() = nil after authentication")
	}
	if p.Status == nil || !p.Status.IsRunning || p.Stats.TotalArticles != 120 || p.Sources.Total != 1 {
		t.Errorf("panels = %+v", p)
	}
	if c.Message != "" {
		t.Errorf("Message = %q, want empty", c.Message)
	}
	if n := b.calls.Load(); n != 3 {
		t.Errorf("%d requests, want 3 (stats once, status, sources)", n)
	}
}

func TestAuthenticate_InvalidKey(t *testing.T) {
	c, _ := newTestConsole(t, "wrong")
	c.IsAuthenticated = true
	c.Stats = &api.AdminStats{TotalArticles: 1}

	err := c.Authenticate(context.Background())
	if !api.IsUnauthorized(err) {
		t.Fatalf("Authenticate = %v, want 401", err)
	}
	if c.IsAuthenticated {
		t.Error("still authenticated")
	}
	if c.Message != display.MsgInvalidKey {
		t.Errorf("Message = %q, want %q", c.Message, display.MsgInvalidKey)
	}
	if c.Panels() != nil || c.Stats != nil {
		t.Error("admin panels not cleared")
	}
}

func TestActions_MissingKeySendsNothing(t *testing.T) {
	c, b := newTestConsole(t, "")
	ctx := context.Background()

	if _, err := c.StartPipeline(ctx, api.ModeScrape, 10); !errors.Is(err, api.ErrMissingAdminKey) {
		t.Errorf("StartPipeline = %v", err)
	}
	if _, err := c.StopPipeline(ctx); !errors.Is(err, api.ErrMissingAdminKey) {
		t.Errorf("StopPipeline = %v", err)
	}
	if _, err := c.ResetLock(ctx); !errors.Is(err, api.ErrMissingAdminKey) {
		t.Errorf("ResetLock = %v", err)
	}
	if err := c.Authenticate(ctx); !errors.Is(err, api.ErrMissingAdminKey) {
		t.Errorf("Authenticate = %v", err)
	}
	if c.Message != display.MsgMissingKey {
		t.Errorf("Message = %q, want %q", c.Message, display.MsgMissingKey)
	}
	if n := b.calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestActions_Messages(t *testing.T) {
	c, _ := newTestConsole(t, goodKey)
	ctx := context.Background()
	if _, err := c.StartPipeline(ctx, api.ModeTopic, 0); err != nil {
		t.Fatal(err)
	}
	if c.Message != display.MsgStarted {
		t.Errorf("Message = %q, want %q", c.Message, display.MsgStarted)
	}
	if _, err := c.StopPipeline(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Message != "Arrêt en cours" {
		t.Errorf("Message = %q, want backend message", c.Message)
	}
}

func TestRefresh_RejectedKeyClearsPanels(t *testing.T) {
	c, _ := newTestConsole(t, goodKey)
	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatal(err)
	}
	c.SetKey("rotated")
	c.IsAuthenticated = true
	if err := c.Refresh(ctx); !api.IsUnauthorized(err) {
		t.Fatalf("Refresh = %v, want 401", err)
	}
	if c.IsAuthenticated || c.Panels() != nil {
		t.Error("console still authenticated after 401")
	}
}

func TestRefresh_ServerErrorKeepsAuthentication(t *testing.T) {
	c, b := newTestConsole(t, goodKey)
	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatal(err)
	}
	b.down.Store(true)
	if err := c.Refresh(ctx); err == nil {
		t.Fatal("expected error")
	}
	if !c.IsAuthenticated || c.Stats == nil {
		t.Error("a 502 must not end the session")
	}
	if c.Message != "upstream down" {
		t.Errorf("Message = %q", c.Message)
	}
}
