package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/pipeline"
)

const testAdminKey = "secret"

type fakeBackend struct {
	starts    atomic.Int32
	liveCalls atomic.Int32
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(api.AdminKeyHeader) != testAdminKey {
				w.WriteHeader(http.StatusUnauthorized)
				writeJSON(w, map[string]any{"detail": "invalid admin key"})
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/api/admin/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"is_running": true, "current_step": "scraping", "progress": 40})
	})
	mux.HandleFunc("/api/admin/stats", admin(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total_articles": 12345, "total_syntheses": 321, "total_sources": 10, "active_sources": 8})
	}))
	mux.HandleFunc("/api/admin/sources", admin(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"sources": []map[string]any{{"name": "Le Monde", "enabled": true, "last_status": "error"}},
			"total":   1,
		})
	}))
	mux.HandleFunc("/api/admin/pipeline/start", admin(func(w http.ResponseWriter, r *http.Request) {
		b.starts.Add(1)
		writeJSON(w, map[string]any{"success": true, "run_id": "run-7"})
	}))
	mux.HandleFunc("/api/syntheses/live", func(w http.ResponseWriter, r *http.Request) {
		b.liveCalls.Add(1)
		if r.URL.Query().Get("offset") == "" {
			writeJSON(w, map[string]any{
				"data":  []map[string]any{{"id": "s1", "title": "Sommet climat"}, {"id": "s2", "title": "Grève SNCF"}},
				"total": 3, "hasMore": true, "nextOffset": 2,
			})
			return
		}
		writeJSON(w, map[string]any{
			"data":  []map[string]any{{"id": "s3", "title": "Élections régionales"}},
			"total": 3, "hasMore": false, "nextOffset": 3,
		})
	})
	mux.HandleFunc("/api/syntheses/s1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "s1", "title": "Sommet climat", "category": "ENVIRONMENT"})
	})
	mux.HandleFunc("/api/causal/syntheses/s1/causal-graph", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"synthesis_id": "s1",
			"nodes":        []map[string]any{{"id": "a", "label": "Sécheresse"}, {"id": "b", "label": "Prix"}},
			"edges":        []map[string]any{{"source": "a", "target": "b", "relation_type": "causes", "confidence": 0.9}},
		})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"access_token": "opaque", "refresh_token": "r1",
			"user": map[string]any{"id": "u1", "email": creds.Email, "name": "Léa"},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type harness struct {
	t       *testing.T
	apiURL  string
	cfgPath string
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("NOVAPRESS_ADMIN_KEY", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("NEXT_PUBLIC_WS_URL", "")
	b := &fakeBackend{}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "data_dir: " + filepath.Join(dir, "data") + "\ncache:\n  retries: 0\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, apiURL: srv.URL, cfgPath: cfgPath, backend: b}
}

// run executes one CLI invocation and returns stdout and stderr.
func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", h.cfgPath, "--api-url", h.apiURL, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default between invocations.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestAdminStart_MissingKeySendsNothing(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "admin", "start", "--mode", "SCRAPE")
	if !errors.Is(err, api.ErrMissingAdminKey) {
		t.Fatalf("err = %v, want ErrMissingAdminKey", err)
	}
	if !strings.Contains(err.Error(), display.MsgMissingKey) {
		t.Errorf("error %q lacks %q", err, display.MsgMissingKey)
	}
	if n := h.backend.starts.Load(); n != 0 {
		t.Errorf("start requests = %d, want 0", n)
	}
}

func TestAdminStart_WithKey(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "--admin-key", testAdminKey, "admin", "start", "--mode", "topic", "--max-articles", "5")
	if err != nil {
		t.Fatalf("admin start: %v", err)
	}
	if !strings.Contains(out, display.MsgStarted) || !strings.Contains(out, "run-7") {
		t.Errorf("output = %q", out)
	}
	if n := h.backend.starts.Load(); n != 1 {
		t.Errorf("start requests = %d, want 1", n)
	}
}

func TestAdminStart_InvalidMode(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "--admin-key", testAdminKey, "admin", "start", "--mode", "TURBO")
	if err == nil || !strings.Contains(err.Error(), display.MsgInvalidMode) {
		t.Fatalf("err = %v, want invalid mode", err)
	}
	if n := h.backend.starts.Load(); n != 0 {
		t.Errorf("start requests = %d, want 0", n)
	}
}

func TestAdminStats_InvalidKey(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "--admin-key", "wrong", "admin", "stats")
	if err == nil || !strings.Contains(err.Error(), display.MsgInvalidKey) {
		t.Fatalf("err = %v, want %q", err, display.MsgInvalidKey)
	}
	if out != "" {
		t.Errorf("panels printed without a valid key: %q", out)
	}
}

func TestAdminStats_ValidKey(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "--admin-key", testAdminKey, "admin", "stats")
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	for _, want := range []string{"12 345", "8 / 10"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestAdminSources_ShowsErrorGlyph(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "--admin-key", testAdminKey, "admin", "sources")
	if err != nil {
		t.Fatalf("admin sources: %v", err)
	}
	if !strings.Contains(out, display.SourceStatusWithGlyph("error")) {
		t.Errorf("output lacks error indicator:\n%s", out)
	}
}

func TestAdminStatus(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "admin", "status")
	if err != nil {
		t.Fatalf("admin status: %v", err)
	}
	if !strings.Contains(out, "En cours") || !strings.Contains(out, "40%") {
		t.Errorf("output = %q", out)
	}
}

func TestLive_AllStopsWhenExhausted(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "-o", "json", "live", "--all", "--limit", "2")
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	var page api.LivePage
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	var ids []string
	for _, s := range page.Data {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"s1", "s2", "s3"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if page.HasMore {
		t.Error("HasMore = true after the last page")
	}
	if n := h.backend.liveCalls.Load(); n != 2 {
		t.Errorf("live requests = %d, want 2", n)
	}
}

func TestLive_SinglePage(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "live", "--limit", "2")
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if !strings.Contains(out, "Sommet climat") || strings.Contains(out, "Élections") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "2 / 3") {
		t.Errorf("footer missing:\n%s", out)
	}
}

func TestCausalGraph_DOT(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "causal", "graph", "s1", "--dot")
	if err != nil {
		t.Fatalf("causal graph: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, "Sécheresse") {
		t.Errorf("output = %q", out)
	}
}

func TestCausalGraph_NotFound(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "causal", "graph", "missing")
	if !api.IsNotFound(err) {
		t.Fatalf("err = %v, want 404", err)
	}
	if !strings.Contains(err.Error(), display.MsgNotFound) {
		t.Errorf("error %q lacks %q", err, display.MsgNotFound)
	}
}

func TestFollow_AddListRemove(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("", "follow", "add", "s1")
	if err != nil {
		t.Fatalf("follow add: %v", err)
	}
	if !strings.Contains(out, "Sommet climat") {
		t.Errorf("add output = %q", out)
	}

	out, _, err = h.run("", "-o", "json", "follow", "list")
	if err != nil {
		t.Fatalf("follow list: %v", err)
	}
	var stories []struct {
		SynthesisID string `json:"synthesisId"`
		Category    string `json:"category"`
	}
	if err := json.Unmarshal([]byte(out), &stories); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(stories) != 1 || stories[0].SynthesisID != "s1" || stories[0].Category != "ENVIRONMENT" {
		t.Fatalf("stories = %+v", stories)
	}

	if _, _, err := h.run("", "follow", "remove", "s1"); err != nil {
		t.Fatalf("follow remove: %v", err)
	}
	out, _, err = h.run("", "follow", "list")
	if err != nil {
		t.Fatalf("follow list: %v", err)
	}
	if !strings.Contains(out, "Aucune histoire suivie") {
		t.Errorf("list after remove = %q", out)
	}
	if _, _, err := h.run("", "follow", "remove", "s1"); err == nil {
		t.Error("removing an unfollowed story succeeded")
	}
}

func TestAuth_LoginProfileLogout(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("pw\n", "auth", "login", "--email", "lea@example.fr")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Léa") {
		t.Errorf("login output = %q", out)
	}

	out, _, err = h.run("", "auth", "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Déconnecté") {
		t.Errorf("logout output = %q", out)
	}

	_, _, err = h.run("", "auth", "profile")
	if err == nil || err.Error() != display.MsgNotLoggedIn {
		t.Errorf("profile after logout: err = %v", err)
	}
}

func TestAuth_LoginRejected(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "auth", "login", "--email", "lea@example.fr", "--password", "nope")
	if !api.IsUnauthorized(err) {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestTrendingBreaking_DemoWhenUnreachable(t *testing.T) {
	h := newHarness(t)
	down := httptest.NewServer(http.NotFoundHandler())
	h.apiURL = down.URL
	down.Close()

	out, stderr, err := h.run("", "trending", "breaking")
	if err != nil {
		t.Fatalf("breaking: %v", err)
	}
	if !strings.Contains(stderr, display.MsgDemoData) {
		t.Errorf("stderr lacks demo notice: %q", stderr)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("no demo items printed")
	}
}

func TestStateChanges_SourceUpdate(t *testing.T) {
	prev := pipeline.State{
		Connected: true,
		IsRunning: true,
		Step:      "scraping",
		Sources: map[string]pipeline.SourceState{
			"lemonde":    {Status: pipeline.SourceSuccess, Articles: 12},
			"liberation": {Status: pipeline.SourceScraping},
		},
	}
	next := prev.Apply(pipeline.Message{Type: pipeline.TypeSourceUpdate, Source: "liberation", Status: "error", Error: "timeout"})

	lines := stateChanges(prev, next)
	if len(lines) != 1 {
		t.Fatalf("lines = %q, want one source line", lines)
	}
	if !strings.Contains(lines[0], "liberation") || !strings.Contains(lines[0], display.SourceGlyph("error")) {
		t.Errorf("line = %q", lines[0])
	}
}

func TestStateChanges_Completion(t *testing.T) {
	prev := pipeline.State{Connected: true, IsRunning: true, Progress: 90}
	next := prev
	next.IsRunning = false
	next.LastResult = &api.PipelineResult{SynthesesCreated: 4}

	lines := stateChanges(prev, next)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "✓ terminé") {
		t.Errorf("lines = %q", lines)
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	boom := &cobra.Command{
		Use: "boom",
		RunE: func(*cobra.Command, []string) error {
			panic("render failed")
		},
	}
	rootCmd.AddCommand(boom)
	t.Cleanup(func() { rootCmd.RemoveCommand(boom) })
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--log-level", "error", "boom"})

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	if code := run(context.Background(), &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	for _, want := range []string{"réessayer", "accueil"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("recovery screen lacks %q:\n%s", want, stderr.String())
		}
	}
}
