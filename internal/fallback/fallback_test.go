package fallback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"novapress/internal/api"
	"novapress/internal/logging"
)

func clientFor(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := api.New(server.URL, api.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func unreachableClient(t *testing.T) *api.Client {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	c, err := api.New(url)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGlobalGraphOrDemo_Live(t *testing.T) {
	c := clientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodes": [{"id": "n1", "label": "Live"}], "edges": []}`))
	})
	g, err := GlobalGraphOrDemo(context.Background(), c.Intelligence(), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if g.Demo || len(g.Nodes) != 1 {
		t.Errorf("graph = %+v, want live data", g)
	}
}

func TestGlobalGraphOrDemo_Unreachable(t *testing.T) {
	c := unreachableClient(t)
	g, err := GlobalGraphOrDemo(context.Background(), c.Intelligence(), logging.Discard())
	if err != nil {
		t.Fatalf("GlobalGraphOrDemo: %v", err)
	}
	if !g.Demo || len(g.Nodes) == 0 || len(g.Edges) == 0 {
		t.Errorf("graph = %+v, want demo data", g)
	}
}

func TestGlobalGraphOrDemo_APIErrorPassesThrough(t *testing.T) {
	c := clientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "neo4j down"}`))
	})
	_, err := GlobalGraphOrDemo(context.Background(), c.Intelligence(), logging.Discard())
	if !api.IsAPIError(err) {
		t.Errorf("err = %v, want API error", err)
	}
}

func TestBreakingOrDemo_Unreachable(t *testing.T) {
	c := unreachableClient(t)
	tk, err := BreakingOrDemo(context.Background(), c.Trending(), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if !tk.Demo || len(tk.Items) != 3 {
		t.Errorf("ticker = %+v", tk)
	}
}

func TestBreakingOrDemo_CancelledIsNotDemo(t *testing.T) {
	c := unreachableClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := BreakingOrDemo(ctx, c.Trending(), logging.Discard()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDemoCopiesAreIndependent(t *testing.T) {
	a, _ := DemoGraph()
	b, _ := DemoGraph()
	a.Nodes[0].Label = "changed"
	if b.Nodes[0].Label == "changed" {
		t.Error("demo graphs share storage")
	}
}
