// Package fallback serves bundled demo data when the backend cannot be
// reached, so the graph and ticker views still have something to show.
package fallback

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"novapress/internal/api"
)

//go:embed demo/graph.json
var demoGraph []byte

//go:embed demo/breaking.json
var demoBreaking []byte

// GraphFetcher loads the global intelligence graph.
type GraphFetcher interface {
	GlobalGraph(ctx context.Context) (*api.IntelligenceGraph, error)
}

// BreakingFetcher loads the breaking news ticker.
type BreakingFetcher interface {
	Breaking(ctx context.Context) (*api.BreakingTicker, error)
}

// GlobalGraphOrDemo returns the live graph, or the demo graph when the
// backend is unreachable. API errors and cancellation are returned as is.
func GlobalGraphOrDemo(ctx context.Context, f GraphFetcher, logger *slog.Logger) (*api.IntelligenceGraph, error) {
	g, err := f.GlobalGraph(ctx)
	if !useDemo(ctx, err) {
		return g, err
	}
	logger.WarnContext(ctx, "backend unreachable, serving demo graph", "error", err)
	return DemoGraph()
}

// BreakingOrDemo returns the live ticker, or the demo ticker when the
// backend is unreachable.
func BreakingOrDemo(ctx context.Context, f BreakingFetcher, logger *slog.Logger) (*api.BreakingTicker, error) {
	t, err := f.Breaking(ctx)
	if !useDemo(ctx, err) {
		return t, err
	}
	logger.WarnContext(ctx, "backend unreachable, serving demo ticker", "error", err)
	return DemoBreaking()
}

func useDemo(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() == nil && !api.IsAPIError(err)
}

// DemoGraph returns a fresh copy of the bundled graph.
func DemoGraph() (*api.IntelligenceGraph, error) {
	var g api.IntelligenceGraph
	if err := json.Unmarshal(demoGraph, &g); err != nil {
		return nil, fmt.Errorf("decode demo graph: %w", err)
	}
	g.Demo = true
	return &g, nil
}

// DemoBreaking returns a fresh copy of the bundled ticker.
func DemoBreaking() (*api.BreakingTicker, error) {
	var t api.BreakingTicker
	if err := json.Unmarshal(demoBreaking, &t); err != nil {
		return nil, fmt.Errorf("decode demo ticker: %w", err)
	}
	t.Demo = true
	return &t, nil
}
