package api

import (
	"context"
	"fmt"
	"net/url"
)

// CausalScope reads backend-computed causal graphs.
type CausalScope struct {
	client *Client
}

// Causal returns the causal scope.
func (c *Client) Causal() *CausalScope { return &CausalScope{client: c} }

func (s *CausalScope) synthesisPath(id, leaf string) string {
	return s.client.url("/api/causal/syntheses/"+url.PathEscape(id)+"/"+leaf, nil)
}

// Graph returns the causal graph of a synthesis.
func (s *CausalScope) Graph(ctx context.Context, synthesisID string) (*CausalGraph, error) {
	var g CausalGraph
	if err := s.client.doJSON(ctx, "GET", s.synthesisPath(synthesisID, "causal-graph"), "get causal graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Preview returns the compact causal teaser of a synthesis.
func (s *CausalScope) Preview(ctx context.Context, synthesisID string) (*CausalPreview, error) {
	var p CausalPreview
	if err := s.client.doJSON(ctx, "GET", s.synthesisPath(synthesisID, "causal-preview"), "get causal preview", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Historical returns the causal graph merged across related syntheses.
func (s *CausalScope) Historical(ctx context.Context, synthesisID string) (*CausalGraph, error) {
	var g CausalGraph
	if err := s.client.doJSON(ctx, "GET", s.synthesisPath(synthesisID, "historical-graph"), "get historical graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Predictions returns forecast consequences of a synthesis.
func (s *CausalScope) Predictions(ctx context.Context, synthesisID string) (*Predictions, error) {
	var p Predictions
	if err := s.client.doJSON(ctx, "GET", s.synthesisPath(synthesisID, "predictions"), "get predictions", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EntityProfile returns how an entity participates in causal relations.
func (s *CausalScope) EntityProfile(ctx context.Context, name string) (*EntityCausalProfile, error) {
	if name == "" {
		return nil, fmt.Errorf("get entity causal profile: name is required")
	}
	u := s.client.url("/api/causal/entities/"+url.PathEscape(name)+"/causal-profile", nil)
	var p EntityCausalProfile
	if err := s.client.doJSON(ctx, "GET", u, "get entity causal profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats returns global causal extraction counters.
func (s *CausalScope) Stats(ctx context.Context) (*CausalStats, error) {
	var st CausalStats
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/causal/stats", nil), "get causal stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
