package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// SynthesisScope reads syntheses.
type SynthesisScope struct {
	client *Client
}

// Syntheses returns the synthesis scope.
func (c *Client) Syntheses() *SynthesisScope { return &SynthesisScope{client: c} }

// LiveQuery selects a page of recent syntheses. Zero values are omitted and
// the backend applies its defaults.
type LiveQuery struct {
	Hours  int
	Limit  int
	Offset int
}

func (q LiveQuery) values() url.Values {
	p := url.Values{}
	if q.Hours > 0 {
		p.Set("hours", strconv.Itoa(q.Hours))
	}
	if q.Limit > 0 {
		p.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		p.Set("offset", strconv.Itoa(q.Offset))
	}
	return p
}

// Live returns one page of syntheses published within the time window.
func (s *SynthesisScope) Live(ctx context.Context, q LiveQuery) (*LivePage, error) {
	var page LivePage
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/syntheses/live", q.values()), "list live syntheses", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns a single synthesis.
func (s *SynthesisScope) Get(ctx context.Context, id string) (*Synthesis, error) {
	if id == "" {
		return nil, fmt.Errorf("get synthesis: id is required")
	}
	var syn Synthesis
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/syntheses/"+url.PathEscape(id), nil), "get synthesis", nil, &syn); err != nil {
		return nil, err
	}
	return &syn, nil
}

// Persona returns the synthesis re-rendered in a persona's voice.
func (s *SynthesisScope) Persona(ctx context.Context, id, persona string) (*Synthesis, error) {
	if id == "" || persona == "" {
		return nil, fmt.Errorf("get persona synthesis: id and persona are required")
	}
	u := s.client.url("/api/syntheses/"+url.PathEscape(id)+"/persona/"+url.PathEscape(persona), nil)
	var syn Synthesis
	if err := s.client.doJSON(ctx, "GET", u, "get persona synthesis", nil, &syn); err != nil {
		return nil, err
	}
	return &syn, nil
}

// TrendingScope reads trending indicators.
type TrendingScope struct {
	client *Client
}

// Trending returns the trending scope.
func (c *Client) Trending() *TrendingScope { return &TrendingScope{client: c} }

// TopicInfo returns the topic a synthesis belongs to.
func (t *TrendingScope) TopicInfo(ctx context.Context, synthesisID string) (*TopicInfo, error) {
	u := t.client.url("/api/trending/syntheses/"+url.PathEscape(synthesisID)+"/topic-info", nil)
	var info TopicInfo
	if err := t.client.doJSON(ctx, "GET", u, "get topic info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LiveCount returns how many syntheses are currently live.
func (t *TrendingScope) LiveCount(ctx context.Context) (*LiveCount, error) {
	var lc LiveCount
	if err := t.client.doJSON(ctx, "GET", t.client.url("/api/trending/live-count", nil), "get live count", nil, &lc); err != nil {
		return nil, err
	}
	return &lc, nil
}

// CategoriesStats returns per-category counts.
func (t *TrendingScope) CategoriesStats(ctx context.Context) (*CategoriesStats, error) {
	var cs CategoriesStats
	if err := t.client.doJSON(ctx, "GET", t.client.url("/api/trending/categories-stats", nil), "get categories stats", nil, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// Breaking returns the breaking-news ticker.
func (t *TrendingScope) Breaking(ctx context.Context) (*BreakingTicker, error) {
	var bt BreakingTicker
	if err := t.client.doJSON(ctx, "GET", t.client.url("/api/trending/breaking", nil), "get breaking news", nil, &bt); err != nil {
		return nil, err
	}
	return &bt, nil
}
