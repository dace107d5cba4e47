package api

import (
	"context"
	"net/url"
	"strconv"
)

// IntelligenceScope reads topic and entity intelligence.
type IntelligenceScope struct {
	client *Client
}

// Intelligence returns the intelligence scope.
func (c *Client) Intelligence() *IntelligenceScope { return &IntelligenceScope{client: c} }

// TopicQuery filters the topic list.
type TopicQuery struct {
	Category string
	Phase    string
	Search   string
	Limit    int
	Offset   int
}

func (q TopicQuery) values() url.Values {
	p := url.Values{}
	setNonEmpty(p, "category", q.Category)
	setNonEmpty(p, "phase", q.Phase)
	setNonEmpty(p, "search", q.Search)
	setPositive(p, "limit", q.Limit)
	setPositive(p, "offset", q.Offset)
	return p
}

// EntityQuery filters the entity list.
type EntityQuery struct {
	EntityType string
	Search     string
	Limit      int
	Offset     int
}

func (q EntityQuery) values() url.Values {
	p := url.Values{}
	setNonEmpty(p, "entity_type", q.EntityType)
	setNonEmpty(p, "search", q.Search)
	setPositive(p, "limit", q.Limit)
	setPositive(p, "offset", q.Offset)
	return p
}

func setNonEmpty(p url.Values, k, v string) {
	if v != "" {
		p.Set(k, v)
	}
}

func setPositive(p url.Values, k string, v int) {
	if v > 0 {
		p.Set(k, strconv.Itoa(v))
	}
}

// Topics lists tracked topics.
func (s *IntelligenceScope) Topics(ctx context.Context, q TopicQuery) (*TopicList, error) {
	var list TopicList
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/topics", q.values()), "list topics", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Topic returns one topic.
func (s *IntelligenceScope) Topic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/topics/"+url.PathEscape(id), nil), "get topic", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Entities lists resolved entities.
func (s *IntelligenceScope) Entities(ctx context.Context, q EntityQuery) (*EntityList, error) {
	var list EntityList
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/entities", q.values()), "list entities", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Entity returns one entity.
func (s *IntelligenceScope) Entity(ctx context.Context, id string) (*Entity, error) {
	var e Entity
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/entities/"+url.PathEscape(id), nil), "get entity", nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GlobalGraph returns the topic/entity graph.
func (s *IntelligenceScope) GlobalGraph(ctx context.Context) (*IntelligenceGraph, error) {
	var g IntelligenceGraph
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/graph", nil), "get global graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Stats returns intelligence counters.
func (s *IntelligenceScope) Stats(ctx context.Context) (*IntelligenceStats, error) {
	var st IntelligenceStats
	if err := s.client.doJSON(ctx, "GET", s.client.url("/api/intelligence/stats", nil), "get intelligence stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
