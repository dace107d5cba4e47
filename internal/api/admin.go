package api

import (
	"context"
	"fmt"
	"strings"
)

// AdminScope provides pipeline control and admin dashboards.
// Every call sends the admin key in the x-admin-key header.
type AdminScope struct {
	client *Client
	key    string
}

// Admin returns the admin scope using the key given by WithAdminKey.
func (c *Client) Admin() *AdminScope {
	return &AdminScope{client: c, key: c.adminKey}
}

// AdminWithKey returns the admin scope using an explicit key.
func (c *Client) AdminWithKey(key string) *AdminScope {
	return &AdminScope{client: c, key: strings.TrimSpace(key)}
}

// HasKey reports whether a key is configured.
func (a *AdminScope) HasKey() bool { return a.key != "" }

// Status returns the current pipeline state.
func (a *AdminScope) Status(ctx context.Context) (*PipelineStatus, error) {
	var st PipelineStatus
	if err := a.client.doJSON(ctx, "GET", a.client.url("/api/admin/status", nil), "get pipeline status", nil, &st, adminHeader(a.key)); err != nil {
		return nil, err
	}
	return &st, nil
}

// StartPipeline launches a pipeline run.
func (a *AdminScope) StartPipeline(ctx context.Context, req StartRequest) (*ActionResponse, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("start pipeline: %w: %q", ErrInvalidMode, req.Mode)
	}
	if req.MaxArticlesPerSource < 0 {
		return nil, fmt.Errorf("start pipeline: max_articles_per_source must be >= 0")
	}
	return a.mutate(ctx, "/api/admin/pipeline/start", "start pipeline", req)
}

// StopPipeline asks the backend to cancel the running pipeline.
func (a *AdminScope) StopPipeline(ctx context.Context) (*ActionResponse, error) {
	return a.mutate(ctx, "/api/admin/pipeline/stop", "stop pipeline", nil)
}

// ResetLock clears a stale pipeline lock left by a crashed run.
func (a *AdminScope) ResetLock(ctx context.Context) (*ActionResponse, error) {
	return a.mutate(ctx, "/api/admin/pipeline/reset-lock", "reset pipeline lock", nil)
}

func (a *AdminScope) mutate(ctx context.Context, path, operation string, body any) (*ActionResponse, error) {
	if a.key == "" {
		return nil, fmt.Errorf("%s: %w", operation, ErrMissingAdminKey)
	}
	var resp ActionResponse
	if err := a.client.doJSON(ctx, "POST", a.client.url(path, nil), operation, body, &resp, adminHeader(a.key)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the admin dashboard counters. A wrong or missing key makes
// the backend answer 401; see IsUnauthorized.
func (a *AdminScope) Stats(ctx context.Context) (*AdminStats, error) {
	var st AdminStats
	if err := a.client.doJSON(ctx, "GET", a.client.url("/api/admin/stats", nil), "get admin stats", nil, &st, adminHeader(a.key)); err != nil {
		return nil, err
	}
	return &st, nil
}

// Sources lists the configured news sources.
func (a *AdminScope) Sources(ctx context.Context) (*SourceList, error) {
	var list SourceList
	if err := a.client.doJSON(ctx, "GET", a.client.url("/api/admin/sources", nil), "list sources", nil, &list, adminHeader(a.key)); err != nil {
		return nil, err
	}
	if list.Total == 0 {
		list.Total = len(list.Sources)
	}
	return &list, nil
}
