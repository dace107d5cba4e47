// Package mcp exposes read-only NovaPress queries as MCP tools so an agent
// can inspect the pipeline, the live feed and causal graphs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/fallback"
	"novapress/internal/follow"
	"novapress/internal/format"
	"novapress/internal/logging"
	"novapress/internal/querycache"
)

// Deps are the services the tools read from.
type Deps struct {
	Client  *api.Client
	Cache   *querycache.Cache
	Follows *follow.Store
	Logger  *slog.Logger
	Version string
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	client  *api.Client
	cache   *querycache.Cache
	follows *follow.Store
	logger  *slog.Logger
}

// NewServer creates an MCP server with the NovaPress tools registered.
func NewServer(deps Deps) *Server {
	s := &Server{
		client:  deps.Client,
		cache:   deps.Cache,
		follows: deps.Follows,
		logger:  deps.Logger,
	}
	if s.logger == nil {
		s.logger = logging.New("mcp")
	}
	if s.cache == nil {
		s.cache = querycache.New(querycache.Options{
			Permanent: api.IsClientError,
			Logger:    s.logger,
		})
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "novapress", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "pipeline_status",
		Description: "Current state of the scraping and synthesis pipeline: running flag, step, progress and last result.",
	}, s.handlePipelineStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "live_syntheses",
		Description: "One page of the live syntheses feed for a time window, newest first.",
	}, s.handleLiveSyntheses)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "causal_graph",
		Description: "Causal graph of a synthesis, with an edge table or Graphviz DOT rendering.",
	}, s.handleCausalGraph)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "entity_profile",
		Description: "Causal profile of an entity: how often it appears as cause or effect, and its relations.",
	}, s.handleEntityProfile)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_followed",
		Description: "Stories the local reader follows, most recently followed first.",
	}, s.handleListFollowed)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "breaking_news",
		Description: "Breaking news ticker. Falls back to bundled demo items when the backend is unreachable.",
	}, s.handleBreakingNews)
}

// --- Tool input/output types ---

type pipelineStatusInput struct{}

type pipelineStatusOutput struct {
	IsRunning  bool                `json:"is_running"`
	Step       string              `json:"step,omitempty"`
	StepName   string              `json:"step_name,omitempty"`
	Progress   float64             `json:"progress"`
	LastRun    string              `json:"last_run,omitempty"`
	LastResult *api.PipelineResult `json:"last_result,omitempty"`
	Summary    string              `json:"summary"`
}

type liveSynthesesInput struct {
	Hours  int `json:"hours,omitempty" jsonschema:"time window in hours (0 = backend default)"`
	Limit  int `json:"limit,omitempty" jsonschema:"page size (default 20)"`
	Offset int `json:"offset,omitempty" jsonschema:"offset of the first item"`
}

type synthesisItem struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category,omitempty"`
	NarrativePhase string `json:"narrative_phase,omitempty"`
	NumSources     int    `json:"num_sources,omitempty"`
	Updated        string `json:"updated,omitempty"`
}

type liveSynthesesOutput struct {
	Syntheses  []synthesisItem `json:"syntheses"`
	Total      int             `json:"total"`
	HasMore    bool            `json:"has_more"`
	NextOffset int             `json:"next_offset"`
}

type causalGraphInput struct {
	SynthesisID string `json:"synthesis_id" jsonschema:"synthesis ID"`
	Format      string `json:"format,omitempty" jsonschema:"rendering: table (default), markdown or dot"`
}

type causalGraphOutput struct {
	Graph    *api.CausalGraph `json:"graph"`
	Rendered string           `json:"rendered"`
}

type entityProfileInput struct {
	Name string `json:"name" jsonschema:"entity name as shown in syntheses"`
}

type entityProfileOutput struct {
	Profile *api.EntityCausalProfile `json:"profile"`
}

type listFollowedInput struct{}

type followedItem struct {
	SynthesisID    string `json:"synthesis_id"`
	Title          string `json:"title"`
	Category       string `json:"category,omitempty"`
	NarrativePhase string `json:"narrative_phase,omitempty"`
	FollowedAt     string `json:"followed_at"`
	LastUpdated    string `json:"last_updated,omitempty"`
	NotifyOnUpdate bool   `json:"notify_on_update"`
}

type listFollowedOutput struct {
	Stories []followedItem `json:"stories"`
	Total   int            `json:"total"`
}

type breakingNewsInput struct{}

type breakingItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category,omitempty"`
	Published string `json:"published,omitempty"`
}

type breakingNewsOutput struct {
	Items []breakingItem `json:"items"`
	Demo  bool           `json:"demo"`
}

// --- Tool handlers ---

func (s *Server) handlePipelineStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ pipelineStatusInput) (*sdkmcp.CallToolResult, pipelineStatusOutput, error) {
	st, err := s.client.Admin().Status(ctx)
	if err != nil {
		return nil, pipelineStatusOutput{}, toolError("pipeline_status", err)
	}
	out := pipelineStatusOutput{
		IsRunning:  st.IsRunning,
		Step:       st.CurrentStep,
		Progress:   st.Progress,
		LastResult: st.LastResult,
		Summary:    statusSummary(st),
	}
	if st.CurrentStep != "" {
		out.StepName = display.Step(st.CurrentStep)
	}
	if st.LastRun != nil && !st.LastRun.IsZero() {
		out.LastRun = st.LastRun.Time().UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}

func statusSummary(st *api.PipelineStatus) string {
	if !st.IsRunning {
		if st.LastRun != nil && !st.LastRun.IsZero() {
			return "Inactif, dernière exécution " + display.Since(st.LastRun.Time())
		}
		return "Inactif"
	}
	parts := []string{"En cours"}
	if st.CurrentStep != "" {
		parts = append(parts, display.Step(st.CurrentStep))
	}
	parts = append(parts, format.Percent(st.Progress))
	return strings.Join(parts, " · ")
}

func (s *Server) handleLiveSyntheses(ctx context.Context, _ *sdkmcp.CallToolRequest, input liveSynthesesInput) (*sdkmcp.CallToolResult, liveSynthesesOutput, error) {
	if input.Hours < 0 || input.Limit < 0 || input.Offset < 0 {
		return nil, liveSynthesesOutput{}, fmt.Errorf("hours, limit and offset must be >= 0")
	}
	if input.Limit == 0 {
		input.Limit = 20
	}
	q := api.LiveQuery{Hours: input.Hours, Limit: input.Limit, Offset: input.Offset}
	key := querycache.Key("syntheses", "live", strconv.Itoa(q.Hours), strconv.Itoa(q.Limit), strconv.Itoa(q.Offset))
	page, err := querycache.Get(ctx, s.cache, key, func(ctx context.Context) (*api.LivePage, error) {
		return s.client.Syntheses().Live(ctx, q)
	})
	if err != nil {
		return nil, liveSynthesesOutput{}, toolError("live_syntheses", err)
	}

	out := liveSynthesesOutput{
		Syntheses:  make([]synthesisItem, 0, len(page.Data)),
		Total:      page.Total,
		HasMore:    page.HasMore,
		NextOffset: page.NextOffset,
	}
	for _, syn := range page.Data {
		item := synthesisItem{
			ID:             syn.ID,
			Title:          syn.Title,
			Category:       syn.Category,
			NarrativePhase: syn.NarrativePhase,
			NumSources:     syn.NumSources,
		}
		if t := syn.LastChange(); !t.IsZero() {
			item.Updated = display.Since(t.Time())
		}
		out.Syntheses = append(out.Syntheses, item)
	}
	return nil, out, nil
}

func (s *Server) handleCausalGraph(ctx context.Context, _ *sdkmcp.CallToolRequest, input causalGraphInput) (*sdkmcp.CallToolResult, causalGraphOutput, error) {
	if input.SynthesisID == "" {
		return nil, causalGraphOutput{}, fmt.Errorf("synthesis_id is required")
	}
	key := querycache.Key("causal", "graph", input.SynthesisID)
	g, err := querycache.Get(ctx, s.cache, key, func(ctx context.Context) (*api.CausalGraph, error) {
		return s.client.Causal().Graph(ctx, input.SynthesisID)
	})
	if err != nil {
		return nil, causalGraphOutput{}, toolError("causal_graph", err)
	}

	var rendered string
	switch strings.ToLower(input.Format) {
	case "", "table":
		rendered = format.CausalEdges(g, format.ASCII)
	case "markdown", "md":
		rendered = format.CausalEdges(g, format.Markdown)
	case "dot":
		rendered = format.CausalDOT(g)
	default:
		return nil, causalGraphOutput{}, fmt.Errorf("unknown format %q (want table, markdown or dot)", input.Format)
	}
	return nil, causalGraphOutput{Graph: g, Rendered: rendered}, nil
}

func (s *Server) handleEntityProfile(ctx context.Context, _ *sdkmcp.CallToolRequest, input entityProfileInput) (*sdkmcp.CallToolResult, entityProfileOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, entityProfileOutput{}, fmt.Errorf("name is required")
	}
	key := querycache.Key("causal", "entity", strings.ToLower(name))
	p, err := querycache.Get(ctx, s.cache, key, func(ctx context.Context) (*api.EntityCausalProfile, error) {
		return s.client.Causal().EntityProfile(ctx, name)
	})
	if err != nil {
		return nil, entityProfileOutput{}, toolError("entity_profile", err)
	}
	return nil, entityProfileOutput{Profile: p}, nil
}

func (s *Server) handleListFollowed(_ context.Context, _ *sdkmcp.CallToolRequest, _ listFollowedInput) (*sdkmcp.CallToolResult, listFollowedOutput, error) {
	out := listFollowedOutput{Stories: []followedItem{}}
	if s.follows == nil {
		return nil, out, nil
	}
	stories, err := s.follows.List()
	if err != nil {
		return nil, listFollowedOutput{}, fmt.Errorf("list_followed: %w", err)
	}
	for _, st := range stories {
		item := followedItem{
			SynthesisID:    st.SynthesisID,
			Title:          st.Title,
			Category:       st.Category,
			NarrativePhase: st.NarrativePhase,
			FollowedAt:     st.FollowedAt.UTC().Format(time.RFC3339),
			NotifyOnUpdate: st.NotifyOnUpdate,
		}
		if st.LastUpdated != nil {
			item.LastUpdated = st.LastUpdated.UTC().Format(time.RFC3339)
		}
		out.Stories = append(out.Stories, item)
	}
	out.Total = len(out.Stories)
	return nil, out, nil
}

func (s *Server) handleBreakingNews(ctx context.Context, _ *sdkmcp.CallToolRequest, _ breakingNewsInput) (*sdkmcp.CallToolResult, breakingNewsOutput, error) {
	t, err := fallback.BreakingOrDemo(ctx, s.client.Trending(), s.logger)
	if err != nil {
		return nil, breakingNewsOutput{}, toolError("breaking_news", err)
	}
	out := breakingNewsOutput{Items: make([]breakingItem, 0, len(t.Items)), Demo: t.Demo}
	for _, it := range t.Items {
		item := breakingItem{ID: it.ID, Title: it.Title, Category: it.Category}
		if it.CreatedAt != nil && !it.CreatedAt.IsZero() {
			item.Published = it.CreatedAt.Time().UTC().Format(time.RFC3339)
		}
		out.Items = append(out.Items, item)
	}
	return nil, out, nil
}

// toolError keeps the wrapped error and adds the reader-facing message.
func toolError(tool string, err error) error {
	return fmt.Errorf("%s: %s: %w", tool, display.UserMessage(err), err)
}
