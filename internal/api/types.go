package api

import "strings"

// --- Admin ---

// PipelineMode selects what a pipeline run does.
type PipelineMode string

const (
	ModeScrape     PipelineMode = "SCRAPE"
	ModeTopic      PipelineMode = "TOPIC"
	ModeSimulation PipelineMode = "SIMULATION"
)

// ParseMode accepts any casing of a known mode.
func ParseMode(s string) (PipelineMode, error) {
	m := PipelineMode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

// Valid reports whether m is one of the known modes.
func (m PipelineMode) Valid() bool {
	switch m {
	case ModeScrape, ModeTopic, ModeSimulation:
		return true
	}
	return false
}

// PipelineStatus is the response of GET /api/admin/status.
type PipelineStatus struct {
	IsRunning   bool            `json:"is_running"`
	CurrentStep string          `json:"current_step,omitempty"`
	Progress    float64         `json:"progress"`
	LastRun     *Timestamp      `json:"last_run,omitempty"`
	LastResult  *PipelineResult `json:"last_result,omitempty"`
}

// PipelineResult summarizes a finished run.
type PipelineResult struct {
	Status           string  `json:"status,omitempty"`
	Mode             string  `json:"mode,omitempty"`
	ArticlesScraped  int     `json:"articles_scraped,omitempty"`
	ClustersFound    int     `json:"clusters_found,omitempty"`
	SynthesesCreated int     `json:"syntheses_created,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// StartRequest is the body of POST /api/admin/pipeline/start.
type StartRequest struct {
	Mode                 PipelineMode `json:"mode"`
	MaxArticlesPerSource int          `json:"max_articles_per_source,omitempty"`
}

// ActionResponse is the generic acknowledgement of admin mutations.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// AdminStats is the response of GET /api/admin/stats.
type AdminStats struct {
	TotalArticles    int            `json:"total_articles"`
	TotalSyntheses   int            `json:"total_syntheses"`
	TotalSources     int            `json:"total_sources"`
	ActiveSources    int            `json:"active_sources"`
	SynthesesToday   int            `json:"syntheses_today"`
	TotalClusters    int            `json:"total_clusters,omitempty"`
	LastPipelineRun  *Timestamp     `json:"last_pipeline_run,omitempty"`
	ByCategory       map[string]int `json:"by_category,omitempty"`
}

// Source is one scraped news source as listed by GET /api/admin/sources.
type Source struct {
	Name         string     `json:"name"`
	URL          string     `json:"url,omitempty"`
	Category     string     `json:"category,omitempty"`
	Language     string     `json:"language,omitempty"`
	Enabled      bool       `json:"enabled"`
	LastStatus   string     `json:"last_status,omitempty"`
	LastScraped  *Timestamp `json:"last_scraped,omitempty"`
	ArticleCount int        `json:"article_count,omitempty"`
}

// SourceList wraps GET /api/admin/sources.
type SourceList struct {
	Sources []Source `json:"sources"`
	Total   int      `json:"total"`
}

// --- Syntheses ---

// Synthesis is a backend-generated summary of clustered articles.
type Synthesis struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Summary           string          `json:"summary,omitempty"`
	Body              string          `json:"body,omitempty"`
	Category          string          `json:"category,omitempty"`
	KeyPoints         []string        `json:"key_points,omitempty"`
	SourceArticles    []SourceArticle `json:"source_articles,omitempty"`
	NumSources        int             `json:"num_sources,omitempty"`
	ClusterID         string          `json:"cluster_id,omitempty"`
	NarrativePhase    string          `json:"narrative_phase,omitempty"`
	Persona           string          `json:"persona,omitempty"`
	TransparencyScore *float64        `json:"transparency_score,omitempty"`
	ComplianceScore   *float64        `json:"compliance_score,omitempty"`
	IsBreaking        bool            `json:"is_breaking,omitempty"`
	CreatedAt         *Timestamp      `json:"created_at,omitempty"`
	UpdatedAt         *Timestamp      `json:"updated_at,omitempty"`
}

// SourceArticle references one article a synthesis was built from.
type SourceArticle struct {
	Title     string     `json:"title"`
	URL       string     `json:"url,omitempty"`
	Source    string     `json:"source,omitempty"`
	Published *Timestamp `json:"published_at,omitempty"`
}

// LastChange returns the most recent of UpdatedAt and CreatedAt.
func (s Synthesis) LastChange() Timestamp {
	if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() {
		return *s.UpdatedAt
	}
	if s.CreatedAt != nil {
		return *s.CreatedAt
	}
	return Timestamp{}
}

// LivePage is one page of GET /api/syntheses/live.
type LivePage struct {
	Data       []Synthesis `json:"data"`
	Total      int         `json:"total"`
	HasMore    bool        `json:"hasMore"`
	NextOffset int         `json:"nextOffset"`
}

// --- Trending ---

// TopicInfo is GET /api/trending/syntheses/{id}/topic-info.
type TopicInfo struct {
	SynthesisID    string   `json:"synthesis_id"`
	TopicID        string   `json:"topic_id,omitempty"`
	TopicName      string   `json:"topic_name,omitempty"`
	RelatedCount   int      `json:"related_count"`
	NarrativePhase string   `json:"narrative_phase,omitempty"`
	Trend          string   `json:"trend,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
}

// LiveCount is GET /api/trending/live-count.
type LiveCount struct {
	Count int `json:"count"`
	Hours int `json:"hours,omitempty"`
}

// CategoryStat is one row of GET /api/trending/categories-stats.
type CategoryStat struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Trend    float64 `json:"trend,omitempty"`
}

// CategoriesStats wraps GET /api/trending/categories-stats.
type CategoriesStats struct {
	Categories []CategoryStat `json:"categories"`
	Total      int            `json:"total"`
}

// BreakingItem is one entry of the breaking-news ticker.
type BreakingItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category,omitempty"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// BreakingTicker wraps GET /api/trending/breaking. Demo is set locally when
// the ticker was served from bundled data.
type BreakingTicker struct {
	Items []BreakingItem `json:"items"`
	Demo  bool           `json:"-"`
}

// --- Causal ---

// CausalNode is an event, entity or decision in a causal graph.
type CausalNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	NodeType    string   `json:"node_type,omitempty"`
	Date        string   `json:"date,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	SynthesisID string   `json:"synthesis_id,omitempty"`
}

// CausalEdge is a directed cause -> effect relation.
type CausalEdge struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	RelationType string   `json:"relation_type"`
	Confidence   float64  `json:"confidence"`
	Evidence     []string `json:"evidence,omitempty"`
}

// CausalGraph is the backend-computed graph for one synthesis.
type CausalGraph struct {
	SynthesisID      string       `json:"synthesis_id"`
	Nodes            []CausalNode `json:"nodes"`
	Edges            []CausalEdge `json:"edges"`
	CentralEntity    string       `json:"central_entity,omitempty"`
	NarrativeFlow    string       `json:"narrative_flow,omitempty"`
	RelatedSyntheses []string     `json:"related_syntheses,omitempty"`
}

// Node returns the node with the given id.
func (g *CausalGraph) Node(id string) (CausalNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return CausalNode{}, false
}

// CausalPreview is the compact teaser shown on synthesis cards.
type CausalPreview struct {
	SynthesisID string   `json:"synthesis_id"`
	HasGraph    bool     `json:"has_graph"`
	NodeCount   int      `json:"node_count"`
	EdgeCount   int      `json:"edge_count"`
	TopCauses   []string `json:"top_causes,omitempty"`
	TopEffects  []string `json:"top_effects,omitempty"`
}

// Prediction is a backend-forecast consequence.
type Prediction struct {
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
	Timeframe   string  `json:"timeframe,omitempty"`
	Type        string  `json:"type,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
}

// Predictions wraps GET /api/causal/syntheses/{id}/predictions.
type Predictions struct {
	SynthesisID string       `json:"synthesis_id"`
	Predictions []Prediction `json:"predictions"`
}

// EntityCausalProfile is GET /api/causal/entities/{name}/causal-profile.
type EntityCausalProfile struct {
	Entity        string       `json:"entity"`
	EntityType    string       `json:"entity_type,omitempty"`
	AsCauseCount  int          `json:"as_cause_count"`
	AsEffectCount int          `json:"as_effect_count"`
	Relations     []CausalEdge `json:"relations,omitempty"`
	Syntheses     []string     `json:"syntheses,omitempty"`
}

// CausalStats is GET /api/causal/stats.
type CausalStats struct {
	TotalGraphs   int            `json:"total_graphs"`
	TotalNodes    int            `json:"total_nodes"`
	TotalEdges    int            `json:"total_edges"`
	RelationTypes map[string]int `json:"relation_types,omitempty"`
}

// --- Intelligence ---

// Topic is a long-running subject tracked across syntheses.
type Topic struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category,omitempty"`
	SynthesisCount int        `json:"synthesis_count"`
	EntityCount    int        `json:"entity_count,omitempty"`
	NarrativePhase string     `json:"narrative_phase,omitempty"`
	Hotness        float64    `json:"hotness,omitempty"`
	Keywords       []string   `json:"keywords,omitempty"`
	FirstSeen      *Timestamp `json:"first_seen,omitempty"`
	LastSeen       *Timestamp `json:"last_seen,omitempty"`
}

// TopicList wraps GET /api/intelligence/topics.
type TopicList struct {
	Topics []Topic `json:"topics"`
	Total  int     `json:"total"`
}

// Entity is a person, organization or place resolved by the backend.
type Entity struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	EntityType   string     `json:"entity_type,omitempty"`
	Description  string     `json:"description,omitempty"`
	Aliases      []string   `json:"aliases,omitempty"`
	MentionCount int        `json:"mention_count"`
	TopicCount   int        `json:"topic_count,omitempty"`
	FirstSeen    *Timestamp `json:"first_seen,omitempty"`
	LastSeen     *Timestamp `json:"last_seen,omitempty"`
}

// EntityList wraps GET /api/intelligence/entities.
type EntityList struct {
	Entities []Entity `json:"entities"`
	Total    int      `json:"total"`
}

// GraphNode is a vertex of the global intelligence graph.
type GraphNode struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Type   string  `json:"type,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// GraphEdge connects two intelligence graph nodes.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// IntelligenceGraph is GET /api/intelligence/graph. Demo is set locally when
// the graph was served from bundled data.
type IntelligenceGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Demo  bool        `json:"-"`
}

// IntelligenceStats is GET /api/intelligence/stats.
type IntelligenceStats struct {
	TotalTopics   int            `json:"total_topics"`
	ActiveTopics  int            `json:"active_topics"`
	TotalEntities int            `json:"total_entities"`
	ByEntityType  map[string]int `json:"by_entity_type,omitempty"`
	ByPhase       map[string]int `json:"by_phase,omitempty"`
}

// --- Auth ---

// User is the authenticated account.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name,omitempty"`
	Role        string         `json:"role,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   *Timestamp     `json:"created_at,omitempty"`
}

// Credentials is the body of POST /api/auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /api/auth/register.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// ProfileUpdate is the body of PUT /api/auth/profile. Nil fields are left
// unchanged by the backend.
type ProfileUpdate struct {
	Name        *string        `json:"name,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// --- Errors ---

// ErrorBody covers the error payload shapes the backend emits.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (b ErrorBody) text() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Error != "":
		return b.Error
	}
	return b.Message
}
