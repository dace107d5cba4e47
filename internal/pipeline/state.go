package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"novapress/internal/api"
)

// Message types pushed on the pipeline socket.
const (
	TypeState        = "state"
	TypeProgress     = "progress"
	TypeSourceUpdate = "source_update"
	TypeCompleted    = "completed"
	TypeError        = "error"
	TypeStatus       = "status"
)

// Values of the status field of a TypeStatus message.
const (
	StatusCancelled = "cancelled"
	StatusStopping  = "stopping"
)

// SourceStatus is the scraping state of one news source.
type SourceStatus string

const (
	SourcePending  SourceStatus = "pending"
	SourceScraping SourceStatus = "scraping"
	SourceSuccess  SourceStatus = "success"
	SourceError    SourceStatus = "error"
	SourceTimeout  SourceStatus = "timeout"
	SourceSkipped  SourceStatus = "skipped"
	SourceEmpty    SourceStatus = "empty"
)

// SourceStatuses lists every status in display order.
var SourceStatuses = []SourceStatus{
	SourcePending, SourceScraping, SourceSuccess, SourceError,
	SourceTimeout, SourceSkipped, SourceEmpty,
}

// Valid reports whether s is a known status.
func (s SourceStatus) Valid() bool { return slices.Contains(SourceStatuses, s) }

// Failed reports whether s is one of the failure statuses.
func (s SourceStatus) Failed() bool { return s == SourceError || s == SourceTimeout }

// SourceState is the last known state of one source.
type SourceState struct {
	Status   SourceStatus `json:"status"`
	Articles int          `json:"articles,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Message is one decoded socket message. Fields not used by Type are zero.
type Message struct {
	Type        string                 `json:"type"`
	IsRunning   *bool                  `json:"is_running,omitempty"`
	CurrentStep string                 `json:"current_step,omitempty"`
	Step        string                 `json:"step,omitempty"`
	Progress    *float64               `json:"progress,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Mode        string                 `json:"mode,omitempty"`
	StartedAt   *api.Timestamp         `json:"started_at,omitempty"`
	Sources     map[string]SourceState `json:"sources,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Articles    *int                   `json:"articles,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Result      *api.PipelineResult    `json:"result,omitempty"`
}

// DecodeMessage parses a socket frame. Payloads nested under a "data" key are
// flattened so both envelope styles are accepted.
func DecodeMessage(raw []byte) (Message, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("decode pipeline message: %w", err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("decode pipeline message: missing type")
	}
	var m Message
	body := raw
	if len(env.Data) > 0 && bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("{")) {
		body = env.Data
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decode pipeline message %s: %w", env.Type, err)
	}
	m.Type = env.Type
	return m, m.Validate()
}

// Known reports whether the message type is one the monitor understands.
func (m Message) Known() bool {
	switch m.Type {
	case TypeState, TypeProgress, TypeSourceUpdate, TypeCompleted, TypeError, TypeStatus:
		return true
	}
	return false
}

// Validate checks the fields a known message type requires. Unknown types
// are not an error here; see Known.
func (m Message) Validate() error {
	switch m.Type {
	case TypeSourceUpdate:
		if m.Source == "" {
			return fmt.Errorf("source_update: missing source")
		}
		if !SourceStatus(m.Status).Valid() {
			return fmt.Errorf("source_update: unknown status %q", m.Status)
		}
	case TypeProgress:
		if m.Progress == nil {
			return fmt.Errorf("progress: missing progress")
		}
	case TypeStatus:
		if m.Status != StatusCancelled && m.Status != StatusStopping {
			return fmt.Errorf("status: unknown value %q", m.Status)
		}
	}
	return nil
}

// State is the monitor's view of the pipeline. Values are immutable once
// published: Apply returns a new State and never writes to the receiver's
// Sources map.
type State struct {
	Connected  bool
	IsRunning  bool
	Stopping   bool
	Cancelled  bool
	Step       string
	Progress   float64
	Message    string
	Mode       string
	StartedAt  time.Time
	Sources    map[string]SourceState
	LastResult *api.PipelineResult
	Error      string
}

// Apply returns the state after m. Invalid or unknown messages leave it
// unchanged.
func (s State) Apply(m Message) State {
	if !m.Known() || m.Validate() != nil {
		return s
	}
	switch m.Type {
	case TypeState:
		next := State{
			Connected:  s.Connected,
			Step:       m.CurrentStep,
			Message:    m.Message,
			Mode:       m.Mode,
			Sources:    maps.Clone(m.Sources),
			LastResult: m.Result,
			Error:      m.Error,
		}
		if m.IsRunning != nil {
			next.IsRunning = *m.IsRunning
		}
		if m.Progress != nil {
			next.Progress = clampProgress(*m.Progress)
		}
		if m.StartedAt != nil {
			next.StartedAt = m.StartedAt.Time()
		}
		if m.Status == StatusStopping {
			next.Stopping = true
		}
		return next

	case TypeProgress:
		s.IsRunning = true
		s.Cancelled = false
		s.Error = ""
		if step := m.Step; step != "" {
			s.Step = step
		} else if m.CurrentStep != "" {
			s.Step = m.CurrentStep
		}
		s.Progress = clampProgress(*m.Progress)
		s.Message = m.Message
		return s

	case TypeSourceUpdate:
		sources := make(map[string]SourceState, len(s.Sources)+1)
		maps.Copy(sources, s.Sources)
		src := sources[m.Source]
		src.Status = SourceStatus(m.Status)
		if m.Articles != nil {
			src.Articles = *m.Articles
		}
		src.Error = ""
		if src.Status.Failed() {
			src.Error = m.Error
		}
		sources[m.Source] = src
		s.Sources = sources
		return s

	case TypeCompleted:
		s.IsRunning = false
		s.Stopping = false
		s.Progress = 100
		s.Message = m.Message
		if m.Result != nil {
			s.LastResult = m.Result
		}
		return s

	case TypeError:
		s.IsRunning = false
		s.Stopping = false
		s.Error = m.Error
		if s.Error == "" {
			s.Error = m.Message
		}
		return s

	case TypeStatus:
		if m.Status == StatusCancelled {
			s.IsRunning = false
			s.Stopping = false
			s.Cancelled = true
		} else {
			s.Stopping = true
		}
		s.Message = m.Message
		return s
	}
	return s
}

// SourceNames returns the known sources sorted by name.
func (s State) SourceNames() []string {
	return slices.Sorted(maps.Keys(s.Sources))
}

// Counts tallies sources per status.
func (s State) Counts() map[SourceStatus]int {
	out := make(map[SourceStatus]int, len(SourceStatuses))
	for _, src := range s.Sources {
		out[src.Status]++
	}
	return out
}

func clampProgress(p float64) float64 {
	return min(max(p, 0), 100)
}
