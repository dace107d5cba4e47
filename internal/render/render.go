// Package render turns syntheses into Markdown and renders that Markdown
// for the terminal through glamour.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/format"
)

// DefaultWidth is the word-wrap width used when the terminal size is unknown.
const DefaultWidth = 80

// Renderer renders Markdown for a terminal.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer returns a Renderer wrapping at width. style is a glamour
// style name ("dark", "light", "notty", ...); "" or "auto" picks one from
// the terminal background.
func NewRenderer(width int, style string) (*Renderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Renderer{term: term}, nil
}

// Render renders Markdown.
func (r *Renderer) Render(markdown string) (string, error) {
	out, err := r.term.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// Synthesis renders a synthesis as it would appear in the reader.
func (r *Renderer) Synthesis(s *api.Synthesis, now time.Time) (string, error) {
	return r.Render(SynthesisMarkdown(s, now))
}

// SynthesisMarkdown lays out a synthesis as Markdown.
func SynthesisMarkdown(s *api.Synthesis, now time.Time) string {
	var b strings.Builder
	if s.IsBreaking {
		b.WriteString("**DERNIÈRE MINUTE**\n\n")
	}
	fmt.Fprintf(&b, "# %s\n\n", s.Title)

	var meta []string
	if s.Category != "" {
		meta = append(meta, display.Category(s.Category))
	}
	if s.NarrativePhase != "" {
		meta = append(meta, "Phase : "+display.Phase(s.NarrativePhase))
	}
	if n := sourceCount(s); n > 0 {
		meta = append(meta, fmt.Sprintf("%d sources", n))
	}
	if t := s.LastChange(); !t.IsZero() {
		meta = append(meta, display.RelTime(t.Time(), now))
	}
	if s.Persona != "" {
		meta = append(meta, "Ton : "+s.Persona)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if s.Summary != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(s.Summary), "\n", "\n> "))
	}
	if s.Body != "" {
		b.WriteString(strings.TrimSpace(s.Body))
		b.WriteString("\n\n")
	}

	if len(s.KeyPoints) > 0 {
		b.WriteString("## Points clés\n\n")
		for _, p := range s.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if s.TransparencyScore != nil || s.ComplianceScore != nil {
		b.WriteString("## Transparence\n\n")
		fmt.Fprintf(&b, "- Score de transparence : %s\n", format.Score(s.TransparencyScore))
		fmt.Fprintf(&b, "- Conformité : %s\n\n", format.Score(s.ComplianceScore))
	}

	if len(s.SourceArticles) > 0 {
		b.WriteString("## Sources\n\n")
		for _, a := range s.SourceArticles {
			title := a.Title
			if a.URL != "" {
				title = fmt.Sprintf("[%s](%s)", a.Title, a.URL)
			}
			if a.Source != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", title, a.Source)
			} else {
				fmt.Fprintf(&b, "- %s\n", title)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func sourceCount(s *api.Synthesis) int {
	if s.NumSources > 0 {
		return s.NumSources
	}
	return len(s.SourceArticles)
}
