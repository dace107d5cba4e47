package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/feed"
	"novapress/internal/format"
	"novapress/internal/logging"
	"novapress/internal/render"
)

var liveFlags struct {
	hours int
	limit int
	all   bool
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "List the latest syntheses, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLive,
}

var synthesisFlags struct {
	persona string
	style   string
	width   int
}

var synthesisCmd = &cobra.Command{
	Use:   "synthesis",
	Short: "Read syntheses",
}

var synthesisShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one synthesis, optionally rewritten for a persona",
	Args:  cobra.ExactArgs(1),
	RunE:  runSynthesisShow,
}

func init() {
	f := liveCmd.Flags()
	f.IntVar(&liveFlags.hours, "hours", 24, "Time window in hours")
	f.IntVar(&liveFlags.limit, "limit", feed.DefaultPageSize, "Page size")
	f.BoolVar(&liveFlags.all, "all", false, "Load every page of the window")

	sf := synthesisShowCmd.Flags()
	sf.StringVar(&synthesisFlags.persona, "persona", "", "Persona rewrite (e.g. expert, student)")
	sf.StringVar(&synthesisFlags.style, "style", "auto", "Glamour style: auto, dark, light, notty")
	sf.IntVar(&synthesisFlags.width, "width", render.DefaultWidth, "Wrap width")
	synthesisCmd.AddCommand(synthesisShowCmd)
}

func runLive(cmd *cobra.Command, _ []string) error {
	if liveFlags.hours < 0 || liveFlags.limit <= 0 {
		return fmt.Errorf("--hours must be >= 0 and --limit > 0")
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	pager := feed.NewPager(a.client.Syntheses(), liveFlags.hours,
		feed.WithPageSize(liveFlags.limit),
		feed.WithLogger(logging.New("feed")),
	)
	for {
		_, err := pager.LoadMore(cmd.Context())
		if errors.Is(err, feed.ErrExhausted) {
			break
		}
		if err != nil {
			return apiFailure(err)
		}
		if !liveFlags.all || pager.Exhausted() {
			break
		}
	}

	items := pager.Items()
	page := api.LivePage{Data: items, Total: pager.Total(), HasMore: !pager.Exhausted(), NextOffset: len(items)}
	return a.emit(cmd.OutOrStdout(), page, func() string {
		return synthesesTable(a.tableMode(), items, pager.Total(), time.Now())
	})
}

func synthesesTable(m format.Mode, items []api.Synthesis, total int, now time.Time) string {
	tb := format.NewTable(m)
	tb.Header("ID", "Titre", "Catégorie", "Phase", "Sources", "Mise à jour")
	for _, s := range items {
		title := s.Title
		if s.IsBreaking {
			title = "⚡ " + title
		}
		tb.Row(s.ID, title, display.Category(s.Category), display.Phase(s.NarrativePhase),
			s.NumSources, display.RelTime(s.LastChange().Time(), now))
	}
	tb.Footer("", fmt.Sprintf("%d / %d", len(items), total), "", "", "", "")
	tb.Columns(
		format.ColumnConfig{Number: 2, MaxWidth: 60},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
	)
	return tb.String() + "\n"
}

func runSynthesisShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id, persona := args[0], synthesisFlags.persona
	syn, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.Synthesis, error) {
		if persona != "" {
			return a.client.Syntheses().Persona(ctx, id, persona)
		}
		return a.client.Syntheses().Get(ctx, id)
	}, "syntheses", id, persona)
	if err != nil {
		return apiFailure(err)
	}

	now := time.Now()
	return a.emit(cmd.OutOrStdout(), syn, func() string {
		md := render.SynthesisMarkdown(syn, now)
		if a.out == format.Markdown {
			return md
		}
		r, err := render.NewRenderer(synthesisFlags.width, synthesisFlags.style)
		if err != nil {
			a.logger.Warn("markdown renderer unavailable, printing raw markdown", "error", err)
			return md
		}
		out, err := r.Render(md)
		if err != nil {
			a.logger.Warn("render synthesis", "error", err)
			return md
		}
		return out
	})
}
