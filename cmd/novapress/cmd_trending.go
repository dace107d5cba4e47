package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/fallback"
	"novapress/internal/format"
	"novapress/internal/logging"
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Live counts, category trends, topics and breaking news",
}

var trendingLiveCountCmd = &cobra.Command{
	Use:   "live-count",
	Short: "Number of syntheses published recently",
	Args:  cobra.NoArgs,
	RunE:  runTrendingLiveCount,
}

var trendingCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Synthesis counts and trend per category",
	Args:  cobra.NoArgs,
	RunE:  runTrendingCategories,
}

var trendingTopicCmd = &cobra.Command{
	Use:   "topic <synthesis-id>",
	Short: "Topic a synthesis belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrendingTopic,
}

var trendingBreakingCmd = &cobra.Command{
	Use:   "breaking",
	Short: "Breaking news ticker",
	Args:  cobra.NoArgs,
	RunE:  runTrendingBreaking,
}

func init() {
	trendingCmd.AddCommand(trendingLiveCountCmd, trendingCategoriesCmd, trendingTopicCmd, trendingBreakingCmd)
}

func runTrendingLiveCount(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	lc, err := cached(cmd.Context(), a, a.client.Trending().LiveCount, "trending", "live-count")
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), lc, func() string {
		if lc.Hours > 0 {
			return fmt.Sprintf("%s synthèses en direct (%dh)\n", display.Count(lc.Count), lc.Hours)
		}
		return display.Count(lc.Count) + " synthèses en direct\n"
	})
}

func runTrendingCategories(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	cs, err := cached(cmd.Context(), a, a.client.Trending().CategoriesStats, "trending", "categories")
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), cs, func() string {
		tb := format.NewTable(a.tableMode())
		tb.Header("Catégorie", "Synthèses", "Tendance")
		for _, c := range cs.Categories {
			tb.Row(display.Category(c.Category), display.Count(c.Count), trendText(c.Trend))
		}
		tb.Footer("Total", display.Count(cs.Total), "")
		tb.Columns(
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
			format.ColumnConfig{Number: 3, Align: format.AlignRight},
		)
		return tb.String() + "\n"
	})
}

func trendText(t float64) string {
	switch {
	case t > 0:
		return fmt.Sprintf("▲ %+.0f%%", t)
	case t < 0:
		return fmt.Sprintf("▼ %+.0f%%", t)
	}
	return "="
}

func runTrendingTopic(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	info, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.TopicInfo, error) {
		return a.client.Trending().TopicInfo(ctx, id)
	}, "trending", "topic-info", id)
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), info, func() string {
		name := info.TopicName
		if name == "" {
			name = "—"
		}
		return kv(
			[2]string{"Sujet", name},
			[2]string{"Phase", display.Phase(info.NarrativePhase)},
			[2]string{"Synthèses liées", display.Count(info.RelatedCount)},
			[2]string{"Tendance", orDash(info.Trend)},
			[2]string{"Mots-clés", orDash(strings.Join(info.Keywords, ", "))},
		)
	})
}

func runTrendingBreaking(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	t, err := fallback.BreakingOrDemo(cmd.Context(), a.client.Trending(), logging.New("fallback"))
	if err != nil {
		return apiFailure(err)
	}
	if t.Demo {
		fmt.Fprintln(cmd.ErrOrStderr(), display.MsgDemoData)
	}
	return a.emit(cmd.OutOrStdout(), t, func() string {
		tb := format.NewTable(a.tableMode())
		tb.Header("Titre", "Catégorie", "Publié")
		for _, it := range t.Items {
			tb.Row(it.Title, display.Category(it.Category), tsString(it.CreatedAt))
		}
		tb.Columns(format.ColumnConfig{Number: 1, MaxWidth: 70})
		return tb.String() + "\n"
	})
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
