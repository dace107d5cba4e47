package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/fallback"
	"novapress/internal/format"
	"novapress/internal/logging"
)

var intelTopicsFlags api.TopicQuery

var intelEntitiesFlags api.EntityQuery

var intelGraphFlags struct {
	top int
}

var intelCmd = &cobra.Command{
	Use:   "intel",
	Short: "Topics, entities and the global intelligence graph",
}

var intelTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List tracked topics",
	Args:  cobra.NoArgs,
	RunE:  runIntelTopics,
}

var intelTopicCmd = &cobra.Command{
	Use:   "topic <id>",
	Short: "Show one topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntelTopic,
}

var intelEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List resolved entities",
	Args:  cobra.NoArgs,
	RunE:  runIntelEntities,
}

var intelEntityCmd = &cobra.Command{
	Use:   "entity <id>",
	Short: "Show one entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntelEntity,
}

var intelGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Summarize the global intelligence graph",
	Long: `Prints the heaviest nodes of the global graph. When the backend cannot be
reached a bundled demo graph is shown instead and flagged as such.`,
	Args: cobra.NoArgs,
	RunE: runIntelGraph,
}

var intelStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Topic and entity totals",
	Args:  cobra.NoArgs,
	RunE:  runIntelStats,
}

func init() {
	tf := intelTopicsCmd.Flags()
	tf.StringVar(&intelTopicsFlags.Category, "category", "", "Filter by category")
	tf.StringVar(&intelTopicsFlags.Phase, "phase", "", "Filter by narrative phase")
	tf.StringVar(&intelTopicsFlags.Search, "search", "", "Full-text filter")
	tf.IntVar(&intelTopicsFlags.Limit, "limit", 20, "Page size")
	tf.IntVar(&intelTopicsFlags.Offset, "offset", 0, "Offset of the first topic")

	ef := intelEntitiesCmd.Flags()
	ef.StringVar(&intelEntitiesFlags.EntityType, "type", "", "Filter by entity type (PERSON, ORG, LOCATION, ...)")
	ef.StringVar(&intelEntitiesFlags.Search, "search", "", "Name filter")
	ef.IntVar(&intelEntitiesFlags.Limit, "limit", 20, "Page size")
	ef.IntVar(&intelEntitiesFlags.Offset, "offset", 0, "Offset of the first entity")

	intelGraphCmd.Flags().IntVar(&intelGraphFlags.top, "top", 15, "Number of nodes to list")

	intelCmd.AddCommand(intelTopicsCmd, intelTopicCmd, intelEntitiesCmd, intelEntityCmd, intelGraphCmd, intelStatsCmd)
}

func runIntelTopics(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	q := intelTopicsFlags
	list, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.TopicList, error) {
		return a.client.Intelligence().Topics(ctx, q)
	}, "intel", "topics", q.Category, q.Phase, q.Search, strconv.Itoa(q.Limit), strconv.Itoa(q.Offset))
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), list, func() string {
		tb := format.NewTable(a.tableMode())
		tb.Header("ID", "Sujet", "Catégorie", "Phase", "Synthèses", "Dernière activité")
		for _, t := range list.Topics {
			tb.Row(t.ID, t.Name, display.Category(t.Category), display.Phase(t.NarrativePhase),
				display.Count(t.SynthesisCount), tsString(t.LastSeen))
		}
		tb.Footer("", fmt.Sprintf("%d / %d", len(list.Topics), list.Total), "", "", "", "")
		tb.Columns(
			format.ColumnConfig{Number: 2, MaxWidth: 50},
			format.ColumnConfig{Number: 5, Align: format.AlignRight},
		)
		return tb.String() + "\n"
	})
}

func runIntelTopic(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	t, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.Topic, error) {
		return a.client.Intelligence().Topic(ctx, id)
	}, "intel", "topic", id)
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), t, func() string {
		out := kv(
			[2]string{"Sujet", t.Name},
			[2]string{"Catégorie", display.Category(t.Category)},
			[2]string{"Phase", display.Phase(t.NarrativePhase)},
			[2]string{"Synthèses", display.Count(t.SynthesisCount)},
			[2]string{"Entités", display.Count(t.EntityCount)},
			[2]string{"Mots-clés", orDash(strings.Join(t.Keywords, ", "))},
			[2]string{"Première apparition", tsString(t.FirstSeen)},
			[2]string{"Dernière activité", tsString(t.LastSeen)},
		)
		if t.Description != "" {
			out += "\n" + t.Description + "\n"
		}
		return out
	})
}

func runIntelEntities(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	q := intelEntitiesFlags
	list, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.EntityList, error) {
		return a.client.Intelligence().Entities(ctx, q)
	}, "intel", "entities", q.EntityType, q.Search, strconv.Itoa(q.Limit), strconv.Itoa(q.Offset))
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), list, func() string {
		tb := format.NewTable(a.tableMode())
		tb.Header("ID", "Nom", "Type", "Mentions", "Sujets", "Dernière mention")
		for _, e := range list.Entities {
			tb.Row(e.ID, e.Name, orDash(e.EntityType), display.Count(e.MentionCount),
				display.Count(e.TopicCount), tsString(e.LastSeen))
		}
		tb.Footer("", fmt.Sprintf("%d / %d", len(list.Entities), list.Total), "", "", "", "")
		tb.Columns(
			format.ColumnConfig{Number: 4, Align: format.AlignRight},
			format.ColumnConfig{Number: 5, Align: format.AlignRight},
		)
		return tb.String() + "\n"
	})
}

func runIntelEntity(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	e, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.Entity, error) {
		return a.client.Intelligence().Entity(ctx, id)
	}, "intel", "entity", id)
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), e, func() string {
		out := kv(
			[2]string{"Nom", e.Name},
			[2]string{"Type", orDash(e.EntityType)},
			[2]string{"Alias", orDash(strings.Join(e.Aliases, ", "))},
			[2]string{"Mentions", display.Count(e.MentionCount)},
			[2]string{"Sujets", display.Count(e.TopicCount)},
			[2]string{"Première mention", tsString(e.FirstSeen)},
			[2]string{"Dernière mention", tsString(e.LastSeen)},
		)
		if e.Description != "" {
			out += "\n" + e.Description + "\n"
		}
		return out
	})
}

func runIntelGraph(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	g, err := fallback.GlobalGraphOrDemo(cmd.Context(), a.client.Intelligence(), logging.New("fallback"))
	if err != nil {
		return apiFailure(err)
	}
	if g.Demo {
		fmt.Fprintln(cmd.ErrOrStderr(), display.MsgDemoData)
	}
	return a.emit(cmd.OutOrStdout(), g, func() string {
		return graphSummary(g, a.tableMode(), intelGraphFlags.top)
	})
}

// graphSummary lists the top nodes by weight with their degree.
func graphSummary(g *api.IntelligenceGraph, m format.Mode, top int) string {
	degree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	nodes := slices.Clone(g.Nodes)
	slices.SortStableFunc(nodes, func(x, y api.GraphNode) int {
		if x.Weight != y.Weight {
			if x.Weight > y.Weight {
				return -1
			}
			return 1
		}
		return degree[y.ID] - degree[x.ID]
	})
	if top > 0 && len(nodes) > top {
		nodes = nodes[:top]
	}

	tb := format.NewTable(m)
	tb.Title(fmt.Sprintf("%s nœuds · %s liens", display.Count(len(g.Nodes)), display.Count(len(g.Edges))))
	tb.Header("Nœud", "Type", "Poids", "Liens")
	for _, n := range nodes {
		tb.Row(n.Label, orDash(n.Type), fmt.Sprintf("%.2f", n.Weight), degree[n.ID])
	}
	tb.Columns(
		format.ColumnConfig{Number: 3, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
	)
	return tb.String() + "\n"
}

func runIntelStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	st, err := cached(cmd.Context(), a, a.client.Intelligence().Stats, "intel", "stats")
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), st, func() string {
		out := kv(
			[2]string{"Sujets", fmt.Sprintf("%s (%s actifs)", display.Count(st.TotalTopics), display.Count(st.ActiveTopics))},
			[2]string{"Entités", display.Count(st.TotalEntities)},
		)
		if len(st.ByPhase) > 0 {
			tb := format.NewTable(a.tableMode())
			tb.Header("Phase", "Sujets")
			for _, p := range slices.Sorted(maps.Keys(st.ByPhase)) {
				tb.Row(display.Phase(p), display.Count(st.ByPhase[p]))
			}
			out += "\n" + tb.String() + "\n"
		}
		if len(st.ByEntityType) > 0 {
			tb := format.NewTable(a.tableMode())
			tb.Header("Type d'entité", "Entités")
			for _, t := range slices.Sorted(maps.Keys(st.ByEntityType)) {
				tb.Row(t, display.Count(st.ByEntityType[t]))
			}
			out += "\n" + tb.String() + "\n"
		}
		return out
	})
}
