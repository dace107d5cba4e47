package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/format"
)

var causalFlags struct {
	dot bool
}

var causalCmd = &cobra.Command{
	Use:   "causal",
	Short: "Causal graphs, predictions and entity profiles",
}

var causalGraphCmd = &cobra.Command{
	Use:   "graph <synthesis-id>",
	Short: "Cause and effect relations extracted from a synthesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCausalGraph(cmd, args[0], "graph", (*api.CausalScope).Graph)
	},
}

var causalHistoricalCmd = &cobra.Command{
	Use:   "historical <synthesis-id>",
	Short: "Causal graph merged across related syntheses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCausalGraph(cmd, args[0], "historical", (*api.CausalScope).Historical)
	},
}

var causalPreviewCmd = &cobra.Command{
	Use:   "preview <synthesis-id>",
	Short: "Compact causal summary of a synthesis",
	Args:  cobra.ExactArgs(1),
	RunE:  runCausalPreview,
}

var causalPredictionsCmd = &cobra.Command{
	Use:   "predictions <synthesis-id>",
	Short: "Forecast consequences of a synthesis",
	Args:  cobra.ExactArgs(1),
	RunE:  runCausalPredictions,
}

var causalEntityCmd = &cobra.Command{
	Use:   "entity <name>",
	Short: "How often an entity appears as cause or effect",
	Args:  cobra.ExactArgs(1),
	RunE:  runCausalEntity,
}

var causalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Totals across every causal graph",
	Args:  cobra.NoArgs,
	RunE:  runCausalStats,
}

func init() {
	for _, c := range []*cobra.Command{causalGraphCmd, causalHistoricalCmd} {
		c.Flags().BoolVar(&causalFlags.dot, "dot", false, "Print Graphviz DOT instead of an edge table")
	}
	causalCmd.AddCommand(causalGraphCmd, causalHistoricalCmd, causalPreviewCmd,
		causalPredictionsCmd, causalEntityCmd, causalStatsCmd)
}

func runCausalGraph(cmd *cobra.Command, id, kind string, get func(*api.CausalScope, context.Context, string) (*api.CausalGraph, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	g, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.CausalGraph, error) {
		return get(a.client.Causal(), ctx, id)
	}, "causal", kind, id)
	if err != nil {
		return apiFailure(err)
	}
	if causalFlags.dot {
		_, err := fmt.Fprint(cmd.OutOrStdout(), format.CausalDOT(g))
		return err
	}
	return a.emit(cmd.OutOrStdout(), g, func() string {
		if len(g.Edges) == 0 {
			return "Aucune relation causale.\n"
		}
		out := format.CausalEdges(g, a.tableMode()) + "\n"
		if g.NarrativeFlow != "" {
			out += "\nFil narratif : " + g.NarrativeFlow + "\n"
		}
		return out
	})
}

func runCausalPreview(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	p, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.CausalPreview, error) {
		return a.client.Causal().Preview(ctx, id)
	}, "causal", "preview", id)
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), p, func() string {
		if !p.HasGraph {
			return "Aucun graphe causal pour cette synthèse.\n"
		}
		return kv(
			[2]string{"Nœuds", display.Count(p.NodeCount)},
			[2]string{"Relations", display.Count(p.EdgeCount)},
			[2]string{"Causes principales", orDash(strings.Join(p.TopCauses, ", "))},
			[2]string{"Effets principaux", orDash(strings.Join(p.TopEffects, ", "))},
		)
	})
}

func runCausalPredictions(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	p, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.Predictions, error) {
		return a.client.Causal().Predictions(ctx, id)
	}, "causal", "predictions", id)
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), p, func() string {
		preds := slices.Clone(p.Predictions)
		slices.SortStableFunc(preds, func(x, y api.Prediction) int {
			switch {
			case x.Probability > y.Probability:
				return -1
			case x.Probability < y.Probability:
				return 1
			}
			return 0
		})
		tb := format.NewTable(a.tableMode())
		tb.Header("Prédiction", "Probabilité", "Horizon", "Type")
		for _, pr := range preds {
			tb.Row(pr.Description, format.Percent(pr.Probability*100), orDash(pr.Timeframe), orDash(pr.Type))
		}
		tb.Columns(
			format.ColumnConfig{Number: 1, MaxWidth: 70},
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
		)
		return tb.String() + "\n"
	})
}

func runCausalEntity(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	p, err := cached(cmd.Context(), a, func(ctx context.Context) (*api.EntityCausalProfile, error) {
		return a.client.Causal().EntityProfile(ctx, name)
	}, "causal", "entity", strings.ToLower(name))
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), p, func() string {
		out := kv(
			[2]string{"Entité", p.Entity},
			[2]string{"Type", orDash(p.EntityType)},
			[2]string{"Comme cause", display.Count(p.AsCauseCount)},
			[2]string{"Comme effet", display.Count(p.AsEffectCount)},
			[2]string{"Synthèses", display.Count(len(p.Syntheses))},
		)
		if len(p.Relations) == 0 {
			return out
		}
		tb := format.NewTable(a.tableMode())
		tb.Header("Cause", "Relation", "Effet", "Confiance")
		for _, e := range p.Relations {
			tb.Row(e.Source, e.RelationType, e.Target, fmt.Sprintf("%.2f", e.Confidence))
		}
		tb.Columns(format.ColumnConfig{Number: 4, Align: format.AlignRight})
		return out + "\n" + tb.String() + "\n"
	})
}

func runCausalStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	st, err := cached(cmd.Context(), a, a.client.Causal().Stats, "causal", "stats")
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), st, func() string {
		out := kv(
			[2]string{"Graphes", display.Count(st.TotalGraphs)},
			[2]string{"Nœuds", display.Count(st.TotalNodes)},
			[2]string{"Relations", display.Count(st.TotalEdges)},
		)
		if len(st.RelationTypes) == 0 {
			return out
		}
		tb := format.NewTable(a.tableMode())
		tb.Header("Type de relation", "Nombre")
		types := slices.Sorted(maps.Keys(st.RelationTypes))
		for _, t := range types {
			tb.Row(t, display.Count(st.RelationTypes[t]))
		}
		tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
		return out + "\n" + tb.String() + "\n"
	})
}
