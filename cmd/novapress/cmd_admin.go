package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/dashboard"
	"novapress/internal/display"
	"novapress/internal/format"
	"novapress/internal/logging"
	"novapress/internal/pipeline"
	"novapress/internal/tui"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer the scraping pipeline (requires the admin key)",
}

var adminStartFlags struct {
	mode        string
	maxArticles int
}

var adminWatchFlags struct {
	tui bool
}

var adminStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the pipeline runs, its step and last result",
	Args:  cobra.NoArgs,
	RunE:  runAdminStatus,
}

var adminStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a pipeline run",
	Args:  cobra.NoArgs,
	RunE:  runAdminStart,
}

var adminStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running pipeline to stop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAdminAction(cmd, (*dashboard.Console).StopPipeline)
	},
}

var adminResetLockCmd = &cobra.Command{
	Use:   "reset-lock",
	Short: "Clear a stale pipeline lock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAdminAction(cmd, (*dashboard.Console).ResetLock)
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show article, synthesis and source totals",
	Args:  cobra.NoArgs,
	RunE:  runAdminStats,
}

var adminSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List news sources with their last scrape status",
	Args:  cobra.NoArgs,
	RunE:  runAdminSources,
}

var adminWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow pipeline progress live over the WebSocket",
	Long: `Connects to the pipeline socket and prints every step, progress and
source status change. The connection is re-established after a fixed delay
when it drops. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runAdminWatch,
}

func init() {
	f := adminStartCmd.Flags()
	f.StringVar(&adminStartFlags.mode, "mode", string(api.ModeScrape), "Pipeline mode: SCRAPE, TOPIC or SIMULATION")
	f.IntVar(&adminStartFlags.maxArticles, "max-articles", 0, "Maximum articles per source (0 = backend default)")

	adminWatchCmd.Flags().BoolVar(&adminWatchFlags.tui, "tui", false, "Full-screen terminal view")

	adminCmd.AddCommand(adminStatusCmd, adminStartCmd, adminStopCmd, adminResetLockCmd,
		adminStatsCmd, adminSourcesCmd, adminWatchCmd)
}

func newConsole(a *app) *dashboard.Console {
	return dashboard.New(a.client, a.cfg.AdminKey, logging.New("dashboard"))
}

func runAdminStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	st, err := a.client.Admin().Status(cmd.Context())
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), st, func() string { return statusText(st) })
}

func statusText(st *api.PipelineStatus) string {
	state := "Inactif"
	if st.IsRunning {
		state = "En cours"
	}
	pairs := [][2]string{{"État", state}}
	if st.IsRunning {
		pairs = append(pairs,
			[2]string{"Étape", display.Step(st.CurrentStep)},
			[2]string{"Progression", format.ProgressBar(st.Progress, 20) + " " + format.Percent(st.Progress)},
		)
	}
	pairs = append(pairs, [2]string{"Dernière exécution", tsString(st.LastRun)})
	if r := st.LastResult; r != nil {
		pairs = append(pairs, [2]string{"Dernier résultat", resultText(r)})
	}
	return kv(pairs...)
}

func resultText(r *api.PipelineResult) string {
	if r.Error != "" {
		return "échec : " + r.Error
	}
	parts := []string{}
	if r.Mode != "" {
		parts = append(parts, display.Mode(r.Mode))
	}
	parts = append(parts,
		display.Count(r.ArticlesScraped)+" articles",
		display.Count(r.SynthesesCreated)+" synthèses",
	)
	if r.DurationSeconds > 0 {
		parts = append(parts, format.FmtDuration(secondsToDuration(r.DurationSeconds)))
	}
	return strings.Join(parts, " · ")
}

func runAdminStart(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	mode, err := api.ParseMode(adminStartFlags.mode)
	if err != nil {
		return fmt.Errorf("%s: %w", display.MsgInvalidMode, err)
	}
	return runAdminActionWith(cmd, a, func(c *dashboard.Console, ctx context.Context) (*api.ActionResponse, error) {
		return c.StartPipeline(ctx, mode, adminStartFlags.maxArticles)
	})
}

func runAdminAction(cmd *cobra.Command, action func(*dashboard.Console, context.Context) (*api.ActionResponse, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	return runAdminActionWith(cmd, a, action)
}

func runAdminActionWith(cmd *cobra.Command, a *app, action func(*dashboard.Console, context.Context) (*api.ActionResponse, error)) error {
	console := newConsole(a)
	resp, err := action(console, cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", console.Message, err)
	}
	return a.emit(cmd.OutOrStdout(), resp, func() string {
		out := console.Message + "\n"
		if resp.RunID != "" {
			out += "Exécution : " + resp.RunID + "\n"
		}
		return out
	})
}

// authenticatedPanels checks the admin key and loads every admin panel.
func authenticatedPanels(cmd *cobra.Command, a *app) (*dashboard.Panels, error) {
	console := newConsole(a)
	if err := console.Authenticate(cmd.Context()); err != nil {
		return nil, fmt.Errorf("%s: %w", console.Message, err)
	}
	panels := console.Panels()
	if panels == nil {
		return nil, fmt.Errorf("%s", display.MsgInvalidKey)
	}
	return panels, nil
}

func runAdminStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	panels, err := authenticatedPanels(cmd, a)
	if err != nil {
		return err
	}
	st := panels.Stats
	return a.emit(cmd.OutOrStdout(), st, func() string {
		out := kv(
			[2]string{"Articles", display.Count(st.TotalArticles)},
			[2]string{"Synthèses", display.Count(st.TotalSyntheses)},
			[2]string{"Synthèses du jour", display.Count(st.SynthesesToday)},
			[2]string{"Sources actives", fmt.Sprintf("%d / %d", st.ActiveSources, st.TotalSources)},
			[2]string{"Dernière exécution", tsString(st.LastPipelineRun)},
		)
		if len(st.ByCategory) == 0 {
			return out
		}
		tb := format.NewTable(a.tableMode())
		tb.Header("Catégorie", "Synthèses")
		cats := slices.Sorted(maps.Keys(st.ByCategory))
		for _, c := range cats {
			tb.Row(display.Category(c), display.Count(st.ByCategory[c]))
		}
		tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
		return out + "\n" + tb.String() + "\n"
	})
}

func runAdminSources(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	panels, err := authenticatedPanels(cmd, a)
	if err != nil {
		return err
	}
	list := panels.Sources
	return a.emit(cmd.OutOrStdout(), list, func() string {
		tb := format.NewTable(a.tableMode())
		tb.Header("Source", "Catégorie", "Langue", "Actif", "Statut", "Articles", "Dernier passage")
		for _, s := range list.Sources {
			status := "—"
			if s.LastStatus != "" {
				status = display.SourceStatusWithGlyph(s.LastStatus)
			}
			tb.Row(s.Name, display.Category(s.Category), s.Language, format.BoolMark(s.Enabled),
				status, display.Count(s.ArticleCount), tsString(s.LastScraped))
		}
		tb.Footer("", "", "", "", "", strconv.Itoa(list.Total)+" sources", "")
		tb.Columns(format.ColumnConfig{Number: 6, Align: format.AlignRight})
		return tb.String() + "\n"
	})
}

func runAdminWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	monitor, err := pipeline.NewMonitor(a.cfg.WSURL,
		pipeline.WithReconnectDelay(a.cfg.ReconnectDelay),
		pipeline.WithLogger(logging.New("pipeline")),
		pipeline.WithObserver(a.metrics),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	a.serveMetrics(ctx)

	if adminWatchFlags.tui {
		errc := make(chan error, 1)
		go func() { errc <- monitor.Run(ctx) }()
		p := tea.NewProgram(tui.New(monitor.Updates()),
			tea.WithContext(ctx),
			tea.WithAltScreen(),
			tea.WithOutput(cmd.OutOrStdout()),
		)
		_, err := p.Run()
		cancel()
		if runErr := <-errc; runErr != nil {
			return runErr
		}
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	}

	w := &watchPrinter{w: cmd.OutOrStdout()}
	monitor.OnState(w.print)
	a.logger.Info("watching pipeline", "url", monitor.URL())
	return monitor.Run(ctx)
}

// watchPrinter prints what changed between consecutive pipeline states.
type watchPrinter struct {
	w    io.Writer
	prev pipeline.State
}

func (p *watchPrinter) print(next pipeline.State) {
	for _, line := range stateChanges(p.prev, next) {
		fmt.Fprintln(p.w, line)
	}
	p.prev = next
}

func stateChanges(prev, next pipeline.State) []string {
	var lines []string
	if prev.Connected != next.Connected {
		if next.Connected {
			lines = append(lines, "● connecté")
		} else {
			lines = append(lines, "○ déconnecté, reconnexion…")
		}
	}
	if next.IsRunning && (!prev.IsRunning || prev.Step != next.Step || prev.Progress != next.Progress) {
		line := fmt.Sprintf("%s %s %s", format.ProgressBar(next.Progress, 20), format.Percent(next.Progress), display.Step(next.Step))
		if next.Message != "" {
			line += " · " + next.Message
		}
		lines = append(lines, line)
	}
	for _, name := range next.SourceNames() {
		src := next.Sources[name]
		if old, ok := prev.Sources[name]; ok && old == src {
			continue
		}
		line := fmt.Sprintf("  %s %s", name, display.SourceStatusWithGlyph(string(src.Status)))
		if src.Articles > 0 {
			line += fmt.Sprintf(" (%d articles)", src.Articles)
		}
		if src.Error != "" {
			line += " : " + src.Error
		}
		lines = append(lines, line)
	}
	if next.Stopping && !prev.Stopping {
		lines = append(lines, display.MsgStopping)
	}
	if prev.IsRunning && !next.IsRunning {
		switch {
		case next.Error != "":
			lines = append(lines, "✗ échec : "+next.Error)
		case next.Cancelled:
			lines = append(lines, "■ pipeline annulé")
		case next.LastResult != nil:
			lines = append(lines, "✓ terminé : "+resultText(next.LastResult))
		default:
			lines = append(lines, "✓ terminé")
		}
	}
	return lines
}
