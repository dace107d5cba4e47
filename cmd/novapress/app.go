package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/config"
	"novapress/internal/display"
	"novapress/internal/follow"
	"novapress/internal/format"
	"novapress/internal/logging"
	"novapress/internal/metrics"
	"novapress/internal/querycache"
	"novapress/internal/session"
	"novapress/internal/store"
)

// app is everything a command needs, built from config and global flags.
type app struct {
	cfg     config.Config
	out     format.Mode
	logger  *slog.Logger
	metrics *metrics.Collector
	client  *api.Client
	cache   *querycache.Cache

	// Set by openStore.
	db      *store.SqlStore
	session *session.Manager
	follows *follow.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	out, err := format.ParseMode(rootFlags.output)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		out:     out,
		logger:  logging.New("cli"),
		metrics: metrics.NewCollector(),
	}
	a.client, err = api.New(cfg.APIURL,
		api.WithLogger(logging.New("api")),
		api.WithTimeout(cfg.Timeout),
		api.WithAdminKey(cfg.AdminKey),
		api.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	retries := cfg.Cache.Retries
	if retries == 0 {
		retries = querycache.NoRetries
	}
	a.cache = querycache.New(querycache.Options{
		StaleTime: cfg.Cache.StaleTime,
		GCTime:    cfg.Cache.GCTime,
		Retries:   retries,
		Permanent: api.IsClientError,
		Observer:  a.metrics,
		Logger:    logging.New("querycache"),
	})
	a.logger.Debug("configured", "api_url", cfg.APIURL, "ws_url", cfg.WSURL, "command", cmd.CommandPath())
	return a, nil
}

// loadConfig layers the global flags over the file and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if rootFlags.apiURL != "" {
		cfg.APIURL = rootFlags.apiURL
		if rootFlags.wsURL == "" {
			cfg.WSURL = config.DeriveWSURL(cfg.APIURL)
		}
	}
	if rootFlags.wsURL != "" {
		cfg.WSURL = rootFlags.wsURL
	}
	if rootFlags.adminKey != "" {
		cfg.AdminKey = rootFlags.adminKey
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openStore opens the local database and the session and follow stores
// kept in it. The session becomes the client's bearer token source.
func (a *app) openStore() error {
	db, err := store.Open(a.cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	sess, err := session.New(db, a.client.Auth(), session.WithLogger(logging.New("session")))
	if err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.session = sess
	a.follows = follow.New(db, follow.WithLogger(logging.New("follow")))
	a.client.SetTokenSource(sess)
	return nil
}

// Close releases the store when one was opened.
func (a *app) Close() {
	if a == nil || a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}

// serveMetrics exposes /metrics on cfg.MetricsAddr until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()
}

// cached runs fetch through the shared query cache.
func cached[T any](ctx context.Context, a *app, fetch func(context.Context) (T, error), key ...string) (T, error) {
	return querycache.Get(ctx, a.cache, querycache.Key(key...), fetch)
}

// apiFailure prefixes err with the message shown to readers.
func apiFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", display.UserMessage(err), err)
}

// emit writes v as indented JSON in JSON mode and render() otherwise.
func (a *app) emit(w io.Writer, v any, render func() string) error {
	if a.out == format.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprint(w, render())
	return err
}

// tableMode is the table format for non-JSON output.
func (a *app) tableMode() format.Mode {
	if a.out == format.Markdown {
		return format.Markdown
	}
	return format.ASCII
}

// kv renders aligned "label: value" lines.
func kv(pairs ...[2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len([]rune(p[0])))
	}
	var out string
	for _, p := range pairs {
		pad := width - len([]rune(p[0]))
		out += fmt.Sprintf("%s:%*s %s\n", p[0], pad, "", p[1])
	}
	return out
}

func tsString(t *api.Timestamp) string {
	if t == nil || t.IsZero() {
		return "—"
	}
	return display.Since(t.Time())
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
