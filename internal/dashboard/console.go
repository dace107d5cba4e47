// Package dashboard holds the state of the admin console: the admin key,
// whether the backend accepted it, and the panels loaded with it.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/logging"
)

// Panels are the admin views loaded with a valid key.
type Panels struct {
	Status  *api.PipelineStatus
	Stats   *api.AdminStats
	Sources *api.SourceList
}

// Console is the admin console state. It is not safe for concurrent use.
type Console struct {
	AdminKey        string
	IsAuthenticated bool
	Message         string
	Status          *api.PipelineStatus
	Stats           *api.AdminStats
	Sources         *api.SourceList

	client *api.Client
	logger *slog.Logger
}

// New returns a Console using client, starting with key.
func New(client *api.Client, key string, logger *slog.Logger) *Console {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Console{AdminKey: key, client: client, logger: logger}
}

// SetKey replaces the admin key and drops everything loaded with the old one.
func (c *Console) SetKey(key string) {
	c.AdminKey = key
	c.deauthenticate("")
}

func (c *Console) admin() *api.AdminScope { return c.client.AdminWithKey(c.AdminKey) }

// Authenticate checks the key against the stats endpoint and, when it is
// accepted, loads every panel.
func (c *Console) Authenticate(ctx context.Context) error {
	if !c.admin().HasKey() {
		c.deauthenticate(display.MsgMissingKey)
		return api.ErrMissingAdminKey
	}
	stats, err := c.admin().Stats(ctx)
	if err != nil {
		return c.fail(ctx, "authenticate", err)
	}
	c.IsAuthenticated = true
	c.Stats = stats
	c.Message = ""
	c.logger.InfoContext(ctx, "admin key accepted")
	return c.refresh(ctx, false)
}

// Refresh reloads status, stats and sources concurrently. A rejected key
// ends the authenticated state.
func (c *Console) Refresh(ctx context.Context) error {
	return c.refresh(ctx, true)
}

func (c *Console) refresh(ctx context.Context, withStats bool) error {
	admin := c.admin()
	if !admin.HasKey() {
		c.deauthenticate(display.MsgMissingKey)
		return api.ErrMissingAdminKey
	}

	var (
		status  *api.PipelineStatus
		stats   *api.AdminStats
		sources *api.SourceList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = admin.Status(gctx)
		return err
	})
	if withStats {
		g.Go(func() error {
			var err error
			stats, err = admin.Stats(gctx)
			return err
		})
	}
	g.Go(func() error {
		var err error
		sources, err = admin.Sources(gctx)
		return err
	})
	err := g.Wait()
	if err != nil && (api.IsUnauthorized(err) || api.IsForbidden(err)) {
		return c.fail(ctx, "refresh", err)
	}

	if status != nil {
		c.Status = status
	}
	if stats != nil {
		c.IsAuthenticated = true
		c.Stats = stats
	}
	if sources != nil {
		c.Sources = sources
	}
	if err != nil {
		return c.fail(ctx, "refresh", err)
	}
	c.Message = ""
	return nil
}

// StartPipeline launches a run. Without a key no request is sent.
func (c *Console) StartPipeline(ctx context.Context, mode api.PipelineMode, maxArticles int) (*api.ActionResponse, error) {
	return c.act(ctx, "start pipeline", display.MsgStarted, func(a *api.AdminScope) (*api.ActionResponse, error) {
		return a.StartPipeline(ctx, api.StartRequest{Mode: mode, MaxArticlesPerSource: maxArticles})
	})
}

// StopPipeline asks the running pipeline to stop.
func (c *Console) StopPipeline(ctx context.Context) (*api.ActionResponse, error) {
	return c.act(ctx, "stop pipeline", display.MsgStopping, func(a *api.AdminScope) (*api.ActionResponse, error) {
		return a.StopPipeline(ctx)
	})
}

// ResetLock clears a stale pipeline lock.
func (c *Console) ResetLock(ctx context.Context) (*api.ActionResponse, error) {
	return c.act(ctx, "reset lock", display.MsgLockReset, func(a *api.AdminScope) (*api.ActionResponse, error) {
		return a.ResetLock(ctx)
	})
}

func (c *Console) act(ctx context.Context, op, okMsg string, call func(*api.AdminScope) (*api.ActionResponse, error)) (*api.ActionResponse, error) {
	admin := c.admin()
	if !admin.HasKey() {
		c.Message = display.MsgMissingKey
		return nil, fmt.Errorf("%s: %w", op, api.ErrMissingAdminKey)
	}
	resp, err := call(admin)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}
	c.Message = okMsg
	if resp.Message != "" {
		c.Message = resp.Message
	}
	c.logger.InfoContext(ctx, "admin action done", "action", op, "success", resp.Success)
	return resp, nil
}

// Panels returns the loaded panels, or nil while not authenticated.
func (c *Console) Panels() *Panels {
	if !c.IsAuthenticated {
		return nil
	}
	return &Panels{Status: c.Status, Stats: c.Stats, Sources: c.Sources}
}

// fail records err as the console message. Rejected keys end the
// authenticated state.
func (c *Console) fail(ctx context.Context, op string, err error) error {
	c.logger.WarnContext(ctx, "admin call failed", "action", op, "error", err)
	if api.IsUnauthorized(err) || api.IsForbidden(err) {
		c.deauthenticate(display.MsgInvalidKey)
		return err
	}
	c.Message = display.UserMessage(err)
	return err
}

func (c *Console) deauthenticate(msg string) {
	c.IsAuthenticated = false
	c.Status = nil
	c.Stats = nil
	c.Sources = nil
	c.Message = msg
}
