// Package feed pages through the live syntheses feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"novapress/internal/api"
	"novapress/internal/logging"
)

var (
	// ErrExhausted is returned by LoadMore once the backend reported no more
	// pages for the current window.
	ErrExhausted = errors.New("no more syntheses")

	// ErrSuperseded is returned when the window changed while a page was
	// loading. The page is discarded.
	ErrSuperseded = errors.New("time window changed during load")

	// ErrLoading is returned when a page is already being loaded.
	ErrLoading = errors.New("page already loading")
)

// DefaultPageSize is the limit sent with each request.
const DefaultPageSize = 20

// LiveFetcher loads one page of the live feed. *api.SynthesisScope
// implements it.
type LiveFetcher interface {
	Live(ctx context.Context, q api.LiveQuery) (*api.LivePage, error)
}

// Pager accumulates pages of the live feed for one time window.
type Pager struct {
	fetcher  LiveFetcher
	pageSize int
	logger   *slog.Logger

	mu        sync.Mutex
	hours     int
	gen       uint64
	cancel    context.CancelFunc
	loading   bool
	offset    int
	total     int
	exhausted bool
	items     []api.Synthesis
	seen      map[string]struct{}
}

// Option configures a Pager.
type Option func(*Pager)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pager) { p.logger = l }
}

// NewPager returns a Pager over the last hours hours. Zero hours lets the
// backend choose the window.
func NewPager(f LiveFetcher, hours int, opts ...Option) *Pager {
	p := &Pager{
		fetcher:  f,
		pageSize: DefaultPageSize,
		logger:   logging.Discard(),
		hours:    hours,
		seen:     map[string]struct{}{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LoadMore fetches the next page and returns the syntheses it added.
func (p *Pager) LoadMore(ctx context.Context) ([]api.Synthesis, error) {
	p.mu.Lock()
	if p.exhausted {
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	if p.loading {
		p.mu.Unlock()
		return nil, ErrLoading
	}
	gen := p.gen
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.loading = true
	q := api.LiveQuery{Hours: p.hours, Limit: p.pageSize, Offset: p.offset}
	p.mu.Unlock()

	page, err := p.fetcher.Live(reqCtx, q)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.logger.DebugContext(ctx, "discarding superseded page", "offset", q.Offset, "hours", q.Hours)
		return nil, ErrSuperseded
	}
	p.loading = false
	p.cancel = nil
	if err != nil {
		return nil, fmt.Errorf("load page at offset %d: %w", q.Offset, err)
	}

	var added []api.Synthesis
	for _, s := range page.Data {
		if _, dup := p.seen[s.ID]; dup {
			continue
		}
		p.seen[s.ID] = struct{}{}
		added = append(added, s)
	}
	p.items = append(p.items, added...)
	p.total = page.Total
	if page.NextOffset > q.Offset {
		p.offset = page.NextOffset
	} else {
		p.offset = q.Offset + len(page.Data)
	}
	p.exhausted = !page.HasMore || len(page.Data) == 0
	return added, nil
}

// SetWindow switches to a new time window. Any in-flight load is cancelled
// and the accumulated items are cleared.
func (p *Pager) SetWindow(hours int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.loading = false
	p.hours = hours
	p.offset = 0
	p.total = 0
	p.exhausted = false
	p.items = nil
	p.seen = map[string]struct{}{}
}

// Reset starts the current window over.
func (p *Pager) Reset() {
	p.SetWindow(p.Hours())
}

// Items returns a copy of everything loaded so far.
func (p *Pager) Items() []api.Synthesis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.Synthesis(nil), p.items...)
}

// Hours returns the current window.
func (p *Pager) Hours() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hours
}

// Total is the backend's count for the window, as of the last page.
func (p *Pager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Exhausted reports whether the last page said there was nothing more.
func (p *Pager) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}
