// Package pipeline follows the backend's scraping pipeline over its
// WebSocket feed. The connection is receive-only.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"novapress/internal/logging"
)

const (
	// Path is appended to the WebSocket base URL.
	Path = "/ws/pipeline"

	// DefaultReconnectDelay is the fixed pause between connections.
	DefaultReconnectDelay = 3 * time.Second

	maxMessageSize = 512 * 1024
	updatesBuffer  = 16
)

// Observer is notified of connection and message events.
// *metrics.Collector implements it.
type Observer interface {
	Reconnect()
	Message(msgType string)
}

// Monitor keeps a State current from the pipeline socket.
type Monitor struct {
	url      string
	header   http.Header
	dialer   *websocket.Dialer
	delay    time.Duration
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	state   State
	subs    []func(State)
	updates chan State
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Monitor) { m.dialer = d }
}

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option {
	return func(m *Monitor) { m.header = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// NewMonitor returns a Monitor for the socket under wsBase (ws:// or wss://).
func NewMonitor(wsBase string, opts ...Option) (*Monitor, error) {
	u, err := url.Parse(strings.TrimRight(wsBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("websocket url %q: scheme must be ws or wss", wsBase)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("websocket url %q: missing host", wsBase)
	}
	m := &Monitor{
		url:     u.String() + Path,
		dialer:  websocket.DefaultDialer,
		delay:   DefaultReconnectDelay,
		logger:  logging.Discard(),
		updates: make(chan State, updatesBuffer),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// URL returns the socket address.
func (m *Monitor) URL() string { return m.url }

// State returns the latest state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnState registers fn to be called with every published state, from the
// goroutine running Run.
func (m *Monitor) OnState(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Updates returns a channel of published states. When the reader falls
// behind the oldest pending state is dropped.
func (m *Monitor) Updates() <-chan State { return m.updates }

// Run connects and keeps reconnecting after DefaultReconnectDelay (or the
// configured delay) until ctx is cancelled. Once ctx is done no further
// state is published. It returns nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && m.observer != nil {
			m.observer.Reconnect()
		}
		err := m.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		m.logger.WarnContext(ctx, "pipeline socket closed, reconnecting", "error", err, "delay", m.delay)
		m.update(ctx, func(s State) State {
			s.Connected = false
			return s
		})

		t := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (m *Monitor) connect(ctx context.Context) error {
	conn, _, err := m.dialer.DialContext(ctx, m.url, m.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	m.logger.InfoContext(ctx, "pipeline socket connected", "url", m.url)
	m.update(ctx, func(s State) State {
		s.Connected = true
		return s
	})

	conn.SetReadLimit(maxMessageSize)
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			m.logger.DebugContext(ctx, "ignoring non-text pipeline frame", "frame_type", typ)
			continue
		}
		m.handle(ctx, data)
	}
}

func (m *Monitor) handle(ctx context.Context, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		m.logger.WarnContext(ctx, "ignoring malformed pipeline message", "error", err)
		m.observe("malformed")
		return
	}
	if !msg.Known() {
		m.logger.WarnContext(ctx, "ignoring unknown pipeline message", "type", msg.Type)
		m.observe("unknown")
		return
	}
	m.observe(msg.Type)
	m.update(ctx, func(s State) State { return s.Apply(msg) })
}

func (m *Monitor) observe(msgType string) {
	if m.observer != nil {
		m.observer.Message(msgType)
	}
}

// update applies fn and publishes the result unless ctx is already done.
func (m *Monitor) update(ctx context.Context, fn func(State) State) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.state = fn(m.state)
	s := m.state
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	select {
	case m.updates <- s:
	default:
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- s:
		default:
		}
	}
}
