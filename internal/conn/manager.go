// Package conn owns the WebSocket lifecycle: connect, read and parse
// frames, hand snapshots to a Handler, and reconnect with a bounded number
// of fixed-delay attempts.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/liftsync/internal/clock"
	"github.com/roach88/liftsync/internal/fleet"
)

const (
	// DefaultURL is the backend snapshot endpoint.
	DefaultURL = "ws://localhost:8000/api/ws"
	// DefaultReconnectDelay is the fixed wait before each reconnect.
	DefaultReconnectDelay = 3000 * time.Millisecond
	// DefaultMaxAttempts bounds consecutive reconnects.
	DefaultMaxAttempts = 5
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("connection manager closed")

// Config holds the connection parameters.
type Config struct {
	URL              string
	ReconnectDelay   time.Duration
	MaxAttempts      int
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the built-in endpoint and retry policy.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		ReconnectDelay:   DefaultReconnectDelay,
		MaxAttempts:      DefaultMaxAttempts,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Handler receives parsed snapshots, in arrival order, from the reader
// goroutine of the current connection.
type Handler func(fleet.Snapshot)

// Manager keeps one connection open to the snapshot endpoint.
//
// After an unexpected close it schedules a reconnect after ReconnectDelay,
// up to MaxAttempts consecutive times; a successful open resets the count.
// When the attempts run out the connection-lost observers are notified
// once and the manager stays down until Connect is called again.
//
// Thread-safety: all methods are safe for concurrent use. Observers are
// called without the manager lock held.
type Manager struct {
	cfg     Config
	handler Handler
	dialer  Dialer
	clock   clock.Clock
	logger  *slog.Logger
	newID   func() string

	// connect is what a reconnect timer calls when it fires. It is read at
	// fire time so a replaced connector is always the one used.
	connect atomic.Pointer[func(context.Context) error]

	mu           sync.Mutex
	ctx          context.Context // from the last manual Connect
	conn         Conn
	connID       string
	gen          uint64 // bumped by every dial and Disconnect
	dialing      bool
	connected    bool
	attempts     int
	timer        clock.Timer
	lostNotified bool
	closed       bool

	obsMu    sync.Mutex
	onStatus []func(bool)
	onLost   []func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer sets the transport. Default: WebsocketDialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithClock sets the clock used for reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithIDGenerator sets how connection ids are made. Default: UUIDv7.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// New creates a Manager. Zero fields in cfg take their defaults.
func New(cfg Config, handler Handler, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	m := &Manager{
		cfg:     cfg,
		handler: handler,
		clock:   clock.Real(),
		logger:  slog.Default(),
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
		ctx:     context.Background(),
	}
	m.dialer = WebsocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	for _, opt := range opts {
		opt(m)
	}
	m.setConnector(m.open)
	return m
}

// OnStatus registers fn to be called with every connectivity change.
func (m *Manager) OnStatus(fn func(connected bool)) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.onStatus = append(m.onStatus, fn)
}

// OnConnectionLost registers fn to be called when reconnect attempts are
// exhausted.
func (m *Manager) OnConnectionLost(fn func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.onLost = append(m.onLost, fn)
}

// Connected reports whether a connection is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Attempts returns the number of reconnects scheduled since the last
// successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the connection. It is a no-op when a connection is already
// open or being opened. A pending reconnect is replaced by this attempt.
//
// ctx bounds the dial and every automatic reconnect that follows; once it
// is cancelled no further reconnects are made.
//
// A failed dial is treated like a close: it is returned and also counts
// toward the reconnect budget.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.ctx = ctx
	m.stopTimerLocked()
	m.mu.Unlock()

	return (*m.connect.Load())(ctx)
}

// Disconnect cancels any pending reconnect and closes the open connection.
// No automatic reconnect happens until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	c, id := m.conn, m.connID
	m.conn, m.connID = nil, ""
	was := m.connected
	m.connected = false
	m.mu.Unlock()

	if c != nil {
		if err := c.Close(); err != nil {
			m.logger.Debug("close connection", "conn_id", id, "error", err)
		}
		m.logger.Info("disconnected", "conn_id", id)
	}
	if was {
		m.notifyStatus(false)
	}
}

// Close disconnects and refuses further Connect calls.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
}

func (m *Manager) setConnector(fn func(context.Context) error) {
	m.connect.Store(&fn)
}

// open dials once.
func (m *Manager) open(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil || m.dialing {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	c, err := m.dialer.Dial(ctx, m.cfg.URL)

	m.mu.Lock()
	m.dialing = false
	if gen != m.gen {
		// Disconnected while dialing.
		m.mu.Unlock()
		if c != nil {
			c.Close()
		}
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("connect failed", "url", m.cfg.URL, "error", err)
		m.handleClose(gen)
		return err
	}

	id := m.newID()
	m.conn, m.connID = c, id
	m.attempts = 0
	m.lostNotified = false
	m.connected = true
	m.mu.Unlock()

	m.logger.Info("connected", "url", m.cfg.URL, "conn_id", id)
	m.notifyStatus(true)

	go m.readLoop(gen, c, id)
	return nil
}

func (m *Manager) readLoop(gen uint64, c Conn, id string) {
	for {
		_, data, err := c.ReadMessage()
		if !m.current(gen) {
			return
		}
		if err != nil {
			m.logger.Warn("connection closed", "conn_id", id, "error", err)
			c.Close()
			m.handleClose(gen)
			return
		}
		m.dispatch(id, data)
	}
}

func (m *Manager) dispatch(id string, data []byte) {
	snap, err := ParseFrame(data)
	switch {
	case errors.Is(err, ErrUnknownMessageType):
		m.logger.Info("ignoring frame", "conn_id", id, "reason", err)
		return
	case err != nil:
		m.logger.Warn("dropping frame", "conn_id", id, "error", err, "bytes", len(data))
		return
	}
	if m.handler != nil {
		m.handler(snap)
	}
}

// handleClose runs once per ended connection or failed dial of generation
// gen. Stale generations are ignored.
func (m *Manager) handleClose(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.conn, m.connID = nil, ""
	was := m.connected
	m.connected = false

	lost := false
	var attempt int
	if m.attempts < m.cfg.MaxAttempts {
		m.attempts++
		attempt = m.attempts
		m.stopTimerLocked()
		m.timer = m.clock.AfterFunc(m.cfg.ReconnectDelay, func() { m.fire(gen) })
	} else if !m.lostNotified {
		m.lostNotified = true
		lost = true
	}
	m.mu.Unlock()

	if was {
		m.notifyStatus(false)
	}
	if attempt > 0 {
		m.logger.Info("reconnect scheduled",
			"attempt", attempt,
			"max_attempts", m.cfg.MaxAttempts,
			"delay", m.cfg.ReconnectDelay)
	}
	if lost {
		m.logger.Error("connection lost", "attempts", m.cfg.MaxAttempts, "url", m.cfg.URL)
		m.notifyLost()
	}
}

// fire is the reconnect timer callback for a close of generation gen.
func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ctx := m.ctx
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		m.logger.Debug("reconnect skipped", "error", err)
		return
	}
	_ = (*m.connect.Load())(ctx)
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) notifyStatus(connected bool) {
	m.obsMu.Lock()
	fns := append(([]func(bool))(nil), m.onStatus...)
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func (m *Manager) notifyLost() {
	m.obsMu.Lock()
	fns := append(([]func())(nil), m.onLost...)
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
