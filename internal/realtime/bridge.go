package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/cultcreative/deck/internal/retry"
)

// ErrNotConnected is returned by Emit while the socket is down.
var ErrNotConnected = errors.New("realtime: not connected")

const defaultReconnectBase = 500 * time.Millisecond

// Handler receives the raw payload of one event.
type Handler func(payload json.RawMessage)

// Config describes one user's socket.
type Config struct {
	URL    string // ws:// or wss://
	Origin string // defaults to the http(s) form of URL
	UserID string
	Token  string
	Logger *zap.Logger
	// ReconnectBase is the first reconnect delay; it doubles per failure.
	ReconnectBase time.Duration
}

// Bridge routes socket events to registered handlers. Handlers run serially
// on the reader goroutine.
type Bridge struct {
	cfg Config
	log *zap.Logger

	mu        sync.Mutex
	handlers  map[string]map[uint64]Handler
	reconnect map[uint64]func()
	nextID    uint64
	conn      *websocket.Conn
	closed    bool
	done      chan struct{}

	writeMu sync.Mutex
}

// NewBridge returns an unconnected bridge. Call Run to connect.
func NewBridge(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	return &Bridge{
		cfg:       cfg,
		log:       logger.Named("realtime").With(zap.String("user", cfg.UserID)),
		handlers:  make(map[string]map[uint64]Handler),
		reconnect: make(map[uint64]func()),
		done:      make(chan struct{}),
	}
}

// UserID returns the user the bridge registers as.
func (b *Bridge) UserID() string {
	return b.cfg.UserID
}

// On registers h for event. The returned func removes it and is safe to call
// more than once.
func (b *Bridge) On(event string, h Handler) (off func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[uint64]Handler)
	}
	b.handlers[event][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
		if len(b.handlers[event]) == 0 {
			delete(b.handlers, event)
		}
	}
}

// Listen registers a typed handler. Payloads that do not decode into T are
// logged and dropped.
func Listen[T any](b *Bridge, event string, fn func(T)) (off func()) {
	return b.On(event, func(raw json.RawMessage) {
		var v T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &v); err != nil {
				b.log.Debug("dropping undecodable event", zap.String("event", event), zap.Error(err))
				return
			}
		}
		fn(v)
	})
}

// OnReconnect registers fn to run after the socket comes back following a
// disconnect. It does not run for the first connection.
func (b *Bridge) OnReconnect(fn func()) (off func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.reconnect[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.reconnect, id)
	}
}

// Handlers returns the number of registered handlers for event.
func (b *Bridge) Handlers(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}

// Connected reports whether the socket is currently up.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Emit sends a client event.
func (b *Bridge) Emit(event string, payload any) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return b.send(conn, event, payload)
}

// Run connects and dispatches events until ctx is cancelled or Close is
// called. Disconnects are retried with backoff and never returned.
func (b *Bridge) Run(ctx context.Context) error {
	if strings.TrimSpace(b.cfg.URL) == "" {
		return fmt.Errorf("realtime: socket url is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	failures := 0
	connectedBefore := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := b.dial(ctx)
		if err != nil {
			failures++
			b.log.Debug("dial failed", zap.Int("failures", failures), zap.Error(err))
			if !b.sleep(ctx, retry.Backoff(failures-1, b.cfg.ReconnectBase)) {
				return nil
			}
			continue
		}

		if err := b.send(conn, EventRegister, Register{UserID: b.cfg.UserID}); err != nil {
			_ = conn.Close()
			failures++
			b.log.Debug("register failed", zap.Error(err))
			if !b.sleep(ctx, retry.Backoff(failures-1, b.cfg.ReconnectBase)) {
				return nil
			}
			continue
		}
		failures = 0
		b.setConn(conn)
		b.log.Info("socket connected", zap.Bool("reconnect", connectedBefore))
		if connectedBefore {
			b.fireReconnect()
		}
		connectedBefore = true

		err = b.readLoop(ctx, conn)
		b.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		failures++
		b.log.Warn("socket disconnected", zap.Error(err))
		if !b.sleep(ctx, retry.Backoff(failures-1, b.cfg.ReconnectBase)) {
			return nil
		}
	}
}

// Close removes every handler and disconnects. It is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = make(map[string]map[uint64]Handler)
	b.reconnect = make(map[uint64]func())
	conn := b.conn
	b.conn = nil
	close(b.done)
	b.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	origin := b.cfg.Origin
	if origin == "" {
		origin = originFor(b.cfg.URL)
	}
	cfg, err := websocket.NewConfig(b.cfg.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("socket config: %w", err)
	}
	if b.cfg.Token != "" {
		cfg.Header = make(http.Header)
		cfg.Header.Set("Authorization", "Bearer "+b.cfg.Token)
	}
	return cfg.DialContext(ctx)
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			return err
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			b.log.Debug("dropping invalid frame", zap.Error(err))
			continue
		}
		b.dispatch(frame)
	}
}

func (b *Bridge) dispatch(frame Frame) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[frame.Type]))
	for _, h := range b.handlers[frame.Type] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	if len(hs) == 0 {
		b.log.Debug("unhandled event", zap.String("event", frame.Type))
		return
	}
	for _, h := range hs {
		b.invoke(frame, h)
	}
}

func (b *Bridge) invoke(frame Frame, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", zap.String("event", frame.Type), zap.Any("panic", r))
		}
	}()
	h(frame.Payload)
}

func (b *Bridge) send(conn *websocket.Conn, event string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		raw = encoded
	}
	frame := Frame{Type: event, RequestID: uuid.NewString(), Payload: raw}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := websocket.JSON.Send(conn, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed && conn != nil {
		_ = conn.Close()
		return
	}
	b.conn = conn
}

func (b *Bridge) fireReconnect() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.reconnect))
	for _, fn := range b.reconnect {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *Bridge) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func originFor(socketURL string) string {
	switch {
	case strings.HasPrefix(socketURL, "wss://"):
		return "https://" + hostOf(strings.TrimPrefix(socketURL, "wss://"))
	case strings.HasPrefix(socketURL, "ws://"):
		return "http://" + hostOf(strings.TrimPrefix(socketURL, "ws://"))
	default:
		return "http://localhost/"
	}
}

func hostOf(rest string) string {
	host, _, _ := strings.Cut(rest, "/")
	return host + "/"
}
