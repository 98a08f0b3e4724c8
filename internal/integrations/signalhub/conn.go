// Package signalhub implements the client side of the platform's push
// channel: one persistent websocket connection per logical hub, named server
// events, invoke round-trips and automatic reconnect on a fixed schedule.
package signalhub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/realtime/stream"
)

// ErrNotConnected is returned by Invoke when there is no live connection.
// Callers that need the connection up should go through Start first.
var ErrNotConnected = errors.New("hub not connected")

// DefaultRetrySchedule mirrors the backend contract: retry immediately, then
// after 2s, 5s, 10s, and keep retrying every 10s until stopped. There is no
// give-up state.
var DefaultRetrySchedule = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}

const defaultHandshakeTimeout = 10 * time.Second

type Options struct {
	// URL is the hub endpoint, e.g. wss://host/hubs/restaurant-notifications.
	URL string

	// TokenFactory, when set, supplies the bearer token attached to every
	// dial (initial and reconnect).
	TokenFactory func() (string, error)

	HandshakeTimeout time.Duration
	RetrySchedule    []time.Duration

	// Dialer override for tests.
	Dialer *websocket.Dialer
}

type invokeResult struct {
	err error
}

// Conn owns exactly one live websocket per hub. All exported methods are
// safe for concurrent use; overlapping Start calls share one handshake.
type Conn struct {
	opts Options

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
	stopped   bool
	starting  chan struct{}
	startErr  error

	writeMu sync.Mutex

	nextInvokeID uint64
	pending      map[uint64]chan invokeResult

	handlersMu    sync.RWMutex
	handlers      map[string]func(json.RawMessage)
	onReconnected []func()

	state *stream.Stream[bool]
}

func New(opts Options) *Conn {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if len(opts.RetrySchedule) == 0 {
		opts.RetrySchedule = DefaultRetrySchedule
	}
	return &Conn{
		opts:     opts,
		pending:  make(map[uint64]chan invokeResult),
		handlers: make(map[string]func(json.RawMessage)),
		state:    stream.NewReplay[bool](),
	}
}

// On registers a handler for a named server event. Handlers run on the read
// loop in arrival order; they must not block.
func (c *Conn) On(event string, fn func(payload json.RawMessage)) {
	c.handlersMu.Lock()
	c.handlers[event] = fn
	c.handlersMu.Unlock()
}

// OnReconnected registers a callback fired after every successful redial.
// Server-side group membership does not survive a dropped socket, so the
// membership layer uses this to replay its joins.
func (c *Conn) OnReconnected(fn func()) {
	c.handlersMu.Lock()
	c.onReconnected = append(c.onReconnected, fn)
	c.handlersMu.Unlock()
}

// State exposes the connection state as a replay-latest boolean stream.
func (c *Conn) State() *stream.Stream[bool] {
	return c.state
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Start establishes the connection. Idempotent: connected means no-op, and
// concurrent callers wait on the same in-flight handshake. A handshake
// failure is returned to every waiting caller; retries beyond that are the
// reconnect loop's business, which only runs after a previously successful
// connection drops. A Stop issued while the handshake is in flight wins:
// the freshly dialed socket is discarded and Start returns with no
// connection up.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.starting != nil {
		wait := c.starting
		c.mu.Unlock()
		select {
		case <-wait:
			c.mu.Lock()
			err := c.startErr
			c.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.stopped = false
	c.starting = make(chan struct{})
	c.mu.Unlock()

	ws, err := c.dial(ctx)

	c.mu.Lock()
	done := c.starting
	c.starting = nil
	if err != nil {
		c.startErr = errors.Wrap(err, "hub handshake")
		c.mu.Unlock()
		c.state.Publish(false)
		close(done)
		return c.startErr
	}
	if c.stopped {
		// Stop обогнал хендшейк: сокет закрываем, соединение не поднимаем.
		c.startErr = nil
		c.mu.Unlock()
		_ = ws.Close()
		close(done)
		return nil
	}
	c.startErr = nil
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	c.state.Publish(true)
	close(done)
	go c.readLoop(ws)

	slog.Info("hub connected", "url", c.opts.URL)
	return nil
}

// Stop tears the connection down and disables reconnect. Safe to call when
// already stopped.
func (c *Conn) Stop() {
	c.mu.Lock()
	if c.stopped && c.ws == nil {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	ws := c.ws
	c.ws = nil
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}
	if wasConnected {
		c.state.Publish(false)
	}
}

// Invoke sends a named invocation and waits for the server's result frame.
// No client-side timeout beyond ctx; round-trip deadlines are left to the
// caller.
func (c *Conn) Invoke(ctx context.Context, target string, args ...any) error {
	c.mu.Lock()
	if !c.connected || c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.nextInvokeID++
	id := c.nextInvokeID
	res := make(chan invokeResult, 1)
	c.pending[id] = res
	c.mu.Unlock()

	f := frame{Type: frameInvoke, ID: id, Target: target}
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			c.dropPending(id)
			return errors.Wrap(err, "marshal invoke arg")
		}
		f.Args = append(f.Args, json.RawMessage(b))
	}

	c.writeMu.Lock()
	err := ws.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		return errors.Wrapf(err, "invoke %s", target)
	}

	select {
	case r := <-res:
		if r.err != nil {
			return errors.Wrapf(r.err, "invoke %s", target)
		}
		return nil
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	}
}

func (c *Conn) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	d := c.opts.Dialer
	if d == nil {
		d = &websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	}

	var hdr http.Header
	if c.opts.TokenFactory != nil {
		token, err := c.opts.TokenFactory()
		if err != nil {
			return nil, errors.Wrap(err, "token factory")
		}
		if token != "" {
			hdr = http.Header{"Authorization": []string{"Bearer " + token}}
		}
	}

	ws, _, err := d.DialContext(ctx, c.opts.URL, hdr)
	return ws, err
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var f frame
		if err := ws.ReadJSON(&f); err != nil {
			c.handleDrop(ws, err)
			return
		}
		switch f.Type {
		case frameResult:
			c.mu.Lock()
			res, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				var err error
				if f.Error != "" {
					err = errors.New(f.Error)
				}
				res <- invokeResult{err: err}
			}
		case frameEvent:
			c.handlersMu.RLock()
			fn := c.handlers[f.Target]
			c.handlersMu.RUnlock()
			if fn != nil {
				fn(f.Payload)
			}
		default:
			// Unknown frame types are ignored so the protocol can grow.
		}
	}
}

func (c *Conn) handleDrop(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.ws != ws {
		// An old socket's read loop noticing its own teardown.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	stopped := c.stopped
	pending := c.pending
	c.pending = make(map[uint64]chan invokeResult)
	c.mu.Unlock()

	for _, res := range pending {
		res <- invokeResult{err: errors.Wrap(cause, "connection lost")}
	}

	_ = ws.Close()
	c.state.Publish(false)

	if stopped {
		return
	}
	slog.Warn("hub connection lost, reconnecting", "url", c.opts.URL, "error", cause.Error())
	go c.reconnectLoop()
}

// reconnectLoop redials on the fixed schedule and keeps retrying at the last
// interval until it succeeds or the connection is stopped.
func (c *Conn) reconnectLoop() {
	for attempt := 0; ; attempt++ {
		delay := c.opts.RetrySchedule[min(attempt, len(c.opts.RetrySchedule)-1)]
		if delay > 0 {
			time.Sleep(delay)
		}

		c.mu.Lock()
		if c.stopped || c.connected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
		ws, err := c.dial(ctx)
		cancel()
		if err != nil {
			slog.Warn("hub redial failed", "url", c.opts.URL, "attempt", attempt+1, "error", err.Error())
			continue
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			_ = ws.Close()
			return
		}
		c.ws = ws
		c.connected = true
		c.mu.Unlock()

		go c.readLoop(ws)
		c.state.Publish(true)
		slog.Info("hub reconnected", "url", c.opts.URL, "attempt", attempt+1)

		c.handlersMu.RLock()
		callbacks := append([]func(){}, c.onReconnected...)
		c.handlersMu.RUnlock()
		for _, fn := range callbacks {
			fn()
		}
		return
	}
}
