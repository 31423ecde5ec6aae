// Package push maintains a live websocket subscription to the backend's push
// channel, decoding frames into typed events and reconnecting after drops.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/flowcontrol/internal/events"
)

// DefaultRetryDelay is the fixed wait between a close and the next connection attempt.
const DefaultRetryDelay = 3 * time.Second

// ErrNotOpen is returned by Send when there is no open transport.
var ErrNotOpen = errors.New("push: connection not open")

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Transport is the subset of *websocket.Conn the client uses.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Transport to a websocket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials with gorilla/websocket. A nil Dialer uses websocket.DefaultDialer.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (status %d): %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// Handlers are invoked from the client's connection goroutine, one at a time.
// Any of them may be nil.
type Handlers struct {
	OnEvent func(events.Event)
	OnOpen  func()
	OnClose func()
	OnError func(error)
}

type Options struct {
	AutoReconnect bool
	RetryDelay    time.Duration
}

// DefaultOptions returns auto-reconnect with a 3 second retry delay.
func DefaultOptions() Options {
	return Options{AutoReconnect: true, RetryDelay: DefaultRetryDelay}
}

type Config struct {
	// BaseURL is the websocket base, e.g. ws://localhost:8000.
	BaseURL string
	Dialer  Dialer
	Logger  *slog.Logger
}

// Client is one logical subscriber to the push channel.
type Client struct {
	clientID string
	endpoint string
	dialer   Dialer
	handlers Handlers
	opts     Options
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	conn      Transport
	reconnect bool

	writeMu sync.Mutex
}

// Connect starts a subscription for clientID and returns immediately. Dial
// failures are reported through OnError/OnClose and retried like any other drop.
// Cancelling ctx has the same effect as Disconnect.
func Connect(ctx context.Context, cfg Config, clientID string, h Handlers, opts Options) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		clientID:  clientID,
		endpoint:  Endpoint(cfg.BaseURL, clientID),
		dialer:    dialer,
		handlers:  h,
		opts:      opts,
		logger:    logger,
		done:      make(chan struct{}),
		state:     StateConnecting,
		reconnect: opts.AutoReconnect,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
	return c
}

// Endpoint returns <base>/ws/<clientID>.
func Endpoint(base, clientID string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(clientID)
}

// WebsocketURL derives the push-channel base from an HTTP API base by
// swapping the scheme. ws:// and wss:// bases are returned unchanged.
func WebsocketURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil || u.Host == "" {
		return "ws://" + strings.TrimPrefix(strings.TrimPrefix(httpBase, "http://"), "https://")
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/")
}

func PatientClientID(patientID string) string { return "patient_" + patientID }

func AdminClientID(adminID string) string { return "admin_" + adminID }

func (c *Client) ClientID() string { return c.clientID }

func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsOpen() bool {
	return c.State() == StateOpen
}

// Done is closed once the connection goroutine has exited after Disconnect.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Disconnect stops reconnection, cancels a pending retry and closes the live
// transport. It does not wait; use Done for that. Safe to call repeatedly and
// from inside handlers.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.reconnect = false
	c.cancel()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		closeTransport(conn)
	}
}

// Send JSON-encodes payload and writes it if the connection is open.
// Nothing is queued: when closed the payload is dropped and ErrNotOpen returned.
func (c *Client) Send(payload any) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || state != StateOpen {
		c.logger.Warn("push: send dropped, connection not open", "client", c.clientID)
		return ErrNotOpen
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Client) run() {
	defer close(c.done)
	for {
		c.attempt()
		if !c.shouldReconnect() {
			return
		}

		c.logger.Info("push: reconnecting", "client", c.clientID, "delay", c.opts.RetryDelay)
		timer := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !c.shouldReconnect() {
			return
		}
	}
}

// attempt runs one connection from dial to close. The transport is always
// closed before it returns.
func (c *Client) attempt() {
	c.setState(StateConnecting)
	c.logger.Debug("push: connecting", "endpoint", c.endpoint)

	conn, err := c.dialer.Dial(c.ctx, c.endpoint)
	if err != nil {
		if c.ctx.Err() == nil {
			c.logger.Warn("push: connect failed", "endpoint", c.endpoint, "err", err)
			c.emitError(err)
		}
		c.closed()
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		closeTransport(conn)
		c.closed()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("push: connected", "client", c.clientID)
	if c.handlers.OnOpen != nil {
		c.handlers.OnOpen()
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("push: read failed", "client", c.clientID, "err", err)
				c.emitError(err)
			}
			break
		}
		c.dispatch(frame)
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close()
	c.closed()
}

func (c *Client) dispatch(frame []byte) {
	e, err := events.Decode(frame)
	switch {
	case errors.Is(err, events.ErrUnknownType):
		c.logger.Debug("push: ignoring event", "client", c.clientID, "err", err)
	case err != nil:
		c.logger.Warn("push: dropping frame", "client", c.clientID, "err", err)
	case c.handlers.OnEvent != nil:
		c.handlers.OnEvent(e)
	}
}

func (c *Client) closed() {
	c.setState(StateClosed)
	c.logger.Info("push: disconnected", "client", c.clientID)
	if c.handlers.OnClose != nil {
		c.handlers.OnClose()
	}
}

func (c *Client) emitError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) shouldReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect && c.ctx.Err() == nil
}

type controlWriter interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// closeTransport sends a close frame when the transport supports it, then closes.
func closeTransport(conn Transport) {
	if cw, ok := conn.(controlWriter); ok {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		cw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	conn.Close()
}
