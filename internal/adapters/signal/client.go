package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
)

type Config struct {
	QueueSize        int
	MaxReconnects    int
	Backoff          time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:        32,
		MaxReconnects:    5,
		Backoff:          500 * time.Millisecond,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client is one logical signaling connection. Connect is asynchronous;
// lifecycle and inbound events are delivered through the sink. On an
// unexpected drop the client redials the same endpoint with linear
// backoff; when the budget is exhausted it reports a fatal drop.
type Client struct {
	cfg   Config
	sink  core.SignalSink
	log   zerolog.Logger
	queue *sendQueue

	mu     sync.Mutex
	conn   *websocket.Conn
	state  core.TransportState
	closed bool
	cancel context.CancelFunc
}

func NewClient(cfg Config, sink core.SignalSink) *Client {
	if cfg.QueueSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Client{
		cfg:   cfg,
		sink:  sink,
		log:   log.With().Str("module", "signal").Logger(),
		queue: newSendQueue(cfg.QueueSize),
	}
}

// dialURL converts the server address to its WebSocket form and
// attaches the access token as a query parameter.
func dialURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported scheme: " + u.Scheme)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) Connect(ctx context.Context, endpoint, token string) error {
	u, err := dialURL(endpoint, token)
	if err != nil {
		return &core.TransportError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &core.TransportError{Op: "connect", Err: errors.New("transport closed")}
	}
	if c.state != core.TransportDisconnected {
		c.mu.Unlock()
		return &core.TransportError{Op: "connect", Err: core.ErrInvalidState}
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = core.TransportConnecting
	c.mu.Unlock()

	go c.connectLoop(ctx, u)
	return nil
}

func (c *Client) connectLoop(ctx context.Context, u string) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}
		conn, resp, err := dialer.DialContext(ctx, u, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			attempts++
			c.log.Warn().Err(err).Int("attempt", attempts).Msg("dial failed")
			if attempts > c.cfg.MaxReconnects {
				c.markDisconnected()
				if !c.isClosed() {
					c.sink.OnTransportDown(&core.TransportError{Op: "connect", Err: core.ErrReconnectExhausted}, true)
				}
				return
			}
			if !sleep(ctx, time.Duration(attempts)*c.cfg.Backoff) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.state = core.TransportConnected
		c.mu.Unlock()
		attempts = 0

		c.log.Info().Msg("connected")
		c.sink.OnTransportUp()

		connCtx, connCancel := context.WithCancel(ctx)
		go c.writePump(connCtx, conn)
		readErr := c.readLoop(conn)
		connCancel()

		c.mu.Lock()
		c.conn = nil
		if !c.closed {
			c.state = core.TransportConnecting
		}
		closed := c.closed
		c.mu.Unlock()

		if closed || ctx.Err() != nil {
			return
		}
		c.log.Warn().Err(readErr).Msg("connection dropped, reconnecting")
		c.sink.OnTransportDown(readErr, false)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		dispatch(c.sink, data)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.queue.wait():
			for {
				f, ok := c.queue.pop()
				if !ok {
					break
				}
				if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
					c.requeue(f)
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
					c.log.Error().Err(err).Str("event", f.event).Msg("write error")
					c.requeue(f)
					return
				}
			}
		}
	}
}

// requeue keeps a critical frame for the next connection; dropped
// candidates are cheap to regenerate.
func (c *Client) requeue(f frame) {
	if f.critical {
		c.queue.pushFront(f)
	}
}

func (c *Client) Send(event string, payload any) error {
	if c.isClosed() {
		return &core.TransportError{Op: "send", Err: errors.New("transport closed")}
	}
	env := envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &core.TransportError{Op: "send", Err: err}
		}
		env.Data = data
	}
	data, err := json.Marshal(env)
	if err != nil {
		return &core.TransportError{Op: "send", Err: err}
	}

	if err := c.queue.push(frame{event: event, data: data, critical: critical(event)}); err != nil {
		// A critical message found no room: the channel is beyond
		// saving, fail the connection instead of losing the message.
		sendErr := &core.TransportError{Op: "send", Err: err}
		c.log.Error().Str("event", event).Msg("send queue overflow on critical message")
		c.Disconnect()
		c.sink.OnTransportDown(sendErr, true)
		return sendErr
	}
	return nil
}

// Disconnect terminates the connection and clears pending sends. Safe
// to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = core.TransportDisconnected
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	// The write pump gets a bounded window to drain critical frames,
	// so a trailing hangup is not lost to the teardown race.
	if conn != nil {
		deadline := time.Now().Add(200 * time.Millisecond)
		for c.queue.hasCritical() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.queue.clear()
	c.log.Info().Msg("disconnected")
}

// State returns the current transport state.
func (c *Client) State() core.TransportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.state = core.TransportDisconnected
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
