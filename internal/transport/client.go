// Package transport owns the persistent websocket to the search backend:
// connect, heartbeat, reconnection with capped exponential backoff, and
// forwarding of decoded events to a dispatcher.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/treewatch/internal/metrics"
	"github.com/ziadkadry99/treewatch/internal/protocol"
)

// ErrNotConnected is returned by Send when the request was queued for a
// retry instead of written.
var ErrNotConnected = errors.New("not connected")

const writeTimeout = 10 * time.Second

// Dispatcher receives every decoded inbound event and every local
// connection event, in order.
type Dispatcher interface {
	Dispatch(ev protocol.Event)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ev protocol.Event)

func (f DispatchFunc) Dispatch(ev protocol.Event) { f(ev) }

// Options configures a Client. Zero values fall back to the defaults
// below.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	SendRetryDelay    time.Duration
	ReconnectBase     time.Duration
	ReconnectCap      time.Duration
	MaxAttempts       int
	HandshakeTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 20 * time.Second
	}
	if o.SendRetryDelay <= 0 {
		o.SendRetryDelay = 500 * time.Millisecond
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectCap <= 0 {
		o.ReconnectCap = 10 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 8
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
}

// Client maintains one websocket connection to the backend.
type Client struct {
	opts       Options
	dispatcher Dispatcher
	logger     zerolog.Logger
	dialer     *websocket.Dialer
	backoff    *Backoff

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	cancel    context.CancelFunc
	timers    map[*time.Timer]struct{}

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a client. Nothing is dialled until Connect.
func New(opts Options, dispatcher Dispatcher, logger zerolog.Logger) *Client {
	opts.applyDefaults()
	return &Client{
		opts:       opts,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "transport").Logger(),
		dialer:     &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		backoff:    NewBackoff(opts.ReconnectBase, opts.ReconnectCap, opts.MaxAttempts),
		timers:     make(map[*time.Timer]struct{}),
	}
}

// Connect starts the connection loop in the background. The loop runs until
// ctx is cancelled, Close is called, or reconnection attempts run out.
func (c *Client) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connectLoop(ctx)
	}()
}

// Close stops the connection loop, closes the socket and cancels pending
// send retries. It blocks until the background goroutines have exited.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	for t := range c.timers {
		t.Stop()
	}
	c.timers = map[*time.Timer]struct{}{}
	c.mu.Unlock()

	c.wg.Wait()
}

// Connected reports whether the socket is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send writes req if the socket is open. Otherwise the request is retried
// once after SendRetryDelay and then dropped, in which case a
// protocol.SendFailed event is dispatched. ErrNotConnected signals that
// the request was queued rather than written.
func (c *Client) Send(req protocol.Request) error {
	if err := c.write(req); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotConnected) {
		c.logger.Warn().Err(err).Str("type", string(req.Type)).Msg("Write failed, retrying once")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client closed: %w", ErrNotConnected)
	}

	var t *time.Timer
	t = time.AfterFunc(c.opts.SendRetryDelay, func() {
		c.mu.Lock()
		_, pending := c.timers[t]
		delete(c.timers, t)
		c.mu.Unlock()
		if !pending {
			return
		}

		if err := c.write(req); err != nil {
			metrics.DroppedRequests.Inc()
			c.logger.Warn().Err(err).Str("type", string(req.Type)).Msg("Dropping request after retry")
			c.dispatcher.Dispatch(protocol.SendFailed{Request: req, Err: err})
		}
	})
	c.timers[t] = struct{}{}
	return ErrNotConnected
}

func (c *Client) write(req protocol.Request) error {
	data, err := req.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", req.Type, err)
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", req.Type, err)
	}
	return nil
}

// connectLoop dials, reads until the connection drops, and waits out the
// backoff schedule between attempts.
func (c *Client) connectLoop(ctx context.Context) {
	for {
		err := c.runConnection(ctx)
		if ctx.Err() != nil {
			return
		}

		delay, ok := c.backoff.Next()
		if !ok {
			c.logger.Error().Err(err).Int("attempts", c.backoff.MaxAttempts).Msg("Giving up on backend connection")
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			c.dispatcher.Dispatch(protocol.ConnectionLost{Attempts: c.backoff.MaxAttempts, Err: msg})
			return
		}

		metrics.ReconnectAttempts.Inc()
		c.logger.Warn().
			Err(err).
			Int("attempt", c.backoff.Attempt()).
			Dur("delay", delay).
			Msg("Backend connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runConnection dials once and blocks reading frames until the connection
// fails or ctx is cancelled.
func (c *Client) runConnection(ctx context.Context) error {
	c.logger.Debug().Str("url", c.opts.URL).Msg("Dialing backend")

	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ctx.Err()
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.backoff.Reset()
	metrics.Connected.Set(1)
	c.logger.Info().Str("url", c.opts.URL).Msg("Connected to backend")
	c.dispatcher.Dispatch(protocol.ConnectionState{Connected: true})

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.heartbeat(hbCtx)
	}()

	err = c.readLoop(conn)

	stopHeartbeat()
	c.mu.Lock()
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	conn.Close()
	metrics.Connected.Set(0)

	if ctx.Err() == nil {
		c.dispatcher.Dispatch(protocol.ConnectionState{Connected: false})
	}
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			metrics.MalformedMessages.Inc()
			c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Discarding malformed message")
			continue
		}

		metrics.EventsReceived.WithLabelValues(string(ev.Kind())).Inc()
		if u, ok := ev.(protocol.Unknown); ok {
			c.logger.Debug().Str("event", u.Name).Msg("Unknown event")
		}
		c.dispatcher.Dispatch(ev)
	}
}

func (c *Client) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(protocol.Ping()); err != nil {
				c.logger.Debug().Err(err).Msg("Heartbeat failed")
			}
		}
	}
}
