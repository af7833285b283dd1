package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/infra"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Endpoint is one feed source in the statically ordered fallback list.
type Endpoint struct {
	Name   string
	URL    string // may carry a {symbol} placeholder
	Format string
}

// Config carries the feed client's startup settings.
type Config struct {
	Symbol            string
	Endpoints         []Endpoint
	HandshakeTimeout  time.Duration
	ReadTimeout       time.Duration
	PingInterval      time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	BackoffJitter     float64
	MaxPerEndpoint    int // consecutive connect failures before the next endpoint
	MaxProtocolErrors int // consecutive malformed frames before a fatal error
}

// Client owns the single logical feed connection and its reconnect state
// machine. Message handling is strictly sequential: one frame is decoded
// and handed to the handler before the next read.
type Client struct {
	cfg     Config
	handler func(*domain.DepthUpdate)
	metrics *infra.Metrics
	log     *slog.Logger

	state   atomic.Int32
	backoff *Backoff

	endpointIdx   int // current position in the fallback list
	endpointFails int // consecutive connect failures on the current endpoint
	protocolErrs  int // consecutive malformed frames

	writeMu sync.Mutex
}

// NewClient creates a feed client. The handler is invoked for every valid
// depth update; the update is pooled and must not be retained after the
// handler returns.
func NewClient(cfg Config, handler func(*domain.DepthUpdate), metrics *infra.Metrics, log *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		log:     log.With(slog.String("component", "feed")),
		backoff: NewBackoff(cfg.BackoffBase, cfg.BackoffMax, cfg.BackoffJitter),
	}
}

// State reports the connection lifecycle state for logs and the artifact.
func (c *Client) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

func (c *Client) setState(s domain.ConnectionState) {
	old := domain.ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		c.log.Debug("connection state", slog.String("from", old.String()), slog.String("to", s.String()))
	}
}

// Run drives the connect/read/reconnect loop until the context is
// cancelled or a fatal protocol error occurs. Cancellation is observed at
// every suspension point; a cancelled run returns nil after transitioning
// to ShuttingDown.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		c.setState(domain.StateShuttingDown)
		c.metrics.SetConnected(false)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		ep := c.cfg.Endpoints[c.endpointIdx]
		c.setState(domain.StateConnecting)

		conn, err := c.connect(ctx, ep)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.registerConnectFailure(ep, err)
			if !c.waitBackoff(ctx) {
				return nil
			}
			continue
		}

		c.setState(domain.StateConnected)
		c.metrics.SetConnected(true)
		c.backoff.Reset()
		c.endpointFails = 0
		c.log.Info("feed connected",
			slog.String("endpoint", ep.Name),
			slog.String("symbol", c.cfg.Symbol))

		err = c.readLoop(ctx, conn, ep)
		conn.Close()
		c.metrics.SetConnected(false)

		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !domain.IsRetriable(err) {
			// Fatal protocol failure: surface to the caller, which exits.
			c.log.Error("feed failed fatally", slog.Any("error", err))
			return err
		}

		c.log.Warn("feed disconnected", slog.String("endpoint", ep.Name), slog.Any("error", err))
		c.setState(domain.StateReconnecting)
		c.metrics.RecordReconnect()
		if !c.waitBackoff(ctx) {
			return nil
		}
	}
}

// registerConnectFailure counts a failed handshake against the current
// endpoint and advances to the next one after the configured limit,
// wrapping around the fallback list.
func (c *Client) registerConnectFailure(ep Endpoint, err error) {
	c.setState(domain.StateReconnecting)
	c.metrics.RecordReconnect()
	c.endpointFails++
	c.log.Warn("feed connect failed",
		slog.String("endpoint", ep.Name),
		slog.Int("consecutive", c.endpointFails),
		slog.Any("error", err))

	if c.endpointFails >= c.cfg.MaxPerEndpoint {
		c.endpointIdx = (c.endpointIdx + 1) % len(c.cfg.Endpoints)
		c.endpointFails = 0
		c.metrics.RecordEndpointSwitch()
		c.log.Info("switching feed endpoint",
			slog.String("next", c.cfg.Endpoints[c.endpointIdx].Name))
	}
}

// waitBackoff sleeps for the next backoff delay. Returns false when the
// context was cancelled during the wait.
func (c *Client) waitBackoff(ctx context.Context) bool {
	delay := c.backoff.Next()
	c.log.Debug("reconnect backoff", slog.Duration("delay", delay))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *Client) connect(ctx context.Context, ep Endpoint) (*websocket.Conn, error) {
	normalized := NormalizeSymbol(c.cfg.Symbol, ep.Format)
	url := strings.ReplaceAll(ep.URL, "{symbol}", normalized)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, domain.NewTransportError("dial", err)
	}

	if msg := subscribeMessage(ep.Format, c.cfg.Symbol, normalized); msg != nil {
		b, _ := json.Marshal(msg)
		if err := c.write(conn, websocket.TextMessage, b); err != nil {
			conn.Close()
			return nil, domain.NewTransportError("subscribe", err)
		}
	}
	return conn, nil
}

// subscribeMessage builds the per-format subscription payload; generic
// endpoints stream without one.
func subscribeMessage(format, symbol, normalized string) interface{} {
	switch format {
	case "okx":
		return map[string]interface{}{
			"op":   "subscribe",
			"args": []map[string]string{{"channel": "books", "instId": symbol}},
		}
	case "binance":
		return map[string]interface{}{
			"method": "SUBSCRIBE",
			"params": []string{normalized + "@depth"},
			"id":     1,
		}
	default:
		return nil
	}
}

func (c *Client) write(conn *websocket.Conn, msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(msgType, data)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, ep Endpoint) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	// Unblock a pending read promptly when the caller stops us; the ping
	// loop doubles as the heartbeat that trips the read deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go c.pingLoop(ctx, done, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return domain.NewTransportError("read", err)
		}
		if err := c.handleMessage(ep, msg); err != nil {
			return err
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, done <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one frame and routes a valid update through the
// handler. Malformed frames are dropped and counted; only a run of them
// past the threshold becomes a fatal protocol error.
func (c *Client) handleMessage(ep Endpoint, msg []byte) error {
	u := AcquireUpdate()
	err := DecodeDepth(ep.Format, ep.Name, c.cfg.Symbol, msg, u)
	if err != nil {
		ReleaseUpdate(u)
		if errors.Is(err, ErrUnrecognized) {
			return nil
		}
		c.metrics.RecordMalformed()
		c.protocolErrs++
		c.log.Debug("malformed frame dropped",
			slog.Int("consecutive", c.protocolErrs),
			slog.Any("error", err))
		if c.protocolErrs >= c.cfg.MaxProtocolErrors {
			return &domain.ProtocolError{Endpoint: ep.Name, Consecutive: c.protocolErrs, Err: err}
		}
		return nil
	}

	c.protocolErrs = 0
	c.handler(u)
	ReleaseUpdate(u)
	return nil
}
