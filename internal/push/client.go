// Package push is the client side of the backend's push channel.
//
// The backend speaks Socket.IO over a websocket (ProtocolSocketIO): the client
// completes the Engine.IO handshake, joins the default namespace, answers
// pings and decodes `42["name", data]` event packets. ProtocolJSON is a plain
// websocket carrying {"event": name, "data": payload} frames, used by
// lightweight backends and fakes. Either way the client reconnects on its
// own; the lifecycle events "connect" and "disconnect" are raised locally when
// a session starts and ends so subscribers can track connection state the
// same way they handle server events.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abelbrown/dropwatch/internal/logging"
)

// Server events.
const (
	EventTweetsUpdate = "tweets_update"
	EventConnected    = "connected"
)

// Lifecycle events raised by the client itself.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// ClientIDHeader identifies the client on the websocket handshake.
const ClientIDHeader = "X-Client-ID"

const maxMessageSize = 4 << 20

// Protocol selects the framing on the websocket.
type Protocol string

const (
	ProtocolSocketIO Protocol = "socketio"
	ProtocolJSON     Protocol = "json"
)

// Event is one server event.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of an event.
type Handler func(data json.RawMessage)

// Config configures a Client.
type Config struct {
	BaseURL          string        // http(s) or ws(s) root of the backend
	Protocol         Protocol      // default ProtocolSocketIO
	Path             string        // endpoint path, default /socket.io/ or /ws
	ClientID         string        // generated when empty
	ReconnectEvery   time.Duration // minimum spacing between dial attempts, default 2s
	PingInterval     time.Duration // default 25s
	PongWait         time.Duration // default 60s, must exceed PingInterval
	HandshakeTimeout time.Duration // default 10s
}

// Client maintains a push session and dispatches events to handlers.
type Client struct {
	url      string
	clientID string
	cfg      Config
	dialer   *websocket.Dialer
	limiter  *rate.Limiter
	log      *log.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	handlers  map[string][]Handler
	connected bool
}

// New validates cfg and creates a Client. Nothing is dialled until Run.
func New(cfg Config) (*Client, error) {
	switch cfg.Protocol {
	case "":
		cfg.Protocol = ProtocolSocketIO
	case ProtocolSocketIO, ProtocolJSON:
	default:
		return nil, fmt.Errorf("push: unknown protocol %q", cfg.Protocol)
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
		if cfg.Protocol == ProtocolSocketIO {
			cfg.Path = socketIOPath
		}
	}
	if cfg.ReconnectEvery <= 0 {
		cfg.ReconnectEvery = 2 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = max(60*time.Second, 2*cfg.PingInterval)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	wsURL, err := WebSocketURL(cfg.BaseURL, cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Protocol == ProtocolSocketIO {
		wsURL += "?" + socketIOQuery
	}

	return &Client{
		url:      wsURL,
		clientID: cfg.ClientID,
		cfg:      cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		limiter:  rate.NewLimiter(rate.Every(cfg.ReconnectEvery), 1),
		log:      logging.WithPrefix("push"),
		handlers: make(map[string][]Handler),
	}, nil
}

// WebSocketURL converts a backend root into the push endpoint URL.
// http becomes ws and https becomes wss; ws and wss are kept.
func WebSocketURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("push: invalid url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("push: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("push: url %q has no host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// URL returns the websocket URL dialled by Run.
func (c *Client) URL() string { return c.url }

// ClientID returns the identifier sent on every handshake.
func (c *Client) ClientID() string { return c.clientID }

// On registers h for event. Handlers run on the read loop in registration
// order; no further frame is read until they return.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers fn for session start.
func (c *Client) OnConnect(fn func()) {
	c.On(EventConnect, func(json.RawMessage) { fn() })
}

// OnDisconnect registers fn for session end.
func (c *Client) OnDisconnect(fn func()) {
	c.On(EventDisconnect, func(json.RawMessage) { fn() })
}

// IsConnected reports whether a session is currently established.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Run dials and re-dials until ctx is cancelled. Attempts are spaced by
// ReconnectEvery. Run returns nil once ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.log.Warn("push session ended", "url", c.url, "err", err)
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	header := http.Header{}
	header.Set(ClientIDHeader, c.clientID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to websocket (status: %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	defer func() {
		conn.Close()
		if c.setConnected(false) {
			c.log.Info("push disconnected", "url", c.url)
			c.dispatch(Event{Name: EventDisconnect})
		}
	}()

	// Socket.IO sessions are up once the namespace join is acknowledged.
	if c.cfg.Protocol == ProtocolJSON {
		c.up()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(conn) })
	g.Go(func() error { return c.pingPump(gctx, conn) })
	return g.Wait()
}

func (c *Client) up() {
	c.setConnected(true)
	c.log.Info("push connected", "url", c.url, "client_id", c.clientID)
	c.dispatch(Event{Name: EventConnect})
}

// readPump decodes frames until the connection fails. It always returns a
// non-nil error so the session's errgroup tears down the ping pump.
func (c *Client) readPump(conn *websocket.Conn) error {
	wait := c.cfg.PongWait
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
				return errSessionClosed
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(wait))

		if c.cfg.Protocol == ProtocolSocketIO {
			if err := c.handleSocketIO(conn, data, &wait); err != nil {
				return err
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			c.log.Warn("dropping malformed frame", "bytes", len(data), "err", err)
			continue
		}
		c.dispatch(ev)
	}
}

var errSessionClosed = errors.New("push: session closed")

// handleSocketIO acts on one Engine.IO frame. The handshake may widen wait
// to the server's ping interval plus timeout.
func (c *Client) handleSocketIO(conn *websocket.Conn, frame []byte, wait *time.Duration) error {
	kind, ev, err := decodeSocketIO(frame)
	if err != nil {
		c.log.Warn("dropping malformed frame", "bytes", len(frame), "err", err)
		return nil
	}

	switch kind {
	case packetOpen:
		var open openPayload
		if err := json.Unmarshal(ev.Data, &open); err != nil {
			return fmt.Errorf("socket.io handshake: %w", err)
		}
		if d := open.liveness(); d > *wait {
			*wait = d
			conn.SetReadDeadline(time.Now().Add(d))
		}
		c.log.Debug("socket.io open", "sid", open.SID, "ping_interval_ms", open.PingInterval)
		return c.writeText(conn, sioConnect)
	case packetPing:
		return c.writeText(conn, eioPong)
	case packetConnect:
		if !c.IsConnected() {
			c.up()
		}
	case packetConnectError:
		return fmt.Errorf("socket.io connect refused: %s", ev.Data)
	case packetClose:
		return errSessionClosed
	case packetEvent:
		c.dispatch(ev)
	}
	return nil
}

// writeText sends one text frame. Only the read loop writes data frames;
// the ping pump uses control frames, which may be written concurrently.
func (c *Client) writeText(conn *websocket.Conn, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// pingPump sends websocket pings. On shutdown it sends a close frame and
// closes the socket, which unblocks readPump.
func (c *Client) pingPump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return ctx.Err()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				conn.Close()
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// setConnected stores v and returns the previous value.
func (c *Client) setConnected(v bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.connected
	c.connected = v
	return prev
}

func (c *Client) dispatch(ev Event) {
	c.mu.RLock()
	hs := append([]Handler(nil), c.handlers[ev.Name]...)
	c.mu.RUnlock()

	if len(hs) == 0 {
		c.log.Debug("unhandled event", "event", ev.Name)
		return
	}
	for _, h := range hs {
		h(ev.Data)
	}
}
