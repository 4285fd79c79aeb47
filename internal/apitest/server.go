// Package apitest provides an in-process fake of the dropwatch backend: the
// two snapshot endpoints and the push channel, served both as Socket.IO at
// /socket.io/ and as plain JSON frames at /ws.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abelbrown/dropwatch/internal/feed"
)

// ClientIDHeader carries the push client identifier on the websocket dial.
const ClientIDHeader = "X-Client-ID"

// Server is a fake backend. The zero state serves empty successful snapshots.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	stats       feed.Stats
	posts       []feed.Post
	statsStatus int
	postsStatus int
	statsReject bool
	postsReject bool
	requests    []string
	limits      []int
	clientIDs   []string
	clients     map[*wsClient]struct{}
	pongs       int
}

type wsClient struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	socketIO bool
	joined   bool // guarded by Server.mu
}

func (c *wsClient) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// emit sends an event in the client's framing: `42["event",data]` for
// Socket.IO, {"event":...,"data":...} otherwise.
func (c *wsClient) emit(event string, data json.RawMessage) error {
	var frame []byte
	var err error
	if c.socketIO {
		frame, err = json.Marshal([]any{event, data})
		frame = append([]byte("42"), frame...)
	} else {
		frame, err = json.Marshal(map[string]any{"event": event, "data": data})
	}
	if err != nil {
		return fmt.Errorf("apitest: encode %s: %w", event, err)
	}
	return c.write(frame)
}

// New starts a fake backend. Call Close when done.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		statsStatus: http.StatusOK,
		postsStatus: http.StatusOK,
		clients:     make(map[*wsClient]struct{}),
	}

	router := gin.New()
	router.GET("/api/stats", s.handleStats)
	router.GET("/api/airdrop-tweets", s.handlePosts)
	router.GET("/ws", s.handleWebSocket)
	router.GET("/socket.io/", s.handleSocketIO)

	s.srv = httptest.NewServer(router)
	return s
}

// URL returns the http base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close disconnects all push clients and shuts the server down.
func (s *Server) Close() {
	s.DropClients()
	s.srv.Close()
}

// SetStats sets the stats snapshot.
func (s *Server) SetStats(st feed.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = st
}

// SetPosts sets the posts snapshot.
func (s *Server) SetPosts(posts []feed.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = posts
}

// FailStats makes /api/stats answer with the given HTTP status.
// Pass http.StatusOK to restore normal behaviour.
func (s *Server) FailStats(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsStatus = status
}

// FailPosts makes /api/airdrop-tweets answer with the given HTTP status.
func (s *Server) FailPosts(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postsStatus = status
}

// RejectStats toggles a success=false envelope on /api/stats.
func (s *Server) RejectStats(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsReject = reject
}

// RejectPosts toggles a success=false envelope on /api/airdrop-tweets.
func (s *Server) RejectPosts(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postsReject = reject
}

// Requests returns the request paths served so far, in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Limits returns the limit query values received by the posts endpoint.
func (s *Server) Limits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.limits...)
}

// ClientIDs returns the client identifiers presented on websocket dials.
func (s *Server) ClientIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clientIDs...)
}

// Clients returns the number of push clients ready for events. Socket.IO
// clients count once they have joined the default namespace.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.clients {
		if c.joined {
			n++
		}
	}
	return n
}

// Pongs returns the number of Engine.IO pongs received.
func (s *Server) Pongs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}

// Ping sends an Engine.IO ping to every Socket.IO client.
func (s *Server) Ping() error {
	for _, c := range s.ready() {
		if !c.socketIO {
			continue
		}
		if err := c.write([]byte("2")); err != nil {
			return fmt.Errorf("apitest: ping: %w", err)
		}
	}
	return nil
}

func (s *Server) ready() []*wsClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		if c.joined {
			clients = append(clients, c)
		}
	}
	return clients
}

// WaitForClients polls until at least n push clients are connected.
func (s *Server) WaitForClients(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Clients() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// Broadcast sends a push event to every connected client.
func (s *Server) Broadcast(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("apitest: marshal %s payload: %w", event, err)
	}

	for _, c := range s.ready() {
		if err := c.emit(event, raw); err != nil {
			return fmt.Errorf("apitest: broadcast %s: %w", event, err)
		}
	}
	return nil
}

// SendRaw writes text verbatim as a frame to every connected client.
func (s *Server) SendRaw(text string) error {
	for _, c := range s.ready() {
		if err := c.write([]byte(text)); err != nil {
			return fmt.Errorf("apitest: raw send: %w", err)
		}
	}
	return nil
}

// DropClients closes every push connection from the server side.
func (s *Server) DropClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.URL.Path)
	status, reject, stats := s.statsStatus, s.statsReject, s.stats
	s.mu.Unlock()

	if status != http.StatusOK {
		c.JSON(status, gin.H{"success": false, "error": http.StatusText(status)})
		return
	}
	if reject {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func (s *Server) handlePosts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		limit = 20
	}

	s.mu.Lock()
	s.requests = append(s.requests, c.Request.URL.Path)
	s.limits = append(s.limits, limit)
	status, reject := s.postsStatus, s.postsReject
	posts := s.posts
	if len(posts) > limit {
		posts = posts[:limit]
	}
	posts = append([]feed.Post{}, posts...)
	s.mu.Unlock()

	if status != http.StatusOK {
		c.JSON(status, gin.H{"success": false, "error": http.StatusText(status)})
		return
	}
	if reject {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "posts unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      posts,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := s.register(c, conn, false)
	defer s.unregister(client)

	s.mu.Lock()
	client.joined = true
	s.mu.Unlock()
	client.emit("connected", connectedPayload)

	// Reading keeps ping/pong and close frames flowing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var connectedPayload = json.RawMessage(`{"message":"connected"}`)

// handleSocketIO speaks the server side of Engine.IO v4 / Socket.IO v5 on the
// websocket transport: open packet, namespace join, pings and events.
func (s *Server) handleSocketIO(c *gin.Context) {
	if c.Query("EIO") != "4" || c.Query("transport") != "websocket" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 0, "message": "Transport unknown"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := s.register(c, conn, true)
	defer s.unregister(client)

	sid := strconv.FormatInt(time.Now().UnixNano(), 36)
	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
	if err := client.write([]byte(open)); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch frame := string(data); {
		case frame == "3":
			s.mu.Lock()
			s.pongs++
			s.mu.Unlock()
		case frame == "40" || strings.HasPrefix(frame, "40{"):
			if err := client.write([]byte(fmt.Sprintf(`40{"sid":%q}`, sid+"-ns"))); err != nil {
				return
			}
			s.mu.Lock()
			client.joined = true
			s.mu.Unlock()
			client.emit("connected", connectedPayload)
		case frame == "41" || frame == "1":
			return
		}
	}
}

func (s *Server) register(c *gin.Context, conn *websocket.Conn, socketIO bool) *wsClient {
	client := &wsClient{conn: conn, socketIO: socketIO}
	s.mu.Lock()
	s.clientIDs = append(s.clientIDs, c.GetHeader(ClientIDHeader))
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	return client
}

func (s *Server) unregister(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	client.conn.Close()
}
