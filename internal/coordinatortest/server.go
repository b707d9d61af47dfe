// Package coordinatortest runs an in-process call coordinator for tests. It
// speaks the control protocol over a real WebSocket and serves recording
// artifacts over HTTP.
package coordinatortest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	waitTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is one decoded control event.
type Frame map[string]any

// Server is a fake coordinator bound to a test.
type Server struct {
	t    testing.TB
	http *httptest.Server

	conns chan *Conn

	mu         sync.Mutex
	recordings map[string][]byte
}

// New starts a coordinator that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t:          t,
		conns:      make(chan *Conn, 8),
		recordings: make(map[string][]byte),
	}

	r := chi.NewRouter()
	r.Get("/ws", s.serveWS)
	r.Head("/api/recordings/{name}", s.serveRecording)
	r.Get("/api/recordings/{name}", s.serveRecording)

	s.http = httptest.NewServer(r)
	t.Cleanup(s.http.Close)
	return s
}

// WebSocketURL is the control channel endpoint.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

// RecordingsURL is the base URL recordings are served from.
func (s *Server) RecordingsURL() string {
	return s.http.URL + "/api/recordings"
}

// AddRecording makes an artifact available for download.
func (s *Server) AddRecording(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[name] = content
}

// Accept waits for the next client to connect.
func (s *Server) Accept() *Conn {
	s.t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(waitTimeout):
		s.t.Fatal("timed out waiting for a client to connect")
		return nil
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Logf("upgrade failed: %v", err)
		return
	}

	c := &Conn{
		t:      s.t,
		ws:     ws,
		frames: make(chan Frame, 64),
	}
	go c.readPump()
	s.conns <- c
}

func (s *Server) serveRecording(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	content, ok := s.recordings[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "video/webm")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Write(content)
}

// Conn is the coordinator side of one client connection.
type Conn struct {
	t      testing.TB
	ws     *websocket.Conn
	wmu    sync.Mutex
	frames chan Frame
}

func (c *Conn) readPump() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.t.Logf("client sent malformed frame: %s", data)
			continue
		}
		c.frames <- f
	}
}

// Send pushes an inbound action to the client.
func (c *Conn) Send(action string, fields map[string]any) {
	c.t.Helper()

	msg := map[string]any{"action": action}
	for k, v := range fields {
		msg[k] = v
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", action, err)
	}
	c.SendRaw(data)
}

// SendRaw writes a frame verbatim.
func (c *Conn) SendRaw(data []byte) {
	c.t.Helper()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("write frame: %v", err)
	}
}

// Next returns the next event the client sent.
func (c *Conn) Next() Frame {
	c.t.Helper()
	select {
	case f, ok := <-c.frames:
		if !ok {
			c.t.Fatal("client connection closed")
		}
		return f
	case <-time.After(waitTimeout):
		c.t.Fatal("timed out waiting for a client event")
		return nil
	}
}

// NextEvent skips frames until one with the given eventId arrives.
func (c *Conn) NextEvent(eventID string) Frame {
	c.t.Helper()
	for {
		f := c.Next()
		if f["eventId"] == eventID {
			return f
		}
	}
}

// Close drops the connection abruptly.
func (c *Conn) Close() {
	c.ws.Close()
}
