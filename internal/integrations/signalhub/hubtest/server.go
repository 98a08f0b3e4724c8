// Package hubtest runs an in-process hub endpoint speaking the signalhub
// wire protocol. Tests point a real client at it, script invoke results,
// push events and drop sockets to exercise reconnect paths.
package hubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Invocation struct {
	Target string
	Args   []json.RawMessage
}

type wireFrame struct {
	Type    string            `json:"type"`
	ID      uint64            `json:"id,omitempty"`
	Target  string            `json:"target,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Error   string            `json:"error,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	conns        map[*websocket.Conn]struct{}
	invocations  []Invocation
	invokeErrs   map[string]string
	lastAuth     string
	rejectDials  bool
	upgradeDelay time.Duration
}

func New() *Server {
	s := &Server{
		conns:      make(map[*websocket.Conn]struct{}),
		invokeErrs: make(map[string]string),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// address to dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// FailInvoke makes every invocation of target answer with an error result.
func (s *Server) FailInvoke(target, msg string) {
	s.mu.Lock()
	s.invokeErrs[target] = msg
	s.mu.Unlock()
}

// RejectDials makes new handshakes fail at the HTTP layer.
func (s *Server) RejectDials(reject bool) {
	s.mu.Lock()
	s.rejectDials = reject
	s.mu.Unlock()
}

// DelayUpgrades holds every websocket upgrade for d, keeping handshakes in
// flight long enough for tests to race other calls against them.
func (s *Server) DelayUpgrades(d time.Duration) {
	s.mu.Lock()
	s.upgradeDelay = d
	s.mu.Unlock()
}

func (s *Server) Invocations() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invocation, len(s.invocations))
	copy(out, s.invocations)
	return out
}

// InvocationCount returns how many times target was invoked.
func (s *Server) InvocationCount(target string) int {
	n := 0
	for _, inv := range s.Invocations() {
		if inv.Target == target {
			n++
		}
	}
	return n
}

// LastAuthHeader returns the Authorization header of the latest handshake.
func (s *Server) LastAuthHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// PushEvent broadcasts a named event to every live connection.
func (s *Server) PushEvent(target string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f := wireFrame{Type: "event", Target: target, Payload: b}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if err := c.WriteJSON(f); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections closes every live socket without a close handshake,
// simulating a network drop.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
}

// ConnectionCount reports currently live sockets.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reject := s.rejectDials
	delay := s.upgradeDelay
	s.lastAuth = r.Header.Get("Authorization")
	s.mu.Unlock()
	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()

	go s.readLoop(ws)
}

func (s *Server) readLoop(ws *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		var f wireFrame
		if err := ws.ReadJSON(&f); err != nil {
			return
		}
		if f.Type != "invoke" {
			continue
		}

		s.mu.Lock()
		s.invocations = append(s.invocations, Invocation{Target: f.Target, Args: f.Args})
		errMsg := s.invokeErrs[f.Target]
		res := wireFrame{Type: "result", ID: f.ID, Error: errMsg}
		err := ws.WriteJSON(res)
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}
