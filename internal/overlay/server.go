// ABOUTME: Caption overlay server for streaming software
// ABOUTME: Broadcasts captions and status over WebSocket and serves health and metrics
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livedub/livedub-go/internal/metrics"
)

// Event types
const (
	EventCaption = "caption"
	EventStatus  = "status"
	EventLinks   = "links"
)

// Event is one overlay update
type Event struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Translation string `json:"translated_text,omitempty"`
	Status      string `json:"status,omitempty"`
	FinalURL    string `json:"final_url,omitempty"`
	SRTURL      string `json:"srt_url,omitempty"`
	Timestamp   int64  `json:"ts"`
}

// Config contains overlay server configuration
type Config struct {
	Addr    string
	Metrics *metrics.Metrics
}

// client is one connected overlay
type client struct {
	conn     *websocket.Conn
	sendChan chan []byte
}

// Server fans overlay events out to WebSocket clients
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    map[string][]byte // latest event per type, replayed on connect

	httpServer *http.Server
	listener   net.Listener
}

// New creates an overlay server
func New(config Config) *Server {
	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// Overlays are loaded from local browser sources
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:     http.NewServeMux(),
		clients: make(map[*client]struct{}),
		last:    make(map[string][]byte),
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", config.Metrics.Handler())
	s.mux.HandleFunc("/", s.handleIndex)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Overlay server error: %v", err)
		}
	}()

	log.Printf("Caption overlay listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and disconnects clients
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		close(c.sendChan)
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Clients returns the number of connected overlays
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends an event to every client. Slow clients miss events.
func (s *Server) Broadcast(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling overlay event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[ev.Type] = data
	for c := range s.clients {
		select {
		case c.sendChan <- data:
		default:
			log.Printf("Overlay client %s is slow, dropping %s event", c.conn.RemoteAddr(), ev.Type)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Overlay connected from %s", r.RemoteAddr)

	c := &client{conn: conn, sendChan: make(chan []byte, 16)}

	s.mu.Lock()
	for _, typ := range []string{EventStatus, EventCaption, EventLinks} {
		if data, ok := s.last[typ]; ok {
			c.sendChan <- data
		}
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.clientWriter(c)
	s.clientReader(c)
}

// clientReader discards inbound messages and detects disconnects
func (s *Server) clientReader(c *client) {
	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[c]; ok {
			delete(s.clients, c)
			close(c.sendChan)
		}
		s.mu.Unlock()
		c.conn.Close()
		log.Printf("Overlay disconnected: %s", c.conn.RemoteAddr())
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case data, ok := <-c.sendChan:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				c.conn.Close()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing overlay message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.Clients(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>livedub captions</title>
<style>
body{margin:0;background:transparent;font-family:sans-serif;color:#fff}
#c{position:fixed;bottom:5%;width:100%;text-align:center;font-size:2.2em;text-shadow:0 0 6px #000}
#s{font-size:.5em;opacity:.7}
</style></head>
<body><div id="c"><div id="t"></div><div id="s"></div></div>
<script>
function connect(){
  const ws=new WebSocket("ws://"+location.host+"/ws");
  ws.onmessage=e=>{const m=JSON.parse(e.data);
    if(m.type==="caption")document.getElementById("t").textContent=m.translated_text||"";
    if(m.type==="status")document.getElementById("s").textContent=m.status||"";};
  ws.onclose=()=>setTimeout(connect,1000);
}
connect();
</script></body></html>
`
