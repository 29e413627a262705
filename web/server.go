package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"markestedt/slashgg/config"
	"markestedt/slashgg/keybind"
	"markestedt/slashgg/replay"
	"markestedt/slashgg/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     allowedOrigin,
}

// Trigger schedules a replay and reports whether it was accepted
type Trigger interface {
	Trigger() bool
}

// EngineStatus exposes the replay guard state
type EngineStatus interface {
	Running() bool
	Dropped() int64
}

// Deps are the components the dashboard reads and drives.
// DB may be nil when history is disabled.
type Deps struct {
	DB       *storage.DB
	Settings *config.Settings
	Capture  *keybind.Capture
	Renderer *keybind.Renderer
	Table    *keybind.ScancodeTable
	Trigger  Trigger
	Status   EngineStatus
}

// Server represents the web server
type Server struct {
	Deps
	port int
	hub  *Hub
}

// NewServer creates a new web server and subscribes it to settings and capture changes
func NewServer(port int, deps Deps) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Deps: deps,
		port: port,
		hub:  hub,
	}

	if deps.Settings != nil {
		deps.Settings.OnChange(s.BroadcastSettings)
	}
	if deps.Capture != nil {
		deps.Capture.OnChange(func(state keybind.CaptureState, candidate keybind.Keybind) {
			s.hub.BroadcastMessage(Message{Type: MessageTypeCapture, Data: s.captureView(state, candidate)})
		})
	}

	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/keybind/capture", s.handleCapture)
	mux.HandleFunc("/api/keys", s.handleKeys)
	mux.HandleFunc("/api/trigger", s.handleTrigger)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return guard(mux), nil
}

// Start serves the dashboard on loopback until ctx is done
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Web server shutdown failed", "error", err)
		}
		s.hub.Close()
	}()

	slog.Info("Starting web server", "port", s.port, "url", fmt.Sprintf("http://localhost:%d", s.port))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// BroadcastStatus broadcasts the replay guard state to all connected clients
func (s *Server) BroadcastStatus() {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: s.statusView(),
	})
}

// BroadcastSettings broadcasts the current settings to all connected clients
func (s *Server) BroadcastSettings() {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeSettings,
		Data: s.settingsView(),
	})
}

// BroadcastReplay broadcasts a finished replay to all connected clients.
// id is the stored row ID, or zero when history is disabled.
func (s *Server) BroadcastReplay(id int64, session replay.Session) {
	msg := ReplayMessage{
		ID:        id,
		SessionID: session.ID,
		Outcome:   string(session.Outcome),
		OpenChat:  s.render(session.OpenChat),
		Timestamp: session.Started.UTC().Format(time.RFC3339),
	}
	if session.Err != nil {
		msg.Error = session.Err.Error()
	}

	s.hub.BroadcastMessage(Message{Type: MessageTypeReplay, Data: msg})
}

func (s *Server) render(kb keybind.Keybind) string {
	if s.Renderer == nil {
		return ""
	}
	return s.Renderer.Render(kb, true)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}
