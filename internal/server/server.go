package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/chatraum/internal/config"
	"github.com/codefionn/chatraum/internal/logger"
)

// Server exposes the chat room over HTTP: a websocket endpoint for the room
// itself, plus health and room-info endpoints.
type Server struct {
	cfg        *config.Config
	hub        *Hub
	store      MessageStore
	router     *httprouter.Router
	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

// New creates a chat server backed by st.
func New(cfg *config.Config, st MessageStore) *Server {
	s := &Server{
		cfg:    cfg,
		hub:    NewHub(),
		store:  st,
		router: httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The room is open by design; there is no auth layer.
				return true
			},
		},
		log: logger.Global().WithPrefix("server"),
	}

	s.setupRoutes()
	return s
}

// Hub returns the server's connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/chat/info", s.handleChatInfo)
}

// Start begins listening on the configured address. It returns once the
// listener is bound; serving continues in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		s.log.Info("listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// handleWebSocket upgrades the request and starts the per-connection pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.store, s.cfg.HistoryLimit, s.cfg.MaxMessageLen)
	s.log.Info("connection %s opened from %s", client.ID, r.RemoteAddr)

	go client.WritePump()
	go client.ReadPump()
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is healthy",
	})
}

// handleChatInfo reports who is currently in the room.
func (s *Server) handleChatInfo(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	usernames := s.hub.Usernames()
	if usernames == nil {
		usernames = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connectedUsers": s.hub.Count(),
		"usernames":      usernames,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}
