package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/kitscout/internal/campaign"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/publisher"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Server represents the WebSocket server
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	log    *zap.Logger
	cancel context.CancelFunc
}

// NewServer creates a new WebSocket server
func NewServer(log *zap.Logger) *Server {
	log = logger.OrNop(log).Named("websocket")
	return &Server{
		hub: NewHub(log),
		log: log,
	}
}

// Run starts the hub. Start calls it; tests serving Handler directly call
// it themselves.
func (s *Server) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(ctx)
}

// Handler returns the websocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/progress", s.handleCampaignProgress)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start starts the WebSocket server
func (s *Server) Start(ctx context.Context, port string) error {
	s.port = port
	s.Run(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("WebSocket server listening", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleCampaignProgress streams campaign progress events to the client.
func (s *Server) handleCampaignProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}

// Broadcast sends an event to all connected clients.
func (s *Server) Broadcast(eventType string, data any) error {
	msg, err := json.Marshal(Message{Type: eventType, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", eventType, err)
	}
	s.hub.Broadcast(msg)
	return nil
}

// CampaignObserver forwards campaign progress to connected clients.
func (s *Server) CampaignObserver() campaign.Observer {
	return campaign.ObserverFunc(func(_ context.Context, p campaign.Progress) {
		event := publisher.EventCampaignProgress
		if p.Done {
			event = publisher.EventCampaignCompleted
		}
		if err := s.Broadcast(event, p); err != nil {
			s.log.Warn("failed to broadcast campaign progress", zap.Error(err))
		}
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
