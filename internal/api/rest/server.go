package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
	log     *zap.Logger
}

// NewServer creates a new REST API server
func NewServer(port string, deps Deps) *Server {
	log := logger.OrNop(deps.Logger).Named("rest")
	handler := NewHandler(deps)

	return &Server{
		port:    port,
		handler: handler,
		log:     log,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(handler, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the route table around handler.
func NewRouter(handler *Handler, log *zap.Logger) *mux.Router {
	log = logger.OrNop(log)
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggingMiddleware(log))
	router.Use(CORSMiddleware)
	router.Use(metrics.Middleware)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Acquisition
	api.HandleFunc("/scrape", handler.Scrape).Methods("POST")

	// Leads
	api.HandleFunc("/leads", handler.ListLeads).Methods("GET")
	api.HandleFunc("/leads/export", handler.ExportLeads).Methods("GET")
	api.HandleFunc("/leads/validate", handler.ValidateLeads).Methods("POST")
	api.HandleFunc("/leads/segment", handler.SegmentLeads).Methods("POST")
	api.HandleFunc("/leads/mark-contacted", handler.MarkContacted).Methods("POST")
	api.HandleFunc("/leads/{leadID:[0-9]+}", handler.GetLead).Methods("GET")
	api.HandleFunc("/leads/{leadID:[0-9]+}", handler.UpdateLead).Methods("PATCH")

	// Single-shot tools
	api.HandleFunc("/validate-email", handler.ValidateEmail).Methods("POST")
	api.HandleFunc("/classify", handler.Classify).Methods("POST")
	api.HandleFunc("/messages/generate", handler.GenerateMessage).Methods("POST")

	// Campaigns
	api.HandleFunc("/campaigns", handler.ListCampaigns).Methods("GET")
	api.HandleFunc("/campaigns", handler.CreateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/eligible", handler.EligibleLeads).Methods("GET")
	api.HandleFunc("/campaigns/{campaignID:[0-9]+}", handler.GetCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{campaignID:[0-9]+}/run", handler.RunCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{campaignID:[0-9]+}/pause", handler.PauseCampaign).Methods("POST")

	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.log.Info("REST server listening", zap.String("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
