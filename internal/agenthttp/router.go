// Package agenthttp mirrors the agent platform's REST surface on a
// second gorilla/mux router, following the same router/DTO/
// error-envelope pattern as internal/httpapi.
package agenthttp

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"exchsim/internal/agent"
	"exchsim/internal/strategy/builtin"
)

// Server bundles the agent platform's dependencies.
type Server struct {
	manager         *agent.Manager
	strategies      *builtin.Registry
	exchangeURL     string
	exchangeTimeout time.Duration
	router          *mux.Router
}

// NewServer wires every agent-platform endpoint of spec.md §6 onto a
// gorilla/mux router. Every agent it creates talks to the exchange at
// exchangeURL with the given request timeout.
func NewServer(manager *agent.Manager, strategies *builtin.Registry, exchangeURL string, exchangeTimeout time.Duration) *Server {
	s := &Server{manager: manager, strategies: strategies, exchangeURL: exchangeURL, exchangeTimeout: exchangeTimeout, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	s.router.HandleFunc("/strategies/{id}", s.handleGetStrategy).Methods(http.MethodGet)
	s.router.HandleFunc("/strategies/validate", s.handleValidateStrategy).Methods(http.MethodPost)

	s.router.HandleFunc("/agents", s.handleCreateAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	s.router.HandleFunc("/agents/{id}", s.handleUpdateAgent).Methods(http.MethodPatch)
	s.router.HandleFunc("/agents/{id}", s.handleDeleteAgent).Methods(http.MethodDelete)
	s.router.HandleFunc("/agents/{id}/start", s.handleStartAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/agents/{id}/stop", s.handleStopAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/agents/{id}/pause", s.handlePauseAgent).Methods(http.MethodPost)
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
