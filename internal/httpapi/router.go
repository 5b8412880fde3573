// Package httpapi implements E6: the exchange's public, trader, and
// admin REST surface, following uhyunpark-hyperlicked/pkg/api/server.go's
// gorilla/mux PathPrefix/subrouter/.Methods structure with rs/cors.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"exchsim/internal/auth"
	"exchsim/internal/matching"
	"exchsim/internal/store"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	engine *matching.Engine
	store  *store.Store
	auth   *auth.Cache
	admin  string
	router *mux.Router
}

// NewServer wires every endpoint of spec.md §6 onto a gorilla/mux router.
func NewServer(engine *matching.Engine, st *store.Store, authCache *auth.Cache, adminToken string) *Server {
	s := &Server{engine: engine, store: st, auth: authCache, admin: adminToken, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/companies", s.handleListCompanies).Methods(http.MethodGet)
	s.router.HandleFunc("/companies/{ticker}", s.handleGetCompany).Methods(http.MethodGet)
	s.router.HandleFunc("/orderbook/{ticker}", s.handleGetOrderBook).Methods(http.MethodGet)
	s.router.HandleFunc("/trades/{ticker}", s.handleGetTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/market-data", s.handleMarketDataAll).Methods(http.MethodGet)
	s.router.HandleFunc("/market-data/{ticker}", s.handleMarketDataOne).Methods(http.MethodGet)

	trader := s.router.NewRoute().Subrouter()
	trader.Use(auth.Middleware(s.auth, WriteError))
	trader.HandleFunc("/account", s.handleGetAccount).Methods(http.MethodGet)
	trader.HandleFunc("/holdings", s.handleGetHoldings).Methods(http.MethodGet)
	trader.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	trader.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	trader.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	trader.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminMiddleware(s.admin, WriteError))
	admin.HandleFunc("/companies", s.handleCreateCompany).Methods(http.MethodPost)
	admin.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	admin.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{id}", s.handleGetAccountAdmin).Methods(http.MethodGet)
	admin.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	admin.HandleFunc("/orderbook/{ticker}", s.handleGetOrderBookRaw).Methods(http.MethodGet)
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "Authorization"},
	})
	return c.Handler(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
