package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"exchsim/internal/store"
)

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, CodeInvalidParameters, "malformed request body")
		return
	}
	if err := validateCreateCompany(req); err != nil {
		writeCode(w, CodeInvalidParameters, err.Error())
		return
	}

	c := &store.Company{
		Ticker: req.Ticker, Name: req.Name, TotalShares: req.TotalShares,
		FloatShares: req.FloatShares, IPOPrice: req.IPOPrice, CreatedAt: time.Now(),
	}
	if err := s.store.CreateCompany(c); err != nil {
		writeCode(w, CodeConflict, "ticker already exists")
		return
	}
	if err := s.engine.SeedIPO(r.Context(), *c); err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, companyDTO(*c))
}

func validateCreateCompany(req CreateCompanyRequest) error {
	if req.Ticker == "" {
		return errors.New("ticker is required")
	}
	if req.TotalShares == 0 {
		return errors.New("total_shares must be positive")
	}
	if req.FloatShares > req.TotalShares {
		return errors.New("float_shares must not exceed total_shares")
	}
	if req.IPOPrice != nil && !req.IPOPrice.IsPositive() {
		return errors.New("ipo_price must be positive")
	}
	return nil
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, CodeInvalidParameters, "malformed request body")
		return
	}
	if req.ID == "" {
		writeCode(w, CodeInvalidParameters, "id is required")
		return
	}
	if req.InitialCash.IsNegative() {
		writeCode(w, CodeInvalidParameters, "initial_cash must not be negative")
		return
	}

	rawKey, hash := s.auth.IssueKey(req.ID)
	a := &store.Account{ID: req.ID, CashBalance: req.InitialCash, APIKeyHash: hash, CreatedAt: time.Now()}
	if err := s.store.CreateAccount(a); err != nil {
		writeCode(w, CodeConflict, "account already exists")
		return
	}
	WriteJSON(w, http.StatusCreated, CreateAccountResponse{Account: accountDTO(*a), APIKey: rawKey})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = accountDTO(a)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetAccountAdmin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.store.GetAccount(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown account")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, accountDTO(*a))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, StatsDTO{
		Companies: stats.Companies, Accounts: stats.Accounts, OpenOrders: stats.OpenOrders,
		TotalTrades: stats.TotalTrades, TotalVolume: stats.TotalVolume,
	})
}
