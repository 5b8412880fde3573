package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"exchsim/internal/auth"
	"exchsim/internal/matching"
	"exchsim/internal/store"
)

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	a, err := s.store.GetAccount(accountID)
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, accountDTO(*a))
}

func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	hs, err := s.store.ListHoldings(accountID)
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	dtos := make([]HoldingDTO, len(hs))
	for i, h := range hs {
		dtos[i] = holdingDTO(h)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	status := store.OrderStatus(r.URL.Query().Get("status"))
	ticker := r.URL.Query().Get("ticker")
	orders, err := s.store.ListOrders(accountID, status, ticker)
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = orderDTO(o)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	id := mux.Vars(r)["id"]
	o, err := s.store.GetOrder(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown order")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	if o.AccountID != accountID {
		writeCode(w, CodeForbidden, "not your order")
		return
	}
	WriteJSON(w, http.StatusOK, orderDTO(*o))
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, CodeInvalidParameters, "malformed request body")
		return
	}
	if err := validatePlaceOrder(req); err != nil {
		writeCode(w, CodeInvalidParameters, err.Error())
		return
	}
	if _, err := s.store.GetCompany(req.Ticker); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown ticker")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}

	order, fills, err := s.engine.Submit(r.Context(), matching.SubmitRequest{
		ID: uuid.NewString(), AccountID: accountID, Ticker: req.Ticker,
		Side: req.Side, Type: req.OrderType, Price: req.Price, Quantity: req.Quantity,
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	fillDTOs := make([]FillDTO, len(fills))
	for i, f := range fills {
		fillDTOs[i] = FillDTO{Price: f.Price, Quantity: f.Quantity, CounterID: f.CounterID}
	}
	WriteJSON(w, http.StatusOK, PlaceOrderResponse{Order: orderDTO(*order), Fills: fillDTOs})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountID(r)
	id := mux.Vars(r)["id"]
	o, err := s.store.GetOrder(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown order")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	if o.AccountID != accountID {
		writeCode(w, CodeForbidden, "not your order")
		return
	}
	if err := s.engine.Cancel(r.Context(), o.Ticker, id, accountID); err != nil {
		switch {
		case errors.Is(err, matching.ErrOrderTerminal):
			writeCode(w, CodeConflict, "order already terminal")
		case errors.Is(err, matching.ErrNotOwner):
			writeCode(w, CodeForbidden, "not your order")
		case errors.Is(err, matching.ErrOrderNotFound):
			writeCode(w, CodeNotFound, "unknown order")
		default:
			writeCode(w, CodeInternalError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if req.Ticker == "" {
		return errors.New("ticker is required")
	}
	if req.Side != store.Buy && req.Side != store.Sell {
		return errors.New("side must be BUY or SELL")
	}
	if req.OrderType != store.Limit && req.OrderType != store.Market {
		return errors.New("order_type must be LIMIT or MARKET")
	}
	if req.Quantity == 0 {
		return errors.New("quantity must be positive")
	}
	if req.OrderType == store.Limit && req.Price == nil {
		return errors.New("price is required for LIMIT orders")
	}
	if req.OrderType == store.Market && req.Price != nil {
		return errors.New("price must be absent for MARKET orders")
	}
	if req.Price != nil && !req.Price.IsPositive() {
		return errors.New("price must be positive")
	}
	return nil
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matching.ErrInsufficientFunds):
		writeCode(w, CodeInsufficientFunds, "insufficient cash balance")
	case errors.Is(err, matching.ErrInsufficientShares):
		writeCode(w, CodeInsufficientShares, "insufficient shares held")
	case errors.Is(err, matching.ErrUnknownTicker):
		writeCode(w, CodeNotFound, "unknown ticker")
	case errors.Is(err, matching.ErrInvalidOrder):
		writeCode(w, CodeInvalidParameters, err.Error())
	default:
		writeCode(w, CodeSettlementFailed, err.Error())
	}
}
