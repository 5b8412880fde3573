package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"exchsim/internal/store"
)

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.ListCompanies()
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	dtos := make([]CompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = companyDTO(c)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	c, err := s.store.GetCompany(ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown ticker")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, companyDTO(*c))
}

func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			depth = n
		}
	}
	bids, ok := s.engine.AggregateLevels(ticker, store.Buy, depth)
	if !ok {
		writeCode(w, CodeNotFound, "unknown ticker")
		return
	}
	asks, _ := s.engine.AggregateLevels(ticker, store.Sell, depth)
	WriteJSON(w, http.StatusOK, OrderBookDTO{Ticker: ticker, Bids: levelDTOs(bids), Asks: levelDTOs(asks)})
}

func (s *Server) handleGetOrderBookRaw(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	bids, ok := s.engine.AggregateLevels(ticker, store.Buy, 0)
	if !ok {
		writeCode(w, CodeNotFound, "unknown ticker")
		return
	}
	asks, _ := s.engine.AggregateLevels(ticker, store.Sell, 0)
	WriteJSON(w, http.StatusOK, OrderBookDTO{Ticker: ticker, Bids: levelDTOs(bids), Asks: levelDTOs(asks)})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	var since time.Time
	if sStr := r.URL.Query().Get("since"); sStr != "" {
		if t, err := time.Parse(time.RFC3339, sStr); err == nil {
			since = t
		}
	}
	trades, err := s.store.ListTrades(ticker, limit, since)
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	dtos := make([]TradeDTO, len(trades))
	for i, t := range trades {
		dtos[i] = tradeDTO(t)
	}
	WriteJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleMarketDataOne(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	md, err := s.marketData(ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCode(w, CodeNotFound, "unknown ticker")
			return
		}
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, md)
}

func (s *Server) handleMarketDataAll(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.ListCompanies()
	if err != nil {
		writeCode(w, CodeInternalError, err.Error())
		return
	}
	out := make([]MarketDataDTO, 0, len(companies))
	for _, c := range companies {
		md, err := s.marketData(c.Ticker)
		if err != nil {
			continue
		}
		out = append(out, md)
	}
	WriteJSON(w, http.StatusOK, out)
}

// marketData computes last price, 24h change/volume/high/low, and
// market cap from the trade history, per spec.md §6's GET /market-data.
func (s *Server) marketData(ticker string) (MarketDataDTO, error) {
	company, err := s.store.GetCompany(ticker)
	if err != nil {
		return MarketDataDTO{}, err
	}
	trades, err := s.store.ListTrades(ticker, 0, time.Now().Add(-24*time.Hour))
	if err != nil {
		return MarketDataDTO{}, err
	}
	md := MarketDataDTO{Ticker: ticker}
	if len(trades) == 0 {
		return md, nil
	}
	last := trades[0].Price // newest-first
	md.LastPrice = &last

	high, low := trades[0].Price, trades[0].Price
	var volume uint64
	for _, t := range trades {
		if t.Price.GreaterThan(high) {
			high = t.Price
		}
		if t.Price.LessThan(low) {
			low = t.Price
		}
		volume += t.Quantity
	}
	md.High24h, md.Low24h = &high, &low
	md.Volume24h = volume

	oldest := trades[len(trades)-1].Price
	change := last.Sub(oldest)
	md.Change24h = &change

	marketCap := last.MulQty(company.TotalShares)
	md.MarketCap = &marketCap
	return md, nil
}
