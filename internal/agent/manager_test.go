package agent

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchsim/internal/httpapi"
	"exchsim/internal/money"
	"exchsim/internal/store"
	"exchsim/internal/strategy"
)

// fakeExchange serves the minimal subset of endpoints executeTick needs.
func fakeExchange(t *testing.T, placeCount *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, httpapi.AccountDTO{ID: "alice", CashBalance: money.NewFromFloat(10000)})
	})
	mux.HandleFunc("/holdings", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, []httpapi.HoldingDTO{})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			placeCount.Add(1)
			httpapi.WriteJSON(w, http.StatusOK, httpapi.PlaceOrderResponse{
				Order: httpapi.OrderDTO{ID: "o1", Status: store.StatusFilled},
			})
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, []httpapi.OrderDTO{})
	})
	mux.HandleFunc("/market-data/TECH", func(w http.ResponseWriter, r *http.Request) {
		p := money.NewFromFloat(95)
		httpapi.WriteJSON(w, http.StatusOK, httpapi.MarketDataDTO{Ticker: "TECH", LastPrice: &p})
	})
	mux.HandleFunc("/orderbook/TECH", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, httpapi.OrderBookDTO{Ticker: "TECH"})
	})
	mux.HandleFunc("/trades/TECH", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, []httpapi.TradeDTO{
			{Price: money.NewFromFloat(100)},
			{Price: money.NewFromFloat(100)},
		})
	})
	return httptest.NewServer(mux)
}

func dipBuyerStrategy(t *testing.T) *strategy.CompiledStrategy {
	t.Helper()
	cs, err := strategy.Compile([]byte(`
name: dip-buyer
rules:
  - name: buy-dip
    ticker: TECH
    when:
      - metric: price_change_pct
        operator: "<"
        value: -2
    then:
      - kind: buy
        quantity: 1
        order_type: market
    cooldown_seconds: 1
`))
	require.NoError(t, err)
	return cs
}

func TestManagerTicksAndPlacesOrder(t *testing.T) {
	var placeCount atomic.Int32
	srv := fakeExchange(t, &placeCount)
	defer srv.Close()

	m := NewManager()
	defer m.Stop()

	a := m.CreateAgent(CreateAgentParams{
		Name: "bot", StrategyID: "dip-buyer", Strategy: dipBuyerStrategy(t),
		IntervalSeconds: 1, Tickers: []string{"TECH"}, AccountID: "alice",
		BaseURL: srv.URL, APIKey: "key",
	})
	a.Start()

	require.Eventually(t, func() bool { return placeCount.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestManagerDeleteStopsAgent(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	a := m.CreateAgent(CreateAgentParams{
		Name: "bot", StrategyID: "s1", Strategy: nil,
		IntervalSeconds: 60, Tickers: []string{"TECH"}, AccountID: "alice",
		BaseURL: "http://example.invalid", APIKey: "key",
	})
	require.True(t, m.Delete(a.ID))
	_, ok := m.Get(a.ID)
	require.False(t, ok)
}

func TestManagerGetUnknownAgent(t *testing.T) {
	m := NewManager()
	defer m.Stop()
	_, ok := m.Get("does-not-exist")
	require.False(t, ok)
}
