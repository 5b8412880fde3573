package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"exchsim/internal/auth"
	"exchsim/internal/matching"
	"exchsim/internal/money"
	"exchsim/internal/store"
)

const adminToken = "test-admin-token"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(store.SQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	eng, err := matching.New(context.Background(), st)
	require.NoError(t, err)
	cache, err := auth.NewCache(st, []byte("pepper"))
	require.NoError(t, err)
	return NewServer(eng, st, cache, adminToken)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func createCompany(t *testing.T, s *Server) {
	t.Helper()
	ipo := money.NewFromFloat(100)
	rec := doJSON(t, s, http.MethodPost, "/admin/companies", CreateCompanyRequest{
		Ticker: "TECH", Name: "Tech Co", TotalShares: 1_000_000, FloatShares: 1000, IPOPrice: &ipo,
	}, map[string]string{"Authorization": "Bearer " + adminToken})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func createAccount(t *testing.T, s *Server, id string, cash float64) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/admin/accounts", CreateAccountRequest{
		ID: id, InitialCash: money.NewFromFloat(cash),
	}, map[string]string{"Authorization": "Bearer " + adminToken})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateAccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.APIKey
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRejectMissingToken(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/admin/companies", CreateCompanyRequest{Ticker: "X", TotalShares: 1}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTraderRoutesRejectMissingKey(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/account", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrderEndToEnd(t *testing.T) {
	s := newTestServer(t)
	createCompany(t, s)
	apiKey := createAccount(t, s, "alice", 5000)

	rec := doJSON(t, s, http.MethodPost, "/orders", PlaceOrderRequest{
		Ticker: "TECH", Side: store.Buy, OrderType: store.Market, Quantity: 10,
	}, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PlaceOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, store.StatusFilled, resp.Order.Status)
	require.Len(t, resp.Fills, 1)
}

func TestPlaceMarketOrderRejectsInsufficientFundsAsTyped(t *testing.T) {
	s := newTestServer(t)
	createCompany(t, s)
	apiKey := createAccount(t, s, "alice", 50)

	rec := doJSON(t, s, http.MethodPost, "/orders", PlaceOrderRequest{
		Ticker: "TECH", Side: store.Buy, OrderType: store.Market, Quantity: 10, // costs 1000, alice has 50
	}, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, CodeInsufficientFunds, resp.Error.Code)
}

func TestPlaceOrderRejectsBadRequest(t *testing.T) {
	s := newTestServer(t)
	createCompany(t, s)
	apiKey := createAccount(t, s, "alice", 5000)

	rec := doJSON(t, s, http.MethodPost, "/orders", PlaceOrderRequest{
		Ticker: "TECH", Side: store.Buy, OrderType: store.Limit, Quantity: 10, // missing price
	}, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelOrderDoubleCancelConflict(t *testing.T) {
	s := newTestServer(t)
	createCompany(t, s)
	apiKey := createAccount(t, s, "alice", 5000)

	price := money.NewFromFloat(50)
	rec := doJSON(t, s, http.MethodPost, "/orders", PlaceOrderRequest{
		Ticker: "TECH", Side: store.Buy, OrderType: store.Limit, Quantity: 1, Price: &price,
	}, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PlaceOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	rec = doJSON(t, s, http.MethodDelete, "/orders/"+resp.Order.ID, nil, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/orders/"+resp.Order.ID, nil, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderBookReflectsRestingOrder(t *testing.T) {
	s := newTestServer(t)
	createCompany(t, s)
	apiKey := createAccount(t, s, "alice", 5000)

	price := money.NewFromFloat(90)
	doJSON(t, s, http.MethodPost, "/orders", PlaceOrderRequest{
		Ticker: "TECH", Side: store.Buy, OrderType: store.Limit, Quantity: 5, Price: &price,
	}, map[string]string{"X-API-Key": apiKey})

	rec := doJSON(t, s, http.MethodGet, "/orderbook/TECH?depth=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ob OrderBookDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ob))
	require.Len(t, ob.Bids, 1)
	require.Equal(t, uint64(5), ob.Bids[0].Quantity)
}
