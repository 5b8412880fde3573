// Package exchangeclient implements A4: a retrying REST client the
// agent platform uses to talk to the exchange service, grounded on
// 0xtitan6-polymarket-mm/internal/exchange/client.go's resty wiring.
package exchangeclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"exchsim/internal/httpapi"
)

// Client wraps a resty.Client configured with the retry/timeout policy
// of spec.md §4.9.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL, authenticating every request
// with apiKey. A zero timeout falls back to 5s.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		h.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: h}
}

func checkStatus(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("exchangeclient: %s: %w", op, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("exchangeclient: %s: status %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) GetAccount(ctx context.Context) (*httpapi.AccountDTO, error) {
	var out httpapi.AccountDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/account")
	if err := checkStatus(resp, err, "get account"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]httpapi.CompanyDTO, error) {
	var out []httpapi.CompanyDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/companies")
	if err := checkStatus(resp, err, "list companies"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetHoldings(ctx context.Context) ([]httpapi.HoldingDTO, error) {
	var out []httpapi.HoldingDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/holdings")
	if err := checkStatus(resp, err, "get holdings"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, status, ticker string) ([]httpapi.OrderDTO, error) {
	req := c.http.R().SetContext(ctx)
	if status != "" {
		req.SetQueryParam("status", status)
	}
	if ticker != "" {
		req.SetQueryParam("ticker", ticker)
	}
	var out []httpapi.OrderDTO
	resp, err := req.SetResult(&out).Get("/orders")
	if err := checkStatus(resp, err, "list orders"); err != nil {
		return nil, err
	}
	return out, nil
}

type errorEnvelope struct {
	Error httpapi.Error `json:"error"`
}

func (c *Client) PlaceOrder(ctx context.Context, req httpapi.PlaceOrderRequest) (*httpapi.PlaceOrderResponse, error) {
	var out httpapi.PlaceOrderResponse
	var errBody errorEnvelope
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).SetError(&errBody).Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("exchangeclient: place order: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("exchangeclient: place order: %s: %s", errBody.Error.Code, errBody.Error.Message)
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/orders/" + orderID)
	return checkStatus(resp, err, "cancel order")
}

func (c *Client) GetOrderBook(ctx context.Context, ticker string, depth int) (*httpapi.OrderBookDTO, error) {
	var out httpapi.OrderBookDTO
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("depth", fmt.Sprintf("%d", depth)).
		SetResult(&out).Get("/orderbook/" + ticker)
	if err := checkStatus(resp, err, "get order book"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTrades(ctx context.Context, ticker string, limit int, since time.Time) ([]httpapi.TradeDTO, error) {
	req := c.http.R().SetContext(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	if !since.IsZero() {
		req.SetQueryParam("since", since.Format(time.RFC3339))
	}
	var out []httpapi.TradeDTO
	resp, err := req.SetResult(&out).Get("/trades/" + ticker)
	if err := checkStatus(resp, err, "get trades"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMarketData(ctx context.Context, ticker string) (*httpapi.MarketDataDTO, error) {
	var out httpapi.MarketDataDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/market-data/" + ticker)
	if err := checkStatus(resp, err, "get market data"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCompany(ctx context.Context, ticker string) (*httpapi.CompanyDTO, error) {
	var out httpapi.CompanyDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/companies/" + ticker)
	if err := checkStatus(resp, err, "get company"); err != nil {
		return nil, err
	}
	return &out, nil
}
