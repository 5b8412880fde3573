package httpapi

import (
	"time"

	"exchsim/internal/book"
	"exchsim/internal/money"
	"exchsim/internal/store"
)

type CompanyDTO struct {
	Ticker      string       `json:"ticker"`
	Name        string       `json:"name"`
	TotalShares uint64       `json:"total_shares"`
	FloatShares uint64       `json:"float_shares"`
	IPOPrice    *money.Money `json:"ipo_price,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func companyDTO(c store.Company) CompanyDTO {
	return CompanyDTO{
		Ticker: c.Ticker, Name: c.Name, TotalShares: c.TotalShares,
		FloatShares: c.FloatShares, IPOPrice: c.IPOPrice, CreatedAt: c.CreatedAt,
	}
}

type AccountDTO struct {
	ID          string      `json:"id"`
	CashBalance money.Money `json:"cash_balance"`
	CreatedAt   time.Time   `json:"created_at"`
}

func accountDTO(a store.Account) AccountDTO {
	return AccountDTO{ID: a.ID, CashBalance: a.CashBalance, CreatedAt: a.CreatedAt}
}

type HoldingDTO struct {
	Ticker   string `json:"ticker"`
	Quantity uint64 `json:"quantity"`
}

func holdingDTO(h store.Holding) HoldingDTO {
	return HoldingDTO{Ticker: h.Ticker, Quantity: h.Quantity}
}

type OrderDTO struct {
	ID                string           `json:"id"`
	AccountID         string           `json:"account_id"`
	Ticker            string           `json:"ticker"`
	Side              store.Side       `json:"side"`
	Type              store.OrderType  `json:"order_type"`
	Price             *money.Money     `json:"price,omitempty"`
	Quantity          uint64           `json:"quantity"`
	RemainingQuantity uint64           `json:"remaining_quantity"`
	Status            store.OrderStatus `json:"status"`
	Timestamp         time.Time        `json:"timestamp"`
}

func orderDTO(o store.Order) OrderDTO {
	return OrderDTO{
		ID: o.ID, AccountID: o.AccountID, Ticker: o.Ticker, Side: o.Side, Type: o.Type,
		Price: o.Price, Quantity: o.Quantity, RemainingQuantity: o.RemainingQuantity,
		Status: o.Status, Timestamp: o.Timestamp,
	}
}

type TradeDTO struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker"`
	Price       money.Money `json:"price"`
	Quantity    uint64      `json:"quantity"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	BuyOrderID  string      `json:"buy_order_id"`
	SellOrderID string      `json:"sell_order_id"`
	Timestamp   time.Time   `json:"timestamp"`
}

func tradeDTO(t store.Trade) TradeDTO {
	return TradeDTO{
		ID: t.ID, Ticker: t.Ticker, Price: t.Price, Quantity: t.Quantity,
		BuyerID: t.BuyerID, SellerID: t.SellerID, BuyOrderID: t.BuyOrderID, SellOrderID: t.SellOrderID,
		Timestamp: t.Timestamp,
	}
}

// PlaceOrderRequest is the POST /orders body.
type PlaceOrderRequest struct {
	Ticker    string          `json:"ticker"`
	Side      store.Side      `json:"side"`
	OrderType store.OrderType `json:"order_type"`
	Quantity  uint64          `json:"quantity"`
	Price     *money.Money    `json:"price,omitempty"`
}

type PlaceOrderResponse struct {
	Order OrderDTO            `json:"order"`
	Fills []FillDTO           `json:"fills"`
}

type FillDTO struct {
	Price     money.Money `json:"price"`
	Quantity  uint64      `json:"quantity"`
	CounterID string      `json:"counter_id"`
}

type PriceLevelDTO struct {
	Price    money.Money `json:"price"`
	Quantity uint64      `json:"quantity"`
}

func levelDTOs(levels []book.AggregatedLevel) []PriceLevelDTO {
	out := make([]PriceLevelDTO, len(levels))
	for i, l := range levels {
		out[i] = PriceLevelDTO{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

type OrderBookDTO struct {
	Ticker string          `json:"ticker"`
	Bids   []PriceLevelDTO `json:"bids"`
	Asks   []PriceLevelDTO `json:"asks"`
}

type MarketDataDTO struct {
	Ticker      string       `json:"ticker"`
	LastPrice   *money.Money `json:"last_price,omitempty"`
	Change24h   *money.Money `json:"change_24h,omitempty"`
	Volume24h   uint64       `json:"volume_24h"`
	High24h     *money.Money `json:"high_24h,omitempty"`
	Low24h      *money.Money `json:"low_24h,omitempty"`
	MarketCap   *money.Money `json:"market_cap,omitempty"`
}

type CreateCompanyRequest struct {
	Ticker      string       `json:"ticker"`
	Name        string       `json:"name"`
	TotalShares uint64       `json:"total_shares"`
	FloatShares uint64       `json:"float_shares"`
	IPOPrice    *money.Money `json:"ipo_price,omitempty"`
}

type CreateAccountRequest struct {
	ID          string      `json:"id"`
	InitialCash money.Money `json:"initial_cash"`
}

type CreateAccountResponse struct {
	Account AccountDTO `json:"account"`
	APIKey  string     `json:"api_key"`
}

type StatsDTO struct {
	Companies   int64  `json:"companies"`
	Accounts    int64  `json:"accounts"`
	OpenOrders  int64  `json:"open_orders"`
	TotalTrades int64  `json:"total_trades"`
	TotalVolume uint64 `json:"total_volume"`
}
