package agent

import (
	"context"
	"fmt"
	"time"

	"exchsim/internal/httpapi"
	"exchsim/internal/money"
	"exchsim/internal/store"
	"exchsim/internal/strategy/rules"
)

// tradePricesOldestFirst reverses the exchange's newest-first trade
// order into the oldest-first order rules.Evaluate expects for its
// recent-price average.
func tradePricesOldestFirst(trades []httpapi.TradeDTO) []money.Money {
	out := make([]money.Money, len(trades))
	for i, t := range trades {
		out[len(trades)-1-i] = t.Price
	}
	return out
}

func (a *Agent) resolveTickers(ctx context.Context) ([]string, error) {
	for _, t := range a.Tickers {
		if t == "all" {
			companies, err := a.Client.ListCompanies(ctx)
			if err != nil {
				return nil, fmt.Errorf("list companies: %w", err)
			}
			out := make([]string, len(companies))
			for i, c := range companies {
				out[i] = c.Ticker
			}
			return out, nil
		}
	}
	return a.Tickers, nil
}

func (a *Agent) buildSnapshot(ctx context.Context, tickers []string) (rules.Snapshot, map[string][]httpapi.OrderDTO, error) {
	acct, err := a.Client.GetAccount(ctx)
	if err != nil {
		return rules.Snapshot{}, nil, fmt.Errorf("get account: %w", err)
	}
	holdings, err := a.Client.GetHoldings(ctx)
	if err != nil {
		return rules.Snapshot{}, nil, fmt.Errorf("get holdings: %w", err)
	}
	holdingByTicker := make(map[string]uint64, len(holdings))
	for _, h := range holdings {
		holdingByTicker[h.Ticker] = h.Quantity
	}

	openOrders, err := a.Client.ListOrders(ctx, "", "")
	if err != nil {
		return rules.Snapshot{}, nil, fmt.Errorf("list orders: %w", err)
	}
	ordersByTicker := make(map[string][]httpapi.OrderDTO)
	for _, o := range openOrders {
		if o.Status == store.StatusOpen || o.Status == store.StatusPartial {
			ordersByTicker[o.Ticker] = append(ordersByTicker[o.Ticker], o)
		}
	}

	snap := rules.Snapshot{MyCash: acct.CashBalance, Tickers: make(map[string]rules.TickerSnapshot, len(tickers))}
	for _, ticker := range tickers {
		ts := rules.TickerSnapshot{
			MyHoldings:   holdingByTicker[ticker],
			MyOpenOrders: len(ordersByTicker[ticker]),
		}

		md, err := a.Client.GetMarketData(ctx, ticker)
		if err == nil {
			ts.LastPrice = md.LastPrice
		}

		book, err := a.Client.GetOrderBook(ctx, ticker, 1)
		if err == nil {
			if len(book.Bids) > 0 {
				p := book.Bids[0].Price
				ts.BidPrice = &p
			}
			if len(book.Asks) > 0 {
				p := book.Asks[0].Price
				ts.AskPrice = &p
			}
		}

		trades, err := a.Client.GetTrades(ctx, ticker, rules.RecentTradeWindow, time.Time{})
		if err == nil {
			ts.RecentPrices = tradePricesOldestFirst(trades)
		}

		snap.Tickers[ticker] = ts
	}
	return snap, ordersByTicker, nil
}
