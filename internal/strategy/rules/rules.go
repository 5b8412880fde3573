// Package rules implements A2: evaluating a compiled strategy's rules
// against a point-in-time snapshot and producing order intents.
package rules

import (
	"sort"
	"time"

	"exchsim/internal/money"
	"exchsim/internal/store"
	"exchsim/internal/strategy"
)

// RecentTradeWindow bounds price_change_pct's recent-price average,
// per spec.md §4.7 / SPEC_FULL.md §9.
const RecentTradeWindow = 20

// MaxTickersPerTick bounds how many tickers a `ticker: all` rule may
// be evaluated against in one tick, per SPEC_FULL.md §13.
const MaxTickersPerTick = 64

// TickerSnapshot is the market + own-position data for one ticker.
type TickerSnapshot struct {
	LastPrice    *money.Money
	BidPrice     *money.Money
	AskPrice     *money.Money
	RecentPrices []money.Money // oldest first, at most RecentTradeWindow entries
	MyHoldings   uint64
	MyOpenOrders int
}

// Snapshot is everything a tick's rule evaluation needs.
type Snapshot struct {
	MyCash  money.Money
	Tickers map[string]TickerSnapshot // keyed by ticker symbol
}

// Intent is one order (or cancel) the rule engine wants the agent
// runtime to submit.
type Intent struct {
	RuleName  string
	Ticker    string
	Kind      strategy.ActionKind
	Side      store.Side
	OrderType store.OrderType
	Quantity  uint64
	Price     *money.Money
}

// Evaluate walks compiled's rules in (priority desc, document order),
// skipping cooldown-blocked rules, and returns the intents produced by
// every rule whose `when` conjunction is true. firedAt records the
// last firing time per rule name and is read (never mutated) here; the
// caller updates it after acting on the returned intents.
func Evaluate(snap Snapshot, compiled *strategy.CompiledStrategy, firedAt map[string]time.Time, now time.Time) []Intent {
	rules := make([]strategy.Rule, len(compiled.Rules))
	copy(rules, compiled.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	var intents []Intent
	for _, r := range rules {
		if last, ok := firedAt[r.Name]; ok {
			if now.Sub(last) < time.Duration(r.CooldownSeconds)*time.Second {
				continue
			}
		}
		tickers := tickersForRule(r, snap)
		for _, ticker := range tickers {
			ts, ok := snap.Tickers[ticker]
			if !ok {
				continue
			}
			if !evalConjunction(r.When, snap.MyCash, ts) {
				continue
			}
			for _, a := range r.Then {
				if intent, ok := buildIntent(r.Name, ticker, a, compiled.Settings, snap.MyCash, ts); ok {
					intents = append(intents, intent)
				}
			}
		}
	}
	return intents
}

func tickersForRule(r strategy.Rule, snap Snapshot) []string {
	if r.Ticker != "all" {
		return []string{r.Ticker}
	}
	tickers := make([]string, 0, len(snap.Tickers))
	for t := range snap.Tickers {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	if len(tickers) > MaxTickersPerTick {
		tickers = tickers[:MaxTickersPerTick]
	}
	return tickers
}

func evalConjunction(conds []strategy.Condition, myCash money.Money, ts TickerSnapshot) bool {
	for _, c := range conds {
		if !evalCondition(c, myCash, ts) {
			return false
		}
	}
	return true
}

func evalCondition(c strategy.Condition, myCash money.Money, ts TickerSnapshot) bool {
	v, ok := metricValue(c.Metric, myCash, ts)
	if !ok {
		return false
	}
	return compare(v, c.Operator, c.Value)
}

func metricValue(m strategy.Metric, myCash money.Money, ts TickerSnapshot) (float64, bool) {
	switch m {
	case strategy.MetricPrice:
		if ts.LastPrice == nil {
			return 0, false
		}
		return ts.LastPrice.Float64(), true
	case strategy.MetricPriceChangePct:
		if ts.LastPrice == nil || len(ts.RecentPrices) == 0 {
			return 0, false
		}
		avg := averagePrice(ts.RecentPrices)
		if avg == 0 {
			return 0, false
		}
		return (ts.LastPrice.Float64() - avg) / avg * 100, true
	case strategy.MetricBidPrice:
		if ts.BidPrice == nil {
			return 0, false
		}
		return ts.BidPrice.Float64(), true
	case strategy.MetricAskPrice:
		if ts.AskPrice == nil {
			return 0, false
		}
		return ts.AskPrice.Float64(), true
	case strategy.MetricSpreadPct:
		if ts.BidPrice == nil || ts.AskPrice == nil {
			return 0, false
		}
		bid, ask := ts.BidPrice.Float64(), ts.AskPrice.Float64()
		mid := (bid + ask) / 2
		if mid == 0 {
			return 0, false
		}
		return (ask - bid) / mid * 100, true
	case strategy.MetricMyCash:
		return myCash.Float64(), true
	case strategy.MetricMyHoldings:
		return float64(ts.MyHoldings), true
	case strategy.MetricMyPositionValue:
		if ts.LastPrice == nil {
			return 0, false
		}
		return ts.LastPrice.Float64() * float64(ts.MyHoldings), true
	case strategy.MetricMyOpenOrders:
		return float64(ts.MyOpenOrders), true
	default:
		return 0, false
	}
}

func averagePrice(prices []money.Money) float64 {
	window := prices
	if len(window) > RecentTradeWindow {
		window = window[len(window)-RecentTradeWindow:]
	}
	var sum float64
	for _, p := range window {
		sum += p.Float64()
	}
	return sum / float64(len(window))
}

func compare(v float64, op strategy.Operator, target float64) bool {
	switch op {
	case strategy.OpLT:
		return v < target
	case strategy.OpLE:
		return v <= target
	case strategy.OpGT:
		return v > target
	case strategy.OpGE:
		return v >= target
	case strategy.OpEQ:
		return v == target
	case strategy.OpNE:
		return v != target
	default:
		return false
	}
}

// buildIntent sizes and prices an action per spec.md §4.7, applying
// budget clamps. ok is false if the action should be skipped (not an
// error) because clamping drove quantity below 1.
func buildIntent(ruleName, ticker string, a strategy.Action, settings strategy.Settings, myCash money.Money, ts TickerSnapshot) (Intent, bool) {
	if a.Kind == strategy.ActionCancelOrders {
		return Intent{RuleName: ruleName, Ticker: ticker, Kind: a.Kind}, true
	}

	side := store.Buy
	if a.Kind == strategy.ActionSell {
		side = store.Sell
	}

	// estimatedPrice is used for sizing and budget clamping regardless
	// of whether the submitted order ends up LIMIT or MARKET: spec.md
	// §4.7's budget invariant (price × qty ≤ max_order_value) applies
	// to both, so a market order still needs a reference price.
	estimatedPrice, ok := resolvePrice(a, side, ts)
	if !ok {
		return Intent{}, false
	}

	qty := resolveQuantity(a, side, myCash, ts, estimatedPrice)
	if qty == 0 {
		return Intent{}, false
	}
	qty = clampToBudget(qty, estimatedPrice, settings, myCash, side)
	if qty == 0 {
		return Intent{}, false
	}

	orderType := store.Limit
	var limitPrice *money.Money
	if a.OrderType == strategy.OrderTypeMarket {
		orderType = store.Market
	} else {
		// Either an explicit price/offset, or no price at all and not
		// flagged market: fall back to a marketable limit at the
		// estimated touch price.
		p := estimatedPrice
		limitPrice = &p
	}

	return Intent{
		RuleName: ruleName, Ticker: ticker, Kind: a.Kind,
		Side: side, OrderType: orderType, Quantity: qty, Price: limitPrice,
	}, true
}

// resolvePrice returns the price to use for sizing/budget purposes.
// ok is false only when the required reference data (bid, ask, or
// last trade) is null, per spec.md §4.7's null-metric rule.
func resolvePrice(a strategy.Action, side store.Side, ts TickerSnapshot) (price money.Money, ok bool) {
	if a.Price != nil {
		return money.NewFromFloat(*a.Price), true
	}
	if a.PriceOffsetPct != nil {
		touch := touchPrice(side, ts)
		if touch == nil {
			return money.Money{}, false
		}
		return touch.MulFrac(1 + *a.PriceOffsetPct/100), true
	}
	touch := touchPrice(side, ts)
	if touch == nil {
		return money.Money{}, false
	}
	return *touch, true
}

// touchPrice returns the reference price for budget estimation and
// market-order sizing: the ask for a buy, the bid for a sell, falling
// back to last trade price.
func touchPrice(side store.Side, ts TickerSnapshot) *money.Money {
	if side == store.Buy {
		if ts.AskPrice != nil {
			return ts.AskPrice
		}
	} else if ts.BidPrice != nil {
		return ts.BidPrice
	}
	return ts.LastPrice
}

func resolveQuantity(a strategy.Action, side store.Side, myCash money.Money, ts TickerSnapshot, price money.Money) uint64 {
	switch {
	case a.Quantity != nil:
		if *a.Quantity < 1 {
			return 0
		}
		return uint64(*a.Quantity)
	case a.QuantityAll:
		if side == store.Buy {
			return affordableShares(myCash, price)
		}
		return ts.MyHoldings
	case a.QuantityPct != nil:
		if side == store.Buy {
			return uint64(float64(affordableShares(myCash, price)) * *a.QuantityPct)
		}
		return uint64(float64(ts.MyHoldings) * *a.QuantityPct)
	default:
		return 0
	}
}

func affordableShares(cash money.Money, price money.Money) uint64 {
	if price.IsZero() || !price.IsPositive() {
		return 0
	}
	return uint64(cash.Float64() / price.Float64())
}

// clampToBudget enforces spec.md §4.7's budget invariant: price × qty
// ≤ max_order_value, and resulting cash ≥ min_cash_reserve for buys.
func clampToBudget(qty uint64, price money.Money, settings strategy.Settings, myCash money.Money, side store.Side) uint64 {
	if settings.MaxOrderValue > 0 {
		maxQty := uint64(settings.MaxOrderValue / price.Float64())
		if qty > maxQty {
			qty = maxQty
		}
	}
	if side == store.Buy && settings.MinCashReserve > 0 {
		spend := price.Float64() * float64(qty)
		headroom := myCash.Float64() - settings.MinCashReserve
		if headroom < 0 {
			return 0
		}
		if spend > headroom {
			maxQty := uint64(headroom / price.Float64())
			if qty > maxQty {
				qty = maxQty
			}
		}
	}
	return qty
}
