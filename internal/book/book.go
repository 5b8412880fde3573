// Package book implements the order book index (E2): an in-memory
// per-ticker price-level index, bids sorted (-price, timestamp) and
// asks sorted (price, timestamp), FIFO within a level. It generalizes
// the teacher's single-asset btree index to one TickerBook per ticker
// and adds the rebuild-from-store recovery path spec.md §4.2/§5.9 call
// for: the store is authoritative, this index is a derived cache.
package book

import (
	"sort"
	"time"

	"github.com/tidwall/btree"

	"exchsim/internal/money"
	"exchsim/internal/store"
)

// RestingOrder is the book's view of an order waiting to be matched.
type RestingOrder struct {
	ID                string
	AccountID         string
	Side              store.Side
	Price             money.Money
	RemainingQuantity uint64
	Timestamp         time.Time
	Seq               uint64
}

// PriceLevel holds every resting order at one price, earliest first.
type PriceLevel struct {
	Price  money.Money
	Orders []*RestingOrder
}

type priceLevels = btree.BTreeG[*PriceLevel]

// TickerBook is the bid/ask index for a single ticker.
type TickerBook struct {
	Ticker string
	bids   *priceLevels
	asks   *priceLevels
	index  map[string]*RestingOrder // order id -> order, for O(1) lookup before removal
}

// NewTickerBook creates an empty book for ticker.
func NewTickerBook(ticker string) *TickerBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price) // highest bid first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price) // lowest ask first
	})
	return &TickerBook{
		Ticker: ticker,
		bids:   bids,
		asks:   asks,
		index:  make(map[string]*RestingOrder),
	}
}

func (b *TickerBook) levels(side store.Side) *priceLevels {
	if side == store.Buy {
		return b.bids
	}
	return b.asks
}

// Best returns the top-of-book entry for side, or ok=false if empty.
func (b *TickerBook) Best(side store.Side) (*PriceLevel, bool) {
	return b.levels(side).Min()
}

// Insert adds a resting order to its price level, creating the level
// if necessary, preserving FIFO (insertion) order within the level.
func (b *TickerBook) Insert(o *RestingOrder) {
	levels := b.levels(o.Side)
	level, ok := levels.GetMut(&PriceLevel{Price: o.Price})
	if ok {
		level.Orders = append(level.Orders, o)
	} else {
		levels.Set(&PriceLevel{Price: o.Price, Orders: []*RestingOrder{o}})
	}
	b.index[o.ID] = o
}

// Remove deletes an order from the book entirely (cancel, or full fill).
func (b *TickerBook) Remove(orderID string) {
	o, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)

	levels := b.levels(o.Side)
	level, ok := levels.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		return
	}
	for i, ro := range level.Orders {
		if ro.ID == orderID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
}

// Reduce decrements an order's remaining quantity by `by`, removing it
// from the book entirely if that exhausts it.
func (b *TickerBook) Reduce(orderID string, by uint64) {
	o, ok := b.index[orderID]
	if !ok {
		return
	}
	if by >= o.RemainingQuantity {
		b.Remove(orderID)
		return
	}
	o.RemainingQuantity -= by
}

// Get returns the live resting order, if present.
func (b *TickerBook) Get(orderID string) (*RestingOrder, bool) {
	o, ok := b.index[orderID]
	return o, ok
}

// AggregatedLevel is one row of public market-data order book depth.
type AggregatedLevel struct {
	Price    money.Money
	Quantity uint64
}

// AggregateLevels returns the top `depth` price levels for side, summed
// quantity per level, for the public GET /orderbook/{ticker} endpoint.
func (b *TickerBook) AggregateLevels(side store.Side, depth int) []AggregatedLevel {
	var out []AggregatedLevel
	b.levels(side).Scan(func(level *PriceLevel) bool {
		var qty uint64
		for _, o := range level.Orders {
			qty += o.RemainingQuantity
		}
		out = append(out, AggregatedLevel{Price: level.Price, Quantity: qty})
		return len(out) < depth
	})
	return out
}

// Snapshot is a cheap, lock-free-to-build read view used by market data
// and the rule engine; it must never block order submission.
type Snapshot struct {
	BestBid *money.Money
	BestAsk *money.Money
}

func (b *TickerBook) Snapshot() Snapshot {
	var s Snapshot
	if lvl, ok := b.bids.Min(); ok {
		p := lvl.Price
		s.BestBid = &p
	}
	if lvl, ok := b.asks.Min(); ok {
		p := lvl.Price
		s.BestAsk = &p
	}
	return s
}

// Rebuild reconstructs a TickerBook from every OPEN/PARTIAL order
// persisted for ticker, in (price, timestamp) order — the startup
// recovery path spec.md §4.2 and §5 (shared resources) require: the
// in-memory book must never diverge from the store, and on restart it
// is rebuilt by scanning.
func Rebuild(ticker string, orders []store.Order) *TickerBook {
	b := NewTickerBook(ticker)

	sorted := make([]store.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	for _, o := range sorted {
		if o.Price == nil {
			continue // a resting order is always a LIMIT order with a price
		}
		b.Insert(&RestingOrder{
			ID:                o.ID,
			AccountID:         o.AccountID,
			Side:              o.Side,
			Price:             *o.Price,
			RemainingQuantity: o.RemainingQuantity,
			Timestamp:         o.Timestamp,
			Seq:               o.Seq,
		})
	}
	return b
}
