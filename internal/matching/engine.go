// Package matching implements E3: the price-time-priority matching
// engine. One actor per ticker serializes every submit/cancel against
// that ticker's book, generalizing the teacher's single global
// OrderBook.Match() loop into the per-ticker-actor redesign spec.md §9
// suggests as the explicit write lock of spec.md §5.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"exchsim/internal/book"
	"exchsim/internal/money"
	"exchsim/internal/settlement"
	"exchsim/internal/store"
)

var (
	ErrUnknownTicker      = errors.New("matching: unknown ticker")
	ErrInvalidOrder       = errors.New("matching: invalid order")
	ErrInsufficientFunds  = errors.New("matching: insufficient funds")
	ErrInsufficientShares = errors.New("matching: insufficient shares")
	ErrOrderNotFound      = errors.New("matching: order not found")
	ErrOrderTerminal      = errors.New("matching: order already terminal")
	ErrNotOwner           = errors.New("matching: not order owner")
)

// Fill is a single match reported back to the submitter.
type Fill struct {
	Price       money.Money
	Quantity    uint64
	CounterID   string
	TradeID     string
	IsBuyerSide bool
}

// SubmitRequest is a new order entering the book.
type SubmitRequest struct {
	ID        string
	AccountID string
	Ticker    string
	Side      store.Side
	Type      store.OrderType
	Price     *money.Money
	Quantity  uint64
}

type submitTask struct {
	req    SubmitRequest
	result chan submitResult
}

type submitResult struct {
	order *store.Order
	fills []Fill
	err   error
}

type cancelTask struct {
	orderID string
	account string
	result  chan error
}

// tickerActor owns one ticker's book and serializes every mutation
// through a single goroutine reading off reqs, the per-ticker write
// lock of spec.md §5 made explicit as a channel instead of a mutex.
// snapshot is republished after every mutation so market-data reads
// never touch the live book and can never block a submit.
type tickerActor struct {
	ticker   string
	book     *book.TickerBook
	reqs     chan any
	snapshot atomic.Pointer[bookView]
}

// bookView is an immutable read-only view published after each mutation.
type bookView struct {
	snap book.Snapshot
	bids []book.AggregatedLevel
	asks []book.AggregatedLevel
}

const snapshotDepth = 50

func (a *tickerActor) publish() {
	a.snapshot.Store(&bookView{
		snap: a.book.Snapshot(),
		bids: a.book.AggregateLevels(store.Buy, snapshotDepth),
		asks: a.book.AggregateLevels(store.Sell, snapshotDepth),
	})
}

// Engine is the top-level matching engine: one tickerActor per ticker,
// all supervised under a single tomb.
type Engine struct {
	t      *tomb.Tomb
	store  *store.Store
	mu     sync.RWMutex
	actors map[string]*tickerActor
}

// New builds an Engine and starts an actor for every company in the
// store, rebuilding each book from that ticker's resting orders per
// spec.md §4.2's startup recovery contract.
func New(ctx context.Context, st *store.Store) (*Engine, error) {
	e := &Engine{t: &tomb.Tomb{}, store: st, actors: make(map[string]*tickerActor)}

	companies, err := st.ListCompanies()
	if err != nil {
		return nil, fmt.Errorf("matching: list companies: %w", err)
	}
	for _, c := range companies {
		if err := e.ensureActor(c.Ticker); err != nil {
			return nil, err
		}
	}
	e.t.Go(func() error {
		<-e.t.Dying()
		return nil
	})
	return e, nil
}

func (e *Engine) ensureActor(ticker string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.actors[ticker]; ok {
		return nil
	}
	orders, err := e.store.ScanRestingOrders(ticker)
	if err != nil {
		return fmt.Errorf("matching: scan resting orders for %s: %w", ticker, err)
	}
	a := &tickerActor{
		ticker: ticker,
		book:   book.Rebuild(ticker, orders),
		reqs:   make(chan any, 256),
	}
	a.publish()
	e.actors[ticker] = a
	e.t.Go(func() error { return e.runActor(a) })
	log.Info().Str("ticker", ticker).Int("restingOrders", len(orders)).Msg("ticker actor started")
	return nil
}

func (e *Engine) actor(ticker string) (*tickerActor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.actors[ticker]
	return a, ok
}

// RegisterTicker starts an empty actor for a newly created company.
func (e *Engine) RegisterTicker(ticker string) error {
	return e.ensureActor(ticker)
}

func (e *Engine) runActor(a *tickerActor) error {
	for {
		select {
		case <-e.t.Dying():
			return nil
		case task := <-a.reqs:
			switch t := task.(type) {
			case *submitTask:
				order, fills, err := e.handleSubmit(a, t.req)
				a.publish()
				t.result <- submitResult{order: order, fills: fills, err: err}
			case *cancelTask:
				err := e.handleCancel(a, t.orderID, t.account)
				a.publish()
				t.result <- err
			}
		}
	}
}

// Stop signals every actor to exit and waits for them.
func (e *Engine) Stop() error {
	e.t.Kill(nil)
	return e.t.Wait()
}

// Submit enqueues an order on its ticker's actor and blocks for the
// result. Context cancellation unblocks the caller but does not cancel
// the in-flight matching (that commit, once started, always runs to
// completion — spec.md §5's suspension-point contract).
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*store.Order, []Fill, error) {
	a, ok := e.actor(req.Ticker)
	if !ok {
		return nil, nil, ErrUnknownTicker
	}
	task := &submitTask{req: req, result: make(chan submitResult, 1)}
	select {
	case a.reqs <- task:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case res := <-task.result:
		return res.order, res.fills, res.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Cancel enqueues a cancel request for orderID on its ticker's actor.
func (e *Engine) Cancel(ctx context.Context, ticker, orderID, accountID string) error {
	a, ok := e.actor(ticker)
	if !ok {
		return ErrUnknownTicker
	}
	task := &cancelTask{orderID: orderID, account: accountID, result: make(chan error, 1)}
	select {
	case a.reqs <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-task.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BookSnapshot returns the most recently published read-only view for
// market data. It never touches the live book or the actor's channel,
// so it can never block a submit, per spec.md §4.6/§5.
func (e *Engine) BookSnapshot(ticker string) (book.Snapshot, bool) {
	a, ok := e.actor(ticker)
	if !ok {
		return book.Snapshot{}, false
	}
	return a.snapshot.Load().snap, true
}

func (e *Engine) AggregateLevels(ticker string, side store.Side, depth int) ([]book.AggregatedLevel, bool) {
	a, ok := e.actor(ticker)
	if !ok {
		return nil, false
	}
	view := a.snapshot.Load()
	levels := view.bids
	if side == store.Sell {
		levels = view.asks
	}
	if depth > 0 && depth < len(levels) {
		levels = levels[:depth]
	}
	return levels, true
}

// handleSubmit runs the full spec.md §4.3 algorithm for one order,
// generalizing the sweep technique of the teacher's OrderBook.Match /
// handleMarket into a single loop driven by the taker's own remaining
// quantity, calling settlement.Settle once per fill inside one
// store.WithTx.
func (e *Engine) handleSubmit(a *tickerActor, req SubmitRequest) (*store.Order, []Fill, error) {
	if req.Quantity == 0 {
		return nil, nil, ErrInvalidOrder
	}
	if req.Type == store.Limit && req.Price == nil {
		return nil, nil, ErrInvalidOrder
	}

	now := time.Now()
	order := &store.Order{
		ID: req.ID, AccountID: req.AccountID, Ticker: req.Ticker, Side: req.Side, Type: req.Type,
		Price: req.Price, Quantity: req.Quantity, RemainingQuantity: req.Quantity,
		Status: store.StatusOpen, Timestamp: now,
	}

	var fills []Fill
	err := e.store.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := reservePreCheck(tx, req); err != nil {
			return err
		}
		if err := tx.InsertOrder(order); err != nil {
			return fmt.Errorf("matching: insert order: %w", err)
		}

		opposite := store.Sell
		if req.Side == store.Sell {
			opposite = store.Buy
		}

		for order.RemainingQuantity > 0 {
			level, ok := a.book.Best(opposite)
			if !ok {
				break
			}
			if len(level.Orders) == 0 {
				break
			}
			maker := level.Orders[0]

			if order.Type == store.Limit && !crosses(req.Side, *req.Price, maker.Price) {
				break
			}

			qty := min(order.RemainingQuantity, maker.RemainingQuantity)

			if order.Type == store.Market && order.Side == store.Buy {
				acct, err := tx.GetAccount(req.AccountID)
				if err != nil {
					return fmt.Errorf("matching: lookup account: %w", err)
				}
				if acct.CashBalance.LessThan(maker.Price.MulQty(qty)) {
					return ErrInsufficientFunds
				}
			}

			order.RemainingQuantity -= qty
			a.book.Reduce(maker.ID, qty)

			remainingAfter := uint64(0)
			if fresh, stillResting := a.book.Get(maker.ID); stillResting {
				remainingAfter = fresh.RemainingQuantity
			}

			buyOrderID, sellOrderID := order.ID, maker.ID
			buyerID, sellerID := order.AccountID, maker.AccountID
			buyRemaining, sellRemaining := order.RemainingQuantity, remainingAfter
			if req.Side == store.Sell {
				buyOrderID, sellOrderID = maker.ID, order.ID
				buyerID, sellerID = maker.AccountID, order.AccountID
				buyRemaining, sellRemaining = remainingAfter, order.RemainingQuantity
			}

			f := settlement.Fill{
				Ticker: req.Ticker, Price: maker.Price, Quantity: qty,
				BuyerID: buyerID, SellerID: sellerID,
				BuyOrderID: buyOrderID, SellOrderID: sellOrderID,
				BuyRemaining: buyRemaining, SellRemaining: sellRemaining,
			}
			if err := settlement.Settle(tx, f, now); err != nil {
				return err
			}

			fills = append(fills, Fill{
				Price: maker.Price, Quantity: qty, CounterID: maker.AccountID,
				IsBuyerSide: req.Side == store.Buy,
			})
		}

		switch {
		case order.Type == store.Market && order.RemainingQuantity > 0:
			order.Status = store.StatusCancelled
		case order.RemainingQuantity == 0:
			order.Status = store.StatusFilled
		case order.RemainingQuantity < order.Quantity:
			order.Status = store.StatusPartial
			a.book.Insert(&book.RestingOrder{
				ID: order.ID, AccountID: order.AccountID, Side: order.Side,
				Price: *order.Price, RemainingQuantity: order.RemainingQuantity,
				Timestamp: order.Timestamp, Seq: order.Seq,
			})
		default:
			order.Status = store.StatusOpen
			if order.Type == store.Limit {
				a.book.Insert(&book.RestingOrder{
					ID: order.ID, AccountID: order.AccountID, Side: order.Side,
					Price: *order.Price, RemainingQuantity: order.RemainingQuantity,
					Timestamp: order.Timestamp, Seq: order.Seq,
				})
			}
		}
		return tx.UpdateOrder(order)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, fills, nil
}

// reservePreCheck implements spec.md §4.3 step 2: synchronous rejection
// with no partial reservation. BUY-LIMIT and SELL are checked once
// here against the full order size; BUY-MARKET affordability depends
// on which price levels it walks, so it is re-checked fill by fill in
// handleSubmit before each book mutation.
func reservePreCheck(tx *store.Tx, req SubmitRequest) error {
	acct, err := tx.GetAccount(req.AccountID)
	if err != nil {
		return fmt.Errorf("matching: lookup account: %w", err)
	}
	switch req.Side {
	case store.Buy:
		if req.Type == store.Limit {
			cost := req.Price.MulQty(req.Quantity)
			if acct.CashBalance.LessThan(cost) {
				return ErrInsufficientFunds
			}
		}
	case store.Sell:
		h, err := tx.GetHolding(req.AccountID, req.Ticker)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInsufficientShares
			}
			return err
		}
		if h.Quantity < req.Quantity {
			return ErrInsufficientShares
		}
	}
	return nil
}

func crosses(side store.Side, price, makerPrice money.Money) bool {
	if side == store.Buy {
		return price.GreaterThanOrEqual(makerPrice)
	}
	return price.LessThanOrEqual(makerPrice)
}

func (e *Engine) handleCancel(a *tickerActor, orderID, accountID string) error {
	resting, ok := a.book.Get(orderID)
	if !ok {
		if _, err := e.store.GetOrder(orderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		return ErrOrderTerminal
	}
	if resting.AccountID != accountID {
		return ErrNotOwner
	}

	return e.store.WithTx(context.Background(), func(tx *store.Tx) error {
		order, err := tx.GetOrder(orderID)
		if err != nil {
			return err
		}
		if order.Status != store.StatusOpen && order.Status != store.StatusPartial {
			return ErrOrderTerminal
		}
		order.Status = store.StatusCancelled
		if err := tx.UpdateOrder(order); err != nil {
			return err
		}
		a.book.Remove(orderID)
		return nil
	})
}

// SeedIPO places the treasury's initial SELL-LIMIT per spec.md §4.3. The
// treasury account is created on demand and its holding is credited
// with the company's total_shares; only float_shares are offered for sale.
func (e *Engine) SeedIPO(ctx context.Context, company store.Company) error {
	if err := e.ensureActor(company.Ticker); err != nil {
		return err
	}
	if company.IPOPrice == nil || company.FloatShares == 0 {
		return nil
	}

	if _, err := e.store.GetAccount(store.TreasuryOwner); errors.Is(err, store.ErrNotFound) {
		if err := e.store.CreateAccount(&store.Account{
			ID: store.TreasuryOwner, CashBalance: money.Zero, APIKeyHash: uuid.NewString(),
		}); err != nil {
			return fmt.Errorf("matching: create treasury: %w", err)
		}
	} else if err != nil {
		return err
	}

	existing, err := e.store.GetHolding(store.TreasuryOwner, company.Ticker)
	base := uint64(0)
	if err == nil {
		base = existing.Quantity
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := e.store.UpsertHolding(store.TreasuryOwner, company.Ticker, base+company.TotalShares); err != nil {
		return fmt.Errorf("matching: seed treasury holding: %w", err)
	}

	_, _, err = e.Submit(ctx, SubmitRequest{
		ID: uuid.NewString(), AccountID: store.TreasuryOwner, Ticker: company.Ticker,
		Side: store.Sell, Type: store.Limit, Price: company.IPOPrice, Quantity: company.FloatShares,
	})
	return err
}
