package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"exchsim/internal/money"
	"exchsim/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	st, err := store.Open(store.SQLite, dsn)
	require.NoError(t, err)
	e, err := New(context.Background(), st)
	require.NoError(t, err)
	require.NoError(t, e.RegisterTicker("TECH"))
	return e, st
}

func openAccount(t *testing.T, st *store.Store, id string, cash float64) {
	t.Helper()
	require.NoError(t, st.CreateAccount(&store.Account{ID: id, CashBalance: money.NewFromFloat(cash), APIKeyHash: uuid.NewString()}))
}

// Scenario 1 from spec.md §8: simple market buy against the IPO treasury.
func TestSimpleMatchAgainstTreasury(t *testing.T) {
	e, st := newTestEngine(t)
	ipo := money.NewFromFloat(100)
	require.NoError(t, st.CreateCompany(&store.Company{Ticker: "TECH", Name: "Tech Co", TotalShares: 1_000_000, FloatShares: 1000, IPOPrice: &ipo, CreatedAt: time.Now()}))
	require.NoError(t, e.SeedIPO(context.Background(), store.Company{Ticker: "TECH", TotalShares: 1_000_000, FloatShares: 1000, IPOPrice: &ipo}))

	openAccount(t, st, "alice", 5000)

	order, fills, err := e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Market, Quantity: 10,
	})
	require.NoError(t, err)
	require.Equal(t, store.StatusFilled, order.Status)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Price.Equal(ipo))

	alice, err := st.GetAccount("alice")
	require.NoError(t, err)
	require.True(t, alice.CashBalance.Equal(money.NewFromFloat(4000)))

	h, err := st.GetHolding("alice", "TECH")
	require.NoError(t, err)
	require.Equal(t, uint64(10), h.Quantity)
}

// Scenario 2: partial fill leaves the taker resting.
func TestPartialFillRests(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "bob", 0)
	openAccount(t, st, "alice", 100_000)
	require.NoError(t, st.UpsertHolding("bob", "TECH", 50))

	_, _, err := e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "bob", Ticker: "TECH", Side: store.Sell, Type: store.Limit,
		Price: ptr(money.NewFromFloat(105)), Quantity: 50,
	})
	require.NoError(t, err)

	aliceOrder, fills, err := e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Limit,
		Price: ptr(money.NewFromFloat(105)), Quantity: 80,
	})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, uint64(50), fills[0].Quantity)
	require.Equal(t, store.StatusPartial, aliceOrder.Status)
	require.Equal(t, uint64(30), aliceOrder.RemainingQuantity)
}

// Scenario 3: price-time priority among two equal-price asks.
func TestPriceTimePriority(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "a", 0)
	openAccount(t, st, "b", 0)
	openAccount(t, st, "buyer", 100_000)
	require.NoError(t, st.UpsertHolding("a", "TECH", 5))
	require.NoError(t, st.UpsertHolding("b", "TECH", 5))

	aID := uuid.NewString()
	_, _, err := e.Submit(context.Background(), SubmitRequest{ID: aID, AccountID: "a", Ticker: "TECH", Side: store.Sell, Type: store.Limit, Price: ptr(money.NewFromFloat(100)), Quantity: 5})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	bID := uuid.NewString()
	_, _, err = e.Submit(context.Background(), SubmitRequest{ID: bID, AccountID: "b", Ticker: "TECH", Side: store.Sell, Type: store.Limit, Price: ptr(money.NewFromFloat(100)), Quantity: 5})
	require.NoError(t, err)

	_, fills, err := e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "buyer", Ticker: "TECH", Side: store.Buy, Type: store.Market, Quantity: 5})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, "a", fills[0].CounterID)

	orderA, err := st.GetOrder(aID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFilled, orderA.Status)

	orderB, err := st.GetOrder(bID)
	require.NoError(t, err)
	require.Equal(t, store.StatusOpen, orderB.Status)
}

// Scenario 4: a market order walks two price levels.
func TestMarketWalksBook(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "seller", 0)
	openAccount(t, st, "alice", 100_000)
	require.NoError(t, st.UpsertHolding("seller", "TECH", 15))

	_, _, err := e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "seller", Ticker: "TECH", Side: store.Sell, Type: store.Limit, Price: ptr(money.NewFromFloat(100)), Quantity: 10})
	require.NoError(t, err)
	_, _, err = e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "seller", Ticker: "TECH", Side: store.Sell, Type: store.Limit, Price: ptr(money.NewFromFloat(101)), Quantity: 5})
	require.NoError(t, err)

	order, fills, err := e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Market, Quantity: 12})
	require.NoError(t, err)
	require.Equal(t, store.StatusFilled, order.Status)
	require.Len(t, fills, 2)
	require.Equal(t, uint64(10), fills[0].Quantity)
	require.Equal(t, uint64(2), fills[1].Quantity)

	alice, err := st.GetAccount("alice")
	require.NoError(t, err)
	require.True(t, alice.CashBalance.Equal(money.NewFromFloat(100_000-1202)))
}

// Scenario 5: pre-check rejects a BUY with insufficient funds.
func TestInsufficientFundsRejectsWithoutSideEffect(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "alice", 50)

	_, _, err := e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Limit,
		Price: ptr(money.NewFromFloat(100)), Quantity: 1,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	orders, err := st.ListOrders("alice", "", "")
	require.NoError(t, err)
	require.Empty(t, orders, "no order row should be created on pre-check rejection")
}

// spec.md §4.3 step 2: a BUY-MARKET must be rejected with
// ErrInsufficientFunds, not fall through to settlement's generic
// negative-cash guard, and must not leave the resting maker's book
// entry partially reduced.
func TestMarketBuyInsufficientFundsRejectsTypedErrorWithoutBookMutation(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "seller", 0)
	openAccount(t, st, "alice", 50)
	require.NoError(t, st.UpsertHolding("seller", "TECH", 10))

	sellID := uuid.NewString()
	_, _, err := e.Submit(context.Background(), SubmitRequest{
		ID: sellID, AccountID: "seller", Ticker: "TECH", Side: store.Sell, Type: store.Limit,
		Price: ptr(money.NewFromFloat(100)), Quantity: 10,
	})
	require.NoError(t, err)

	_, _, err = e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Market, Quantity: 10,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	orders, err := st.ListOrders("alice", "", "")
	require.NoError(t, err)
	require.Empty(t, orders, "no order row should be created on a rejected market buy")

	sellOrder, err := st.GetOrder(sellID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), sellOrder.RemainingQuantity, "rejected fill must not touch the maker's store row")

	levels, ok := e.AggregateLevels("TECH", store.Sell, 5)
	require.True(t, ok)
	require.Len(t, levels, 1)
	require.Equal(t, uint64(10), levels[0].Quantity, "rejected fill must not reduce the resting book entry")
}

// Boundary: MARKET BUY on an empty book cancels with no fills.
func TestMarketBuyOnEmptyBookCancels(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "alice", 1000)

	order, fills, err := e.Submit(context.Background(), SubmitRequest{
		ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Market, Quantity: 5,
	})
	require.NoError(t, err)
	require.Empty(t, fills)
	require.Equal(t, store.StatusCancelled, order.Status)
}

// Boundary: self-trade nets cash and shares to zero delta.
func TestSelfTradeNetsToZero(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "alice", 10_000)
	require.NoError(t, st.UpsertHolding("alice", "TECH", 20))

	_, _, err := e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Sell, Type: store.Limit, Price: ptr(money.NewFromFloat(100)), Quantity: 10})
	require.NoError(t, err)
	_, fills, err := e.Submit(context.Background(), SubmitRequest{ID: uuid.NewString(), AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Limit, Price: ptr(money.NewFromFloat(100)), Quantity: 10})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	alice, err := st.GetAccount("alice")
	require.NoError(t, err)
	require.True(t, alice.CashBalance.Equal(money.NewFromFloat(10_000)), "self-trade must not change own cash")

	h, err := st.GetHolding("alice", "TECH")
	require.NoError(t, err)
	require.Equal(t, uint64(20), h.Quantity, "self-trade must not change own holdings")
}

// Boundary: cancel on an already-terminal order is a double-cancel 409.
func TestDoubleCancelFails(t *testing.T) {
	e, st := newTestEngine(t)
	openAccount(t, st, "alice", 10_000)
	id := uuid.NewString()
	_, _, err := e.Submit(context.Background(), SubmitRequest{ID: id, AccountID: "alice", Ticker: "TECH", Side: store.Buy, Type: store.Limit, Price: ptr(money.NewFromFloat(50)), Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, e.Cancel(context.Background(), "TECH", id, "alice"))
	err = e.Cancel(context.Background(), "TECH", id, "alice")
	require.ErrorIs(t, err, ErrOrderTerminal)

	_ = st
}

func ptr(m money.Money) *money.Money { return &m }
