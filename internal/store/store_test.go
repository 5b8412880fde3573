package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchsim/internal/money"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	s, err := Open(SQLite, dsn)
	require.NoError(t, err)
	return s
}

func TestCreateAndGetAccount(t *testing.T) {
	s := newTestStore(t)
	a := &Account{ID: "alice", CashBalance: money.NewFromFloat(5000), APIKeyHash: "h1", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAccount(a))

	got, err := s.GetAccount("alice")
	require.NoError(t, err)
	require.True(t, got.CashBalance.Equal(money.NewFromFloat(5000)))

	_, err = s.GetAccount("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHoldingUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertHolding("alice", "TECH", 10))

	h, err := s.GetHolding("alice", "TECH")
	require.NoError(t, err)
	require.Equal(t, uint64(10), h.Quantity)

	require.NoError(t, s.DeleteHolding("alice", "TECH"))
	_, err = s.GetHolding("alice", "TECH")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateAccount(&Account{ID: "bob", CashBalance: money.NewFromFloat(100), CreatedAt: time.Now()}))

	wantErr := require.Error
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		if err := tx.SetAccountCash("bob", money.NewFromFloat(0)); err != nil {
			return err
		}
		return ErrAlreadyExists // force rollback
	})
	wantErr(t, err)

	got, err := s.GetAccount("bob")
	require.NoError(t, err)
	require.True(t, got.CashBalance.Equal(money.NewFromFloat(100)), "cash must be unchanged after rollback")
}

func TestScanRestingOrdersOrdering(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	price := money.NewFromFloat(100)
	require.NoError(t, s.InsertOrder(&Order{ID: "o1", Ticker: "TECH", Side: Sell, Type: Limit, Price: &price, Quantity: 5, RemainingQuantity: 5, Status: StatusOpen, Timestamp: base}))
	require.NoError(t, s.InsertOrder(&Order{ID: "o2", Ticker: "TECH", Side: Sell, Type: Limit, Price: &price, Quantity: 5, RemainingQuantity: 5, Status: StatusOpen, Timestamp: base.Add(time.Second)}))

	os, err := s.ScanRestingOrders("TECH")
	require.NoError(t, err)
	require.Len(t, os, 2)
	require.Equal(t, "o1", os[0].ID)
	require.Equal(t, "o2", os[1].ID)
}
