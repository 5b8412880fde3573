// Package settlement implements E4: the atomic six-step cash/share/order/
// trade update executed once per fill inside the matching engine's
// transaction, per spec.md §4.4.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exchsim/internal/money"
	"exchsim/internal/store"
)

// ErrSettlementFailed wraps any failure inside the six-step update; per
// spec.md §4.4 and §7 this should never happen if the engine's pre-checks
// are correct, and surfaces as SETTLEMENT_FAILED if it does.
var ErrSettlementFailed = errors.New("settlement: failed")

// Fill is one match between a taker and a resting maker order.
type Fill struct {
	Ticker      string
	Price       money.Money
	Quantity    uint64
	BuyerID     string
	SellerID    string
	BuyOrderID  string
	SellOrderID string
	// BuyRemaining/SellRemaining are the orders' remaining_quantity AFTER
	// this fill is applied; the caller (matching engine) computes these
	// since only it tracks in-memory order state across a multi-fill sweep.
	BuyRemaining  uint64
	SellRemaining uint64
}

// Settle executes the six updates of spec.md §4.4 inside tx: buyer cash
// debit, seller cash credit, buyer holding increment, seller holding
// decrement, both orders' remaining_quantity/status, and a new trade row.
// Any failure rolls back the whole transaction; the caller commits.
func Settle(tx *store.Tx, f Fill, now time.Time) error {
	cost := f.Price.MulQty(f.Quantity)

	buyer, err := tx.GetAccount(f.BuyerID)
	if err != nil {
		return fmt.Errorf("%w: get buyer: %v", ErrSettlementFailed, err)
	}
	newBuyerCash := buyer.CashBalance.Sub(cost)
	if newBuyerCash.IsNegative() {
		return fmt.Errorf("%w: buyer cash would go negative", ErrSettlementFailed)
	}
	if err := tx.SetAccountCash(f.BuyerID, newBuyerCash); err != nil {
		return fmt.Errorf("%w: debit buyer: %v", ErrSettlementFailed, err)
	}

	seller, err := tx.GetAccount(f.SellerID)
	if err != nil {
		return fmt.Errorf("%w: get seller: %v", ErrSettlementFailed, err)
	}
	if err := tx.SetAccountCash(f.SellerID, seller.CashBalance.Add(cost)); err != nil {
		return fmt.Errorf("%w: credit seller: %v", ErrSettlementFailed, err)
	}

	if err := creditHolding(tx, f.BuyerID, f.Ticker, f.Quantity); err != nil {
		return fmt.Errorf("%w: credit buyer holding: %v", ErrSettlementFailed, err)
	}
	if err := debitHolding(tx, f.SellerID, f.Ticker, f.Quantity); err != nil {
		return fmt.Errorf("%w: debit seller holding: %v", ErrSettlementFailed, err)
	}

	if err := updateOrderAfterFill(tx, f.BuyOrderID, f.BuyRemaining); err != nil {
		return fmt.Errorf("%w: update buy order: %v", ErrSettlementFailed, err)
	}
	if err := updateOrderAfterFill(tx, f.SellOrderID, f.SellRemaining); err != nil {
		return fmt.Errorf("%w: update sell order: %v", ErrSettlementFailed, err)
	}

	trade := &store.Trade{
		ID:          uuid.NewString(),
		Ticker:      f.Ticker,
		Price:       f.Price,
		Quantity:    f.Quantity,
		BuyerID:     f.BuyerID,
		SellerID:    f.SellerID,
		BuyOrderID:  f.BuyOrderID,
		SellOrderID: f.SellOrderID,
		Timestamp:   now,
	}
	if err := tx.InsertTrade(trade); err != nil {
		return fmt.Errorf("%w: insert trade: %v", ErrSettlementFailed, err)
	}
	return nil
}

func creditHolding(tx *store.Tx, accountID, ticker string, qty uint64) error {
	h, err := tx.GetHolding(accountID, ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tx.UpsertHolding(accountID, ticker, qty)
		}
		return err
	}
	return tx.UpsertHolding(accountID, ticker, h.Quantity+qty)
}

func debitHolding(tx *store.Tx, accountID, ticker string, qty uint64) error {
	h, err := tx.GetHolding(accountID, ticker)
	if err != nil {
		return err
	}
	if h.Quantity < qty {
		return fmt.Errorf("holding %d < debit %d", h.Quantity, qty)
	}
	remaining := h.Quantity - qty
	if remaining == 0 {
		return tx.DeleteHolding(accountID, ticker)
	}
	return tx.UpsertHolding(accountID, ticker, remaining)
}

func updateOrderAfterFill(tx *store.Tx, orderID string, remaining uint64) error {
	o, err := tx.GetOrder(orderID)
	if err != nil {
		return err
	}
	o.RemainingQuantity = remaining
	switch {
	case remaining == 0:
		o.Status = store.StatusFilled
	case remaining < o.Quantity:
		o.Status = store.StatusPartial
	default:
		o.Status = store.StatusOpen
	}
	return tx.UpdateOrder(o)
}
