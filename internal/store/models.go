package store

import (
	"time"

	"exchsim/internal/money"
)

// Side is which direction an order trades.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType is limit or market, per spec.md §3.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus tracks an order's lifecycle per spec.md §3 invariant 4.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// TreasuryOwner is the synthetic account ID that IPO seeding credits
// with each company's total_shares, per spec.md §4.3.
const TreasuryOwner = "treasury"

// Company is immutable after creation in phase 1, per spec.md §3.
type Company struct {
	Ticker      string `gorm:"primaryKey"`
	Name        string
	TotalShares uint64
	FloatShares uint64
	IPOPrice    *money.Money `gorm:"type:decimal(20,2)"`
	CreatedAt   time.Time
}

// Account holds cash and an opaque hashed API key.
type Account struct {
	ID           string `gorm:"primaryKey"`
	CashBalance  money.Money
	APIKeyHash   string `gorm:"uniqueIndex"`
	CreatedAt    time.Time
}

// Holding is a composite-key row; zero-quantity rows are deleted, never stored.
type Holding struct {
	AccountID string `gorm:"primaryKey"`
	Ticker    string `gorm:"primaryKey"`
	Quantity  uint64
}

// Order is a resting or terminal order, per spec.md §3.
type Order struct {
	ID                string `gorm:"primaryKey"`
	AccountID         string `gorm:"index"`
	Ticker            string `gorm:"index:idx_orders_book"`
	Side              Side
	Type              OrderType
	Price             *money.Money `gorm:"type:decimal(20,2)"`
	Quantity          uint64
	RemainingQuantity uint64
	Status            OrderStatus `gorm:"index:idx_orders_book"`
	Timestamp         time.Time   `gorm:"index:idx_orders_book"`
	Seq               uint64      `gorm:"autoIncrement"` // tiebreak for identical timestamps
}

// Trade is append-only, per spec.md §3.
type Trade struct {
	ID          string `gorm:"primaryKey"`
	Ticker      string `gorm:"index"`
	Price       money.Money
	Quantity    uint64
	BuyerID     string
	SellerID    string
	BuyOrderID  string `gorm:"index"`
	SellOrderID string `gorm:"index"`
	Timestamp   time.Time `gorm:"index"`
}
