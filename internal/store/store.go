// Package store is the persistent store (E1): durable tables for
// companies, accounts, holdings, orders, and trades behind gorm,
// providing the serializable transaction spec.md §4.1 requires for
// settlement.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"exchsim/internal/money"
)

// Driver selects the backing SQL engine.
type Driver int

const (
	SQLite Driver = iota
	Postgres
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// dbHandle is embedded by both Store and Tx so every accessor method is
// written once and usable from either the top-level store or inside a
// transaction.
type dbHandle struct {
	g *gorm.DB
}

// Store is the top-level handle opened once at service startup.
type Store struct {
	dbHandle
}

// Tx is a handle scoped to a single WithTx call; it and Store share the
// exact same accessor surface.
type Tx struct {
	dbHandle
}

// Open connects to the given driver/dsn and runs AutoMigrate.
func Open(driver Driver, dsn string) (*Store, error) {
	var dial gorm.Dialector
	switch driver {
	case SQLite:
		dial = sqlite.Open(dsn)
	case Postgres:
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %d", driver)
	}

	g, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if err := g.AutoMigrate(&Company{}, &Account{}, &Holding{}, &Order{}, &Trade{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{dbHandle{g: g}}, nil
}

// Close releases the underlying database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.g.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

// WithTx runs fn inside a serializable gorm transaction. Any error
// returned from fn (or a panic) rolls back every statement issued on
// the *Tx; a nil return commits. This is the BEGIN/COMMIT/ROLLBACK
// contract spec.md §4.1 requires, and the single point through which
// settlement (§4.4) executes its six updates atomically.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	return s.g.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{dbHandle{g: gtx}})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// --- Company ---

func (d dbHandle) CreateCompany(c *Company) error {
	if err := d.g.Create(c).Error; err != nil {
		return fmt.Errorf("store: create company: %w", err)
	}
	return nil
}

func (d dbHandle) GetCompany(ticker string) (*Company, error) {
	var c Company
	if err := d.g.First(&c, "ticker = ?", ticker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (d dbHandle) ListCompanies() ([]Company, error) {
	var cs []Company
	if err := d.g.Order("ticker").Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

// --- Account ---

func (d dbHandle) CreateAccount(a *Account) error {
	if err := d.g.Create(a).Error; err != nil {
		return fmt.Errorf("store: create account: %w", err)
	}
	return nil
}

func (d dbHandle) GetAccount(id string) (*Account, error) {
	var a Account
	if err := d.g.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (d dbHandle) GetAccountByAPIKeyHash(hash string) (*Account, error) {
	var a Account
	if err := d.g.First(&a, "api_key_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (d dbHandle) ListAccounts() ([]Account, error) {
	var as []Account
	if err := d.g.Order("id").Find(&as).Error; err != nil {
		return nil, err
	}
	return as, nil
}

// SetAccountCash overwrites cash_balance. Callers must have already
// checked non-negativity; this does not re-check.
func (d dbHandle) SetAccountCash(id string, cash money.Money) error {
	return d.g.Model(&Account{}).Where("id = ?", id).Update("cash_balance", cash).Error
}

// --- Holding ---

func (d dbHandle) GetHolding(accountID, ticker string) (*Holding, error) {
	var h Holding
	if err := d.g.First(&h, "account_id = ? AND ticker = ?", accountID, ticker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (d dbHandle) ListHoldings(accountID string) ([]Holding, error) {
	var hs []Holding
	if err := d.g.Where("account_id = ?", accountID).Order("ticker").Find(&hs).Error; err != nil {
		return nil, err
	}
	return hs, nil
}

// UpsertHolding sets the holding's quantity, creating the row if absent.
func (d dbHandle) UpsertHolding(accountID, ticker string, quantity uint64) error {
	h := Holding{AccountID: accountID, Ticker: ticker, Quantity: quantity}
	return d.g.Save(&h).Error
}

// DeleteHolding removes a holding row entirely; spec.md §3 requires
// zero-quantity holdings never be stored.
func (d dbHandle) DeleteHolding(accountID, ticker string) error {
	return d.g.Delete(&Holding{}, "account_id = ? AND ticker = ?", accountID, ticker).Error
}

// --- Order ---

func (d dbHandle) InsertOrder(o *Order) error {
	return d.g.Create(o).Error
}

func (d dbHandle) GetOrder(id string) (*Order, error) {
	var o Order
	if err := d.g.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (d dbHandle) UpdateOrder(o *Order) error {
	return d.g.Save(o).Error
}

// ListOrders supports the trader-facing GET /orders?status=&ticker= filter.
func (d dbHandle) ListOrders(accountID string, status OrderStatus, ticker string) ([]Order, error) {
	q := d.g.Where("account_id = ?", accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	var os []Order
	if err := q.Order("timestamp, seq").Find(&os).Error; err != nil {
		return nil, err
	}
	return os, nil
}

// ScanRestingOrders returns every OPEN/PARTIAL order for a ticker
// ordered by (price, timestamp, seq) — the scan internal/book.Rebuild
// uses to reconstruct the in-memory index on startup, per spec.md §4.2.
func (d dbHandle) ScanRestingOrders(ticker string) ([]Order, error) {
	var os []Order
	err := d.g.
		Where("ticker = ? AND status IN ?", ticker, []OrderStatus{StatusOpen, StatusPartial}).
		Order("price, timestamp, seq").
		Find(&os).Error
	if err != nil {
		return nil, err
	}
	return os, nil
}

func (d dbHandle) ListTickersWithRestingOrders() ([]string, error) {
	var tickers []string
	err := d.g.Model(&Order{}).
		Where("status IN ?", []OrderStatus{StatusOpen, StatusPartial}).
		Distinct().
		Pluck("ticker", &tickers).Error
	return tickers, err
}

// --- Trade ---

func (d dbHandle) InsertTrade(t *Trade) error {
	return d.g.Create(t).Error
}

// ListTrades returns trades newest-first, optionally since a timestamp,
// capped at limit, for GET /trades/{ticker}.
func (d dbHandle) ListTrades(ticker string, limit int, since time.Time) ([]Trade, error) {
	q := d.g.Where("ticker = ?", ticker)
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since)
	}
	q = q.Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ts []Trade
	if err := q.Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

// Stats aggregates admin/stats figures directly from the store.
type Stats struct {
	Companies   int64
	Accounts    int64
	OpenOrders  int64
	TotalTrades int64
	TotalVolume uint64
}

func (d dbHandle) Stats() (Stats, error) {
	var s Stats
	if err := d.g.Model(&Company{}).Count(&s.Companies).Error; err != nil {
		return s, err
	}
	if err := d.g.Model(&Account{}).Count(&s.Accounts).Error; err != nil {
		return s, err
	}
	if err := d.g.Model(&Order{}).Where("status IN ?", []OrderStatus{StatusOpen, StatusPartial}).Count(&s.OpenOrders).Error; err != nil {
		return s, err
	}
	if err := d.g.Model(&Trade{}).Count(&s.TotalTrades).Error; err != nil {
		return s, err
	}
	var vol struct{ Total uint64 }
	d.g.Model(&Trade{}).Select("COALESCE(SUM(quantity),0) as total").Scan(&vol)
	s.TotalVolume = vol.Total
	return s, nil
}
