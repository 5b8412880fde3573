// Package money implements fixed-point decimal amounts for cash and
// prices. Binary floating point is never used for money: spec.md is
// explicit that conservation invariants must hold exactly across
// settlement, which rules out float64 accumulation error.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money wraps shopspring/decimal rounded to 2 places, the fixed-point
// representation spec.md §3 calls for.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// New builds a Money from a string, e.g. "100.00".
func New(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Money{d: d.Round(2)}, nil
}

// NewFromFloat builds a Money from a float64. Only safe at trust
// boundaries (config, test fixtures) — never for accumulating results.
func NewFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(2)}
}

// NewFromInt builds a Money from a whole-unit integer.
func NewFromInt(i int64) Money {
	return Money{d: decimal.NewFromInt(i)}
}

func (m Money) Add(o Money) Money      { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money      { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money             { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool           { return m.d.IsZero() }
func (m Money) IsNegative() bool       { return m.d.IsNegative() }
func (m Money) IsPositive() bool       { return m.d.IsPositive() }
func (m Money) GreaterThan(o Money) bool      { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool         { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool  { return m.d.LessThanOrEqual(o.d) }
func (m Money) Equal(o Money) bool            { return m.d.Equal(o.d) }

// MulQty multiplies a price by an integer quantity, e.g. price * qty.
func (m Money) MulQty(qty uint64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty))).Round(2)}
}

// MulFrac multiplies by a fraction in [0,1], used for quantity_pct sizing.
func (m Money) MulFrac(frac float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(frac)).Round(2)}
}

// DivPrice divides an amount by a price, floor-rounded to a whole share
// count — used to size "affordable" quantity from a cash budget.
func (m Money) DivPrice(price Money) uint64 {
	if price.IsZero() || price.IsNegative() {
		return 0
	}
	q := m.d.Div(price.d).Floor()
	if q.IsNegative() {
		return 0
	}
	return uint64(q.IntPart())
}

func (m Money) String() string { return m.d.StringFixed(2) }

func (m Money) Float64() float64 { f, _ := m.d.Float64(); return f }

// MarshalJSON serializes as a decimal string per spec.md §6.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.StringFixed(2))
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("money: unmarshal %q: %w", s, err)
		}
		m.d = d.Round(2)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("money: unmarshal %s: %w", string(b), err)
	}
	m.d = decimal.NewFromFloat(f).Round(2)
	return nil
}

// Value implements driver.Valuer so Money can be stored as a gorm column.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(2), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.d = decimal.Zero
		return nil
	}
	switch v := value.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		m.d = d
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		m.d = d
	case float64:
		m.d = decimal.NewFromFloat(v)
	case int64:
		m.d = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("money: unsupported scan type %T", value)
	}
	return nil
}

// GormDataType tells gorm to store Money as a fixed-precision decimal column.
func (Money) GormDataType() string {
	return "decimal(20,2)"
}
