// Package strategy implements A1: the declarative rule-based strategy
// DSL. A strategy document is structured data (YAML or JSON), not
// free-form syntax, so compilation is struct decoding plus validation
// rather than a hand-rolled parser.
package strategy

// Strategy is a complete trading strategy document, per spec.md §4.7.
type Strategy struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Settings    Settings `yaml:"settings" json:"settings"`
	Rules       []Rule   `yaml:"rules" json:"rules"`
}

// Settings bounds the orders every rule in the strategy may produce.
type Settings struct {
	MaxOrderValue  float64 `yaml:"max_order_value" json:"max_order_value"`
	MinCashReserve float64 `yaml:"min_cash_reserve" json:"min_cash_reserve"`
}

// Rule is one IF/THEN clause in the strategy.
type Rule struct {
	Name            string      `yaml:"name" json:"name"`
	Description     string      `yaml:"description,omitempty" json:"description,omitempty"`
	Ticker          string      `yaml:"ticker" json:"ticker"` // "all" or a specific symbol
	When            []Condition `yaml:"when" json:"when"`
	Then            []Action    `yaml:"then" json:"then"`
	CooldownSeconds int         `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	Priority        int         `yaml:"priority" json:"priority"`
}

// Metric names a condition may reference, per spec.md §4.7's table.
type Metric string

const (
	MetricPrice           Metric = "price"
	MetricPriceChangePct  Metric = "price_change_pct"
	MetricBidPrice        Metric = "bid_price"
	MetricAskPrice        Metric = "ask_price"
	MetricSpreadPct       Metric = "spread_pct"
	MetricMyCash          Metric = "my_cash"
	MetricMyHoldings      Metric = "my_holdings"
	MetricMyPositionValue Metric = "my_position_value"
	MetricMyOpenOrders    Metric = "my_open_orders"
)

var knownMetrics = map[Metric]bool{
	MetricPrice: true, MetricPriceChangePct: true, MetricBidPrice: true, MetricAskPrice: true,
	MetricSpreadPct: true, MetricMyCash: true, MetricMyHoldings: true,
	MetricMyPositionValue: true, MetricMyOpenOrders: true,
}

// Operator is a comparison operator.
type Operator string

const (
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

var knownOperators = map[Operator]bool{
	OpLT: true, OpLE: true, OpGT: true, OpGE: true, OpEQ: true, OpNE: true,
}

// Condition is one clause of a rule's `when` conjunction.
type Condition struct {
	Metric   Metric   `yaml:"metric" json:"metric"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    float64  `yaml:"value" json:"value"`
}

// ActionKind is buy, sell, or cancel_orders.
type ActionKind string

const (
	ActionBuy          ActionKind = "buy"
	ActionSell         ActionKind = "sell"
	ActionCancelOrders ActionKind = "cancel_orders"
)

// OrderTypeHint selects limit vs market for an action, per spec.md §4.7.
type OrderTypeHint string

const (
	OrderTypeLimit  OrderTypeHint = "limit"
	OrderTypeMarket OrderTypeHint = "market"
)

// Action is one `then` step of a rule.
type Action struct {
	Kind ActionKind `yaml:"kind" json:"kind"`

	// Quantity sizing: exactly one of these three should be set.
	Quantity        *float64 `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	QuantityPct     *float64 `yaml:"quantity_pct,omitempty" json:"quantity_pct,omitempty"`
	QuantityAll     bool     `yaml:"quantity_all,omitempty" json:"quantity_all,omitempty"`

	// Price sizing: at most one of these two; absent + OrderType market -> market order.
	Price          *float64 `yaml:"price,omitempty" json:"price,omitempty"`
	PriceOffsetPct *float64 `yaml:"price_offset_pct,omitempty" json:"price_offset_pct,omitempty"`

	OrderType OrderTypeHint `yaml:"order_type,omitempty" json:"order_type,omitempty"`
}
