// Package builtin holds a catalog of ready-made strategy documents,
// generalizing the teacher pack's multi-strategy-plugin idea
// (web3guy0-polybot/internal/strategy's interface-per-strategy
// registry) into plain data compiled through internal/strategy.
package builtin

import "exchsim/internal/strategy"

// Registry is a catalog of compiled built-in strategies keyed by ID.
type Registry struct {
	strategies map[string]*strategy.CompiledStrategy
	order      []string
}

// NewRegistry compiles every document in this package and panics if
// one fails validation — a built-in failing compile is a programming
// error, not a runtime condition.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]*strategy.CompiledStrategy)}
	for id, doc := range documents {
		cs, err := strategy.Compile([]byte(doc))
		if err != nil {
			panic("builtin: strategy " + id + " failed to compile: " + err.Error())
		}
		r.strategies[id] = cs
		r.order = append(r.order, id)
	}
	return r
}

// Get returns the compiled strategy for id, or false if unknown.
func (r *Registry) Get(id string) (*strategy.CompiledStrategy, bool) {
	cs, ok := r.strategies[id]
	return cs, ok
}

// IDs returns every built-in strategy ID in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

var documents = map[string]string{
	"momentum-buyer": momentumBuyer,
	"mean-reversion-fader": meanReversionFader,
	"spread-skimmer": spreadSkimmer,
}

const momentumBuyer = `
name: momentum-buyer
description: buys into upward price moves, sells on a pullback
settings:
  max_order_value: 5000
  min_cash_reserve: 500
rules:
  - name: buy-the-breakout
    ticker: all
    when:
      - metric: price_change_pct
        operator: ">"
        value: 3
    then:
      - kind: buy
        quantity_pct: 0.2
        order_type: market
    cooldown_seconds: 300
    priority: 10
  - name: sell-on-reversal
    ticker: all
    when:
      - metric: my_holdings
        operator: ">"
        value: 0
      - metric: price_change_pct
        operator: "<"
        value: -3
    then:
      - kind: sell
        quantity_all: true
        order_type: market
    cooldown_seconds: 300
    priority: 10
`

const meanReversionFader = `
name: mean-reversion-fader
description: sells into spikes, buys into dips, expecting reversion to the recent average
settings:
  max_order_value: 3000
  min_cash_reserve: 1000
rules:
  - name: fade-spike
    ticker: all
    when:
      - metric: my_holdings
        operator: ">"
        value: 0
      - metric: price_change_pct
        operator: ">"
        value: 5
    then:
      - kind: sell
        quantity_pct: 0.5
        order_type: market
    cooldown_seconds: 600
    priority: 5
  - name: fade-dip
    ticker: all
    when:
      - metric: price_change_pct
        operator: "<"
        value: -5
    then:
      - kind: buy
        quantity_pct: 0.15
        order_type: market
    cooldown_seconds: 600
    priority: 5
`

const spreadSkimmer = `
name: spread-skimmer
description: places a limit buy just above the ask when the spread is wide, assuming it will narrow
settings:
  max_order_value: 2000
  min_cash_reserve: 200
rules:
  - name: buy-wide-spread
    ticker: all
    when:
      - metric: spread_pct
        operator: ">"
        value: 2
    then:
      - kind: buy
        quantity_pct: 0.1
        price_offset_pct: 0.5
        order_type: limit
    cooldown_seconds: 120
    priority: 1
  - name: trim-on-narrow-spread
    ticker: all
    when:
      - metric: my_holdings
        operator: ">"
        value: 0
      - metric: spread_pct
        operator: "<"
        value: 0.5
    then:
      - kind: sell
        quantity_pct: 0.25
        order_type: market
    cooldown_seconds: 120
    priority: 1
`
