package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptrF(f float64) *float64 { return &f }

const validDoc = `
name: momentum-buyer
description: buys on dips
settings:
  max_order_value: 1000
  min_cash_reserve: 100
rules:
  - name: buy-the-dip
    ticker: all
    when:
      - metric: price_change_pct
        operator: "<"
        value: -2
    then:
      - kind: buy
        quantity_pct: 0.1
        order_type: market
    cooldown_seconds: 60
    priority: 1
`

func TestCompileValidDocument(t *testing.T) {
	cs, err := Compile([]byte(validDoc))
	require.NoError(t, err)
	require.Equal(t, "momentum-buyer", cs.Name)
	require.Len(t, cs.Rules, 1)
	require.Equal(t, 60, cs.Rules[0].CooldownSeconds)
}

func TestCompileRejectsMalformedYAML(t *testing.T) {
	_, err := Compile([]byte("not: [valid"))
	require.Error(t, err)
}

func TestCompileRejectsMissingName(t *testing.T) {
	_, err := Compile([]byte(`
rules:
  - name: r
    ticker: all
    when: [{metric: price, operator: ">", value: 1}]
    then: [{kind: buy, quantity: 1}]
`))
	require.Error(t, err)
}

func TestCompileRejectsEmptyWhen(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			Then:   []Action{{Kind: ActionBuy, Quantity: ptrF(1)}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsEmptyThen(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsUnknownMetric(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: "moon_phase", Operator: OpGT, Value: 1}},
			Then:   []Action{{Kind: ActionBuy, Quantity: ptrF(1)}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: "~=", Value: 1}},
			Then:   []Action{{Kind: ActionBuy, Quantity: ptrF(1)}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsContradictorySizing(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
			Then:   []Action{{Kind: ActionBuy, Quantity: ptrF(1), QuantityPct: ptrF(0.1)}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsMissingSizing(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
			Then:   []Action{{Kind: ActionBuy}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsContradictoryPricing(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
			Then:   []Action{{Kind: ActionBuy, Quantity: ptrF(1), Price: ptrF(10), PriceOffsetPct: ptrF(0.01)}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileRejectsSellAllWithoutHoldingsCondition(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
			Then:   []Action{{Kind: ActionSell, QuantityAll: true}},
		}},
	}
	require.Error(t, s.Validate())
}

func TestCompileAllowsSellAllWithHoldingsCondition(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricMyHoldings, Operator: OpGT, Value: 0}},
			Then:   []Action{{Kind: ActionSell, QuantityAll: true}},
		}},
	}
	require.NoError(t, s.Validate())
}

func TestCompileAllowsCancelOrdersWithoutSizing(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:   "r1",
			Ticker: "all",
			When:   []Condition{{Metric: MetricMyOpenOrders, Operator: OpGT, Value: 0}},
			Then:   []Action{{Kind: ActionCancelOrders}},
		}},
	}
	require.NoError(t, s.Validate())
}

func TestCompileRejectsNegativeCooldown(t *testing.T) {
	s := Strategy{
		Name: "x",
		Rules: []Rule{{
			Name:            "r1",
			Ticker:          "all",
			When:            []Condition{{Metric: MetricPrice, Operator: OpGT, Value: 1}},
			Then:            []Action{{Kind: ActionBuy, Quantity: ptrF(1)}},
			CooldownSeconds: -1,
		}},
	}
	require.Error(t, s.Validate())
}
