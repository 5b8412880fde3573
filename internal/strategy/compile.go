package strategy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CompiledStrategy is a validated Strategy ready for the rule engine.
type CompiledStrategy struct {
	Strategy
}

// Compile unmarshals a YAML (or YAML-compatible JSON) document and
// validates it per spec.md §4.7.
func Compile(doc []byte) (*CompiledStrategy, error) {
	var s Strategy
	if err := yaml.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("strategy: parse: %w", err)
	}
	cs := &CompiledStrategy{Strategy: s}
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Validate enforces every compile-time rule of spec.md §4.7.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strategy: name is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("strategy: at least one rule is required")
	}
	for i, r := range s.Rules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("strategy: rule %d (%q): %w", i, r.Name, err)
		}
	}
	return nil
}

func (r *Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.When) == 0 {
		return fmt.Errorf("when must not be empty")
	}
	if len(r.Then) == 0 {
		return fmt.Errorf("then must not be empty")
	}
	if r.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative")
	}
	for _, c := range r.When {
		if err := c.validate(); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
	}
	for _, a := range r.Then {
		if err := a.validate(r); err != nil {
			return fmt.Errorf("action: %w", err)
		}
	}
	return nil
}

func (c *Condition) validate() error {
	if !knownMetrics[c.Metric] {
		return fmt.Errorf("unknown metric %q", c.Metric)
	}
	if !knownOperators[c.Operator] {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	return nil
}

func (a *Action) validate(r *Rule) error {
	switch a.Kind {
	case ActionBuy, ActionSell, ActionCancelOrders:
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if a.Kind == ActionCancelOrders {
		return nil
	}

	sizingCount := 0
	if a.Quantity != nil {
		sizingCount++
	}
	if a.QuantityPct != nil {
		sizingCount++
	}
	if a.QuantityAll {
		sizingCount++
	}
	if sizingCount != 1 {
		return fmt.Errorf("exactly one of quantity/quantity_pct/quantity_all is required")
	}

	if a.Price != nil && a.PriceOffsetPct != nil {
		return fmt.Errorf("price and price_offset_pct are mutually exclusive")
	}

	if a.Kind == ActionSell && (a.QuantityPct != nil || a.QuantityAll) {
		if !ruleReadsHoldings(r) {
			return fmt.Errorf("sell with quantity_pct/quantity_all requires a when clause reading my_holdings")
		}
	}
	return nil
}

func ruleReadsHoldings(r *Rule) bool {
	for _, c := range r.When {
		if c.Metric == MetricMyHoldings || c.Metric == MetricMyPositionValue {
			return true
		}
	}
	return false
}
