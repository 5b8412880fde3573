package agenthttp

import (
	"exchsim/internal/agent"
	"exchsim/internal/strategy"
)

type StrategyDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Settings    strategy.Settings `json:"settings"`
	Rules       []strategy.Rule `json:"rules"`
}

func strategyDTO(id string, cs *strategy.CompiledStrategy) StrategyDTO {
	return StrategyDTO{ID: id, Name: cs.Name, Description: cs.Description, Settings: cs.Settings, Rules: cs.Rules}
}

// ValidateStrategyResponse is the POST /strategies/validate result.
type ValidateStrategyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// CreateAgentRequest configures a new agent. Exactly one of
// StrategyID or StrategyDoc must be set.
type CreateAgentRequest struct {
	Name            string `json:"name"`
	StrategyID      string `json:"strategy_id,omitempty"`
	StrategyDoc     string `json:"strategy_doc,omitempty"`
	IntervalSeconds int    `json:"interval_seconds"`
	Tickers         []string `json:"tickers"`
	AccountID       string `json:"account_id"`
	APIKey          string `json:"api_key"`
}

type AgentDTO struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	StrategyID          string    `json:"strategy_id"`
	IntervalSeconds     int       `json:"interval_seconds"`
	Tickers             []string  `json:"tickers"`
	AccountID           string    `json:"account_id"`
	State               string    `json:"state"`
	LastError           string    `json:"last_error,omitempty"`
}

func agentDTO(a *agent.Agent) AgentDTO {
	return AgentDTO{
		ID: a.ID, Name: a.Name, StrategyID: a.StrategyID, IntervalSeconds: a.IntervalSeconds,
		Tickers: a.Tickers, AccountID: a.AccountID, State: string(a.State()), LastError: a.LastError(),
	}
}

// UpdateAgentRequest is the PATCH /agents/{id} body; nil fields leave
// the current value unchanged.
type UpdateAgentRequest struct {
	Name            *string  `json:"name,omitempty"`
	IntervalSeconds *int     `json:"interval_seconds,omitempty"`
	Tickers         []string `json:"tickers,omitempty"`
}
