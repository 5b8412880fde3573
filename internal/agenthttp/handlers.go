package agenthttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"exchsim/internal/agent"
	"exchsim/internal/httpapi"
	"exchsim/internal/strategy"
)

func writeJSON(w http.ResponseWriter, status int, v any) { httpapi.WriteJSON(w, status, v) }
func writeCode(w http.ResponseWriter, code, msg string)  { httpapi.WriteError(w, statusFor(code), code, msg) }

func statusFor(code string) int {
	switch code {
	case httpapi.CodeInvalidParameters:
		return http.StatusBadRequest
	case httpapi.CodeNotFound:
		return http.StatusNotFound
	case httpapi.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	ids := s.strategies.IDs()
	out := make([]StrategyDTO, 0, len(ids))
	for _, id := range ids {
		cs, _ := s.strategies.Get(id)
		out = append(out, strategyDTO(id, cs))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cs, ok := s.strategies.Get(id)
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown strategy")
		return
	}
	writeJSON(w, http.StatusOK, strategyDTO(id, cs))
}

func (s *Server) handleValidateStrategy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Document string `json:"document"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCode(w, httpapi.CodeInvalidParameters, "malformed request body")
		return
	}
	if _, err := strategy.Compile([]byte(body.Document)); err != nil {
		writeJSON(w, http.StatusOK, ValidateStrategyResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ValidateStrategyResponse{Valid: true})
}

func (s *Server) resolveStrategy(req CreateAgentRequest) (*strategy.CompiledStrategy, string, error) {
	if req.StrategyDoc != "" && req.StrategyID != "" {
		return nil, "", errAmbiguousStrategy
	}
	if req.StrategyDoc != "" {
		cs, err := strategy.Compile([]byte(req.StrategyDoc))
		if err != nil {
			return nil, "", err
		}
		return cs, "inline:" + cs.Name, nil
	}
	cs, ok := s.strategies.Get(req.StrategyID)
	if !ok {
		return nil, "", errUnknownStrategy
	}
	return cs, req.StrategyID, nil
}

var (
	errUnknownStrategy   = errors.New("unknown strategy_id")
	errAmbiguousStrategy = errors.New("set only one of strategy_id and strategy_doc")
)

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, httpapi.CodeInvalidParameters, "malformed request body")
		return
	}
	if req.Name == "" || req.IntervalSeconds <= 0 || req.AccountID == "" || req.APIKey == "" || len(req.Tickers) == 0 {
		writeCode(w, httpapi.CodeInvalidParameters, "name, interval_seconds, account_id, api_key, and tickers are required")
		return
	}
	cs, strategyID, err := s.resolveStrategy(req)
	if err != nil {
		writeCode(w, httpapi.CodeInvalidParameters, err.Error())
		return
	}

	a := s.manager.CreateAgent(agent.CreateAgentParams{
		Name: req.Name, StrategyID: strategyID, Strategy: cs, IntervalSeconds: req.IntervalSeconds,
		Tickers: req.Tickers, AccountID: req.AccountID, BaseURL: s.exchangeURL, APIKey: req.APIKey,
		Timeout: s.exchangeTimeout,
	})
	writeJSON(w, http.StatusCreated, agentDTO(a))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.manager.List()
	out := make([]AgentDTO, len(agents))
	for i, a := range agents {
		out[i] = agentDTO(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := s.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	writeJSON(w, http.StatusOK, agentDTO(a))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCode(w, httpapi.CodeInvalidParameters, "malformed request body")
		return
	}
	a, ok := s.manager.Update(id, req.Name, req.IntervalSeconds, req.Tickers)
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	writeJSON(w, http.StatusOK, agentDTO(a))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Delete(mux.Vars(r)["id"]) {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := s.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	a.Start()
	writeJSON(w, http.StatusOK, agentDTO(a))
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := s.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	a.Stop()
	writeJSON(w, http.StatusOK, agentDTO(a))
}

func (s *Server) handlePauseAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := s.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeCode(w, httpapi.CodeNotFound, "unknown agent")
		return
	}
	a.Pause()
	writeJSON(w, http.StatusOK, agentDTO(a))
}
