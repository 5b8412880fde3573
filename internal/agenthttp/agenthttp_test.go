package agenthttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"exchsim/internal/agent"
	"exchsim/internal/strategy/builtin"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	m := agent.NewManager()
	t.Cleanup(func() { _ = m.Stop() })
	return NewServer(m, builtin.NewRegistry(), "http://exchange.invalid", 0)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListStrategiesReturnsBuiltins(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dtos []StrategyDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dtos))
	require.Len(t, dtos, 3)
}

func TestGetUnknownStrategyReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/strategies/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateStrategyRejectsBadDocument(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/strategies/validate", map[string]string{"document": "not: [valid"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ValidateStrategyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Valid)
}

func TestCreateAgentWithBuiltinStrategy(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents", CreateAgentRequest{
		Name: "bot", StrategyID: "momentum-buyer", IntervalSeconds: 30,
		Tickers: []string{"TECH"}, AccountID: "alice", APIKey: "key",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var a AgentDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	require.Equal(t, "CREATED", a.State)

	rec = doJSON(t, s, http.MethodPost, "/agents/"+a.ID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var started AgentDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.Equal(t, "RUNNING", started.State)
}

func TestCreateAgentRejectsUnknownStrategy(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents", CreateAgentRequest{
		Name: "bot", StrategyID: "nope", IntervalSeconds: 30,
		Tickers: []string{"TECH"}, AccountID: "alice", APIKey: "key",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAgentThenGetReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents", CreateAgentRequest{
		Name: "bot", StrategyID: "momentum-buyer", IntervalSeconds: 30,
		Tickers: []string{"TECH"}, AccountID: "alice", APIKey: "key",
	})
	var a AgentDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))

	rec = doJSON(t, s, http.MethodDelete, "/agents/"+a.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/agents/"+a.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchAgentUpdatesInterval(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents", CreateAgentRequest{
		Name: "bot", StrategyID: "momentum-buyer", IntervalSeconds: 30,
		Tickers: []string{"TECH"}, AccountID: "alice", APIKey: "key",
	})
	var a AgentDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))

	newInterval := 60
	rec = doJSON(t, s, http.MethodPatch, "/agents/"+a.ID, UpdateAgentRequest{IntervalSeconds: &newInterval})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated AgentDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	require.Equal(t, 60, updated.IntervalSeconds)
}
