// Package agent implements A3: the agent runtime that ticks each
// trading agent's compiled strategy on its own interval, submitting
// intents through an exchange client and tracking the state machine
// of spec.md §4.8.
package agent

import (
	"sync"
	"sync/atomic"
	"time"

	"exchsim/internal/exchangeclient"
	"exchsim/internal/strategy"
)

// State is an agent's lifecycle state, per spec.md §4.8.
type State string

const (
	StateCreated State = "CREATED"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
	StateError   State = "ERROR"
)

// maxConsecutiveFailures trips the ERROR state, per spec.md §4.8.
const maxConsecutiveFailures = 10

// hardCancelTimeout bounds how long a single tick may run: the tick's
// context is cancelled this long after the tick starts.
const hardCancelTimeout = 30 * time.Second

// Agent is one configured trading bot.
type Agent struct {
	ID              string
	Name            string
	StrategyID      string
	Strategy        *strategy.CompiledStrategy
	IntervalSeconds int
	Tickers         []string // explicit list, or ["all"]
	AccountID       string
	Client          *exchangeclient.Client

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastError           string
	lastTickAt          time.Time
	cooldowns           map[string]time.Time

	running atomic.Bool // true while a tick is executing; prevents overlap
	stopReq atomic.Bool
	paused  atomic.Bool
}

// NewAgent constructs an Agent in CREATED state.
func NewAgent(id, name, strategyID string, compiled *strategy.CompiledStrategy, intervalSeconds int, tickers []string, accountID string, client *exchangeclient.Client) *Agent {
	return &Agent{
		ID: id, Name: name, StrategyID: strategyID, Strategy: compiled,
		IntervalSeconds: intervalSeconds, Tickers: tickers, AccountID: accountID, Client: client,
		state: StateCreated, cooldowns: make(map[string]time.Time),
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError returns the error recorded by the most recent failed tick.
func (a *Agent) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// Start transitions CREATED/PAUSED/ERROR -> RUNNING. ERROR requires
// the operator to explicitly clear it by starting, per spec.md §4.8.
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateRunning
	a.consecutiveFailures = 0
	a.lastError = ""
	a.paused.Store(false)
	a.stopReq.Store(false)
}

// Pause sets the cooperative flag checked at the next tick boundary.
func (a *Agent) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateRunning {
		a.state = StatePaused
	}
	a.paused.Store(true)
}

// Stop sets the cooperative flag checked at the next tick boundary.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateStopped
	a.stopReq.Store(true)
}

func (a *Agent) shouldTick() bool {
	if a.stopReq.Load() || a.paused.Load() {
		return false
	}
	return a.State() == StateRunning
}

func (a *Agent) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures = 0
	a.lastTickAt = time.Now()
}

func (a *Agent) recordFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures++
	a.lastError = err.Error()
	a.lastTickAt = time.Now()
	if a.consecutiveFailures >= maxConsecutiveFailures {
		a.state = StateError
	}
}

// Configure updates the mutable fields of an agent (name, tickers).
// Interval changes are handled by Manager since the timer lives there.
func (a *Agent) Configure(name *string, tickers []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name != nil {
		a.Name = *name
	}
	if tickers != nil {
		a.Tickers = tickers
	}
}

func (a *Agent) cooldownSnapshot() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]time.Time, len(a.cooldowns))
	for k, v := range a.cooldowns {
		out[k] = v
	}
	return out
}

func (a *Agent) recordFiring(ruleName string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cooldowns[ruleName] = at
}
