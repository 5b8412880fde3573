package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"exchsim/internal/exchangeclient"
	"exchsim/internal/httpapi"
	"exchsim/internal/strategy"
	"exchsim/internal/strategy/rules"
)

var ErrAgentNotFound = fmt.Errorf("agent: not found")

// poolSize is the fixed worker count servicing the shared tick queue.
const poolSize = 8

// Manager owns every configured agent, a shared tick worker pool, and
// one timer goroutine per agent that enqueues its due ticks.
type Manager struct {
	t    *tomb.Tomb
	pool *tickPool

	mu     sync.RWMutex
	agents map[string]*Agent
	timers map[string]*time.Ticker
}

// NewManager starts the shared tick pool.
func NewManager() *Manager {
	t := &tomb.Tomb{}
	m := &Manager{t: t, pool: newTickPool(poolSize), agents: make(map[string]*Agent), timers: make(map[string]*time.Ticker)}
	m.pool.start(t, m.runTick)
	return m
}

// Stop signals every timer and the tick pool to exit and waits.
func (m *Manager) Stop() error {
	m.mu.Lock()
	for _, ticker := range m.timers {
		ticker.Stop()
	}
	m.mu.Unlock()
	m.t.Kill(nil)
	return m.t.Wait()
}

// CreateAgentParams configures a new agent.
type CreateAgentParams struct {
	Name            string
	StrategyID      string
	Strategy        *strategy.CompiledStrategy
	IntervalSeconds int
	Tickers         []string
	AccountID       string
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
}

// CreateAgent registers a new agent in CREATED state and starts its
// per-agent timer (which only enqueues ticks once the agent is RUNNING).
func (m *Manager) CreateAgent(p CreateAgentParams) *Agent {
	client := exchangeclient.New(p.BaseURL, p.APIKey, p.Timeout)
	a := NewAgent(uuid.NewString(), p.Name, p.StrategyID, p.Strategy, p.IntervalSeconds, p.Tickers, p.AccountID, client)

	m.mu.Lock()
	m.agents[a.ID] = a
	ticker := time.NewTicker(time.Duration(p.IntervalSeconds) * time.Second)
	m.timers[a.ID] = ticker
	m.mu.Unlock()

	m.t.Go(func() error { return m.timerLoop(a.ID, ticker) })
	return a
}

func (m *Manager) timerLoop(agentID string, ticker *time.Ticker) error {
	for {
		select {
		case <-m.t.Dying():
			return nil
		case <-ticker.C:
			m.pool.enqueue(tickTask{agentID: agentID})
		}
	}
}

// Update applies a PATCH: name/tickers update in place, and a changed
// interval resets that agent's timer.
func (m *Manager) Update(id string, name *string, intervalSeconds *int, tickers []string) (*Agent, bool) {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	if intervalSeconds != nil && *intervalSeconds > 0 {
		a.IntervalSeconds = *intervalSeconds
		if old, ok := m.timers[id]; ok {
			old.Stop()
		}
		newTicker := time.NewTicker(time.Duration(*intervalSeconds) * time.Second)
		m.timers[id] = newTicker
		m.t.Go(func() error { return m.timerLoop(id, newTicker) })
	}
	m.mu.Unlock()

	a.Configure(name, tickers)
	return a, true
}

func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

func (m *Manager) List() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// Delete stops and removes an agent; its timer goroutine exits on the
// next tomb teardown, in-flight ticks complete naturally since they
// read the agent by ID, not by pointer capture into a closure state.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return false
	}
	a.Stop()
	if ticker, ok := m.timers[id]; ok {
		ticker.Stop()
		delete(m.timers, id)
	}
	delete(m.agents, id)
	return true
}

// runTick is the tickFunc driven by the shared pool: it looks up the
// agent, checks the cooperative flags, and executes one tick with a
// hard-cancel timeout.
func (m *Manager) runTick(_ *tomb.Tomb, task tickTask) error {
	a, ok := m.Get(task.agentID)
	if !ok {
		return nil
	}
	if !a.shouldTick() {
		return nil
	}
	if !a.running.CompareAndSwap(false, true) {
		log.Warn().Str("agent_id", a.ID).Msg("previous tick still running, skipping")
		return nil
	}
	defer a.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), hardCancelTimeout)
	defer cancel()

	start := time.Now()
	err := executeTick(ctx, a)
	elapsed := time.Since(start)
	if elapsed > time.Duration(a.IntervalSeconds)*time.Second {
		log.Warn().Str("agent_id", a.ID).Dur("elapsed", elapsed).Msg("tick exceeded interval")
	}

	if err != nil {
		a.recordFailure(err)
		return err
	}
	a.recordSuccess()
	return nil
}

// executeTick performs one evaluation-and-submit cycle for a.
func executeTick(ctx context.Context, a *Agent) error {
	tickers, err := a.resolveTickers(ctx)
	if err != nil {
		return err
	}
	snap, ordersByTicker, err := a.buildSnapshot(ctx, tickers)
	if err != nil {
		return err
	}

	intents := rules.Evaluate(snap, a.Strategy, a.cooldownSnapshot(), time.Now())
	for _, intent := range intents {
		if err := submitIntent(ctx, a, intent, ordersByTicker); err != nil {
			log.Error().Err(err).Str("agent_id", a.ID).Str("rule", intent.RuleName).Msg("intent submission failed")
			continue
		}
		a.recordFiring(intent.RuleName, time.Now())
	}
	return nil
}

func submitIntent(ctx context.Context, a *Agent, intent rules.Intent, ordersByTicker map[string][]httpapi.OrderDTO) error {
	if intent.Kind == strategy.ActionCancelOrders {
		for _, o := range ordersByTicker[intent.Ticker] {
			if err := a.Client.CancelOrder(ctx, o.ID); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := a.Client.PlaceOrder(ctx, httpapi.PlaceOrderRequest{
		Ticker: intent.Ticker, Side: intent.Side, OrderType: intent.OrderType,
		Quantity: intent.Quantity, Price: intent.Price,
	})
	return err
}
