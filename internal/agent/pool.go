package agent

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// tickQueueSize bounds how many pending ticks may queue; once it is
// full, tickPool.enqueue drops new ticks. Adapted from the teacher's
// TASK_CHAN_SIZE.
const tickQueueSize = 100

// tickTask is one agent's due tick, dispatched onto the shared queue
// by Manager's per-agent timers.
type tickTask struct {
	agentID string
}

// tickFunc executes one queued tick.
type tickFunc = func(t *tomb.Tomb, task tickTask) error

// tickPool is a fixed-size pool of workers draining a shared tick
// queue, adapted from the teacher's internal/worker.go WorkerPool to
// service spec.md §5's "pool of workers servicing a timer-driven work
// queue" scheduling model for the agent platform.
type tickPool struct {
	n     int
	tasks chan tickTask
	work  tickFunc
}

func newTickPool(size int) *tickPool {
	return &tickPool{tasks: make(chan tickTask, tickQueueSize), n: size}
}

// enqueue submits a tick for execution, dropping it with a warning log
// if the queue is saturated rather than blocking the caller's timer
// goroutine.
func (p *tickPool) enqueue(task tickTask) {
	select {
	case p.tasks <- task:
	default:
		log.Warn().Str("agent_id", task.agentID).Msg("tick queue saturated, dropping tick")
	}
}

// start launches the pool's n workers under t, each pulling tasks off
// the shared queue until t is dying.
func (p *tickPool) start(t *tomb.Tomb, work tickFunc) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("starting agent tick pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error { return p.worker(t) })
	}
}

func (p *tickPool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := p.work(t, task); err != nil {
				log.Error().Err(err).Str("agent_id", task.agentID).Msg("tick worker reported error")
			}
		}
	}
}
