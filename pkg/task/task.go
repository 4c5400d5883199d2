package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"
	"bscwallet/pkg/logger"

	"github.com/google/uuid"
)

// Op names a user-facing operation. At most one task per Op runs at a time.
type Op string

const (
	OpBalance  Op = "balance"
	OpGenerate Op = "generate"
	OpSupply   Op = "supply"
)

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

// Func is the body of a task. It must honor ctx and report progress through progress.
type Func func(ctx context.Context, progress func(string)) (any, error)

// Task is a handle to one background operation.
type Task struct {
	ID        string
	Op        Op
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	state      State
	result     any
	err        error
	finishedAt time.Time
}

// Info is a point-in-time view of a task, safe to serialize.
type Info struct {
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Result     any       `json:"result,omitempty"`
}

func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its result. A canceled task may
// still return a partial result.
func (t *Task) Wait() (any, error) {
	<-t.done
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err
}

// Cancel asks the task to stop. The task notices at its next cancellation check.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Info() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info := Info{
		ID:         t.ID,
		Op:         t.Op,
		State:      t.state,
		StartedAt:  t.StartedAt,
		FinishedAt: t.finishedAt,
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	if t.state != StateRunning {
		info.Result = t.result
	}
	return info
}

func (t *Task) finish(result any, err error) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result, t.err = result, err
	t.finishedAt = time.Now()
	switch {
	case err == nil:
		t.state = StateDone
	case errors.Is(err, context.Canceled):
		t.state = StateCanceled
	default:
		t.state = StateFailed
	}
	return t.state
}

// MaxHistory bounds how many finished tasks the manager remembers.
const MaxHistory = 100

// Manager starts tasks and tracks their lifecycle.
type Manager struct {
	ctx context.Context
	bus *events.Bus

	mu      sync.RWMutex
	tasks   map[string]*Task
	order   []string
	running map[Op]*Task
}

// NewManager returns a manager whose tasks are canceled when ctx ends. bus may be nil.
func NewManager(ctx context.Context, bus *events.Bus) *Manager {
	return &Manager{
		ctx:     ctx,
		bus:     bus,
		tasks:   make(map[string]*Task),
		running: make(map[Op]*Task),
	}
}

// Start runs fn in the background. It returns errs.ErrBusy if a task of the same op is
// still running.
func (m *Manager) Start(op Op, fn Func) (*Task, error) {
	m.mu.Lock()
	if cur, ok := m.running[op]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s task %s", errs.ErrBusy, op, cur.ID)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	t := &Task{
		ID:        uuid.NewString(),
		Op:        op,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRunning,
	}
	m.running[op] = t
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	m.prune()
	m.mu.Unlock()

	logger.InfoCF("task", "Task started", map[string]any{"id": t.ID, "op": string(op)})
	go m.run(ctx, t, fn)
	return t, nil
}

// run publishes every event of t from the task goroutine, so Start never waits on a
// slow subscriber and the events keep their order.
func (m *Manager) run(ctx context.Context, t *Task, fn Func) {
	defer t.cancel()
	m.publish(events.Event{TaskID: t.ID, Op: string(t.Op), Type: events.EventState, Message: string(StateRunning)})

	progress := func(string) {}
	if m.bus != nil {
		progress = m.bus.Progress(t.ID, string(t.Op))
	}

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		result, err = fn(ctx, progress)
	}()

	state := t.finish(result, err)

	m.mu.Lock()
	if m.running[t.Op] == t {
		delete(m.running, t.Op)
	}
	m.mu.Unlock()
	close(t.done)

	fields := map[string]any{"id": t.ID, "op": string(t.Op), "state": string(state)}
	if err != nil {
		fields["error"] = err.Error()
		logger.WarnCF("task", "Task finished", fields)
	} else {
		logger.InfoCF("task", "Task finished", fields)
	}

	ev := events.Event{TaskID: t.ID, Op: string(t.Op), Type: events.EventState, Message: string(state)}
	if err != nil {
		ev.Data = err.Error()
	}
	m.publish(ev)
	m.publish(events.Event{TaskID: t.ID, Op: string(t.Op), Type: events.EventResult, Data: result})
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// prune drops the oldest finished tasks beyond MaxHistory. Running tasks are kept
// wherever they sit in the history. Caller holds m.mu.
func (m *Manager) prune() {
	excess := len(m.order) - MaxHistory
	if excess <= 0 {
		return
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if excess > 0 && m.tasks[id].State() != StateRunning {
			delete(m.tasks, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Tasks returns a snapshot of every known task, oldest first.
func (m *Manager) Tasks() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Info())
	}
	return out
}

// State reports the state of op: running if a task is in flight, otherwise the
// state of its most recent task, or idle if it never ran.
func (m *Manager) State(op Op) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.running[op]; ok {
		return StateRunning
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		if t := m.tasks[m.order[i]]; t.Op == op {
			return t.State()
		}
	}
	return StateIdle
}

// Busy reports whether a task of op is running.
func (m *Manager) Busy(op Op) bool {
	return m.State(op) == StateRunning
}
