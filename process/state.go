package process

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-saxs/logger"
)

// State represents the lifecycle stage of a supervised process.
type State uint32

// Process lifecycle states.
const (
	// NotStartedState indicates the process has not been launched yet.
	NotStartedState State = iota
	// RunningState indicates the process was launched and has not been asked to stop.
	RunningState
	// StoppingState indicates a stop is in progress.
	StoppingState
	// StoppedState indicates the process has exited and all pipes are released.
	StoppedState
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case NotStartedState:
		return "not-started"
	case RunningState:
		return "running"
	case StoppingState:
		return "stopping"
	case StoppedState:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked synchronously on every state change.
//
// Note: the handler runs while the state manager is locked. Take care with long-running
// implementations and never call back into the StateMgr.
type StateChangeHandler func(prevState State, newState State)

// StateMgr manages the lifecycle state of a supervised process.
//
// Transitions only move forward: NotStarted -> Running -> Stopping -> Stopped, with
// Running -> Stopped allowed when the process could not be stopped gracefully.
// StateMgr is safe for concurrent use.
type StateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []StateChangeHandler
}

// NewStateMgr creates a StateMgr in NotStartedState.
func NewStateMgr(l logger.Logger, handlers ...StateChangeHandler) *StateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	sm := &StateMgr{
		logger:   l,
		handlers: make([]StateChangeHandler, 0, len(handlers)),
	}
	sm.cond = sync.NewCond(&sm.mu)
	sm.AddHandler(handlers...)

	return sm
}

// State returns the current state.
func (sm *StateMgr) State() State {
	return State(sm.state.Load())
}

// AddHandler adds one or more handlers invoked on state changes.
func (sm *StateMgr) AddHandler(handlers ...StateChangeHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.handlers = append(sm.handlers, handlers...)
}

// WaitState waits until the state reaches state or ctx is done.
func (sm *StateMgr) WaitState(ctx context.Context, state State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.cond.Broadcast()
	})
	defer stopFunc()

	for sm.State() != state {
		if err := ctx.Err(); err != nil {
			sm.logger.Debug("wait process state canceled", "cur_state", sm.State(), "desired_state", state)
			return err
		}
		sm.cond.Wait()
	}

	return nil
}

// ToRunning transitions NotStarted -> Running.
func (sm *StateMgr) ToRunning() error {
	return sm.transition(RunningState, NotStartedState)
}

// ToStopping transitions Running -> Stopping.
func (sm *StateMgr) ToStopping() error {
	return sm.transition(StoppingState, RunningState)
}

// ToStopped transitions Running or Stopping -> Stopped.
func (sm *StateMgr) ToStopped() error {
	return sm.transition(StoppedState, RunningState, StoppingState)
}

// IsRunning reports whether the current state is RunningState.
func (sm *StateMgr) IsRunning() bool { return sm.State() == RunningState }

// IsStopped reports whether the current state is StoppedState.
func (sm *StateMgr) IsStopped() bool { return sm.State() == StoppedState }

func (sm *StateMgr) transition(newState State, from ...State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()
	if curState == newState {
		return nil
	}

	allowed := false
	for _, s := range from {
		if curState == s {
			allowed = true
			break
		}
	}
	if !allowed {
		sm.logger.Debug("rejected process state transition", "cur_state", curState, "desired_state", newState)
		return ErrInvalidTransition
	}

	sm.state.Store(uint32(newState))
	sm.cond.Broadcast()

	for _, handler := range sm.handlers {
		if handler != nil {
			handler(curState, newState)
		}
	}

	return nil
}
