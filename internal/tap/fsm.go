package tap

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrInvalidTransition = errors.New("invalid state transition")

type State string

const (
	StateCreated   State = "created"
	StateFetching  State = "fetching"
	StateLoading   State = "loading"
	StateEmitting  State = "emitting"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// FSM tracks the phase of a single sync run. Completed and error are
// terminal.
type FSM struct {
	mu          sync.Mutex
	Transitions map[State]map[State]struct{}

	current State
	logger  *zap.Logger
}

type FSMOption func(*FSM)

func FSMWithLogger(logger *zap.Logger) FSMOption {
	return func(f *FSM) {
		f.logger = logger
	}
}

func NewFSM(opts ...FSMOption) *FSM {
	f := &FSM{
		current: StateCreated,
		logger:  zap.NewNop(),

		Transitions: map[State]map[State]struct{}{
			StateCreated: {
				StateFetching: {},
			},
			StateFetching: {
				StateLoading: {},
				StateError:   {},
			},
			StateLoading: {
				StateEmitting: {},
				StateError:    {},
			},
			StateEmitting: {
				StateCompleted: {},
				StateError:     {},
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FSM) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Active reports whether the run has started and not yet finished.
func (f *FSM) Active() bool {
	switch f.Current() {
	case StateFetching, StateLoading, StateEmitting:
		return true
	}
	return false
}

func (f *FSM) Transition(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Transitions[f.current][to]; !ok {
		f.logger.Error("invalid state transition",
			zap.String("from", string(f.current)),
			zap.String("to", string(to)),
		)
		return ErrInvalidTransition
	}
	previous := f.current
	f.current = to

	f.logger.Debug("state transitioned",
		zap.String("state", string(f.current)),
		zap.String("from", string(previous)),
	)
	return nil
}
